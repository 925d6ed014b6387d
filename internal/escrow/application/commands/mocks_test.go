package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/trustline/internal/escrow/domain"
	"github.com/felixgeelhaar/trustline/internal/gateway"
	settlementDomain "github.com/felixgeelhaar/trustline/internal/settlement/domain"
	"github.com/felixgeelhaar/trustline/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// mockContractRepo is a mock implementation of domain.ContractRepository.
type mockContractRepo struct {
	mock.Mock
}

func (m *mockContractRepo) Save(ctx context.Context, contract *domain.Contract) error {
	args := m.Called(ctx, contract)
	return args.Error(0)
}

func (m *mockContractRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Contract), args.Error(1)
}

func (m *mockContractRepo) FindByParty(ctx context.Context, userID uuid.UUID) ([]*domain.Contract, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Contract), args.Error(1)
}

// mockTransactionRepo is a mock implementation of domain.TransactionRepository.
type mockTransactionRepo struct {
	mock.Mock
}

func (m *mockTransactionRepo) Save(ctx context.Context, tx *domain.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *mockTransactionRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *mockTransactionRepo) FindByExternalReference(ctx context.Context, contractID, stageID uuid.UUID, reference string) (*domain.Transaction, error) {
	args := m.Called(ctx, contractID, stageID, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *mockTransactionRepo) FindByContract(ctx context.Context, contractID uuid.UUID) ([]*domain.Transaction, error) {
	args := m.Called(ctx, contractID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transaction), args.Error(1)
}

func (m *mockTransactionRepo) FindByContractAndStatus(ctx context.Context, contractID uuid.UUID, statuses ...domain.TransactionStatus) ([]*domain.Transaction, error) {
	callArgs := make([]any, 0, len(statuses)+2)
	callArgs = append(callArgs, ctx, contractID)
	for _, s := range statuses {
		callArgs = append(callArgs, s)
	}
	args := m.Called(callArgs...)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transaction), args.Error(1)
}

func (m *mockTransactionRepo) FindReleasedWithoutPayout(ctx context.Context) ([]*domain.Transaction, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transaction), args.Error(1)
}

// mockAccountRepo is a mock implementation of domain.AccountRepository.
type mockAccountRepo struct {
	mock.Mock
}

func (m *mockAccountRepo) Save(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockAccountRepo) FindByUserAndRole(ctx context.Context, userID uuid.UUID, role domain.AccountRole) (*domain.Account, error) {
	args := m.Called(ctx, userID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

// mockPayoutRepo is a mock implementation of settlement PayoutRepository.
type mockPayoutRepo struct {
	mock.Mock
}

func (m *mockPayoutRepo) Save(ctx context.Context, payout *settlementDomain.Payout) error {
	args := m.Called(ctx, payout)
	return args.Error(0)
}

func (m *mockPayoutRepo) FindByID(ctx context.Context, id uuid.UUID) (*settlementDomain.Payout, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlementDomain.Payout), args.Error(1)
}

func (m *mockPayoutRepo) FindByPayee(ctx context.Context, payeeID uuid.UUID) ([]*settlementDomain.Payout, error) {
	args := m.Called(ctx, payeeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*settlementDomain.Payout), args.Error(1)
}

func (m *mockPayoutRepo) FindByStatus(ctx context.Context, status settlementDomain.PayoutStatus) ([]*settlementDomain.Payout, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*settlementDomain.Payout), args.Error(1)
}

// mockOutboxRepo is a mock implementation of outbox.Repository.
type mockOutboxRepo struct {
	mock.Mock
}

func (m *mockOutboxRepo) Save(ctx context.Context, msg *outbox.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockOutboxRepo) SaveBatch(ctx context.Context, msgs []*outbox.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockOutboxRepo) GetUnpublished(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *mockOutboxRepo) MarkPublished(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockOutboxRepo) MarkFailed(ctx context.Context, id int64, err string, nextRetryAt time.Time) error {
	args := m.Called(ctx, id, err, nextRetryAt)
	return args.Error(0)
}

func (m *mockOutboxRepo) MarkDead(ctx context.Context, id int64, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *mockOutboxRepo) GetFailed(ctx context.Context, maxRetries, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, maxRetries, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *mockOutboxRepo) DeleteOld(ctx context.Context, olderThanDays int) (int64, error) {
	args := m.Called(ctx, olderThanDays)
	return args.Get(0).(int64), args.Error(1)
}

// mockUnitOfWork is a mock implementation of the shared UnitOfWork.
type mockUnitOfWork struct {
	mock.Mock
}

func (m *mockUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	args := m.Called(ctx)
	return args.Get(0).(context.Context), args.Error(1)
}

func (m *mockUnitOfWork) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockUnitOfWork) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// passthroughUnitOfWork wires Begin/Commit/Rollback through unchanged for
// tests that do not care about transaction boundaries.
func passthroughUnitOfWork(ctx context.Context) *mockUnitOfWork {
	uow := new(mockUnitOfWork)
	uow.On("Begin", mock.Anything).Return(ctx, nil).Maybe()
	uow.On("Commit", mock.Anything).Return(nil).Maybe()
	uow.On("Rollback", mock.Anything).Return(nil).Maybe()
	return uow
}

// mockGatewayClient is a mock implementation of gateway.Client.
type mockGatewayClient struct {
	mock.Mock
}

func (m *mockGatewayClient) CreatePaymentWithStoredCredential(ctx context.Context, req gateway.CreatePaymentRequest) (*gateway.PaymentResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.PaymentResult), args.Error(1)
}

func (m *mockGatewayClient) CancelPayment(ctx context.Context, req gateway.CancelPaymentRequest) (*gateway.RefundResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.RefundResult), args.Error(1)
}

func (m *mockGatewayClient) TransferToBank(ctx context.Context, req gateway.TransferRequest) (*gateway.TransferResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.TransferResult), args.Error(1)
}
