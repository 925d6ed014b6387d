package application

import (
	"context"
	"time"

	escrowDomain "github.com/felixgeelhaar/trustline/internal/escrow/domain"
	"github.com/felixgeelhaar/trustline/internal/gateway"
	"github.com/felixgeelhaar/trustline/internal/settlement/domain"
	"github.com/felixgeelhaar/trustline/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockTransactionRepo struct {
	mock.Mock
}

func (m *mockTransactionRepo) Save(ctx context.Context, tx *escrowDomain.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *mockTransactionRepo) FindByID(ctx context.Context, id uuid.UUID) (*escrowDomain.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*escrowDomain.Transaction), args.Error(1)
}

func (m *mockTransactionRepo) FindByExternalReference(ctx context.Context, contractID, stageID uuid.UUID, reference string) (*escrowDomain.Transaction, error) {
	args := m.Called(ctx, contractID, stageID, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*escrowDomain.Transaction), args.Error(1)
}

func (m *mockTransactionRepo) FindByContract(ctx context.Context, contractID uuid.UUID) ([]*escrowDomain.Transaction, error) {
	args := m.Called(ctx, contractID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*escrowDomain.Transaction), args.Error(1)
}

func (m *mockTransactionRepo) FindByContractAndStatus(ctx context.Context, contractID uuid.UUID, statuses ...escrowDomain.TransactionStatus) ([]*escrowDomain.Transaction, error) {
	callArgs := make([]any, 0, len(statuses)+2)
	callArgs = append(callArgs, ctx, contractID)
	for _, s := range statuses {
		callArgs = append(callArgs, s)
	}
	args := m.Called(callArgs...)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*escrowDomain.Transaction), args.Error(1)
}

func (m *mockTransactionRepo) FindReleasedWithoutPayout(ctx context.Context) ([]*escrowDomain.Transaction, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*escrowDomain.Transaction), args.Error(1)
}

type mockContractRepo struct {
	mock.Mock
}

func (m *mockContractRepo) Save(ctx context.Context, contract *escrowDomain.Contract) error {
	args := m.Called(ctx, contract)
	return args.Error(0)
}

func (m *mockContractRepo) FindByID(ctx context.Context, id uuid.UUID) (*escrowDomain.Contract, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*escrowDomain.Contract), args.Error(1)
}

func (m *mockContractRepo) FindByParty(ctx context.Context, userID uuid.UUID) ([]*escrowDomain.Contract, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*escrowDomain.Contract), args.Error(1)
}

type mockAccountRepo struct {
	mock.Mock
}

func (m *mockAccountRepo) Save(ctx context.Context, account *escrowDomain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockAccountRepo) FindByUserAndRole(ctx context.Context, userID uuid.UUID, role escrowDomain.AccountRole) (*escrowDomain.Account, error) {
	args := m.Called(ctx, userID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*escrowDomain.Account), args.Error(1)
}

type mockPayoutRepo struct {
	mock.Mock
}

func (m *mockPayoutRepo) Save(ctx context.Context, payout *domain.Payout) error {
	args := m.Called(ctx, payout)
	return args.Error(0)
}

func (m *mockPayoutRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payout), args.Error(1)
}

func (m *mockPayoutRepo) FindByPayee(ctx context.Context, payeeID uuid.UUID) ([]*domain.Payout, error) {
	args := m.Called(ctx, payeeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payout), args.Error(1)
}

func (m *mockPayoutRepo) FindByStatus(ctx context.Context, status domain.PayoutStatus) ([]*domain.Payout, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payout), args.Error(1)
}

type mockRunRepo struct {
	mock.Mock
}

func (m *mockRunRepo) Save(ctx context.Context, run *domain.SettlementRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *mockRunRepo) FindLatest(ctx context.Context) (*domain.SettlementRun, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SettlementRun), args.Error(1)
}

type mockRunLock struct {
	mock.Mock
}

func (m *mockRunLock) Acquire(ctx context.Context, day time.Time, holder string, expiresAt time.Time) (bool, error) {
	args := m.Called(ctx, day, holder, expiresAt)
	return args.Bool(0), args.Error(1)
}

func (m *mockRunLock) Release(ctx context.Context, day time.Time, holder string) error {
	args := m.Called(ctx, day, holder)
	return args.Error(0)
}

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

func passthroughUnitOfWork(ctx context.Context) *mockUnitOfWork {
	uow := new(mockUnitOfWork)
	uow.On("Begin", mock.Anything).Return(ctx, nil).Maybe()
	uow.On("Commit", mock.Anything).Return(nil).Maybe()
	uow.On("Rollback", mock.Anything).Return(nil).Maybe()
	return uow
}
