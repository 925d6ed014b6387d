package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// MockClient returns deterministic success without calling any external
// system. It is the active client while settlement transfers are disabled
// by configuration, and in tests.
type MockClient struct {
	logger *slog.Logger
	seq    atomic.Int64
}

// NewMockClient creates a mock gateway client.
func NewMockClient(logger *slog.Logger) *MockClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockClient{logger: logger}
}

func (c *MockClient) next(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, c.seq.Add(1))
}

// CreatePaymentWithStoredCredential pretends the charge succeeded.
func (c *MockClient) CreatePaymentWithStoredCredential(ctx context.Context, req CreatePaymentRequest) (*PaymentResult, error) {
	c.logger.Debug("mock gateway payment",
		"payment_id", req.PaymentID,
		"amount", req.Amount.String(),
	)
	return &PaymentResult{
		TransactionID: c.next("mock_tx"),
		Status:        PaymentPaid,
		PaidAt:        time.Now().UTC(),
	}, nil
}

// CancelPayment pretends the refund succeeded for the requested amount.
func (c *MockClient) CancelPayment(ctx context.Context, req CancelPaymentRequest) (*RefundResult, error) {
	result := &RefundResult{RefundID: c.next("mock_refund")}
	if req.Amount != nil {
		result.RefundedAmount = *req.Amount
	}
	c.logger.Debug("mock gateway refund", "payment_id", req.PaymentID)
	return result, nil
}

// TransferToBank pretends the transfer succeeded.
func (c *MockClient) TransferToBank(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	c.logger.Debug("mock gateway transfer",
		"amount", req.Amount.String(),
		"bank_code", req.BankDetails.BankCode(),
	)
	return &TransferResult{
		TransferID: c.next("mock_transfer"),
		Status:     "completed",
	}, nil
}
