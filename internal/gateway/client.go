// Package gateway adapts the external payment/transfer provider. It
// carries no business logic: the escrow ledger and settlement batch decide
// what to move, the gateway only moves it.
package gateway

import (
	"context"
	"time"

	shared "github.com/felixgeelhaar/trustline/internal/shared/domain"
)

// PaymentStatus reports the provider-side state of a payment.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
	PaymentFailed  PaymentStatus = "failed"
)

// Customer identifies the paying customer towards the provider.
type Customer struct {
	ID    string
	Name  string
	Email string
}

// CreatePaymentRequest charges a stored payment credential.
// PaymentID doubles as the provider-side idempotency key, so retrying a
// failed call with the same ID can never double-charge.
type CreatePaymentRequest struct {
	PaymentID     string
	OrderName     string
	Amount        shared.Money
	CredentialRef string
	Customer      Customer
}

// PaymentResult is the outcome of a successful charge.
type PaymentResult struct {
	TransactionID string
	Status        PaymentStatus
	PaidAt        time.Time
}

// CancelPaymentRequest refunds a payment, optionally partially.
type CancelPaymentRequest struct {
	PaymentID string
	Reason    string
	// Amount is the partial refund amount; nil refunds the full payment.
	Amount *shared.Money
}

// RefundResult is the outcome of a successful refund.
type RefundResult struct {
	RefundID       string
	RefundedAmount shared.Money
}

// TransferRequest moves settled funds to a payee's bank account.
type TransferRequest struct {
	Amount      shared.Money
	BankDetails shared.BankDetails
	Reason      string
}

// TransferResult is the outcome of a successful bank transfer.
type TransferResult struct {
	TransferID string
	Status     string
}

// Client is the payment-gateway port. Implementations return a
// DomainError with CodeGateway for provider-side failures so callers can
// record the failure without aborting unrelated work.
type Client interface {
	CreatePaymentWithStoredCredential(ctx context.Context, req CreatePaymentRequest) (*PaymentResult, error)
	CancelPayment(ctx context.Context, req CancelPaymentRequest) (*RefundResult, error)
	TransferToBank(ctx context.Context, req TransferRequest) (*TransferResult, error)
}
