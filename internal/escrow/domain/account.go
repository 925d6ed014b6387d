package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/google/uuid"
)

// AccountRole distinguishes the two sides of an escrow relationship.
type AccountRole string

const (
	RolePayer AccountRole = "payer"
	RolePayee AccountRole = "payee"
)

// AccountStatus represents the administrative state of an account.
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
)

// KYCStatus gates whether a payee account may receive payouts.
type KYCStatus string

const (
	KYCUnverified KYCStatus = "unverified"
	KYCPending    KYCStatus = "pending"
	KYCVerified   KYCStatus = "verified"
	KYCRejected   KYCStatus = "rejected"
)

// Account is one user's escrow balance sheet for one role. The three
// buckets are never merged; the only legal flow for settled funds is
// pending -> withdrawable -> 0. Balances are mutated only by the ledger
// and the settlement batch, never by request handlers.
type Account struct {
	sharedDomain.BaseAggregateRoot
	userID       uuid.UUID
	role         AccountRole
	available    sharedDomain.Money
	pending      sharedDomain.Money
	withdrawable sharedDomain.Money
	status       AccountStatus
	kycStatus    KYCStatus
	bankDetails  sharedDomain.BankDetails
}

// NewAccount creates an active, unverified account with zero balances.
func NewAccount(userID uuid.UUID, role AccountRole, currency string) *Account {
	return &Account{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		userID:            userID,
		role:              role,
		available:         sharedDomain.Zero(currency),
		pending:           sharedDomain.Zero(currency),
		withdrawable:      sharedDomain.Zero(currency),
		status:            AccountActive,
		kycStatus:         KYCUnverified,
	}
}

func (a *Account) UserID() uuid.UUID                     { return a.userID }
func (a *Account) Role() AccountRole                     { return a.role }
func (a *Account) Available() sharedDomain.Money         { return a.available }
func (a *Account) Pending() sharedDomain.Money           { return a.pending }
func (a *Account) Withdrawable() sharedDomain.Money      { return a.withdrawable }
func (a *Account) Status() AccountStatus                 { return a.status }
func (a *Account) KYCStatus() KYCStatus                  { return a.kycStatus }
func (a *Account) BankDetails() sharedDomain.BankDetails { return a.bankDetails }

// IsVerified reports whether the account passed identity verification.
func (a *Account) IsVerified() bool { return a.kycStatus == KYCVerified }

// SetBankDetails stores the payout destination.
func (a *Account) SetBankDetails(details sharedDomain.BankDetails) {
	a.bankDetails = details
	a.Touch()
}

// SetKYCStatus records the outcome of an identity verification check.
func (a *Account) SetKYCStatus(status KYCStatus) {
	a.kycStatus = status
	a.Touch()
}

// CreditPending adds released escrow funds to the pending bucket.
func (a *Account) CreditPending(amount sharedDomain.Money) error {
	sum, err := a.pending.Add(amount)
	if err != nil {
		return err
	}
	a.pending = sum
	a.Touch()
	return nil
}

// SettlePending moves settled funds from pending to withdrawable.
func (a *Account) SettlePending(amount sharedDomain.Money) error {
	if a.pending.LessThan(amount) {
		return ErrInsufficientBalance
	}
	p, err := a.pending.Sub(amount)
	if err != nil {
		return err
	}
	w, err := a.withdrawable.Add(amount)
	if err != nil {
		return err
	}
	a.pending = p
	a.withdrawable = w
	a.Touch()
	return nil
}

// Withdraw removes transferred funds from the withdrawable bucket.
func (a *Account) Withdraw(amount sharedDomain.Money) error {
	if a.withdrawable.LessThan(amount) {
		return ErrInsufficientBalance
	}
	w, err := a.withdrawable.Sub(amount)
	if err != nil {
		return err
	}
	a.withdrawable = w
	a.Touch()
	return nil
}

// RehydrateAccount recreates an account from persisted state.
func RehydrateAccount(
	id, userID uuid.UUID,
	role AccountRole,
	available, pending, withdrawable sharedDomain.Money,
	status AccountStatus,
	kycStatus KYCStatus,
	bankDetails sharedDomain.BankDetails,
	createdAt, updatedAt time.Time,
) *Account {
	base := sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)
	return &Account{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(base, 0),
		userID:            userID,
		role:              role,
		available:         available,
		pending:           pending,
		withdrawable:      withdrawable,
		status:            status,
		kycStatus:         kycStatus,
		bankDetails:       bankDetails,
	}
}
