package domain

import (
	"context"

	"github.com/google/uuid"
)

// ContractRepository persists contracts together with their stages.
type ContractRepository interface {
	Save(ctx context.Context, contract *Contract) error
	FindByID(ctx context.Context, id uuid.UUID) (*Contract, error)
	FindByParty(ctx context.Context, userID uuid.UUID) ([]*Contract, error)
}

// TransactionRepository persists escrow transactions.
type TransactionRepository interface {
	Save(ctx context.Context, tx *Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	// FindByExternalReference resolves the idempotency key of a webhook
	// event. Returns nil when no transaction recorded the reference yet.
	FindByExternalReference(ctx context.Context, contractID, stageID uuid.UUID, reference string) (*Transaction, error)
	FindByContract(ctx context.Context, contractID uuid.UUID) ([]*Transaction, error)
	FindByContractAndStatus(ctx context.Context, contractID uuid.UUID, statuses ...TransactionStatus) ([]*Transaction, error)
	// FindReleasedWithoutPayout returns settlement candidates: released
	// transactions not yet attached to any payout.
	FindReleasedWithoutPayout(ctx context.Context) ([]*Transaction, error)
}

// AccountRepository persists escrow accounts keyed by user and role.
// FindByUserAndRole returns nil when the account does not exist yet; the
// ledger creates accounts lazily on first credit.
type AccountRepository interface {
	Save(ctx context.Context, account *Account) error
	FindByUserAndRole(ctx context.Context, userID uuid.UUID, role AccountRole) (*Account, error)
}
