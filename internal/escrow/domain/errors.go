package domain

import (
	shared "github.com/felixgeelhaar/trustline/internal/shared/domain"
)

// Sentinel business-rule violations for the escrow ledger. All carry a
// stable taxonomy code; adapters map codes to transport status codes.
var (
	// ErrContractNotFound is returned when the contract does not exist or
	// the caller is not a party to it. The two cases are indistinguishable
	// on purpose.
	ErrContractNotFound = shared.NewDomainError(shared.CodeNotFound, "contract not found")

	ErrStageNotFound = shared.NewDomainError(shared.CodeNotFound, "stage not found")

	ErrAccountNotFound = shared.NewDomainError(shared.CodeNotFound, "escrow account not found")

	ErrInvalidAmount = shared.NewDomainError(shared.CodeValidation, "amount must be positive")

	ErrInvalidDepositPercent = shared.NewDomainError(shared.CodeValidation, "deposit percent must be between 1 and 99")

	ErrAmountMismatch = shared.NewDomainError(shared.CodeAmountMismatch, "paid amount does not match stage amount")

	ErrInvalidContractState = shared.NewDomainError(shared.CodeInvalidState, "operation not allowed in current contract status")

	ErrInvalidStageState = shared.NewDomainError(shared.CodeInvalidState, "operation not allowed in current stage status")

	ErrInvalidTransactionState = shared.NewDomainError(shared.CodeInvalidState, "operation not allowed in current transaction status")

	ErrInsufficientBalance = shared.NewDomainError(shared.CodeInvalidState, "insufficient balance")
)
