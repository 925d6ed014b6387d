package domain

import shared "github.com/felixgeelhaar/trustline/internal/shared/domain"

var (
	// ErrPayoutNotFound is returned when the payout does not exist.
	ErrPayoutNotFound = shared.NewDomainError(shared.CodeNotFound, "payout not found")

	// ErrInvalidPayoutState rejects a transition not allowed by the
	// payout's current status.
	ErrInvalidPayoutState = shared.NewDomainError(shared.CodeInvalidState, "operation not allowed in current payout status")

	// ErrSettlementDisabled is returned when settlement is turned off by
	// configuration.
	ErrSettlementDisabled = shared.NewDomainError(shared.CodeConfiguration, "settlement is disabled")

	// ErrRunInProgress guards against overlapping batch runs.
	ErrRunInProgress = shared.NewDomainError(shared.CodeInvalidState, "a settlement run is already in progress")

	// ErrMissingBankDetails puts a payout on hold until the payee
	// completes their bank information.
	ErrMissingBankDetails = shared.NewDomainError(shared.CodeConfiguration, "payee has no complete bank details")
)
