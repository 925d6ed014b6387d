package domain

import sharedDomain "github.com/felixgeelhaar/trustline/internal/shared/domain"

var (
	ErrSubscriptionNotFound = sharedDomain.NewDomainError(sharedDomain.CodeNotFound, "subscription not found")
	ErrPlanNotFound         = sharedDomain.NewDomainError(sharedDomain.CodeNotFound, "plan not found")

	ErrInvalidSubscriptionState = sharedDomain.NewDomainError(sharedDomain.CodeInvalidState, "subscription is not in a valid state for this operation")
	ErrInvalidPlanInterval      = sharedDomain.NewDomainError(sharedDomain.CodeValidation, "plan interval must be at least one month")
	ErrInvalidPlanPrice         = sharedDomain.NewDomainError(sharedDomain.CodeValidation, "plan price must be positive")

	// ErrNoCredential means neither the subscription nor the user has a
	// stored payment credential to charge.
	ErrNoCredential = sharedDomain.NewDomainError(sharedDomain.CodeConfiguration, "no stored payment credential")
)
