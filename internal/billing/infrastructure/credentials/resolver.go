// Package credentials resolves stored payment credentials for renewal
// charges.
package credentials

import (
	"context"

	"github.com/felixgeelhaar/trustline/internal/billing/domain"
	shared "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/google/uuid"
)

// StaticResolver resolves every user to one configured stored
// credential. It backs deployments where the provider keeps a single
// billing key per merchant account rather than per-customer credentials.
type StaticResolver struct {
	credentialRef string
}

// NewStaticResolver creates a resolver around a fixed credential
// reference. An empty reference means no fallback exists.
func NewStaticResolver(credentialRef string) *StaticResolver {
	return &StaticResolver{credentialRef: credentialRef}
}

// DefaultCredential returns the configured credential reference.
func (r *StaticResolver) DefaultCredential(ctx context.Context, userID uuid.UUID) (string, error) {
	if r.credentialRef == "" {
		return "", shared.NewDomainError(shared.CodeConfiguration, "no default billing credential configured")
	}
	return r.credentialRef, nil
}

var _ domain.CredentialResolver = (*StaticResolver)(nil)
