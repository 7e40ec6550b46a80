// Package transport implements the federation HTTP client: identity
// discovery against a well-known path, attestation listing, and policy
// push/pull. All failures are returned as per-call errors so a slow or
// unreachable peer never takes down the caller.
package transport

import (
	"context"

	"govfed/pkg/types"
)

// WellKnownIdentityPath is the fixed path under an organization's domain
// where its identity document is published.
const WellKnownIdentityPath = "/.well-known/governance-federation.json"

// PullResponse carries the policies returned by a pull together with each
// owner's verification key material.
type PullResponse struct {
	Policies  []*types.FederatedPolicy  `json:"policies"`
	OwnerKeys map[string]types.HexBytes `json:"owner_keys"`
}

// Client is the network surface the federation protocols depend on. The
// production implementation is HTTPClient; tests substitute fakes.
type Client interface {
	// FetchIdentity retrieves the identity document published at the
	// organization's well-known path.
	FetchIdentity(ctx context.Context, domain string) (*types.OrganizationIdentity, error)

	// FetchAttestations lists the organization's compliance attestations.
	FetchAttestations(ctx context.Context, endpoint, orgID string) ([]*types.ComplianceAttestation, error)

	// PushPolicy transmits one policy record to a remote endpoint.
	PushPolicy(ctx context.Context, endpoint string, policy *types.FederatedPolicy) error

	// PullPolicies requests policies from a remote endpoint, optionally
	// only those newer than sinceVersion.
	PullPolicies(ctx context.Context, endpoint, sinceVersion string) (*PullResponse, error)
}
