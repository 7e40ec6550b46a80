// Package policy manages the lifecycle, versioning, distribution, and
// conflict resolution of governance-policy documents across trust-established
// peers. Version histories are append-only: an update produces a new record
// while every prior version stays retrievable.
package policy

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"govfed/pkg/canonical"
	"govfed/pkg/metrics"
	"govfed/pkg/transport"
	"govfed/pkg/types"
)

// Protocol owns one organization's policy store: the current record per
// policy id, the full append-only version history, and a per-source cache
// of policies accepted from remote pulls.
type Protocol struct {
	mu sync.RWMutex

	local  *types.OrganizationIdentity
	client transport.Client

	policies map[string]*types.FederatedPolicy
	history  map[string][]*types.FederatedPolicy

	// remoteCache holds verified policies per source organization.
	remoteCache map[string]map[string]*types.FederatedPolicy

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewProtocol creates a policy protocol instance for the local organization.
func NewProtocol(local *types.OrganizationIdentity, client transport.Client, logger *zap.Logger, m *metrics.Metrics) *Protocol {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Protocol{
		local:       local,
		client:      client,
		policies:    make(map[string]*types.FederatedPolicy),
		history:     make(map[string][]*types.FederatedPolicy),
		remoteCache: make(map[string]map[string]*types.FederatedPolicy),
		logger:      logger,
		metrics:     m,
	}
}

// CreatePolicy creates a new locally-owned policy at version 1.0.0, hashes
// and signs it, and starts its version history.
func (p *Protocol) CreatePolicy(name, description, content string, scope types.PolicyScope, allowedOrgs []string, requiredCompliance []types.Framework) (*types.FederatedPolicy, error) {
	pol := &types.FederatedPolicy{
		PolicyID:           uuid.NewString(),
		Name:               name,
		Description:        description,
		Content:            content,
		ContentHash:        canonical.HashContent(content),
		Scope:              scope,
		OwnerOrgID:         p.local.OrgID,
		Version:            "1.0.0",
		EffectiveFrom:      time.Now(),
		InheritanceChain:   []string{},
		AllowedOrgs:        append([]string(nil), allowedOrgs...),
		RequiredCompliance: append([]types.Framework(nil), requiredCompliance...),
	}

	if err := p.sign(pol); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.policies[pol.PolicyID] = pol
	p.history[pol.PolicyID] = []*types.FederatedPolicy{pol}
	p.mu.Unlock()

	p.logger.Info("Created policy",
		zap.String("policy_id", pol.PolicyID),
		zap.String("name", name),
		zap.String("scope", string(scope)))

	return pol.Clone(), nil
}

// UpdatePolicy produces a new version of a locally-owned policy. The
// outgoing version is appended to the inheritance chain, the hash and
// signature are recomputed, and the prior record stays in history.
func (p *Protocol) UpdatePolicy(policyID, content, bump string) (*types.FederatedPolicy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	current, ok := p.policies[policyID]
	if !ok {
		return nil, fmt.Errorf("policy %s not found", policyID)
	}
	if current.OwnerOrgID != p.local.OrgID {
		return nil, fmt.Errorf("policy %s is owned by %s, not locally updatable", policyID, current.OwnerOrgID)
	}

	newVersion, err := BumpVersion(current.Version, bump)
	if err != nil {
		return nil, err
	}

	updated := current.Clone()
	updated.InheritanceChain = append(updated.InheritanceChain, current.Version)
	updated.Version = newVersion
	updated.Content = content
	updated.ContentHash = canonical.HashContent(content)
	updated.EffectiveFrom = time.Now()

	if err := p.sign(updated); err != nil {
		return nil, err
	}

	p.policies[policyID] = updated
	p.history[policyID] = append(p.history[policyID], updated)

	p.logger.Info("Updated policy",
		zap.String("policy_id", policyID),
		zap.String("version", newVersion))

	return updated.Clone(), nil
}

// InheritPolicy imports a remote policy. With no override it is adopted
// verbatim under the INHERITED scope, keeping the remote id, version, and
// chain. With an override a new OVERRIDE-scoped derivative is created under
// a locally-suffixed id at version 1.0.0, and the remote owner and version
// are appended to the chain so provenance traces back to the ancestor.
func (p *Protocol) InheritPolicy(remote *types.FederatedPolicy, override string) (*types.FederatedPolicy, error) {
	var inherited *types.FederatedPolicy

	if override == "" {
		inherited = remote.Clone()
		inherited.Scope = types.ScopeInherited
	} else {
		inherited = remote.Clone()
		inherited.PolicyID = fmt.Sprintf("%s-%s", remote.PolicyID, shortOrgSuffix(p.local.OrgID))
		inherited.Scope = types.ScopeOverride
		inherited.OwnerOrgID = p.local.OrgID
		inherited.Version = "1.0.0"
		inherited.Content = override
		inherited.ContentHash = canonical.HashContent(override)
		inherited.EffectiveFrom = time.Now()
		inherited.InheritanceChain = append(inherited.InheritanceChain,
			fmt.Sprintf("%s:%s", remote.OwnerOrgID, remote.Version))

		if err := p.sign(inherited); err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	p.policies[inherited.PolicyID] = inherited
	p.history[inherited.PolicyID] = append(p.history[inherited.PolicyID], inherited)
	p.mu.Unlock()

	p.logger.Info("Inherited policy",
		zap.String("policy_id", inherited.PolicyID),
		zap.String("source_org_id", remote.OwnerOrgID),
		zap.String("scope", string(inherited.Scope)))

	return inherited.Clone(), nil
}

// Get returns the current version of a policy.
func (p *Protocol) Get(policyID string) (*types.FederatedPolicy, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pol, ok := p.policies[policyID]
	if !ok {
		return nil, false
	}
	return pol.Clone(), true
}

// History returns every stored version of a policy in append order.
func (p *Protocol) History(policyID string) []*types.FederatedPolicy {
	p.mu.RLock()
	defer p.mu.RUnlock()

	versions := p.history[policyID]
	out := make([]*types.FederatedPolicy, len(versions))
	for i, v := range versions {
		out[i] = v.Clone()
	}
	return out
}

// Count returns the number of policies in the local store.
func (p *Protocol) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.policies)
}

// sign recomputes the policy signature with the local key. Locally created
// and updated records are trusted without self-verification.
func (p *Protocol) sign(pol *types.FederatedPolicy) error {
	signature, err := canonical.Sign(p.local.SigningKey, signablePolicy(pol))
	if err != nil {
		return fmt.Errorf("failed to sign policy %s: %w", pol.PolicyID, err)
	}
	pol.Signature = signature
	return nil
}

// signablePolicy returns a copy with the signature field cleared, the exact
// record both signer and verifier canonicalize.
func signablePolicy(pol *types.FederatedPolicy) *types.FederatedPolicy {
	clone := pol.Clone()
	clone.Signature = ""
	return clone
}

// shortOrgSuffix derives the short local suffix used for override ids.
func shortOrgSuffix(orgID string) string {
	if len(orgID) <= 8 {
		return orgID
	}
	return orgID[:8]
}
