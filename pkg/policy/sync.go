package policy

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"govfed/pkg/canonical"
	"govfed/pkg/types"
)

// Push transmits the named policy to every endpoint independently and
// concurrently. There is no cross-endpoint atomicity: the returned map holds
// one success/failure entry per endpoint and partial success is expected.
func (p *Protocol) Push(ctx context.Context, policyID string, endpoints []string) (map[string]bool, error) {
	pol, ok := p.Get(policyID)
	if !ok {
		return nil, fmt.Errorf("policy %s not found", policyID)
	}

	results := make(map[string]bool, len(endpoints))
	var resultsMu sync.Mutex

	var group errgroup.Group
	for _, endpoint := range endpoints {
		endpoint := endpoint
		group.Go(func() error {
			err := p.client.PushPolicy(ctx, endpoint, pol)
			if err != nil {
				p.logger.Warn("Policy push failed",
					zap.String("policy_id", policyID),
					zap.String("endpoint", endpoint),
					zap.Error(err))
			}

			resultsMu.Lock()
			results[endpoint] = err == nil
			resultsMu.Unlock()

			p.metrics.IncPolicyPush(err == nil)

			// Endpoint failures are recorded per endpoint, never
			// propagated, so the remaining pushes always run.
			return nil
		})
	}
	_ = group.Wait()

	return results, nil
}

// Pull requests policies from a remote endpoint, optionally only those newer
// than sinceVersion. Every returned policy's signature is verified against
// the claimed owner's key material; policies failing verification are
// silently discarded. Accepted policies are cached per source organization.
func (p *Protocol) Pull(ctx context.Context, endpoint, sinceVersion string) ([]*types.FederatedPolicy, error) {
	resp, err := p.client.PullPolicies(ctx, endpoint, sinceVersion)
	if err != nil {
		p.metrics.IncPolicyPull(false)
		return nil, fmt.Errorf("pull from %s failed: %w", endpoint, err)
	}

	accepted := make([]*types.FederatedPolicy, 0, len(resp.Policies))
	for _, pol := range resp.Policies {
		if !p.verifyRemote(pol, resp.OwnerKeys) {
			p.logger.Debug("Discarding policy with invalid signature",
				zap.String("policy_id", pol.PolicyID),
				zap.String("owner_org_id", pol.OwnerOrgID))
			continue
		}
		accepted = append(accepted, pol.Clone())
	}

	p.mu.Lock()
	for _, pol := range accepted {
		cache, ok := p.remoteCache[pol.OwnerOrgID]
		if !ok {
			cache = make(map[string]*types.FederatedPolicy)
			p.remoteCache[pol.OwnerOrgID] = cache
		}
		cache[pol.PolicyID] = pol.Clone()
	}
	p.mu.Unlock()

	p.metrics.IncPolicyPull(true)

	p.logger.Info("Pulled policies",
		zap.String("endpoint", endpoint),
		zap.Int("received", len(resp.Policies)),
		zap.Int("accepted", len(accepted)))

	return accepted, nil
}

// CachedFrom returns the verified policies previously pulled from a source
// organization.
func (p *Protocol) CachedFrom(sourceOrgID string) []*types.FederatedPolicy {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cache := p.remoteCache[sourceOrgID]
	out := make([]*types.FederatedPolicy, 0, len(cache))
	for _, pol := range cache {
		out = append(out, pol.Clone())
	}
	return out
}

// verifyRemote checks a pulled policy's signature and content hash against
// the owner's key material. Records crossing an organizational boundary are
// never trusted without re-verification.
func (p *Protocol) verifyRemote(pol *types.FederatedPolicy, ownerKeys map[string]types.HexBytes) bool {
	key, ok := ownerKeys[pol.OwnerOrgID]
	if !ok {
		return false
	}
	if pol.ContentHash != canonical.HashContent(pol.Content) {
		return false
	}
	valid, err := canonical.Verify(key, signablePolicy(pol), pol.Signature)
	if err != nil {
		return false
	}
	return valid
}
