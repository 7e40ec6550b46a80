package trust

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"govfed/pkg/types"
)

// ComplianceResult reports the outcome of compliance verification. When
// Verified is false, Missing names exactly the frameworks the organization
// could not attest to.
type ComplianceResult struct {
	Verified bool
	Missing  []types.Framework
}

// VerifyCompliance fetches the organization's current attestations and
// checks that every required framework is covered by a non-expired one.
// Failure resets the relationship to UNTRUSTED.
func (p *Protocol) VerifyCompliance(ctx context.Context, org *types.OrganizationIdentity, required []types.Framework) (*ComplianceResult, error) {
	attestations, err := p.client.FetchAttestations(ctx, org.FederationEndpoint, org.OrgID)
	if err != nil {
		p.mu.Lock()
		p.resetLocked(org.OrgID)
		p.mu.Unlock()
		return nil, fmt.Errorf("failed to fetch attestations for %s: %w", org.OrgID, err)
	}

	now := time.Now()
	attested := make(map[types.Framework]bool, len(attestations))
	for _, attestation := range attestations {
		if attestation.IsValid(now) {
			attested[attestation.Framework] = true
		}
	}

	var missing []types.Framework
	for _, framework := range required {
		if !attested[framework] {
			missing = append(missing, framework)
		}
	}

	if len(missing) > 0 {
		p.mu.Lock()
		p.resetLocked(org.OrgID)
		p.mu.Unlock()

		p.logger.Warn("Compliance verification failed",
			zap.String("org_id", org.OrgID),
			zap.Any("missing_frameworks", missing))

		return &ComplianceResult{Verified: false, Missing: missing}, nil
	}

	p.mu.Lock()
	p.states[org.OrgID] = StateComplianceVerified
	p.mu.Unlock()

	org.TrustLevel = types.TrustCertified

	p.logger.Info("Compliance verified",
		zap.String("org_id", org.OrgID),
		zap.Int("frameworks", len(required)))

	return &ComplianceResult{Verified: true}, nil
}
