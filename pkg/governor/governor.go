// Package governor composes the trust, policy, and audit components into
// member-facing federation operations and owns the canonical in-memory
// registries: known remote identities, active agreements, and pending
// invitations. Construct one Governor per organizational context; nothing
// here is process-wide.
package governor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"govfed/pkg/audit"
	"govfed/pkg/config"
	"govfed/pkg/metrics"
	"govfed/pkg/policy"
	"govfed/pkg/transport"
	"govfed/pkg/trust"
	"govfed/pkg/types"
)

// Governor coordinates federation membership for one local organization.
type Governor struct {
	mu sync.RWMutex

	local *types.OrganizationIdentity

	trust    *trust.Protocol
	policies *policy.Protocol
	audit    *audit.Trail

	orgs       map[string]*types.OrganizationIdentity
	agreements map[string]*types.FederationAgreement
	invites    *InviteManager

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New builds a governor from configuration. The transport client is injected
// so tests can substitute fakes.
func New(cfg *config.FederationConfig, client transport.Client, logger *zap.Logger, m *metrics.Metrics) (*Governor, error) {
	local, err := cfg.Identity()
	if err != nil {
		return nil, fmt.Errorf("invalid federation config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	window := time.Duration(cfg.ChallengeWindowSeconds) * time.Second

	g := &Governor{
		local:      local,
		trust:      trust.NewProtocol(local, client, window, logger.Named("trust")),
		policies:   policy.NewProtocol(local, client, logger.Named("policy"), m),
		audit:      audit.New(local, cfg.AuditBatchSize, cfg.AuditLeafWidth, logger.Named("audit"), m),
		orgs:       make(map[string]*types.OrganizationIdentity),
		agreements: make(map[string]*types.FederationAgreement),
		invites:    NewInviteManager(DefaultInviteValidity),
		logger:     logger,
		metrics:    m,
	}
	return g, nil
}

// Local returns a copy of the local organization identity.
func (g *Governor) Local() *types.OrganizationIdentity {
	return g.local.Clone()
}

// Trust exposes the trust protocol, e.g. for completing challenge round
// trips driven by an external transport.
func (g *Governor) Trust() *trust.Protocol {
	return g.trust
}

// Policies exposes the policy protocol.
func (g *Governor) Policies() *policy.Protocol {
	return g.policies
}

// Audit exposes the audit trail.
func (g *Governor) Audit() *audit.Trail {
	return g.audit
}

// Close releases background resources.
func (g *Governor) Close() {
	g.invites.Stop()
}

// JoinFederation discovers the leader, prepares the local half of the
// challenge exchange, verifies the leader's compliance, and on success
// stores the leader's identity and logs a federation_join event. Completing
// the challenge round trip against the remote is a transport concern.
func (g *Governor) JoinFederation(ctx context.Context, leaderDomain string, required []types.Framework) error {
	leader, err := g.trust.Discover(ctx, leaderDomain)
	if err != nil {
		return fmt.Errorf("failed to join federation: %w", err)
	}

	if _, err := g.trust.IssueChallenge(leader.OrgID); err != nil {
		return fmt.Errorf("failed to join federation: %w", err)
	}

	result, err := g.trust.VerifyCompliance(ctx, leader, required)
	if err != nil {
		return fmt.Errorf("failed to join federation: %w", err)
	}
	if !result.Verified {
		return fmt.Errorf("leader %s is missing required compliance frameworks: %v", leader.OrgID, result.Missing)
	}

	g.storeOrg(leader)

	if _, err := g.audit.LogEvent("federation_join", []string{leader.OrgID}, map[string]any{
		"leader_domain": leaderDomain,
	}); err != nil {
		g.logger.Warn("Failed to log join event", zap.Error(err))
	}

	g.logger.Info("Joined federation",
		zap.String("leader_org_id", leader.OrgID),
		zap.String("leader_domain", leaderDomain))

	return nil
}

// CreateFederation builds a new agreement naming the local organization as
// leader and sole member, signs it locally, and stores it as active.
func (g *Governor) CreateFederation(name, description string, initialPolicies []string, compliance []types.Framework) (*types.FederationAgreement, error) {
	now := time.Now()
	agreement := &types.FederationAgreement{
		AgreementID:           uuid.NewString(),
		Name:                  name,
		Description:           description,
		LeaderOrgID:           g.local.OrgID,
		MemberOrgIDs:          []string{g.local.OrgID},
		CreatedAt:             now,
		EffectiveFrom:         now,
		SharedPolicies:        append([]string(nil), initialPolicies...),
		MutualCompliance:      append([]types.Framework(nil), compliance...),
		DisputeResolution:     "leader_arbitration",
		TerminationNoticeDays: 30,
		Signatures:            make(map[string]string),
	}

	if err := g.trust.SignAgreement(agreement, g.local); err != nil {
		return nil, fmt.Errorf("failed to create federation: %w", err)
	}

	g.mu.Lock()
	g.agreements[agreement.AgreementID] = agreement
	g.mu.Unlock()

	if _, err := g.audit.LogEvent("federation_create", nil, map[string]any{
		"agreement_id": agreement.AgreementID,
		"name":         name,
	}); err != nil {
		g.logger.Warn("Failed to log create event", zap.Error(err))
	}

	g.logger.Info("Created federation",
		zap.String("agreement_id", agreement.AgreementID),
		zap.String("name", name))

	return agreement.Clone(), nil
}

// InviteMember discovers the target organization and records an invitation
// against an existing agreement.
func (g *Governor) InviteMember(ctx context.Context, agreementID, targetDomain string) (*Invitation, error) {
	g.mu.RLock()
	_, ok := g.agreements[agreementID]
	g.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("agreement %s not found", agreementID)
	}

	target, err := g.trust.Discover(ctx, targetDomain)
	if err != nil {
		return nil, fmt.Errorf("failed to invite %s: %w", targetDomain, err)
	}

	g.storeOrg(target)

	invitation := g.invites.Create(agreementID, target.OrgID, targetDomain)

	if _, err := g.audit.LogEvent("federation_invite", []string{target.OrgID}, map[string]any{
		"agreement_id":  agreementID,
		"invitation_id": invitation.InvitationID,
		"target_domain": targetDomain,
	}); err != nil {
		g.logger.Warn("Failed to log invite event", zap.Error(err))
	}

	g.logger.Info("Invited member",
		zap.String("agreement_id", agreementID),
		zap.String("target_org_id", target.OrgID))

	return invitation, nil
}

// SyncPolicies sweeps every known remote organization, pulling policies from
// each. A failure against one peer is logged and does not abort the sweep;
// the summed count of accepted policies is returned.
func (g *Governor) SyncPolicies(ctx context.Context) (int, error) {
	g.mu.RLock()
	peers := make([]*types.OrganizationIdentity, 0, len(g.orgs))
	for _, org := range g.orgs {
		if org.OrgID == g.local.OrgID {
			continue
		}
		peers = append(peers, org.Clone())
	}
	g.mu.RUnlock()

	total := 0
	for _, peer := range peers {
		accepted, err := g.policies.Pull(ctx, peer.FederationEndpoint, "")
		if err != nil {
			g.metrics.IncSyncFailures()
			g.logger.Warn("Policy sync failed for peer",
				zap.String("org_id", peer.OrgID),
				zap.Error(err))
			continue
		}
		total += len(accepted)
	}

	if _, err := g.audit.LogEvent("policy_sync", nil, map[string]any{
		"peers":    len(peers),
		"received": total,
	}); err != nil {
		g.logger.Warn("Failed to log sync event", zap.Error(err))
	}

	return total, nil
}

// Agreement returns a stored agreement by id.
func (g *Governor) Agreement(agreementID string) (*types.FederationAgreement, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	agreement, ok := g.agreements[agreementID]
	if !ok {
		return nil, false
	}
	return agreement.Clone(), true
}

// KnownOrganization returns a known remote identity by org id.
func (g *Governor) KnownOrganization(orgID string) (*types.OrganizationIdentity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	org, ok := g.orgs[orgID]
	if !ok {
		return nil, false
	}
	return org.Clone(), true
}

// storeOrg records or supersedes a discovered identity.
func (g *Governor) storeOrg(org *types.OrganizationIdentity) {
	g.mu.Lock()
	g.orgs[org.OrgID] = org.Clone()
	count := len(g.orgs)
	g.mu.Unlock()

	g.metrics.SetKnownOrganizations(count)
}
