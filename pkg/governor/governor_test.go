package governor

import (
	"context"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"govfed/pkg/canonical"
	"govfed/pkg/config"
	"govfed/pkg/transport"
	"govfed/pkg/trust"
	"govfed/pkg/types"
)

// fakeClient simulates the remote side of the federation for governor tests.
type fakeClient struct {
	identities   map[string]*types.OrganizationIdentity
	attestations map[string][]*types.ComplianceAttestation
	pull         map[string]*transport.PullResponse
	pullErr      map[string]error
}

func (f *fakeClient) FetchIdentity(_ context.Context, domain string) (*types.OrganizationIdentity, error) {
	identity, ok := f.identities[domain]
	if !ok {
		return nil, fmt.Errorf("no identity for %s", domain)
	}
	return identity.Clone(), nil
}

func (f *fakeClient) FetchAttestations(_ context.Context, _ string, orgID string) ([]*types.ComplianceAttestation, error) {
	attestations, ok := f.attestations[orgID]
	if !ok {
		return nil, fmt.Errorf("attestation endpoint unreachable for %s", orgID)
	}
	return attestations, nil
}

func (f *fakeClient) PushPolicy(_ context.Context, _ string, _ *types.FederatedPolicy) error {
	return nil
}

func (f *fakeClient) PullPolicies(_ context.Context, endpoint, _ string) (*transport.PullResponse, error) {
	if err := f.pullErr[endpoint]; err != nil {
		return nil, err
	}
	resp, ok := f.pull[endpoint]
	if !ok {
		return &transport.PullResponse{}, nil
	}
	return resp, nil
}

func testConfig() *config.FederationConfig {
	return &config.FederationConfig{
		OrgID:                "org-local",
		Name:                 "Local Org",
		Domain:               "local.example",
		Role:                 string(types.RoleLeader),
		SigningKey:           hex.EncodeToString([]byte("local-signing-key")),
		FederationEndpoint:   "https://local.example/api",
		ComplianceFrameworks: []string{string(types.FrameworkSOC2)},
	}
}

func remoteIdentity(orgID, domain string) *types.OrganizationIdentity {
	return &types.OrganizationIdentity{
		OrgID:              orgID,
		Name:               orgID,
		Domain:             domain,
		SigningKey:         []byte(orgID + "-key"),
		FederationEndpoint: "https://" + domain + "/api",
		Role:               types.RoleLeader,
	}
}

func validAttestation(orgID string, framework types.Framework) *types.ComplianceAttestation {
	return &types.ComplianceAttestation{
		AttestationID: orgID + "-" + string(framework),
		OrgID:         orgID,
		Framework:     framework,
		AttestedAt:    time.Now().Add(-time.Hour),
		ValidUntil:    time.Now().Add(24 * time.Hour),
	}
}

func setupGovernor(t *testing.T, client transport.Client) *Governor {
	t.Helper()

	g, err := New(testConfig(), client, zap.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(g.Close)

	return g
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.SigningKey = ""

	_, err := New(cfg, &fakeClient{}, zap.NewNop(), nil)
	assert.Error(t, err)
}

func TestJoinFederation(t *testing.T) {
	leader := remoteIdentity("org-leader", "leader.example")
	client := &fakeClient{
		identities: map[string]*types.OrganizationIdentity{"leader.example": leader},
		attestations: map[string][]*types.ComplianceAttestation{
			"org-leader": {validAttestation("org-leader", types.FrameworkSOC2)},
		},
	}
	g := setupGovernor(t, client)

	err := g.JoinFederation(context.Background(), "leader.example", []types.Framework{types.FrameworkSOC2})
	require.NoError(t, err)

	stored, ok := g.KnownOrganization("org-leader")
	require.True(t, ok, "leader identity should be stored")
	assert.Equal(t, types.TrustCertified, stored.TrustLevel)

	events := g.Audit().EventsForOrg("org-leader", nil, []string{"federation_join"})
	require.Len(t, events, 1)
	assert.Equal(t, "org-local", events[0].SourceOrgID)
}

func TestJoinFederation_MissingCompliance(t *testing.T) {
	leader := remoteIdentity("org-leader", "leader.example")
	client := &fakeClient{
		identities: map[string]*types.OrganizationIdentity{"leader.example": leader},
		attestations: map[string][]*types.ComplianceAttestation{
			"org-leader": {validAttestation("org-leader", types.FrameworkSOC2)},
		},
	}
	g := setupGovernor(t, client)

	err := g.JoinFederation(context.Background(), "leader.example", []types.Framework{types.FrameworkHIPAA})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HIPAA")

	_, ok := g.KnownOrganization("org-leader")
	assert.False(t, ok, "identity should not be stored after a failed join")
	assert.Equal(t, trust.StateUntrusted, g.Trust().StateOf("org-leader"))
}

func TestJoinFederation_UnreachableLeader(t *testing.T) {
	g := setupGovernor(t, &fakeClient{})

	err := g.JoinFederation(context.Background(), "leader.example", nil)
	assert.Error(t, err)
	assert.Equal(t, 0, g.Status().KnownOrganizations)
}

func TestCreateFederation(t *testing.T) {
	g := setupGovernor(t, &fakeClient{})

	agreement, err := g.CreateFederation("research-fed", "shared research governance", []string{"pol-1"}, []types.Framework{types.FrameworkGDPR})
	require.NoError(t, err)

	assert.Equal(t, "org-local", agreement.LeaderOrgID)
	assert.Equal(t, []string{"org-local"}, agreement.MemberOrgIDs)
	require.Contains(t, agreement.Signatures, "org-local")

	valid, err := g.Trust().VerifyAgreementSignature(agreement, g.Local())
	require.NoError(t, err)
	assert.True(t, valid, "local signature should verify")

	stored, ok := g.Agreement(agreement.AgreementID)
	require.True(t, ok)
	assert.Equal(t, "research-fed", stored.Name)

	assert.Equal(t, 1, g.Audit().Len(), "federation_create should be logged")
}

func TestInviteMember(t *testing.T) {
	target := remoteIdentity("org-target", "target.example")
	client := &fakeClient{
		identities: map[string]*types.OrganizationIdentity{"target.example": target},
	}
	g := setupGovernor(t, client)

	agreement, err := g.CreateFederation("fed", "", nil, nil)
	require.NoError(t, err)

	invitation, err := g.InviteMember(context.Background(), agreement.AgreementID, "target.example")
	require.NoError(t, err)
	assert.Equal(t, "org-target", invitation.TargetOrgID)
	assert.NotEmpty(t, invitation.InvitationID)
	assert.True(t, invitation.ExpiresAt.After(invitation.CreatedAt))

	_, ok := g.KnownOrganization("org-target")
	assert.True(t, ok, "discovered target should be stored")

	events := g.Audit().EventsForOrg("org-target", nil, []string{"federation_invite"})
	require.Len(t, events, 1)

	// Unknown agreement is rejected before any discovery.
	_, err = g.InviteMember(context.Background(), "no-such-agreement", "target.example")
	assert.Error(t, err)
}

func TestSyncPolicies_Resilience(t *testing.T) {
	remoteKey := []byte("org-good-key")
	pol := &types.FederatedPolicy{
		PolicyID:      "pol-remote",
		Name:          "remote policy",
		Content:       "content",
		Scope:         types.ScopeShared,
		OwnerOrgID:    "org-good",
		Version:       "1.0.0",
		EffectiveFrom: time.Now(),
	}
	pol.ContentHash = canonical.HashContent(pol.Content)
	signable := pol.Clone()
	signable.Signature = ""
	sig, err := canonical.Sign(remoteKey, signable)
	require.NoError(t, err)
	pol.Signature = sig

	good := remoteIdentity("org-good", "good.example")
	good.SigningKey = remoteKey
	bad := remoteIdentity("org-bad", "bad.example")

	client := &fakeClient{
		identities: map[string]*types.OrganizationIdentity{
			"good.example": good,
			"bad.example":  bad,
		},
		pull: map[string]*transport.PullResponse{
			"https://good.example/api": {
				Policies:  []*types.FederatedPolicy{pol},
				OwnerKeys: map[string]types.HexBytes{"org-good": remoteKey},
			},
		},
		pullErr: map[string]error{
			"https://bad.example/api": fmt.Errorf("peer unreachable"),
		},
	}
	g := setupGovernor(t, client)

	// Register both peers through discovery.
	_, err = g.Trust().Discover(context.Background(), "good.example")
	require.NoError(t, err)
	g.storeOrg(good)
	g.storeOrg(bad)

	total, err := g.SyncPolicies(context.Background())
	require.NoError(t, err, "one unreachable peer must not abort the sweep")
	assert.Equal(t, 1, total, "count should sum successes from reachable peers")
}

func TestStatus(t *testing.T) {
	target := remoteIdentity("org-target", "target.example")
	client := &fakeClient{
		identities: map[string]*types.OrganizationIdentity{"target.example": target},
	}
	g := setupGovernor(t, client)

	agreement, err := g.CreateFederation("fed", "", nil, nil)
	require.NoError(t, err)
	_, err = g.InviteMember(context.Background(), agreement.AgreementID, "target.example")
	require.NoError(t, err)
	_, err = g.Policies().CreatePolicy("local", "", "content", types.ScopeLocal, nil, nil)
	require.NoError(t, err)

	status := g.Status()
	assert.Equal(t, "org-local", status.OrgID)
	assert.Equal(t, types.RoleLeader, status.Role)
	assert.Equal(t, 1, status.KnownOrganizations)
	assert.Equal(t, 1, status.ActiveAgreements)
	assert.Equal(t, 1, status.LocalPolicies)
	assert.Equal(t, 1, status.PendingInvitations)
	assert.Equal(t, 2, status.AuditEvents, "create and invite should both be logged")
	assert.Equal(t, 0, status.CommittedRoots, "batch is still open")
}

func TestInviteManager_SingleUseAndExpiry(t *testing.T) {
	im := NewInviteManager(50 * time.Millisecond)
	defer im.Stop()

	invitation := im.Create("agr-1", "org-target", "target.example")

	accepted, err := im.Accept(invitation.InvitationID)
	require.NoError(t, err)
	assert.True(t, accepted.Accepted)

	_, err = im.Accept(invitation.InvitationID)
	assert.Error(t, err, "invitation is single use")

	expiring := im.Create("agr-1", "org-other", "other.example")
	time.Sleep(75 * time.Millisecond)
	_, err = im.Accept(expiring.InvitationID)
	assert.Error(t, err, "expired invitation cannot be accepted")

	assert.Equal(t, 0, im.Pending())
}
