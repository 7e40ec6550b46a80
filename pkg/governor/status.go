package governor

import (
	"govfed/pkg/types"
)

// Status is an operational snapshot of one governor instance.
type Status struct {
	OrgID              string           `json:"org_id"`
	Name               string           `json:"name"`
	Domain             string           `json:"domain"`
	Role               types.OrgRole    `json:"role"`
	TrustLevel         types.TrustLevel `json:"trust_level"`
	KnownOrganizations int              `json:"known_organizations"`
	ActiveAgreements   int              `json:"active_agreements"`
	LocalPolicies      int              `json:"local_policies"`
	PendingInvitations int              `json:"pending_invitations"`
	AuditEvents        int              `json:"audit_events"`
	CommittedRoots     int              `json:"committed_roots"`
}

// Status returns a snapshot of the governor's registries and components for
// operational visibility.
func (g *Governor) Status() *Status {
	g.mu.RLock()
	knownOrgs := len(g.orgs)
	agreements := len(g.agreements)
	g.mu.RUnlock()

	return &Status{
		OrgID:              g.local.OrgID,
		Name:               g.local.Name,
		Domain:             g.local.Domain,
		Role:               g.local.Role,
		TrustLevel:         g.local.TrustLevel,
		KnownOrganizations: knownOrgs,
		ActiveAgreements:   agreements,
		LocalPolicies:      g.policies.Count(),
		PendingInvitations: g.invites.Pending(),
		AuditEvents:        g.audit.Len(),
		CommittedRoots:     len(g.audit.Roots()),
	}
}
