package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// OrgRole identifies an organization's role within a federation.
type OrgRole string

const (
	RoleLeader   OrgRole = "LEADER"
	RoleMember   OrgRole = "MEMBER"
	RoleObserver OrgRole = "OBSERVER"
	RoleBridge   OrgRole = "BRIDGE"
)

// TrustLevel is an ordinal classification of how thoroughly a relationship
// with another organization has been verified. Higher values imply all
// verification steps of the lower ones have succeeded.
type TrustLevel int

const (
	TrustNone TrustLevel = iota
	TrustBasic
	TrustVerified
	TrustCertified
	TrustFull
)

var trustLevelNames = map[TrustLevel]string{
	TrustNone:      "NONE",
	TrustBasic:     "BASIC",
	TrustVerified:  "VERIFIED",
	TrustCertified: "CERTIFIED",
	TrustFull:      "FULL",
}

func (t TrustLevel) String() string {
	if name, ok := trustLevelNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TrustLevel(%d)", int(t))
}

// Framework is a compliance framework tag.
type Framework string

const (
	FrameworkSOC2     Framework = "SOC2"
	FrameworkISO27001 Framework = "ISO27001"
	FrameworkGDPR     Framework = "GDPR"
	FrameworkHIPAA    Framework = "HIPAA"
	FrameworkEUAIAct  Framework = "EU_AI_ACT"
	FrameworkNISTRMF  Framework = "NIST_RMF"
	FrameworkFedRAMP  Framework = "FEDRAMP"
	FrameworkPIPL     Framework = "PIPL"
)

// PolicyScope describes how a policy is shared across the federation.
type PolicyScope string

const (
	ScopeLocal     PolicyScope = "LOCAL"
	ScopeShared    PolicyScope = "SHARED"
	ScopeInherited PolicyScope = "INHERITED"
	ScopeOverride  PolicyScope = "OVERRIDE"
)

// HexBytes is a byte sequence that serializes to a hex string so every
// record round-trips losslessly through JSON.
type HexBytes []byte

func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h))
}

func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hex value: %w", err)
	}
	*h = decoded
	return nil
}

// OrganizationIdentity is the identity document an organization publishes
// at its well-known discovery path.
type OrganizationIdentity struct {
	OrgID                string            `json:"org_id"`
	Name                 string            `json:"name"`
	Domain               string            `json:"domain"`
	SigningKey           HexBytes          `json:"signing_key"`
	FederationEndpoint   string            `json:"federation_endpoint"`
	Role                 OrgRole           `json:"role"`
	TrustLevel           TrustLevel        `json:"trust_level"`
	ComplianceFrameworks []Framework       `json:"compliance_frameworks"`
	VerifiedAt           *time.Time        `json:"verified_at,omitempty"`
	Metadata             map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the identity.
func (o *OrganizationIdentity) Clone() *OrganizationIdentity {
	if o == nil {
		return nil
	}
	clone := *o
	clone.SigningKey = append(HexBytes(nil), o.SigningKey...)
	clone.ComplianceFrameworks = append([]Framework(nil), o.ComplianceFrameworks...)
	if o.VerifiedAt != nil {
		t := *o.VerifiedAt
		clone.VerifiedAt = &t
	}
	if o.Metadata != nil {
		clone.Metadata = make(map[string]string, len(o.Metadata))
		for k, v := range o.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// HasFramework reports whether the identity advertises the given framework.
func (o *OrganizationIdentity) HasFramework(f Framework) bool {
	for _, have := range o.ComplianceFrameworks {
		if have == f {
			return true
		}
	}
	return false
}

// FederatedPolicy is a versioned governance-policy document. Records are
// append-only: updates produce a new record, prior versions stay in history.
type FederatedPolicy struct {
	PolicyID           string      `json:"policy_id"`
	Name               string      `json:"name"`
	Description        string      `json:"description"`
	Content            string      `json:"content"`
	ContentHash        string      `json:"content_hash"`
	Scope              PolicyScope `json:"scope"`
	OwnerOrgID         string      `json:"owner_org_id"`
	Version            string      `json:"version"`
	EffectiveFrom      time.Time   `json:"effective_from"`
	ExpiresAt          *time.Time  `json:"expires_at,omitempty"`
	InheritanceChain   []string    `json:"inheritance_chain"`
	AllowedOrgs        []string    `json:"allowed_orgs"`
	RequiredCompliance []Framework `json:"required_compliance"`
	Signature          string      `json:"signature"`
}

// Clone returns a deep copy of the policy.
func (p *FederatedPolicy) Clone() *FederatedPolicy {
	if p == nil {
		return nil
	}
	clone := *p
	clone.InheritanceChain = append([]string(nil), p.InheritanceChain...)
	clone.AllowedOrgs = append([]string(nil), p.AllowedOrgs...)
	clone.RequiredCompliance = append([]Framework(nil), p.RequiredCompliance...)
	if p.ExpiresAt != nil {
		t := *p.ExpiresAt
		clone.ExpiresAt = &t
	}
	return &clone
}

// FederationAgreement binds a leader and its members to a shared policy set.
// Signatures accumulate per organization as members sign over time.
type FederationAgreement struct {
	AgreementID           string            `json:"agreement_id"`
	Name                  string            `json:"name"`
	Description           string            `json:"description"`
	LeaderOrgID           string            `json:"leader_org_id"`
	MemberOrgIDs          []string          `json:"member_org_ids"`
	CreatedAt             time.Time         `json:"created_at"`
	EffectiveFrom         time.Time         `json:"effective_from"`
	ExpiresAt             *time.Time        `json:"expires_at,omitempty"`
	SharedPolicies        []string          `json:"shared_policies"`
	MutualCompliance      []Framework       `json:"mutual_compliance"`
	DisputeResolution     string            `json:"dispute_resolution"`
	DataResidencyRules    map[string]string `json:"data_residency_rules,omitempty"`
	TerminationNoticeDays int               `json:"termination_notice_days"`
	Signatures            map[string]string `json:"signatures"`
}

// Clone returns a deep copy of the agreement.
func (a *FederationAgreement) Clone() *FederationAgreement {
	if a == nil {
		return nil
	}
	clone := *a
	clone.MemberOrgIDs = append([]string(nil), a.MemberOrgIDs...)
	clone.SharedPolicies = append([]string(nil), a.SharedPolicies...)
	clone.MutualCompliance = append([]Framework(nil), a.MutualCompliance...)
	if a.ExpiresAt != nil {
		t := *a.ExpiresAt
		clone.ExpiresAt = &t
	}
	if a.DataResidencyRules != nil {
		clone.DataResidencyRules = make(map[string]string, len(a.DataResidencyRules))
		for k, v := range a.DataResidencyRules {
			clone.DataResidencyRules[k] = v
		}
	}
	if a.Signatures != nil {
		clone.Signatures = make(map[string]string, len(a.Signatures))
		for k, v := range a.Signatures {
			clone.Signatures[k] = v
		}
	}
	return &clone
}

// ComplianceAttestation is a time-bounded claim by an organization that it
// satisfies a named compliance framework.
type ComplianceAttestation struct {
	AttestationID string            `json:"attestation_id"`
	OrgID         string            `json:"org_id"`
	Framework     Framework         `json:"framework"`
	AttestedAt    time.Time         `json:"attested_at"`
	ValidUntil    time.Time         `json:"valid_until"`
	AuditorOrgID  string            `json:"auditor_org_id,omitempty"`
	EvidenceHash  string            `json:"evidence_hash"`
	Signature     string            `json:"signature"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// IsValid reports whether the attestation is still valid at the given time.
func (a *ComplianceAttestation) IsValid(now time.Time) bool {
	return now.Before(a.ValidUntil)
}

// FederationEvent is one signed, append-only entry in an organization's
// federation audit trail.
type FederationEvent struct {
	EventID      string         `json:"event_id"`
	EventType    string         `json:"event_type"`
	Timestamp    time.Time      `json:"timestamp"`
	SourceOrgID  string         `json:"source_org_id"`
	TargetOrgIDs []string       `json:"target_org_ids"`
	Payload      map[string]any `json:"payload,omitempty"`
	Signature    string         `json:"signature"`
}

// Involves reports whether the organization is the source or a target of
// the event.
func (e *FederationEvent) Involves(orgID string) bool {
	if e.SourceOrgID == orgID {
		return true
	}
	for _, target := range e.TargetOrgIDs {
		if target == orgID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the event.
func (e *FederationEvent) Clone() *FederationEvent {
	if e == nil {
		return nil
	}
	clone := *e
	clone.TargetOrgIDs = append([]string(nil), e.TargetOrgIDs...)
	if e.Payload != nil {
		clone.Payload = make(map[string]any, len(e.Payload))
		for k, v := range e.Payload {
			clone.Payload[k] = v
		}
	}
	return &clone
}

// MerkleRoot is the commitment over one full batch of audit events.
type MerkleRoot struct {
	RootHash    string    `json:"root_hash"`
	BatchIndex  int       `json:"batch_index"`
	CommittedAt time.Time `json:"committed_at"`
}
