// Package trust implements the four-phase handshake that establishes a
// bilateral trust relationship with a remote organization: discovery,
// challenge-response, compliance verification, and agreement signing. Each
// phase requires the prior one to have succeeded; any failure resets the
// relationship to UNTRUSTED so no partial trust survives a failed attempt.
package trust

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"govfed/pkg/transport"
	"govfed/pkg/types"
)

// State is the handshake state of a relationship with one remote
// organization.
type State string

const (
	StateUntrusted          State = "UNTRUSTED"
	StateDiscovered         State = "DISCOVERED"
	StateChallengeIssued    State = "CHALLENGE_ISSUED"
	StateChallengeVerified  State = "CHALLENGE_VERIFIED"
	StateComplianceVerified State = "COMPLIANCE_VERIFIED"
	StateAgreementSigned    State = "AGREEMENT_SIGNED"
)

// DefaultChallengeWindow bounds both the age of an issued challenge and the
// clock skew tolerated in a challenge response.
const DefaultChallengeWindow = 300 * time.Second

var (
	ErrNoPendingChallenge = errors.New("no pending challenge for organization")
	ErrChallengeExpired   = errors.New("challenge validity window elapsed")
	ErrSignatureMismatch  = errors.New("signature verification failed")
)

// pendingChallenge is the volatile record of one issued challenge.
type pendingChallenge struct {
	bytes    []byte
	issuedAt time.Time
}

// Protocol runs the trust establishment handshake for one local
// organization. Construct one Protocol per organizational context; there is
// no shared process-wide state.
type Protocol struct {
	mu sync.RWMutex

	local  *types.OrganizationIdentity
	client transport.Client

	// At most one outstanding challenge per target; a new challenge for
	// the same target overwrites the old one.
	challenges map[string]*pendingChallenge
	states     map[string]State

	window time.Duration
	logger *zap.Logger
}

// NewProtocol creates a trust protocol instance for the local organization.
// A zero window selects DefaultChallengeWindow.
func NewProtocol(local *types.OrganizationIdentity, client transport.Client, window time.Duration, logger *zap.Logger) *Protocol {
	if window <= 0 {
		window = DefaultChallengeWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Protocol{
		local:      local,
		client:     client,
		challenges: make(map[string]*pendingChallenge),
		states:     make(map[string]State),
		window:     window,
		logger:     logger,
	}
}

// StateOf returns the current handshake state for an organization.
func (p *Protocol) StateOf(orgID string) State {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if state, ok := p.states[orgID]; ok {
		return state
	}
	return StateUntrusted
}

// Discover fetches the remote organization's identity document from the
// well-known path under its domain. Failures leave the relationship at
// UNTRUSTED and are safely retryable.
func (p *Protocol) Discover(ctx context.Context, domain string) (*types.OrganizationIdentity, error) {
	identity, err := p.client.FetchIdentity(ctx, domain)
	if err != nil {
		p.logger.Warn("Discovery failed",
			zap.String("domain", domain),
			zap.Error(err))
		return nil, fmt.Errorf("discovery of %s failed: %w", domain, err)
	}

	identity.TrustLevel = types.TrustNone
	identity.VerifiedAt = nil

	p.mu.Lock()
	p.states[identity.OrgID] = StateDiscovered
	p.mu.Unlock()

	p.logger.Info("Discovered organization",
		zap.String("org_id", identity.OrgID),
		zap.String("domain", identity.Domain))

	return identity, nil
}

// reset drops the relationship back to UNTRUSTED. Must be called with the
// lock held.
func (p *Protocol) resetLocked(orgID string) {
	p.states[orgID] = StateUntrusted
	delete(p.challenges, orgID)
}
