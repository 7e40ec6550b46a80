package governor

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultInviteValidity is how long a pending invitation stays redeemable.
const DefaultInviteValidity = 7 * 24 * time.Hour

// Invitation records one pending offer for an organization to join an
// agreement.
type Invitation struct {
	InvitationID string    `json:"invitation_id"`
	AgreementID  string    `json:"agreement_id"`
	TargetOrgID  string    `json:"target_org_id"`
	TargetDomain string    `json:"target_domain"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	Accepted     bool      `json:"accepted"`
}

// InviteManager manages pending federation invitations.
type InviteManager struct {
	mu      sync.RWMutex
	invites map[string]*Invitation

	validity        time.Duration
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
}

// NewInviteManager creates an invite manager. A zero validity selects
// DefaultInviteValidity.
func NewInviteManager(validity time.Duration) *InviteManager {
	if validity <= 0 {
		validity = DefaultInviteValidity
	}
	im := &InviteManager{
		invites:         make(map[string]*Invitation),
		validity:        validity,
		cleanupInterval: 1 * time.Hour,
		stopCleanup:     make(chan struct{}),
	}

	go im.cleanupExpired()

	return im
}

// Create records a new invitation.
func (im *InviteManager) Create(agreementID, targetOrgID, targetDomain string) *Invitation {
	im.mu.Lock()
	defer im.mu.Unlock()

	now := time.Now()
	invitation := &Invitation{
		InvitationID: uuid.NewString(),
		AgreementID:  agreementID,
		TargetOrgID:  targetOrgID,
		TargetDomain: targetDomain,
		CreatedAt:    now,
		ExpiresAt:    now.Add(im.validity),
	}
	im.invites[invitation.InvitationID] = invitation

	inviteCopy := *invitation
	return &inviteCopy
}

// Get returns an invitation by id.
func (im *InviteManager) Get(invitationID string) (*Invitation, error) {
	im.mu.RLock()
	defer im.mu.RUnlock()

	invitation, ok := im.invites[invitationID]
	if !ok {
		return nil, fmt.Errorf("invitation not found")
	}

	inviteCopy := *invitation
	return &inviteCopy, nil
}

// Accept marks an invitation as accepted. An invitation is single use and
// cannot be accepted after its expiry.
func (im *InviteManager) Accept(invitationID string) (*Invitation, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	invitation, ok := im.invites[invitationID]
	if !ok {
		return nil, fmt.Errorf("invitation not found")
	}

	if time.Now().After(invitation.ExpiresAt) {
		delete(im.invites, invitationID)
		return nil, fmt.Errorf("invitation has expired")
	}

	if invitation.Accepted {
		return nil, fmt.Errorf("invitation already accepted")
	}

	invitation.Accepted = true

	inviteCopy := *invitation
	return &inviteCopy, nil
}

// Revoke cancels a pending invitation.
func (im *InviteManager) Revoke(invitationID string) error {
	im.mu.Lock()
	defer im.mu.Unlock()

	if _, ok := im.invites[invitationID]; !ok {
		return fmt.Errorf("invitation not found")
	}

	delete(im.invites, invitationID)
	return nil
}

// Pending returns the number of unexpired, unaccepted invitations.
func (im *InviteManager) Pending() int {
	im.mu.RLock()
	defer im.mu.RUnlock()

	now := time.Now()
	count := 0
	for _, invitation := range im.invites {
		if !invitation.Accepted && now.Before(invitation.ExpiresAt) {
			count++
		}
	}
	return count
}

// cleanupExpired removes expired invitations.
func (im *InviteManager) cleanupExpired() {
	ticker := time.NewTicker(im.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			im.mu.Lock()
			now := time.Now()
			for id, invitation := range im.invites {
				if now.After(invitation.ExpiresAt) {
					delete(im.invites, id)
				}
			}
			im.mu.Unlock()

		case <-im.stopCleanup:
			return
		}
	}
}

// Stop stops the cleanup goroutine.
func (im *InviteManager) Stop() {
	close(im.stopCleanup)
}
