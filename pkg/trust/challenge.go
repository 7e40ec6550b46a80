package trust

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"go.uber.org/zap"

	"govfed/pkg/types"
)

// challengeSize is the length of a freshly issued challenge in bytes.
const challengeSize = 32

// responseSize is MAC (sha256) plus an 8-byte big-endian unix timestamp.
const responseSize = sha256.Size + 8

// IssueChallenge generates a fresh random challenge for the target and
// records it in volatile state, overwriting any prior challenge for the
// same target.
func (p *Protocol) IssueChallenge(targetOrgID string) ([]byte, error) {
	challenge := make([]byte, challengeSize)
	if _, err := rand.Read(challenge); err != nil {
		return nil, fmt.Errorf("failed to generate challenge: %w", err)
	}

	p.mu.Lock()
	p.challenges[targetOrgID] = &pendingChallenge{
		bytes:    challenge,
		issuedAt: time.Now(),
	}
	p.states[targetOrgID] = StateChallengeIssued
	p.mu.Unlock()

	p.logger.Debug("Issued challenge", zap.String("target_org_id", targetOrgID))

	return challenge, nil
}

// RespondToChallenge computes the response to a challenge issued by a peer:
// an HMAC-SHA256 over (challenge || local org id || timestamp) with the
// local signing key, followed by the 8-byte big-endian unix timestamp.
func (p *Protocol) RespondToChallenge(challenge []byte) []byte {
	return computeResponse(challenge, p.local.OrgID, p.local.SigningKey, time.Now())
}

// VerifyChallengeResponse checks a response against the challenge pending
// for the claimed responder. The stored challenge is deleted whether
// verification succeeds or fails, so every issued challenge is single use.
// On success the responder's trust level is raised to VERIFIED.
func (p *Protocol) VerifyChallengeResponse(responder *types.OrganizationIdentity, response []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pending, ok := p.challenges[responder.OrgID]
	if !ok {
		return ErrNoPendingChallenge
	}
	// Single use: consumed on every verification attempt.
	delete(p.challenges, responder.OrgID)

	now := time.Now()
	if now.Sub(pending.issuedAt) > p.window {
		p.resetLocked(responder.OrgID)
		return fmt.Errorf("challenge for %s: %w", responder.OrgID, ErrChallengeExpired)
	}

	if len(response) != responseSize {
		p.resetLocked(responder.OrgID)
		return fmt.Errorf("challenge response for %s has length %d, want %d", responder.OrgID, len(response), responseSize)
	}

	claimedMAC := response[:sha256.Size]
	tsBytes := response[sha256.Size:]
	claimed := time.Unix(int64(binary.BigEndian.Uint64(tsBytes)), 0)

	skew := now.Sub(claimed)
	if skew < 0 {
		skew = -skew
	}
	if skew > p.window {
		p.resetLocked(responder.OrgID)
		return fmt.Errorf("challenge response for %s: %w", responder.OrgID, ErrChallengeExpired)
	}

	expected := computeResponse(pending.bytes, responder.OrgID, responder.SigningKey, claimed)
	if !hmac.Equal(claimedMAC, expected[:sha256.Size]) {
		p.resetLocked(responder.OrgID)
		return fmt.Errorf("challenge response for %s: %w", responder.OrgID, ErrSignatureMismatch)
	}

	p.states[responder.OrgID] = StateChallengeVerified
	responder.TrustLevel = types.TrustVerified
	verifiedAt := now
	responder.VerifiedAt = &verifiedAt

	p.logger.Info("Challenge verified", zap.String("org_id", responder.OrgID))

	return nil
}

// computeResponse builds (MAC || timestamp) for a challenge, responder id,
// signing key, and response time.
func computeResponse(challenge []byte, responderOrgID string, key []byte, at time.Time) []byte {
	tsBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(tsBytes, uint64(at.Unix()))

	mac := hmac.New(sha256.New, key)
	mac.Write(challenge)
	mac.Write([]byte(responderOrgID))
	mac.Write(tsBytes)

	return append(mac.Sum(nil), tsBytes...)
}
