// Package audit implements a signed, append-only audit trail of federation
// actions. Events are totally ordered per trail instance; every full batch
// of events is folded into a Merkle root so inclusion of any committed event
// can be checked against a single hash.
package audit

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"govfed/pkg/canonical"
	"govfed/pkg/metrics"
	"govfed/pkg/types"
)

const (
	// DefaultBatchSize is the number of events folded into each Merkle
	// commitment.
	DefaultBatchSize = 100

	// DefaultLeafWidth is the fixed leaf count each batch is padded to
	// before folding. Must be a power of two no smaller than the batch
	// size.
	DefaultLeafWidth = 128
)

// Trail is one organization's federation audit log. Events and committed
// roots are append-only; a trailing batch with fewer than batchSize events
// stays open and unprovable until it fills.
type Trail struct {
	mu sync.RWMutex

	local *types.OrganizationIdentity

	events []*types.FederationEvent
	roots  []*types.MerkleRoot

	batchSize int
	leafWidth int

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New creates an audit trail for the local organization. Zero batchSize or
// leafWidth select the defaults; leafWidth is rounded up to the next power
// of two that fits the batch size.
func New(local *types.OrganizationIdentity, batchSize, leafWidth int, logger *zap.Logger, m *metrics.Metrics) *Trail {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if leafWidth <= 0 {
		leafWidth = DefaultLeafWidth
	}
	leafWidth = nextPowerOfTwo(leafWidth)
	for leafWidth < batchSize {
		leafWidth *= 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trail{
		local:     local,
		batchSize: batchSize,
		leafWidth: leafWidth,
		logger:    logger,
		metrics:   m,
	}
}

// LogEvent signs and appends a federation event. Every batchSize-th append
// commits a Merkle root over the newest full batch.
func (t *Trail) LogEvent(eventType string, targetOrgIDs []string, payload map[string]any) (*types.FederationEvent, error) {
	event := &types.FederationEvent{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		Timestamp:    time.Now(),
		SourceOrgID:  t.local.OrgID,
		TargetOrgIDs: append([]string(nil), targetOrgIDs...),
		Payload:      payload,
	}

	signature, err := canonical.Sign(t.local.SigningKey, signableEvent(event))
	if err != nil {
		return nil, fmt.Errorf("failed to sign event: %w", err)
	}
	event.Signature = signature

	t.mu.Lock()
	t.events = append(t.events, event)
	t.metrics.IncAuditEvents()

	if len(t.events)%t.batchSize == 0 {
		batchIndex := len(t.events)/t.batchSize - 1
		batch := t.events[batchIndex*t.batchSize : (batchIndex+1)*t.batchSize]

		rootHash, err := ComputeBatchRoot(batch, t.leafWidth)
		if err != nil {
			t.mu.Unlock()
			return nil, fmt.Errorf("failed to commit batch %d: %w", batchIndex, err)
		}

		t.roots = append(t.roots, &types.MerkleRoot{
			RootHash:    rootHash,
			BatchIndex:  batchIndex,
			CommittedAt: time.Now(),
		})
		t.metrics.IncMerkleRoots()

		t.logger.Info("Committed Merkle root",
			zap.Int("batch_index", batchIndex),
			zap.String("root_hash", rootHash))
	}
	t.mu.Unlock()

	return event.Clone(), nil
}

// VerifyEvent recomputes the expected signature over the signature-cleared
// event and compares it against the stored one. Pure, stateless check.
func (t *Trail) VerifyEvent(event *types.FederationEvent, signerKey []byte) (bool, error) {
	return canonical.Verify(signerKey, signableEvent(event), event.Signature)
}

// EventsForOrg returns, in append order, every event where the organization
// appears as source or target, optionally filtered by a minimum timestamp
// and an event-type set.
func (t *Trail) EventsForOrg(orgID string, since *time.Time, eventTypes []string) []*types.FederationEvent {
	var typeSet map[string]bool
	if len(eventTypes) > 0 {
		typeSet = make(map[string]bool, len(eventTypes))
		for _, et := range eventTypes {
			typeSet[et] = true
		}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	var matched []*types.FederationEvent
	for _, event := range t.events {
		if !event.Involves(orgID) {
			continue
		}
		if since != nil && event.Timestamp.Before(*since) {
			continue
		}
		if typeSet != nil && !typeSet[event.EventType] {
			continue
		}
		matched = append(matched, event.Clone())
	}
	return matched
}

// Len returns the number of logged events.
func (t *Trail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.events)
}

// Roots returns the committed Merkle roots in batch order.
func (t *Trail) Roots() []*types.MerkleRoot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*types.MerkleRoot, len(t.roots))
	for i, root := range t.roots {
		clone := *root
		out[i] = &clone
	}
	return out
}

// signableEvent returns a copy with the signature field cleared, the exact
// record both signer and verifier canonicalize.
func signableEvent(event *types.FederationEvent) *types.FederationEvent {
	clone := event.Clone()
	clone.Signature = ""
	return clone
}
