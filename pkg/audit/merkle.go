package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"govfed/pkg/canonical"
	"govfed/pkg/types"
)

// Proof is a positional inclusion descriptor for a committed event: the
// event's hash, the committed root of its batch, and its coordinates within
// the log. It does not carry sibling hashes, so checking it means trusting
// the log holder's claimed root.
type Proof struct {
	EventHash  string `json:"event_hash"`
	RootHash   string `json:"root_hash"`
	BatchIndex int    `json:"batch_index"`
	Position   int    `json:"position"`
}

// MerkleProof locates the event and, if its batch has been committed,
// returns its inclusion descriptor. Events in a still-open batch have no
// proof until the batch fills.
func (t *Trail) MerkleProof(eventID string) (*Proof, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	position := -1
	var event *types.FederationEvent
	for i, candidate := range t.events {
		if candidate.EventID == eventID {
			position = i
			event = candidate
			break
		}
	}
	if position < 0 {
		return nil, false
	}

	batchIndex := position / t.batchSize
	if batchIndex >= len(t.roots) {
		return nil, false
	}

	eventHash, err := hashEvent(event)
	if err != nil {
		return nil, false
	}

	return &Proof{
		EventHash:  eventHash,
		RootHash:   t.roots[batchIndex].RootHash,
		BatchIndex: batchIndex,
		Position:   position % t.batchSize,
	}, true
}

// ComputeBatchRoot folds one ordered batch of events into a Merkle root:
// each event is hashed, the leaf list is padded with empty-hash placeholders
// to leafWidth, and leaves are folded pairwise with sha256 until one root
// remains. Pure function of the batch contents.
func ComputeBatchRoot(batch []*types.FederationEvent, leafWidth int) (string, error) {
	if leafWidth < len(batch) {
		return "", fmt.Errorf("leaf width %d smaller than batch size %d", leafWidth, len(batch))
	}
	leafWidth = nextPowerOfTwo(leafWidth)

	emptyLeaf := sha256.Sum256(nil)

	layer := make([][]byte, leafWidth)
	for i, event := range batch {
		canonicalBytes, err := canonical.Canonicalize(event)
		if err != nil {
			return "", fmt.Errorf("failed to hash event %s: %w", event.EventID, err)
		}
		sum := sha256.Sum256(canonicalBytes)
		layer[i] = sum[:]
	}
	for i := len(batch); i < leafWidth; i++ {
		layer[i] = emptyLeaf[:]
	}

	for len(layer) > 1 {
		next := make([][]byte, len(layer)/2)
		for i := range next {
			combined := sha256.Sum256(append(append([]byte{}, layer[2*i]...), layer[2*i+1]...))
			next[i] = combined[:]
		}
		layer = next
	}

	return hex.EncodeToString(layer[0]), nil
}

// hashEvent returns the leaf hash of one event.
func hashEvent(event *types.FederationEvent) (string, error) {
	return canonical.Digest(event)
}

// nextPowerOfTwo rounds n up to the nearest power of two.
func nextPowerOfTwo(n int) int {
	power := 1
	for power < n {
		power *= 2
	}
	return power
}
