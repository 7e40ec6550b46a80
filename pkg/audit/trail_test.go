package audit

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"govfed/pkg/types"
)

func testIdentity() *types.OrganizationIdentity {
	return &types.OrganizationIdentity{
		OrgID:      "org-local",
		Name:       "Local Org",
		Domain:     "local.example",
		SigningKey: []byte("local-signing-key"),
		Role:       types.RoleMember,
	}
}

func newTestTrail(batchSize int) *Trail {
	return New(testIdentity(), batchSize, batchSize, zap.NewNop(), nil)
}

func TestLogEvent_SignsAndAppends(t *testing.T) {
	trail := newTestTrail(4)

	event, err := trail.LogEvent("federation_join", []string{"org-remote"}, map[string]any{"leader_domain": "remote.example"})
	if err != nil {
		t.Fatalf("Failed to log event: %v", err)
	}

	if event.EventID == "" {
		t.Error("Event should be assigned an id")
	}
	if event.SourceOrgID != "org-local" {
		t.Errorf("Expected source org-local, got %s", event.SourceOrgID)
	}
	if event.Signature == "" {
		t.Error("Event should be signed")
	}

	valid, err := trail.VerifyEvent(event, []byte("local-signing-key"))
	if err != nil {
		t.Fatalf("Failed to verify event: %v", err)
	}
	if !valid {
		t.Error("Event signature should verify with the signer's key")
	}

	valid, err = trail.VerifyEvent(event, []byte("wrong-key"))
	if err != nil {
		t.Fatalf("Failed to verify event: %v", err)
	}
	if valid {
		t.Error("Event signature should not verify with a different key")
	}

	// Tampering with a logged event is detected.
	tampered := event.Clone()
	tampered.EventType = "federation_leave"
	valid, err = trail.VerifyEvent(tampered, []byte("local-signing-key"))
	if err != nil {
		t.Fatalf("Failed to verify tampered event: %v", err)
	}
	if valid {
		t.Error("Tampered event should not verify")
	}
}

func TestBatchCommit(t *testing.T) {
	trail := newTestTrail(4)

	var events []*types.FederationEvent
	for i := 0; i < 9; i++ {
		event, err := trail.LogEvent("policy_sync", nil, map[string]any{"seq": i})
		if err != nil {
			t.Fatal(err)
		}
		events = append(events, event)
	}

	// 9 events at batch size 4: two committed batches, one open.
	roots := trail.Roots()
	if len(roots) != 2 {
		t.Fatalf("Expected 2 committed roots, got %d", len(roots))
	}
	if roots[0].BatchIndex != 0 || roots[1].BatchIndex != 1 {
		t.Error("Roots should be indexed by batch number in order")
	}
	if roots[0].RootHash == roots[1].RootHash {
		t.Error("Distinct batches should commit distinct roots")
	}

	// Events in committed batches have proofs.
	proof, ok := trail.MerkleProof(events[5].EventID)
	if !ok {
		t.Fatal("Expected proof for event in committed batch")
	}
	if proof.BatchIndex != 1 {
		t.Errorf("Expected batch index 1, got %d", proof.BatchIndex)
	}
	if proof.Position != 1 {
		t.Errorf("Expected position 1 within batch, got %d", proof.Position)
	}
	if proof.RootHash != roots[1].RootHash {
		t.Error("Proof should carry the committed root of its batch")
	}

	// The trailing open batch is not yet provable.
	if _, ok := trail.MerkleProof(events[8].EventID); ok {
		t.Error("Events in a still-open batch must have no proof")
	}

	if _, ok := trail.MerkleProof("no-such-event"); ok {
		t.Error("Unknown event id must have no proof")
	}
}

func TestComputeBatchRoot_Deterministic(t *testing.T) {
	trail := newTestTrail(4)

	var batch []*types.FederationEvent
	for i := 0; i < 4; i++ {
		event, err := trail.LogEvent("policy_sync", nil, map[string]any{"seq": i})
		if err != nil {
			t.Fatal(err)
		}
		batch = append(batch, event)
	}

	first, err := ComputeBatchRoot(batch, 4)
	if err != nil {
		t.Fatalf("Failed to compute root: %v", err)
	}
	second, err := ComputeBatchRoot(batch, 4)
	if err != nil {
		t.Fatalf("Failed to compute root: %v", err)
	}
	if first != second {
		t.Error("Root must be a pure function of batch contents")
	}

	// Order matters.
	reordered := []*types.FederationEvent{batch[1], batch[0], batch[2], batch[3]}
	swapped, err := ComputeBatchRoot(reordered, 4)
	if err != nil {
		t.Fatal(err)
	}
	if swapped == first {
		t.Error("Reordering the batch should change the root")
	}

	if _, err := ComputeBatchRoot(batch, 2); err == nil {
		t.Error("Expected error when leaf width is smaller than the batch")
	}
}

func TestEventsForOrg(t *testing.T) {
	trail := newTestTrail(100)

	if _, err := trail.LogEvent("federation_join", []string{"org-a"}, nil); err != nil {
		t.Fatal(err)
	}
	cutoff := time.Now()
	if _, err := trail.LogEvent("federation_invite", []string{"org-a", "org-b"}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := trail.LogEvent("policy_sync", []string{"org-b"}, nil); err != nil {
		t.Fatal(err)
	}

	all := trail.EventsForOrg("org-a", nil, nil)
	if len(all) != 2 {
		t.Fatalf("Expected 2 events for org-a, got %d", len(all))
	}
	if all[0].EventType != "federation_join" || all[1].EventType != "federation_invite" {
		t.Error("Events should be returned in append order")
	}

	// The local org is the source of every event.
	if got := len(trail.EventsForOrg("org-local", nil, nil)); got != 3 {
		t.Errorf("Expected 3 events for the source org, got %d", got)
	}

	recent := trail.EventsForOrg("org-a", &cutoff, nil)
	if len(recent) != 1 || recent[0].EventType != "federation_invite" {
		t.Errorf("Since filter should keep only the later event, got %d", len(recent))
	}

	typed := trail.EventsForOrg("org-b", nil, []string{"policy_sync"})
	if len(typed) != 1 || typed[0].EventType != "policy_sync" {
		t.Errorf("Type filter should keep only policy_sync, got %d", len(typed))
	}
}

func TestSummarize_PrivacyPreserving(t *testing.T) {
	trail := newTestTrail(100)

	secret := "confidential-payload-value"
	if _, err := trail.LogEvent("federation_join", []string{"org-a"}, map[string]any{"secret": secret}); err != nil {
		t.Fatal(err)
	}
	if _, err := trail.LogEvent("policy_sync", []string{"org-a"}, map[string]any{"secret": secret}); err != nil {
		t.Fatal(err)
	}

	events := trail.EventsForOrg("org-a", nil, nil)

	// org-outsider is neither source nor target of any event.
	summary := Summarize(events, "org-outsider")

	if summary.TotalEvents != 2 {
		t.Errorf("Expected total 2, got %d", summary.TotalEvents)
	}
	if summary.InvolvingRequester != 0 {
		t.Errorf("Outsider should be involved in 0 events, got %d", summary.InvolvingRequester)
	}
	if summary.EventsByType["federation_join"] != 1 || summary.EventsByType["policy_sync"] != 1 {
		t.Errorf("Per-type counts wrong: %v", summary.EventsByType)
	}

	// The summary must not leak payload contents.
	encoded, err := json.Marshal(summary)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(encoded), secret) {
		t.Error("Summary must not expose payload contents")
	}

	involved := Summarize(events, "org-a")
	if involved.InvolvingRequester != 2 {
		t.Errorf("Target org should be involved in 2 events, got %d", involved.InvolvingRequester)
	}
}
