package canonical

import (
	"bytes"
	"testing"
)

func TestCanonicalize_Deterministic(t *testing.T) {
	a := map[string]any{"b": 2, "a": 1, "nested": map[string]any{"y": "v", "x": "u"}}
	b := map[string]any{"nested": map[string]any{"x": "u", "y": "v"}, "a": 1, "b": 2}

	canonA, err := Canonicalize(a)
	if err != nil {
		t.Fatalf("Failed to canonicalize: %v", err)
	}
	canonB, err := Canonicalize(b)
	if err != nil {
		t.Fatalf("Failed to canonicalize: %v", err)
	}

	if !bytes.Equal(canonA, canonB) {
		t.Errorf("Canonical forms differ:\n%s\n%s", canonA, canonB)
	}
}

func TestSignVerify(t *testing.T) {
	key := []byte("test-signing-key")
	record := map[string]any{"policy_id": "p1", "content": "deny all"}

	sig, err := Sign(key, record)
	if err != nil {
		t.Fatalf("Failed to sign: %v", err)
	}

	valid, err := Verify(key, record, sig)
	if err != nil {
		t.Fatalf("Failed to verify: %v", err)
	}
	if !valid {
		t.Error("Expected signature to verify")
	}

	// Tampered record must fail
	tampered := map[string]any{"policy_id": "p1", "content": "allow all"}
	valid, err = Verify(key, tampered, sig)
	if err != nil {
		t.Fatalf("Failed to verify tampered record: %v", err)
	}
	if valid {
		t.Error("Tampered record should not verify")
	}

	// Wrong key must fail
	valid, err = Verify([]byte("other-key"), record, sig)
	if err != nil {
		t.Fatalf("Failed to verify with wrong key: %v", err)
	}
	if valid {
		t.Error("Wrong key should not verify")
	}
}

func TestVerify_MalformedSignature(t *testing.T) {
	valid, err := Verify([]byte("key"), map[string]any{"a": 1}, "not-hex")
	if err == nil {
		t.Error("Expected error for malformed signature")
	}
	if valid {
		t.Error("Malformed signature should not verify")
	}
}

func TestHashContent(t *testing.T) {
	h1 := HashContent("policy text")
	h2 := HashContent("policy text")
	h3 := HashContent("other text")

	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}
	if h1 == h3 {
		t.Error("Different content should hash differently")
	}
	if len(h1) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(h1))
	}
}
