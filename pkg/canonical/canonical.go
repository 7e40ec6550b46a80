// Package canonical provides the deterministic record encoding used as the
// exact input to signing and verification. Both sides of an exchange must
// compute identical bytes for a record, so records are JSON-encoded and then
// normalized to the RFC 8785 (JCS) canonical form before any MAC is taken.
package canonical

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Canonicalize returns the RFC 8785 canonical JSON encoding of v. Callers
// must clear the record's signature field before canonicalizing.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize record: %w", err)
	}
	return canonical, nil
}

// Digest canonicalizes v and returns its sha256 hex digest.
func Digest(v any) (string, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Sign computes an HMAC-SHA256 over the canonical form of v and returns it
// as a hex string.
func Sign(key []byte, v any) (string, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the MAC for v with the given key and compares it against
// sig in constant time.
func Verify(key []byte, v any, sig string) (bool, error) {
	expected, err := Sign(key, v)
	if err != nil {
		return false, err
	}
	expectedBytes, err := hex.DecodeString(expected)
	if err != nil {
		return false, fmt.Errorf("failed to decode computed signature: %w", err)
	}
	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return false, fmt.Errorf("failed to decode claimed signature: %w", err)
	}
	return hmac.Equal(expectedBytes, sigBytes), nil
}

// HashContent returns the sha256 hex digest of raw content text.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
