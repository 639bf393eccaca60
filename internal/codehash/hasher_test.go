package codehash_test

import (
	"encoding/hex"
	"testing"

	"github.com/keeperfind/keeper-auth/internal/codehash"
)

func TestHashDeterministic(t *testing.T) {
	h := codehash.New("test-secret")
	a := h.Hash("some-code")
	b := h.Hash("some-code")
	if a != b {
		t.Errorf("same code hashed to %q and %q", a, b)
	}
	if a == h.Hash("other-code") {
		t.Error("different codes produced the same digest")
	}
}

func TestHashSecretDependence(t *testing.T) {
	a := codehash.New("secret-one").Hash("some-code")
	b := codehash.New("secret-two").Hash("some-code")
	if a == b {
		t.Error("digests under different secrets should differ")
	}
}

func TestHashShape(t *testing.T) {
	digest := codehash.New("test-secret").Hash("some-code")
	raw, err := hex.DecodeString(digest)
	if err != nil {
		t.Fatalf("digest is not hex: %v", err)
	}
	if len(raw) != 32 {
		t.Errorf("digest is %d bytes, want 32", len(raw))
	}
}
