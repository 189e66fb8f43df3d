package security

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_HashAndMatch(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	first, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	second, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if first == second {
		t.Fatalf("expected different salts to produce different hashes")
	}

	if !h.Matches("correct horse", first) || !h.Matches("correct horse", second) {
		t.Fatalf("expected both hashes to match the plaintext")
	}

	if h.Matches("wrong horse", first) {
		t.Fatalf("expected mismatch for wrong password")
	}
}

func TestVerify_CollapsesFailuresToFalse(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{name: "empty hash", hash: ""},
		{name: "corrupt hash", hash: "$2a$not-a-real-hash"},
		{name: "plaintext stored", hash: "secret"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if Verify(tc.hash, "secret") {
				t.Fatalf("expected false")
			}
		})
	}
}

func TestNewBcryptHasher_OutOfRangeCostUsesDefault(t *testing.T) {
	h := NewBcryptHasher(100)
	if h.cost != bcrypt.DefaultCost {
		t.Fatalf("got cost %d, want %d", h.cost, bcrypt.DefaultCost)
	}
}

func TestBcryptHasher_LimitIsInBytes(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	// 36 runes, 72 bytes
	if _, err := h.Hash(strings.Repeat("é", 36)); err != nil {
		t.Fatalf("expected 72-byte password to hash, got %v", err)
	}

	// 40 runes, 80 bytes
	_, err := h.Hash(strings.Repeat("é", 40))
	if !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}

	if err := CheckLength(strings.Repeat("a", MaxPasswordBytes)); err != nil {
		t.Fatalf("expected ascii password at the limit to pass, got %v", err)
	}
}
