package crypto

import (
	"bytes"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestNewHasher_CostRange(t *testing.T) {
	t.Parallel()

	if _, err := NewHasher(bcrypt.MinCost - 1); err == nil {
		t.Fatalf("want error for cost below minimum")
	}
	if _, err := NewHasher(bcrypt.MaxCost + 1); err == nil {
		t.Fatalf("want error for cost above maximum")
	}
	if _, err := NewHasher(bcrypt.MinCost); err != nil {
		t.Fatalf("NewHasher(min): %v", err)
	}
}

func TestHashPassword_NotPlaintextAndSalted(t *testing.T) {
	t.Parallel()

	h, err := NewHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}

	h1, err := h.HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if string(h1) == "secret1" {
		t.Fatalf("hash equals plaintext")
	}
	h2, err := h.HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword(2): %v", err)
	}
	if bytes.Equal(h1, h2) {
		t.Fatalf("two hashes of the same password are equal, salt missing")
	}

	cost, err := bcrypt.Cost(h1)
	if err != nil || cost != bcrypt.MinCost {
		t.Fatalf("cost=%d err=%v, want %d", cost, err, bcrypt.MinCost)
	}
}

func TestVerifyPassword(t *testing.T) {
	t.Parallel()

	h, _ := NewHasher(bcrypt.MinCost)
	hash, err := h.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	if !h.VerifyPassword("correct horse", hash) {
		t.Fatalf("VerifyPassword: expected true for correct password")
	}
	if h.VerifyPassword("wrong", hash) {
		t.Fatalf("VerifyPassword: expected false for wrong password")
	}
	if h.VerifyPassword("correct horse", nil) {
		t.Fatalf("VerifyPassword: expected false for empty hash")
	}
}
