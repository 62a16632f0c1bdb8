package security

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordRequiresMinimumLength(t *testing.T) {
	if _, err := HashPassword("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
}

func TestHashPasswordAndVerify(t *testing.T) {
	password := "this-is-a-long-password"
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if !VerifyPassword(password, hash) {
		t.Fatalf("expected password verification to succeed")
	}
	if VerifyPassword("wrong-password", hash) {
		t.Fatalf("expected wrong password verification to fail")
	}
	if VerifyPassword(password, "not-a-hash") {
		t.Fatalf("expected malformed hash to fail")
	}
}

func TestAdminGate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("site-admin-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	gate := NewAdminGate(string(hash))
	if err := gate.Check("site-admin-password"); err != nil {
		t.Fatalf("expected correct password to pass: %v", err)
	}
	if err := gate.Check("nope"); err == nil {
		t.Fatalf("expected wrong password to fail")
	}
	if err := gate.Check(""); !errors.Is(err, ErrAdminPasswordRequired) {
		t.Fatalf("expected ErrAdminPasswordRequired, got %v", err)
	}
	if err := NewAdminGate("").Check("site-admin-password"); !errors.Is(err, ErrAdminPasswordRequired) {
		t.Fatalf("expected unconfigured gate to reject, got %v", err)
	}
}
