package security

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 12
	hashCost          = 12
)

var ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", minPasswordLength)

func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func VerifyPassword(password, encoded string) bool {
	encoded = strings.TrimSpace(encoded)
	if password == "" || encoded == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
}

// AdminGate checks the shared admin password that guards destructive
// operations. A gate without a hash rejects everything.
type AdminGate struct {
	hash string
}

var ErrAdminPasswordRequired = errors.New("admin password required")

func NewAdminGate(hash string) *AdminGate {
	return &AdminGate{hash: strings.TrimSpace(hash)}
}

func (g *AdminGate) Check(password string) error {
	if g == nil || g.hash == "" || strings.TrimSpace(password) == "" {
		return ErrAdminPasswordRequired
	}
	if !VerifyPassword(password, g.hash) {
		return errors.New("admin password is incorrect")
	}
	return nil
}
