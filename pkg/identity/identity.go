package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
)

// Account is an identity-provider user
type Account struct {
	ID          string
	Email       string
	DisplayName string
}

// NewAccount describes an account to create
type NewAccount struct {
	Email       string
	Password    string
	DisplayName string
}

// ErrEmailRequired is returned when creating an account without an email
var ErrEmailRequired = errors.New("email is required")

// Directory is the identity provider
type Directory interface {
	// List returns every existing account.
	List(ctx context.Context) ([]Account, error)
	// LookupByEmail finds an account by email, ignoring case.
	LookupByEmail(ctx context.Context, email string) (Account, bool, error)
	// Create makes a new account and returns it with its issued id.
	Create(ctx context.Context, a NewAccount) (Account, error)
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GeneratePassword returns a random one-time password. Migrated users are
// expected to go through password reset.
func GeneratePassword() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
