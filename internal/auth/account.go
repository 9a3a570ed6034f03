// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vysus Group

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Password policy constants.
const (
	MinPasswordLength = 10
)

// emailRegex is a deliberately loose address check; the real gate is the
// domain suffix, enforced separately and again by the database CHECK.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Account represents a registered user of the portal.
type Account struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string
	FullName     *string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewAccount creates a validated Account. The email must already be
// normalized (see NormalizeEmail); the password hash must be non-empty.
// FullName is optional and may be nil.
func NewAccount(email, passwordHash string, fullName *string) (*Account, error) {
	if email == "" {
		return nil, oops.Code("ACCOUNT_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if email != NormalizeEmail(email) {
		return nil, oops.Code("ACCOUNT_INVALID_EMAIL").
			With("email", email).
			Errorf("email must be normalized before account creation")
	}
	if passwordHash == "" {
		return nil, oops.Code("ACCOUNT_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &Account{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     fullName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail lowercases and trims an email address. All store reads and
// writes use the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks address shape and the allow-listed domain suffix.
// The domain restriction is enforced only at registration; it is never
// re-validated on read.
func ValidateEmail(email, allowedDomain string) error {
	if !emailRegex.MatchString(email) {
		return oops.Code("AUTH_VALIDATION_FAILED").
			With("field", "email").
			Errorf("invalid email address")
	}
	if !strings.HasSuffix(email, "@"+allowedDomain) {
		return oops.Code("AUTH_VALIDATION_FAILED").
			With("field", "email").
			With("allowed_domain", allowedDomain).
			Errorf("only @%s emails are allowed", allowedDomain)
	}
	return nil
}

// ValidatePassword enforces the password complexity policy: minimum length,
// at least one uppercase letter, one lowercase letter, and one digit. All
// violated conditions are reported together.
func ValidatePassword(password string) error {
	var problems []string

	// Characters, not bytes: a multibyte password must not clear the
	// minimum on encoded length alone.
	if utf8.RuneCountInString(password) < MinPasswordLength {
		problems = append(problems, "must be at least 10 characters")
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper {
		problems = append(problems, "must contain at least one uppercase letter")
	}
	if !hasLower {
		problems = append(problems, "must contain at least one lowercase letter")
	}
	if !hasDigit {
		problems = append(problems, "must contain at least one number")
	}

	if len(problems) > 0 {
		return oops.Code("AUTH_VALIDATION_FAILED").
			With("field", "password").
			Errorf("password %s", strings.Join(problems, "; "))
	}
	return nil
}

// AccountRepository manages account persistence.
type AccountRepository interface {
	// Create stores a new account. Returns an error wrapping ErrEmailTaken
	// if the email already exists.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID. Returns an error wrapping
	// ErrNotFound if absent.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by normalized email. Returns an error
	// wrapping ErrNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// UpdatePassword replaces the password hash and bumps updated_at.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error
}
