// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vysus Group

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultResetTokenLifetime is used when no lifetime is configured.
const DefaultResetTokenLifetime = time.Hour

// ResetToken is a single-use secret proving control of an email address.
// A token is consumable iff used is false and the expiry is in the future;
// consumption flips used and can never be undone.
type ResetToken struct {
	ID        ulid.ULID
	AccountID ulid.ULID
	Token     string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// NewResetToken creates a validated ResetToken.
func NewResetToken(accountID ulid.ULID, token string, expiresAt time.Time) (*ResetToken, error) {
	if accountID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("RESET_INVALID_ACCOUNT").Errorf("account ID cannot be zero")
	}
	if token == "" {
		return nil, oops.Code("RESET_INVALID_TOKEN").Errorf("token cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("RESET_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	return &ResetToken{
		ID:        ulid.Make(),
		AccountID: accountID,
		Token:     token,
		ExpiresAt: expiresAt,
		Used:      false,
		CreatedAt: time.Now(),
	}, nil
}

// ConsumableAt returns true if the token could be consumed at the given time.
func (r *ResetToken) ConsumableAt(t time.Time) bool {
	return !r.Used && t.Before(r.ExpiresAt)
}

// ResetTokenRepository manages reset token persistence.
type ResetTokenRepository interface {
	// InvalidateUnused marks every unused token for the account as used and
	// returns the number of rows affected. Issuing a new token must retire
	// all prior unused ones so stale emailed links stop working.
	InvalidateUnused(ctx context.Context, accountID ulid.ULID) (int64, error)

	// Create stores a new reset token.
	Create(ctx context.Context, reset *ResetToken) error

	// GetConsumable retrieves the token if it is unused and unexpired at
	// now. Returns an error wrapping ErrNotFound otherwise.
	GetConsumable(ctx context.Context, token string, now time.Time) (*ResetToken, error)

	// MarkUsed flips the used flag on a token.
	MarkUsed(ctx context.Context, id ulid.ULID) error

	// DeleteExpired removes all expired tokens and returns the count.
	DeleteExpired(ctx context.Context) (int64, error)
}
