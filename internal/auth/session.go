// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vysus Group

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session configuration.
const (
	// DefaultSessionLifetime is used when no lifetime is configured.
	DefaultSessionLifetime = 7 * 24 * time.Hour

	// MaxUserAgentLength bounds the stored user-agent string.
	MaxUserAgentLength = 500
)

// Session represents a logged-in browser. The token is an opaque bearer
// secret stored both here and in the client's cookie. IPAddress and
// UserAgent are informational only and never feed authorization decisions.
type Session struct {
	ID        ulid.ULID
	AccountID ulid.ULID
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	IPAddress string
	UserAgent string
}

// NewSession creates a validated Session. The user-agent is truncated to
// MaxUserAgentLength. IPAddress and UserAgent are optional and may be empty.
func NewSession(accountID ulid.ULID, token string, expiresAt time.Time, ipAddress, userAgent string) (*Session, error) {
	if accountID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_ACCOUNT").Errorf("account ID cannot be zero")
	}
	if token == "" {
		return nil, oops.Code("SESSION_INVALID_TOKEN").Errorf("token cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}
	if len(userAgent) > MaxUserAgentLength {
		userAgent = userAgent[:MaxUserAgentLength]
	}

	return &Session{
		ID:        ulid.Make(),
		AccountID: accountID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}, nil
}

// IsExpiredAt returns true if the session would be expired at the given time.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetValid retrieves the session with the given token if its expiry is
	// after now. Expired rows are excluded, not deleted. Returns an error
	// wrapping ErrNotFound when no live session matches.
	GetValid(ctx context.Context, token string, now time.Time) (*Session, error)

	// DeleteByToken removes the session with the given token and returns
	// the number of rows removed. Zero is not an error.
	DeleteByToken(ctx context.Context, token string) (int64, error)

	// DeleteByAccount removes all sessions for an account and returns the
	// number of rows removed.
	DeleteByAccount(ctx context.Context, accountID ulid.ULID) (int64, error)

	// DeleteExpired removes all expired sessions and returns the count.
	// Operational sweep only; nothing in the request path calls this.
	DeleteExpired(ctx context.Context) (int64, error)
}
