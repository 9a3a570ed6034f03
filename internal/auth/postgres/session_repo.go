// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vysus Group

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/vysusgroup/training-portal/internal/auth"
)

// SessionRepository implements auth.SessionRepository using PostgreSQL.
type SessionRepository struct {
	pool DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool DB) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	_, err := db(ctx, r.pool).Exec(ctx, `
		INSERT INTO sessions (id, account_id, token, expires_at, created_at, client_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		session.ID.String(),
		session.AccountID.String(),
		session.Token,
		session.ExpiresAt,
		session.CreatedAt,
		session.IPAddress,
		session.UserAgent,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("account_id", session.AccountID.String()).
			Wrap(err)
	}
	return nil
}

// GetValid retrieves a session by token if it has not expired at now.
// Expired rows are excluded by the predicate, not deleted.
func (r *SessionRepository) GetValid(ctx context.Context, token string, now time.Time) (*auth.Session, error) {
	row := db(ctx, r.pool).QueryRow(ctx, `
		SELECT id, account_id, token, expires_at, created_at, client_address, user_agent
		FROM sessions
		WHERE token = $1 AND expires_at > $2
	`, token, now)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_VALID_FAILED").
			With("operation", "get session by token").
			Wrap(err)
	}
	return session, nil
}

// DeleteByToken removes the session with the given token. Zero rows removed
// is a valid outcome, not an error.
func (r *SessionRepository) DeleteByToken(ctx context.Context, token string) (int64, error) {
	result, err := db(ctx, r.pool).Exec(ctx, `
		DELETE FROM sessions WHERE token = $1
	`, token)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session by token").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// DeleteByAccount removes all sessions for an account.
func (r *SessionRepository) DeleteByAccount(ctx context.Context, accountID ulid.ULID) (int64, error) {
	result, err := db(ctx, r.pool).Exec(ctx, `
		DELETE FROM sessions WHERE account_id = $1
	`, accountID.String())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_BY_ACCOUNT_FAILED").
			With("operation", "delete sessions by account").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// DeleteExpired removes all expired sessions and returns the count.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := db(ctx, r.pool).Exec(ctx, `
		DELETE FROM sessions WHERE expires_at < $1
	`, time.Now())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanSession scans a single row into a Session.
// Callers are responsible for handling pgx.ErrNoRows.
func scanSession(row pgx.Row) (*auth.Session, error) {
	var (
		idStr         string
		accountIDStr  string
		token         string
		expiresAt     time.Time
		createdAt     time.Time
		clientAddress *string
		userAgent     *string
	)

	err := row.Scan(&idStr, &accountIDStr, &token, &expiresAt, &createdAt, &clientAddress, &userAgent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("SESSION_SCAN_FAILED").
			With("operation", "scan session").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").
			With("operation", "parse session id").
			With("id", idStr).
			Wrap(err)
	}

	accountID, err := ulid.Parse(accountIDStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ACCOUNT_ID").
			With("operation", "parse account id").
			With("account_id", accountIDStr).
			Wrap(err)
	}

	session := &auth.Session{
		ID:        id,
		AccountID: accountID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}
	if clientAddress != nil {
		session.IPAddress = *clientAddress
	}
	if userAgent != nil {
		session.UserAgent = *userAgent
	}
	return session, nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
