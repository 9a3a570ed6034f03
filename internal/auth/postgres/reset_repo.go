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

// ResetTokenRepository implements auth.ResetTokenRepository using PostgreSQL.
type ResetTokenRepository struct {
	pool DB
}

// NewResetTokenRepository creates a new ResetTokenRepository.
func NewResetTokenRepository(pool DB) *ResetTokenRepository {
	return &ResetTokenRepository{pool: pool}
}

// InvalidateUnused marks every unused token for the account as used.
func (r *ResetTokenRepository) InvalidateUnused(ctx context.Context, accountID ulid.ULID) (int64, error) {
	result, err := db(ctx, r.pool).Exec(ctx, `
		UPDATE reset_tokens SET used = TRUE
		WHERE account_id = $1 AND used = FALSE
	`, accountID.String())
	if err != nil {
		return 0, oops.Code("RESET_INVALIDATE_FAILED").
			With("operation", "invalidate unused reset tokens").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Create stores a new reset token.
func (r *ResetTokenRepository) Create(ctx context.Context, reset *auth.ResetToken) error {
	_, err := db(ctx, r.pool).Exec(ctx, `
		INSERT INTO reset_tokens (id, account_id, token, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		reset.ID.String(),
		reset.AccountID.String(),
		reset.Token,
		reset.ExpiresAt,
		reset.Used,
		reset.CreatedAt,
	)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert reset token").
			With("account_id", reset.AccountID.String()).
			Wrap(err)
	}
	return nil
}

// GetConsumable retrieves a token that is unused and unexpired at now.
func (r *ResetTokenRepository) GetConsumable(ctx context.Context, token string, now time.Time) (*auth.ResetToken, error) {
	row := db(ctx, r.pool).QueryRow(ctx, `
		SELECT id, account_id, token, expires_at, used, created_at
		FROM reset_tokens
		WHERE token = $1 AND used = FALSE AND expires_at > $2
	`, token, now)

	reset, err := scanResetToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_GET_CONSUMABLE_FAILED").
			With("operation", "get consumable reset token").
			Wrap(err)
	}
	return reset, nil
}

// MarkUsed flips the used flag on a token.
func (r *ResetTokenRepository) MarkUsed(ctx context.Context, id ulid.ULID) error {
	result, err := db(ctx, r.pool).Exec(ctx, `
		UPDATE reset_tokens SET used = TRUE WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("RESET_MARK_USED_FAILED").
			With("operation", "mark reset token used").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("RESET_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteExpired removes all expired reset tokens and returns the count.
func (r *ResetTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := db(ctx, r.pool).Exec(ctx, `
		DELETE FROM reset_tokens WHERE expires_at < $1
	`, time.Now())
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired reset tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanResetToken scans a single row into a ResetToken.
// Callers are responsible for handling pgx.ErrNoRows.
func scanResetToken(row pgx.Row) (*auth.ResetToken, error) {
	var (
		idStr        string
		accountIDStr string
		token        string
		expiresAt    time.Time
		used         bool
		createdAt    time.Time
	)

	err := row.Scan(&idStr, &accountIDStr, &token, &expiresAt, &used, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("RESET_SCAN_FAILED").
			With("operation", "scan reset token").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_ID").
			With("operation", "parse reset token id").
			With("id", idStr).
			Wrap(err)
	}

	accountID, err := ulid.Parse(accountIDStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_ACCOUNT_ID").
			With("operation", "parse account id").
			With("account_id", accountIDStr).
			Wrap(err)
	}

	return &auth.ResetToken{
		ID:        id,
		AccountID: accountID,
		Token:     token,
		ExpiresAt: expiresAt,
		Used:      used,
		CreatedAt: createdAt,
	}, nil
}

// Compile-time interface check.
var _ auth.ResetTokenRepository = (*ResetTokenRepository)(nil)
