// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vysus Group

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/vysusgroup/training-portal/internal/observability"
	"github.com/vysusgroup/training-portal/pkg/errutil"
)

// Transactor runs a function inside a single database transaction. Repository
// calls made with the context it passes to fn join that transaction.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ResetMailer is the outbound-email capability boundary. Implementations
// build the reset URL from the token; failures never reach portal users.
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, to, token string) error
}

// Config carries the policy knobs for the auth service. Constructed once at
// process start; never read from ambient state.
type Config struct {
	// AllowedEmailDomain is the registration allow-list suffix, without the
	// leading "@" (e.g. "vysusgroup.com").
	AllowedEmailDomain string

	// SessionLifetime is how long a login lasts.
	SessionLifetime time.Duration

	// ResetTokenLifetime is how long an emailed reset link stays valid.
	ResetTokenLifetime time.Duration
}

// Service implements the authentication state machine.
type Service struct {
	accounts AccountRepository
	sessions SessionRepository
	resets   ResetTokenRepository
	hasher   PasswordHasher
	mailer   ResetMailer
	tx       Transactor
	cfg      Config
	logger   *slog.Logger
}

// NewService creates a Service, validating all dependencies.
func NewService(
	accounts AccountRepository,
	sessions SessionRepository,
	resets ResetTokenRepository,
	hasher PasswordHasher,
	mailer ResetMailer,
	tx Transactor,
	cfg Config,
	logger *slog.Logger,
) (*Service, error) {
	switch {
	case accounts == nil:
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("accounts repository is required")
	case sessions == nil:
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("sessions repository is required")
	case resets == nil:
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("reset token repository is required")
	case hasher == nil:
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	case mailer == nil:
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("reset mailer is required")
	case tx == nil:
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("transactor is required")
	case cfg.AllowedEmailDomain == "":
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("allowed email domain is required")
	}
	if cfg.SessionLifetime <= 0 {
		cfg.SessionLifetime = DefaultSessionLifetime
	}
	if cfg.ResetTokenLifetime <= 0 {
		cfg.ResetTokenLifetime = DefaultResetTokenLifetime
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		accounts: accounts,
		sessions: sessions,
		resets:   resets,
		hasher:   hasher,
		mailer:   mailer,
		tx:       tx,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// dummyPasswordHash is verified against when no account matches the login
// email, so the response time does not reveal whether the account exists.
// This is NOT a real credential - it's a fake digest that never matches.
//
//nolint:gosec // G101: intentionally fake digest for timing equalization, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Register creates a new account. It does not create a session; an explicit
// login is required afterwards.
func (s *Service) Register(ctx context.Context, email, password string, fullName *string) (*Account, error) {
	email = NormalizeEmail(email)

	if err := ValidateEmail(email, s.cfg.AllowedEmailDomain); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	account, err := NewAccount(email, digest, fullName)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "new account").
			Wrap(err)
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, oops.Code("AUTH_EMAIL_TAKEN").
				Errorf("an account with this email already exists")
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create account").
			Wrap(err)
	}

	s.logger.Info("account registered", "account_id", account.ID.String())
	observability.RecordRegistration()
	return account, nil
}

// Login verifies credentials and creates a session. A missing account and a
// wrong password produce the same error; the caller must not be able to tell
// them apart. A recognized but deactivated account is a distinct condition.
func (s *Service) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*Account, *Session, error) {
	email = NormalizeEmail(email)

	account, lookupErr := s.accounts.GetByEmail(ctx, email)

	// Pick the digest to verify against; when the account is missing we
	// still run the full KDF so response time stays flat.
	targetHash := dummyPasswordHash
	exists := false
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get account by email").
				Wrap(lookupErr)
		}
	} else {
		targetHash = account.PasswordHash
		exists = true
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		return nil, nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	if !exists || !valid {
		return nil, nil, oops.Code("AUTH_INVALID_CREDENTIALS").
			Errorf("invalid email or password")
	}

	if !account.IsActive {
		return nil, nil, oops.Code("AUTH_ACCOUNT_DISABLED").
			Errorf("account is deactivated")
	}

	token, err := MintToken()
	if err != nil {
		return nil, nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "mint session token").
			Wrap(err)
	}

	session, err := NewSession(account.ID, token, time.Now().Add(s.cfg.SessionLifetime), ipAddress, userAgent)
	if err != nil {
		return nil, nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "new session").
			Wrap(err)
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	s.logger.Info("login", "account_id", account.ID.String())
	observability.RecordLogin()
	return account, session, nil
}

// Logout deletes the session matching the token. Idempotent: an absent or
// already-deleted session is not an error, and an empty token is a no-op.
// No authentication is required.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if _, err := s.sessions.DeleteByToken(ctx, token); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session by token").
			Wrap(err)
	}
	return nil
}

// ResolveSession maps a session token to its active account. Returns an
// error wrapping ErrNotFound for every "no" - empty token, unknown token,
// expired session, missing account, deactivated account - so callers cannot
// distinguish those cases. Performs no mutation; safe on every request.
func (s *Service) ResolveSession(ctx context.Context, token string) (*Account, error) {
	if token == "" {
		return nil, oops.Code("SESSION_INVALID").Wrap(ErrNotFound)
	}

	session, err := s.sessions.GetValid(ctx, token, time.Now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_INVALID").Wrap(ErrNotFound)
		}
		return nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "get valid session").
			Wrap(err)
	}

	account, err := s.accounts.GetByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_INVALID").Wrap(ErrNotFound)
		}
		return nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "get session account").
			Wrap(err)
	}
	if !account.IsActive {
		return nil, oops.Code("SESSION_INVALID").Wrap(ErrNotFound)
	}

	return account, nil
}

// ForgotPassword starts the reset flow. Whatever happens, the caller gets
// the same nil result for unknown, inactive, and active accounts; only a
// store fault surfaces. For an active account it retires all prior unused
// tokens and creates the new one in a single transaction, then emails the
// token. Email failures are logged and counted, never surfaced.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}
	if !account.IsActive {
		return nil
	}

	token, err := MintToken()
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "mint reset token").
			Wrap(err)
	}

	reset, err := NewResetToken(account.ID, token, time.Now().Add(s.cfg.ResetTokenLifetime))
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "new reset token").
			Wrap(err)
	}

	// Invalidation must be atomic with creation: two concurrent requests
	// must not each leave a live token behind.
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.resets.InvalidateUnused(ctx, account.ID); err != nil {
			return oops.Code("RESET_REQUEST_FAILED").
				With("operation", "invalidate unused reset tokens").
				Wrap(err)
		}
		if err := s.resets.Create(ctx, reset); err != nil {
			return oops.Code("RESET_REQUEST_FAILED").
				With("operation", "create reset token").
				Wrap(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, account.Email, token); err != nil {
		errutil.LogError(s.logger, "password reset email failed", err)
		observability.RecordResetEmailFailure()
	}

	return nil
}

// ResetPassword consumes a reset token. The password update, the used flag,
// and the session wipe commit as one transaction; a failure in any of them
// rolls back all three.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	reset, err := s.resets.GetConsumable(ctx, token, time.Now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("RESET_TOKEN_INVALID").
				Errorf("invalid or expired reset token")
		}
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "get consumable reset token").
			Wrap(err)
	}

	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.accounts.UpdatePassword(ctx, reset.AccountID, digest); err != nil {
			if errors.Is(err, ErrNotFound) {
				// Account deleted between lookup and commit; cascades
				// have already removed the token.
				return oops.Code("RESET_TOKEN_INVALID").
					Errorf("invalid or expired reset token")
			}
			return oops.Code("RESET_PASSWORD_FAILED").
				With("operation", "update password").
				Wrap(err)
		}
		if err := s.resets.MarkUsed(ctx, reset.ID); err != nil {
			return oops.Code("RESET_PASSWORD_FAILED").
				With("operation", "mark reset token used").
				Wrap(err)
		}
		if _, err := s.sessions.DeleteByAccount(ctx, reset.AccountID); err != nil {
			return oops.Code("RESET_PASSWORD_FAILED").
				With("operation", "delete account sessions").
				Wrap(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("password reset", "account_id", reset.AccountID.String())
	return nil
}
