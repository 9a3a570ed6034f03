// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vysus Group

package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vysusgroup/training-portal/internal/auth"
)

// PathClass is the gate's view of a request path.
type PathClass int

const (
	// PathPublic paths proceed without authentication.
	PathPublic PathClass = iota
	// PathProtected paths require a resolvable session.
	PathProtected
)

// publicPrefixes lists path prefixes reachable without a session: the auth
// API, the health check, and the pages (plus favicon) needed to log in.
var publicPrefixes = []string{
	"/login",
	"/register",
	"/reset-password",
	"/forgot-password",
	"/api/auth/",
	"/api/health",
	"/favicon.ico",
}

// Classify decides whether a path is public or protected. Prefix matching,
// so assets under a public page path are public too.
func Classify(path string) PathClass {
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return PathPublic
		}
	}
	return PathProtected
}

// Decision is the gate's verdict on a protected request.
type Decision int

const (
	// DecisionAllow proceeds with the resolved account.
	DecisionAllow Decision = iota
	// DecisionRedirect sends the client to the login page.
	DecisionRedirect
	// DecisionClearCookieAndRedirect additionally deletes the session
	// cookie: the client presented one, but it no longer resolves.
	DecisionClearCookieAndRedirect
)

// SessionResolver maps a session token to its active account.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*auth.Account, error)
}

// Gate is the access-control decision point for protected paths.
type Gate struct {
	resolver SessionResolver
	logger   *slog.Logger
}

// NewGate creates a Gate.
func NewGate(resolver SessionResolver, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{resolver: resolver, logger: logger}
}

// Authorize resolves a session token to an account. A missing token
// redirects; a present-but-unresolvable token redirects and clears the dead
// cookie so the browser does not loop on it. Store faults during resolution
// are treated as not-authenticated - the gate fails closed, never open.
func (g *Gate) Authorize(ctx context.Context, token string) (*auth.Account, Decision) {
	if token == "" {
		return nil, DecisionRedirect
	}

	account, err := g.resolver.ResolveSession(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, DecisionClearCookieAndRedirect
		}
		g.logger.Error("session resolution failed, denying access", "error", err)
		return nil, DecisionRedirect
	}

	return account, DecisionAllow
}

// Middleware enforces the gate on every request. Public paths pass through
// untouched; protected paths require a session, with the resolved account
// attached to the request context.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Classify(r.URL.Path) == PathPublic {
			next.ServeHTTP(w, r)
			return
		}

		var token string
		if cookie, err := r.Cookie(sessionCookieName); err == nil {
			token = cookie.Value
		}

		account, decision := g.Authorize(r.Context(), token)
		switch decision {
		case DecisionAllow:
			next.ServeHTTP(w, r.WithContext(ContextWithAccount(r.Context(), account)))
		case DecisionClearCookieAndRedirect:
			clearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusFound)
		default:
			http.Redirect(w, r, "/login", http.StatusFound)
		}
	})
}
