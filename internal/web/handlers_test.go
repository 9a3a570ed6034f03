// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vysus Group

package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vysusgroup/training-portal/internal/auth"
)

// stubAuthService lets each test script the service surface directly.
type stubAuthService struct {
	registerFn       func(ctx context.Context, email, password string, fullName *string) (*auth.Account, error)
	loginFn          func(ctx context.Context, email, password, ipAddress, userAgent string) (*auth.Account, *auth.Session, error)
	logoutFn         func(ctx context.Context, token string) error
	resolveSessionFn func(ctx context.Context, token string) (*auth.Account, error)
	forgotPasswordFn func(ctx context.Context, email string) error
	resetPasswordFn  func(ctx context.Context, token, newPassword string) error
}

func (s *stubAuthService) Register(ctx context.Context, email, password string, fullName *string) (*auth.Account, error) {
	return s.registerFn(ctx, email, password, fullName)
}

func (s *stubAuthService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*auth.Account, *auth.Session, error) {
	return s.loginFn(ctx, email, password, ipAddress, userAgent)
}

func (s *stubAuthService) Logout(ctx context.Context, token string) error {
	return s.logoutFn(ctx, token)
}

func (s *stubAuthService) ResolveSession(ctx context.Context, token string) (*auth.Account, error) {
	return s.resolveSessionFn(ctx, token)
}

func (s *stubAuthService) ForgotPassword(ctx context.Context, email string) error {
	return s.forgotPasswordFn(ctx, email)
}

func (s *stubAuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	return s.resetPasswordFn(ctx, token, newPassword)
}

func newTestHandler(t *testing.T, svc AuthService, opts Options) http.Handler {
	t.Helper()
	if opts.StaticDir == "" {
		opts.StaticDir = t.TempDir()
	}
	srv, err := NewServer(opts, svc, nil, discardLogger())
	require.NoError(t, err)
	return srv.Handler()
}

func decodeDetail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body.Detail
}

func decodeMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body.Message
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestServer_Health(t *testing.T) {
	handler := newTestHandler(t, &stubAuthService{}, Options{})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "training-portal", body["service"])
}

func TestServer_Register(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &stubAuthService{
			registerFn: func(_ context.Context, email, password string, fullName *string) (*auth.Account, error) {
				assert.Equal(t, "alice@vysusgroup.com", email)
				assert.Equal(t, "GoodPass123", password)
				require.NotNil(t, fullName)
				assert.Equal(t, "Alice", *fullName)
				return &auth.Account{ID: ulid.Make(), Email: email, IsActive: true}, nil
			},
		}
		handler := newTestHandler(t, svc, Options{})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, postJSON("/api/auth/register",
			`{"email":"alice@vysusgroup.com","password":"GoodPass123","full_name":"Alice"}`))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Registration successful. You can now log in.", decodeMessage(t, w))
	})

	t.Run("validation failure carries the reason", func(t *testing.T) {
		svc := &stubAuthService{
			registerFn: func(context.Context, string, string, *string) (*auth.Account, error) {
				return nil, oops.Code("AUTH_VALIDATION_FAILED").Errorf("password must be at least 10 characters")
			},
		}
		handler := newTestHandler(t, svc, Options{})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, postJSON("/api/auth/register", `{"email":"a@vysusgroup.com","password":"x"}`))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, decodeDetail(t, w), "at least 10 characters")
	})

	t.Run("duplicate email", func(t *testing.T) {
		svc := &stubAuthService{
			registerFn: func(context.Context, string, string, *string) (*auth.Account, error) {
				return nil, oops.Code("AUTH_EMAIL_TAKEN").Errorf("an account with this email already exists")
			},
		}
		handler := newTestHandler(t, svc, Options{})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, postJSON("/api/auth/register", `{"email":"a@vysusgroup.com","password":"GoodPass123"}`))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "An account with this email already exists", decodeDetail(t, w))
	})

	t.Run("malformed body", func(t *testing.T) {
		handler := newTestHandler(t, &stubAuthService{}, Options{})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, postJSON("/api/auth/register", `{not json`))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "Invalid request body", decodeDetail(t, w))
	})
}

func TestServer_Login(t *testing.T) {
	account := &auth.Account{ID: ulid.Make(), Email: "alice@vysusgroup.com", IsActive: true}
	session := &auth.Session{ID: ulid.Make(), AccountID: account.ID, Token: "session-tok"}

	t.Run("success sets the session cookie", func(t *testing.T) {
		svc := &stubAuthService{
			loginFn: func(_ context.Context, _, _, ipAddress, userAgent string) (*auth.Account, *auth.Session, error) {
				assert.Equal(t, "203.0.113.9", ipAddress)
				assert.Equal(t, "test-agent", userAgent)
				return account, session, nil
			},
		}
		handler := newTestHandler(t, svc, Options{SessionLifetime: time.Hour})

		req := postJSON("/api/auth/login", `{"email":"alice@vysusgroup.com","password":"GoodPass123"}`)
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		req.Header.Set("User-Agent", "test-agent")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		cookie := cookies[0]
		assert.Equal(t, sessionCookieName, cookie.Name)
		assert.Equal(t, "session-tok", cookie.Value)
		assert.Equal(t, "/", cookie.Path)
		assert.Equal(t, int(time.Hour.Seconds()), cookie.MaxAge)
		assert.True(t, cookie.HttpOnly)
		assert.False(t, cookie.Secure, "secure is off outside production")
		assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

		var body struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, account.ID.String(), body.ID)
		assert.Equal(t, account.Email, body.Email)
	})

	t.Run("secure cookie in production", func(t *testing.T) {
		svc := &stubAuthService{
			loginFn: func(context.Context, string, string, string, string) (*auth.Account, *auth.Session, error) {
				return account, session, nil
			},
		}
		handler := newTestHandler(t, svc, Options{SecureCookies: true})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, postJSON("/api/auth/login", `{"email":"alice@vysusgroup.com","password":"GoodPass123"}`))

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.True(t, cookies[0].Secure)
	})

	t.Run("bad credentials", func(t *testing.T) {
		svc := &stubAuthService{
			loginFn: func(context.Context, string, string, string, string) (*auth.Account, *auth.Session, error) {
				return nil, nil, oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid email or password")
			},
		}
		handler := newTestHandler(t, svc, Options{})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, postJSON("/api/auth/login", `{"email":"a@vysusgroup.com","password":"nope"}`))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid email or password", decodeDetail(t, w))
		assert.Empty(t, w.Result().Cookies())
	})

	t.Run("deactivated account", func(t *testing.T) {
		svc := &stubAuthService{
			loginFn: func(context.Context, string, string, string, string) (*auth.Account, *auth.Session, error) {
				return nil, nil, oops.Code("AUTH_ACCOUNT_DISABLED").Errorf("account is deactivated")
			},
		}
		handler := newTestHandler(t, svc, Options{})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, postJSON("/api/auth/login", `{"email":"a@vysusgroup.com","password":"GoodPass123"}`))

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "Account is deactivated", decodeDetail(t, w))
	})

	t.Run("internal fault hides details", func(t *testing.T) {
		svc := &stubAuthService{
			loginFn: func(context.Context, string, string, string, string) (*auth.Account, *auth.Session, error) {
				return nil, nil, oops.Code("AUTH_LOGIN_FAILED").Errorf("pool exhausted")
			},
		}
		handler := newTestHandler(t, svc, Options{})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, postJSON("/api/auth/login", `{"email":"a@vysusgroup.com","password":"GoodPass123"}`))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Internal server error", decodeDetail(t, w))
	})
}

func TestServer_Logout(t *testing.T) {
	t.Run("clears the cookie even without a session", func(t *testing.T) {
		svc := &stubAuthService{
			logoutFn: func(_ context.Context, token string) error {
				assert.Empty(t, token)
				return nil
			},
		}
		handler := newTestHandler(t, svc, Options{})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, postJSON("/api/auth/logout", ``))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Logged out successfully", decodeMessage(t, w))

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Negative(t, cookies[0].MaxAge)
	})

	t.Run("passes the presented token to the service", func(t *testing.T) {
		var gotToken string
		svc := &stubAuthService{
			logoutFn: func(_ context.Context, token string) error {
				gotToken = token
				return nil
			},
		}
		handler := newTestHandler(t, svc, Options{})

		req := postJSON("/api/auth/logout", ``)
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "session-tok"})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "session-tok", gotToken)
	})
}

func TestServer_Me(t *testing.T) {
	account := &auth.Account{ID: ulid.Make(), Email: "alice@vysusgroup.com", IsActive: true}

	t.Run("no cookie", func(t *testing.T) {
		handler := newTestHandler(t, &stubAuthService{}, Options{})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Not authenticated", decodeDetail(t, w))
	})

	t.Run("dead session", func(t *testing.T) {
		svc := &stubAuthService{
			resolveSessionFn: func(context.Context, string) (*auth.Account, error) {
				return nil, oops.Code("SESSION_INVALID").Wrap(auth.ErrNotFound)
			},
		}
		handler := newTestHandler(t, svc, Options{})

		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "stale"})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid or expired session", decodeDetail(t, w))
	})

	t.Run("live session returns the account", func(t *testing.T) {
		svc := &stubAuthService{
			resolveSessionFn: func(_ context.Context, token string) (*auth.Account, error) {
				assert.Equal(t, "session-tok", token)
				return account, nil
			},
		}
		handler := newTestHandler(t, svc, Options{})

		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "session-tok"})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Email string `json:"email"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, account.Email, body.Email)
	})
}

func TestServer_ForgotPassword(t *testing.T) {
	svc := &stubAuthService{
		forgotPasswordFn: func(_ context.Context, email string) error {
			assert.Equal(t, "alice@vysusgroup.com", email)
			return nil
		},
	}
	handler := newTestHandler(t, svc, Options{})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, postJSON("/api/auth/forgot-password", `{"email":"alice@vysusgroup.com"}`))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "If an account exists with this email, you will receive a password reset link.", decodeMessage(t, w))
}

func TestServer_ResetPassword(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &stubAuthService{
			resetPasswordFn: func(_ context.Context, token, newPassword string) error {
				assert.Equal(t, "reset-tok", token)
				assert.Equal(t, "NewGoodPass1", newPassword)
				return nil
			},
		}
		handler := newTestHandler(t, svc, Options{})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, postJSON("/api/auth/reset-password", `{"token":"reset-tok","new_password":"NewGoodPass1"}`))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Password reset successful. Please log in with your new password.", decodeMessage(t, w))
	})

	t.Run("invalid token", func(t *testing.T) {
		svc := &stubAuthService{
			resetPasswordFn: func(context.Context, string, string) error {
				return oops.Code("RESET_TOKEN_INVALID").Errorf("invalid or expired reset token")
			},
		}
		handler := newTestHandler(t, svc, Options{})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, postJSON("/api/auth/reset-password", `{"token":"bad","new_password":"NewGoodPass1"}`))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid or expired reset token", decodeDetail(t, w))
	})
}

func TestServer_RateLimit(t *testing.T) {
	svc := &stubAuthService{
		loginFn: func(context.Context, string, string, string, string) (*auth.Account, *auth.Session, error) {
			return nil, nil, oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid email or password")
		},
	}
	handler := newTestHandler(t, svc, Options{})

	doLogin := func(remoteAddr, forwardedFor string) *httptest.ResponseRecorder {
		req := postJSON("/api/auth/login", `{"email":"a@vysusgroup.com","password":"nope"}`)
		req.RemoteAddr = remoteAddr
		if forwardedFor != "" {
			req.Header.Set("X-Forwarded-For", forwardedFor)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	for i := range auth.LoginLimit {
		w := doLogin("203.0.113.9:40001", "")
		require.Equal(t, http.StatusUnauthorized, w.Code, fmt.Sprintf("attempt %d should pass the limiter", i+1))
	}

	w := doLogin("203.0.113.9:40002", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too many requests. Please try again later.", decodeDetail(t, w))

	// A different peer is unaffected.
	w = doLogin("198.51.100.7:40003", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServer_RateLimitIgnoresForwardedFor(t *testing.T) {
	svc := &stubAuthService{
		loginFn: func(context.Context, string, string, string, string) (*auth.Account, *auth.Session, error) {
			return nil, nil, oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid email or password")
		},
	}
	handler := newTestHandler(t, svc, Options{})

	// One peer rotating X-Forwarded-For must not reset its own limit.
	throttled := 0
	for i := range 40 {
		req := postJSON("/api/auth/login", `{"email":"a@vysusgroup.com","password":"nope"}`)
		req.RemoteAddr = "203.0.113.9:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.99.%d.%d", i/256, i%256))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			throttled++
		} else {
			require.Equal(t, http.StatusUnauthorized, w.Code)
		}
	}
	assert.Equal(t, 40-auth.LoginLimit, throttled)
}

func TestRemoteAddress(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"host stripped of port", "192.168.1.10:54321", "", "192.168.1.10"},
		{"forwarded header ignored", "10.0.0.1:80", "203.0.113.9", "10.0.0.1"},
		{"portless addr passed through", "192.168.1.10", "", "192.168.1.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, remoteAddress(req))
		})
	}
}

func TestClientAddress(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"remote addr host only", "192.168.1.10:54321", "", "192.168.1.10"},
		{"single forwarded hop", "10.0.0.1:80", "203.0.113.9", "203.0.113.9"},
		{"first hop of chain", "10.0.0.1:80", "203.0.113.9, 10.0.0.2, 10.0.0.3", "203.0.113.9"},
		{"forwarded with spaces", "10.0.0.1:80", "  203.0.113.9  ", "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, clientAddress(req))
		})
	}
}
