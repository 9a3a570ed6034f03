// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vysus Group

package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/oops"

	"github.com/vysusgroup/training-portal/internal/auth"
	"github.com/vysusgroup/training-portal/internal/observability"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Options configures the web server.
type Options struct {
	Addr            string
	StaticDir       string
	SessionLifetime time.Duration
	// SecureCookies marks the session cookie Secure; set in production.
	SecureCookies bool
}

// Server is the portal HTTP server.
type Server struct {
	addr            string
	staticDir       string
	sessionLifetime time.Duration
	secureCookies   bool

	svc     AuthService
	gate    *Gate
	metrics *observability.Metrics
	logger  *slog.Logger

	registerLimiter *auth.Limiter
	loginLimiter    *auth.Limiter
	forgotLimiter   *auth.Limiter
	resetLimiter    *auth.Limiter

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates the portal server. metrics may be nil (no recording).
func NewServer(opts Options, svc AuthService, metrics *observability.Metrics, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, oops.Code("WEB_SERVER_INVALID").Errorf("auth service is required")
	}
	if opts.SessionLifetime <= 0 {
		opts.SessionLifetime = auth.DefaultSessionLifetime
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		addr:            opts.Addr,
		staticDir:       opts.StaticDir,
		sessionLifetime: opts.SessionLifetime,
		secureCookies:   opts.SecureCookies,
		svc:             svc,
		gate:            NewGate(svc, logger),
		metrics:         metrics,
		logger:          logger,
		registerLimiter: auth.NewLimiter(auth.RegisterLimit, auth.RegisterWindow),
		loginLimiter:    auth.NewLimiter(auth.LoginLimit, auth.LoginWindow),
		forgotLimiter:   auth.NewLimiter(auth.ForgotPasswordLimit, auth.ForgotPasswordWindow),
		resetLimiter:    auth.NewLimiter(auth.ResetPasswordLimit, auth.ResetPasswordWindow),
	}, nil
}

// Handler builds the full route tree. Exposed for httptest use.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.Use(s.instrument)
	r.Use(limitBody)
	r.Use(s.gate.Middleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	authAPI := api.PathPrefix("/auth").Subrouter()
	authAPI.Handle("/register",
		rateLimit(s.registerLimiter, s.metrics, "/api/auth/register", http.HandlerFunc(s.handleRegister))).
		Methods(http.MethodPost)
	authAPI.Handle("/login",
		rateLimit(s.loginLimiter, s.metrics, "/api/auth/login", http.HandlerFunc(s.handleLogin))).
		Methods(http.MethodPost)
	authAPI.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	authAPI.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)
	authAPI.Handle("/forgot-password",
		rateLimit(s.forgotLimiter, s.metrics, "/api/auth/forgot-password", http.HandlerFunc(s.handleForgotPassword))).
		Methods(http.MethodPost)
	authAPI.Handle("/reset-password",
		rateLimit(s.resetLimiter, s.metrics, "/api/auth/reset-password", http.HandlerFunc(s.handleResetPassword))).
		Methods(http.MethodPost)

	for path, file := range publicPages {
		r.HandleFunc(path, s.servePage(file)).Methods(http.MethodGet)
	}

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.PathPrefix("/").HandlerFunc(s.handleStatic).Methods(http.MethodGet)

	return r
}

// Start begins serving. Mirrors the observability server lifecycle: it
// returns an error channel that reports serve failures and closes on
// graceful shutdown.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("web server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("web server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("web server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_web_server").Wrap(err)
		}
	}

	s.logger.Info("web server stopped")
	return nil
}

// Addr returns the listen address, or "" when not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// instrument records request counts and latency per matched route.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		s.metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
