// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vysus Group

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/vysusgroup/training-portal/internal/auth"
	authpg "github.com/vysusgroup/training-portal/internal/auth/postgres"
	"github.com/vysusgroup/training-portal/internal/config"
	"github.com/vysusgroup/training-portal/internal/logging"
	"github.com/vysusgroup/training-portal/internal/mail"
	"github.com/vysusgroup/training-portal/internal/observability"
	"github.com/vysusgroup/training-portal/internal/store"
	"github.com/vysusgroup/training-portal/internal/web"
)

const shutdownTimeout = 5 * time.Second

// newServeCmd creates the serve subcommand with flag overrides for the
// koanf-loaded configuration.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the training portal HTTP server",
		Long: `Start the portal: the JSON auth API, session-gated static content,
and a separate metrics/health endpoint.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("listen_addr", "", "HTTP listen address")
	cmd.Flags().String("metrics_addr", "", "metrics/health HTTP address")
	cmd.Flags().String("database_url", "", "PostgreSQL connection string")
	cmd.Flags().String("base_url", "", "externally visible portal origin")
	cmd.Flags().String("environment", "", "environment (development or production)")
	cmd.Flags().String("static_dir", "", "directory of static content")
	cmd.Flags().String("log_format", "", "log format (json or text)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logging.SetDefault("portal", version, cfg.LogFormat)
	logger := slog.Default()

	logger.Info("starting portal",
		"listen_addr", cfg.ListenAddr,
		"environment", cfg.Environment,
		"mail_enabled", cfg.MailEnabled(),
	)

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	var mailer auth.ResetMailer
	if cfg.MailEnabled() {
		smtpSender, err := mail.NewSMTPSender(mail.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			BaseURL:  cfg.BaseURL,
			UseTLS:   cfg.SMTP.UseTLS,
		}, logger)
		if err != nil {
			return err
		}
		mailer = smtpSender
	} else {
		logger.Warn("smtp host not configured, reset links will be logged instead of emailed")
		mailer = &mail.LogSender{BaseURL: cfg.BaseURL, Logger: logger}
	}

	svc, err := auth.NewService(
		authpg.NewAccountRepository(pool),
		authpg.NewSessionRepository(pool),
		authpg.NewResetTokenRepository(pool),
		auth.NewArgon2idHasher(),
		mailer,
		authpg.NewTransactor(pool),
		auth.Config{
			AllowedEmailDomain: cfg.AllowedEmailDomain,
			SessionLifetime:    cfg.SessionLifetime,
			ResetTokenLifetime: cfg.ResetTokenLifetime,
		},
		logger,
	)
	if err != nil {
		return err
	}

	obsServer := observability.NewServer(cfg.MetricsAddr, func() bool {
		pingCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		return pool.Ping(pingCtx) == nil
	})
	obsErrCh, err := obsServer.Start()
	if err != nil {
		return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
	}

	webServer, err := web.NewServer(web.Options{
		Addr:            cfg.ListenAddr,
		StaticDir:       cfg.StaticDir,
		SessionLifetime: cfg.SessionLifetime,
		SecureCookies:   cfg.IsProduction(),
	}, svc, obsServer.Metrics(), logger)
	if err != nil {
		stopServer(obsServer.Stop, "observability", logger)
		return err
	}

	webErrCh, err := webServer.Start()
	if err != nil {
		stopServer(obsServer.Stop, "observability", logger)
		return oops.Code("WEB_START_FAILED").Wrap(err)
	}

	logger.Info("portal ready",
		"addr", webServer.Addr(),
		"metrics_addr", obsServer.Addr(),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case serveErr := <-webErrCh:
		if serveErr != nil {
			logger.Error("web server failed", "error", serveErr)
		}
	case obsErr := <-obsErrCh:
		if obsErr != nil {
			logger.Error("observability server failed", "error", obsErr)
		}
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	stopServer(webServer.Stop, "web", logger)
	stopServer(obsServer.Stop, "observability", logger)

	logger.Info("shutdown complete")
	return nil
}

func stopServer(stop func(context.Context) error, name string, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stop(shutdownCtx); err != nil {
		logger.Warn("error stopping server", "server", name, "error", err)
	}
}
