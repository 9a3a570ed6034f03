// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vysus Group

// Package mail delivers transactional email over SMTP.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/samber/oops"

	"github.com/vysusgroup/training-portal/internal/auth"
)

// Compile-time interface checks.
var (
	_ auth.ResetMailer = (*SMTPSender)(nil)
	_ auth.ResetMailer = (*LogSender)(nil)
)

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// BaseURL is the externally visible origin of the portal, used to build
	// links embedded in messages.
	BaseURL string
	UseTLS  bool
}

// SMTPSender sends password reset email via SMTP with STARTTLS.
// It implements auth.ResetMailer.
type SMTPSender struct {
	cfg    Config
	logger *slog.Logger
}

// NewSMTPSender creates a sender from the given config.
func NewSMTPSender(cfg Config, logger *slog.Logger) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("smtp from address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPSender{cfg: cfg, logger: logger}, nil
}

// SendPasswordReset delivers a reset message carrying a link built from the
// configured base URL and the given token.
func (s *SMTPSender) SendPasswordReset(ctx context.Context, to, token string) error {
	resetURL := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(s.cfg.BaseURL, "/"), token)

	msg, err := buildResetMessage(s.cfg.From, to, resetURL)
	if err != nil {
		return oops.Code("MAIL_BUILD_FAILED").Wrap(err)
	}

	if err := s.send(ctx, to, msg); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("operation", "send password reset email").
			With("smtp_host", s.cfg.Host).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "password reset email sent", "smtp_host", s.cfg.Host)
	return nil
}

// send speaks SMTP by hand rather than using smtp.SendMail so the dial phase
// honors ctx cancellation and STARTTLS can be controlled by config.
func (s *SMTPSender) send(ctx context.Context, to string, msg []byte) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close() //nolint:errcheck // already failing
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close() //nolint:errcheck // best-effort close after Quit

	if s.cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return fmt.Errorf("server %s does not support STARTTLS", s.cfg.Host)
		}
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}

	return client.Quit() //nolint:wrapcheck // terminal protocol step, nothing to add
}

// buildResetMessage renders a multipart/alternative message with plain text
// and HTML bodies.
func buildResetMessage(from, to, resetURL string) ([]byte, error) {
	var buf strings.Builder

	var bodyBuf strings.Builder
	mw := multipart.NewWriter(&bodyBuf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: Password Reset Request - Vysus Training Platform\r\n")
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n", mw.Boundary())
	buf.WriteString("\r\n")

	textPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, fmt.Errorf("create text part: %w", err)
	}
	fmt.Fprintf(textPart, resetTextBody, resetURL)

	htmlPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=utf-8"},
	})
	if err != nil {
		return nil, fmt.Errorf("create html part: %w", err)
	}
	fmt.Fprintf(htmlPart, resetHTMLBody, resetURL)

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	buf.WriteString(bodyBuf.String())
	return []byte(buf.String()), nil
}

const resetTextBody = `Vysus Training Platform - Password Reset Request

You have requested to reset your password.

Click the link below to reset your password:
%s

This link will expire in 1 hour.

If you didn't request this password reset, you can safely ignore this email.

- Vysus Training Team
`

const resetHTMLBody = `<!DOCTYPE html>
<html>
<head>
<style>
body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
.header { background: linear-gradient(135deg, #005454, #00E3A9); color: white; padding: 30px; text-align: center; border-radius: 10px 10px 0 0; }
.content { background: #f9f9f9; padding: 30px; border-radius: 0 0 10px 10px; }
.button { display: inline-block; background: #00E3A9; color: #005454; padding: 15px 30px; text-decoration: none; border-radius: 5px; font-weight: bold; margin: 20px 0; }
.footer { text-align: center; color: #666; font-size: 12px; margin-top: 20px; }
</style>
</head>
<body>
<div class="header"><h1>Vysus Training Platform</h1></div>
<div class="content">
<h2>Password Reset Request</h2>
<p>You have requested to reset your password for the Vysus Training Platform.</p>
<p>Click the button below to reset your password:</p>
<p style="text-align: center;"><a href="%s" class="button">Reset Password</a></p>
<p><strong>This link will expire in 1 hour.</strong></p>
<p>If you didn't request this password reset, you can safely ignore this email. Your password will remain unchanged.</p>
</div>
<div class="footer">
<p>Vysus Group - Grid Connection Engineering Training</p>
<p>This is an automated message. Please do not reply to this email.</p>
</div>
</body>
</html>
`

// LogSender logs reset links instead of sending mail. Used in development
// when no SMTP credentials are configured.
type LogSender struct {
	BaseURL string
	Logger  *slog.Logger
}

// SendPasswordReset logs the reset URL at info level.
func (l *LogSender) SendPasswordReset(ctx context.Context, to, token string) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	resetURL := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(l.BaseURL, "/"), token)
	logger.InfoContext(ctx, "password reset link (mail delivery disabled)", "to", to, "url", resetURL)
	return nil
}
