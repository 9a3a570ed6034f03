// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vysus Group

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vysusgroup/training-portal/pkg/errutil"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.ListenAddr)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "vysusgroup.com", cfg.AllowedEmailDomain)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionLifetime)
	assert.Equal(t, time.Hour, cfg.ResetTokenLifetime)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.MailEnabled(), "mail should be disabled without an smtp host")
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "portal.yaml")
	content := `
listen_addr: ":9000"
environment: production
base_url: https://training.vysusgroup.com
smtp:
  host: smtp.vysusgroup.com
  username: mailer
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "https://training.vysusgroup.com", cfg.BaseURL)
	assert.Equal(t, "smtp.vysusgroup.com", cfg.SMTP.Host)
	assert.True(t, cfg.MailEnabled())
	// Values absent from the file keep their defaults.
	assert.Equal(t, "vysusgroup.com", cfg.AllowedEmailDomain)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "portal.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: \":9000\"\n"), 0o600))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("listen_addr", "", "listen address")
	require.NoError(t, flags.Parse([]string{"--listen_addr", ":7000"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.ListenAddr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/portal.yaml", nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_FILE_FAILED")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DatabaseURL:        "postgres://localhost/portal",
			BaseURL:            "http://localhost:8000",
			Environment:        "development",
			AllowedEmailDomain: "vysusgroup.com",
			SessionLifetime:    time.Hour,
			ResetTokenLifetime: time.Hour,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing database url", mutate: func(c *Config) { c.DatabaseURL = "" }},
		{name: "missing base url", mutate: func(c *Config) { c.BaseURL = "" }},
		{name: "missing email domain", mutate: func(c *Config) { c.AllowedEmailDomain = "" }},
		{name: "bad environment", mutate: func(c *Config) { c.Environment = "staging" }},
		{name: "zero session lifetime", mutate: func(c *Config) { c.SessionLifetime = 0 }},
		{name: "negative reset lifetime", mutate: func(c *Config) { c.ResetTokenLifetime = -time.Hour }},
	}

	require.NoError(t, valid().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
		})
	}
}
