// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vysus Group

// Package config loads portal configuration from defaults, an optional YAML
// file, and command-line flags, in increasing order of precedence.
package config

import (
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// SMTP holds mail delivery settings. An empty Host disables real delivery;
// reset links are logged instead.
type SMTP struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
	UseTLS   bool   `koanf:"use_tls"`
}

// Config is the portal runtime configuration.
type Config struct {
	ListenAddr  string `koanf:"listen_addr"`
	MetricsAddr string `koanf:"metrics_addr"`
	DatabaseURL string `koanf:"database_url"`
	// BaseURL is the externally visible origin, used in reset email links.
	BaseURL     string `koanf:"base_url"`
	Environment string `koanf:"environment"`
	StaticDir   string `koanf:"static_dir"`
	LogFormat   string `koanf:"log_format"`

	AllowedEmailDomain string        `koanf:"allowed_email_domain"`
	SessionLifetime    time.Duration `koanf:"session_lifetime"`
	ResetTokenLifetime time.Duration `koanf:"reset_token_lifetime"`

	SMTP SMTP `koanf:"smtp"`
}

// defaults mirror a development setup: local database, mail delivery
// disabled, text logs.
func defaults() map[string]any {
	return map[string]any{
		"listen_addr":          ":8000",
		"metrics_addr":         "127.0.0.1:9100",
		"database_url":         "postgres://localhost:5432/training_portal",
		"base_url":             "http://localhost:8000",
		"environment":          "development",
		"static_dir":           "static",
		"log_format":           "json",
		"allowed_email_domain": "vysusgroup.com",
		"session_lifetime":     7 * 24 * time.Hour,
		"reset_token_lifetime": time.Hour,
		"smtp.port":            587,
		"smtp.from":            "training@vysusgroup.com",
		"smtp.use_tls":         true,
	}
}

// Load builds the configuration. path may be empty, in which case no file is
// read. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_DEFAULTS_FAILED").Wrap(err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks fields the portal cannot run without.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database_url is required")
	}
	if c.BaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("base_url is required")
	}
	if c.AllowedEmailDomain == "" {
		return oops.Code("CONFIG_INVALID").Errorf("allowed_email_domain is required")
	}
	switch c.Environment {
	case "development", "production":
	default:
		return oops.Code("CONFIG_INVALID").
			With("environment", c.Environment).
			Errorf("environment must be development or production")
	}
	if c.SessionLifetime <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("session_lifetime must be positive")
	}
	if c.ResetTokenLifetime <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("reset_token_lifetime must be positive")
	}
	return nil
}

// IsProduction reports whether the portal runs in production mode. Session
// cookies are marked Secure only in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// MailEnabled reports whether SMTP delivery is configured.
func (c *Config) MailEnabled() bool {
	return c.SMTP.Host != ""
}
