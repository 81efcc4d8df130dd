// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

// Package config loads server configuration from an optional YAML
// file, command-line flags, and environment variables for secrets.
// Precedence is flags over file over built-in defaults.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Default listen addresses and formats.
const (
	DefaultHTTPAddr    = ":8080"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultLogFormat   = "json"
	DefaultMailer      = "log"
)

// TokenConfig holds signing settings for issued tokens.
type TokenConfig struct {
	Secret     string        `koanf:"-"`
	SessionTTL time.Duration `koanf:"session_ttl"`
	ResetTTL   time.Duration `koanf:"reset_ttl"`
	VerifyTTL  time.Duration `koanf:"verify_ttl"`
}

// Argon2Config holds password hashing cost parameters.
type Argon2Config struct {
	Time      uint32 `koanf:"time"`
	MemoryKiB uint32 `koanf:"memory_kib"`
	Threads   uint8  `koanf:"threads"`
}

// SMTPConfig holds relay settings for the smtp mailer.
type SMTPConfig struct {
	Addr     string `koanf:"addr"`
	From     string `koanf:"from"`
	Username string `koanf:"username"`
	Password string `koanf:"-"`
}

// Config is the full server configuration.
type Config struct {
	HTTPAddr    string       `koanf:"http_addr"`
	MetricsAddr string       `koanf:"metrics_addr"`
	PublicURL   string       `koanf:"public_url"`
	LogFormat   string       `koanf:"log_format"`
	Mailer      string       `koanf:"mailer"`
	DatabaseURL string       `koanf:"-"`
	Token       TokenConfig  `koanf:"token"`
	Argon2      Argon2Config `koanf:"argon2"`
	SMTP        SMTPConfig   `koanf:"smtp"`
}

// Default returns the built-in configuration defaults. Secrets are
// never defaulted.
func Default() Config {
	return Config{
		HTTPAddr:    DefaultHTTPAddr,
		MetricsAddr: DefaultMetricsAddr,
		LogFormat:   DefaultLogFormat,
		Mailer:      DefaultMailer,
		Token: TokenConfig{
			SessionTTL: 24 * time.Hour,
			ResetTTL:   time.Hour,
			VerifyTTL:  24 * time.Hour,
		},
		Argon2: Argon2Config{
			Time:      1,
			MemoryKiB: 64 * 1024,
			Threads:   4,
		},
	}
}

// RegisterFlags declares the command-line overrides on fs. Flag names
// map to config keys with dashes in place of underscores.
func RegisterFlags(fs *pflag.FlagSet) {
	def := Default()
	fs.String("http-addr", def.HTTPAddr, "HTTP listen address")
	fs.String("metrics-addr", def.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("public-url", "", "public base URL used in emailed links")
	fs.String("log-format", def.LogFormat, "log format (json or text)")
	fs.String("mailer", def.Mailer, "mailer backend (smtp or log)")
}

// Load builds the configuration from path (optional), flags, and
// environment. DATABASE_URL, KEYGATE_TOKEN_SECRET, and
// KEYGATE_SMTP_PASSWORD are read from the environment only.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_INVALID").
				With("path", path).
				Wrap(err)
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithValue(fs, ".", k, func(key, value string) (string, any) {
			return strings.ReplaceAll(key, "-", "_"), value
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Code("CONFIG_INVALID").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.Token.Secret = os.Getenv("KEYGATE_TOKEN_SECRET")
	cfg.SMTP.Password = os.Getenv("KEYGATE_SMTP_PASSWORD")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. Connection secrets are
// checked at startup by the components that consume them.
func (cfg Config) Validate() error {
	if cfg.HTTPAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("http_addr is required")
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").
			Errorf("log_format must be 'json' or 'text', got %q", cfg.LogFormat)
	}
	switch cfg.Mailer {
	case "smtp", "log":
	default:
		return oops.Code("CONFIG_INVALID").
			Errorf("mailer must be 'smtp' or 'log', got %q", cfg.Mailer)
	}
	if cfg.Mailer == "smtp" {
		if cfg.SMTP.Addr == "" || cfg.SMTP.From == "" {
			return oops.Code("CONFIG_INVALID").
				Errorf("smtp mailer requires smtp.addr and smtp.from")
		}
	}
	if cfg.Token.SessionTTL <= 0 || cfg.Token.ResetTTL <= 0 || cfg.Token.VerifyTTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("token TTLs must be positive")
	}
	if cfg.Argon2.Time == 0 || cfg.Argon2.MemoryKiB == 0 || cfg.Argon2.Threads == 0 {
		return oops.Code("CONFIG_INVALID").Errorf("argon2 parameters must be positive")
	}
	return nil
}
