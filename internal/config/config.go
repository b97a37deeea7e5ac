// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package config loads the server configuration from a YAML file with
// PASSKEY_-prefixed environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-passkey/pkg/webauthn"
)

// Config represents the complete server configuration
type Config struct {
	Server       ServerConfig    `mapstructure:"server"`
	RelyingParty webauthn.Config `mapstructure:"relying_party"`
	Storage      StorageConfig   `mapstructure:"storage"`
	Session      SessionConfig   `mapstructure:"session"`
	RateLimit    RateLimitConfig `mapstructure:"ratelimit"`
	Metrics      MetricsConfig   `mapstructure:"metrics"`
	Logging      LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig contains the HTTP listener settings
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`

	// TLS settings. Both files required when enabled.
	TLSEnabled  bool   `mapstructure:"tls_enabled"`
	TLSCertFile string `mapstructure:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file"`
}

// StorageConfig selects where users, credentials, and challenges live
type StorageConfig struct {
	// Driver is "memory" or "postgres".
	Driver string `mapstructure:"driver"`

	// DSN is the Postgres connection string. Required for postgres.
	DSN string `mapstructure:"dsn"`

	// SweepInterval controls how often expired challenges are purged.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// SessionConfig controls JWT session minting after authentication
type SessionConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// SigningKeyFile is a PEM-encoded ECDSA P-256 private key.
	SigningKeyFile string `mapstructure:"signing_key_file"`

	Issuer     string        `mapstructure:"issuer"`
	Audience   []string      `mapstructure:"audience"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
	KeyID      string        `mapstructure:"key_id"`
}

// RateLimitConfig controls per-IP rate limiting on ceremony endpoints
type RateLimitConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	RequestsPerMin int  `mapstructure:"requests_per_min"`
	Burst          int  `mapstructure:"burst"`
}

// MetricsConfig controls the Prometheus metrics endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Debug bool `mapstructure:"debug"`
}

// Load reads configuration from a YAML file and applies PASSKEY_-prefixed
// environment variable overrides. An empty path searches the working
// directory and /etc/passkey for passkey.yaml; a missing file there is not
// an error, the defaults and environment carry the configuration.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PASSKEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("passkey")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/passkey")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg.RelyingParty.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8443)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.tls_enabled", false)

	v.SetDefault("relying_party.environment", "production")

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.sweep_interval", 5*time.Minute)

	v.SetDefault("session.enabled", false)
	v.SetDefault("session.issuer", "go-passkey")
	v.SetDefault("session.access_ttl", 15*time.Minute)
	v.SetDefault("session.refresh_ttl", 30*24*time.Hour)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_min", 60)
	v.SetDefault("ratelimit.burst", 10)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("logging.debug", false)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.TLSEnabled {
		if c.Server.TLSCertFile == "" {
			return fmt.Errorf("TLS cert_file is required when TLS is enabled")
		}
		if c.Server.TLSKeyFile == "" {
			return fmt.Errorf("TLS key_file is required when TLS is enabled")
		}
	}

	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid storage driver: %s (must be memory or postgres)", c.Storage.Driver)
	}

	if c.Session.Enabled && c.Session.SigningKeyFile == "" {
		return fmt.Errorf("session signing_key_file is required when sessions are enabled")
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMin < 1 {
		return fmt.Errorf("invalid rate limit: %d requests per minute", c.RateLimit.RequestsPerMin)
	}

	return c.RelyingParty.Validate()
}
