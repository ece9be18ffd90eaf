package config

import (
	"fmt"
	"time"
)

const (
	// DefaultListen is the default API listen address.
	DefaultListen = ":8080"

	// DefaultSQLitePath is the default snapshot database location.
	DefaultSQLitePath = "./labmetrics.db"

	// DefaultIndexInterval is how often the indexer rescans the
	// reports directory.
	DefaultIndexInterval = "1m"

	// DefaultIndexConcurrency bounds parallel report parsing.
	DefaultIndexConcurrency = 4

	// DefaultRateLimitPerMinute is the per-IP request budget.
	DefaultRateLimitPerMinute = 120

	// DefaultRateLimitClientTTL is how long an idle client keeps its
	// rate-limit bucket before it is forgotten.
	DefaultRateLimitClientTTL = "10m"
)

// APIConfig contains all API server configuration.
type APIConfig struct {
	Server   APIServerConfig   `yaml:"server" mapstructure:"server"`
	Auth     APIAuthConfig     `yaml:"auth,omitempty" mapstructure:"auth"`
	Database APIDatabaseConfig `yaml:"database" mapstructure:"database"`
	Indexing APIIndexingConfig `yaml:"indexing,omitempty" mapstructure:"indexing"`
}

// APIServerConfig contains HTTP server settings.
type APIServerConfig struct {
	Listen      string          `yaml:"listen" mapstructure:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
}

// RateLimitConfig configures per-IP rate limiting. Burst is the number
// of requests a client may make back to back before the steady rate
// applies; it defaults to the per-minute budget. ClientTTL bounds how
// long an idle client's bucket is remembered.
type RateLimitConfig struct {
	Enabled           bool   `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int    `yaml:"requests_per_minute,omitempty" mapstructure:"requests_per_minute"`
	Burst             int    `yaml:"burst,omitempty" mapstructure:"burst"`
	ClientTTL         string `yaml:"client_ttl,omitempty" mapstructure:"client_ttl"`
}

// ClientTTLDuration parses the configured idle-client TTL.
func (r *RateLimitConfig) ClientTTLDuration() (time.Duration, error) {
	return time.ParseDuration(r.ClientTTL)
}

// APIAuthConfig contains authentication settings. When enabled, all
// report endpoints require HTTP basic auth against the configured
// users. Passwords are stored as bcrypt hashes.
type APIAuthConfig struct {
	Enabled bool            `yaml:"enabled" mapstructure:"enabled"`
	Users   []BasicAuthUser `yaml:"users,omitempty" mapstructure:"users"`
}

// BasicAuthUser defines a basic auth user from config.
type BasicAuthUser struct {
	Username     string `yaml:"username" mapstructure:"username"`
	PasswordHash string `yaml:"password_hash" mapstructure:"password_hash"`
}

// APIIndexingConfig configures the background service that scans the
// reports directory and maintains a queryable snapshot database.
type APIIndexingConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Interval    string `yaml:"interval,omitempty" mapstructure:"interval"`
	Concurrency int    `yaml:"concurrency,omitempty" mapstructure:"concurrency"`
}

// IndexInterval parses the configured indexing interval.
func (a *APIIndexingConfig) IndexInterval() (time.Duration, error) {
	return time.ParseDuration(a.Interval)
}

// APIDatabaseConfig contains database connection settings.
type APIDatabaseConfig struct {
	Driver   string               `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteDatabaseConfig contains SQLite-specific settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

// applyDefaults sets default values for unspecified API options.
func (a *APIConfig) applyDefaults() {
	if a.Server.Listen == "" {
		a.Server.Listen = DefaultListen
	}

	if a.Server.RateLimit.Enabled {
		if a.Server.RateLimit.RequestsPerMinute == 0 {
			a.Server.RateLimit.RequestsPerMinute = DefaultRateLimitPerMinute
		}

		if a.Server.RateLimit.Burst == 0 {
			a.Server.RateLimit.Burst = a.Server.RateLimit.RequestsPerMinute
		}

		if a.Server.RateLimit.ClientTTL == "" {
			a.Server.RateLimit.ClientTTL = DefaultRateLimitClientTTL
		}
	}

	if a.Database.Driver == "" {
		a.Database.Driver = "sqlite"
	}

	if a.Database.Driver == "sqlite" && a.Database.SQLite.Path == "" {
		a.Database.SQLite.Path = DefaultSQLitePath
	}

	if a.Indexing.Interval == "" {
		a.Indexing.Interval = DefaultIndexInterval
	}

	if a.Indexing.Concurrency == 0 {
		a.Indexing.Concurrency = DefaultIndexConcurrency
	}
}

// Validate checks the API configuration for errors.
func (a *APIConfig) Validate() error {
	switch a.Database.Driver {
	case "sqlite":
		if a.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required")
		}
	case "postgres":
		if a.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}

		if a.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
	default:
		return fmt.Errorf("unknown database driver %q", a.Database.Driver)
	}

	if a.Auth.Enabled {
		if len(a.Auth.Users) == 0 {
			return fmt.Errorf("auth.users must not be empty when auth is enabled")
		}

		seen := make(map[string]struct{}, len(a.Auth.Users))

		for i, u := range a.Auth.Users {
			if u.Username == "" {
				return fmt.Errorf("auth user %d: username is required", i)
			}

			if _, exists := seen[u.Username]; exists {
				return fmt.Errorf("auth user %d: duplicate username %q", i, u.Username)
			}

			seen[u.Username] = struct{}{}

			if u.PasswordHash == "" {
				return fmt.Errorf("auth user %q: password_hash is required", u.Username)
			}
		}
	}

	if a.Server.RateLimit.Enabled {
		if _, err := a.Server.RateLimit.ClientTTLDuration(); err != nil {
			return fmt.Errorf("server.rate_limit.client_ttl: %w", err)
		}
	}

	if _, err := a.Indexing.IndexInterval(); err != nil {
		return fmt.Errorf("indexing.interval: %w", err)
	}

	return nil
}
