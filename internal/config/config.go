// Package config loads the process-wide configuration named in §6 of the
// specification: the credential encryption key, database connection
// parameters, OAuth client credentials for refresh-token providers, the
// default AI provider key, and the outbound mail gateway credentials.
// Missing required configuration is fatal at startup, matching the
// original implementation's lazy_static! env reads.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kestrelsec/workflow-runner/internal/database"
)

// Config is the fully resolved process configuration.
type Config struct {
	ServicePort int

	Database database.Config
	DatabaseConnectionPoolSize int

	// CredentialsSecret is the 32-byte AES-256-GCM key used by the
	// credential store (C3). Hex-decoded from CREDENTIALS_SECRET.
	CredentialsSecret [32]byte

	MSTeamsOAuthClientID     string
	MSTeamsOAuthClientSecret string

	DefaultAIProviderAPIKey string

	ResendAPIKey string
	ResendEmail  string

	JWTVerificationKey string
}

// Load reads and validates the process configuration from the
// environment. It returns an error rather than calling os.Exit so callers
// (including tests) can decide how to handle a fatal misconfiguration.
func Load() (*Config, error) {
	cfg := &Config{
		ServicePort:                 8080,
		Database:                    database.LoadFromEnv(),
		DatabaseConnectionPoolSize:  10,
		MSTeamsOAuthClientID:        os.Getenv("MS_TEAMS_OAUTH_CLIENT_ID"),
		MSTeamsOAuthClientSecret:    os.Getenv("MS_TEAMS_OAUTH_CLIENT_SECRET"),
		DefaultAIProviderAPIKey:     os.Getenv("DEFAULT_AI_PROVIDER_API_KEY"),
		ResendAPIKey:                os.Getenv("RESEND_API_KEY"),
		ResendEmail:                 os.Getenv("RESEND_EMAIL"),
		JWTVerificationKey:          os.Getenv("JWT_VERIFICATION_KEY"),
	}

	if v := os.Getenv("SERVICE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SERVICE_PORT: %w", err)
		}
		cfg.ServicePort = port
	}

	if v := os.Getenv("DATABASE_CONNECTION_POOL_SIZE"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid DATABASE_CONNECTION_POOL_SIZE: %w", err)
		}
		cfg.DatabaseConnectionPoolSize = size
	}
	cfg.Database.MaxOpenConns = cfg.DatabaseConnectionPoolSize

	secretHex := os.Getenv("CREDENTIALS_SECRET")
	if secretHex == "" {
		return nil, fmt.Errorf("missing required environment variable CREDENTIALS_SECRET")
	}
	raw, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, fmt.Errorf("CREDENTIALS_SECRET is not valid hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("CREDENTIALS_SECRET must decode to 32 bytes, got %d", len(raw))
	}
	copy(cfg.CredentialsSecret[:], raw)

	if err := cfg.Database.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	return cfg, nil
}

// ReloadableSettings is the subset of configuration that may be safely
// hot-reloaded from a YAML overlay file while the process is running (log
// level, soft timeouts) — never secrets.
type ReloadableSettings struct {
	LogLevel           string        `yaml:"log_level"`
	WorkflowRunTimeout time.Duration `yaml:"workflow_run_timeout"`
}

func DefaultReloadableSettings() ReloadableSettings {
	return ReloadableSettings{LogLevel: "info", WorkflowRunTimeout: 5 * time.Minute}
}
