// Package database holds the Postgres connection pool configuration and
// bootstrap, matching the config-struct-plus-env-loader pattern the
// teacher uses throughout its internal packages.
package database

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	apperrors "github.com/kestrelsec/workflow-runner/pkg/shared/errors"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            5432,
		User:            "slm_user",
		Database:        "action_history",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// LoadFromEnv overlays DB_HOST/DB_PORT/DB_USER/DB_PASSWORD/DB_NAME/DB_SSL_MODE
// on top of DefaultConfig, keeping the default on an invalid port.
func LoadFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv("DB_SSL_MODE"); v != "" {
		cfg.SSLMode = v
	}
	return cfg
}

func (c Config) Validate() error {
	if c.Host == "" {
		return apperrors.ValidationError("host", "must not be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return apperrors.ValidationError("port", "must be between 1 and 65535")
	}
	if c.User == "" {
		return apperrors.ValidationError("user", "must not be empty")
	}
	if c.Database == "" {
		return apperrors.ValidationError("database", "must not be empty")
	}
	if c.MaxOpenConns <= 0 {
		return apperrors.ValidationError("max_open_conns", "must be greater than zero")
	}
	if c.MaxIdleConns < 0 {
		return apperrors.ValidationError("max_idle_conns", "must not be negative")
	}
	return nil
}

func (c Config) ConnectionString() string {
	s := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s", c.Host, c.Port, c.User, c.Database, c.SSLMode)
	if c.Password != "" {
		s += fmt.Sprintf(" password=%s", c.Password)
	}
	return s
}

func Connect(config Config, logger *zap.Logger) (*sqlx.DB, error) {
	if err := config.Validate(); err != nil {
		return nil, apperrors.Wrapf(err, "invalid database configuration")
	}

	db, err := sqlx.Connect("pgx", config.ConnectionString())
	if err != nil {
		return nil, apperrors.DatabaseError("connect", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if logger != nil {
		logger.Info("database connection established",
			zap.String("host", config.Host),
			zap.Int("port", config.Port),
			zap.String("database", config.Database),
		)
	}

	return db, nil
}
