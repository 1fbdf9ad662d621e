/*
config.go - Environment-driven configuration

PURPOSE:
  Loads server configuration from the environment. A .env file is read
  first when present (local development), then caarlos0/env parses the
  process environment into the Config struct. Flags in cmd/server
  override individual fields.

VARIABLES:
  PORT          HTTP server port (default 8080)
  DB_DRIVER     "sqlite" or "mongo" (default sqlite)
  DB_PATH       SQLite database path (default incentive.db)
  MONGO_URI     Mongo connection string (required when DB_DRIVER=mongo)
  MONGO_DB      Mongo database name (default incentive)
  JWT_SECRET    HMAC secret for bearer tokens (required)
  LOG_LEVEL     logrus level name (default info)
*/
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config is the full server configuration.
type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBPath   string `env:"DB_PATH" envDefault:"incentive.db"`
	MongoURI string `env:"MONGO_URI"`
	MongoDB  string `env:"MONGO_DB" envDefault:"incentive"`

	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the combinations env tags cannot express.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH required for sqlite driver")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI required for mongo driver")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

// ParseLogLevel maps LOG_LEVEL onto a logrus level, defaulting to info
// on garbage rather than failing startup.
func (c *Config) ParseLogLevel() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
