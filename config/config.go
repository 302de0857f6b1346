/*
Package config loads service configuration from the environment.

An optional .env file in the working directory is loaded first, then
variables are parsed into the Config struct. Database URL resolution
prefers DATABASE_URL (managed PostgreSQL), falls back to DB_URL, and
defaults to a local SQLite file. Legacy postgres:// URLs are normalized
to postgresql://.
*/
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultDBPath is the SQLite file used when no database URL is set.
const DefaultDBPath = "kam.db"

// Config holds service configuration.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	DBURL       string `env:"DB_URL"`
	Port        int    `env:"PORT" envDefault:"8080"`
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
}

// Load reads .env (when present) and the environment.
func Load() (Config, error) {
	// Missing .env is fine; the environment still applies.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ResolvedDBURL applies the DATABASE_URL > DB_URL > SQLite precedence
// and normalizes the postgres:// scheme.
func (c Config) ResolvedDBURL() string {
	url := c.DatabaseURL
	if url == "" {
		url = c.DBURL
	}
	if url == "" {
		url = DefaultDBPath
	}
	if strings.HasPrefix(url, "postgres://") {
		url = "postgresql://" + strings.TrimPrefix(url, "postgres://")
	}
	return url
}
