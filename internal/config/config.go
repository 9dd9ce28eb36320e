// Package config loads service configuration by layering defaults, an
// optional YAML file, and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string `koanf:"port"`
	DatabaseURL string `koanf:"database_url"`
	RedisURL    string `koanf:"redis_url"`
	NumWorkers  int    `koanf:"num_workers"`

	// IngestRateLimit caps identify/track calls per write key per second.
	// Zero disables limiting.
	IngestRateLimit int `koanf:"ingest_rate_limit"`

	// MigrationsDir is where the .up.sql files live.
	MigrationsDir string `koanf:"migrations_dir"`
}

func defaults() *Config {
	return &Config{
		Port:            "8080",
		NumWorkers:      4,
		IngestRateLimit: 0,
		MigrationsDir:   "migrations",
	}
}

// Load builds a Config by layering (low -> high precedence):
//  1. defaults
//  2. YAML file named by UNIFY_CONFIG, if set
//  3. environment variables with the UNIFY_ prefix
//     (UNIFY_DATABASE_URL -> database_url, UNIFY_NUM_WORKERS -> num_workers)
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv("UNIFY_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("UNIFY_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "unify_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := defaults()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database_url is required (UNIFY_DATABASE_URL)")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis_url is required (UNIFY_REDIS_URL)")
	}
	if cfg.NumWorkers <= 0 {
		return nil, fmt.Errorf("num_workers must be positive")
	}

	return cfg, nil
}
