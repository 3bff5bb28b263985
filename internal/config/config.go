// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Skylog Contributors

// Package config loads runtime configuration from defaults, a YAML file,
// and command-line flags, in increasing order of precedence.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Ops      OpsConfig      `koanf:"ops"`
	Password PasswordConfig `koanf:"password"`
	Reset    ResetConfig    `koanf:"reset"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Format string `koanf:"format"` // "json" or "text"
}

// OpsConfig holds the observability endpoint settings.
type OpsConfig struct {
	Addr string `koanf:"addr"`
}

// PasswordConfig holds strength policy settings.
type PasswordConfig struct {
	MinScore int `koanf:"min_score"`
}

// ResetConfig holds password reset settings.
type ResetConfig struct {
	TokenLifetime time.Duration `koanf:"token_lifetime"`
}

// defaults returns the baseline configuration keys. Loaded into koanf before
// the file and flag layers so that an unset flag's empty value never shadows
// a default: posflag keeps the existing koanf value for unchanged flags.
func defaults() map[string]any {
	return map[string]any{
		"log.format":           "json",
		"ops.addr":             "127.0.0.1:9100",
		"password.min_score":   3,
		"reset.token_lifetime": 24 * time.Hour,
	}
}

// Load builds the configuration. path may be empty to skip the file layer;
// flags may be nil to skip the flag layer. DATABASE_URL in the environment
// overrides the file's database.url, matching how deploys inject secrets.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").
			With("operation", "load defaults").
			Wrap(err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "load flags").
				Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").
			With("operation", "unmarshal").
			Wrap(err)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}

	if cfg.Password.MinScore < 0 || cfg.Password.MinScore > 4 {
		return nil, oops.Code("CONFIG_INVALID").
			With("min_score", cfg.Password.MinScore).
			Errorf("password.min_score must be between 0 and 4")
	}
	if cfg.Reset.TokenLifetime <= 0 {
		return nil, oops.Code("CONFIG_INVALID").
			With("token_lifetime", cfg.Reset.TokenLifetime).
			Errorf("reset.token_lifetime must be positive")
	}

	return &cfg, nil
}
