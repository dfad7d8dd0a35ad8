package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variable names and prefix.
const (
	EnvPrefix     = "PCOS_"
	EnvConfigPath = "PCOS_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New)
//  2. file (YAML) if PCOS_CONFIG is set
//  3. env (prefix PCOS_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigPath); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// PCOS_SCORER_TIMEOUT_MS -> scorer_timeout_ms; underscores are kept so
	// keys stay flat and match the koanf tags.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	// "config" is the file path itself, not a setting.
	k.Delete("config")

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
