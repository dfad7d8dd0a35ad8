// Package config defines service configuration and its loading layers.
//
// Conventions:
// - New returns the defaults; Load layers a YAML file and env vars on top.
// - Loading errors wrap ErrLoadConfig, validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":3000".
	Addr string `koanf:"addr"`

	// ScorerCommand is the interpreter used to run the scorer script.
	ScorerCommand string `koanf:"scorer_command"`

	// ScorerScript is the path handed to ScorerCommand as its first argument.
	ScorerScript string `koanf:"scorer_script"`

	// ScorerTimeoutMS bounds one scorer process. Zero disables the bound.
	ScorerTimeoutMS int `koanf:"scorer_timeout_ms"`

	// StrictValidation also requires cycle, exercise, diet and sleep fields.
	StrictValidation bool `koanf:"strict_validation"`

	// MaxBodyBytes caps the size of POST /api/predict bodies.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`

	// StaticDir, when set, is served at / as the questionnaire front-end.
	StaticDir string `koanf:"static_dir"`

	// CORSAllowedOrigins is sent as Access-Control-Allow-Origin.
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`

	// ShutdownTimeoutMS bounds graceful HTTP shutdown.
	ShutdownTimeoutMS int `koanf:"shutdown_timeout_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":3000",
		ScorerCommand:      DefaultScorerCommand(runtime.GOOS),
		ScorerScript:       "backend/ml/predict.py",
		ScorerTimeoutMS:    30_000,
		StrictValidation:   false,
		MaxBodyBytes:       1 << 20,
		StaticDir:          "",
		CORSAllowedOrigins: "*",
		ShutdownTimeoutMS:  30_000,
	}
}

// DefaultScorerCommand picks the Python launcher name for the given GOOS.
func DefaultScorerCommand(goos string) string {
	if goos == "windows" {
		return "python"
	}
	return "python3"
}

// ScorerTimeout returns ScorerTimeoutMS as a duration.
func (c *Config) ScorerTimeout() time.Duration {
	return time.Duration(c.ScorerTimeoutMS) * time.Millisecond
}

// ShutdownTimeout returns ShutdownTimeoutMS as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}

// Validate checks the fields that have no usable zero value.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.ScorerCommand) == "":
		return fmt.Errorf("%w: scorer_command must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.ScorerScript) == "":
		return fmt.Errorf("%w: scorer_script must not be empty", ErrInvalidConfig)
	case c.ScorerTimeoutMS < 0:
		return fmt.Errorf("%w: scorer_timeout_ms must not be negative", ErrInvalidConfig)
	case c.MaxBodyBytes <= 0:
		return fmt.Errorf("%w: max_body_bytes must be positive", ErrInvalidConfig)
	case c.ShutdownTimeoutMS <= 0:
		return fmt.Errorf("%w: shutdown_timeout_ms must be positive", ErrInvalidConfig)
	}
	return nil
}
