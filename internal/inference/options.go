package inference

import (
	"time"

	"github.com/okian/pcosrisk/pkg/logger"
)

// Option configures an Invoker.
type Option func(*Invoker)

// WithCommand sets the executable that runs the scorer script.
func WithCommand(command string) Option {
	return func(i *Invoker) {
		if command != "" {
			i.command = command
		}
	}
}

// WithScript sets the path passed to the command as its first argument.
func WithScript(script string) Option {
	return func(i *Invoker) {
		if script != "" {
			i.script = script
		}
	}
}

// WithTimeout bounds each invocation. Zero or negative disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(i *Invoker) {
		if d < 0 {
			d = 0
		}
		i.timeout = d
	}
}

// WithWaitDelay bounds how long Wait keeps reading pipes after the process
// exits or is killed.
func WithWaitDelay(d time.Duration) Option {
	return func(i *Invoker) {
		if d > 0 {
			i.waitDelay = d
		}
	}
}

// WithEnv appends KEY=VALUE pairs to the inherited environment of the child.
func WithEnv(env []string) Option {
	return func(i *Invoker) {
		i.env = append(i.env, env...)
	}
}

// WithLogger sets a logger for per-invocation debug lines.
func WithLogger(l logger.Logger) Option {
	return func(i *Invoker) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithHooks installs lifecycle observers.
func WithHooks(h Hooks) Option {
	return func(i *Invoker) {
		i.hooks = h
	}
}
