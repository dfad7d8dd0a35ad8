// Package service provides the prediction service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/pcosrisk/internal/domain/assessment"
	"github.com/okian/pcosrisk/internal/inference"
	"github.com/okian/pcosrisk/pkg/logger"
	"github.com/okian/pcosrisk/pkg/metrics"
)

// Scorer runs one scoring attempt. *inference.Invoker satisfies it.
type Scorer interface {
	Invoke(ctx context.Context, payload any) (inference.Result, error)
}

// checker is implemented by scorers that can verify their executable
// without launching it.
type checker interface {
	Check() error
}

// Service forwards questionnaires to the scorer and keeps counters about
// the outcomes.
type Service struct {
	mu sync.RWMutex

	scorer Scorer

	// Configuration
	command string
	script  string
	timeout time.Duration
	env     []string

	// State
	started   bool
	startedAt time.Time

	invocations atomic.Int64
	successes   atomic.Int64
	inFlight    atomic.Int64

	failMu   sync.Mutex
	failures map[string]int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithScorer replaces the process-backed scorer. The command, script,
// timeout and env options are ignored when it is set.
func WithScorer(sc Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithScorerCommand sets the executable that runs the scoring script.
func WithScorerCommand(command string) Option {
	return func(s *Service) {
		if command != "" {
			s.command = command
		}
	}
}

// WithScorerScript sets the path of the scoring script.
func WithScorerScript(script string) Option {
	return func(s *Service) {
		if script != "" {
			s.script = script
		}
	}
}

// WithScorerTimeout bounds each scorer process. Zero disables the bound.
func WithScorerTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.timeout = d
		}
	}
}

// WithScorerEnv adds KEY=VALUE entries to the scorer's environment.
func WithScorerEnv(env []string) Option {
	return func(s *Service) {
		s.env = append(s.env, env...)
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		command:  inference.DefaultCommand(),
		script:   "backend/ml/predict.py",
		timeout:  30 * time.Second,
		failures: make(map[string]int64),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.scorer == nil {
		invOpts := []inference.Option{
			inference.WithCommand(s.command),
			inference.WithScript(s.script),
			inference.WithTimeout(s.timeout),
			inference.WithEnv(s.env),
			inference.WithHooks(inference.Hooks{
				Started: metrics.ScorerStarted,
				Exited:  metrics.ScorerFinished,
			}),
		}
		if s.logger != nil {
			invOpts = append(invOpts, inference.WithLogger(s.logger.Named("inference")))
		}
		s.scorer = inference.New(invOpts...)
	}

	return s
}

// Start marks the service as running and checks that the scorer
// executable resolves. A missing executable is logged, not returned:
// every prediction will then fail with a not-found error.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	if c, ok := s.scorer.(checker); ok {
		if err := c.Check(); err != nil {
			s.logger.Warn(ctx, "scorer executable not available",
				logger.String("command", s.command),
				logger.Error(err),
			)
		}
	}

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "prediction service started",
		logger.String("command", s.command),
		logger.String("script", s.script),
		logger.Duration("timeout", s.timeout),
	)
	return nil
}

// Stop marks the service as stopped. Running predictions finish on their
// own; their processes are bound to the request context.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.started = false
	if s.logger != nil {
		s.logger.Info(context.Background(), "prediction service stopped",
			logger.Int("in_flight", int(s.inFlight.Load())),
		)
	}
}

// Predict fills in the optional cycle defaults and scores the payload.
// The error, if any, is returned unchanged so callers can match its kind.
func (s *Service) Predict(ctx context.Context, p assessment.Payload) (inference.Result, error) {
	if p == nil {
		p = assessment.Payload{}
	}
	assessment.ApplyDefaults(p)

	s.invocations.Add(1)
	s.inFlight.Add(1)
	start := time.Now()
	res, err := s.scorer.Invoke(ctx, p)
	elapsed := time.Since(start)
	s.inFlight.Add(-1)

	outcome := inference.Outcome(err)
	metrics.RecordScorerInvocation(outcome, float64(elapsed.Microseconds())/1000)
	if err != nil {
		s.failMu.Lock()
		s.failures[outcome]++
		s.failMu.Unlock()
		return inference.Result{}, err
	}
	s.successes.Add(1)

	if s.logger != nil {
		s.logger.Debug(ctx, "prediction completed",
			logger.Float64("score", res.Score),
			logger.String("risk_level", res.RiskLevel),
			logger.Duration("elapsed", elapsed),
		)
	}
	return res, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	started, startedAt := s.started, s.startedAt
	s.mu.RUnlock()

	s.failMu.Lock()
	failures := make(map[string]int64, len(s.failures))
	for k, v := range s.failures {
		failures[k] = v
	}
	s.failMu.Unlock()

	stats := map[string]any{
		"started":         started,
		"scorerCommand":   s.command,
		"scorerScript":    s.script,
		"scorerTimeoutMs": s.timeout.Milliseconds(),
		"invocations":     s.invocations.Load(),
		"successes":       s.successes.Load(),
		"failures":        failures,
		"inFlight":        s.inFlight.Load(),
	}
	if started {
		stats["uptimeSeconds"] = time.Since(startedAt).Seconds()
	}
	return stats
}
