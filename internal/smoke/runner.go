package smoke

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/okian/pcosrisk/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
	percentMultiplier   = 100
)

// healthResponse mirrors GET /api/health.
type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Run executes a complete smoke run and returns its statistics. The error
// wraps ErrMismatched when any answer had an unexpected class.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	stats := &Stats{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
	}
	ctx = logger.WithRequestID(ctx, stats.RunID)

	logger.Get().Info(ctx, "starting smoke run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("requests", config.NumRequests),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
	)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return nil, err
	}

	// Step 2: Generate questionnaires
	requests, err := generateRequests(ctx, config, stats)
	if err != nil {
		return nil, fmt.Errorf("questionnaire generation failed: %w", err)
	}

	// Step 3: Save them before submitting so a crash still leaves the input
	if config.OutputFile != "" {
		if err := saveRequestsToFile(ctx, config.OutputFile, requests); err != nil {
			logger.Get().Warn(ctx, "failed to save questionnaires", logger.Error(err))
		}
	}

	// Step 4: Submit concurrently
	submitRequests(ctx, config, requests, stats)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("smoke run interrupted: %w", err)
	}
	if stats.Mismatched > 0 {
		return stats, fmt.Errorf("%w: %d of %d", ErrMismatched, stats.Mismatched, stats.Submitted)
	}
	logger.Get().Info(ctx, "smoke run completed successfully")
	return stats, nil
}

func validateConfig(config *Config) error {
	switch {
	case config == nil:
		return fmt.Errorf("%w: nil config", ErrConfig)
	case config.BaseURL == "":
		return fmt.Errorf("%w: base URL must not be empty", ErrConfig)
	case config.NumRequests <= 0:
		return fmt.Errorf("%w: request count must be positive", ErrConfig)
	case config.Workers <= 0:
		return fmt.Errorf("%w: worker count must be positive", ErrConfig)
	case config.InvalidRatio < 0 || config.InvalidRatio > 1:
		return fmt.Errorf("%w: invalid ratio must be within [0, 1]", ErrConfig)
	}
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/api/health")
	if err != nil {
		return fmt.Errorf("%w: failed to connect to service: %w", ErrUnhealthy, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != 200 {
		return fmt.Errorf("%w: health check returned status %d", ErrUnhealthy, resp.StatusCode)
	}
	var hr healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&hr); err != nil || hr.Status != "OK" {
		return fmt.Errorf("%w: unexpected health body", ErrUnhealthy)
	}

	logger.Get().Info(ctx, "service is healthy", logger.String("message", hr.Message))
	return nil
}

// saveRequestsToFile writes the generated questionnaires as a JSON array.
func saveRequestsToFile(ctx context.Context, filename string, requests []Request) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(requests, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal questionnaires: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "questionnaires saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var okRate, requestsPerSecond float64

	if stats.Submitted > 0 {
		okRate = float64(stats.OK) / float64(stats.Submitted) * percentMultiplier
	}
	if stats.Duration > 0 {
		requestsPerSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("ok", stats.OK),
		logger.Int("badRequest", stats.BadRequest),
		logger.Int("serverError", stats.ServerError),
		logger.Int("failed", stats.Failed),
		logger.Int("mismatched", stats.Mismatched),
		logger.Any("riskLevels", stats.RiskLevels),
		logger.Duration("duration", stats.Duration),
		logger.Float64("okRate", okRate),
		logger.Float64("requestsPerSecond", requestsPerSecond))
}
