package smoke

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/pcosrisk/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging initialises the global logger, writing to stdout and, when
// logFile is set, to that file as well. The returned closer releases the file.
func SetupLogging(logFile, format string, verbose bool) (io.Closer, error) {
	if err := logger.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := logger.SetFormat(format); err != nil {
		return nil, err
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}

	if logFile == "" {
		return io.NopCloser(nil), nil
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, file))
	return file, nil
}

// ShowHelp prints usage information for the smoke tool.
func ShowHelp() {
	os.Stdout.WriteString(`PCOS Prediction Smoke Tool
==========================

Posts random questionnaires to a running prediction server and reports
how many were scored (200), rejected (400) or failed (500).

Usage:
  go run ./cmd/smoke [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:3000")
  -requests int
        Number of questionnaires to submit (default 100)
  -workers int
        Number of concurrent workers (default CPU cores)
  -invalid float
        Share of questionnaires sent without age, weight or height (default 0.1)
  -timeout duration
        HTTP request timeout (default 45s)
  -output string
        Write the generated questionnaires to this JSON file
  -log string
        Also write logs to this file
  -log-format string
        text or json (default "text")
  -verbose
        Log every response
  -help
        Show this help message

Examples:
  # Quick run against a local server
  go run ./cmd/smoke -requests 20

  # Heavier run, keeping the inputs
  go run ./cmd/smoke -requests 500 -workers 16 -output runs/smoke.json
`)
}
