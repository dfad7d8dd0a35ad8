package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/pcosrisk/internal/smoke"
)

// Default configuration constants.
const (
	defaultNumRequests  = 100
	defaultInvalidRatio = 0.1
	defaultTimeout      = 45 * time.Second
	defaultRunTimeout   = 10 * time.Minute
)

func main() {
	var (
		baseURL      = flag.String("url", "http://localhost:3000", "Base URL of the service")
		numRequests  = flag.Int("requests", defaultNumRequests, "Number of questionnaires to submit")
		workers      = flag.Int("workers", runtime.NumCPU(), "Number of concurrent workers")
		invalidRatio = flag.Float64("invalid", defaultInvalidRatio, "Share of questionnaires sent without a basic measurement")
		timeout      = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile   = flag.String("output", "", "Write generated questionnaires to this JSON file")
		logFile      = flag.String("log", "", "Also write logs to this file")
		logFormat    = flag.String("log-format", "text", "Log format: text or json")
		verbose      = flag.Bool("verbose", false, "Log every response")
		help         = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		smoke.ShowHelp()
		return
	}

	closer, err := smoke.SetupLogging(*logFile, *logFormat, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)

	_, err = smoke.Run(ctx, &smoke.Config{
		BaseURL:      *baseURL,
		NumRequests:  *numRequests,
		Workers:      *workers,
		Timeout:      *timeout,
		InvalidRatio: *invalidRatio,
		OutputFile:   *outputFile,
		Verbose:      *verbose,
	})
	cancel()
	stop()
	_ = closer.Close()

	if err != nil {
		os.Stderr.WriteString("Smoke run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
