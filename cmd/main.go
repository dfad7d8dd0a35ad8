package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/okian/pcosrisk/internal/adapters/http/api"
	"github.com/okian/pcosrisk/internal/adapters/http/site"
	"github.com/okian/pcosrisk/internal/adapters/http/swagger"
	app "github.com/okian/pcosrisk/internal/app"
	"github.com/okian/pcosrisk/internal/config"
	"github.com/okian/pcosrisk/pkg/logger"
	"github.com/okian/pcosrisk/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	writeTimeoutSlack         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		// Use fmt for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		os.Stderr.WriteString("invalid log_format; using text: " + err.Error() + "\n")
	}
	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc := newService(cfg, loggerInstance)
	if err := svc.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	router, err := newRouter(cfg, svc, loggerInstance)
	if err != nil {
		loggerInstance.Error(ctx, "failed to build routes", logger.Error(err))
		return
	}
	srv := newHTTPServer(cfg, router)

	serveErr := make(chan error, 1)
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		loggerInstance.Info(ctx, "shutting down server...")
	case err := <-serveErr:
		loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
		return
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// newService builds the prediction service from configuration.
func newService(cfg *config.Config, l logger.Logger) *app.Service {
	return app.New(
		app.WithLogger(l.Named("service")),
		app.WithScorerCommand(cfg.ScorerCommand),
		app.WithScorerScript(cfg.ScorerScript),
		app.WithScorerTimeout(cfg.ScorerTimeout()),
	)
}

// newRouter mounts the API, the docs and, last, the optional static site.
func newRouter(cfg *config.Config, svc *app.Service, l logger.Logger) (*mux.Router, error) {
	r := mux.NewRouter()

	api.NewServer(svc,
		api.WithLogger(l.Named("api")),
		api.WithStrictValidation(cfg.StrictValidation),
		api.WithMaxBodyBytes(cfg.MaxBodyBytes),
		api.WithAllowedOrigins(cfg.CORSAllowedOrigins),
	).Register(r)

	swagger.Register(r)

	if err := site.Register(r, cfg.StaticDir); err != nil {
		return nil, err
	}
	return r, nil
}

// newHTTPServer lets a response take as long as the scorer may run.
func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	writeTimeout := time.Duration(0)
	if t := cfg.ScorerTimeout(); t > 0 {
		writeTimeout = t + writeTimeoutSlack
	}
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		// Calculate average GC pause time
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
