// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/okian/pcosrisk/internal/domain/assessment"
	"github.com/okian/pcosrisk/internal/inference"
	"github.com/okian/pcosrisk/pkg/logger"
)

const defaultMaxBodyBytes int64 = 1 << 20

// Predictor scores one questionnaire.
type Predictor interface {
	Predict(ctx context.Context, p assessment.Payload) (inference.Result, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Predictor
	StatsProvider
}

// Server wires HTTP routes for the prediction API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	predictHandler *PredictHandler

	allowedOrigins string
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	strict         bool
	maxBodyBytes   int64
	allowedOrigins string
	logger         logger.Logger
}

// WithStrictValidation rejects questionnaires with any required key
// missing, not only the basic measurements.
func WithStrictValidation(strict bool) Option {
	return func(o *serverOptions) { o.strict = strict }
}

// WithMaxBodyBytes limits the size of a prediction request body.
func WithMaxBodyBytes(n int64) Option {
	return func(o *serverOptions) {
		if n > 0 {
			o.maxBodyBytes = n
		}
	}
}

// WithAllowedOrigins sets the comma separated CORS origin list; "*" allows all.
func WithAllowedOrigins(origins string) Option {
	return func(o *serverOptions) {
		if origins != "" {
			o.allowedOrigins = origins
		}
	}
}

// WithLogger sets the logger used by the handlers.
func WithLogger(l logger.Logger) Option {
	return func(o *serverOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	o := serverOptions{
		maxBodyBytes:   defaultMaxBodyBytes,
		allowedOrigins: "*",
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Named("api")
	}

	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		predictHandler: NewPredictHandler(deps, o.logger, o.strict, o.maxBodyBytes),
		allowedOrigins: o.allowedOrigins,
	}
}

// Register attaches all HTTP routes and middleware to r. Routes that
// should fall through to other packages (docs, static site) must be
// registered after this call.
func (s *Server) Register(r *mux.Router) {
	r.Use(RequestIDMiddleware)
	r.Use(CORSMiddleware(s.allowedOrigins))

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/predict", MetricsMiddleware(s.predictHandler.HandlePredict, "predict")).
		Methods(http.MethodPost, http.MethodOptions)
	apiRouter.HandleFunc("/health", MetricsMiddleware(s.healthHandler.HandleHealth, "health")).
		Methods(http.MethodGet, http.MethodOptions)
	apiRouter.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats")).
		Methods(http.MethodGet, http.MethodOptions)

	r.Handle("/metrics", MetricsHandler()).Methods(http.MethodGet)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, title, message string) {
	writeJSON(w, status, errorResponse{Error: title, Message: message})
}
