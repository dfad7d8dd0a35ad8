package api

import (
	"net/http"

	"github.com/okian/pcosrisk/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthMessage = "PCOS Prediction API is running"

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthHandler handles health check requests.
type HealthHandler struct{}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// HandleHealth handles GET /api/health requests. It does not probe the scorer.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "OK", Message: healthMessage})
}

// MetricsHandler serves the service's own metrics registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
