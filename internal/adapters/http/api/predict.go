package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/pcosrisk/internal/domain/assessment"
	"github.com/okian/pcosrisk/internal/inference"
	"github.com/okian/pcosrisk/pkg/logger"
	"github.com/okian/pcosrisk/pkg/metrics"
)

// Response titles. Clients match on these strings.
const (
	msgInvalidJSON      = "Invalid JSON payload"
	msgTooLarge         = "Request body too large"
	msgMissingBasic     = "Missing required fields: age, weight, height"
	msgIncomplete       = "Incomplete assessment"
	msgPredictionFailed = "Failed to process prediction"
)

type predictResponse struct {
	Success     bool    `json:"success"`
	Score       float64 `json:"score"`
	RiskLevel   string  `json:"riskLevel"`
	Probability float64 `json:"probability"`
}

// PredictHandler handles questionnaire submissions.
type PredictHandler struct {
	predictor    Predictor
	logger       logger.Logger
	strict       bool
	maxBodyBytes int64
}

// NewPredictHandler creates a new prediction handler.
func NewPredictHandler(p Predictor, l logger.Logger, strict bool, maxBodyBytes int64) *PredictHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &PredictHandler{predictor: p, logger: l, strict: strict, maxBodyBytes: maxBodyBytes}
}

// HandlePredict handles POST /api/predict requests.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict"
	ctx := r.Context()

	p, err := assessment.Decode(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.RecordValidationRejection("body_too_large")
			writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge, "")
			return
		}
		metrics.RecordValidationRejection("invalid_json")
		h.logger.Warn(ctx, "rejected prediction request", logger.Error(WrapKind(op, ErrBadRequest, err)))
		writeError(w, http.StatusBadRequest, msgInvalidJSON, "")
		return
	}

	if missing := assessment.MissingBasic(p); len(missing) > 0 {
		metrics.RecordValidationRejection("missing_basic")
		h.logger.Debug(ctx, "rejected prediction request",
			logger.Error(WrapKind(op, ErrValidation, fmt.Errorf("missing %s", strings.Join(missing, ", ")))),
		)
		writeError(w, http.StatusBadRequest, msgMissingBasic, "")
		return
	}
	if h.strict {
		if missing := assessment.Missing(p); len(missing) > 0 {
			metrics.RecordValidationRejection("incomplete")
			writeError(w, http.StatusBadRequest, msgIncomplete, "missing: "+strings.Join(missing, ", "))
			return
		}
	}

	res, err := h.predictor.Predict(ctx, p)
	if err != nil {
		fields := []logger.Field{
			logger.String("outcome", inference.Outcome(err)),
			logger.Error(WrapKind(op, ErrPrediction, err)),
		}
		var ie *inference.Error
		if errors.As(err, &ie) {
			fields = append(fields, logger.Int("exit_code", ie.ExitCode), logger.String("stderr", ie.Stderr))
		}
		h.logger.Error(ctx, "prediction failed", fields...)
		writeError(w, http.StatusInternalServerError, msgPredictionFailed, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, predictResponse{
		Success:     true,
		Score:       res.Score,
		RiskLevel:   res.RiskLevel,
		Probability: res.Probability,
	})
}
