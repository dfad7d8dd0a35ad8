// Package smoke drives random questionnaires against a running prediction
// server and summarises how it answered.
package smoke

import (
	"time"

	"github.com/okian/pcosrisk/internal/domain/assessment"
)

// Config holds configuration for a smoke run
type Config struct {
	BaseURL      string        // Base URL of the service
	NumRequests  int           // Number of questionnaires to submit
	Workers      int           // Number of concurrent workers
	Timeout      time.Duration // HTTP request timeout
	InvalidRatio float64       // Share of questionnaires sent without a basic measurement
	OutputFile   string        // Optional dump of generated requests
	Verbose      bool          // Log every response
}

// Request is one generated questionnaire and the answer class it should get.
type Request struct {
	ID          string             `json:"id"`
	Payload     assessment.Payload `json:"payload"`
	ExpectValid bool               `json:"expectValid"`
}

// PredictResponse mirrors the body of a successful POST /api/predict.
type PredictResponse struct {
	Success     bool    `json:"success"`
	Score       float64 `json:"score"`
	RiskLevel   string  `json:"riskLevel"`
	Probability float64 `json:"probability"`
}

// ErrorResponse mirrors the body of a rejected or failed prediction.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Stats holds run statistics
type Stats struct {
	RunID       string
	Generated   int
	Submitted   int
	OK          int
	BadRequest  int
	ServerError int
	Failed      int // transport errors and unexpected status codes
	Mismatched  int // answer class differs from ExpectValid
	RiskLevels  map[string]int
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
}
