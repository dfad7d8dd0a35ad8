package smoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/pcosrisk/pkg/logger"
)

// requestIDHeader matches the header the server echoes.
const requestIDHeader = "X-Request-ID"

// Response classes of a single submission.
const (
	resultOK          = "ok"
	resultBadRequest  = "bad_request"
	resultServerError = "server_error"
	resultFailed      = "failed"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body and a request id.
func (c *HTTPClient) Post(ctx context.Context, url, requestID string, body any) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if requestID != "" {
		req.Header.Set(requestIDHeader, requestID)
	}
	return c.client.Do(req)
}

// outcome is the classified answer to one submission.
type outcome struct {
	class     string
	riskLevel string
	message   string
}

// submitRequests posts every questionnaire using config.Workers workers.
func submitRequests(ctx context.Context, config *Config, requests []Request, stats *Stats) {
	log := logger.Get()
	log.Info(ctx, "submitting questionnaires",
		logger.Int("count", len(requests)),
		logger.Int("workers", config.Workers),
	)

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/api/predict"

	var (
		submitted   int64
		ok          int64
		badRequest  int64
		serverError int64
		failed      int64
		mismatched  int64
	)
	var riskMu sync.Mutex
	riskLevels := make(map[string]int)

	requestChan := make(chan Request, config.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for req := range requestChan {
				if ctx.Err() != nil {
					continue
				}
				res := submitSingleRequest(ctx, client, url, req)

				atomic.AddInt64(&submitted, 1)
				switch res.class {
				case resultOK:
					atomic.AddInt64(&ok, 1)
					riskMu.Lock()
					riskLevels[res.riskLevel]++
					riskMu.Unlock()
				case resultBadRequest:
					atomic.AddInt64(&badRequest, 1)
				case resultServerError:
					atomic.AddInt64(&serverError, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
				if !matchesExpectation(req, res) {
					atomic.AddInt64(&mismatched, 1)
					log.Warn(ctx, "unexpected response",
						logger.String("requestID", req.ID),
						logger.String("class", res.class),
						logger.Any("expectValid", req.ExpectValid),
						logger.String("message", res.message),
					)
				} else if config.Verbose {
					log.Info(ctx, "response",
						logger.String("requestID", req.ID),
						logger.String("class", res.class),
						logger.String("riskLevel", res.riskLevel),
					)
				}
			}
		}()
	}

	go func() {
		defer close(requestChan)
		for _, req := range requests {
			select {
			case <-ctx.Done():
				return
			case requestChan <- req:
			}
		}
	}()

	wg.Wait()

	stats.Submitted = int(atomic.LoadInt64(&submitted))
	stats.OK = int(atomic.LoadInt64(&ok))
	stats.BadRequest = int(atomic.LoadInt64(&badRequest))
	stats.ServerError = int(atomic.LoadInt64(&serverError))
	stats.Failed = int(atomic.LoadInt64(&failed))
	stats.Mismatched = int(atomic.LoadInt64(&mismatched))
	stats.RiskLevels = riskLevels
}

// matchesExpectation reports whether the server classified req as the
// generator intended. A server error on a valid request counts as a
// match: the scorer, not the server, decided the outcome.
func matchesExpectation(req Request, res outcome) bool {
	if req.ExpectValid {
		return res.class == resultOK || res.class == resultServerError
	}
	return res.class == resultBadRequest
}

// submitSingleRequest posts one questionnaire and classifies the answer.
func submitSingleRequest(ctx context.Context, client *HTTPClient, url string, req Request) outcome {
	resp, err := client.Post(ctx, url, req.ID, req.Payload)
	if err != nil {
		return outcome{class: resultFailed, message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return outcome{class: resultFailed, message: err.Error()}
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var pr PredictResponse
		if err := json.Unmarshal(body, &pr); err != nil || !pr.Success {
			return outcome{class: resultFailed, message: "malformed success body"}
		}
		return outcome{class: resultOK, riskLevel: pr.RiskLevel}
	case http.StatusBadRequest:
		var er ErrorResponse
		_ = json.Unmarshal(body, &er)
		return outcome{class: resultBadRequest, message: er.Error}
	case http.StatusInternalServerError:
		var er ErrorResponse
		_ = json.Unmarshal(body, &er)
		return outcome{class: resultServerError, message: er.Message}
	default:
		return outcome{class: resultFailed, message: fmt.Sprintf("status %d", resp.StatusCode)}
	}
}
