// Package scoring talks to the external AI content analysis service. The
// service is treated as an opaque oracle: callers hand it a content URL
// plus the offer's requirement block and get a compliance score back.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/naalis/influfinder/internal/common/config"
	apperrors "github.com/naalis/influfinder/internal/common/errors"
	"github.com/naalis/influfinder/internal/common/logger"
	"github.com/naalis/influfinder/internal/common/metrics"
)

var (
	ErrOracleTimeout = errors.New("ORACLE_TIMEOUT")
	ErrOracleFailed  = errors.New("ORACLE_FAILED")
)

// Result is the oracle's verdict on a single content artifact.
type Result struct {
	Score              float64                `json:"aiScore"`
	Analysis           map[string]interface{} `json:"analysis,omitempty"`
	PassedRequirements bool                   `json:"passedRequirements"`
	TimedOut           bool                   `json:"timedOut"`
}

// Oracle analyzes a content artifact against an offer's requirements.
type Oracle interface {
	Analyze(ctx context.Context, contentURL string, requirements map[string]interface{}, platform string) (*Result, error)
}

// HTTPOracle calls the AI analysis sidecar over HTTP with a bounded
// timeout and exponential backoff retries.
type HTTPOracle struct {
	cfg    config.OracleConfig
	client *http.Client
	logger logger.Logger
}

func NewHTTPOracle(cfg config.OracleConfig, log logger.Logger) *HTTPOracle {
	return &HTTPOracle{
		cfg: cfg,
		// No client-level timeout; the per-call context carries the budget.
		client: &http.Client{},
		logger: log.WithFields(map[string]interface{}{"component": "scoring-oracle"}),
	}
}

type analyzeRequest struct {
	ContentURL   string                 `json:"content_url"`
	Requirements map[string]interface{} `json:"requirements"`
	Platform     string                 `json:"platform"`
}

type analyzeResponse struct {
	Score              float64                `json:"score"`
	Analysis           map[string]interface{} `json:"analysis"`
	PassedRequirements bool                   `json:"passed_requirements"`
}

// Analyze submits the artifact for scoring. It returns ErrOracleTimeout
// when the context deadline is exhausted and ErrOracleFailed for other
// transport or decoding failures; callers are expected to degrade rather
// than propagate.
func (o *HTTPOracle) Analyze(ctx context.Context, contentURL string, requirements map[string]interface{}, platform string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout())
	defer cancel()

	body, err := json.Marshal(analyzeRequest{
		ContentURL:   contentURL,
		Requirements: requirements,
		Platform:     platform,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrOracleFailed, err)
	}

	started := time.Now()
	defer func() {
		metrics.OracleDuration.Observe(time.Since(started).Seconds())
	}()

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				metrics.OracleCalls.WithLabelValues("timeout").Inc()
				return nil, ErrOracleTimeout
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/api/ai/analyze", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOracleFailed, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, lastErr = o.client.Do(req)
		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
		}

		if ctx.Err() != nil {
			metrics.OracleCalls.WithLabelValues("timeout").Inc()
			return nil, ErrOracleTimeout
		}
	}

	if lastErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			metrics.OracleCalls.WithLabelValues("timeout").Inc()
			return nil, ErrOracleTimeout
		}
		metrics.OracleCalls.WithLabelValues("error").Inc()
		return nil, apperrors.NewDependencyUnavailableError("scoring-oracle", lastErr)
	}
	if resp == nil {
		metrics.OracleCalls.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: no successful response after retries", ErrOracleFailed)
	}
	defer resp.Body.Close()

	var apiResp analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		metrics.OracleCalls.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: decode error: %v", ErrOracleFailed, err)
	}

	if apiResp.Score < 0 {
		apiResp.Score = 0
	}
	if apiResp.Score > 100 {
		apiResp.Score = 100
	}

	metrics.OracleCalls.WithLabelValues("ok").Inc()
	o.logger.Info("content analyzed", map[string]interface{}{
		"score":    apiResp.Score,
		"passed":   apiResp.PassedRequirements,
		"platform": platform,
	})

	return &Result{
		Score:              apiResp.Score,
		Analysis:           apiResp.Analysis,
		PassedRequirements: apiResp.PassedRequirements,
	}, nil
}

// Degraded builds the conservative zero-score result substituted when the
// oracle is unreachable. A stalled AI dependency must not block manual
// review, so this is what gets stored.
func Degraded(err error) *Result {
	analysis := map[string]interface{}{"error": "analysis unavailable"}
	if err != nil {
		analysis["error"] = err.Error()
	}
	return &Result{
		Score:              0,
		Analysis:           analysis,
		PassedRequirements: false,
		TimedOut:           errors.Is(err, ErrOracleTimeout),
	}
}
