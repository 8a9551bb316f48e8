package scoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naalis/influfinder/internal/common/config"
	"github.com/naalis/influfinder/internal/common/logger"
)

func oracleConfig(baseURL string, timeoutMS, retries int) config.OracleConfig {
	return config.OracleConfig{BaseURL: baseURL, TimeoutMS: timeoutMS, MaxRetries: retries}
}

func TestAnalyzeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/analyze", r.URL.Path)
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://instagram.com/p/abc", req["content_url"])
		assert.Equal(t, "instagram", req["platform"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"score":               78.5,
			"passed_requirements": true,
			"analysis":            map[string]interface{}{"tone": "on-brand"},
		})
	}))
	defer srv.Close()

	o := NewHTTPOracle(oracleConfig(srv.URL, 2000, 0), logger.NewTestLogger(t))
	result, err := o.Analyze(context.Background(), "https://instagram.com/p/abc",
		map[string]interface{}{"hashtags": []string{"#cafe"}}, "instagram")
	require.NoError(t, err)
	assert.Equal(t, 78.5, result.Score)
	assert.True(t, result.PassedRequirements)
	assert.Equal(t, "on-brand", result.Analysis["tone"])
}

func TestAnalyzeClampsScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"score": 140.0})
	}))
	defer srv.Close()

	o := NewHTTPOracle(oracleConfig(srv.URL, 2000, 0), logger.NewTestLogger(t))
	result, err := o.Analyze(context.Background(), "url", nil, "instagram")
	require.NoError(t, err)
	assert.Equal(t, 100.0, result.Score)
}

func TestAnalyzeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	o := NewHTTPOracle(oracleConfig(srv.URL, 50, 0), logger.NewTestLogger(t))
	_, err := o.Analyze(context.Background(), "url", nil, "instagram")
	assert.ErrorIs(t, err, ErrOracleTimeout)
}

func TestAnalyzeRetriesTransientFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"score": 60.0})
	}))
	defer srv.Close()

	o := NewHTTPOracle(oracleConfig(srv.URL, 5000, 2), logger.NewTestLogger(t))
	result, err := o.Analyze(context.Background(), "url", nil, "instagram")
	require.NoError(t, err)
	assert.Equal(t, 60.0, result.Score)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDegraded(t *testing.T) {
	result := Degraded(ErrOracleTimeout)
	assert.Zero(t, result.Score)
	assert.False(t, result.PassedRequirements)
	assert.True(t, result.TimedOut)
	assert.NotEmpty(t, result.Analysis["error"])

	result = Degraded(ErrOracleFailed)
	assert.False(t, result.TimedOut)
}
