package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care-gateway/internal/audit"
	"care-gateway/internal/ratelimit"
)

func setupHandlers(t *testing.T) (*ratelimit.Limiter, *audit.Recorder, *mux.Router) {
	t.Helper()

	limiter := ratelimit.NewLimiter(nil, ratelimit.NewLocalCounter(), nil)
	recorder := audit.NewRecorder(100)
	h := New(limiter, recorder, nil)

	router := mux.NewRouter()
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/admin/violations", h.GetViolationSummary).Methods("GET")
	router.HandleFunc("/api/admin/ratelimits/{key}", h.ResetRateLimit).Methods("DELETE")
	router.HandleFunc("/api/admin/ratelimits", h.ClearRateLimits).Methods("DELETE")

	return limiter, recorder, router
}

func TestHealthCheck(t *testing.T) {
	_, _, router := setupHandlers(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestGetViolationSummary(t *testing.T) {
	_, recorder, router := setupHandlers(t)

	recorder.Record(audit.Violation{
		Timestamp:  time.Now(),
		Category:   ratelimit.CategoryAuthentication,
		Path:       "/api/auth/login",
		Method:     "POST",
		IP:         "10.0.0.1",
		RetryAfter: 600,
	})
	recorder.Record(audit.Violation{
		Timestamp:  time.Now(),
		Category:   ratelimit.CategoryAPI,
		Path:       "/api/clients",
		Method:     "GET",
		IP:         "10.0.0.2",
		RetryAfter: 30,
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/admin/violations", nil))

	assert.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Total      int            `json:"total"`
		BySeverity map[string]int `json:"by_severity"`
		ByCategory map[string]int `json:"by_category"`
		Recent     []struct {
			Category string `json:"category"`
			Severity string `json:"severity"`
		} `json:"recent"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))

	assert.Equal(t, 2, body.Total)
	assert.Equal(t, 1, body.BySeverity["high"])
	assert.Equal(t, 1, body.BySeverity["low"])
	assert.Equal(t, 1, body.ByCategory["authentication"])
	require.Len(t, body.Recent, 2)

	// the summary is a peek, not a drain: the flush job still sees both
	assert.Equal(t, 2, recorder.Len())
}

func TestResetRateLimit(t *testing.T) {
	limiter, _, router := setupHandlers(t)
	cfg := ratelimit.Config{Limit: 1, Window: time.Minute, TrackByIP: true}
	ctx := context.Background()
	ident := ratelimit.Identity{IP: "10.0.0.1"}

	limiter.Check(ctx, ratelimit.CategoryAPI, cfg, ident)
	result := limiter.Check(ctx, ratelimit.CategoryAPI, cfg, ident)
	require.False(t, result.Allowed)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("DELETE", "/api/admin/ratelimits/api:ip:10.0.0.1", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	result = limiter.Check(ctx, ratelimit.CategoryAPI, cfg, ident)
	assert.True(t, result.Allowed)
}

func TestClearRateLimits(t *testing.T) {
	limiter, _, router := setupHandlers(t)
	cfg := ratelimit.Config{Limit: 1, Window: time.Minute, TrackByIP: true}
	ctx := context.Background()

	limiter.Check(ctx, ratelimit.CategoryAPI, cfg, ratelimit.Identity{IP: "10.0.0.1"})
	limiter.Check(ctx, ratelimit.CategoryAPI, cfg, ratelimit.Identity{IP: "10.0.0.2"})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("DELETE", "/api/admin/ratelimits", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	result := limiter.Check(ctx, ratelimit.CategoryAPI, cfg, ratelimit.Identity{IP: "10.0.0.1"})
	assert.True(t, result.Allowed)
}
