// Package handlers exposes the health check and the administrative
// surface of the admission-control subsystem. The domain CRUD handlers of
// the surrounding service register separately.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"care-gateway/internal/audit"
	"care-gateway/internal/common/logging"
	"care-gateway/internal/ratelimit"
)

type Handlers struct {
	limiter  *ratelimit.Limiter
	recorder *audit.Recorder
	logger   logging.Logger
}

func New(limiter *ratelimit.Limiter, recorder *audit.Recorder, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		limiter:  limiter,
		recorder: recorder,
		logger:   logger,
	}
}

// HealthCheck reports service liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// violationSummary is the dashboard view of buffered violations. It is
// built from a non-destructive snapshot so it never consumes events the
// scheduled flush needs.
type violationSummary struct {
	Total      int                   `json:"total"`
	BySeverity map[string]int        `json:"by_severity"`
	ByCategory map[string]int        `json:"by_category"`
	Recent     []violationSummaryRow `json:"recent"`
}

type violationSummaryRow struct {
	Timestamp time.Time `json:"timestamp"`
	Category  string    `json:"category"`
	Severity  string    `json:"severity"`
	Path      string    `json:"path"`
	Method    string    `json:"method"`
	IP        string    `json:"ip,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
}

// GetViolationSummary returns a summary of currently buffered violations.
func (h *Handlers) GetViolationSummary(w http.ResponseWriter, r *http.Request) {
	violations := h.recorder.Snapshot()

	summary := violationSummary{
		Total:      len(violations),
		BySeverity: make(map[string]int),
		ByCategory: make(map[string]int),
		Recent:     make([]violationSummaryRow, 0, len(violations)),
	}

	for _, v := range violations {
		severity := string(audit.Classify(v))
		summary.BySeverity[severity]++
		summary.ByCategory[string(v.Category)]++
		summary.Recent = append(summary.Recent, violationSummaryRow{
			Timestamp: v.Timestamp,
			Category:  string(v.Category),
			Severity:  severity,
			Path:      v.Path,
			Method:    v.Method,
			IP:        v.IP,
			UserID:    v.UserID,
		})
	}

	writeJSON(w, http.StatusOK, summary)
}

// ResetRateLimit clears a single bucket key.
func (h *Handlers) ResetRateLimit(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "key is required"})
		return
	}

	if err := h.limiter.Reset(r.Context(), key); err != nil {
		h.logger.Error("failed to reset rate limit", err, logging.String("key", key))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to reset rate limit"})
		return
	}

	h.logger.Info("Rate limit reset", logging.String("key", key))
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "key": key})
}

// ClearRateLimits clears every bucket.
func (h *Handlers) ClearRateLimits(w http.ResponseWriter, r *http.Request) {
	if err := h.limiter.ClearAll(r.Context()); err != nil {
		h.logger.Error("failed to clear rate limits", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to clear rate limits"})
		return
	}

	h.logger.Info("All rate limits cleared")
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
