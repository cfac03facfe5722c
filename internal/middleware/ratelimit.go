package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"care-gateway/internal/audit"
	"care-gateway/internal/common/logging"
	"care-gateway/internal/ratelimit"
)

// Gate is the admission-control middleware. For every request off the
// excluded paths it resolves the traffic category, makes the rate limit
// decision, and either emits a structured 429 plus a violation record or
// lets the request through with quota headers attached.
type Gate struct {
	limiter  *ratelimit.Limiter
	recorder *audit.Recorder
	logger   logging.Logger
}

// rateLimitResponse is the 429 body.
type rateLimitResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
}

// NewGate creates the admission-control middleware.
func NewGate(limiter *ratelimit.Limiter, recorder *audit.Recorder, logger logging.Logger) *Gate {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Gate{
		limiter:  limiter,
		recorder: recorder,
		logger:   logger,
	}
}

// Middleware wraps a handler with admission control. The decision and the
// header annotation are two phases so the decision's single state
// mutation happens exactly once per request; headers for admitted
// requests come from the non-mutating peek path.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if ratelimit.IsExcludedPath(path) {
			next.ServeHTTP(w, r)
			return
		}

		category := ratelimit.ResolveCategory(path, r.Method)
		cfg := ratelimit.GetConfig(category)
		ident := ratelimit.Identity{
			UserID: UserHint(r),
			IP:     ClientIP(r),
		}

		result := g.limiter.Check(r.Context(), category, cfg, ident)
		if !result.Allowed {
			g.deny(w, r, category, cfg, ident, result)
			return
		}

		status := g.limiter.Status(r.Context(), category, cfg, ident)
		setQuotaHeaders(w, status)

		next.ServeHTTP(w, r)
	})
}

func (g *Gate) deny(w http.ResponseWriter, r *http.Request, category ratelimit.Category, cfg ratelimit.Config, ident ratelimit.Identity, result ratelimit.Result) {
	g.recorder.Record(audit.Violation{
		Timestamp:  time.Now(),
		Category:   category,
		Path:       r.URL.Path,
		Method:     r.Method,
		IP:         ident.IP,
		UserID:     ident.UserID,
		UserAgent:  r.Header.Get("User-Agent"),
		Limit:      result.Limit,
		RetryAfter: result.RetryAfter,
	})

	g.logger.Warn("Request denied by rate limiter",
		logging.String("category", string(category)),
		logging.String("path", r.URL.Path),
		logging.String("method", r.Method),
		logging.String("ip", ident.IP),
		logging.Bool("degraded", result.Degraded),
	)

	message := cfg.Message
	if message == "" {
		message = "Rate limit exceeded, please try again later"
	}

	setQuotaHeaders(w, result)
	w.Header().Set("Retry-After", fmt.Sprintf("%d", result.RetryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	_ = json.NewEncoder(w).Encode(rateLimitResponse{
		Error:      "Too Many Requests",
		Message:    message,
		RetryAfter: result.RetryAfter,
	})
}

func setQuotaHeaders(w http.ResponseWriter, result ratelimit.Result) {
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
	w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", result.Reset))
}
