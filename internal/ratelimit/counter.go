package ratelimit

import (
	"context"
	"time"
)

// CheckResult is the raw outcome of a window counter check. Oldest is the
// score (ms since epoch) of the oldest event inside the window, zero when
// the window is empty.
type CheckResult struct {
	Allowed bool
	Count   int
	Oldest  int64
}

// Counter is the minimal window-counter contract the limiter needs. It is
// implemented by the Redis-backed client and the in-process fallback.
type Counter interface {
	// CheckRateLimit atomically prunes the window, counts events, and
	// admits (recording the event) when under limit.
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, int, int64, error)

	// PeekRateLimit counts events in the window without consuming quota.
	PeekRateLimit(ctx context.Context, key string, window time.Duration) (int, int64, error)

	// ResetRateLimit clears a single key.
	ResetRateLimit(ctx context.Context, key string) error

	// ClearAllRateLimits clears every key. Administrative/test use only.
	ClearAllRateLimits(ctx context.Context) error
}

// Result is the admission decision returned to the request path.
// Remaining is always zero when Allowed is false. Reset is epoch seconds.
// Degraded marks decisions made by the per-process fallback counter.
type Result struct {
	Allowed    bool  `json:"allowed"`
	Limit      int   `json:"limit"`
	Remaining  int   `json:"remaining"`
	Reset      int64 `json:"reset"`
	RetryAfter int   `json:"retry_after"`
	Degraded   bool  `json:"degraded"`
}

// Identity carries the best-effort request identifiers used for bucketing.
// Neither field is verified; they are hints, never trust decisions.
type Identity struct {
	UserID string
	IP     string
}
