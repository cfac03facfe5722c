package ratelimit

import (
	"context"
	"fmt"
	"time"

	"care-gateway/internal/common/logging"
)

// Limiter orchestrates admission decisions: it builds composite bucket
// keys from the category config and request identity, prefers the shared
// counter, and degrades to the per-process fallback on any store error.
type Limiter struct {
	store  Counter
	local  *LocalCounter
	logger logging.Logger
}

// NewLimiter creates a limiter. store may be nil, in which case every
// decision runs against the local fallback (permanent degraded mode).
func NewLimiter(store Counter, local *LocalCounter, logger logging.Logger) *Limiter {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Limiter{
		store:  store,
		local:  local,
		logger: logger,
	}
}

// Check makes the admission decision for one request, consuming exactly
// one quota unit per tracked bucket. When the category tracks both user
// and IP the most restrictive bucket wins: a caller rotating accounts
// still hits the IP bucket, and vice versa.
func (l *Limiter) Check(ctx context.Context, category Category, cfg Config, ident Identity) Result {
	keys := buildKeys(category, cfg, ident)

	var combined Result
	for i, key := range keys {
		allowed, count, oldest, degraded := l.checkKey(ctx, key, cfg)
		result := l.toResult(allowed, count, oldest, cfg)
		result.Degraded = degraded

		if i == 0 {
			combined = result
			continue
		}
		combined = mostRestrictive(combined, result)
	}

	return combined
}

// Status is the peek path: the same lookup as Check without the
// increment, used to annotate headers on already-admitted requests so an
// allowed request is never double-counted.
func (l *Limiter) Status(ctx context.Context, category Category, cfg Config, ident Identity) Result {
	keys := buildKeys(category, cfg, ident)

	var combined Result
	for i, key := range keys {
		count, oldest, degraded := l.peekKey(ctx, key, cfg)
		result := l.toResult(count < cfg.Limit, count, oldest, cfg)
		result.Degraded = degraded
		// a peek never carries a denial retry hint
		result.RetryAfter = 0

		if i == 0 {
			combined = result
			continue
		}
		combined = mostRestrictive(combined, result)
	}

	return combined
}

// Reset clears a single bucket key in both counters. Administrative and
// test use only.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if l.store != nil {
		if err := l.store.ResetRateLimit(ctx, key); err != nil {
			return err
		}
	}
	return l.local.ResetRateLimit(ctx, key)
}

// ClearAll clears every bucket in both counters. Administrative and test
// use only.
func (l *Limiter) ClearAll(ctx context.Context) error {
	if l.store != nil {
		if err := l.store.ClearAllRateLimits(ctx); err != nil {
			return err
		}
	}
	return l.local.ClearAllRateLimits(ctx)
}

// checkKey runs the shared counter when available and falls back to the
// local counter on any store error. The error never reaches the request
// path; the fallback decision is this visible branch.
func (l *Limiter) checkKey(ctx context.Context, key string, cfg Config) (bool, int, int64, bool) {
	if l.store != nil {
		allowed, count, oldest, err := l.store.CheckRateLimit(ctx, key, cfg.Limit, cfg.Window)
		if err == nil {
			return allowed, count, oldest, false
		}
		l.logger.Warn("shared rate limit store unavailable, using local fallback",
			logging.String("key", key),
			logging.Err(err),
		)
	}

	allowed, count, oldest, _ := l.local.CheckRateLimit(ctx, key, cfg.Limit, cfg.Window)
	return allowed, count, oldest, l.store != nil
}

func (l *Limiter) peekKey(ctx context.Context, key string, cfg Config) (int, int64, bool) {
	if l.store != nil {
		count, oldest, err := l.store.PeekRateLimit(ctx, key, cfg.Window)
		if err == nil {
			return count, oldest, false
		}
		l.logger.Warn("shared rate limit store unavailable, using local fallback",
			logging.String("key", key),
			logging.Err(err),
		)
	}

	count, oldest, _ := l.local.PeekRateLimit(ctx, key, cfg.Window)
	return count, oldest, l.store != nil
}

func (l *Limiter) toResult(allowed bool, count int, oldest int64, cfg Config) Result {
	windowSeconds := int(cfg.Window.Seconds())
	now := time.Now()

	remaining := cfg.Limit - count
	if remaining < 0 {
		remaining = 0
	}

	reset := now.Add(cfg.Window).Unix()
	if oldest > 0 {
		reset = oldest/1000 + int64(windowSeconds)
	}

	result := Result{
		Allowed:   allowed,
		Limit:     cfg.Limit,
		Remaining: remaining,
		Reset:     reset,
	}

	if !allowed {
		result.Remaining = 0

		retryAfter := windowSeconds
		if oldest > 0 {
			retryAfter = windowSeconds - int((now.UnixMilli()-oldest)/1000)
		}
		if retryAfter < 1 {
			retryAfter = 1
		}
		if retryAfter > windowSeconds {
			retryAfter = windowSeconds
		}
		result.RetryAfter = retryAfter
	}

	return result
}

// buildKeys derives the bucket keys for a request. An unidentifiable
// caller lands in the shared anonymous bucket, which is intentionally
// strict: a caller we cannot attribute does not escape admission control.
func buildKeys(category Category, cfg Config, ident Identity) []string {
	var keys []string
	if cfg.TrackByUser && ident.UserID != "" {
		keys = append(keys, fmt.Sprintf("%s:user:%s", category, ident.UserID))
	}
	if cfg.TrackByIP && ident.IP != "" {
		keys = append(keys, fmt.Sprintf("%s:ip:%s", category, ident.IP))
	}
	if len(keys) == 0 {
		keys = append(keys, fmt.Sprintf("%s:anonymous", category))
	}
	return keys
}

func mostRestrictive(a, b Result) Result {
	a.Degraded = a.Degraded || b.Degraded

	if !b.Allowed && !a.Allowed {
		if b.RetryAfter > a.RetryAfter {
			b.Degraded = a.Degraded
			return b
		}
		return a
	}
	if !b.Allowed {
		b.Degraded = a.Degraded
		return b
	}
	if !a.Allowed {
		return a
	}

	if b.Remaining < a.Remaining {
		b.Degraded = a.Degraded
		return b
	}
	return a
}
