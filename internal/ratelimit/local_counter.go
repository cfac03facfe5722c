package ratelimit

import (
	"context"
	"sync"
	"time"
)

// LocalCounter is the in-process fallback window counter used when the
// shared store is unreachable or not configured. Enforcement is
// per-process: a deployment with N instances admits up to N x limit in
// the worst case, which is the documented degrade-to-stricter tradeoff.
type LocalCounter struct {
	mu      sync.Mutex
	windows map[string]*localWindow

	sweepInterval time.Duration
	sweepOnce     sync.Once

	// clock is replaceable in tests
	clock func() time.Time
}

type localWindow struct {
	// event timestamps in ms, ascending
	events   []int64
	windowMs int64
	lastSeen time.Time
}

// NewLocalCounter creates a fallback counter. Call StartSweep to bound
// memory for idle keys.
func NewLocalCounter() *LocalCounter {
	return &LocalCounter{
		windows:       make(map[string]*localWindow),
		sweepInterval: 5 * time.Minute,
		clock:         time.Now,
	}
}

// StartSweep starts the background goroutine that drops idle keys. Safe to
// call multiple times; only the first call starts the loop. The loop stops
// when ctx is cancelled.
func (lc *LocalCounter) StartSweep(ctx context.Context) {
	lc.sweepOnce.Do(func() {
		go lc.runSweepLoop(ctx)
	})
}

func (lc *LocalCounter) runSweepLoop(ctx context.Context) {
	ticker := time.NewTicker(lc.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lc.sweep()
		}
	}
}

// sweep removes keys whose window has been idle past its own duration.
func (lc *LocalCounter) sweep() {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	now := lc.clock()
	for key, w := range lc.windows {
		if now.Sub(w.lastSeen) > time.Duration(w.windowMs)*time.Millisecond {
			delete(lc.windows, key)
		}
	}
}

// CheckRateLimit applies the same sliding-window semantics as the shared
// counter against process-local state. It never fails.
func (lc *LocalCounter) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, int, int64, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	now := lc.clock()
	w := lc.getWindow(key, window)
	w.prune(now.UnixMilli())
	w.lastSeen = now

	count := len(w.events)
	if count < limit {
		w.events = append(w.events, now.UnixMilli())
		return true, count + 1, 0, nil
	}

	return false, count, w.events[0], nil
}

// PeekRateLimit counts events in the window without recording one.
func (lc *LocalCounter) PeekRateLimit(_ context.Context, key string, window time.Duration) (int, int64, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	w, ok := lc.windows[key]
	if !ok {
		return 0, 0, nil
	}

	w.prune(lc.clock().UnixMilli())
	if len(w.events) == 0 {
		return 0, 0, nil
	}
	return len(w.events), w.events[0], nil
}

// ResetRateLimit clears a single key.
func (lc *LocalCounter) ResetRateLimit(_ context.Context, key string) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	delete(lc.windows, key)
	return nil
}

// ClearAllRateLimits clears every key.
func (lc *LocalCounter) ClearAllRateLimits(_ context.Context) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	lc.windows = make(map[string]*localWindow)
	return nil
}

func (lc *LocalCounter) getWindow(key string, window time.Duration) *localWindow {
	w, ok := lc.windows[key]
	if !ok {
		w = &localWindow{windowMs: window.Milliseconds()}
		lc.windows[key] = w
	}
	return w
}

func (w *localWindow) prune(nowMs int64) {
	cutoff := nowMs - w.windowMs
	i := 0
	for i < len(w.events) && w.events[i] <= cutoff {
		i++
	}
	if i > 0 {
		w.events = append(w.events[:0], w.events[i:]...)
	}
}
