package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care-gateway/internal/common/errors"
	"care-gateway/internal/ratelimit"
)

type capturedSink struct {
	entries []Entry
	failFor map[string]bool
}

func (c *capturedSink) sink(ctx context.Context, entry Entry) error {
	if c.failFor[entry.IPAddress] {
		return errors.InternalError("sink unavailable", nil)
	}
	c.entries = append(c.entries, entry)
	return nil
}

func TestFlusher_Flush_GroupsByIP(t *testing.T) {
	recorder := NewRecorder(100)
	sink := &capturedSink{}
	flusher := NewFlusher(recorder, sink.sink, "org-1", time.Minute, nil)

	recorder.Record(Violation{Category: ratelimit.CategoryAPI, IP: "10.0.0.1", Path: "/api/a", RetryAfter: 10})
	recorder.Record(Violation{Category: ratelimit.CategoryAuthentication, IP: "10.0.0.1", Path: "/api/auth/login", UserID: "u1", UserAgent: "curl", RetryAfter: 600})
	recorder.Record(Violation{Category: ratelimit.CategoryWebhook, IP: "10.0.0.2", Path: "/webhooks/x", RetryAfter: 5})

	flusher.Flush(context.Background())

	require.Len(t, sink.entries, 2)

	byIP := map[string]Entry{}
	for _, e := range sink.entries {
		byIP[e.IPAddress] = e
	}

	first := byIP["10.0.0.1"]
	assert.Equal(t, "org-1", first.OrgID)
	assert.Equal(t, "rate_limit.violation", first.Action)
	assert.Equal(t, "rate_limit", first.Resource)
	// the authentication violation is the most severe representative
	assert.Equal(t, "authentication", first.ResourceID)
	assert.Equal(t, "u1", first.UserID)
	assert.Equal(t, "curl", first.UserAgent)
	assert.Equal(t, "high", first.Details["severity"])
	assert.Equal(t, 2, first.Details["violation_count"])
	assert.ElementsMatch(t, []string{"api", "authentication"}, first.Details["categories"])

	second := byIP["10.0.0.2"]
	assert.Equal(t, 1, second.Details["violation_count"])

	// the buffer was drained
	assert.Zero(t, recorder.Len())
}

func TestFlusher_Flush_TiesBrokenByOrder(t *testing.T) {
	recorder := NewRecorder(100)
	sink := &capturedSink{}
	flusher := NewFlusher(recorder, sink.sink, "org-1", time.Minute, nil)

	recorder.Record(Violation{Category: ratelimit.CategoryAPI, IP: "10.0.0.1", Path: "/api/first", RetryAfter: 10})
	recorder.Record(Violation{Category: ratelimit.CategoryPublic, IP: "10.0.0.1", Path: "/second", RetryAfter: 10})

	flusher.Flush(context.Background())

	require.Len(t, sink.entries, 1)
	assert.Equal(t, "/api/first", sink.entries[0].Details["path"])
}

func TestFlusher_Flush_ContinuesOnSinkFailure(t *testing.T) {
	recorder := NewRecorder(100)
	sink := &capturedSink{failFor: map[string]bool{"10.0.0.1": true}}
	flusher := NewFlusher(recorder, sink.sink, "org-1", time.Minute, nil)

	recorder.Record(Violation{Category: ratelimit.CategoryAPI, IP: "10.0.0.1"})
	recorder.Record(Violation{Category: ratelimit.CategoryAPI, IP: "10.0.0.2"})
	recorder.Record(Violation{Category: ratelimit.CategoryAPI, IP: "10.0.0.3"})

	flusher.Flush(context.Background())

	// the failed group is skipped, the rest are delivered, nothing is re-queued
	require.Len(t, sink.entries, 2)
	assert.Zero(t, recorder.Len())
}

func TestFlusher_Flush_MissingIPGroupsAsUnknown(t *testing.T) {
	recorder := NewRecorder(100)
	sink := &capturedSink{}
	flusher := NewFlusher(recorder, sink.sink, "org-1", time.Minute, nil)

	recorder.Record(Violation{Category: ratelimit.CategoryPublic})
	recorder.Record(Violation{Category: ratelimit.CategoryPublic})

	flusher.Flush(context.Background())

	require.Len(t, sink.entries, 1)
	assert.Empty(t, sink.entries[0].IPAddress)
	assert.Equal(t, 2, sink.entries[0].Details["violation_count"])
}

func TestFlusher_Flush_EmptyBufferDeliversNothing(t *testing.T) {
	recorder := NewRecorder(100)
	sink := &capturedSink{}
	flusher := NewFlusher(recorder, sink.sink, "org-1", time.Minute, nil)

	flusher.Flush(context.Background())
	assert.Empty(t, sink.entries)
}

func TestFlusher_StartAndStop(t *testing.T) {
	recorder := NewRecorder(100)
	sink := &capturedSink{}
	flusher := NewFlusher(recorder, sink.sink, "org-1", time.Hour, nil)

	require.NoError(t, flusher.Start())

	recorder.Record(Violation{Category: ratelimit.CategoryAPI, IP: "10.0.0.1"})

	// Stop runs a final flush so shutdown does not lose buffered events
	flusher.Stop(context.Background())
	assert.Len(t, sink.entries, 1)
}
