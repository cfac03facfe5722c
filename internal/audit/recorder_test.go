package audit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"care-gateway/internal/ratelimit"
)

func makeViolation(path string) Violation {
	return Violation{
		Timestamp: time.Now(),
		Category:  ratelimit.CategoryAPI,
		Path:      path,
		Method:    "GET",
		IP:        "10.0.0.1",
		Limit:     100,
	}
}

func TestRecorder_RecordAndDrain(t *testing.T) {
	r := NewRecorder(10)

	r.Record(makeViolation("/api/a"))
	r.Record(makeViolation("/api/b"))

	drained := r.Drain()
	assert.Len(t, drained, 2)
	assert.Equal(t, "/api/a", drained[0].Path)
	assert.Equal(t, "/api/b", drained[1].Path)

	// drain is destructive: a second drain with no intervening record
	// returns an empty list
	assert.Empty(t, r.Drain())
}

func TestRecorder_OverflowDropsOldest(t *testing.T) {
	r := NewRecorder(3)

	for i := 1; i <= 5; i++ {
		r.Record(makeViolation(fmt.Sprintf("/api/%d", i)))
	}

	drained := r.Drain()
	assert.Len(t, drained, 3)
	assert.Equal(t, "/api/3", drained[0].Path)
	assert.Equal(t, "/api/4", drained[1].Path)
	assert.Equal(t, "/api/5", drained[2].Path)
}

func TestRecorder_SnapshotIsNonDestructive(t *testing.T) {
	r := NewRecorder(10)
	r.Record(makeViolation("/api/a"))

	snapshot := r.Snapshot()
	assert.Len(t, snapshot, 1)
	assert.Equal(t, 1, r.Len())

	// mutating the snapshot must not touch the buffer
	snapshot[0].Path = "/mutated"
	assert.Equal(t, "/api/a", r.Snapshot()[0].Path)

	assert.Len(t, r.Drain(), 1)
}

func TestRecorder_DefaultCapacity(t *testing.T) {
	r := NewRecorder(0)

	for i := 0; i < DefaultBufferCapacity+20; i++ {
		r.Record(makeViolation("/api/x"))
	}

	assert.Equal(t, DefaultBufferCapacity, r.Len())
}

func TestRecorder_ConcurrentRecordAndDrain(t *testing.T) {
	r := NewRecorder(1000)

	var wg sync.WaitGroup
	total := 0
	var totalMu sync.Mutex

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			r.Record(makeViolation("/api/x"))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			drained := r.Drain()
			totalMu.Lock()
			total += len(drained)
			totalMu.Unlock()
		}
	}()
	wg.Wait()

	total += len(r.Drain())
	assert.Equal(t, 500, total, "no violation lost or double-counted across drains")
}
