package audit

import "sync"

// DefaultBufferCapacity bounds the violation buffer. Under sustained
// attack the buffer favors recency over completeness: the oldest entry is
// dropped on overflow.
const DefaultBufferCapacity = 100

// Recorder is a bounded, process-local buffer of denial events. It is
// mutated by two actors (request path appends, flush job drains), so the
// drain is an atomic swap: no violation recorded concurrently with a
// flush is lost or double-counted.
type Recorder struct {
	mu       sync.Mutex
	buf      []Violation
	capacity int
}

// NewRecorder creates a recorder with the given capacity. A non-positive
// capacity uses DefaultBufferCapacity.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &Recorder{
		buf:      make([]Violation, 0, capacity),
		capacity: capacity,
	}
}

// Record appends a violation, dropping the oldest entry when full.
func (r *Recorder) Record(v Violation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.buf) == r.capacity {
		copy(r.buf, r.buf[1:])
		r.buf = r.buf[:len(r.buf)-1]
	}
	r.buf = append(r.buf, v)
}

// Drain swaps the buffer for an empty one and returns the previous
// contents. This is a destructive read reserved for the scheduled
// flusher; dashboards must use Snapshot.
func (r *Recorder) Drain() []Violation {
	r.mu.Lock()
	defer r.mu.Unlock()

	drained := r.buf
	r.buf = make([]Violation, 0, r.capacity)
	return drained
}

// Snapshot returns a copy of the buffered violations without consuming
// them.
func (r *Recorder) Snapshot() []Violation {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Violation, len(r.buf))
	copy(out, r.buf)
	return out
}

// Len returns the number of buffered violations.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}
