// Package observation captures messages seen on the bus during a collection
// window. The Log is the single structure shared between the transport's
// delivery goroutine and the orchestrator.
package observation

import (
	"encoding/json"
	"sync"
	"time"
)

// Observation is one message received during the collection window.
type Observation struct {
	Topic      string          `json:"topic"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Log is an append-only observation log. Append is safe to call from the
// transport delivery goroutine concurrently with Snapshot from the main
// sequence. Once frozen, further appends are dropped so validation reads a
// stable view.
type Log struct {
	mu      sync.Mutex
	entries []Observation
	frozen  bool
	dropped int
}

// NewLog returns an empty observation log.
func NewLog() *Log {
	return &Log{}
}

// Append records one observation in arrival order. Appends after Freeze are
// counted and discarded.
func (l *Log) Append(o Observation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.frozen {
		l.dropped++
		return
	}
	l.entries = append(l.entries, o)
}

// Snapshot returns a point-in-time copy of the log. The returned slice is
// owned by the caller; later appends do not affect it.
func (l *Log) Snapshot() []Observation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Observation, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the current number of recorded observations.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Freeze marks the end of the collection window. Idempotent.
func (l *Log) Freeze() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frozen = true
}

// Dropped returns how many appends arrived after the log was frozen.
func (l *Log) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}
