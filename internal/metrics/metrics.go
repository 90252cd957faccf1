// Package metrics holds the per-task counters updated by the dispatcher
// and read back through the scheduler's GetStats call.
package metrics

import (
	"log/slog"
	"sync"
	"time"
)

// Stats is an immutable snapshot of a task's run history.
type Stats struct {
	Runs         int64
	TotalRuntime time.Duration
	LastRuntime  time.Duration
	Overruns     int64
	Errors       int64
}

// LogValue renders Stats as a structured slog group, so a logger call like
// logger.Info("run complete", "stats", stats) emits individual fields
// instead of a generic %+v dump.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("runs", s.Runs),
		slog.Duration("total_runtime", s.TotalRuntime),
		slog.Duration("last_runtime", s.LastRuntime),
		slog.Int64("overruns", s.Overruns),
		slog.Int64("errors", s.Errors),
	)
}

// Tracker accumulates Stats under a dedicated lock, independent of the
// task's own state lock, so metrics reads never contend with scheduling
// decisions.
type Tracker struct {
	mu    sync.Mutex
	stats Stats
}

// NewTracker returns a zeroed Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// RecordRun accounts for one completed execution of duration d.
func (t *Tracker) RecordRun(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Runs++
	t.stats.TotalRuntime += d
	t.stats.LastRuntime = d
}

// RecordOverrun increments the overrun counter for a run that exceeded its
// deadline.
func (t *Tracker) RecordOverrun() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Overruns++
}

// RecordError increments the error counter for a failed work function.
func (t *Tracker) RecordError() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Errors++
}

// Snapshot returns a copy of the current counters.
func (t *Tracker) Snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}
