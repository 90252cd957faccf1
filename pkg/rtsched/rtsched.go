// Package rtsched is the embedder-facing façade over the scheduling
// kernel: a single import surface re-exporting Scheduler, Task, Mutex,
// configuration and error sentinels, so an embedding application never
// reaches into internal/*.
package rtsched

import (
	"log/slog"
	"time"

	"github.com/knightchaser/rtsched/internal/errs"
	"github.com/knightchaser/rtsched/internal/metrics"
	"github.com/knightchaser/rtsched/internal/mutex"
	"github.com/knightchaser/rtsched/internal/sched"
	"github.com/knightchaser/rtsched/internal/task"
)

// Error sentinels, re-exported for errors.Is matching at the API boundary.
var (
	ErrUnknownTask      = errs.ErrUnknownTask
	ErrDuplicateTask    = errs.ErrDuplicateTask
	ErrNotEventDriven   = errs.ErrNotEventDriven
	ErrNotOwner         = errs.ErrNotOwner
	ErrRecursiveAcquire = errs.ErrRecursiveAcquire
	ErrDeadlock         = errs.ErrDeadlock
	ErrTimeout          = errs.ErrTimeout
	ErrInboxClosed      = errs.ErrInboxClosed
	ErrInboxFull        = errs.ErrInboxFull
	ErrSchedulerStopped = errs.ErrSchedulerStopped
	ErrWorkerPanicked   = errs.ErrWorkerPanicked
)

// Overrun policies, re-exported.
const (
	OverrunWarn      = sched.OverrunWarn
	OverrunSkipNext  = sched.OverrunSkipNext
	OverrunTerminate = sched.OverrunTerminate
)

type (
	// Scheduler is the scheduling kernel: task registry, dispatcher,
	// preemption timer, deadlock watchdog and signal bridge.
	Scheduler = sched.Scheduler
	// Config is the scheduler's configuration, loadable from YAML via
	// LoadConfig.
	Config = sched.Config
	// Task is the unit of scheduling.
	Task = task.Task
	// TaskOption configures optional Task fields.
	TaskOption = task.Option
	// Mutex is the priority-inheriting mutex.
	Mutex = mutex.Mutex
	// Stats is a per-task metrics snapshot.
	Stats = metrics.Stats
	// Event is a scheduler observability event.
	Event = sched.Event
)

// NewScheduler constructs a Scheduler from cfg.
func NewScheduler(cfg Config, opts ...sched.Option) (*Scheduler, error) {
	return sched.New(cfg, opts...)
}

// DefaultConfig returns the documented default configuration.
func DefaultConfig() Config { return sched.DefaultConfig() }

// LoadConfig reads YAML configuration from path, falling back to defaults
// if the path is empty or unreadable.
func LoadConfig(path string) (Config, error) { return sched.Load(path) }

// WithLogger threads a *slog.Logger through every scheduler subsystem.
func WithLogger(l *slog.Logger) sched.Option { return sched.WithLogger(l) }

// NewTask constructs a Task in state CREATED. work is the nullary,
// possibly-failing callable the scheduler will dispatch.
func NewTask(name string, work func() error, opts ...TaskOption) *Task {
	return task.New(name, work, opts...)
}

// Task construction options.
func WithPeriod(d time.Duration) TaskOption     { return task.WithPeriod(d) }
func WithBasePriority(p int) TaskOption         { return task.WithBasePriority(p) }
func WithDeadline(d time.Duration) TaskOption   { return task.WithDeadline(d) }
func WithEventDriven(b bool) TaskOption         { return task.WithEventDriven(b) }
func WithInboxCapacity(capacity int) TaskOption { return task.WithInboxCapacity(capacity) }

// NewMutex creates and registers a named priority-inheriting mutex on s.
func NewMutex(s *Scheduler, name string) *Mutex { return s.NewMutex(name) }

// Acquire and Release are free functions mirroring spec §6's
// Mutex.acquire(task)/mutex.release() surface, since *task.Task is the
// receiver-free argument the mutex protocol operates on.
func Acquire(m *Mutex, t *Task) error { return m.Acquire(t) }
func Release(m *Mutex, t *Task) error { return m.Release(t) }
