// Package task implements the scheduling unit described by spec §4.2: a
// named work function with static configuration (period, base priority,
// deadline) and dynamic state (effective priority, lifecycle, stats, inbox,
// trigger rendezvous).
package task

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/knightchaser/rtsched/internal/metrics"
)

// Work is the nullary, possibly-failing callable a Task wraps, per the
// "duck-typed work function" capability described in spec §9.
type Work func() error

// Task is the unit of scheduling. All mutable fields are guarded by mu,
// except the stats tracker (its own lock) and the terminate/yield flags
// (atomic, checked without blocking from hot paths).
type Task struct {
	mu sync.Mutex

	name        string
	work        Work
	period      time.Duration
	deadline    time.Duration
	eventDriven bool

	basePriority      int
	effectivePriority int
	ceilings          map[string]int // mutex name -> inherited ceiling

	state           State
	pendingTrigger  bool
	nextDeadlineAbs float64
	lastReleaseAbs  float64

	stats         *metrics.Tracker
	inbox         *Inbox
	inboxCapacity int

	terminate atomic.Bool
	yield     atomic.Bool
}

// Option configures optional Task fields at construction, the Go idiom
// standing in for the source's default-argument constructor.
type Option func(*Task)

func WithPeriod(d time.Duration) Option         { return func(t *Task) { t.period = d } }
func WithDeadline(d time.Duration) Option       { return func(t *Task) { t.deadline = d } }
func WithEventDriven(b bool) Option             { return func(t *Task) { t.eventDriven = b } }
func WithInboxCapacity(capacity int) Option     { return func(t *Task) { t.inboxCapacity = capacity } }
func WithBasePriority(priority int) Option {
	return func(t *Task) {
		t.basePriority = priority
		t.effectivePriority = priority
	}
}

// New constructs a Task in state CREATED. Callers register it with a
// scheduler via AddTask, which transitions it to READY or WAITING_EVENT.
func New(name string, work Work, opts ...Option) *Task {
	t := &Task{
		name:     name,
		work:     work,
		state:    StateCreated,
		ceilings: make(map[string]int),
		stats:    metrics.NewTracker(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.inbox = NewInbox(t.inboxCapacity)
	return t
}

func (t *Task) Name() string { return t.name }

func (t *Task) PeriodSeconds() float64 { return t.period.Seconds() }

func (t *Task) DeadlineSeconds() float64 { return t.deadline.Seconds() }

func (t *Task) IsEventDriven() bool { return t.eventDriven }

func (t *Task) BasePriority() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.basePriority
}

func (t *Task) EffectivePriority() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.effectivePriority
}

// SetPriority updates the base priority and re-derives the effective
// priority as max(base, inherited ceiling) — Open Question #2's resolution:
// base always updates, effective always re-derives.
//
// If t is currently a mutex waiter, its new effective priority is not
// propagated to the mutex it is blocked on: the owner's inherited ceiling
// (applied at enqueue time) and t's position in the waiter tree are both
// left as they were. See DESIGN.md's "Known limitation: SetPriority on a
// mutex waiter" note.
func (t *Task) SetPriority(p int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.basePriority = p
	t.recomputeEffectiveLocked()
}

// ApplyCeiling raises the priority ceiling inherited through the named
// mutex, reporting whether the task's effective priority changed. Called
// only by mutex.Mutex while holding its own internal lock, never directly
// by embedders.
func (t *Task) ApplyCeiling(mutexName string, ceiling int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.ceilings[mutexName]; ok && ceiling <= prev {
		return false
	}
	t.ceilings[mutexName] = ceiling
	return t.recomputeEffectiveLocked()
}

// ReleaseCeiling drops the ceiling granted via the named mutex (on
// Mutex.Release) and restores effective priority to max(base, remaining
// ceilings), per spec §4.3 step 2.
func (t *Task) ReleaseCeiling(mutexName string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.ceilings[mutexName]; !ok {
		return false
	}
	delete(t.ceilings, mutexName)
	return t.recomputeEffectiveLocked()
}

func (t *Task) recomputeEffectiveLocked() bool {
	max := t.basePriority
	for _, c := range t.ceilings {
		if c > max {
			max = c
		}
	}
	changed := max != t.effectivePriority
	t.effectivePriority = max
	return changed
}

func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) SetState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// CompareAndSetState transitions the task from `from` to `to`, reporting
// whether the transition took effect.
func (t *Task) CompareAndSetState(from, to State) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != from {
		return false
	}
	t.state = to
	return true
}

func (t *Task) NextDeadlineAbs() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextDeadlineAbs
}

func (t *Task) SetNextDeadlineAbs(v float64) {
	t.mu.Lock()
	t.nextDeadlineAbs = v
	t.mu.Unlock()
}

func (t *Task) LastReleaseAbs() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastReleaseAbs
}

func (t *Task) SetLastReleaseAbs(v float64) {
	t.mu.Lock()
	t.lastReleaseAbs = v
	t.mu.Unlock()
}

// Trigger signals an event-driven task's rendezvous. If the task is
// currently WAITING_EVENT it transitions to READY and Trigger reports true
// (the caller should insert it into the ready queue). If the task is
// RUNNING, the trigger is remembered as a single pending bit consumed by
// ConsumePendingTrigger after the run completes. Any other state coalesces
// the trigger into a no-op, matching the "one pending bit" resolution of
// Open Question #1.
func (t *Task) Trigger() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case StateWaitingEvent:
		t.state = StateReady
		return true
	case StateRunning:
		t.pendingTrigger = true
		return false
	default:
		return false
	}
}

// ConsumePendingTrigger reports and clears a trigger that arrived while the
// task was RUNNING.
func (t *Task) ConsumePendingTrigger() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pendingTrigger {
		t.pendingTrigger = false
		return true
	}
	return false
}

// MarkTerminate flips the cooperative stop flag observed by the dispatcher
// between loop iterations; it never interrupts a running work function.
func (t *Task) MarkTerminate() { t.terminate.Store(true) }

func (t *Task) ShouldTerminate() bool { return t.terminate.Load() }

// SetYield arms or clears the soft-preemption flag checked by ShouldYield.
func (t *Task) SetYield(v bool) { t.yield.Store(v) }

// ShouldYield is the cooperative API a work function may poll between
// steps to notice a soft-preemption nudge; checking consumes the flag.
func (t *Task) ShouldYield() bool { return t.yield.Swap(false) }

// Invoke calls the wrapped work function.
func (t *Task) Invoke() error { return t.work() }

// Sleep parks the calling worker thread for d, transitioning the task to
// SLEEPING and back to RUNNING. This is the work-function-callable
// primitive of spec §4.2, distinct from the dispatcher-scheduled wake used
// internally for periodic releases (per §9, sleep for periodic release
// waiting is never embedded in Task).
func (t *Task) Sleep(d time.Duration) {
	t.SetState(StateSleeping)
	time.Sleep(d)
	t.SetState(StateRunning)
}

// Send pushes msg onto the task's inbox.
func (t *Task) Send(msg any) error { return t.inbox.Send(msg) }

// Receive pops the next inbox message, blocking subject to ctx.
func (t *Task) Receive(ctx context.Context) (any, error) { return t.inbox.Receive(ctx) }

// CloseInbox closes the task's inbox, waking any pending Receive calls.
func (t *Task) CloseInbox() { t.inbox.Close() }

// RecordRun, RecordOverrun and RecordError delegate to the task's metrics
// tracker.
func (t *Task) RecordRun(d time.Duration) { t.stats.RecordRun(d) }
func (t *Task) RecordOverrun()            { t.stats.RecordOverrun() }
func (t *Task) RecordError()              { t.stats.RecordError() }

// Stats returns a snapshot of the task's run history.
func (t *Task) Stats() metrics.Stats { return t.stats.Snapshot() }

// LogValue renders the task as structured slog fields.
func (t *Task) LogValue() slog.Value {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slog.GroupValue(
		slog.String("name", t.name),
		slog.Int("base_priority", t.basePriority),
		slog.Int("effective_priority", t.effectivePriority),
		slog.String("state", t.state.String()),
		slog.Bool("event_driven", t.eventDriven),
	)
}
