// Package sched implements the scheduling kernel of spec §4.5: the task
// registry, the policy-driven dispatcher, the soft-preemption timer, the
// deadlock watchdog, and the signal-to-task bridge. It is the generalized
// descendant of the teacher's (vrunq) Scheduler: a single struct owning a
// task registry and a tree-ordered ready structure, driven by worker
// goroutines instead of a single tick-consuming loop.
package sched

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/knightchaser/rtsched/internal/clock"
	"github.com/knightchaser/rtsched/internal/errs"
	"github.com/knightchaser/rtsched/internal/logging"
	"github.com/knightchaser/rtsched/internal/metrics"
	"github.com/knightchaser/rtsched/internal/mutex"
	"github.com/knightchaser/rtsched/internal/readyqueue"
	"github.com/knightchaser/rtsched/internal/signalbridge"
	"github.com/knightchaser/rtsched/internal/task"
)

// idleParkDuration bounds how long an idle worker sleeps before re-polling
// the ready queue, per spec §4.5 dispatcher step 1.
const idleParkDuration = 20 * time.Millisecond

// Scheduler owns the task registry, the ready queue, worker dispatch, the
// preemption timer, the deadlock watchdog and the signal bridge. It is the
// only component embedders construct directly.
type Scheduler struct {
	cfg    Config
	policy readyqueue.Policy

	mu      sync.Mutex
	tasks   map[string]*task.Task
	mutexes map[string]*mutex.Mutex

	rq     *readyqueue.Queue
	clock  *clock.Clock
	logger *slog.Logger

	runningMu sync.Mutex
	running   map[string]*task.Task

	events chan Event

	workerWG sync.WaitGroup
	stopCh   chan struct{}
	stopped  atomic.Bool
	fatalErr atomic.Pointer[error]

	preemptTicker  *time.Ticker
	watchdogTicker *time.Ticker

	bridge *signalbridge.Bridge
}

// Option configures optional Scheduler construction parameters.
type Option func(*Scheduler)

// WithLogger threads an embedder-supplied *slog.Logger through every
// scheduler subsystem instead of slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New constructs a Scheduler from cfg. cfg.SchedulingPolicy must be one of
// "EDF", "RMS", "PRIORITY" or empty (defaults to PRIORITY).
func New(cfg Config, opts ...Option) (*Scheduler, error) {
	cfg.clamp()
	policy, err := cfg.policy()
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		cfg:     cfg,
		policy:  policy,
		tasks:   make(map[string]*task.Task),
		mutexes: make(map[string]*mutex.Mutex),
		rq:      readyqueue.New(policy),
		clock:   clock.New(),
		running: make(map[string]*task.Task),
		events:  make(chan Event, 256),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.New("scheduler")
	} else {
		s.logger = logging.From(s.logger, "scheduler")
	}
	s.bridge = signalbridge.New(s, logging.From(s.logger, "signalbridge"))
	return s, nil
}

// Events exposes the read-only scheduler event stream for programmatic
// observers (vrunq's StatusChannel, generalized).
func (s *Scheduler) Events() <-chan Event { return s.events }

func (s *Scheduler) emit(ev Event) {
	ev.Time = time.Now()
	select {
	case s.events <- ev:
	default:
		// A full event channel must never block the dispatcher; drop and
		// rely on the structured log line already written alongside it.
	}
}

// Err returns the error that caused the scheduler to shut down fatally
// (e.g. a watchdog that itself failed repeatedly), or nil if running
// normally.
func (s *Scheduler) Err() error {
	if p := s.fatalErr.Load(); p != nil {
		return *p
	}
	return nil
}

func (s *Scheduler) checkRunning() error {
	if s.stopped.Load() {
		return errs.ErrSchedulerStopped
	}
	if err := s.Err(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrSchedulerStopped, err)
	}
	return nil
}

func (s *Scheduler) lookup(name string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, errs.ErrUnknownTask)
	}
	return t, nil
}

// AddTask registers t by name, per spec §4.5: event-driven tasks go to
// WAITING_EVENT, others get an initial next_deadline_abs (if deadline > 0)
// and are inserted READY into the ready queue.
func (s *Scheduler) AddTask(t *task.Task) error {
	if err := s.checkRunning(); err != nil {
		return err
	}

	s.mu.Lock()
	if _, dup := s.tasks[t.Name()]; dup {
		s.mu.Unlock()
		return fmt.Errorf("add task %q: %w", t.Name(), errs.ErrDuplicateTask)
	}
	s.tasks[t.Name()] = t
	s.mu.Unlock()

	if t.IsEventDriven() {
		t.SetState(task.StateWaitingEvent)
	} else {
		now := s.clock.Now()
		if d := t.DeadlineSeconds(); d > 0 {
			t.SetNextDeadlineAbs(now + d)
		}
		t.SetLastReleaseAbs(now)
		t.SetState(task.StateReady)
		s.rq.Insert(t)
	}

	s.emit(Event{Kind: EventTaskAdded, TaskName: t.Name()})
	s.logger.Info("task added", "task", t.Name(), "event_driven", t.IsEventDriven())
	return nil
}

// RemoveTask marks name TERMINATED and removes it from the ready queue. If
// it is currently RUNNING, the stop is cooperative: the worker observes the
// flag at the next dispatch boundary, never mid-work-function.
func (s *Scheduler) RemoveTask(name string) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("remove task %q: %w", name, errs.ErrUnknownTask)
	}
	delete(s.tasks, name)
	s.mu.Unlock()

	t.MarkTerminate()
	s.rq.Remove(name)
	t.SetState(task.StateTerminated)
	t.CloseInbox()

	s.emit(Event{Kind: EventTaskRemoved, TaskName: name})
	s.logger.Info("task removed", "task", name)
	return nil
}

// TriggerTask signals an event-driven task's rendezvous, per spec §4.5.
// It fails with ErrNotEventDriven for a task that is not event-driven. For
// an event-driven task that is not currently waiting, the trigger is
// coalesced into a single pending bit — see task.Task.Trigger.
func (s *Scheduler) TriggerTask(name string) error {
	t, err := s.lookup(name)
	if err != nil {
		return fmt.Errorf("trigger task %q: %w", name, err)
	}
	if !t.IsEventDriven() {
		return fmt.Errorf("trigger task %q: %w", name, errs.ErrNotEventDriven)
	}
	if t.Trigger() {
		s.rq.Insert(t)
	}
	return nil
}

// SendMessage delegates to the named task's inbox.
func (s *Scheduler) SendMessage(name string, msg any) error {
	t, err := s.lookup(name)
	if err != nil {
		return fmt.Errorf("send message to %q: %w", name, err)
	}
	return t.Send(msg)
}

// ReceiveMessage delegates to the named task's inbox, blocking subject to
// ctx.
func (s *Scheduler) ReceiveMessage(ctx context.Context, name string) (any, error) {
	t, err := s.lookup(name)
	if err != nil {
		return nil, fmt.Errorf("receive message from %q: %w", name, err)
	}
	return t.Receive(ctx)
}

// SetPriority updates name's base priority, re-derives its effective
// priority, and reorders the ready queue.
func (s *Scheduler) SetPriority(name string, p int) error {
	t, err := s.lookup(name)
	if err != nil {
		return fmt.Errorf("set priority of %q: %w", name, err)
	}
	t.SetPriority(p)
	s.rq.Reorder()
	s.logger.Info("priority updated", "task", name, "priority", p)
	return nil
}

// GetStats returns the named task's current metrics snapshot.
func (s *Scheduler) GetStats(name string) (metrics.Stats, error) {
	t, err := s.lookup(name)
	if err != nil {
		return metrics.Stats{}, fmt.Errorf("get stats for %q: %w", name, err)
	}
	return t.Stats(), nil
}

// NewMutex creates and registers a named priority-inheriting mutex, usable
// by any task registered with this scheduler. Registration is what lets
// the deadlock watchdog see the mutex's wait-for edges.
func (s *Scheduler) NewMutex(name string) *mutex.Mutex {
	m := mutex.New(name, s)
	s.mu.Lock()
	s.mutexes[name] = m
	s.mu.Unlock()
	return m
}

// BindSignal installs a host-OS signal handler that triggers the named
// task on delivery, per spec §4.5/§9. signum is the raw OS signal number
// (e.g. 10 for SIGUSR1 on Linux), since the payload the spec allows is
// "the signal number" itself.
func (s *Scheduler) BindSignal(signum int, taskName string) {
	s.bridge.Bind(syscall.Signal(signum), taskName)
}

// NotifyReorder implements mutex.Notifier: some task's ordering key may
// have changed (typically a priority-inheritance ceiling).
func (s *Scheduler) NotifyReorder() {
	s.rq.Reorder()
}

// Start spawns the worker pool, the soft-preemption timer and the deadlock
// watchdog.
func (s *Scheduler) Start() error {
	if err := s.checkRunning(); err != nil {
		return err
	}

	for i := 0; i < s.cfg.Parallelism; i++ {
		s.workerWG.Add(1)
		go s.workerLoop(i)
	}

	s.preemptTicker = time.NewTicker(s.cfg.preemptQuantum())
	go s.preemptLoop()

	s.watchdogTicker = time.NewTicker(s.cfg.watchdogPeriod())
	go s.watchdogLoop()

	s.logger.Info("scheduler started", "workers", s.cfg.Parallelism, "policy", s.policy.String())
	return nil
}

// StopAll marks every task TERMINATED, closes every task's inbox (waking
// pending receivers), stops the timers and the signal bridge, and joins the
// worker pool. Tasks blocked in Mutex.Acquire are not woken. Idempotent.
func (s *Scheduler) StopAll() error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stopCh)

	if s.preemptTicker != nil {
		s.preemptTicker.Stop()
	}
	if s.watchdogTicker != nil {
		s.watchdogTicker.Stop()
	}
	s.bridge.Stop()

	s.mu.Lock()
	for _, t := range s.tasks {
		t.MarkTerminate()
		t.SetState(task.StateTerminated)
		t.CloseInbox()
	}
	s.mu.Unlock()

	s.workerWG.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

