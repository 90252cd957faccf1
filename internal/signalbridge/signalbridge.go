// Package signalbridge maps host-OS signals to trigger_task calls, per
// spec §4.5/§9. It is deliberately thin: the registration surface is
// specified, the embedding application's signal semantics are not.
//
// The handler path never touches a scheduler lock directly — os/signal
// already does the async-signal-safe handoff onto a regular channel for
// us, and a dedicated goroutine (not a signal handler) performs the
// trigger_task call, matching the "wakeup pipe consumed by a dedicated
// thread" implementation sketch in spec §9.
package signalbridge

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"
)

// Trigger is the subset of the scheduler's API the bridge needs.
type Trigger interface {
	TriggerTask(name string) error
}

// Bridge owns the signal channel and the binding table.
type Bridge struct {
	mu       sync.Mutex
	sched    Trigger
	logger   *slog.Logger
	sigCh    chan os.Signal
	bindings map[os.Signal]string
	stopCh   chan struct{}
	started  bool
	stopOnce sync.Once
}

// New creates a Bridge that will call sched.TriggerTask on bound signal
// delivery.
func New(sched Trigger, logger *slog.Logger) *Bridge {
	return &Bridge{
		sched:    sched,
		logger:   logger,
		sigCh:    make(chan os.Signal, 16),
		bindings: make(map[os.Signal]string),
		stopCh:   make(chan struct{}),
	}
}

// Bind installs a handler for sig that triggers the named task on
// delivery. No effect if the bridge has already been stopped.
func (b *Bridge) Bind(sig os.Signal, taskName string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.stopCh:
		return
	default:
	}

	b.bindings[sig] = taskName
	signal.Notify(b.sigCh, sig)
	if !b.started {
		b.started = true
		go b.run()
	}
}

func (b *Bridge) run() {
	for {
		select {
		case sig := <-b.sigCh:
			b.mu.Lock()
			name, ok := b.bindings[sig]
			b.mu.Unlock()
			if !ok {
				continue
			}
			if err := b.sched.TriggerTask(name); err != nil {
				b.logger.Warn("signal trigger failed", "signal", sig, "task", name, "error", err)
			}
		case <-b.stopCh:
			return
		}
	}
}

// Stop releases the OS signal registrations and stops the dispatch
// goroutine.
func (b *Bridge) Stop() {
	signal.Stop(b.sigCh)
	b.stopOnce.Do(func() { close(b.stopCh) })
}
