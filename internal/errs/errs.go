// Package errs defines the sentinel error kinds surfaced across the
// scheduler's programmatic API, following spec §7's error taxonomy.
// Callers should match them with errors.Is against the wrapped error
// returned at the API boundary.
package errs

import "errors"

var (
	// ErrUnknownTask is returned when an operation names an unregistered task.
	ErrUnknownTask = errors.New("rtsched: unknown task")
	// ErrDuplicateTask is returned by AddTask when the name already exists.
	ErrDuplicateTask = errors.New("rtsched: duplicate task")
	// ErrNotEventDriven is returned by TriggerTask on a periodic/one-shot task.
	ErrNotEventDriven = errors.New("rtsched: task is not event-driven")
	// ErrNotOwner is returned by Mutex.Release when called by a non-owner.
	ErrNotOwner = errors.New("rtsched: release by non-owner")
	// ErrRecursiveAcquire is returned when a task tries to acquire a mutex it
	// already owns; the mutex is not recursive.
	ErrRecursiveAcquire = errors.New("rtsched: recursive mutex acquisition")
	// ErrDeadlock is returned to an acquirer whose wait was aborted by the
	// deadlock watchdog.
	ErrDeadlock = errors.New("rtsched: deadlock detected")
	// ErrTimeout is returned by ReceiveMessage when the wait expires.
	ErrTimeout = errors.New("rtsched: receive timed out")
	// ErrInboxClosed is returned by Send/Receive after the inbox is closed.
	ErrInboxClosed = errors.New("rtsched: inbox closed")
	// ErrInboxFull is returned by Send on a bounded inbox at capacity.
	ErrInboxFull = errors.New("rtsched: inbox full")
	// ErrSchedulerStopped is returned by Scheduler.AddTask and
	// Scheduler.Start when called after StopAll, or after the watchdog
	// itself has failed fatally.
	ErrSchedulerStopped = errors.New("rtsched: scheduler stopped")

	// ErrWorkerPanicked tags a recovered panic from a work function. It
	// never propagates out of a worker; it is only used to classify the
	// WORKER_ERROR counted in metrics and logged by the dispatcher.
	ErrWorkerPanicked = errors.New("rtsched: work function panicked")
)
