// Package job provides reusable work-function constructors for embedders
// and tests, generalizing the teacher's (vrunq) internal/job/waiting.go
// single SleepWork helper into a small library of common task shapes.
package job

import (
	"math/rand"
	"time"
)

// Sleep returns a work function that blocks for d and then succeeds. It is
// the direct descendant of vrunq's SleepWork, adapted from a
// context-cancellable ctx-taking runnable into the scheduler's nullary
// Work signature (cooperative cancellation is the task's own concern, not
// this closure's, per the dispatcher's "runs to completion" contract).
func Sleep(d time.Duration) func() error {
	return func() error {
		time.Sleep(d)
		return nil
	}
}

// SleepJitter returns a work function that sleeps for base plus a uniform
// random offset in [-jitter, jitter], useful for simulating the
// mean/stddev-ish workloads the pack's other schedulers model (e.g. an EDF
// task spec's mean/stddev runtime fields).
func SleepJitter(base, jitter time.Duration) func() error {
	return func() error {
		d := base
		if jitter > 0 {
			offset := time.Duration(rand.Int63n(int64(2*jitter))) - jitter
			d += offset
		}
		if d > 0 {
			time.Sleep(d)
		}
		return nil
	}
}

// Noop returns a work function that does nothing and always succeeds,
// useful as a minimal placeholder in tests and demos.
func Noop() func() error {
	return func() error { return nil }
}

// Failing returns a work function that always fails with err, exercising
// the WORKER_ERROR path.
func Failing(err error) func() error {
	return func() error { return err }
}

// Counter returns a work function that increments *n by one on every
// invocation, useful for asserting release counts in tests.
func Counter(n *int64) func() error {
	return func() error {
		*n++
		return nil
	}
}
