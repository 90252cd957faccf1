package sched

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/knightchaser/rtsched/internal/errs"
	"github.com/knightchaser/rtsched/internal/task"
)

// workerLoop is one worker thread's dispatch loop, implementing the seven
// steps of spec §4.5.
func (s *Scheduler) workerLoop(id int) {
	defer s.workerWG.Done()
	logger := s.logger.With("worker", id)

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		t := s.rq.PopBest()
		if t == nil {
			select {
			case <-time.After(idleParkDuration):
			case <-s.stopCh:
				return
			}
			continue
		}

		if t.ShouldTerminate() {
			continue
		}

		s.runTask(t, logger)
	}
}

func (s *Scheduler) trackRunning(t *task.Task) {
	s.runningMu.Lock()
	s.running[t.Name()] = t
	s.runningMu.Unlock()
}

func (s *Scheduler) untrackRunning(t *task.Task) {
	s.runningMu.Lock()
	delete(s.running, t.Name())
	s.runningMu.Unlock()
}

// runTask runs one release of t: invoke, measure, record, then decide the
// next state (steps 2-6 of spec §4.5).
func (s *Scheduler) runTask(t *task.Task, logger *slog.Logger) {
	t.SetYield(false)
	t.SetState(task.StateRunning)
	s.trackRunning(t)
	s.emit(Event{Kind: EventDispatch, TaskName: t.Name()})

	start := s.clock.Now()
	workErr := s.invoke(t)
	runtimeSecs := s.clock.Now() - start
	runDuration := time.Duration(runtimeSecs * float64(time.Second))
	t.RecordRun(runDuration)

	if workErr != nil {
		t.RecordError()
		s.emit(Event{Kind: EventWorkerError, TaskName: t.Name(), Detail: workErr.Error()})
		logger.Error("work function failed", "task", t.Name(), "error", workErr)
	}

	s.untrackRunning(t)

	overran := false
	if deadline := t.DeadlineSeconds(); deadline > 0 && runtimeSecs > deadline {
		overran = true
		t.RecordOverrun()
		s.emit(Event{Kind: EventOverrun, TaskName: t.Name()})
		logger.Warn("deadline overrun", "task", t.Name(), "runtime", runDuration, "deadline_s", deadline)
	}

	if t.ShouldTerminate() {
		t.SetState(task.StateTerminated)
		return
	}

	switch {
	case t.IsEventDriven():
		if t.ConsumePendingTrigger() {
			t.SetState(task.StateReady)
			s.rq.Insert(t)
		} else {
			t.SetState(task.StateWaitingEvent)
		}
	case t.PeriodSeconds() > 0:
		s.scheduleNextRelease(t, overran)
	default:
		t.SetState(task.StateTerminated)
		s.emit(Event{Kind: EventComplete, TaskName: t.Name()})
	}
}

// invoke calls t's work function, recovering a panic into WORKER_ERROR per
// spec §7: internal errors never propagate out of the worker.
func (s *Scheduler) invoke(t *task.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errs.ErrWorkerPanicked, r)
		}
	}()
	return t.Invoke()
}

// scheduleNextRelease computes the next periodic release per spec §4.5
// step 6, applying the configured overrun policy, and arms a
// dispatcher-side scheduled wake rather than blocking the worker thread
// (per §9: "do not embed sleep in Task").
func (s *Scheduler) scheduleNextRelease(t *task.Task, overran bool) {
	if overran && s.cfg.OverrunPolicy == OverrunTerminate {
		t.SetState(task.StateTerminated)
		s.logger.Warn("task terminated after overrun", "task", t.Name())
		return
	}

	period := t.PeriodSeconds()
	now := s.clock.Now()
	priorRelease := t.LastReleaseAbs()

	nextRelease := now
	if priorRelease+period > now {
		nextRelease = priorRelease + period
	}
	if overran && s.cfg.OverrunPolicy == OverrunSkipNext {
		nextRelease += period
	}

	deadline := t.DeadlineSeconds()
	nextDeadlineAbs := nextRelease
	if deadline > 0 {
		nextDeadlineAbs = nextRelease + deadline
	}

	t.SetState(task.StateSleeping)
	sleepFor := time.Duration((nextRelease - now) * float64(time.Second))

	go func() {
		if sleepFor > 0 {
			timer := time.NewTimer(sleepFor)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-s.stopCh:
				return
			}
		}
		if t.ShouldTerminate() {
			return
		}
		t.SetLastReleaseAbs(nextRelease)
		t.SetNextDeadlineAbs(nextDeadlineAbs)
		t.SetState(task.StateReady)
		s.rq.Insert(t)
	}()
}

// preemptLoop arms the soft-preemption timer of spec §4.5: on each tick it
// compares every currently-running task against the ready queue's best
// candidate and, if the running task is strictly worse, sets its
// should_yield flag. True forced preemption is never guaranteed.
func (s *Scheduler) preemptLoop() {
	for {
		select {
		case <-s.preemptTicker.C:
			s.checkPreemption()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) checkPreemption() {
	best := s.rq.PeekBest()
	if best == nil {
		return
	}

	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	for _, running := range s.running {
		if s.rq.Worse(running, best) {
			running.SetYield(true)
		}
	}
}
