package sched

import (
	"testing"
	"time"

	"github.com/knightchaser/rtsched/internal/task"
)

func TestScheduleNextReleaseTerminatesOnOverrunTerminate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OverrunPolicy = OverrunTerminate
	s := newTestScheduler(t, cfg)

	tk := task.New("t1", func() error { return nil }, task.WithPeriod(20*time.Millisecond))
	tk.SetLastReleaseAbs(s.clock.Now())

	s.scheduleNextRelease(tk, true)

	if got := tk.State(); got != task.StateTerminated {
		t.Fatalf("state = %v, want TERMINATED", got)
	}
}

func TestScheduleNextReleaseSkipsAPeriodOnOverrunSkipNext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OverrunPolicy = OverrunSkipNext
	s := newTestScheduler(t, cfg)

	period := 20 * time.Millisecond
	tk := task.New("t1", func() error { return nil }, task.WithPeriod(period))
	priorRelease := s.clock.Now()
	tk.SetLastReleaseAbs(priorRelease)

	s.scheduleNextRelease(tk, true)

	if got := tk.State(); got != task.StateSleeping {
		t.Fatalf("state right after scheduling = %v, want SLEEPING", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if tk.State() == task.StateReady {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := tk.State(); got != task.StateReady {
		t.Fatalf("state after wait = %v, want READY", got)
	}

	// A skipped release should land at roughly priorRelease + 2*period, not
	// priorRelease + period.
	got := tk.LastReleaseAbs()
	want := priorRelease + 2*period.Seconds()
	if diff := got - want; diff < -0.02 || diff > 0.02 {
		t.Fatalf("last release = %v, want ~%v (2 periods after prior release)", got, want)
	}
}

func TestScheduleNextReleaseAdvancesNormallyWithoutOverrun(t *testing.T) {
	cfg := DefaultConfig()
	s := newTestScheduler(t, cfg)

	period := 20 * time.Millisecond
	tk := task.New("t1", func() error { return nil }, task.WithPeriod(period), task.WithDeadline(period))
	priorRelease := s.clock.Now()
	tk.SetLastReleaseAbs(priorRelease)

	s.scheduleNextRelease(tk, false)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if tk.State() == task.StateReady {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := tk.State(); got != task.StateReady {
		t.Fatalf("state after wait = %v, want READY", got)
	}

	got := tk.LastReleaseAbs()
	want := priorRelease + period.Seconds()
	if diff := got - want; diff < -0.02 || diff > 0.02 {
		t.Fatalf("last release = %v, want ~%v (one period after prior release)", got, want)
	}
}

func TestInvokeRecoversPanicIntoError(t *testing.T) {
	cfg := DefaultConfig()
	s := newTestScheduler(t, cfg)

	tk := task.New("t1", func() error { panic("boom") })
	if err := s.invoke(tk); err == nil {
		t.Fatal("expected recovered panic to surface as an error")
	}
}
