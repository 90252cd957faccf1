package task

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewTaskDefaults(t *testing.T) {
	tk := New("t1", func() error { return nil })
	if got := tk.State(); got != StateCreated {
		t.Fatalf("state = %v, want CREATED", got)
	}
	if got := tk.BasePriority(); got != 0 {
		t.Fatalf("base priority = %d, want 0", got)
	}
	if got := tk.EffectivePriority(); got != tk.BasePriority() {
		t.Fatalf("effective priority = %d, want %d", got, tk.BasePriority())
	}
}

func TestSetPriorityWithNoInheritance(t *testing.T) {
	tk := New("t1", func() error { return nil }, WithBasePriority(3))
	tk.SetPriority(7)
	if got := tk.BasePriority(); got != 7 {
		t.Fatalf("base priority = %d, want 7", got)
	}
	if got := tk.EffectivePriority(); got != 7 {
		t.Fatalf("effective priority = %d, want 7", got)
	}
}

func TestApplyAndReleaseCeiling(t *testing.T) {
	tk := New("t1", func() error { return nil }, WithBasePriority(1))

	if changed := tk.ApplyCeiling("m1", 5); !changed {
		t.Fatal("expected effective priority to change")
	}
	if got := tk.EffectivePriority(); got != 5 {
		t.Fatalf("effective priority = %d, want 5", got)
	}

	// A lower ceiling from a second mutex must not lower the effective
	// priority below the existing higher ceiling.
	tk.ApplyCeiling("m2", 2)
	if got := tk.EffectivePriority(); got != 5 {
		t.Fatalf("effective priority = %d, want 5 (still bounded by m1)", got)
	}

	tk.ReleaseCeiling("m1")
	if got := tk.EffectivePriority(); got != 2 {
		t.Fatalf("effective priority = %d, want 2 (m2's ceiling remains)", got)
	}

	tk.ReleaseCeiling("m2")
	if got := tk.EffectivePriority(); got != tk.BasePriority() {
		t.Fatalf("effective priority = %d, want base %d", got, tk.BasePriority())
	}
}

func TestSetPriorityUnderActiveInheritance(t *testing.T) {
	// Open Question #2's resolution: base updates, effective re-derives as
	// max(base, inherited ceiling).
	tk := New("t1", func() error { return nil }, WithBasePriority(1))
	tk.ApplyCeiling("m1", 10)

	tk.SetPriority(2)
	if got := tk.EffectivePriority(); got != 10 {
		t.Fatalf("effective priority = %d, want 10 (ceiling still dominates)", got)
	}

	tk.SetPriority(20)
	if got := tk.EffectivePriority(); got != 20 {
		t.Fatalf("effective priority = %d, want 20 (base now dominates)", got)
	}
}

func TestTriggerCoalescing(t *testing.T) {
	tk := New("e1", func() error { return nil }, WithEventDriven(true))
	tk.SetState(StateWaitingEvent)

	if !tk.Trigger() {
		t.Fatal("first trigger from WAITING_EVENT should report true")
	}
	if got := tk.State(); got != StateReady {
		t.Fatalf("state = %v, want READY", got)
	}

	// A second trigger while already READY (not yet dispatched) coalesces
	// into a no-op.
	if tk.Trigger() {
		t.Fatal("trigger while READY should coalesce (return false)")
	}

	// A trigger arriving while RUNNING is remembered as a single pending
	// bit, consumed once after the run.
	tk.SetState(StateRunning)
	if tk.Trigger() {
		t.Fatal("trigger while RUNNING should not itself insert into ready queue")
	}
	if !tk.ConsumePendingTrigger() {
		t.Fatal("expected a pending trigger to have been recorded")
	}
	if tk.ConsumePendingTrigger() {
		t.Fatal("pending trigger should be consumed exactly once")
	}
}

func TestSleepTransitionsState(t *testing.T) {
	tk := New("t1", func() error { return nil })
	tk.SetState(StateRunning)

	done := make(chan struct{})
	go func() {
		tk.Sleep(5 * time.Millisecond)
		close(done)
	}()

	time.Sleep(1 * time.Millisecond)
	if got := tk.State(); got != StateSleeping {
		t.Fatalf("state during sleep = %v, want SLEEPING", got)
	}

	<-done
	if got := tk.State(); got != StateRunning {
		t.Fatalf("state after sleep = %v, want RUNNING", got)
	}
}

func TestSendReceiveRoundTrip(t *testing.T) {
	tk := New("t1", func() error { return nil })
	if err := tk.Send("hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	msg, err := tk.Receive(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if msg != "hello" {
		t.Fatalf("msg = %v, want hello", msg)
	}
}

func TestReceiveTimesOut(t *testing.T) {
	tk := New("t1", func() error { return nil })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if _, err := tk.Receive(ctx); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestRecordAndSnapshotStats(t *testing.T) {
	tk := New("t1", func() error { return nil })
	tk.RecordRun(10 * time.Millisecond)
	tk.RecordRun(20 * time.Millisecond)
	tk.RecordOverrun()
	tk.RecordError()

	stats := tk.Stats()
	if stats.Runs != 2 {
		t.Fatalf("runs = %d, want 2", stats.Runs)
	}
	if stats.TotalRuntime != 30*time.Millisecond {
		t.Fatalf("total runtime = %v, want 30ms", stats.TotalRuntime)
	}
	if stats.LastRuntime != 20*time.Millisecond {
		t.Fatalf("last runtime = %v, want 20ms", stats.LastRuntime)
	}
	if stats.Overruns != 1 || stats.Errors != 1 {
		t.Fatalf("overruns=%d errors=%d, want 1,1", stats.Overruns, stats.Errors)
	}
}

func TestInvokePropagatesWorkError(t *testing.T) {
	wantErr := errors.New("boom")
	tk := New("t1", func() error { return wantErr })
	if err := tk.Invoke(); !errors.Is(err, wantErr) {
		t.Fatalf("invoke err = %v, want %v", err, wantErr)
	}
}
