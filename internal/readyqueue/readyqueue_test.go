package readyqueue

import (
	"testing"
	"time"

	"github.com/knightchaser/rtsched/internal/task"
)

func TestParsePolicy(t *testing.T) {
	cases := map[string]Policy{
		"":         PolicyPriority,
		"PRIORITY": PolicyPriority,
		"EDF":      PolicyEDF,
		"RMS":      PolicyRMS,
	}
	for s, want := range cases {
		got, err := ParsePolicy(s)
		if err != nil {
			t.Fatalf("ParsePolicy(%q): %v", s, err)
		}
		if got != want {
			t.Fatalf("ParsePolicy(%q) = %v, want %v", s, got, want)
		}
	}
	if _, err := ParsePolicy("BOGUS"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestPriorityOrderingPopsHighestFirst(t *testing.T) {
	q := New(PolicyPriority)
	low := task.New("low", func() error { return nil }, task.WithBasePriority(1))
	mid := task.New("mid", func() error { return nil }, task.WithBasePriority(5))
	high := task.New("high", func() error { return nil }, task.WithBasePriority(9))

	q.Insert(low)
	q.Insert(high)
	q.Insert(mid)

	if got := q.PopBest(); got.Name() != "high" {
		t.Fatalf("pop 1 = %s, want high", got.Name())
	}
	if got := q.PopBest(); got.Name() != "mid" {
		t.Fatalf("pop 2 = %s, want mid", got.Name())
	}
	if got := q.PopBest(); got.Name() != "low" {
		t.Fatalf("pop 3 = %s, want low", got.Name())
	}
	if got := q.PopBest(); got != nil {
		t.Fatalf("pop on empty queue = %v, want nil", got)
	}
}

func TestEDFOrderingByEarliestDeadline(t *testing.T) {
	q := New(PolicyEDF)
	a := task.New("a", func() error { return nil })
	b := task.New("b", func() error { return nil })
	c := task.New("c", func() error { return nil }) // no deadline set: treated as +Inf

	a.SetNextDeadlineAbs(30)
	b.SetNextDeadlineAbs(10)

	q.Insert(a)
	q.Insert(b)
	q.Insert(c)

	if got := q.PopBest(); got.Name() != "b" {
		t.Fatalf("pop 1 = %s, want b (earliest deadline)", got.Name())
	}
	if got := q.PopBest(); got.Name() != "a" {
		t.Fatalf("pop 2 = %s, want a", got.Name())
	}
	if got := q.PopBest(); got.Name() != "c" {
		t.Fatalf("pop 3 = %s, want c (no deadline sorts last)", got.Name())
	}
}

func TestEDFReflectsDeadlineChangeWithoutReinsert(t *testing.T) {
	// The queue derives keys from live task state on every pop, so a
	// deadline mutated after Insert is honored without a Remove/Insert
	// cycle.
	q := New(PolicyEDF)
	a := task.New("a", func() error { return nil })
	b := task.New("b", func() error { return nil })
	a.SetNextDeadlineAbs(100)
	b.SetNextDeadlineAbs(200)

	q.Insert(a)
	q.Insert(b)

	a.SetNextDeadlineAbs(300) // a now has the later deadline

	if got := q.PopBest(); got.Name() != "b" {
		t.Fatalf("pop 1 = %s, want b (now earlier deadline)", got.Name())
	}
	if got := q.PopBest(); got.Name() != "a" {
		t.Fatalf("pop 2 = %s, want a", got.Name())
	}
}

func TestRMSOrderingByShortestPeriod(t *testing.T) {
	q := New(PolicyRMS)
	slow := task.New("slow", func() error { return nil }, task.WithPeriod(time.Second))
	fast := task.New("fast", func() error { return nil }, task.WithPeriod(100*time.Millisecond))
	aperiodic := task.New("aperiodic", func() error { return nil }) // period 0: +Inf

	q.Insert(slow)
	q.Insert(fast)
	q.Insert(aperiodic)

	if got := q.PopBest(); got.Name() != "fast" {
		t.Fatalf("pop 1 = %s, want fast (shortest period)", got.Name())
	}
	if got := q.PopBest(); got.Name() != "slow" {
		t.Fatalf("pop 2 = %s, want slow", got.Name())
	}
	if got := q.PopBest(); got.Name() != "aperiodic" {
		t.Fatalf("pop 3 = %s, want aperiodic (no period sorts last)", got.Name())
	}
}

func TestRemoveDropsTrackedTask(t *testing.T) {
	q := New(PolicyPriority)
	a := task.New("a", func() error { return nil })
	q.Insert(a)

	if !q.Remove("a") {
		t.Fatal("expected Remove to find a")
	}
	if q.Remove("a") {
		t.Fatal("second Remove should report false")
	}
	if got := q.Len(); got != 0 {
		t.Fatalf("len = %d, want 0", got)
	}
}

func TestWorseComparesWithoutEnqueueing(t *testing.T) {
	q := New(PolicyPriority)
	low := task.New("low", func() error { return nil }, task.WithBasePriority(1))
	high := task.New("high", func() error { return nil }, task.WithBasePriority(9))

	if !q.Worse(low, high) {
		t.Fatal("expected low to be worse than high under PRIORITY policy")
	}
	if q.Worse(high, low) {
		t.Fatal("high should not be worse than low")
	}
}
