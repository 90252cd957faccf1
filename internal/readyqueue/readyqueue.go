// Package readyqueue implements the policy-aware priority structure over
// runnable tasks described by spec §4.4, backed by a gods red-black tree
// (the teacher's ready-structure choice) keyed by a policy-specific
// ordering derived from each task's current state.
package readyqueue

import (
	"fmt"
	"math"
	"sync"

	"github.com/emirpasic/gods/trees/redblacktree"

	"github.com/knightchaser/rtsched/internal/task"
)

// Policy selects the ready queue's primary ordering rule.
type Policy int

const (
	// PolicyPriority orders by effective priority descending (the default
	// when no policy is requested).
	PolicyPriority Policy = iota
	// PolicyEDF orders by absolute next deadline ascending.
	PolicyEDF
	// PolicyRMS orders by period ascending (0 treated as +Inf).
	PolicyRMS
)

func (p Policy) String() string {
	switch p {
	case PolicyEDF:
		return "EDF"
	case PolicyRMS:
		return "RMS"
	case PolicyPriority:
		return "PRIORITY"
	default:
		return "UNKNOWN"
	}
}

// ParsePolicy maps a config string to a Policy, defaulting to PRIORITY for
// an empty string.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "PRIORITY":
		return PolicyPriority, nil
	case "EDF":
		return PolicyEDF, nil
	case "RMS":
		return PolicyRMS, nil
	default:
		return PolicyPriority, fmt.Errorf("readyqueue: unknown scheduling policy %q", s)
	}
}

type nodeKey struct {
	deadline float64
	period   float64
	priority int
	seq      uint64
}

func comparator(policy Policy) func(a, b any) int {
	return func(a, b any) int {
		ka, kb := a.(nodeKey), b.(nodeKey)
		switch policy {
		case PolicyEDF:
			if ka.deadline != kb.deadline {
				if ka.deadline < kb.deadline {
					return -1
				}
				return 1
			}
			if ka.priority != kb.priority {
				if ka.priority > kb.priority {
					return -1
				}
				return 1
			}
		case PolicyRMS:
			if ka.period != kb.period {
				if ka.period < kb.period {
					return -1
				}
				return 1
			}
			if ka.priority != kb.priority {
				if ka.priority > kb.priority {
					return -1
				}
				return 1
			}
		default: // PolicyPriority
			if ka.priority != kb.priority {
				if ka.priority > kb.priority {
					return -1
				}
				return 1
			}
		}
		if ka.seq != kb.seq {
			if ka.seq < kb.seq {
				return -1
			}
			return 1
		}
		return 0
	}
}

func deriveKey(t *task.Task, seq uint64) nodeKey {
	deadline := t.NextDeadlineAbs()
	if deadline <= 0 {
		deadline = math.Inf(1)
	}
	period := t.PeriodSeconds()
	if period <= 0 {
		period = math.Inf(1)
	}
	return nodeKey{
		deadline: deadline,
		period:   period,
		priority: t.EffectivePriority(),
		seq:      seq,
	}
}

type entry struct {
	t   *task.Task
	seq uint64
}

// Queue is a policy-aware mapping from Task to its current ordering key.
// Because keys mutate (effective priority under inheritance, next deadline
// on release) the structure is rebuilt from current task state before each
// PopBest/PeekBest, so a Reorder hint is always eventually honored — an
// explicit Reorder call just makes that happen eagerly. This trades a
// small amount of pop-time work for never needing to track which specific
// tasks moved, which is the right trade for the bounded task counts this
// scheduler targets.
type Queue struct {
	mu      sync.Mutex
	policy  Policy
	cmp     func(a, b any) int
	tree    *redblacktree.Tree
	byName  map[string]*entry
	nextSeq uint64
}

// New creates an empty Queue ordered by policy.
func New(policy Policy) *Queue {
	cmp := comparator(policy)
	return &Queue{
		policy: policy,
		cmp:    cmp,
		tree:   redblacktree.NewWith(cmp),
		byName: make(map[string]*entry),
	}
}

func (q *Queue) Policy() Policy { return q.policy }

// Insert adds t to the queue (or refreshes its key if already present),
// preserving its original insertion sequence for tie-breaking.
func (q *Queue) Insert(t *task.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, exists := q.byName[t.Name()]
	if !exists {
		e = &entry{t: t, seq: q.nextSeq}
		q.nextSeq++
		q.byName[t.Name()] = e
	} else {
		q.tree.Remove(deriveKey(e.t, e.seq))
	}
	q.tree.Put(deriveKey(t, e.seq), e)
}

// Remove drops t by name, reporting whether it was present.
func (q *Queue) Remove(name string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.byName[name]
	if !ok {
		return false
	}
	q.tree.Remove(deriveKey(e.t, e.seq))
	delete(q.byName, name)
	return true
}

// Reorder rebuilds the tree from each tracked task's current key. PopBest
// and PeekBest always do this first, so calling Reorder explicitly is only
// useful to make a reordering observable before the next pop (e.g. for a
// Peek-based preemption check).
func (q *Queue) Reorder() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rebuildLocked()
}

func (q *Queue) rebuildLocked() {
	q.tree.Clear()
	for _, e := range q.byName {
		q.tree.Put(deriveKey(e.t, e.seq), e)
	}
}

// PopBest removes and returns the highest-priority runnable task per the
// queue's policy, or nil if empty.
func (q *Queue) PopBest() *task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rebuildLocked()

	node := q.tree.Left()
	if node == nil {
		return nil
	}
	e := node.Value.(*entry)
	q.tree.Remove(node.Key)
	delete(q.byName, e.t.Name())
	return e.t
}

// PeekBest returns the highest-priority runnable task without removing it,
// or nil if empty.
func (q *Queue) PeekBest() *task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rebuildLocked()

	node := q.tree.Left()
	if node == nil {
		return nil
	}
	return node.Value.(*entry).t
}

// Len reports the number of tracked tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byName)
}

// Worse reports whether a's ordering key is strictly worse than b's under
// the queue's policy — used by the soft-preemption timer to compare a
// running task against the ready queue's current best without involving
// the tree (neither task need be enqueued).
func (q *Queue) Worse(a, b *task.Task) bool {
	ka := deriveKey(a, 0)
	kb := deriveKey(b, 0)
	return q.cmp(ka, kb) > 0
}
