// Package mutex implements the priority-inheriting mutex of spec §4.3: a
// recursion-free lock whose owner's effective priority is temporarily
// raised to the highest waiter's, bounding priority inversion to the
// length of the holder's critical section.
//
// The waiter set is kept in a gods red-black tree ordered by (priority
// desc, enqueue-order asc), following the teacher's nodeKey/comparator
// pattern (internal/readyqueue generalizes the same idea for the ready
// queue).
package mutex

import (
	"sync"

	"github.com/emirpasic/gods/trees/redblacktree"

	"github.com/knightchaser/rtsched/internal/errs"
	"github.com/knightchaser/rtsched/internal/task"
)

// Notifier lets a Mutex tell its owning scheduler that the ready queue's
// ordering needs to be rebuilt, without the mutex package importing the
// scheduler (which would create the import cycle spec §9 warns against for
// Task<->Scheduler references).
type Notifier interface {
	// NotifyReorder hints that some task's ordering key may have changed.
	NotifyReorder()
}

type waiterKey struct {
	priority int
	seq      uint64
}

func waiterCmp(a, b any) int {
	ka, kb := a.(waiterKey), b.(waiterKey)
	switch {
	case ka.priority > kb.priority:
		return -1
	case ka.priority < kb.priority:
		return 1
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	default:
		return 0
	}
}

type waiterEntry struct {
	t      *task.Task
	key    waiterKey
	result chan error
}

// Mutex is a priority-inheriting, non-recursive lock with an explicit owner
// identity.
type Mutex struct {
	mu       sync.Mutex
	name     string
	notifier Notifier

	owner              *task.Task
	ownerSavedPriority int

	waiters      *redblacktree.Tree
	waiterByName map[string]*waiterEntry
	nextSeq      uint64
}

// New creates a named Mutex reporting reorder hints to notifier (normally
// the owning *sched.Scheduler).
func New(name string, notifier Notifier) *Mutex {
	return &Mutex{
		name:         name,
		notifier:     notifier,
		waiters:      redblacktree.NewWith(waiterCmp),
		waiterByName: make(map[string]*waiterEntry),
	}
}

func (m *Mutex) Name() string { return m.name }

// OwnerName returns the current owner's name, or "" if unowned.
func (m *Mutex) OwnerName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner == nil {
		return ""
	}
	return m.owner.Name()
}

// WaiterNames returns the names of tasks currently blocked in Acquire.
func (m *Mutex) WaiterNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.waiterByName))
	for name := range m.waiterByName {
		names = append(names, name)
	}
	return names
}

// Acquire blocks until requester becomes the owner, or the deadlock
// watchdog aborts the wait (ErrDeadlock). The core contract accepts no
// caller-supplied timeout — the watchdog is the only forced exit, per
// spec §5.
func (m *Mutex) Acquire(requester *task.Task) error {
	m.mu.Lock()

	if m.owner == nil {
		m.owner = requester
		m.ownerSavedPriority = requester.EffectivePriority()
		m.mu.Unlock()
		return nil
	}

	if m.owner == requester {
		m.mu.Unlock()
		return errs.ErrRecursiveAcquire
	}

	seq := m.nextSeq
	m.nextSeq++
	// key is captured once at enqueue time; a later Task.SetPriority on
	// requester does not reposition it here or re-raise the owner's
	// ceiling (see DESIGN.md's "Known limitation" note).
	key := waiterKey{priority: requester.EffectivePriority(), seq: seq}
	entry := &waiterEntry{t: requester, key: key, result: make(chan error, 1)}
	m.waiters.Put(key, entry)
	m.waiterByName[requester.Name()] = entry

	requester.SetState(task.StateWaitingMutex)

	if requester.EffectivePriority() > m.owner.EffectivePriority() {
		if m.owner.ApplyCeiling(m.name, requester.EffectivePriority()) {
			m.notifier.NotifyReorder()
		}
	}
	m.mu.Unlock()

	return <-entry.result
}

// Release hands ownership to the highest-priority waiter (FIFO tiebreak),
// or clears ownership if none are waiting. Must be called by the current
// owner.
//
// A waiter granted ownership here is resumed in place inside its still-live
// call to Acquire — it was never parked out of its worker (Acquire blocks
// the calling goroutine, it does not return to the dispatcher), so it must
// not be inserted into the ready queue. Doing so would let a second worker
// pop and run the same task concurrently with the goroutine still resuming
// from Acquire.
func (m *Mutex) Release(caller *task.Task) error {
	m.mu.Lock()

	if m.owner != caller {
		m.mu.Unlock()
		return errs.ErrNotOwner
	}

	caller.ReleaseCeiling(m.name)

	node := m.waiters.Left()
	if node == nil {
		m.owner = nil
		m.ownerSavedPriority = 0
		m.mu.Unlock()
		m.notifier.NotifyReorder()
		return nil
	}

	entry := node.Value.(*waiterEntry)
	m.waiters.Remove(node.Key)
	delete(m.waiterByName, entry.t.Name())

	m.owner = entry.t
	m.ownerSavedPriority = entry.t.EffectivePriority()
	m.mu.Unlock()

	entry.t.SetState(task.StateRunning)
	entry.result <- nil
	m.notifier.NotifyReorder()
	return nil
}

// AbortWaiter forcibly fails name's pending Acquire with ErrDeadlock, used
// exclusively by the deadlock watchdog's cycle resolution (spec §4.5,
// "abort the lowest-base-priority task in the cycle"). Reports whether a
// matching waiter was found and aborted.
func (m *Mutex) AbortWaiter(name string) bool {
	m.mu.Lock()
	entry, ok := m.waiterByName[name]
	if !ok {
		m.mu.Unlock()
		return false
	}
	m.waiters.Remove(entry.key)
	delete(m.waiterByName, name)
	m.mu.Unlock()

	entry.result <- errs.ErrDeadlock
	return true
}

// MaxWaiterPriority returns the highest priority among current waiters, as
// recorded when each waiter enqueued in Acquire, and whether any exist. It
// allows checking the invariant "owner.effective_priority =
// max(owner.base_priority, max waiter priority)".
func (m *Mutex) MaxWaiterPriority() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	node := m.waiters.Left()
	if node == nil {
		return 0, false
	}
	return node.Key.(waiterKey).priority, true
}
