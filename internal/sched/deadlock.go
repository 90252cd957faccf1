package sched

import (
	"github.com/google/uuid"

	"github.com/knightchaser/rtsched/internal/mutex"
)

// watchdogLoop runs the deadlock detection pass every watchdog_period, per
// spec §4.5.
func (s *Scheduler) watchdogLoop() {
	for {
		select {
		case <-s.watchdogTicker.C:
			s.checkDeadlocks()
		case <-s.stopCh:
			return
		}
	}
}

// checkDeadlocks builds the directed "task waits on mutex owned by task"
// graph across every registered mutex and looks for cycles. Each detected
// cycle is resolved by aborting the acquire of its lowest-base-priority
// task, per spec §4.5/§9's Open Question #3 resolution (abort, never a
// forced release).
func (s *Scheduler) checkDeadlocks() {
	s.mu.Lock()
	mutexes := make([]*mutex.Mutex, 0, len(s.mutexes))
	for _, m := range s.mutexes {
		mutexes = append(mutexes, m)
	}
	s.mu.Unlock()

	waitFor := make(map[string]string) // task name -> mutex name it's blocked on
	ownerOf := make(map[string]string) // mutex name -> owner task name
	for _, m := range mutexes {
		if owner := m.OwnerName(); owner != "" {
			ownerOf[m.Name()] = owner
		}
		for _, waiter := range m.WaiterNames() {
			waitFor[waiter] = m.Name()
		}
	}

	visited := make(map[string]bool)
	for start := range waitFor {
		if visited[start] {
			continue
		}
		if cycle := s.findCycle(start, waitFor, ownerOf, visited); cycle != nil {
			s.resolveDeadlock(cycle, mutexes)
		}
	}
}

// findCycle walks owner-pointer chases starting from start, marking every
// node it visits, and returns the cyclic suffix of the walk if one closes
// back on itself.
func (s *Scheduler) findCycle(start string, waitFor, ownerOf map[string]string, visited map[string]bool) []string {
	order := make(map[string]int)
	path := make([]string, 0, len(waitFor))

	cur := start
	for {
		if idx, seen := order[cur]; seen {
			return append([]string{}, path[idx:]...)
		}
		order[cur] = len(path)
		path = append(path, cur)
		visited[cur] = true

		mName, isWaiting := waitFor[cur]
		if !isWaiting {
			return nil
		}
		owner, hasOwner := ownerOf[mName]
		if !hasOwner {
			return nil
		}
		cur = owner
	}
}

func (s *Scheduler) resolveDeadlock(cycle []string, mutexes []*mutex.Mutex) {
	id := uuid.NewString()

	s.mu.Lock()
	var lowest string
	var lowestPriority int
	found := false
	for _, name := range cycle {
		t, ok := s.tasks[name]
		if !ok {
			continue
		}
		p := t.BasePriority()
		if !found || p < lowestPriority {
			lowest = name
			lowestPriority = p
			found = true
		}
	}
	s.mu.Unlock()

	if lowest == "" {
		return
	}

	s.logger.Warn("deadlock detected", "cycle_id", id, "tasks", cycle, "aborting", lowest)
	s.emit(Event{Kind: EventDeadlock, TaskName: lowest, Detail: id})

	for _, m := range mutexes {
		if m.AbortWaiter(lowest) {
			return
		}
	}
}
