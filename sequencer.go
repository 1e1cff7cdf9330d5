package taskrunner

import (
	"slices"
	"sync"
)

// Sequencer is an Observer that hands completed tasks to emit strictly in index
// order, regardless of completion order.
//
// Completions ahead of the cursor are buffered until every lower index has
// completed. Unindexed tasks have no place in the sequence and are emitted as
// soon as they stop. Outcomes built by the Sequencer carry Task, Result and Err;
// ID and timestamps are only available from Runner.Results.
//
// emit is called with the Sequencer's lock held, from the runner goroutine that
// completed the task. A slow emit therefore delays other completions.
type Sequencer[P, R any] struct {
	Hooks[P, R]

	mu   sync.Mutex
	next int
	held map[int]Outcome[P, R]
	emit func(Outcome[P, R])
}

// NewSequencer creates a Sequencer whose first expected index is first
// (1 for tasks produced by a Feeder).
func NewSequencer[P, R any](first int, emit func(Outcome[P, R])) *Sequencer[P, R] {
	if emit == nil {
		emit = func(Outcome[P, R]) {}
	}
	return &Sequencer[P, R]{next: first, held: make(map[int]Outcome[P, R]), emit: emit}
}

// OnStop buffers the completed task and flushes the contiguous run from the cursor.
func (s *Sequencer[P, R]) OnStop(err error, task *Task[P, R], result R, _ Stats) {
	o := Outcome[P, R]{Task: task, Result: result, Err: err}

	s.mu.Lock()
	defer s.mu.Unlock()

	index, ok := task.Index()
	if !ok {
		s.emit(o)
		return
	}
	if index < s.next {
		// Already passed by Flush.
		s.emit(o)
		return
	}
	s.held[index] = o
	s.flushContiguous()
}

func (s *Sequencer[P, R]) flushContiguous() {
	for {
		o, ok := s.held[s.next]
		if !ok {
			return
		}
		delete(s.held, s.next)
		s.next++
		s.emit(o)
	}
}

// Next returns the lowest index not yet emitted.
func (s *Sequencer[P, R]) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Held returns the number of buffered outcomes waiting for a lower index.
func (s *Sequencer[P, R]) Held() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.held)
}

// Flush emits every buffered outcome in index order, skipping over gaps left by
// tasks that never ran (for example after an abort), and returns how many it emitted.
func (s *Sequencer[P, R]) Flush() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	indexes := make([]int, 0, len(s.held))
	for i := range s.held {
		indexes = append(indexes, i)
	}
	slices.Sort(indexes)

	for _, i := range indexes {
		o := s.held[i]
		delete(s.held, i)
		s.next = i + 1
		s.emit(o)
	}
	return len(indexes)
}
