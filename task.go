package taskrunner

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Task is a unit of work carrying a payload of type P and producing a result of type R.
//
// The payload holds whatever task-specific metadata the producer needs to see again
// in notifications (a job id, an archive id, a chunk of bytes), so observers never
// need to recover it by type assertion.
//
// A Task runs at most once. The sequence index is optional: it is assigned by the
// producer (or by a Feeder) before the task is enqueued and is never changed by the
// Runner, which makes it the key for restoring input order from completion order.
type Task[P, R any] struct {
	payload P
	fn      func(ctx context.Context, index int, payload P) (R, error)

	index   int
	indexed bool

	ran atomic.Bool
}

// NewTask creates a Task that calls fn with the payload.
func NewTask[P, R any](payload P, fn func(context.Context, P) (R, error)) *Task[P, R] {
	t := &Task[P, R]{payload: payload}
	if fn != nil {
		t.fn = func(ctx context.Context, _ int, p P) (R, error) { return fn(ctx, p) }
	}
	return t
}

// NewIndexedTask creates a Task whose body also receives the task's sequence index
// (zero if none was assigned). Use it when the work itself depends on the position,
// e.g. a multipart part number.
func NewIndexedTask[P, R any](payload P, fn func(ctx context.Context, index int, payload P) (R, error)) *Task[P, R] {
	return &Task[P, R]{payload: payload, fn: fn}
}

// TaskFunc adapts func(ctx) (R, error) into a payload-less Task.
func TaskFunc[R any](fn func(context.Context) (R, error)) *Task[struct{}, R] {
	if fn == nil {
		return &Task[struct{}, R]{}
	}
	return NewTask[struct{}, R](struct{}{}, func(ctx context.Context, _ struct{}) (R, error) { return fn(ctx) })
}

// Payload returns the task payload.
func (t *Task[P, R]) Payload() P { return t.payload }

// Index returns the sequence index and whether one was assigned.
func (t *Task[P, R]) Index() (int, bool) { return t.index, t.indexed }

// SetIndex assigns the sequence index. It must be called before the task is
// handed to a Runner.
func (t *Task[P, R]) SetIndex(i int) *Task[P, R] {
	t.index = i
	t.indexed = true
	return t
}

// Executed reports whether Run has been called.
func (t *Task[P, R]) Executed() bool { return t.ran.Load() }

// Run executes the task body once. Subsequent calls return ErrTaskExecuted.
// A panic in the body is recovered and reported as ErrTaskPanicked.
func (t *Task[P, R]) Run(ctx context.Context) (result R, err error) {
	if t.fn == nil {
		return result, ErrInvalidTask
	}
	if !t.ran.CompareAndSwap(false, true) {
		return result, ErrTaskExecuted
	}

	defer func() {
		if p := recover(); p != nil {
			var zero R
			result = zero
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, p)
		}
	}()

	return t.fn(ctx, t.index, t.payload)
}

func (t *Task[P, R]) String() string {
	if t.indexed {
		return fmt.Sprintf("task(index=%d)", t.index)
	}
	return "task"
}
