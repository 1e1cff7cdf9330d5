package taskrunner

import (
	"context"
	"sync"

	"github.com/ygrebnov/errorc"
)

// Feeder turns a sequence of chunks into indexed tasks on a streaming Runner.
//
// Push blocks the producer while the runner's pending count is at or above its
// capacity and resumes as soon as a pending task is done. Chunks are never
// dropped or reordered: the n-th successful Push enqueues a task with index n,
// starting at 1.
//
// Push and Close are safe for concurrent use, but concurrent Push calls race for
// indexes; a single producer goroutine is the intended use.
type Feeder[C, R any] struct {
	runner  *Runner[C, R]
	factory func(chunk C) *Task[C, R]
	signal  *capacitySignal[C, R]

	mu     sync.Mutex
	next   int
	closed bool
}

// NewFeeder binds factory to a runner that has already been started in streaming mode.
func NewFeeder[C, R any](runner *Runner[C, R], factory func(chunk C) *Task[C, R]) (*Feeder[C, R], error) {
	if runner == nil {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "feeder requires a runner"))
	}
	if factory == nil {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "feeder requires a task factory"))
	}
	if mode := runner.Mode(); mode != ModeStreaming {
		return nil, errorc.With(ErrInvalidState, errorc.String("", "feeder requires a streaming runner, got "+mode.String()))
	}

	return &Feeder[C, R]{
		runner:  runner,
		factory: factory,
		signal:  watchCapacity(runner),
	}, nil
}

// Push waits for spare capacity, builds a task for chunk, assigns it the next
// index and enqueues it. It returns ErrAborted if the run was aborted, in which
// case the chunk is not enqueued, and ctx.Err() if ctx is done first.
func (f *Feeder[C, R]) Push(ctx context.Context, chunk C) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return errorc.With(ErrInvalidState, errorc.String("", "push after close"))
	}

	if err := f.signal.wait(ctx); err != nil {
		return err
	}

	task := f.factory(chunk)
	if task == nil {
		return errorc.With(ErrInvalidTask, errorc.String("", "factory returned a nil task"))
	}
	task.SetIndex(f.next + 1)

	if err := f.runner.Enqueue(task); err != nil {
		return err
	}
	f.next++
	return nil
}

// Pushed returns the number of chunks enqueued so far, which is also the index
// of the last one.
func (f *Feeder[C, R]) Pushed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.next
}

// Close signals the end of the stream to the runner. It must be called after
// the last Push has returned. Calling Close again is a no-op.
func (f *Feeder[C, R]) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	f.signal.stop()
	return f.runner.End()
}

// capacitySignal lets a producer sleep until a pending task of r is done.
type capacitySignal[P, R any] struct {
	r           *Runner[P, R]
	freed       chan struct{}
	unsubscribe func()
}

func watchCapacity[P, R any](r *Runner[P, R]) *capacitySignal[P, R] {
	c := &capacitySignal[P, R]{r: r, freed: make(chan struct{}, 1)}
	c.unsubscribe = r.Subscribe(Hooks[P, R]{
		Done: func(error, *Task[P, R], Stats) {
			select {
			case c.freed <- struct{}{}:
			default:
			}
		},
	})
	return c
}

// wait returns once r has fewer pending tasks than its capacity.
func (c *capacitySignal[P, R]) wait(ctx context.Context) error {
	for {
		if c.r.Aborted() {
			return ErrAborted
		}
		if c.r.Pending() < c.r.Capacity() {
			return nil
		}
		select {
		case <-c.freed:
		case <-ctx.Done():
			return ctx.Err()
		case <-c.r.Ended():
			return errorc.With(ErrInvalidState, errorc.String("", "runner has ended"))
		}
	}
}

func (c *capacitySignal[P, R]) stop() { c.unsubscribe() }
