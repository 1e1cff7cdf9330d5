package taskrunner

import "context"

// MapStream applies fn concurrently to items received from in and delivers the
// outcomes on the returned channel in input order. A non-nil error is returned
// only for setup failures.
//
// Lifecycle:
//   - Items are pushed through a Feeder, so a fast producer blocks on in while the
//     runner is saturated. The n-th item gets index n.
//   - Intake stops when in is closed, ctx is done, or the run is aborted.
//   - The channel is closed once the run has ended. Outcomes held back by a gap
//     (an item that never ran) are flushed in index order before closing.
//
// The caller must drain the returned channel: completions block while it is full.
func MapStream[T, R any](
	ctx context.Context, in <-chan T, fn func(context.Context, T) (R, error), opts ...Option,
) (<-chan Outcome[T, R], error) {
	if fn == nil {
		return nil, ErrInvalidTask
	}

	r, err := New[T, R](opts...)
	if err != nil {
		return nil, err
	}
	if err = r.Start(ctx); err != nil {
		return nil, err
	}

	out := make(chan Outcome[T, R], r.Capacity())
	seq := NewSequencer[T, R](1, func(o Outcome[T, R]) { out <- o })
	r.Subscribe(seq)

	feeder, err := NewFeeder(r, func(item T) *Task[T, R] { return NewTask(item, fn) })
	if err != nil {
		return nil, err
	}

	go func() {
		defer func() {
			if err := feeder.Close(); err != nil {
				r.logger.Error("close feeder", "error", err)
			}
			<-r.Ended()
			seq.Flush()
			close(out)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case item, ok := <-in:
				if !ok {
					return
				}
				if err := feeder.Push(ctx, item); err != nil {
					r.logger.Debug("stream intake stopped", "reason", err)
					return
				}
			}
		}
	}()

	return out, nil
}
