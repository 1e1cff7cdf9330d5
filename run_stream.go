package taskrunner

import "context"

// RunStream starts a streaming Runner configured by opts and feeds it the tasks
// received from in. It returns the runner so the caller can subscribe, wait
// and read results. A non-nil error is returned only for setup failures.
//
// Lifecycle:
//   - Intake waits for spare capacity before receiving the next task, so at most
//     Capacity tasks are pending at any time and a fast producer blocks on in.
//   - Intake stops when in is closed, ctx is done, or the run is aborted; End is
//     then called and the runner ends once pending tasks are done.
//   - Nil tasks are logged and skipped.
//
// Observers subscribed after RunStream returns may miss the begin notification
// and the first queued ones; use WithLogger or WithMetrics for a full picture.
func RunStream[P, R any](ctx context.Context, in <-chan *Task[P, R], opts ...Option) (*Runner[P, R], error) {
	r, err := New[P, R](opts...)
	if err != nil {
		return nil, err
	}
	if err = r.Start(ctx); err != nil {
		return nil, err
	}

	signal := watchCapacity(r)

	go func() {
		defer func() {
			signal.stop()
			if err := r.End(); err != nil {
				r.logger.Error("end stream", "error", err)
			}
		}()

		for {
			if err := signal.wait(ctx); err != nil {
				r.logger.Debug("stream intake stopped", "reason", err)
				return
			}

			select {
			case <-ctx.Done():
				r.logger.Debug("stream intake stopped", "reason", ctx.Err())
				return
			case t, ok := <-in:
				if !ok {
					return
				}
				if err := r.Enqueue(t); err != nil {
					r.logger.Warn("stream task rejected", "error", err)
				}
			}
		}
	}()

	return r, nil
}
