package taskrunner

import "context"

// ForEachStream applies fn to each item received from in and returns a channel
// carrying the failures in input order. The channel is closed when the stream is
// fully processed, cancelled or aborted. The caller must drain it.
func ForEachStream[T any](
	ctx context.Context, in <-chan T, fn func(context.Context, T) error, opts ...Option,
) (<-chan error, error) {
	if fn == nil {
		return nil, ErrInvalidTask
	}

	outcomes, err := MapStream(ctx, in, func(c context.Context, item T) (struct{}, error) {
		return struct{}{}, fn(c, item)
	}, opts...)
	if err != nil {
		return nil, err
	}

	errs := make(chan error)
	go func() {
		defer close(errs)
		for o := range outcomes {
			if o.Err != nil {
				errs <- o.Err
			}
		}
	}()
	return errs, nil
}
