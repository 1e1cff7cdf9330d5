package taskrunner

import "context"

// ForEach applies fn to each item concurrently and returns errors.Join of the
// failures, or nil when all succeed. Options like WithConcurrency and
// WithStopOnError are honored.
func ForEach[T any](ctx context.Context, items []T, fn func(context.Context, T) error, opts ...Option) error {
	if fn == nil {
		return ErrInvalidTask
	}
	_, err := Map(ctx, items, func(c context.Context, item T) (struct{}, error) {
		return struct{}{}, fn(c, item)
	}, opts...)
	return err
}
