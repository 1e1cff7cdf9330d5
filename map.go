package taskrunner

import "context"

// Map applies fn to every item concurrently and returns the results in input order.
// Semantics:
// - Each item becomes a task indexed by its position (1-based), so results line up with items.
// - A failed item leaves the zero value of R at its position.
// - The error is errors.Join of all failures; with WithStopOnError, items never run are also zero.
func Map[T, R any](
	ctx context.Context,
	items []T,
	fn func(context.Context, T) (R, error),
	opts ...Option,
) ([]R, error) {
	if fn == nil {
		return nil, ErrInvalidTask
	}
	if len(items) == 0 {
		return nil, nil
	}

	tasks := make([]*Task[T, R], 0, len(items))
	for i, item := range items {
		tasks = append(tasks, NewTask(item, fn).SetIndex(i+1))
	}

	outcomes, err := RunAll(ctx, tasks, opts...)
	results := make([]R, len(items))
	for _, o := range outcomes {
		if !o.Failed() {
			results[o.Index()-1] = o.Result
		}
	}
	return results, err
}
