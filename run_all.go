package taskrunner

import "context"

// RunAll executes tasks in batch mode on a new Runner configured by opts.
// It owns the lifecycle: Execute, wait for end, then collect outcomes.
//
// Semantics:
// - Outcomes are sorted by task index; unindexed tasks keep completion order at the end.
// - If WithStopOnError is given, the first failure aborts the run; some tasks may never run
//   and are absent from the outcomes.
// - The returned error is errors.Join of all task errors (nil if none failed).
// - If ctx is done before the run ends, the outcomes recorded so far are returned with ctx.Err().
func RunAll[P, R any](ctx context.Context, tasks []*Task[P, R], opts ...Option) ([]Outcome[P, R], error) {
	r, err := New[P, R](opts...)
	if err != nil {
		return nil, err
	}

	if err = r.Execute(ctx, tasks); err != nil {
		return nil, err
	}

	if err = r.Wait(ctx); err != nil {
		return SortByIndex(r.Results()), err
	}

	outcomes := SortByIndex(r.Results())
	return outcomes, Failures(outcomes)
}
