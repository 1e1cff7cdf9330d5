package taskrunner

import (
	"context"
	"errors"
	"slices"
)

// SortByIndex returns a copy of outcomes ordered by task index. The sort is
// stable; outcomes of unindexed tasks keep their relative order and go last.
func SortByIndex[P, R any](outcomes []Outcome[P, R]) []Outcome[P, R] {
	out := slices.Clone(outcomes)
	slices.SortStableFunc(out, func(a, b Outcome[P, R]) int {
		ai, aok := outcomeIndex(a)
		bi, bok := outcomeIndex(b)
		switch {
		case aok && bok:
			return ai - bi
		case aok:
			return -1
		case bok:
			return 1
		default:
			return 0
		}
	})
	return out
}

func outcomeIndex[P, R any](o Outcome[P, R]) (int, bool) {
	if o.Task == nil {
		return 0, false
	}
	return o.Task.Index()
}

// Collect waits for the run to end and returns its outcomes sorted by index.
func Collect[P, R any](ctx context.Context, r *Runner[P, R]) ([]Outcome[P, R], error) {
	if err := r.Wait(ctx); err != nil {
		return nil, err
	}
	return SortByIndex(r.Results()), nil
}

// Fold reduces outcomes, in the given order, into a single value.
func Fold[P, R, A any](outcomes []Outcome[P, R], init A, fn func(acc A, o Outcome[P, R]) A) A {
	acc := init
	for _, o := range outcomes {
		acc = fn(acc, o)
	}
	return acc
}

// Failures joins the errors of failed outcomes, or returns nil if none failed.
func Failures[P, R any](outcomes []Outcome[P, R]) error {
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}
