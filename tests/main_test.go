package tests

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ygrebnov/taskrunner"
)

// squareTasks returns n indexed tasks whose result is "Executed for: i, result: i*i.".
func squareTasks(n int, fail map[int]bool, delay time.Duration) []*taskrunner.Task[int, string] {
	tasks := make([]*taskrunner.Task[int, string], 0, n)
	for i := 1; i <= n; i++ {
		tasks = append(tasks, taskrunner.NewTask(i, func(ctx context.Context, v int) (string, error) {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return "", ctx.Err()
				}
			}
			if fail[v] {
				return "", fmt.Errorf("task %d failed", v)
			}
			return fmt.Sprintf("Executed for: %d, result: %d.", v, v*v), nil
		}).SetIndex(i))
	}
	return tasks
}

// getExpectedResults returns the expected results for the given inputs.
func getExpectedResults(inputs ...int) []string {
	expected := make([]string, len(inputs))
	for i, v := range inputs {
		expected[i] = fmt.Sprintf("Executed for: %d, result: %d.", v, v*v)
	}
	return expected
}

func waitRunner[P, R any](t *testing.T, r *taskrunner.Runner[P, R]) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Wait(ctx); err != nil {
		t.Fatalf("runner did not end: %v", err)
	}
}

func assertErr(msg string) error { return errors.New(msg) }
