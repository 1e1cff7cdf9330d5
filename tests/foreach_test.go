package tests

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/ygrebnov/taskrunner"
)

func TestForEach_VisitsEveryItem(t *testing.T) {
	var sum atomic.Int64
	err := taskrunner.ForEach(context.Background(), []int{1, 2, 3, 4}, func(_ context.Context, v int) error {
		sum.Add(int64(v))
		return nil
	}, taskrunner.WithConcurrency(2))
	if err != nil {
		t.Fatalf("ForEach failed: %v", err)
	}
	if sum.Load() != 10 {
		t.Fatalf("sum = %d, want 10", sum.Load())
	}
}

func TestForEach_ReturnsJoinedErrors(t *testing.T) {
	errOdd := errors.New("odd")
	err := taskrunner.ForEach(context.Background(), []int{1, 2, 3}, func(_ context.Context, v int) error {
		if v%2 == 1 {
			return errOdd
		}
		return nil
	})
	if !errors.Is(err, errOdd) {
		t.Fatalf("expected odd error, got %v", err)
	}
}

func TestForEach_StopOnError(t *testing.T) {
	var visited atomic.Int32
	err := taskrunner.ForEach(context.Background(), []int{1, 2, 3, 4, 5}, func(_ context.Context, v int) error {
		visited.Add(1)
		return assertErr("fail fast")
	}, taskrunner.WithConcurrency(1), taskrunner.WithStopOnError())
	if err == nil {
		t.Fatalf("expected error")
	}
	if visited.Load() != 1 {
		t.Fatalf("visited %d items, want 1", visited.Load())
	}
}
