package tests

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/ygrebnov/taskrunner"
)

func TestMap_PreservesInputOrder(t *testing.T) {
	items := []string{"a", "bb", "ccc", "dddd"}
	got, err := taskrunner.Map(context.Background(), items, func(_ context.Context, s string) (int, error) {
		return len(s), nil
	}, taskrunner.WithConcurrency(4))
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if want := []int{1, 2, 3, 4}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMap_FailedItemsAreZero(t *testing.T) {
	items := []string{"ok", "bad", "fine"}
	got, err := taskrunner.Map(context.Background(), items, func(_ context.Context, s string) (string, error) {
		if s == "bad" {
			return "ignored", errors.New("bad item")
		}
		return strings.ToUpper(s), nil
	}, taskrunner.WithConcurrency(2))
	if err == nil || !strings.Contains(err.Error(), "bad item") {
		t.Fatalf("expected bad item error, got %v", err)
	}
	if idx, ok := taskrunner.ExtractTaskIndex(err); !ok || idx != 2 {
		t.Fatalf("ExtractTaskIndex = (%d, %v), want (2, true)", idx, ok)
	}
	if want := []string{"OK", "", "FINE"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMap_EmptyAndNil(t *testing.T) {
	got, err := taskrunner.Map(context.Background(), []int(nil), func(context.Context, int) (int, error) { return 0, nil })
	if err != nil || got != nil {
		t.Fatalf("empty input: got=%v err=%v", got, err)
	}

	var fn func(context.Context, int) (int, error)
	if _, err := taskrunner.Map(context.Background(), []int{1}, fn); !errors.Is(err, taskrunner.ErrInvalidTask) {
		t.Fatalf("nil fn: expected ErrInvalidTask, got %v", err)
	}
}
