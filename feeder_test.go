package taskrunner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startedRunner[C, R any](t *testing.T, opts ...Option) *Runner[C, R] {
	t.Helper()
	r, err := New[C, R](opts...)
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))
	return r
}

func TestNewFeeder_Validation(t *testing.T) {
	factory := func(c int) *Task[int, int] {
		return NewTask(c, func(_ context.Context, c int) (int, error) { return c, nil })
	}

	_, err := NewFeeder[int, int](nil, factory)
	require.ErrorIs(t, err, ErrInvalidConfig)

	r := startedRunner[int, int](t)
	_, err = NewFeeder(r, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)

	batch, err := New[int, int]()
	require.NoError(t, err)
	_, err = NewFeeder(batch, factory)
	require.ErrorIs(t, err, ErrInvalidState, "unstarted runner")

	require.NoError(t, batch.Execute(context.Background(), nil))
	_, err = NewFeeder(batch, factory)
	require.ErrorIs(t, err, ErrInvalidState, "batch runner")
}

func TestFeeder_BackpressureAndIndexes(t *testing.T) {
	const ceiling = 2
	r := startedRunner[int, int](t, WithConcurrency(ceiling))

	var maxPending atomic.Int64
	r.Subscribe(Hooks[int, int]{
		Take: func(*Task[int, int]) {
			n := int64(r.Pending())
			for {
				m := maxPending.Load()
				if n <= m || maxPending.CompareAndSwap(m, n) {
					break
				}
			}
		},
	})

	feeder, err := NewFeeder(r, func(chunk int) *Task[int, int] {
		return NewIndexedTask(chunk, func(_ context.Context, index int, chunk int) (int, error) {
			time.Sleep(5 * time.Millisecond)
			return index*100 + chunk, nil
		})
	})
	require.NoError(t, err)

	for chunk := 0; chunk < 10; chunk++ {
		require.NoError(t, feeder.Push(context.Background(), chunk))
		require.LessOrEqual(t, r.Pending(), ceiling)
	}
	require.Equal(t, 10, feeder.Pushed())

	var ends atomic.Int32
	r.Subscribe(Hooks[int, int]{End: func() {
		if r.Queued() != 0 || r.Pending() != 0 {
			t.Errorf("end fired with queued=%d pending=%d", r.Queued(), r.Pending())
		}
		ends.Add(1)
	}})

	require.NoError(t, feeder.Close())
	require.NoError(t, feeder.Close())
	waitEnd(t, r)

	require.LessOrEqual(t, maxPending.Load(), int64(ceiling))
	require.Equal(t, int32(1), ends.Load())

	outcomes := SortByIndex(r.Results())
	require.Len(t, outcomes, 10)
	for i, o := range outcomes {
		require.NoError(t, o.Err)
		require.Equal(t, i+1, o.Index())
		require.Equal(t, (i+1)*100+i, o.Result, "chunk %d must carry index %d", i, i+1)
	}
}

func TestFeeder_PushBlocksUntilCompletion(t *testing.T) {
	r := startedRunner[string, string](t, WithConcurrency(1))

	release := make(chan struct{})
	feeder, err := NewFeeder(r, func(chunk string) *Task[string, string] {
		return NewTask(chunk, func(_ context.Context, c string) (string, error) {
			<-release
			return strings.ToUpper(c), nil
		})
	})
	require.NoError(t, err)

	require.NoError(t, feeder.Push(context.Background(), "a"))

	pushed := make(chan error, 1)
	go func() { pushed <- feeder.Push(context.Background(), "b") }()

	select {
	case err := <-pushed:
		t.Fatalf("push returned while the runner was saturated: %v", err)
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-pushed)
	require.NoError(t, feeder.Close())
	waitEnd(t, r)

	var got []string
	for _, o := range SortByIndex(r.Results()) {
		got = append(got, o.Result)
	}
	require.Equal(t, []string{"A", "B"}, got)
}

func TestFeeder_PushHonorsContext(t *testing.T) {
	r := startedRunner[int, int](t, WithConcurrency(1))

	release := make(chan struct{})
	defer close(release)
	feeder, err := NewFeeder(r, func(c int) *Task[int, int] {
		return NewTask(c, func(context.Context, int) (int, error) {
			<-release
			return 0, nil
		})
	})
	require.NoError(t, err)
	require.NoError(t, feeder.Push(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, feeder.Push(ctx, 2), context.DeadlineExceeded)
	require.Equal(t, 1, feeder.Pushed(), "a cancelled push must not consume an index")
}

func TestFeeder_PushAfterAbort(t *testing.T) {
	r := startedRunner[int, int](t, WithConcurrency(1), WithStopOnError())

	feeder, err := NewFeeder(r, func(c int) *Task[int, int] {
		return NewTask(c, func(context.Context, int) (int, error) { return 0, errors.New("bad chunk") })
	})
	require.NoError(t, err)

	require.NoError(t, feeder.Push(context.Background(), 1))
	require.ErrorIs(t, feeder.Push(context.Background(), 2), ErrAborted)

	require.NoError(t, feeder.Close())
	waitEnd(t, r)
	require.Equal(t, 1, r.Done())
	require.Zero(t, r.Queued())
}

func TestFeeder_PushAfterClose(t *testing.T) {
	r := startedRunner[int, int](t)
	feeder, err := NewFeeder(r, func(c int) *Task[int, int] { return nil })
	require.NoError(t, err)

	require.ErrorIs(t, feeder.Push(context.Background(), 1), ErrInvalidTask)
	require.NoError(t, feeder.Close())
	require.ErrorIs(t, feeder.Push(context.Background(), 1), ErrInvalidState)
	waitEnd(t, r)
}

func TestChunkWriter_SplitsStream(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		size   int
		chunks []string
	}{
		{name: "empty", input: "", size: 4, chunks: nil},
		{name: "exact multiple", input: "abcdefgh", size: 4, chunks: []string{"abcd", "efgh"}},
		{name: "short tail", input: "abcdefghij", size: 4, chunks: []string{"abcd", "efgh", "ij"}},
		{name: "smaller than one chunk", input: "ab", size: 4, chunks: []string{"ab"}},
		{name: "one byte chunks", input: "xyz", size: 1, chunks: []string{"x", "y", "z"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := startedRunner[[]byte, string](t, WithConcurrency(3))
			feeder, err := NewFeeder(r, func(chunk []byte) *Task[[]byte, string] {
				return NewTask(chunk, func(_ context.Context, c []byte) (string, error) { return string(c), nil })
			})
			require.NoError(t, err)

			w, err := NewChunkWriter(context.Background(), feeder, tt.size)
			require.NoError(t, err)

			// Hiding WriterTo makes Write see 3-byte slices.
			src := struct{ io.Reader }{bytes.NewReader([]byte(tt.input))}
			_, err = io.CopyBuffer(w, src, make([]byte, 3))
			require.NoError(t, err)
			require.NoError(t, w.Close())
			require.NoError(t, w.Close())
			waitEnd(t, r)

			var got []string
			for _, o := range SortByIndex(r.Results()) {
				got = append(got, o.Result)
			}
			require.Equal(t, tt.chunks, got)
			require.Equal(t, len(tt.chunks), w.Chunks())

			_, err = w.Write([]byte("late"))
			require.ErrorIs(t, err, ErrInvalidState)
		})
	}
}

func TestChunkWriter_ChunksDoNotShareMemory(t *testing.T) {
	r := startedRunner[[]byte, []byte](t, WithConcurrency(1))

	var mu sync.Mutex
	var seen [][]byte
	feeder, err := NewFeeder(r, func(chunk []byte) *Task[[]byte, []byte] {
		mu.Lock()
		seen = append(seen, chunk)
		mu.Unlock()
		return NewTask(chunk, func(_ context.Context, c []byte) ([]byte, error) { return c, nil })
	})
	require.NoError(t, err)

	w, err := NewChunkWriter(context.Background(), feeder, 2)
	require.NoError(t, err)

	buf := []byte("aabb")
	_, err = w.Write(buf)
	require.NoError(t, err)
	copy(buf, "zzzz")
	require.NoError(t, w.Close())
	waitEnd(t, r)

	require.Equal(t, [][]byte{[]byte("aa"), []byte("bb")}, seen)
}

func TestNewChunkWriter_Validation(t *testing.T) {
	_, err := NewChunkWriter[int](context.Background(), nil, 1)
	require.ErrorIs(t, err, ErrInvalidConfig)

	r := startedRunner[[]byte, int](t)
	feeder, err := NewFeeder(r, func(c []byte) *Task[[]byte, int] { return nil })
	require.NoError(t, err)
	_, err = NewChunkWriter(context.Background(), feeder, 0)
	require.ErrorIs(t, err, ErrInvalidConfig)
}
