package taskrunner

import (
	"context"
	"errors"

	"github.com/ygrebnov/errorc"
)

// ChunkWriter is an io.WriteCloser slicing a byte stream into fixed-size chunks
// and pushing each one through a Feeder. The last chunk may be shorter.
//
//	w, _ := taskrunner.NewChunkWriter(ctx, feeder, partSize)
//	_, err := io.Copy(w, file)
//	err = errors.Join(err, w.Close())
//
// A ChunkWriter is not safe for concurrent use.
type ChunkWriter[R any] struct {
	ctx    context.Context
	feeder *Feeder[[]byte, R]
	size   int
	buf    []byte
	closed bool
}

// NewChunkWriter creates a ChunkWriter emitting chunks of size bytes.
func NewChunkWriter[R any](ctx context.Context, feeder *Feeder[[]byte, R], size int) (*ChunkWriter[R], error) {
	if feeder == nil {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "chunk writer requires a feeder"))
	}
	if size <= 0 {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "chunk size must be > 0"))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &ChunkWriter[R]{ctx: ctx, feeder: feeder, size: size}, nil
}

// Write buffers p and pushes every completed chunk. It blocks while the runner
// is saturated. Each chunk gets its own backing array.
func (w *ChunkWriter[R]) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errorc.With(ErrInvalidState, errorc.String("", "write after close"))
	}

	n := 0
	for len(p) > 0 {
		if w.buf == nil {
			w.buf = make([]byte, 0, w.size)
		}
		k := min(w.size-len(w.buf), len(p))
		w.buf = append(w.buf, p[:k]...)
		p = p[k:]
		n += k

		if len(w.buf) == w.size {
			chunk := w.buf
			w.buf = nil
			if err := w.feeder.Push(w.ctx, chunk); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// Close pushes the trailing partial chunk, if any, and closes the feeder.
// The feeder is closed even when the final push fails.
func (w *ChunkWriter[R]) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var pushErr error
	if len(w.buf) > 0 {
		chunk := w.buf
		w.buf = nil
		pushErr = w.feeder.Push(w.ctx, chunk)
	}
	return errors.Join(pushErr, w.feeder.Close())
}

// Chunks returns the number of chunks pushed so far.
func (w *ChunkWriter[R]) Chunks() int { return w.feeder.Pushed() }
