package multipart

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ygrebnov/taskrunner"
)

// Sum is the multipart checksum of a stream.
type Sum struct {
	PartSize int    `json:"part_size" yaml:"part_size"`
	Parts    []Part `json:"parts" yaml:"parts"`
	Size     int64  `json:"size" yaml:"size"`
	ETag     string `json:"etag" yaml:"etag"`
}

// Checksum computes the ETag an object read from r would get if uploaded with
// opts.PartSize. Parts are hashed concurrently and reported, in part order,
// to opts.Progress as they complete.
func Checksum(ctx context.Context, r io.Reader, opts Options) (*Sum, error) {
	opts = opts.withDefaults()

	runner, err := taskrunner.New[[]byte, Part](append(opts.runnerOptions("checksum"), taskrunner.WithStopOnError())...)
	if err != nil {
		return nil, err
	}

	sum := &Sum{PartSize: opts.PartSize}
	runner.Subscribe(taskrunner.NewSequencer[[]byte, Part](1, func(o taskrunner.Outcome[[]byte, Part]) {
		if o.Failed() {
			return
		}
		sum.Parts = append(sum.Parts, o.Result)
		sum.Size += o.Result.Size
		if opts.Progress != nil {
			opts.Progress(o.Result)
		}
	}))
	if err = runner.Start(ctx); err != nil {
		return nil, err
	}

	feeder, err := taskrunner.NewFeeder(runner, func(chunk []byte) *taskrunner.Task[[]byte, Part] {
		return taskrunner.NewIndexedTask(chunk, func(ctx context.Context, number int, body []byte) (Part, error) {
			if err := ctx.Err(); err != nil {
				return Part{}, err
			}
			return Part{Number: number, ETag: PartETag(body), Size: int64(len(body))}, nil
		})
	})
	if err != nil {
		return nil, err
	}

	w, err := taskrunner.NewChunkWriter(ctx, feeder, opts.PartSize)
	if err != nil {
		return nil, err
	}
	_, copyErr := io.Copy(w, r)
	closeErr := w.Close()
	<-runner.Ended()

	if err := errors.Join(taskrunner.Failures(runner.Results()), copyErr, closeErr); err != nil {
		return nil, fmt.Errorf("checksum: %w", err)
	}

	etags := make([]string, len(sum.Parts))
	for i, p := range sum.Parts {
		etags[i] = p.ETag
	}
	if sum.ETag, err = CompositeETag(etags); err != nil {
		return nil, err
	}
	return sum, nil
}
