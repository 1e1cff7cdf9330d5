package multipart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ygrebnov/taskrunner"
	"github.com/ygrebnov/taskrunner/metrics"
)

const (
	// DefaultPartSize is the chunk size used when Options.PartSize is zero.
	DefaultPartSize = 25 << 20
	// DefaultConcurrency is the number of parts in flight when Options.Concurrency is zero.
	DefaultConcurrency = 5
)

// Options configures an Uploader.
type Options struct {
	PartSize    int
	Concurrency uint
	Logger      *slog.Logger
	Metrics     metrics.Provider
	// Progress, if set, is called for every completed part in part order.
	Progress func(Part)
}

func (o Options) withDefaults() Options {
	if o.PartSize <= 0 {
		o.PartSize = DefaultPartSize
	}
	if o.Concurrency == 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Noop{}
	}
	return o
}

func (o Options) runnerOptions(name string) []taskrunner.Option {
	return []taskrunner.Option{
		taskrunner.WithConcurrency(o.Concurrency),
		taskrunner.WithLogger(o.Logger),
		taskrunner.WithMetrics(o.Metrics),
		taskrunner.WithName(name),
	}
}

// Result describes a completed upload.
type Result struct {
	Key      string        `json:"key" yaml:"key"`
	UploadID string        `json:"upload_id" yaml:"upload_id"`
	ETag     string        `json:"etag" yaml:"etag"`
	Parts    []Part        `json:"parts" yaml:"parts"`
	Size     int64         `json:"size" yaml:"size"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Uploader streams readers into a Store part by part.
type Uploader struct {
	store Store
	opts  Options
}

// NewUploader creates an Uploader writing to store.
func NewUploader(store Store, opts Options) (*Uploader, error) {
	if store == nil {
		return nil, errors.New("multipart: uploader requires a store")
	}
	return &Uploader{store: store, opts: opts.withDefaults()}, nil
}

// Upload reads r to EOF and uploads it under key. Parts are read one after
// another and uploaded concurrently, at most Concurrency at a time; reading
// pauses while that many parts are in flight. Part numbers follow read order,
// starting at 1.
//
// The first failed part stops the upload: no further parts are read, the
// upload is aborted in the store and the part error is returned.
func (u *Uploader) Upload(ctx context.Context, key string, r io.Reader) (*Result, error) {
	began := time.Now()
	log := u.opts.Logger.With("key", key)

	id, err := u.store.Create(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("create upload %s: %w", key, err)
	}
	log = log.With("upload_id", id)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runner, err := taskrunner.New[[]byte, Part](u.opts.runnerOptions("multipart")...)
	if err != nil {
		return nil, err
	}
	runner.SetErrorCallback(func(task *taskrunner.Task[[]byte, Part], err error) bool {
		index, _ := task.Index()
		log.Error("part upload failed", "part", index, "err", err)
		cancel()
		return true
	})
	if u.opts.Progress != nil {
		runner.Subscribe(taskrunner.NewSequencer[[]byte, Part](1, func(o taskrunner.Outcome[[]byte, Part]) {
			if !o.Failed() {
				u.opts.Progress(o.Result)
			}
		}))
	}
	if err = runner.Start(ctx); err != nil {
		return nil, err
	}

	feeder, err := taskrunner.NewFeeder(runner, func(chunk []byte) *taskrunner.Task[[]byte, Part] {
		return taskrunner.NewIndexedTask(chunk, func(ctx context.Context, number int, body []byte) (Part, error) {
			etag, err := u.store.UploadPart(ctx, id, number, body)
			if err != nil {
				return Part{}, err
			}
			log.Debug("part uploaded", "part", number, "size", len(body), "etag", etag)
			return Part{Number: number, ETag: etag, Size: int64(len(body))}, nil
		})
	})
	if err != nil {
		return nil, err
	}

	w, err := taskrunner.NewChunkWriter(ctx, feeder, u.opts.PartSize)
	if err != nil {
		return nil, err
	}
	_, copyErr := io.Copy(w, r)
	if copyErr != nil {
		cancel()
	}
	closeErr := w.Close()

	// Closing the feeder ends the run; parts observe ctx.
	<-runner.Ended()

	outcomes := taskrunner.SortByIndex(runner.Results())
	if partErr := taskrunner.Failures(outcomes); partErr != nil || copyErr != nil || closeErr != nil {
		// A read error cancels the parts in flight, so it goes first.
		err = errors.Join(dropAborted(copyErr), dropAborted(closeErr), partErr)
		if abortErr := u.store.Abort(context.WithoutCancel(ctx), id); abortErr != nil {
			log.Warn("abort upload failed", "err", abortErr)
		}
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}

	parts := taskrunner.Fold(outcomes, make([]Part, 0, len(outcomes)), func(acc []Part, o taskrunner.Outcome[[]byte, Part]) []Part {
		return append(acc, o.Result)
	})
	etag, err := u.store.Complete(ctx, id, parts)
	if err != nil {
		if abortErr := u.store.Abort(context.WithoutCancel(ctx), id); abortErr != nil {
			log.Warn("abort upload failed", "err", abortErr)
		}
		return nil, fmt.Errorf("complete upload %s: %w", key, err)
	}

	res := &Result{Key: key, UploadID: id, ETag: etag, Parts: parts, Duration: time.Since(began)}
	for _, p := range parts {
		res.Size += p.Size
	}
	log.Info("upload completed", "parts", len(parts), "size", res.Size, "etag", etag)
	return res, nil
}

// dropAborted discards push errors that only report the runner was aborted;
// the part failure that caused the abort is reported instead.
func dropAborted(err error) error {
	if errors.Is(err, taskrunner.ErrAborted) {
		return nil
	}
	return err
}
