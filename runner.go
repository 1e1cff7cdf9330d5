package taskrunner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ygrebnov/errorc"
)

// Mode is the operating mode of a Runner. It is fixed by the first call to
// Execute (batch) or Start (streaming).
type Mode int

const (
	ModeUninitialized Mode = iota
	ModeBatch
	ModeStreaming
)

func (m Mode) String() string {
	switch m {
	case ModeBatch:
		return "batch"
	case ModeStreaming:
		return "streaming"
	default:
		return "uninitialized"
	}
}

// ErrorCallback is invoked synchronously for every failed task. Returning true
// aborts the run: no further tasks are admitted, in-flight tasks finish normally.
type ErrorCallback[P, R any] func(task *Task[P, R], err error) bool

// Runner executes tasks with at most Capacity of them running at the same time.
//
// Every task moves queued -> pending -> done exactly once. A task failure never
// escapes the Runner: it is recorded in the task's Outcome and, if an
// ErrorCallback is set, may abort the run.
//
// In batch mode (Execute) the Runner admits a new task whenever one completes.
// In streaming mode (Start) admission is driven by Enqueue, and the producer
// signals the end of input with End.
//
// Runner methods are safe for concurrent use.
type Runner[P, R any] struct {
	// noCopy prevents accidental copying of the runner.
	nc noCopy

	cfg    config
	gate   *Gate
	logger *slog.Logger
	inst   instruments

	// ctx is passed to task bodies; set once by Execute/Start.
	ctx context.Context

	// mu guards the run state below. No task body or notification runs while it is held.
	mu           sync.Mutex
	mode         Mode
	queued       []*Task[P, R]
	pending      map[uuid.UUID]*Outcome[P, R]
	done         []Outcome[P, R]
	aborted      bool
	endRequested bool
	ended        bool
	notifying    int // completions still delivering stop/done
	onError      ErrorCallback[P, R]

	// enqueueMu serialises Enqueue and End so queued notifications follow call order.
	enqueueMu sync.Mutex

	obsMu     sync.RWMutex
	observers []subscriber[P, R]
	nextObsID int

	endCh chan struct{}
}

// noCopy is a vet-recognized marker to discourage copying types with this field embedded.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// New creates a Runner configured by opts.
func New[P, R any](opts ...Option) (*Runner[P, R], error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	gate, err := NewGate(cfg.Concurrency)
	if err != nil {
		return nil, err
	}

	r := &Runner[P, R]{
		cfg:     cfg,
		gate:    gate,
		logger:  cfg.Logger.With("component", "taskrunner", "runner", cfg.Name),
		inst:    newInstruments(cfg.Metrics, cfg.Name),
		pending: make(map[uuid.UUID]*Outcome[P, R]),
		endCh:   make(chan struct{}),
	}
	if cfg.StopOnError {
		r.onError = func(*Task[P, R], error) bool { return true }
	}
	return r, nil
}

// Execute runs tasks in batch mode. It seeds the queue, emits begin and admits
// up to Capacity tasks; it does not wait for them. Use Wait or an OnEnd observer
// to learn when the batch is finished.
//
// Execute fails with ErrInvalidState if the Runner was already started, and
// with ErrInvalidTask if tasks contains nil.
func (r *Runner[P, R]) Execute(ctx context.Context, tasks []*Task[P, R]) error {
	for i, t := range tasks {
		if t == nil {
			return errorc.With(ErrInvalidTask, errorc.String("", fmt.Sprintf("nil task at position %d", i)))
		}
	}

	if err := r.begin(ctx, ModeBatch, tasks); err != nil {
		return err
	}

	for i := 0; i < r.gate.Capacity(); i++ {
		r.admit()
	}
	return nil
}

// Start runs the Runner in streaming mode: tasks are supplied with Enqueue and
// the end of input is signalled with End.
//
// Start fails with ErrInvalidState if the Runner was already started.
func (r *Runner[P, R]) Start(ctx context.Context) error {
	return r.begin(ctx, ModeStreaming, nil)
}

func (r *Runner[P, R]) begin(ctx context.Context, mode Mode, tasks []*Task[P, R]) error {
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.Lock()
	if r.mode != ModeUninitialized {
		current := r.mode
		r.mu.Unlock()
		return errorc.With(ErrInvalidState, errorc.String("", "runner already running in "+current.String()+" mode"))
	}
	r.mode = mode
	r.ctx = ctx
	r.queued = append([]*Task[P, R](nil), tasks...)
	r.mu.Unlock()

	r.inst.queued.Add(int64(len(tasks)))
	r.logger.Info("run started", "mode", mode.String(), "tasks", len(tasks), "concurrency", r.gate.Capacity())
	r.notify(func(o Observer[P, R]) { o.OnBegin() })
	return nil
}

// Enqueue appends a task to the queue and tries to admit it.
// It is valid only in streaming mode and before End.
func (r *Runner[P, R]) Enqueue(task *Task[P, R]) error {
	if task == nil {
		return ErrInvalidTask
	}

	r.enqueueMu.Lock()
	defer r.enqueueMu.Unlock()

	r.mu.Lock()
	if err := r.streamingLocked("enqueue"); err != nil {
		r.mu.Unlock()
		return err
	}
	if r.endRequested {
		r.mu.Unlock()
		return errorc.With(ErrInvalidState, errorc.String("", "enqueue called after end"))
	}
	r.queued = append(r.queued, task)
	n := len(r.queued)
	r.mu.Unlock()

	r.inst.queued.Add(1)
	r.logger.Debug("task queued", "task", task.String(), "queue_len", n)
	r.notify(func(o Observer[P, R]) { o.OnQueued(task, n) })

	r.admit()
	return nil
}

// End tells a streaming Runner that no more tasks will be enqueued. The end
// notification fires immediately if nothing is queued or pending, otherwise
// after the last pending task is done. Calling End again is a no-op.
func (r *Runner[P, R]) End() error {
	r.enqueueMu.Lock()
	defer r.enqueueMu.Unlock()

	r.mu.Lock()
	if err := r.streamingLocked("end"); err != nil {
		r.mu.Unlock()
		return err
	}
	if r.endRequested {
		r.mu.Unlock()
		return nil
	}
	r.endRequested = true
	fire := r.shouldEndLocked()
	r.mu.Unlock()

	r.logger.Debug("end requested", "drained", fire)
	if fire {
		r.finish()
	}
	return nil
}

func (r *Runner[P, R]) streamingLocked(op string) error {
	switch r.mode {
	case ModeStreaming:
		return nil
	case ModeUninitialized:
		return errorc.With(ErrInvalidState, errorc.String("", op+" called before Start"))
	default:
		return errorc.With(ErrInvalidState, errorc.String("", op+" called in "+r.mode.String()+" mode"))
	}
}

// SetErrorCallback registers the failure handler. It replaces any previous one.
func (r *Runner[P, R]) SetErrorCallback(cb ErrorCallback[P, R]) {
	r.mu.Lock()
	r.onError = cb
	r.mu.Unlock()
}

// Subscribe registers an observer and returns a function removing it.
// Observers registered after a notification was emitted do not receive it.
func (r *Runner[P, R]) Subscribe(o Observer[P, R]) (unsubscribe func()) {
	if o == nil {
		return func() {}
	}

	r.obsMu.Lock()
	id := r.nextObsID
	r.nextObsID++
	subs := make([]subscriber[P, R], 0, len(r.observers)+1)
	subs = append(subs, r.observers...)
	r.observers = append(subs, subscriber[P, R]{id: id, o: o})
	r.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.obsMu.Lock()
			defer r.obsMu.Unlock()
			kept := make([]subscriber[P, R], 0, len(r.observers))
			for _, s := range r.observers {
				if s.id != id {
					kept = append(kept, s)
				}
			}
			r.observers = kept
		})
	}
}

// Results returns a copy of the done list in completion order.
func (r *Runner[P, R]) Results() []Outcome[P, R] {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Outcome[P, R], len(r.done))
	copy(out, r.done)
	return out
}

// Wait blocks until the end notification has been delivered or ctx is done.
// A nil ctx waits without a deadline.
func (r *Runner[P, R]) Wait(ctx context.Context) error {
	if r.Mode() == ModeUninitialized {
		return errorc.With(ErrInvalidState, errorc.String("", "wait called before Execute or Start"))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-r.endCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ended returns a channel closed once the end notification has been delivered.
func (r *Runner[P, R]) Ended() <-chan struct{} { return r.endCh }

// Stats returns the current sizes of the queued, pending and done collections.
func (r *Runner[P, R]) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statsLocked()
}

func (r *Runner[P, R]) statsLocked() Stats {
	return Stats{Queued: len(r.queued), Pending: len(r.pending), Done: len(r.done)}
}

func (r *Runner[P, R]) Queued() int  { return r.Stats().Queued }
func (r *Runner[P, R]) Pending() int { return r.Stats().Pending }
func (r *Runner[P, R]) Done() int    { return r.Stats().Done }

// Capacity returns the concurrency ceiling.
func (r *Runner[P, R]) Capacity() int { return r.gate.Capacity() }

// Aborted reports whether the error callback has aborted the run.
func (r *Runner[P, R]) Aborted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aborted
}

// Mode returns the operating mode.
func (r *Runner[P, R]) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// admit moves the head of the queue to pending and starts it, or fires end
// when there is nothing left to do.
func (r *Runner[P, R]) admit() {
	r.mu.Lock()
	if r.aborted || len(r.queued) == 0 {
		fire := r.shouldEndLocked()
		r.mu.Unlock()
		if fire {
			r.finish()
		}
		return
	}

	task := r.queued[0]
	r.queued[0] = nil
	r.queued = r.queued[1:]
	o := &Outcome[P, R]{ID: uuid.New(), Task: task}
	r.pending[o.ID] = o
	r.mu.Unlock()

	r.logger.Debug("task taken", "task", task.String(), "outcome", o.ID)
	r.notify(func(ob Observer[P, R]) { ob.OnTake(task) })

	go r.process(o)
}

// process runs one pending outcome through the gate and records it.
func (r *Runner[P, R]) process(o *Outcome[P, R]) {
	task := o.Task
	index, indexed := task.Index()

	if err := r.gate.Acquire(r.ctx); err != nil {
		o.Err = newTaskError(fmt.Errorf("%w: %w", ErrTaskCancelled, err), o.ID, index, indexed)
		r.fail(o)
		r.complete(o)
		return
	}

	s := r.Stats()
	o.Started = time.Now()
	r.inst.begin()
	r.logger.Debug("task started", "task", task.String(), "outcome", o.ID,
		"queued", s.Queued, "pending", s.Pending, "done", s.Done)
	r.notify(func(ob Observer[P, R]) { ob.OnStart(task, s) })

	result, err := task.Run(r.ctx)
	o.Finished = time.Now()
	r.inst.finish(o.Duration())
	if err != nil {
		o.Err = newTaskError(err, o.ID, index, indexed)
		r.fail(o)
	} else {
		o.Result = result
	}

	if err := r.gate.Release(); err != nil {
		r.logger.Error("gate release failed", "outcome", o.ID, "error", err)
	}

	r.complete(o)
}

// fail consults the error callback for a failed outcome.
func (r *Runner[P, R]) fail(o *Outcome[P, R]) {
	r.mu.Lock()
	cb := r.onError
	r.mu.Unlock()

	r.logger.Warn("task failed", "task", o.Task.String(), "outcome", o.ID, "error", o.Err)
	if cb == nil || !cb(o.Task, o.Err) {
		return
	}

	r.mu.Lock()
	first := !r.aborted
	r.aborted = true
	queued := len(r.queued)
	r.mu.Unlock()

	if first {
		r.inst.aborts.Add(1)
		r.logger.Warn("run aborted", "task", o.Task.String(), "abandoned", queued)
	}
}

// complete moves an outcome from pending to done, emits stop and done, then
// either admits the next task (batch) or checks for the end of the stream.
func (r *Runner[P, R]) complete(o *Outcome[P, R]) {
	r.mu.Lock()
	before := r.statsLocked()
	delete(r.pending, o.ID)
	r.done = append(r.done, *o)
	after := r.statsLocked()
	r.notifying++
	r.mu.Unlock()

	r.inst.record(o.Err != nil)
	r.logger.Debug("task done", "task", o.Task.String(), "outcome", o.ID, "failed", o.Err != nil,
		"queued", after.Queued, "pending", after.Pending, "done", after.Done)
	r.notify(func(ob Observer[P, R]) { ob.OnStop(o.Err, o.Task, o.Result, before) })
	r.notify(func(ob Observer[P, R]) { ob.OnDone(o.Err, o.Task, after) })

	r.mu.Lock()
	r.notifying--
	batch := r.mode == ModeBatch
	r.mu.Unlock()

	if batch {
		r.admit()
		return
	}

	r.mu.Lock()
	fire := r.shouldEndLocked()
	r.mu.Unlock()
	if fire {
		r.finish()
	}
}

// shouldEndLocked reports whether the run is over and, if so, marks it ended so
// that exactly one caller fires the end notification.
func (r *Runner[P, R]) shouldEndLocked() bool {
	if r.ended || r.notifying > 0 || len(r.pending) > 0 {
		return false
	}
	if !r.aborted && len(r.queued) > 0 {
		return false
	}
	if r.mode == ModeStreaming && !r.endRequested {
		return false
	}
	r.ended = true
	return true
}

func (r *Runner[P, R]) finish() {
	r.mu.Lock()
	s := r.statsLocked()
	aborted := r.aborted
	r.mu.Unlock()

	r.logger.Info("run ended", "queued", s.Queued, "done", s.Done, "aborted", aborted)
	r.notify(func(o Observer[P, R]) { o.OnEnd() })
	close(r.endCh)
}

func (r *Runner[P, R]) notify(fn func(Observer[P, R])) {
	r.obsMu.RLock()
	subs := r.observers
	r.obsMu.RUnlock()
	for _, s := range subs {
		fn(s.o)
	}
}
