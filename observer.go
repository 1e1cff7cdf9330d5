package taskrunner

// Observer receives Runner lifecycle notifications.
//
// Notifications for one task are delivered in the order
// OnTake, OnStart, OnStop, OnDone, from the goroutine driving that task.
// Notifications for different tasks may interleave. OnBegin is the first
// notification of a run and OnEnd the last; OnEnd is delivered exactly once.
//
// Callbacks are invoked synchronously and outside the runner's state lock.
// They may query the runner (Pending, Results, ...) but must not call Enqueue
// or Wait.
type Observer[P, R any] interface {
	OnBegin()
	OnQueued(task *Task[P, R], queueLen int)
	OnTake(task *Task[P, R])
	OnStart(task *Task[P, R], s Stats)
	OnStop(err error, task *Task[P, R], result R, s Stats)
	OnDone(err error, task *Task[P, R], s Stats)
	OnEnd()
}

// Hooks implements Observer with optional callbacks; nil fields are skipped.
type Hooks[P, R any] struct {
	Begin  func()
	Queued func(task *Task[P, R], queueLen int)
	Take   func(task *Task[P, R])
	Start  func(task *Task[P, R], s Stats)
	Stop   func(err error, task *Task[P, R], result R, s Stats)
	Done   func(err error, task *Task[P, R], s Stats)
	End    func()
}

func (h Hooks[P, R]) OnBegin() {
	if h.Begin != nil {
		h.Begin()
	}
}

func (h Hooks[P, R]) OnQueued(task *Task[P, R], queueLen int) {
	if h.Queued != nil {
		h.Queued(task, queueLen)
	}
}

func (h Hooks[P, R]) OnTake(task *Task[P, R]) {
	if h.Take != nil {
		h.Take(task)
	}
}

func (h Hooks[P, R]) OnStart(task *Task[P, R], s Stats) {
	if h.Start != nil {
		h.Start(task, s)
	}
}

func (h Hooks[P, R]) OnStop(err error, task *Task[P, R], result R, s Stats) {
	if h.Stop != nil {
		h.Stop(err, task, result, s)
	}
}

func (h Hooks[P, R]) OnDone(err error, task *Task[P, R], s Stats) {
	if h.Done != nil {
		h.Done(err, task, s)
	}
}

func (h Hooks[P, R]) OnEnd() {
	if h.End != nil {
		h.End()
	}
}

// subscriber is an observer registered with a runner.
type subscriber[P, R any] struct {
	id int
	o  Observer[P, R]
}
