package taskrunner

import (
	"time"

	"github.com/google/uuid"
)

// Outcome records one execution of a Task.
//
// Exactly one of Result and Err is meaningful once the outcome is in the done
// list: Err is non-nil iff the execution failed. Outcomes returned by Results
// are copies and may be read freely.
type Outcome[P, R any] struct {
	ID       uuid.UUID
	Task     *Task[P, R]
	Result   R
	Err      error
	Started  time.Time
	Finished time.Time
}

// Failed reports whether the execution failed.
func (o Outcome[P, R]) Failed() bool { return o.Err != nil }

// Index returns the task's sequence index, or zero when none was assigned.
func (o Outcome[P, R]) Index() int {
	if o.Task == nil {
		return 0
	}
	i, _ := o.Task.Index()
	return i
}

// Duration is the time spent executing the task body.
func (o Outcome[P, R]) Duration() time.Duration {
	if o.Started.IsZero() || o.Finished.IsZero() {
		return 0
	}
	return o.Finished.Sub(o.Started)
}

// Stats is a point-in-time view of the runner's collections.
type Stats struct {
	Queued  int
	Pending int
	Done    int
}
