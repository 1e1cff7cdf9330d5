package taskrunner

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// TaskError is the failure recorded in an Outcome. It wraps the task's own error
// and carries the outcome id and task index for correlation.
type TaskError struct {
	Err       error
	OutcomeID uuid.UUID
	Index     int
	Indexed   bool
}

func newTaskError(err error, id uuid.UUID, index int, indexed bool) error {
	if err == nil {
		return nil
	}
	return &TaskError{Err: err, OutcomeID: id, Index: index, Indexed: indexed}
}

func (e *TaskError) Error() string { return e.Err.Error() }
func (e *TaskError) Unwrap() error { return e.Err }

func (e *TaskError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			if e.Indexed {
				_, _ = fmt.Fprintf(s, "task(index=%d,outcome=%s): %+v", e.Index, e.OutcomeID, e.Err)
			} else {
				_, _ = fmt.Fprintf(s, "task(outcome=%s): %+v", e.OutcomeID, e.Err)
			}
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// ExtractTaskIndex returns the task index carried by err, if any.
func ExtractTaskIndex(err error) (int, bool) {
	var te *TaskError
	if errors.As(err, &te) && te.Indexed {
		return te.Index, true
	}
	return 0, false
}

// ExtractOutcomeID returns the outcome id carried by err, if any.
func ExtractOutcomeID(err error) (uuid.UUID, bool) {
	var te *TaskError
	if errors.As(err, &te) {
		return te.OutcomeID, true
	}
	return uuid.Nil, false
}
