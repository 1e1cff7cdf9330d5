package taskrunner

import "errors"

const Namespace = "taskrunner"

var (
	ErrInvalidState  = errors.New(Namespace + ": operation is not valid in the current runner state")
	ErrInvalidConfig = errors.New(Namespace + ": invalid configuration")
	ErrInvalidTask   = errors.New(Namespace + ": invalid task")
	ErrTaskExecuted  = errors.New(Namespace + ": task has already been executed")
	ErrTaskCancelled = errors.New(Namespace + ": task execution cancelled")
	ErrTaskPanicked  = errors.New(Namespace + ": task execution panicked")
	ErrGateNotHeld   = errors.New(Namespace + ": gate released without a holder")
	ErrAborted       = errors.New(Namespace + ": runner aborted")
)
