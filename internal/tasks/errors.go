package tasks

import "errors"

// ErrNotFound is returned for unknown task ids and for tasks the caller is
// not allowed to see.
var ErrNotFound = errors.New("task not found")

// ValidationError rejects a submission before anything is enqueued. The
// message is shown to the client verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
