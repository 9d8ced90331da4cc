package webhooks

import "errors"

// ErrNotFound covers unknown webhook ids and webhooks owned by someone else.
var ErrNotFound = errors.New("webhook not found")

// ValidationError rejects a malformed registration with a message the
// handler can return verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
