package admin

import "errors"

// ErrNotFound covers unknown moderation queue ids.
var ErrNotFound = errors.New("flag not found")

// ValidationError rejects a bad flag or update with a message the handler
// can return verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
