package analyses

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrTextTooShort rejects submissions under MinAnalysisLength runes.
	ErrTextTooShort = errors.New("Please enter at least one full sentence or a valid URL")

	// ErrModelUnavailable means every classification backend failed.
	ErrModelUnavailable = errors.New("classification service unavailable")
)
