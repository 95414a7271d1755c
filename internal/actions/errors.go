package actions

import "errors"

var (
	// ErrNotFound is returned when an action ID does not exist.
	ErrNotFound = errors.New("action not found")

	// ErrAlreadyCompleted is returned when completing an action twice.
	ErrAlreadyCompleted = errors.New("action already completed")

	// ErrEmptyToolName is returned when enqueueing without a tool name.
	ErrEmptyToolName = errors.New("tool name is required")
)
