package run

import "errors"

// Domain errors for run history operations.
var (
	// ErrRunNotFound is returned when a run does not exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunExists is returned when attempting to record a run that already exists.
	ErrRunExists = errors.New("run already exists")

	// ErrInvalidRunID is returned when a run ID is empty.
	ErrInvalidRunID = errors.New("invalid run ID")
)
