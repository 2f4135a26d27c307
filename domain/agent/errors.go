package agent

import "errors"

// Domain errors for the agent runtime.
var (
	// ErrScoreOutOfRange indicates a reflection score outside [0, 10].
	ErrScoreOutOfRange = errors.New("reflection score out of range")

	// ErrStepOutOfOrder indicates a step whose number does not follow the last appended step.
	ErrStepOutOfOrder = errors.New("step out of order")

	// ErrInvalidStatus indicates the status is not a recognized run status.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrBatchTimeout indicates a tool batch exceeded its overall deadline.
	ErrBatchTimeout = errors.New("tool batch timed out")
)
