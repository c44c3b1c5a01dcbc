package stage

import (
	"errors"
	"fmt"
)

// Contract errors raised by the stage cache. All of them are programming
// errors from the caller's point of view and are not recoverable.
var (
	// ErrStageViolation indicates a stage was realized before the stages below it.
	ErrStageViolation = errors.New("stage: lower stages not realized")

	// ErrStageNotRealized indicates a cache entry was read before its stage was realized.
	ErrStageNotRealized = errors.New("stage: entry read before its stage was realized")

	// ErrUnsupportedDerivativeOrder indicates a computation was asked for a derivative it cannot supply.
	ErrUnsupportedDerivativeOrder = errors.New("stage: unsupported derivative order")

	// ErrInvalidStage indicates a stage value outside Empty..Acceleration.
	ErrInvalidStage = errors.New("stage: invalid stage")
)

// StageError wraps a stage contract error with the stage that was required
// and the stage the State had actually reached.
type StageError struct {
	Op      string
	Entry   string
	Want    Stage
	Have    Stage
	Wrapped error
}

func (e *StageError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("%s %q: want %s, realized %s: %v", e.Op, e.Entry, e.Want, e.Have, e.Wrapped)
	}
	return fmt.Sprintf("%s: want %s, realized %s: %v", e.Op, e.Want, e.Have, e.Wrapped)
}

func (e *StageError) Unwrap() error {
	return e.Wrapped
}
