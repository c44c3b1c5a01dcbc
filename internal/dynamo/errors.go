package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for model and controller operations.
var (
	// ErrInvalidState indicates a state vector containing NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates vector or matrix sizes that disagree with the coordinate count.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")

	// ErrSingularOperator indicates a mass matrix or task-space operator that cannot be inverted.
	ErrSingularOperator = errors.New("dynamo: singular operator")

	// ErrNumericalFailure indicates a numerical failure that local regularization could not absorb.
	ErrNumericalFailure = errors.New("dynamo: numerical failure")

	// ErrSensorRead indicates the sensing bridge could not obtain a value.
	ErrSensorRead = errors.New("dynamo: sensor read failed")

	// ErrReentrantInvocation indicates a controller was invoked while a previous invocation was running.
	ErrReentrantInvocation = errors.New("dynamo: reentrant controller invocation")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")
)

// Class groups errors by how the control loop should react to them.
type Class int

const (
	// Fatal errors are contract violations; the loop must halt.
	Fatal Class = iota
	// Recoverable errors can be absorbed locally, e.g. by regularization.
	Recoverable
	// Invalid errors come from bad input or configuration.
	Invalid
)

func (c Class) String() string {
	switch c {
	case Fatal:
		return "fatal"
	case Recoverable:
		return "recoverable"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Classify returns the Class of err. A singular operator is recoverable
// unless it has already been escalated to a numerical failure.
func Classify(err error) Class {
	switch {
	case errors.Is(err, ErrNumericalFailure):
		return Fatal
	case errors.Is(err, ErrSingularOperator):
		return Recoverable
	case errors.Is(err, ErrParameterBounds):
		return Invalid
	default:
		return Fatal
	}
}

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
