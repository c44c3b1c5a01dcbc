package sim

import (
	"fmt"

	"github.com/san-kum/taskctl/internal/dynamo"
)

// Config controls a closed-loop run.
type Config struct {
	Dt       float64
	Duration float64

	// HoldOnRecoverable keeps applying the previous torque when the
	// controller fails with a recoverable error instead of ending the run.
	HoldOnRecoverable bool
}

func (c Config) Steps() int {
	return int(c.Duration/c.Dt + 0.5)
}

func (c Config) Validate() error {
	if c.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %g: %w", c.Dt, dynamo.ErrParameterBounds)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %g: %w", c.Duration, dynamo.ErrParameterBounds)
	}
	if c.Duration < c.Dt {
		return fmt.Errorf("duration %g shorter than dt %g: %w", c.Duration, c.Dt, dynamo.ErrParameterBounds)
	}
	return nil
}

// Result holds one sample per tick. States has one more entry than
// Torques: the state the run ended in.
type Result struct {
	Times      []float64
	States     []dynamo.State
	Torques    []dynamo.Control
	TaskErrors []float64
	Metrics    map[string]float64

	StepsTaken      int
	Failures        int
	Regularizations int
	Saturations     int
}

// Final returns the last recorded state.
func (r *Result) Final() dynamo.State {
	if len(r.States) == 0 {
		return nil
	}
	return r.States[len(r.States)-1]
}

// FinalTaskError returns the task error sampled on the last tick, or 0
// when the controller did not report one.
func (r *Result) FinalTaskError() float64 {
	if len(r.TaskErrors) == 0 {
		return 0
	}
	return r.TaskErrors[len(r.TaskErrors)-1]
}
