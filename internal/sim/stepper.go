package sim

import (
	"fmt"
	"time"

	"github.com/san-kum/taskctl/internal/control"
	"github.com/san-kum/taskctl/internal/dynamo"
)

// Tick describes one completed step of the loop.
type Tick struct {
	Step   int
	Time   float64
	State  dynamo.State // state the torque was computed in
	Torque dynamo.Control

	// Report is valid when Reported is set.
	Report   control.Report
	Reported bool

	// Held is the recoverable controller error the previous torque was
	// held through, if any.
	Held    error
	Elapsed time.Duration
}

// Stepper advances a closed loop one tick at a time. It is the unit both
// batch runs and interactive sessions are built on.
type Stepper struct {
	plant      System
	integrator dynamo.Integrator
	bridge     *Bridge
	reporter   Reporter
	cfg        Config

	x    dynamo.State
	t    float64
	step int
}

func NewStepper(plant System, ctrl control.TorqueSource, integrator dynamo.Integrator, x0 dynamo.State, cfg Config) (*Stepper, error) {
	if cfg.Dt <= 0 {
		return nil, fmt.Errorf("dt must be positive, got %g: %w", cfg.Dt, dynamo.ErrParameterBounds)
	}
	if len(x0) != plant.StateDim() {
		return nil, fmt.Errorf("initial state of length %d, want %d: %w", len(x0), plant.StateDim(), dynamo.ErrDimensionMismatch)
	}
	reporter, _ := ctrl.(Reporter)
	return &Stepper{
		plant:      plant,
		integrator: integrator,
		bridge:     NewBridge(plant, ctrl),
		reporter:   reporter,
		cfg:        cfg,
		x:          x0.Clone(),
	}, nil
}

func (s *Stepper) State() dynamo.State { return s.x.Clone() }
func (s *Stepper) Time() float64       { return s.t }
func (s *Stepper) Steps() int          { return s.step }

// Reset restarts the loop from x0 at t = 0.
func (s *Stepper) Reset(x0 dynamo.State) error {
	if len(x0) != s.plant.StateDim() {
		return fmt.Errorf("reset state of length %d, want %d: %w", len(x0), s.plant.StateDim(), dynamo.ErrDimensionMismatch)
	}
	s.x, s.t, s.step = x0.Clone(), 0, 0
	return nil
}

// Step senses, invokes the controller once and integrates over one dt.
// Errors are *dynamo.SimulationError and leave the state unchanged.
func (s *Stepper) Step() (Tick, error) {
	tick := Tick{Step: s.step, Time: s.t, State: s.x.Clone()}
	if err := s.bridge.Begin(s.x); err != nil {
		return tick, s.fail(err)
	}

	start := time.Now()
	tau, err := s.bridge.Torque()
	tick.Elapsed = time.Since(start)
	if err != nil {
		if dynamo.Classify(err) != dynamo.Recoverable || !s.cfg.HoldOnRecoverable || s.bridge.Last() == nil {
			return tick, s.fail(err)
		}
		tick.Held = err
		tau = s.bridge.Last()
	}
	tick.Torque = tau.Clone()
	if s.reporter != nil && tick.Held == nil {
		tick.Report, tick.Reported = s.reporter.LastReport(), true
	}

	next := s.integrator.Step(s.plant, s.x, tau, s.t, s.cfg.Dt)
	if !next.IsValid() {
		return tick, s.fail(dynamo.ErrInvalidState)
	}
	s.x = next
	s.step++
	s.t = float64(s.step) * s.cfg.Dt
	return tick, nil
}

func (s *Stepper) fail(err error) error {
	return &dynamo.SimulationError{Step: s.step, Time: s.t, State: s.x.Clone(), Wrapped: err}
}
