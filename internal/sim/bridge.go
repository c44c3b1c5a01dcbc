package sim

import (
	"errors"
	"fmt"

	"github.com/san-kum/taskctl/internal/control"
	"github.com/san-kum/taskctl/internal/dynamo"
)

// ErrTickOverrun is returned when the controller is asked for a second
// torque within the same tick.
var ErrTickOverrun = errors.New("sim: controller already invoked this tick")

// Plant is what the bridge needs from the simulated arm: a settable state
// and read-only sensors over it.
type Plant interface {
	control.Sensors
	SetState(x dynamo.State) error
}

// Bridge couples a plant to a controller. Each tick the plant state is
// published once, then the controller is invoked exactly once on it.
type Bridge struct {
	plant Plant
	ctrl  control.TorqueSource

	tick   int
	called bool
	last   dynamo.Control
}

func NewBridge(plant Plant, ctrl control.TorqueSource) *Bridge {
	return &Bridge{plant: plant, ctrl: ctrl}
}

// Begin starts a new tick with the plant in state x.
func (b *Bridge) Begin(x dynamo.State) error {
	if err := b.plant.SetState(x); err != nil {
		return err
	}
	b.tick++
	b.called = false
	return nil
}

// Torque invokes the controller for the current tick.
func (b *Bridge) Torque() (dynamo.Control, error) {
	if b.tick == 0 {
		return nil, fmt.Errorf("torque before first tick: %w", ErrTickOverrun)
	}
	if b.called {
		return nil, fmt.Errorf("tick %d: %w", b.tick, ErrTickOverrun)
	}
	b.called = true
	tau, err := b.ctrl.Torque(b.plant)
	if err != nil {
		return nil, err
	}
	if len(tau) != b.plant.NumCoords() {
		return nil, fmt.Errorf("tick %d: %d torques for %d coordinates: %w", b.tick, len(tau), b.plant.NumCoords(), dynamo.ErrDimensionMismatch)
	}
	b.last = dynamo.Control(tau)
	return b.last, nil
}

// Last is the most recent torque the controller produced.
func (b *Bridge) Last() dynamo.Control { return b.last }

// Ticks is the number of ticks begun.
func (b *Bridge) Ticks() int { return b.tick }
