package control

import (
	"fmt"
	"math"

	"github.com/san-kum/taskctl/internal/dynamo"
	"github.com/san-kum/taskctl/internal/models"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	DefaultKp      = 100.0
	DefaultKd      = 20.0
	DefaultDamping = 0.1

	// TargetIncrement is how far one key press moves the target.
	TargetIncrement = 0.05
)

// Axis selects a ground axis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// Settings is the runtime-mutable part of a Controller.
type Settings struct {
	Target  r3.Vec
	Kp      float64
	Kd      float64
	Damping float64

	TrackTarget       bool
	CompensateGravity bool

	SecondaryEnabled bool
	SecondaryTarget  r3.Vec
}

// DefaultSettings tracks the arm's default target with gravity
// compensation on and the secondary task off.
func DefaultSettings(arm *models.Arm) Settings {
	return Settings{
		Target:            arm.Target,
		Kp:                DefaultKp,
		Kd:                DefaultKd,
		Damping:           DefaultDamping,
		TrackTarget:       true,
		CompensateGravity: true,
		SecondaryTarget:   arm.ForearmTarget,
	}
}

func (s Settings) Validate() error {
	for name, v := range map[string]float64{"Kp": s.Kp, "Kd": s.Kd, "Damping": s.Damping} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s = %g: %w", name, v, dynamo.ErrParameterBounds)
		}
	}
	for _, p := range []r3.Vec{s.Target, s.SecondaryTarget} {
		if !finite(p) {
			return fmt.Errorf("target %+v: %w", p, dynamo.ErrParameterBounds)
		}
	}
	return nil
}

func finite(v r3.Vec) bool {
	for _, x := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func nudge(v r3.Vec, axis Axis, delta float64) (r3.Vec, error) {
	switch axis {
	case AxisX:
		v.X += delta
	case AxisY:
		v.Y += delta
	case AxisZ:
		v.Z += delta
	default:
		return v, fmt.Errorf("move target along %s: %w", axis, dynamo.ErrParameterBounds)
	}
	return v, nil
}
