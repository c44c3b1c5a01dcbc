package control

import (
	"fmt"

	"github.com/san-kum/taskctl/internal/dynamo"
)

// GetParams returns tunable parameters for live adjustment.
func (c *Controller) GetParams() map[string]float64 {
	s := c.Settings()
	return map[string]float64{
		"Kp":      s.Kp,
		"Kd":      s.Kd,
		"Damping": s.Damping,
		"TargetX": s.Target.X,
		"TargetY": s.Target.Y,
		"TargetZ": s.Target.Z,
	}
}

// SetParam adjusts one parameter by name.
func (c *Controller) SetParam(name string, value float64) error {
	var apply func(*Settings)
	switch name {
	case "Kp":
		apply = func(s *Settings) { s.Kp = value }
	case "Kd":
		apply = func(s *Settings) { s.Kd = value }
	case "Damping":
		apply = func(s *Settings) { s.Damping = value }
	case "TargetX":
		apply = func(s *Settings) { s.Target.X = value }
	case "TargetY":
		apply = func(s *Settings) { s.Target.Y = value }
	case "TargetZ":
		apply = func(s *Settings) { s.Target.Z = value }
	default:
		return fmt.Errorf("unknown parameter %q: %w", name, dynamo.ErrParameterBounds)
	}
	return c.Update(apply)
}

var _ dynamo.Configurable = (*Controller)(nil)
