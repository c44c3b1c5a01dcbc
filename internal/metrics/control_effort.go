package metrics

import (
	"math"

	"github.com/san-kum/taskctl/internal/dynamo"
	"gonum.org/v1/gonum/floats"
)

// ControlEffort is the RMS joint torque over all observed ticks.
type ControlEffort struct {
	name    string
	sumSq   float64
	peak    float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(u) == 0 {
		return
	}
	c.sumSq += floats.Dot(u, u) / float64(len(u))
	c.peak = math.Max(c.peak, floats.Norm(u, math.Inf(1)))
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return math.Sqrt(c.sumSq / float64(c.samples))
}

// Peak is the largest single-joint torque magnitude seen.
func (c *ControlEffort) Peak() float64 { return c.peak }

func (c *ControlEffort) Reset() {
	c.sumSq = 0
	c.peak = 0
	c.samples = 0
}
