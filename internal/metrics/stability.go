package metrics

import (
	"math"

	"github.com/san-kum/taskctl/internal/dynamo"
)

// Saturation is the fraction of ticks on which at least one joint torque
// sat at its limit.
type Saturation struct {
	name       string
	limits     []float64
	violations int
	samples    int
}

func NewSaturation(limits []float64) *Saturation {
	return &Saturation{
		name:   "saturation",
		limits: limits,
	}
}

func (s *Saturation) Name() string {
	return s.name
}

func (s *Saturation) Observe(x dynamo.State, u dynamo.Control, t float64) {
	s.samples++
	for i, val := range u {
		if i < len(s.limits) && math.Abs(val) >= s.limits[i]*(1-1e-12) {
			s.violations++
			break
		}
	}
}

func (s *Saturation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.violations) / float64(s.samples)
}

func (s *Saturation) Reset() {
	s.violations = 0
	s.samples = 0
}

// Divergence counts ticks where any state component left ±threshold,
// catching runaway joints before they turn into NaN.
type Divergence struct {
	name       string
	threshold  float64
	violations int
}

func NewDivergence(threshold float64) *Divergence {
	return &Divergence{name: "divergence", threshold: threshold}
}

func (d *Divergence) Name() string { return d.name }

func (d *Divergence) Observe(x dynamo.State, u dynamo.Control, t float64) {
	for _, val := range x {
		if math.Abs(val) > d.threshold {
			d.violations++
			return
		}
	}
}

func (d *Divergence) Value() float64 { return float64(d.violations) }
func (d *Divergence) Reset()         { d.violations = 0 }
