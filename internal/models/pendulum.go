package models

import (
	"github.com/san-kum/taskctl/internal/multibody"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	DefaultMass   = 1.0
	DefaultLength = 1.0
)

// liftAxis makes a positive joint angle raise a link lying along +x
// toward +z.
var liftAxis = r3.Vec{Y: -1}

// NewPendulum is a single actuated rod swinging in the x-z plane.
func NewPendulum() *Arm {
	return &Arm{
		Name:        "pendulum",
		Description: "single actuated rod in the x-z plane",
		Links: []Link{{
			Name:  "rod",
			Joint: multibody.NewPin(liftAxis),
			Mass:  multibody.UniformRod(DefaultMass, DefaultLength),
		}},
		EndEffector:  Point{Link: "rod", Local: r3.Vec{X: DefaultLength}},
		Forearm:      Point{Link: "rod", Local: r3.Vec{X: DefaultLength / 2}},
		TorqueLimits: []float64{20},
		HomeQ:        []float64{-0.5},
		Target:       r3.Vec{X: 0.8, Z: 0.6},
	}
}
