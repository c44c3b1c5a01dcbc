package models

import (
	"github.com/san-kum/taskctl/internal/multibody"
	"gonum.org/v1/gonum/spatial/r3"
)

// NewTwoLinkArm is a planar shoulder-elbow arm of two uniform rods moving
// in the x-z plane. Its task Jacobian never has a y row, so reaching always
// runs through the regularized task-space inertia.
func NewTwoLinkArm() *Arm {
	return &Arm{
		Name:        "two-link",
		Description: "planar shoulder-elbow arm in the x-z plane",
		Links: []Link{
			{
				Name:  "upper",
				Joint: multibody.NewPin(liftAxis),
				Mass:  multibody.UniformRod(DefaultMass, DefaultLength),
			},
			{
				Name:   "lower",
				Parent: "upper",
				Joint:  multibody.NewPin(liftAxis),
				Offset: r3.Vec{X: DefaultLength},
				Mass:   multibody.UniformRod(DefaultMass, DefaultLength),
			},
		},
		EndEffector:   Point{Link: "lower", Local: r3.Vec{X: DefaultLength}},
		Forearm:       Point{Link: "upper", Local: r3.Vec{X: DefaultLength}},
		TorqueLimits:  []float64{100, 100},
		HomeQ:         []float64{-1.2, 1.8},
		Target:        r3.Vec{X: 1.4, Z: -0.3},
		ForearmTarget: r3.Vec{X: 0.5, Z: -0.8},
	}
}
