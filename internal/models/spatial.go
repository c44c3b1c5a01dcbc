package models

import (
	"github.com/san-kum/taskctl/internal/multibody"
	"gonum.org/v1/gonum/spatial/r3"
)

// NewSpatialArm is a four-joint arm: a base yaw followed by three pitch
// joints. It is redundant for a point task, so its null space is never
// empty.
func NewSpatialArm() *Arm {
	return &Arm{
		Name:        "spatial4",
		Description: "yaw plus three pitch joints, redundant for point reaching",
		Links: []Link{
			{
				Name:   "base",
				Joint:  multibody.NewPin(r3.Vec{Z: 1}),
				Offset: r3.Vec{Z: 0.3},
				Mass:   multibody.Cylinder(2.0, 0.06, 0.1),
			},
			{
				Name:   "upper",
				Parent: "base",
				Joint:  multibody.NewPin(liftAxis),
				Mass:   multibody.UniformRod(1.5, 0.5),
			},
			{
				Name:   "fore",
				Parent: "upper",
				Joint:  multibody.NewPin(liftAxis),
				Offset: r3.Vec{X: 0.5},
				Mass:   multibody.UniformRod(1.0, 0.4),
			},
			{
				Name:   "hand",
				Parent: "fore",
				Joint:  multibody.NewPin(liftAxis),
				Offset: r3.Vec{X: 0.4},
				Mass:   multibody.UniformRod(0.4, 0.2),
			},
		},
		EndEffector:   Point{Link: "hand", Local: r3.Vec{X: 0.2}},
		Forearm:       Point{Link: "fore", Local: r3.Vec{X: 0.2}},
		TorqueLimits:  []float64{80, 80, 50, 20},
		HomeQ:         []float64{0.3, 0.6, -1.0, -0.4},
		Target:        r3.Vec{X: 0.5, Y: 0.3, Z: 0.5},
		ForearmTarget: r3.Vec{X: 0.3, Y: 0.1, Z: 0.6},
	}
}
