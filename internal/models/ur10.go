package models

import (
	"math"

	"github.com/san-kum/taskctl/internal/multibody"
	"gonum.org/v1/gonum/spatial/r3"
)

// UR10 coordinate order.
const (
	ShoulderPan = iota
	ShoulderLift
	Elbow
	Wrist1
	Wrist2
	Wrist3
	UR10NumCoords
)

// NewUR10 approximates a UR10 six-joint arm: link lengths and masses follow
// the published kinematics, inertias come from rods and cylinders. z is up.
func NewUR10() *Arm {
	return &Arm{
		Name:        "ur10",
		Description: "UR10-like six-joint arm, z up",
		Links: []Link{
			{
				Name:   "shoulder",
				Joint:  multibody.NewPin(r3.Vec{Z: 1}),
				Offset: r3.Vec{Z: 0.1273},
				Mass:   multibody.Cylinder(7.1, 0.075, 0.18),
			},
			{
				Name:   "upper_arm",
				Parent: "shoulder",
				Joint:  multibody.NewPin(liftAxis),
				Offset: r3.Vec{Y: 0.220941},
				Mass:   multibody.UniformRod(12.7, 0.612),
			},
			{
				Name:   "forearm",
				Parent: "upper_arm",
				Joint:  multibody.NewPin(liftAxis),
				Offset: r3.Vec{X: 0.612, Y: -0.1719},
				Mass:   multibody.UniformRod(4.27, 0.5723),
			},
			{
				Name:   "wrist_1",
				Parent: "forearm",
				Joint:  multibody.NewPin(liftAxis),
				Offset: r3.Vec{X: 0.5723},
				Mass:   multibody.Cylinder(2.0, 0.045, 0.12),
			},
			{
				Name:   "wrist_2",
				Parent: "wrist_1",
				Joint:  multibody.NewPin(r3.Vec{Z: 1}),
				Offset: r3.Vec{Y: 0.1157},
				Mass:   multibody.Cylinder(2.0, 0.045, 0.12),
			},
			{
				Name:   "wrist_3",
				Parent: "wrist_2",
				Joint:  multibody.NewPin(r3.Vec{X: 1}),
				Offset: r3.Vec{Z: -0.1157},
				Mass:   multibody.Cylinder(0.365, 0.045, 0.0922),
			},
		},
		EndEffector:   Point{Link: "wrist_3", Local: r3.Vec{Z: 0.0922}},
		Forearm:       Point{Link: "forearm", Local: r3.Vec{X: 0.3, Z: 0.05}},
		TorqueLimits:  []float64{330, 330, 150, 56, 56, 56},
		HomeQ:         []float64{0, math.Pi / 4, math.Pi / 2, 0, 0, 0},
		Target:        r3.Vec{X: -0.4, Y: 0.1, Z: 1},
		ForearmTarget: r3.Vec{X: 0.1, Y: 0.1, Z: 0.5},
	}
}
