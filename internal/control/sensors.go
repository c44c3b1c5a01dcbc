package control

import "gonum.org/v1/gonum/spatial/r3"

// Sensors is the read-only view of the real arm the controller samples
// once per call.
type Sensors interface {
	NumCoords() int
	SenseJointAngle(i int) (float64, error)
	SenseJointRate(i int) (float64, error)
}

// EndEffectorSensor is implemented by arms that can measure where their
// end effector is, independently of the joint encoders.
type EndEffectorSensor interface {
	SenseEndEffectorPosition() (r3.Vec, error)
}

// TorqueSource produces one torque command per call.
type TorqueSource interface {
	Torque(s Sensors) ([]float64, error)
}
