package multibody

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// BodyIndex identifies a body in a Tree. Ground is always 0.
type BodyIndex int

const Ground BodyIndex = 0

var (
	// ErrTreeSealed indicates the topology was changed after a Mechanism was built on it.
	ErrTreeSealed = errors.New("multibody: tree topology is sealed")

	// ErrUnknownBody indicates a body index that is not part of the tree.
	ErrUnknownBody = errors.New("multibody: unknown body")
)

// MassProperties describes a body's inertia in its own frame.
type MassProperties struct {
	Mass float64
	// COM is the center of mass in the body frame.
	COM r3.Vec
	// Inertia is the rotational inertia about the COM, body frame.
	Inertia Mat3
}

// PointMass is a mass concentrated at com.
func PointMass(m float64, com r3.Vec) MassProperties {
	return MassProperties{Mass: m, COM: com}
}

// UniformRod is a thin rod of length l lying along the body x axis from the
// body origin.
func UniformRod(m, l float64) MassProperties {
	i := m * l * l / 12
	return MassProperties{
		Mass:    m,
		COM:     r3.Vec{X: l / 2},
		Inertia: Diag3(0, i, i),
	}
}

// Cylinder is a solid cylinder of radius r and length l along the body z
// axis from the body origin.
func Cylinder(m, r, l float64) MassProperties {
	ixy := m * (3*r*r + l*l) / 12
	return MassProperties{
		Mass:    m,
		COM:     r3.Vec{Z: l / 2},
		Inertia: Diag3(ixy, ixy, m*r*r/2),
	}
}

// MobilizerKind enumerates the supported joint types.
type MobilizerKind int

const (
	Weld MobilizerKind = iota
	Pin
	Slider
)

func (k MobilizerKind) String() string {
	switch k {
	case Weld:
		return "weld"
	case Pin:
		return "pin"
	case Slider:
		return "slider"
	default:
		return fmt.Sprintf("MobilizerKind(%d)", int(k))
	}
}

// Mobilizer connects a body to its parent. Axis is expressed in the joint
// frame F fixed on the parent.
type Mobilizer struct {
	Kind MobilizerKind
	Axis r3.Vec
}

func NewWeld() Mobilizer { return Mobilizer{Kind: Weld} }

// NewPin is a revolute joint about axis.
func NewPin(axis r3.Vec) Mobilizer { return Mobilizer{Kind: Pin, Axis: r3.Unit(axis)} }

// NewSlider is a prismatic joint along axis.
func NewSlider(axis r3.Vec) Mobilizer { return Mobilizer{Kind: Slider, Axis: r3.Unit(axis)} }

// NumQ returns the number of generalized coordinates the mobilizer adds.
func (m Mobilizer) NumQ() int {
	if m.Kind == Weld {
		return 0
	}
	return 1
}

// jointTransform returns X_FB for coordinate value q.
func (m Mobilizer) jointTransform(q float64) Transform {
	switch m.Kind {
	case Pin:
		return Transform{R: AxisAngle(m.Axis, q)}
	case Slider:
		return Translation(r3.Scale(q, m.Axis))
	default:
		return IdentityTransform()
	}
}

// Body is one rigid body in the tree.
type Body struct {
	Name      string
	Parent    BodyIndex
	Mobilizer Mobilizer
	// Inboard locates the joint frame F in the parent body frame.
	Inboard Transform
	Mass    MassProperties

	firstQ int
}

// FirstQ returns the index of the body's first generalized coordinate.
func (b Body) FirstQ() int { return b.firstQ }

// NumQ returns the number of coordinates contributed by the body's mobilizer.
func (b Body) NumQ() int { return b.Mobilizer.NumQ() }
