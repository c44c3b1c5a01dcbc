package multibody

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mat3 is a 3x3 matrix used for orientations and rotational inertias.
type Mat3 [3][3]float64

func Identity3() Mat3 {
	return Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Diag3 returns a diagonal matrix.
func Diag3(x, y, z float64) Mat3 {
	return Mat3{{x, 0, 0}, {0, y, 0}, {0, 0, z}}
}

// RotationMat converts a rotation into its matrix form by rotating the basis.
func RotationMat(r r3.Rotation) Mat3 {
	ex := r.Rotate(r3.Vec{X: 1})
	ey := r.Rotate(r3.Vec{Y: 1})
	ez := r.Rotate(r3.Vec{Z: 1})
	return Mat3{
		{ex.X, ey.X, ez.X},
		{ex.Y, ey.Y, ez.Y},
		{ex.Z, ey.Z, ez.Z},
	}
}

// AxisAngle returns the matrix of a right-handed rotation by angle about axis.
func AxisAngle(axis r3.Vec, angle float64) Mat3 {
	if angle == 0 {
		return Identity3()
	}
	return RotationMat(r3.NewRotation(angle, axis))
}

func (m Mat3) MulVec(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

func (m Mat3) Mul(n Mat3) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][0]*n[0][j] + m[i][1]*n[1][j] + m[i][2]*n[2][j]
		}
	}
	return r
}

func (m Mat3) T() Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[j][i]
		}
	}
	return r
}

func (m Mat3) Add(n Mat3) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][j] + n[i][j]
		}
	}
	return r
}

func (m Mat3) Scale(f float64) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = f * m[i][j]
		}
	}
	return r
}

// Transform is a rigid transform X = (R, P): a point expressed in the child
// frame maps to R*p + P in the parent frame.
type Transform struct {
	R Mat3
	P r3.Vec
}

func IdentityTransform() Transform {
	return Transform{R: Identity3()}
}

// Translation returns a transform that only shifts the origin.
func Translation(p r3.Vec) Transform {
	return Transform{R: Identity3(), P: p}
}

func (x Transform) Apply(p r3.Vec) r3.Vec {
	return r3.Add(x.R.MulVec(p), x.P)
}

// Compose returns x∘y, the transform that applies y first and then x.
func (x Transform) Compose(y Transform) Transform {
	return Transform{R: x.R.Mul(y.R), P: x.Apply(y.P)}
}

// SpatialVec is a 6-vector split into angular and linear parts. Motion
// vectors are referenced to the ground origin: Linear is the velocity of the
// body-fixed point currently at the origin. Force vectors carry the moment
// about the origin in Angular.
type SpatialVec struct {
	Angular r3.Vec
	Linear  r3.Vec
}

func (a SpatialVec) Add(b SpatialVec) SpatialVec {
	return SpatialVec{Angular: r3.Add(a.Angular, b.Angular), Linear: r3.Add(a.Linear, b.Linear)}
}

func (a SpatialVec) Scale(f float64) SpatialVec {
	return SpatialVec{Angular: r3.Scale(f, a.Angular), Linear: r3.Scale(f, a.Linear)}
}

// Dot pairs a motion vector with a force vector (power).
func (a SpatialVec) Dot(f SpatialVec) float64 {
	return r3.Dot(a.Angular, f.Angular) + r3.Dot(a.Linear, f.Linear)
}

// CrossMotion is the motion cross product a ×m b.
func (a SpatialVec) CrossMotion(b SpatialVec) SpatialVec {
	return SpatialVec{
		Angular: r3.Cross(a.Angular, b.Angular),
		Linear:  r3.Add(r3.Cross(a.Angular, b.Linear), r3.Cross(a.Linear, b.Angular)),
	}
}

// CrossForce is the force cross product a ×f f.
func (a SpatialVec) CrossForce(f SpatialVec) SpatialVec {
	return SpatialVec{
		Angular: r3.Add(r3.Cross(a.Angular, f.Angular), r3.Cross(a.Linear, f.Linear)),
		Linear:  r3.Cross(a.Angular, f.Linear),
	}
}

// PointVelocity returns the velocity of the body-fixed point at p.
func (a SpatialVec) PointVelocity(p r3.Vec) r3.Vec {
	return r3.Add(a.Linear, r3.Cross(a.Angular, p))
}

// SpatialInertia is a rigid-body inertia expressed in ground about the
// ground origin: mass, first moment h = m*c, and rotational inertia about the
// origin. Inertias in the same frame add, which is what the composite-body
// accumulation relies on.
type SpatialInertia struct {
	Mass   float64
	Moment r3.Vec
	Rot    Mat3
}

func (in SpatialInertia) Add(o SpatialInertia) SpatialInertia {
	return SpatialInertia{
		Mass:   in.Mass + o.Mass,
		Moment: r3.Add(in.Moment, o.Moment),
		Rot:    in.Rot.Add(o.Rot),
	}
}

// Apply maps a motion vector to the momentum (force-like) vector I*v.
func (in SpatialInertia) Apply(v SpatialVec) SpatialVec {
	return SpatialVec{
		Angular: r3.Add(in.Rot.MulVec(v.Angular), r3.Cross(in.Moment, v.Linear)),
		Linear:  r3.Sub(r3.Scale(in.Mass, v.Linear), r3.Cross(in.Moment, v.Angular)),
	}
}

// CenterOfMass returns h/m, or the origin for a massless inertia.
func (in SpatialInertia) CenterOfMass() r3.Vec {
	if in.Mass == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/in.Mass, in.Moment)
}

// shiftToOrigin converts an inertia about the COM c (ground frame) into an
// inertia about the ground origin.
func shiftToOrigin(mass float64, c r3.Vec, icom Mat3) SpatialInertia {
	cc := r3.Dot(c, c)
	outer := Mat3{
		{c.X * c.X, c.X * c.Y, c.X * c.Z},
		{c.Y * c.X, c.Y * c.Y, c.Y * c.Z},
		{c.Z * c.X, c.Z * c.Y, c.Z * c.Z},
	}
	parallel := Diag3(cc, cc, cc).Add(outer.Scale(-1)).Scale(mass)
	return SpatialInertia{
		Mass:   mass,
		Moment: r3.Scale(mass, c),
		Rot:    icom.Add(parallel),
	}
}

func nearlyZero(v r3.Vec) bool {
	return math.Abs(v.X) < 1e-15 && math.Abs(v.Y) < 1e-15 && math.Abs(v.Z) < 1e-15
}
