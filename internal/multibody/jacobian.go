package multibody

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Station is a point fixed on a body, given in the body frame.
type Station struct {
	Body  BodyIndex
	Point r3.Vec
}

func (s Station) String() string {
	return fmt.Sprintf("body %d @ (%g, %g, %g)", s.Body, s.Point.X, s.Point.Y, s.Point.Z)
}

// FindStationLocation returns the station's position in ground. Requires
// Position.
func (m *Mechanism) FindStationLocation(s Station) (r3.Vec, error) {
	if err := m.tree.validBody(s.Body); err != nil {
		return r3.Vec{}, err
	}
	pc, err := m.pos.Get()
	if err != nil {
		return r3.Vec{}, err
	}
	return pc.X[s.Body].Apply(s.Point), nil
}

// FindStationLocationAndVelocity returns the station's position and velocity
// in ground. Requires Velocity.
func (m *Mechanism) FindStationLocationAndVelocity(s Station) (x, v r3.Vec, err error) {
	x, err = m.FindStationLocation(s)
	if err != nil {
		return r3.Vec{}, r3.Vec{}, err
	}
	vc, err := m.vel.Get()
	if err != nil {
		return r3.Vec{}, r3.Vec{}, err
	}
	return x, vc.V[s.Body].PointVelocity(x), nil
}

// StationJacobian returns the 3×n matrix J with station velocity = J·u.
// Requires Position.
func (m *Mechanism) StationJacobian(s Station) (*mat.Dense, error) {
	x, err := m.FindStationLocation(s)
	if err != nil {
		return nil, err
	}
	top, err := m.topo.Get()
	if err != nil {
		return nil, err
	}
	pc, err := m.pos.Get()
	if err != nil {
		return nil, err
	}

	j := mat.NewDense(3, m.tree.nq, nil)
	for _, k := range top.support[s.Body] {
		setColumn3(j, k, pc.S[k].PointVelocity(x))
	}
	return j, nil
}

// StationJacobianDot returns J̇, the time derivative of StationJacobian.
// Requires Velocity.
func (m *Mechanism) StationJacobianDot(s Station) (*mat.Dense, error) {
	x, v, err := m.FindStationLocationAndVelocity(s)
	if err != nil {
		return nil, err
	}
	top, err := m.topo.Get()
	if err != nil {
		return nil, err
	}
	pc, err := m.pos.Get()
	if err != nil {
		return nil, err
	}
	vc, err := m.vel.Get()
	if err != nil {
		return nil, err
	}

	jd := mat.NewDense(3, m.tree.nq, nil)
	for _, k := range top.support[s.Body] {
		col := r3.Add(vc.Sdot[k].PointVelocity(x), r3.Cross(pc.S[k].Angular, v))
		setColumn3(jd, k, col)
	}
	return jd, nil
}

// StationBiasAcceleration returns J̇·u, the station's acceleration when
// every u̇ is zero. Requires Velocity.
func (m *Mechanism) StationBiasAcceleration(s Station) (r3.Vec, error) {
	x, v, err := m.FindStationLocationAndVelocity(s)
	if err != nil {
		return r3.Vec{}, err
	}
	vc, err := m.vel.Get()
	if err != nil {
		return r3.Vec{}, err
	}
	a := vc.A[s.Body]
	return r3.Add(a.PointVelocity(x), r3.Cross(vc.V[s.Body].Angular, v)), nil
}

// FrameJacobian returns the 6×n Jacobian of body b's spatial velocity, rows
// ordered angular then linear, linear part taken at the body origin.
// Requires Position.
func (m *Mechanism) FrameJacobian(b BodyIndex) (*mat.Dense, error) {
	origin, err := m.FindStationLocation(Station{Body: b})
	if err != nil {
		return nil, err
	}
	top, err := m.topo.Get()
	if err != nil {
		return nil, err
	}
	pc, err := m.pos.Get()
	if err != nil {
		return nil, err
	}

	j := mat.NewDense(6, m.tree.nq, nil)
	for _, k := range top.support[b] {
		s := pc.S[k]
		j.Set(0, k, s.Angular.X)
		j.Set(1, k, s.Angular.Y)
		j.Set(2, k, s.Angular.Z)
		lin := s.PointVelocity(origin)
		j.Set(3, k, lin.X)
		j.Set(4, k, lin.Y)
		j.Set(5, k, lin.Z)
	}
	return j, nil
}

func setColumn3(d *mat.Dense, k int, v r3.Vec) {
	d.Set(0, k, v.X)
	d.Set(1, k, v.Y)
	d.Set(2, k, v.Z)
}
