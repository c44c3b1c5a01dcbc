package multibody

import (
	"github.com/san-kum/taskctl/internal/stage"
	"gonum.org/v1/gonum/spatial/r3"
)

// positionCache holds everything computed at Position: ground poses, the
// motion subspace of every coordinate in ground, and each body's inertia
// about the ground origin.
type positionCache struct {
	X []Transform
	S []SpatialVec
	I []SpatialInertia
}

func (m *Mechanism) calcPositions(st *stage.State) (*positionCache, error) {
	t := m.tree
	q := st.Q()
	pc := &positionCache{
		X: make([]Transform, len(t.bodies)),
		S: make([]SpatialVec, t.nq),
		I: make([]SpatialInertia, len(t.bodies)),
	}
	pc.X[Ground] = IdentityTransform()

	for i := 1; i < len(t.bodies); i++ {
		b := &t.bodies[i]
		xgf := pc.X[b.Parent].Compose(b.Inboard)

		qi := 0.0
		if b.NumQ() > 0 {
			qi = q[b.firstQ]
		}
		pc.X[i] = xgf.Compose(b.Mobilizer.jointTransform(qi))

		if b.NumQ() > 0 {
			axis := xgf.R.MulVec(b.Mobilizer.Axis)
			switch b.Mobilizer.Kind {
			case Pin:
				pc.S[b.firstQ] = SpatialVec{Angular: axis, Linear: r3.Cross(xgf.P, axis)}
			case Slider:
				pc.S[b.firstQ] = SpatialVec{Linear: axis}
			}
		}

		r := pc.X[i].R
		com := pc.X[i].Apply(b.Mass.COM)
		pc.I[i] = shiftToOrigin(b.Mass.Mass, com, r.Mul(b.Mass.Inertia).Mul(r.T()))
	}
	return pc, nil
}

// velocityCache holds body spatial velocities, the time derivative of each
// coordinate's motion subspace, and each body's bias acceleration (its
// spatial acceleration when every u̇ is zero).
type velocityCache struct {
	V    []SpatialVec
	Sdot []SpatialVec
	A    []SpatialVec
}

func (m *Mechanism) calcVelocities(st *stage.State) (*velocityCache, error) {
	pc, err := m.pos.Get()
	if err != nil {
		return nil, err
	}
	t := m.tree
	u := st.U()
	vc := &velocityCache{
		V:    make([]SpatialVec, len(t.bodies)),
		Sdot: make([]SpatialVec, t.nq),
		A:    make([]SpatialVec, len(t.bodies)),
	}

	for i := 1; i < len(t.bodies); i++ {
		b := &t.bodies[i]
		v := vc.V[b.Parent]
		for k := b.firstQ; k < b.firstQ+b.NumQ(); k++ {
			v = v.Add(pc.S[k].Scale(u[k]))
		}
		vc.V[i] = v

		a := vc.A[b.Parent]
		for k := b.firstQ; k < b.firstQ+b.NumQ(); k++ {
			vc.Sdot[k] = v.CrossMotion(pc.S[k])
			a = a.Add(vc.Sdot[k].Scale(u[k]))
		}
		vc.A[i] = a
	}
	return vc, nil
}

// BodyTransform returns the pose of body b in ground. Requires Position.
func (m *Mechanism) BodyTransform(b BodyIndex) (Transform, error) {
	if err := m.tree.validBody(b); err != nil {
		return Transform{}, err
	}
	pc, err := m.pos.Get()
	if err != nil {
		return Transform{}, err
	}
	return pc.X[b], nil
}

// BodyVelocity returns the spatial velocity of body b, referenced to the
// ground origin. Requires Velocity.
func (m *Mechanism) BodyVelocity(b BodyIndex) (SpatialVec, error) {
	if err := m.tree.validBody(b); err != nil {
		return SpatialVec{}, err
	}
	vc, err := m.vel.Get()
	if err != nil {
		return SpatialVec{}, err
	}
	return vc.V[b], nil
}
