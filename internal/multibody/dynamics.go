package multibody

import (
	"fmt"

	"github.com/san-kum/taskctl/internal/dynamo"
	"github.com/san-kum/taskctl/internal/stage"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// massMatrixChunk is the smallest number of columns worth a goroutine.
const massMatrixChunk = 8

// calcCompositeInertias folds every body's inertia into its parent, leaves
// first. All inertias are about the ground origin, so folding is a sum.
// Entry 0 ends up holding the whole mechanism.
func (m *Mechanism) calcCompositeInertias(*stage.State) ([]SpatialInertia, error) {
	pc, err := m.pos.Get()
	if err != nil {
		return nil, err
	}
	ic := make([]SpatialInertia, len(pc.I))
	copy(ic, pc.I)
	for i := len(ic) - 1; i >= 1; i-- {
		p := m.tree.bodies[i].Parent
		ic[p] = ic[p].Add(ic[i])
	}
	return ic, nil
}

// calcMassMatrix fills M with the composite-rigid-body method: column i is
// the composite inertia of coordinate i's body applied to its motion
// subspace, projected on every supporting coordinate.
func (m *Mechanism) calcMassMatrix(*stage.State) (*mat.SymDense, error) {
	top, err := m.topo.Get()
	if err != nil {
		return nil, err
	}
	pc, err := m.pos.Get()
	if err != nil {
		return nil, err
	}
	ic, err := m.composite.Get()
	if err != nil {
		return nil, err
	}

	nq := m.tree.nq
	mm := mat.NewSymDense(nq, nil)
	dynamo.ParallelFor(nq, massMatrixChunk, func(start, end int) {
		for i := start; i < end; i++ {
			b := top.coordOf[i]
			f := ic[b].Apply(pc.S[i])
			for _, j := range top.support[b] {
				if j > i {
					break
				}
				mm.SetSym(j, i, pc.S[j].Dot(f))
			}
		}
	})
	return mm, nil
}

func (m *Mechanism) calcMassFactorization(*stage.State) (*mat.Cholesky, error) {
	mm, err := m.mass.Get()
	if err != nil {
		return nil, err
	}
	var chol mat.Cholesky
	if chol.Factorize(mm) {
		return &chol, nil
	}
	eps := m.massEps.Get()
	if eps == 0 {
		return nil, fmt.Errorf("mass matrix not positive definite: %w: %w",
			dynamo.ErrSingularOperator, dynamo.ErrNumericalFailure)
	}
	shifted := mat.NewSymDense(mm.SymmetricDim(), nil)
	shifted.CopySym(mm)
	for i := 0; i < shifted.SymmetricDim(); i++ {
		shifted.SetSym(i, i, shifted.At(i, i)+eps)
	}
	if !chol.Factorize(shifted) {
		return nil, fmt.Errorf("regularized mass matrix not positive definite: %w: %w",
			dynamo.ErrSingularOperator, dynamo.ErrNumericalFailure)
	}
	m.massRegularizations++
	return &chol, nil
}

// calcGravityTorque returns g, the joint torque that holds the mechanism
// still against gravity. The gravity wrench on a subtree about the origin is
// (h × g, m g) with h the subtree's first moment, read off the composite
// inertias.
func (m *Mechanism) calcGravityTorque(*stage.State) (*mat.VecDense, error) {
	top, err := m.topo.Get()
	if err != nil {
		return nil, err
	}
	mc, err := m.model.Get()
	if err != nil {
		return nil, err
	}
	pc, err := m.pos.Get()
	if err != nil {
		return nil, err
	}
	ic, err := m.composite.Get()
	if err != nil {
		return nil, err
	}

	g := mc.gravity
	tau := mat.NewVecDense(m.tree.nq, nil)
	for i := 0; i < m.tree.nq; i++ {
		sub := ic[top.coordOf[i]]
		w := SpatialVec{Angular: r3.Cross(sub.Moment, g), Linear: r3.Scale(sub.Mass, g)}
		tau.SetVec(i, -pc.S[i].Dot(w))
	}
	return tau, nil
}

// calcBiasTorque returns the Coriolis and centrifugal generalized force: the
// inverse dynamics of the current velocities with zero acceleration and no
// gravity.
func (m *Mechanism) calcBiasTorque(*stage.State) (*mat.VecDense, error) {
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

	nb := len(m.tree.bodies)
	f := make([]SpatialVec, nb)
	for i := 1; i < nb; i++ {
		in := pc.I[i]
		f[i] = in.Apply(vc.A[i]).Add(vc.V[i].CrossForce(in.Apply(vc.V[i])))
	}
	for i := nb - 1; i >= 1; i-- {
		if p := m.tree.bodies[i].Parent; p != Ground {
			f[p] = f[p].Add(f[i])
		}
	}

	tau := mat.NewVecDense(m.tree.nq, nil)
	for i := 0; i < m.tree.nq; i++ {
		tau.SetVec(i, pc.S[i].Dot(f[top.coordOf[i]]))
	}
	return tau, nil
}

// MassMatrix returns M. Requires Velocity. The matrix is owned by the cache.
func (m *Mechanism) MassMatrix() (*mat.SymDense, error) { return m.mass.Get() }

// MassFactorization returns the Cholesky factorization of M. Requires Velocity.
func (m *Mechanism) MassFactorization() (*mat.Cholesky, error) { return m.chol.Get() }

// GravityTorque returns g. Requires Velocity.
func (m *Mechanism) GravityTorque() (*mat.VecDense, error) { return m.gravTau.Get() }

// BiasTorque returns the Coriolis/centrifugal term. Requires Velocity.
func (m *Mechanism) BiasTorque() (*mat.VecDense, error) { return m.biasTau.Get() }

// CompositeInertias returns the subtree inertia rooted at every body.
// Requires Velocity.
func (m *Mechanism) CompositeInertias() ([]SpatialInertia, error) { return m.composite.Get() }

// SolveMass sets dst = M⁻¹ b without forming M⁻¹.
func (m *Mechanism) SolveMass(dst *mat.Dense, b mat.Matrix) error {
	r, _ := b.Dims()
	if r != m.tree.nq {
		return fmt.Errorf("solve mass: rhs has %d rows, want %d: %w", r, m.tree.nq, dynamo.ErrDimensionMismatch)
	}
	chol, err := m.chol.Get()
	if err != nil {
		return err
	}
	if err := chol.SolveTo(dst, b); err != nil {
		return fmt.Errorf("solve mass: %v: %w", err, dynamo.ErrSingularOperator)
	}
	return nil
}

// SolveMassVec sets dst = M⁻¹ b without forming M⁻¹.
func (m *Mechanism) SolveMassVec(dst *mat.VecDense, b mat.Vector) error {
	if b.Len() != m.tree.nq {
		return fmt.Errorf("solve mass: rhs has %d entries, want %d: %w", b.Len(), m.tree.nq, dynamo.ErrDimensionMismatch)
	}
	chol, err := m.chol.Get()
	if err != nil {
		return err
	}
	if err := chol.SolveVecTo(dst, b); err != nil {
		return fmt.Errorf("solve mass: %v: %w", err, dynamo.ErrSingularOperator)
	}
	return nil
}

// CalcForwardDynamics returns u̇ = M⁻¹(τ − bias − g) for applied joint
// torques tau. Requires Velocity.
func (m *Mechanism) CalcForwardDynamics(tau []float64) ([]float64, error) {
	if len(tau) != m.tree.nq {
		return nil, fmt.Errorf("forward dynamics: %d torques for %d coordinates: %w", len(tau), m.tree.nq, dynamo.ErrDimensionMismatch)
	}
	bias, err := m.biasTau.Get()
	if err != nil {
		return nil, err
	}
	grav, err := m.gravTau.Get()
	if err != nil {
		return nil, err
	}

	rhs := mat.NewVecDense(m.tree.nq, append([]float64(nil), tau...))
	rhs.SubVec(rhs, bias)
	rhs.SubVec(rhs, grav)

	udot := mat.NewVecDense(m.tree.nq, nil)
	if err := m.SolveMassVec(udot, rhs); err != nil {
		return nil, err
	}
	return udot.RawVector().Data, nil
}

// KineticEnergy returns ½ uᵀ M u. Requires Velocity.
func (m *Mechanism) KineticEnergy() (float64, error) {
	mm, err := m.mass.Get()
	if err != nil {
		return 0, err
	}
	u := mat.NewVecDense(m.tree.nq, append([]float64(nil), m.state.U()...))
	return 0.5 * mat.Inner(u, mm, u), nil
}

// PotentialEnergy returns the gravitational potential energy relative to the
// ground origin. Requires Velocity.
func (m *Mechanism) PotentialEnergy() (float64, error) {
	ic, err := m.composite.Get()
	if err != nil {
		return 0, err
	}
	return -r3.Dot(m.gravity.Get(), ic[Ground].Moment), nil
}
