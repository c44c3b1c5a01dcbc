package taskspace

import (
	"fmt"
	"log/slog"

	"github.com/san-kum/taskctl/internal/dynamo"
	"github.com/san-kum/taskctl/internal/stage"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// inertia is the cached task-space inertia together with how it was
// obtained.
type inertia struct {
	lambda      *mat.SymDense
	cond        float64
	regularized bool
}

func (ts *TaskSpace) calcJacobian(*stage.State) (*mat.Dense, error) {
	if err := ts.checkTasks(); err != nil {
		return nil, err
	}
	j := mat.NewDense(ts.Dim(), ts.mech.NumQ(), nil)
	for i, task := range ts.tasks {
		js, err := ts.mech.StationJacobian(task.Station)
		if err != nil {
			return nil, err
		}
		j.Slice(3*i, 3*i+3, 0, ts.mech.NumQ()).(*mat.Dense).Copy(js)
	}
	return j, nil
}

func (ts *TaskSpace) calcJacobianDotU(*stage.State) (*mat.VecDense, error) {
	if err := ts.checkTasks(); err != nil {
		return nil, err
	}
	out := mat.NewVecDense(ts.Dim(), nil)
	for i, task := range ts.tasks {
		a, err := ts.mech.StationBiasAcceleration(task.Station)
		if err != nil {
			return nil, err
		}
		out.SetVec(3*i, a.X)
		out.SetVec(3*i+1, a.Y)
		out.SetVec(3*i+2, a.Z)
	}
	return out, nil
}

// calcMinvJT solves M X = Jᵀ. Xᵀ is J M⁻¹ since M is symmetric.
func (ts *TaskSpace) calcMinvJT(*stage.State) (*mat.Dense, error) {
	j, err := ts.jac.Get()
	if err != nil {
		return nil, err
	}
	var x mat.Dense
	if err := ts.mech.SolveMass(&x, j.T()); err != nil {
		return nil, err
	}
	return &x, nil
}

func (ts *TaskSpace) calcLambda(*stage.State) (*inertia, error) {
	j, err := ts.jac.Get()
	if err != nil {
		return nil, err
	}
	x, err := ts.minvJT.Get()
	if err != nil {
		return nil, err
	}

	var a mat.Dense
	a.Mul(j, x)
	k := ts.Dim()
	sym := mat.NewSymDense(k, nil)
	for r := 0; r < k; r++ {
		for c := r; c < k; c++ {
			sym.SetSym(r, c, 0.5*(a.At(r, c)+a.At(c, r)))
		}
	}

	var chol mat.Cholesky
	ok := chol.Factorize(sym)
	cond := 0.0
	if ok {
		cond = chol.Cond()
	}
	out := &inertia{cond: cond}

	if !ok || cond > ts.opts.MaxCondition {
		if ts.opts.Regularization == 0 {
			return nil, fmt.Errorf("task space %s: J M⁻¹ Jᵀ condition %.3g: %w: %w",
				ts.name, cond, dynamo.ErrSingularOperator, dynamo.ErrNumericalFailure)
		}
		for r := 0; r < k; r++ {
			sym.SetSym(r, r, sym.At(r, r)+ts.opts.Regularization)
		}
		if !chol.Factorize(sym) {
			return nil, fmt.Errorf("task space %s: regularized operator not positive definite: %w: %w",
				ts.name, dynamo.ErrSingularOperator, dynamo.ErrNumericalFailure)
		}
		ts.regularizations++
		out.regularized = true
		out.cond = chol.Cond()
		ts.logger.Debug("regularized task-space inertia",
			slog.Float64("epsilon", ts.opts.Regularization),
			slog.Float64("cond", out.cond),
			slog.Bool("factorized", ok))
	}

	out.lambda = mat.NewSymDense(k, nil)
	if err := chol.InverseTo(out.lambda); err != nil {
		return nil, fmt.Errorf("task space %s: invert: %v: %w", ts.name, err, dynamo.ErrNumericalFailure)
	}
	return out, nil
}

// calcMu is Λ J M⁻¹ bias − Λ J̇ u.
func (ts *TaskSpace) calcMu(*stage.State) (*mat.VecDense, error) {
	bias, err := ts.mech.BiasTorque()
	if err != nil {
		return nil, err
	}
	jdu, err := ts.jdotu.Get()
	if err != nil {
		return nil, err
	}
	r, err := ts.lambdaTimesJMinv(bias)
	if err != nil {
		return nil, err
	}
	lin, err := ts.lambda.Get()
	if err != nil {
		return nil, err
	}
	var lj mat.VecDense
	lj.MulVec(lin.lambda, jdu)
	r.SubVec(r, &lj)
	return r, nil
}

// calcP is Λ J M⁻¹ g.
func (ts *TaskSpace) calcP(*stage.State) (*mat.VecDense, error) {
	g, err := ts.mech.GravityTorque()
	if err != nil {
		return nil, err
	}
	return ts.lambdaTimesJMinv(g)
}

func (ts *TaskSpace) lambdaTimesJMinv(v mat.Vector) (*mat.VecDense, error) {
	x, err := ts.minvJT.Get()
	if err != nil {
		return nil, err
	}
	lin, err := ts.lambda.Get()
	if err != nil {
		return nil, err
	}
	var jmv, out mat.VecDense
	jmv.MulVec(x.T(), v)
	out.MulVec(lin.lambda, &jmv)
	return &out, nil
}

// calcNullSpace is N = I − Jᵀ Λ J M⁻¹, the projector applied to joint
// torques so they cause no task-space acceleration.
func (ts *TaskSpace) calcNullSpace(*stage.State) (*mat.Dense, error) {
	j, err := ts.jac.Get()
	if err != nil {
		return nil, err
	}
	x, err := ts.minvJT.Get()
	if err != nil {
		return nil, err
	}
	lin, err := ts.lambda.Get()
	if err != nil {
		return nil, err
	}

	n := ts.mech.NumQ()
	var jtl, proj mat.Dense
	jtl.Mul(j.T(), lin.lambda)
	proj.Mul(&jtl, x.T())

	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		out.Set(i, i, 1)
	}
	out.Sub(out, &proj)
	return out, nil
}

// J returns the stacked station Jacobian, Dim × n. Requires Velocity.
func (ts *TaskSpace) J() (*mat.Dense, error) { return ts.jac.Get() }

// JT returns Jᵀ as a view of J.
func (ts *TaskSpace) JT() (mat.Matrix, error) {
	j, err := ts.jac.Get()
	if err != nil {
		return nil, err
	}
	return j.T(), nil
}

// JDotU returns the stacked station bias accelerations J̇ u.
func (ts *TaskSpace) JDotU() (*mat.VecDense, error) { return ts.jdotu.Get() }

// Lambda returns the task-space inertia (J M⁻¹ Jᵀ)⁻¹.
func (ts *TaskSpace) Lambda() (*mat.SymDense, error) {
	lin, err := ts.lambda.Get()
	if err != nil {
		return nil, err
	}
	return lin.lambda, nil
}

// Regularized reports whether the current Λ needed regularizing, and the
// condition number of the operator that was finally inverted.
func (ts *TaskSpace) Regularized() (bool, float64, error) {
	lin, err := ts.lambda.Get()
	if err != nil {
		return false, 0, err
	}
	return lin.regularized, lin.cond, nil
}

// Mu returns the task-space bias force.
func (ts *TaskSpace) Mu() (*mat.VecDense, error) { return ts.mu.Get() }

// P returns the task-space gravity force.
func (ts *TaskSpace) P() (*mat.VecDense, error) { return ts.p.Get() }

// N returns the joint-torque null-space projector.
func (ts *TaskSpace) N() (*mat.Dense, error) { return ts.nproj.Get() }

// G returns the joint gravity torque of the underlying mechanism.
func (ts *TaskSpace) G() (*mat.VecDense, error) { return ts.mech.GravityTorque() }

// CalcInverseDynamics returns Jᵀ Λ fstar, the joint torque that produces
// task acceleration fstar when bias and gravity are already cancelled.
func (ts *TaskSpace) CalcInverseDynamics(fstar mat.Vector) (*mat.VecDense, error) {
	if fstar.Len() != ts.Dim() {
		return nil, fmt.Errorf("task space %s: %d task accelerations for dimension %d: %w",
			ts.name, fstar.Len(), ts.Dim(), dynamo.ErrDimensionMismatch)
	}
	j, err := ts.jac.Get()
	if err != nil {
		return nil, err
	}
	lin, err := ts.lambda.Get()
	if err != nil {
		return nil, err
	}
	var f, tau mat.VecDense
	f.MulVec(lin.lambda, fstar)
	tau.MulVec(j.T(), &f)
	return &tau, nil
}

// Project returns N v.
func (ts *TaskSpace) Project(v mat.Vector) (*mat.VecDense, error) {
	n, err := ts.nproj.Get()
	if err != nil {
		return nil, err
	}
	var out mat.VecDense
	out.MulVec(n, v)
	return &out, nil
}

// FindStationLocationAndVelocity returns the ground position and velocity
// of task i.
func (ts *TaskSpace) FindStationLocationAndVelocity(i int) (x, v r3.Vec, err error) {
	if i < 0 || i >= len(ts.tasks) {
		return r3.Vec{}, r3.Vec{}, fmt.Errorf("task space %s: task %d of %d: %w", ts.name, i, len(ts.tasks), dynamo.ErrDimensionMismatch)
	}
	return ts.mech.FindStationLocationAndVelocity(ts.tasks[i].Station)
}
