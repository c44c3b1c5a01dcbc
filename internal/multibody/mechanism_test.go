package multibody

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/taskctl/internal/dynamo"
	"github.com/san-kum/taskctl/internal/stage"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

const g0 = 9.80665

var yAxis = r3.Vec{Y: 1}

func newPendulum(t *testing.T, m, l float64) (*Mechanism, BodyIndex) {
	t.Helper()
	tree := NewTree()
	link, err := tree.AddBody("link", Ground, NewPin(yAxis), IdentityTransform(), PointMass(m, r3.Vec{X: l}))
	if err != nil {
		t.Fatalf("add body: %v", err)
	}
	mech, err := NewMechanism(tree, StandardGravity)
	if err != nil {
		t.Fatalf("new mechanism: %v", err)
	}
	return mech, link
}

func newTwoLink(t *testing.T, m1, m2, l1, l2 float64) (*Mechanism, BodyIndex) {
	t.Helper()
	tree := NewTree()
	upper, err := tree.AddBody("upper", Ground, NewPin(yAxis), IdentityTransform(), PointMass(m1, r3.Vec{X: l1}))
	if err != nil {
		t.Fatalf("add upper: %v", err)
	}
	lower, err := tree.AddBody("lower", upper, NewPin(yAxis), Translation(r3.Vec{X: l1}), PointMass(m2, r3.Vec{X: l2}))
	if err != nil {
		t.Fatalf("add lower: %v", err)
	}
	mech, err := NewMechanism(tree, StandardGravity)
	if err != nil {
		t.Fatalf("new mechanism: %v", err)
	}
	return mech, lower
}

// newChain builds an n-link spatial chain alternating pin axes. The rods
// get a little axial inertia so links pinned about their own length (every
// third one) still load their joint.
func newChain(t *testing.T, n int) *Mechanism {
	t.Helper()
	tree := NewTree()
	axes := []r3.Vec{{Z: 1}, {Y: 1}, {X: 1}}
	parent := Ground
	for i := 0; i < n; i++ {
		inboard := Translation(r3.Vec{X: 0.3})
		if i == 0 {
			inboard = IdentityTransform()
		}
		rod := UniformRod(1+0.1*float64(i), 0.3)
		rod.Inertia[0][0] = 0.1 * rod.Inertia[1][1]
		b, err := tree.AddBody("link", parent, NewPin(axes[i%3]), inboard, rod)
		if err != nil {
			t.Fatalf("add link %d: %v", i, err)
		}
		parent = b
	}
	mech, err := NewMechanism(tree, StandardGravity)
	if err != nil {
		t.Fatalf("new mechanism: %v", err)
	}
	return mech
}

func setState(t *testing.T, m *Mechanism, q, u []float64) {
	t.Helper()
	if err := m.SetQ(q); err != nil {
		t.Fatalf("set q: %v", err)
	}
	if err := m.SetU(u); err != nil {
		t.Fatalf("set u: %v", err)
	}
	if err := m.Realize(stage.Velocity); err != nil {
		t.Fatalf("realize: %v", err)
	}
}

func TestPendulumGravityAndMass(t *testing.T) {
	const mass, l = 2.0, 0.5
	mech, link := newPendulum(t, mass, l)

	for _, q := range []float64{0, 0.3, 1.2, -2.0} {
		setState(t, mech, []float64{q}, []float64{0})

		mm, err := mech.MassMatrix()
		if err != nil {
			t.Fatalf("mass matrix: %v", err)
		}
		if math.Abs(mm.At(0, 0)-mass*l*l) > 1e-12 {
			t.Errorf("q=%.2f: expected M=%f, got %f", q, mass*l*l, mm.At(0, 0))
		}

		g, err := mech.GravityTorque()
		if err != nil {
			t.Fatalf("gravity: %v", err)
		}
		want := -mass * g0 * l * math.Cos(q)
		if math.Abs(g.AtVec(0)-want) > 1e-9 {
			t.Errorf("q=%.2f: expected g=%f, got %f", q, want, g.AtVec(0))
		}

		x, err := mech.FindStationLocation(Station{Body: link, Point: r3.Vec{X: l}})
		if err != nil {
			t.Fatalf("station: %v", err)
		}
		if math.Abs(x.X-l*math.Cos(q)) > 1e-12 || math.Abs(x.Z+l*math.Sin(q)) > 1e-12 {
			t.Errorf("q=%.2f: unexpected station location %+v", q, x)
		}
	}
}

func TestPendulumForwardDynamics(t *testing.T) {
	mech, _ := newPendulum(t, 1.0, 1.0)
	setState(t, mech, []float64{0.4}, []float64{0})

	udot, err := mech.CalcForwardDynamics([]float64{0})
	if err != nil {
		t.Fatalf("forward dynamics: %v", err)
	}
	want := g0 * math.Cos(0.4)
	if math.Abs(udot[0]-want) > 1e-9 {
		t.Errorf("expected u̇=%f, got %f", want, udot[0])
	}

	g, _ := mech.GravityTorque()
	udot, err = mech.CalcForwardDynamics([]float64{g.AtVec(0)})
	if err != nil {
		t.Fatalf("forward dynamics: %v", err)
	}
	if math.Abs(udot[0]) > 1e-12 {
		t.Errorf("holding torque should give zero acceleration, got %g", udot[0])
	}
}

func TestTwoLinkMassMatrixAndBias(t *testing.T) {
	const m1, m2, l1, l2 = 1.5, 0.8, 1.0, 0.7
	mech, _ := newTwoLink(t, m1, m2, l1, l2)

	tests := []struct {
		q, u []float64
	}{
		{[]float64{0, 0}, []float64{0, 0}},
		{[]float64{0.3, 0.9}, []float64{1.0, -0.5}},
		{[]float64{-1.2, 2.1}, []float64{-0.4, 2.0}},
	}

	for _, tt := range tests {
		setState(t, mech, tt.q, tt.u)
		c2, s2 := math.Cos(tt.q[1]), math.Sin(tt.q[1])

		want := [2][2]float64{
			{(m1+m2)*l1*l1 + m2*l2*l2 + 2*m2*l1*l2*c2, m2*l2*l2 + m2*l1*l2*c2},
			{m2*l2*l2 + m2*l1*l2*c2, m2 * l2 * l2},
		}
		mm, err := mech.MassMatrix()
		if err != nil {
			t.Fatalf("mass matrix: %v", err)
		}
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				if math.Abs(mm.At(i, j)-want[i][j]) > 1e-12 {
					t.Errorf("q=%v: M[%d][%d] expected %f, got %f", tt.q, i, j, want[i][j], mm.At(i, j))
				}
			}
		}

		h := m2 * l1 * l2 * s2
		u1, u2 := tt.u[0], tt.u[1]
		wantBias := []float64{-h * (2*u1*u2 + u2*u2), h * u1 * u1}
		bias, err := mech.BiasTorque()
		if err != nil {
			t.Fatalf("bias: %v", err)
		}
		for i := range wantBias {
			if math.Abs(bias.AtVec(i)-wantBias[i]) > 1e-12 {
				t.Errorf("q=%v u=%v: bias[%d] expected %f, got %f", tt.q, tt.u, i, wantBias[i], bias.AtVec(i))
			}
		}
	}
}

func TestMassMatrixMatchesJacobianSum(t *testing.T) {
	// 12 coordinates exercises the parallel column fill.
	mech := newChain(t, 12)
	n := mech.NumQ()
	q := make([]float64, n)
	for i := range q {
		q[i] = 0.2*float64(i) - 0.9
	}
	setState(t, mech, q, make([]float64, n))

	mm, err := mech.MassMatrix()
	if err != nil {
		t.Fatalf("mass matrix: %v", err)
	}
	if _, err := mech.MassFactorization(); err != nil {
		t.Fatalf("factorization: %v", err)
	}
	if n := mech.MassRegularizations(); n != 0 {
		t.Errorf("well-posed chain should factorize as is, regularized %d times", n)
	}

	// M = Σ mᵢ JcᵢᵀJcᵢ + JωᵢᵀIᵢJωᵢ for every body.
	ref := mat.NewDense(n, n, nil)
	for b := 1; b < mech.Tree().NumBodies(); b++ {
		body, _ := mech.Tree().Body(BodyIndex(b))
		jc, err := mech.StationJacobian(Station{Body: BodyIndex(b), Point: body.Mass.COM})
		if err != nil {
			t.Fatalf("jacobian: %v", err)
		}
		var lin mat.Dense
		lin.Mul(jc.T(), jc)
		lin.Scale(body.Mass.Mass, &lin)
		ref.Add(ref, &lin)

		jf, err := mech.FrameJacobian(BodyIndex(b))
		if err != nil {
			t.Fatalf("frame jacobian: %v", err)
		}
		x, _ := mech.BodyTransform(BodyIndex(b))
		ig := x.R.Mul(body.Mass.Inertia).Mul(x.R.T())
		igm := mat.NewDense(3, 3, []float64{
			ig[0][0], ig[0][1], ig[0][2],
			ig[1][0], ig[1][1], ig[1][2],
			ig[2][0], ig[2][1], ig[2][2],
		})
		jw := jf.Slice(0, 3, 0, n)
		var rot, tmp mat.Dense
		tmp.Mul(igm, jw)
		rot.Mul(jw.T(), &tmp)
		ref.Add(ref, &rot)
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if math.Abs(mm.At(i, j)-ref.At(i, j)) > 1e-10 {
				t.Fatalf("M[%d][%d] expected %f, got %f", i, j, ref.At(i, j), mm.At(i, j))
			}
		}
	}

	if _, err := mech.MassFactorization(); err != nil {
		t.Errorf("mass matrix should be positive definite: %v", err)
	}
}

func TestEnergyOfPendulum(t *testing.T) {
	mech, _ := newPendulum(t, 1.0, 2.0)
	setState(t, mech, []float64{math.Pi / 2}, []float64{3.0})

	ke, err := mech.KineticEnergy()
	if err != nil {
		t.Fatalf("kinetic energy: %v", err)
	}
	if math.Abs(ke-0.5*4*9) > 1e-9 {
		t.Errorf("expected KE %f, got %f", 18.0, ke)
	}

	pe, err := mech.PotentialEnergy()
	if err != nil {
		t.Fatalf("potential energy: %v", err)
	}
	// q = π/2 puts the bob straight down at z = -2.
	if math.Abs(pe-(-g0*2)) > 1e-9 {
		t.Errorf("expected PE %f, got %f", -g0*2, pe)
	}
}

func TestReadBeforeRealize(t *testing.T) {
	mech, _ := newPendulum(t, 1, 1)

	if _, err := mech.MassMatrix(); !errors.Is(err, stage.ErrStageNotRealized) {
		t.Errorf("expected ErrStageNotRealized, got %v", err)
	}

	if err := mech.Realize(stage.Position); err != nil {
		t.Fatalf("realize: %v", err)
	}
	if _, err := mech.FindStationLocation(Station{Body: 1}); err != nil {
		t.Errorf("position read should succeed: %v", err)
	}
	if _, _, err := mech.FindStationLocationAndVelocity(Station{Body: 1}); !errors.Is(err, stage.ErrStageNotRealized) {
		t.Errorf("expected ErrStageNotRealized for velocity read, got %v", err)
	}
}

func TestSetQInvalidatesPositionOnly(t *testing.T) {
	mech, _ := newTwoLink(t, 1, 1, 1, 1)
	setState(t, mech, []float64{0.1, 0.2}, []float64{0, 0})

	counts := func() map[string]int {
		out := make(map[string]int)
		for name, e := range mech.Entries() {
			out[name] = e.Computations()
		}
		return out
	}
	before := counts()

	if err := mech.Realize(stage.Velocity); err != nil {
		t.Fatalf("realize: %v", err)
	}
	for name, n := range counts() {
		if n != before[name] {
			t.Errorf("%s recomputed on idempotent realize (%d -> %d)", name, before[name], n)
		}
	}

	setState(t, mech, []float64{0.5, 0.2}, []float64{0, 0})
	after := counts()
	for _, name := range []string{"topology", "model"} {
		if after[name] != before[name] {
			t.Errorf("%s should survive a q write, computed %d times", name, after[name])
		}
	}
	for _, name := range []string{"body positions", "mass matrix", "bias torque"} {
		if after[name] != before[name]+1 {
			t.Errorf("%s should be recomputed once, went %d -> %d", name, before[name], after[name])
		}
	}
}

func TestSetGravityInvalidatesModel(t *testing.T) {
	mech, _ := newPendulum(t, 1, 1)
	setState(t, mech, []float64{0}, []float64{0})

	mech.SetGravity(r3.Vec{})
	if got := mech.State().Realized(); got != stage.Topology {
		t.Errorf("expected realized Topology after gravity change, got %s", got)
	}
	if err := mech.Realize(stage.Velocity); err != nil {
		t.Fatalf("realize: %v", err)
	}
	g, _ := mech.GravityTorque()
	if g.AtVec(0) != 0 {
		t.Errorf("expected zero gravity torque, got %f", g.AtVec(0))
	}
}

func TestTreeValidation(t *testing.T) {
	tree := NewTree()
	if _, err := tree.AddBody("orphan", 5, NewPin(yAxis), IdentityTransform(), PointMass(1, r3.Vec{})); !errors.Is(err, ErrUnknownBody) {
		t.Errorf("expected ErrUnknownBody, got %v", err)
	}
	if _, err := tree.AddBody("bad", Ground, Mobilizer{Kind: Pin}, IdentityTransform(), PointMass(1, r3.Vec{})); err == nil {
		t.Error("expected error for zero pin axis")
	}
	if _, err := NewMechanism(tree, StandardGravity); err == nil {
		t.Error("expected error for a tree without coordinates")
	}

	if _, err := tree.AddBody("link", Ground, NewPin(yAxis), IdentityTransform(), PointMass(1, r3.Vec{X: 1})); err != nil {
		t.Fatalf("add body: %v", err)
	}
	if _, err := NewMechanism(tree, StandardGravity); err != nil {
		t.Fatalf("new mechanism: %v", err)
	}
	if _, err := tree.AddBody("late", Ground, NewPin(yAxis), IdentityTransform(), PointMass(1, r3.Vec{})); !errors.Is(err, ErrTreeSealed) {
		t.Errorf("expected ErrTreeSealed, got %v", err)
	}
}

// newMasslessJoint builds a two-link arm whose outer link is a point mass on
// its own pin axis, so the second joint carries no inertia and M is
// singular.
func newMasslessJoint(t *testing.T) *Mechanism {
	t.Helper()
	tree := NewTree()
	upper, err := tree.AddBody("upper", Ground, NewPin(r3.Vec{Z: 1}), IdentityTransform(), UniformRod(1, 0.3))
	if err != nil {
		t.Fatalf("add upper: %v", err)
	}
	if _, err := tree.AddBody("tip", upper, NewPin(r3.Vec{X: 1}), Translation(r3.Vec{X: 0.3}), PointMass(0.5, r3.Vec{})); err != nil {
		t.Fatalf("add tip: %v", err)
	}
	mech, err := NewMechanism(tree, StandardGravity)
	if err != nil {
		t.Fatalf("new mechanism: %v", err)
	}
	return mech
}

func TestSingularMassRegularized(t *testing.T) {
	mech := newMasslessJoint(t)
	setState(t, mech, []float64{0, 0}, []float64{0, 0})

	mm, err := mech.MassMatrix()
	if err != nil {
		t.Fatalf("mass matrix: %v", err)
	}
	if mm.At(1, 1) != 0 {
		t.Fatalf("expected an inertia-free second joint, got M[1][1]=%g", mm.At(1, 1))
	}
	if _, err := mech.MassFactorization(); err != nil {
		t.Fatalf("regularized factorization: %v", err)
	}
	if n := mech.MassRegularizations(); n != 1 {
		t.Errorf("expected 1 regularization, got %d", n)
	}
	if _, err := mech.CalcForwardDynamics([]float64{0, 0}); err != nil {
		t.Errorf("forward dynamics on the regularized matrix: %v", err)
	}
}

func TestSingularMassWithoutRegularization(t *testing.T) {
	mech := newMasslessJoint(t)
	if err := mech.SetMassRegularization(0); err != nil {
		t.Fatalf("set regularization: %v", err)
	}
	setState(t, mech, []float64{0, 0}, []float64{0, 0})

	// Kinematics and the other velocity-stage quantities stay readable.
	if _, _, err := mech.FindStationLocationAndVelocity(Station{Body: 2}); err != nil {
		t.Errorf("station velocity: %v", err)
	}
	if _, err := mech.BiasTorque(); err != nil {
		t.Errorf("bias torque: %v", err)
	}

	_, err := mech.MassFactorization()
	if !errors.Is(err, dynamo.ErrNumericalFailure) || !errors.Is(err, dynamo.ErrSingularOperator) {
		t.Fatalf("expected singular operator escalated to numerical failure, got %v", err)
	}
	if c := dynamo.Classify(err); c != dynamo.Fatal {
		t.Errorf("expected fatal, got %v", c)
	}
	if _, err := mech.CalcForwardDynamics([]float64{0, 0}); !errors.Is(err, dynamo.ErrNumericalFailure) {
		t.Errorf("forward dynamics should surface the failure, got %v", err)
	}
	if mech.MassRegularizations() != 0 {
		t.Errorf("no regularization should have been counted")
	}

	if err := mech.SetMassRegularization(-1); !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("negative regularization should be rejected, got %v", err)
	}
}
