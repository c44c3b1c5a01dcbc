package multibody

import (
	"math"
	"testing"

	"github.com/san-kum/taskctl/internal/stage"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

func stationAt(t *testing.T, m *Mechanism, s Station, q []float64) r3.Vec {
	t.Helper()
	if err := m.SetQ(q); err != nil {
		t.Fatalf("set q: %v", err)
	}
	if err := m.Realize(stage.Position); err != nil {
		t.Fatalf("realize: %v", err)
	}
	x, err := m.FindStationLocation(s)
	if err != nil {
		t.Fatalf("station: %v", err)
	}
	return x
}

func TestStationJacobianFiniteDifference(t *testing.T) {
	mech := newChain(t, 5)
	s := Station{Body: 5, Point: r3.Vec{X: 0.3, Y: 0.05}}
	q := []float64{0.3, -0.4, 0.9, 0.2, -1.1}
	const h = 1e-6

	setState(t, mech, q, make([]float64, 5))
	j, err := mech.StationJacobian(s)
	if err != nil {
		t.Fatalf("jacobian: %v", err)
	}

	for k := range q {
		qp := append([]float64(nil), q...)
		qm := append([]float64(nil), q...)
		qp[k] += h
		qm[k] -= h
		d := r3.Scale(1/(2*h), r3.Sub(stationAt(t, mech, s, qp), stationAt(t, mech, s, qm)))
		got := r3.Vec{X: j.At(0, k), Y: j.At(1, k), Z: j.At(2, k)}
		if r3.Norm(r3.Sub(got, d)) > 1e-7 {
			t.Errorf("column %d: expected %+v, got %+v", k, d, got)
		}
	}
}

func TestStationVelocityMatchesJacobian(t *testing.T) {
	mech := newChain(t, 4)
	s := Station{Body: 4, Point: r3.Vec{X: 0.2}}
	q := []float64{0.1, 0.5, -0.3, 0.8}
	u := []float64{0.7, -1.2, 0.4, 2.0}
	setState(t, mech, q, u)

	_, v, err := mech.FindStationLocationAndVelocity(s)
	if err != nil {
		t.Fatalf("station velocity: %v", err)
	}
	j, _ := mech.StationJacobian(s)
	var ju mat.VecDense
	ju.MulVec(j, mat.NewVecDense(4, u))

	if math.Abs(ju.AtVec(0)-v.X) > 1e-12 || math.Abs(ju.AtVec(1)-v.Y) > 1e-12 || math.Abs(ju.AtVec(2)-v.Z) > 1e-12 {
		t.Errorf("expected J·u = %+v, got %v", v, ju.RawVector().Data)
	}
}

func TestStationJacobianDot(t *testing.T) {
	mech := newChain(t, 4)
	s := Station{Body: 4, Point: r3.Vec{X: 0.25, Z: 0.1}}
	q := []float64{0.4, -0.2, 0.6, 1.0}
	u := []float64{1.1, 0.3, -0.9, 0.5}
	const h = 1e-6

	jacobianAt := func(qq []float64) *mat.Dense {
		setState(t, mech, qq, u)
		j, err := mech.StationJacobian(s)
		if err != nil {
			t.Fatalf("jacobian: %v", err)
		}
		return mat.DenseCopyOf(j)
	}

	qp := make([]float64, 4)
	qm := make([]float64, 4)
	for i := range q {
		qp[i] = q[i] + h*u[i]
		qm[i] = q[i] - h*u[i]
	}
	var fd mat.Dense
	fd.Sub(jacobianAt(qp), jacobianAt(qm))
	fd.Scale(1/(2*h), &fd)

	setState(t, mech, q, u)
	jd, err := mech.StationJacobianDot(s)
	if err != nil {
		t.Fatalf("jacobian dot: %v", err)
	}
	if !mat.EqualApprox(jd, &fd, 1e-6) {
		t.Errorf("expected J̇\n%v\ngot\n%v", mat.Formatted(&fd), mat.Formatted(jd))
	}

	var jdu mat.VecDense
	jdu.MulVec(jd, mat.NewVecDense(4, u))
	bias, err := mech.StationBiasAcceleration(s)
	if err != nil {
		t.Fatalf("bias acceleration: %v", err)
	}
	if r3.Norm(r3.Sub(bias, r3.Vec{X: jdu.AtVec(0), Y: jdu.AtVec(1), Z: jdu.AtVec(2)})) > 1e-12 {
		t.Errorf("expected J̇u = %v, got %+v", jdu.RawVector().Data, bias)
	}
}

func TestAxisAngleRightHanded(t *testing.T) {
	r := AxisAngle(r3.Vec{Z: 1}, math.Pi/2)
	got := r.MulVec(r3.Vec{X: 1})
	if r3.Norm(r3.Sub(got, r3.Vec{Y: 1})) > 1e-12 {
		t.Errorf("expected x to rotate onto y, got %+v", got)
	}
}
