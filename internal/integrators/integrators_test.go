package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/taskctl/internal/dynamo"
)

// oscillator is a unit harmonic oscillator, x = [q; u], driven by u[0].
type oscillator struct{}

func (o *oscillator) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	f := 0.0
	if len(u) > 0 {
		f = u[0]
	}
	return dynamo.State{x[1], -x[0] + f}
}

func (o *oscillator) StateDim() int   { return 2 }
func (o *oscillator) ControlDim() int { return 1 }

func (o *oscillator) Energy(x dynamo.State) float64 {
	return 0.5 * (x[0]*x[0] + x[1]*x[1])
}

func run(integ dynamo.Integrator, dt float64, steps int) dynamo.State {
	x := dynamo.State{1, 0}
	for i := 0; i < steps; i++ {
		x = integ.Step(&oscillator{}, x, dynamo.Control{0}, float64(i)*dt, dt)
	}
	return x
}

func TestAccuracy(t *testing.T) {
	const T = 1.0
	want := dynamo.State{math.Cos(T), -math.Sin(T)}

	tests := []struct {
		name  string
		integ dynamo.Integrator
		dt    float64
		tol   float64
	}{
		{"euler", NewEuler(), 0.001, 2e-3},
		{"semi-implicit", NewSemiImplicitEuler(), 0.001, 2e-3},
		{"rk4", NewRK4(), 0.01, 1e-9},
		{"adaptive", NewAdaptive(1e-8), 0.1, 1e-6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps := int(math.Round(T / tt.dt))
			x := run(tt.integ, tt.dt, steps)
			if err := x.Sub(want).Norm(); err > tt.tol {
				t.Errorf("error %.3e exceeds %.0e (got %v)", err, tt.tol, x)
			}
		})
	}
}

func TestRK4Order(t *testing.T) {
	coarse := run(NewRK4(), 0.1, 10)
	fine := run(NewRK4(), 0.05, 20)
	want := dynamo.State{math.Cos(1), -math.Sin(1)}

	ratio := coarse.Sub(want).Norm() / fine.Sub(want).Norm()
	if ratio < 12 || ratio > 20 {
		t.Errorf("halving dt should cut error ~16x, got %.1fx", ratio)
	}
}

func TestSemiImplicitEnergyBounded(t *testing.T) {
	osc := &oscillator{}
	e0 := osc.Energy(dynamo.State{1, 0})

	x := run(NewSemiImplicitEuler(), 0.05, 20000)
	if drift := math.Abs(osc.Energy(x)-e0) / e0; drift > 0.05 {
		t.Errorf("semi-implicit Euler energy drift %.3f after long run", drift)
	}

	x = run(NewEuler(), 0.05, 2000)
	if osc.Energy(x) < 2*e0 {
		t.Errorf("explicit Euler should gain energy, got %.3f", osc.Energy(x))
	}
}

func TestAdaptiveSubsteps(t *testing.T) {
	a := NewAdaptive(1e-10)
	x := a.Step(&oscillator{}, dynamo.State{1, 0}, dynamo.Control{0}, 0, 1.0)
	if a.Substeps() < 2 {
		t.Errorf("tight accuracy over a long step should substep, got %d", a.Substeps())
	}
	if math.Abs(x[0]-math.Cos(1)) > 1e-8 {
		t.Errorf("expected %.10f, got %.10f", math.Cos(1), x[0])
	}
}

func TestHeldControl(t *testing.T) {
	// With constant forcing f the equilibrium moves to q = f.
	x := dynamo.State{2, 0}
	integ := NewRK4()
	for i := 0; i < 100; i++ {
		x = integ.Step(&oscillator{}, x, dynamo.Control{2}, float64(i)*0.01, 0.01)
	}
	if math.Abs(x[0]-2) > 1e-12 || math.Abs(x[1]) > 1e-12 {
		t.Errorf("expected to stay at forced equilibrium, got %v", x)
	}
}

type exploding struct{ oscillator }

func (e *exploding) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{math.NaN(), 0}
}

func TestAdaptiveStopsOnInvalidState(t *testing.T) {
	x := NewAdaptive(1e-6).Step(&exploding{}, dynamo.State{1, 0}, nil, 0, 0.1)
	if x.IsValid() {
		t.Errorf("expected invalid state, got %v", x)
	}
}

func TestRegistry(t *testing.T) {
	for _, name := range Names() {
		if _, err := New(name); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if _, err := New("verlet"); err == nil {
		t.Error("expected error for unknown integrator")
	}
}
