package integrators

import "github.com/san-kum/taskctl/internal/dynamo"

// Euler is the explicit forward Euler method.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(sys dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	out := make(dynamo.State, len(x))
	axpy(out, x, dt, sys.Derive(x, u, t))
	return out
}

// SemiImplicitEuler updates velocities first and then positions with the
// new velocities. It expects the mechanism layout x = [q; u] with equal
// halves and conserves energy far better than Euler at the same cost.
type SemiImplicitEuler struct {
	scratch dynamo.State
}

func NewSemiImplicitEuler() *SemiImplicitEuler {
	return &SemiImplicitEuler{}
}

func (s *SemiImplicitEuler) Step(sys dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	half := n / 2
	dx := sys.Derive(x, u, t)

	out := make(dynamo.State, n)
	for i := 0; i < half; i++ {
		out[half+i] = x[half+i] + dt*dx[half+i]
		out[i] = x[i] + dt*out[half+i]
	}
	return out
}
