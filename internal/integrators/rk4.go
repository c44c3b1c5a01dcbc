package integrators

import "github.com/san-kum/taskctl/internal/dynamo"

// rk4Nodes are the fractions of dt at which stages two to four sample the
// derivative.
var rk4Nodes = [3]float64{0.5, 0.5, 1}

// RK4 is the classical fourth-order Runge-Kutta method. Its stage buffers
// are reused between steps, so an RK4 must not be shared across goroutines.
type RK4 struct {
	k   [4]dynamo.State
	tmp dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) grow(n int) {
	if len(r.tmp) == n {
		return
	}
	for i := range r.k {
		r.k[i] = make(dynamo.State, n)
	}
	r.tmp = make(dynamo.State, n)
}

func (r *RK4) Step(sys dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	r.grow(n)

	copy(r.k[0], sys.Derive(x, u, t))
	for s := 1; s < 4; s++ {
		h := rk4Nodes[s-1] * dt
		axpy(r.tmp, x, h, r.k[s-1])
		copy(r.k[s], sys.Derive(r.tmp, u, t+h))
	}

	out := make(dynamo.State, n)
	w := dt / 6
	for i := range out {
		out[i] = x[i] + w*(r.k[0][i]+2*r.k[1][i]+2*r.k[2][i]+r.k[3][i])
	}
	return out
}
