package integrators

import (
	"math"

	"github.com/san-kum/taskctl/internal/dynamo"
)

// DefaultAccuracy is the relative local error target of Adaptive.
const DefaultAccuracy = 1e-3

// Dormand-Prince 5(4) tableau.
var (
	dpNodes = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpA     = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	// dpErr is the difference between the fifth- and fourth-order weights.
	dpErr = [7]float64{
		35.0/384 - 5179.0/57600,
		0,
		500.0/1113 - 7571.0/16695,
		125.0/192 - 393.0/640,
		-2187.0/6784 + 92097.0/339200,
		11.0/84 - 187.0/2100,
		-1.0 / 40,
	}
)

// Adaptive covers each requested step with as many error-controlled
// Dormand-Prince substeps as the accuracy demands. The control input is
// held over the whole step, matching a zero-order-hold actuator.
type Adaptive struct {
	Accuracy    float64
	MaxSubsteps int

	safety, minScale, maxScale float64

	h        float64
	substeps int
	k        [7]dynamo.State
	tmp      dynamo.State
}

func NewAdaptive(accuracy float64) *Adaptive {
	return &Adaptive{
		Accuracy:    accuracy,
		MaxSubsteps: 10000,
		safety:      0.9,
		minScale:    0.2,
		maxScale:    5.0,
	}
}

// Substeps reports how many substeps the last Step accepted.
func (a *Adaptive) Substeps() int { return a.substeps }

func (a *Adaptive) grow(n int) {
	if len(a.tmp) == n {
		return
	}
	for i := range a.k {
		a.k[i] = make(dynamo.State, n)
	}
	a.tmp = make(dynamo.State, n)
}

func (a *Adaptive) Step(sys dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	a.grow(len(x))
	a.substeps = 0
	if a.h <= 0 || a.h > dt {
		a.h = dt
	}

	cur := x.Clone()
	end := t + dt
	for tc := t; end-tc > 1e-12*dt; {
		h := math.Min(a.h, end-tc)
		next, errRatio := a.try(sys, cur, u, tc, h)
		if !next.IsValid() || math.IsNaN(errRatio) {
			for i := range next {
				next[i] = math.NaN()
			}
			return next
		}

		scale := a.maxScale
		if errRatio > 0 {
			scale = math.Min(a.maxScale, math.Max(a.minScale, a.safety*math.Pow(errRatio, -0.2)))
		}
		if errRatio <= 1 || a.substeps >= a.MaxSubsteps {
			cur = next
			tc += h
			a.substeps++
		}
		a.h = h * scale
	}
	return cur
}

// try takes one substep of size h and returns the result together with its
// estimated error relative to the accuracy target.
func (a *Adaptive) try(sys dynamo.System, x dynamo.State, u dynamo.Control, t, h float64) (dynamo.State, float64) {
	n := len(x)
	copy(a.k[0], sys.Derive(x, u, t))
	var next dynamo.State
	for s := 1; s < 7; s++ {
		for i := 0; i < n; i++ {
			acc := 0.0
			for j := 0; j < s; j++ {
				acc += dpA[s][j] * a.k[j][i]
			}
			a.tmp[i] = x[i] + h*acc
		}
		if s == 6 {
			next = a.tmp.Clone()
		}
		copy(a.k[s], sys.Derive(a.tmp, u, t+dpNodes[s]*h))
	}

	worst := 0.0
	for i := 0; i < n; i++ {
		e := 0.0
		for s := 0; s < 7; s++ {
			e += dpErr[s] * a.k[s][i]
		}
		e *= h
		scale := math.Max(math.Abs(x[i]), math.Abs(next[i])) + 1e-6
		worst = math.Max(worst, math.Abs(e)/scale)
	}
	return next, worst / a.Accuracy
}
