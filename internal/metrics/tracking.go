package metrics

import (
	"math"

	"github.com/san-kum/taskctl/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// Locator maps a plant state to the ground position of the tracked point.
type Locator func(x dynamo.State) (r3.Vec, error)

// TrackingError is the distance between the tracked point and the target
// at the last observed tick. The target is read on every tick so it may
// move during a run.
type TrackingError struct {
	name   string
	locate Locator
	target func() r3.Vec
	last   float64
	sumSq  float64
	n      int
}

func NewTrackingError(locate Locator, target func() r3.Vec) *TrackingError {
	return &TrackingError{name: "tracking_error", locate: locate, target: target}
}

func (e *TrackingError) Name() string { return e.name }

func (e *TrackingError) Observe(x dynamo.State, u dynamo.Control, t float64) {
	p, err := e.locate(x)
	if err != nil {
		e.last = math.NaN()
		return
	}
	e.last = r3.Norm(r3.Sub(e.target(), p))
	e.sumSq += e.last * e.last
	e.n++
}

func (e *TrackingError) Value() float64 { return e.last }

// RMS is the root-mean-square error over the run.
func (e *TrackingError) RMS() float64 {
	if e.n == 0 {
		return 0
	}
	return math.Sqrt(e.sumSq / float64(e.n))
}

func (e *TrackingError) Reset() {
	e.last, e.sumSq, e.n = 0, 0, 0
}

// Overshoot is how far the tracked point travelled past a fixed target,
// measured along the initial approach direction, as a fraction of the
// initial distance.
type Overshoot struct {
	name   string
	locate Locator
	target r3.Vec

	dir     r3.Vec
	initial float64
	worst   float64
	started bool
}

func NewOvershoot(locate Locator, target r3.Vec) *Overshoot {
	return &Overshoot{name: "overshoot", locate: locate, target: target}
}

func (o *Overshoot) Name() string { return o.name }

func (o *Overshoot) Observe(x dynamo.State, u dynamo.Control, t float64) {
	p, err := o.locate(x)
	if err != nil {
		return
	}
	e := r3.Sub(o.target, p)
	if !o.started {
		o.started = true
		o.initial = r3.Norm(e)
		if o.initial > 0 {
			o.dir = r3.Scale(1/o.initial, e)
		}
		return
	}
	if o.initial == 0 {
		return
	}
	// Past the target the remaining error points against the approach.
	if past := -r3.Dot(e, o.dir) / o.initial; past > o.worst {
		o.worst = past
	}
}

func (o *Overshoot) Value() float64 { return o.worst }

func (o *Overshoot) Reset() {
	o.dir, o.initial, o.worst, o.started = r3.Vec{}, 0, 0, false
}
