package stage

import "fmt"

// Computation produces the value of one cache entry.
type Computation[T any] interface {
	DependsOn() Stage
	Compute(s *State) (T, error)
}

// Differentiable is implemented by computations that can also supply time
// derivatives of their value. Order 0 is never passed; it is the value itself.
type Differentiable[T any] interface {
	NumDerivatives() int
	ComputeDerivative(s *State, order int) (T, error)
}

// Func adapts a plain function into a Computation.
type Func[T any] struct {
	Stage Stage
	Fn    func(s *State) (T, error)
}

func (f Func[T]) DependsOn() Stage            { return f.Stage }
func (f Func[T]) Compute(s *State) (T, error) { return f.Fn(s) }

type options struct {
	name string
	lazy bool
}

// Option configures a registered entry.
type Option func(*options)

// Lazy defers computation until the first read after the entry's stage is
// realized, instead of computing during Realize.
func Lazy() Option {
	return func(o *options) { o.lazy = true }
}

// Named labels the entry in error messages.
func Named(name string) Option {
	return func(o *options) { o.name = name }
}

// Entry is a cached value owned by exactly one State.
type Entry[T any] struct {
	owner *State
	calc  Computation[T]
	opts  options

	value        T
	valid        bool
	computations int
}

// Register adds a cache entry computed by c to s. The entry starts invalid.
func Register[T any](s *State, c Computation[T], opts ...Option) (*Entry[T], error) {
	stg := c.DependsOn()
	if !stg.Valid() || stg == Empty {
		return nil, &StageError{Op: "register", Want: stg, Have: s.realized, Wrapped: ErrInvalidStage}
	}
	e := &Entry[T]{owner: s, calc: c}
	for _, opt := range opts {
		opt(&e.opts)
	}
	s.entries = append(s.entries, e)
	return e, nil
}

func (e *Entry[T]) dependsOn() Stage { return e.calc.DependsOn() }
func (e *Entry[T]) lazy() bool       { return e.opts.lazy }

func (e *Entry[T]) invalidate() {
	var zero T
	e.value = zero
	e.valid = false
}

func (e *Entry[T]) realize() error {
	if e.valid {
		return nil
	}
	_, err := e.compute()
	return err
}

func (e *Entry[T]) compute() (T, error) {
	v, err := e.calc.Compute(e.owner)
	if err != nil {
		var zero T
		if e.opts.name != "" {
			return zero, fmt.Errorf("%s: %w", e.opts.name, err)
		}
		return zero, err
	}
	e.value = v
	e.valid = true
	e.computations++
	return v, nil
}

// Name returns the label given with Named, if any.
func (e *Entry[T]) Name() string { return e.opts.name }

// DependsOn returns the stage the entry is computed at.
func (e *Entry[T]) DependsOn() Stage { return e.calc.DependsOn() }

// IsValid reports whether the cached value is current.
func (e *Entry[T]) IsValid() bool { return e.valid }

// Computations counts how many times the value has been computed.
func (e *Entry[T]) Computations() int { return e.computations }

// Get returns the cached value, computing it first if the entry is lazy or
// is being read while its own stage is being realized.
func (e *Entry[T]) Get() (T, error) {
	if e.valid {
		return e.value, nil
	}
	stg := e.calc.DependsOn()
	if !e.owner.computable(stg) {
		var zero T
		return zero, &StageError{Op: "get", Entry: e.opts.name, Want: stg, Have: e.owner.realized, Wrapped: ErrStageNotRealized}
	}
	return e.compute()
}

// GetDerivative returns the order-th time derivative of the value. Order 0 is
// Get. Higher orders require the computation to implement Differentiable and
// are not cached.
func (e *Entry[T]) GetDerivative(order int) (T, error) {
	if order == 0 {
		return e.Get()
	}
	var zero T
	d, ok := e.calc.(Differentiable[T])
	if !ok || order < 0 || order > d.NumDerivatives() {
		return zero, fmt.Errorf("entry %q order %d: %w", e.opts.name, order, ErrUnsupportedDerivativeOrder)
	}
	stg := e.calc.DependsOn()
	if !e.owner.computable(stg) {
		return zero, &StageError{Op: "get derivative", Entry: e.opts.name, Want: stg, Have: e.owner.realized, Wrapped: ErrStageNotRealized}
	}
	return d.ComputeDerivative(e.owner, order)
}

// Variable is a typed state variable whose writes invalidate a given stage,
// for example a gravity vector that invalidates Model.
type Variable[T any] struct {
	owner *State
	stage Stage
	value T
}

// AddVariable allocates a variable on s. Setting it invalidates invalidates
// and every stage above it.
func AddVariable[T any](s *State, invalidates Stage, initial T) *Variable[T] {
	return &Variable[T]{owner: s, stage: invalidates, value: initial}
}

func (v *Variable[T]) Get() T { return v.value }

func (v *Variable[T]) Set(x T) {
	v.value = x
	v.owner.Invalidate(v.stage)
}
