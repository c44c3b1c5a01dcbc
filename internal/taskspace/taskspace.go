package taskspace

import (
	"fmt"
	"log/slog"

	"github.com/san-kum/taskctl/internal/dynamo"
	"github.com/san-kum/taskctl/internal/multibody"
	"github.com/san-kum/taskctl/internal/stage"
	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultRegularization is added to the diagonal of J M⁻¹ Jᵀ when it
	// cannot be inverted as is.
	DefaultRegularization = 1e-6
	// DefaultMaxCondition is the largest condition number of J M⁻¹ Jᵀ that
	// is inverted without regularization.
	DefaultMaxCondition = 1e9
)

// StationTask asks one point of the mechanism to follow a commanded
// acceleration.
type StationTask struct {
	Name    string
	Station multibody.Station
}

// Options configures a TaskSpace.
type Options struct {
	// Regularization is the ε in (J M⁻¹ Jᵀ + εI)⁻¹. Zero disables it, in
	// which case a singular operator is an error.
	Regularization float64
	MaxCondition   float64
	Logger         *slog.Logger
}

// DefaultOptions returns the regularized defaults.
func DefaultOptions() Options {
	return Options{
		Regularization: DefaultRegularization,
		MaxCondition:   DefaultMaxCondition,
	}
}

// TaskSpace is a group of station tasks at one priority level. It reads
// and caches into the state of the Mechanism it was created on, and like
// that Mechanism it must not be shared between goroutines.
type TaskSpace struct {
	name   string
	mech   *multibody.Mechanism
	tasks  []StationTask
	opts   Options
	logger *slog.Logger

	regularizations int

	jac    *stage.Entry[*mat.Dense]
	jdotu  *stage.Entry[*mat.VecDense]
	minvJT *stage.Entry[*mat.Dense]
	lambda *stage.Entry[*inertia]
	mu     *stage.Entry[*mat.VecDense]
	p      *stage.Entry[*mat.VecDense]
	nproj  *stage.Entry[*mat.Dense]
}

// New registers the task-space operators of name on mech's state.
func New(name string, mech *multibody.Mechanism, opts Options) (*TaskSpace, error) {
	if opts.Regularization < 0 {
		return nil, fmt.Errorf("task space %s: regularization %g: %w", name, opts.Regularization, dynamo.ErrParameterBounds)
	}
	if opts.MaxCondition <= 0 {
		opts.MaxCondition = DefaultMaxCondition
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ts := &TaskSpace{
		name:   name,
		mech:   mech,
		opts:   opts,
		logger: logger.With(slog.String("component", "taskspace"), slog.String("task", name)),
	}

	st := mech.State()
	var err error
	ts.jac = register(st, &err, name+" jacobian", ts.calcJacobian)
	ts.jdotu = register(st, &err, name+" jacobian dot u", ts.calcJacobianDotU)
	ts.minvJT = register(st, &err, name+" M⁻¹Jᵀ", ts.calcMinvJT)
	ts.lambda = register(st, &err, name+" lambda", ts.calcLambda)
	ts.mu = register(st, &err, name+" mu", ts.calcMu)
	ts.p = register(st, &err, name+" p", ts.calcP)
	ts.nproj = register(st, &err, name+" null space", ts.calcNullSpace)
	if err != nil {
		return nil, fmt.Errorf("task space %s: %w", name, err)
	}
	return ts, nil
}

func register[T any](st *stage.State, errp *error, name string, fn func(*stage.State) (T, error)) *stage.Entry[T] {
	if *errp != nil {
		return nil
	}
	e, err := stage.Register[T](st, stage.Func[T]{Stage: stage.Velocity, Fn: fn}, stage.Lazy(), stage.Named(name))
	*errp = err
	return e
}

// AddStationTask appends a task and invalidates the operators.
func (ts *TaskSpace) AddStationTask(name string, s multibody.Station) error {
	if _, err := ts.mech.Tree().Body(s.Body); err != nil {
		return fmt.Errorf("task space %s: add %q: %w", ts.name, name, err)
	}
	ts.tasks = append(ts.tasks, StationTask{Name: name, Station: s})
	ts.mech.State().Invalidate(stage.Velocity)
	return nil
}

func (ts *TaskSpace) Name() string                    { return ts.name }
func (ts *TaskSpace) Tasks() []StationTask            { return ts.tasks }
func (ts *TaskSpace) Mechanism() *multibody.Mechanism { return ts.mech }

// Dim is the task-space dimension, three per station.
func (ts *TaskSpace) Dim() int { return 3 * len(ts.tasks) }

// Regularizations counts how many times Λ needed regularizing.
func (ts *TaskSpace) Regularizations() int { return ts.regularizations }

func (ts *TaskSpace) checkTasks() error {
	if len(ts.tasks) == 0 {
		return fmt.Errorf("task space %s: no station tasks: %w", ts.name, dynamo.ErrDimensionMismatch)
	}
	return nil
}
