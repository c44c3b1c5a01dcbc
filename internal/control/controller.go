package control

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/san-kum/taskctl/internal/dynamo"
	"github.com/san-kum/taskctl/internal/models"
	"github.com/san-kum/taskctl/internal/multibody"
	"github.com/san-kum/taskctl/internal/stage"
	"github.com/san-kum/taskctl/internal/taskspace"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Report describes the most recent Torque call.
type Report struct {
	Invocation int
	Target     r3.Vec
	Position   r3.Vec
	TaskError  float64

	// Sensed is set when the arm measured its own end effector; Mismatch
	// is then the distance between that reading and the model's.
	Sensed         bool
	SensedPosition r3.Vec
	Mismatch       float64

	Regularized bool
	Saturated   int

	TrackTarget       bool
	CompensateGravity bool
	SecondaryEnabled  bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithTaskOptions overrides the regularization of both task spaces. Its
// Regularization also becomes the mass matrix regularization.
func WithTaskOptions(o taskspace.Options) Option {
	return func(c *Controller) { c.taskOpts = o }
}

// Controller is a two-level task-space controller with gravity
// compensation and joint damping in the null space. Torque must not be
// called concurrently; the settings methods are safe to call from any
// goroutine at any time.
type Controller struct {
	arm       *models.Arm
	mech      *multibody.Mechanism
	primary   *taskspace.TaskSpace
	secondary *taskspace.TaskSpace
	taskOpts  taskspace.Options
	logger    *slog.Logger

	busy atomic.Bool

	mu          sync.Mutex
	settings    Settings
	report      Report
	invocations int

	q, u []float64
}

// NewController builds the controller's internal model from arm.
func NewController(arm *models.Arm, settings Settings, opts ...Option) (*Controller, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("new controller: %w", err)
	}
	c := &Controller{
		arm:      arm,
		settings: settings,
		taskOpts: taskspace.DefaultOptions(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "controller"), slog.String("arm", arm.Name))
	c.taskOpts.Logger = c.logger

	tree, err := arm.Build(1)
	if err != nil {
		return nil, err
	}
	c.mech, err = multibody.NewMechanism(tree, multibody.StandardGravity)
	if err != nil {
		return nil, err
	}
	if err := c.mech.SetMassRegularization(c.taskOpts.Regularization); err != nil {
		return nil, err
	}

	ee, err := arm.Station(tree, arm.EndEffector)
	if err != nil {
		return nil, err
	}
	if c.primary, err = taskspace.New("end effector", c.mech, c.taskOpts); err != nil {
		return nil, err
	}
	if err := c.primary.AddStationTask("end effector", ee); err != nil {
		return nil, err
	}

	fore, err := arm.Station(tree, arm.Forearm)
	if err != nil {
		return nil, err
	}
	if c.secondary, err = taskspace.New("forearm", c.mech, c.taskOpts); err != nil {
		return nil, err
	}
	if err := c.secondary.AddStationTask("forearm", fore); err != nil {
		return nil, err
	}

	n := c.mech.NumQ()
	c.q = make([]float64, n)
	c.u = make([]float64, n)
	return c, nil
}

func (c *Controller) Arm() *models.Arm { return c.arm }

// Mechanism exposes the internal model, for inspection only.
func (c *Controller) Mechanism() *multibody.Mechanism { return c.mech }

// Torque samples s, refreshes the internal model and returns the clamped
// joint torque command.
func (c *Controller) Torque(s Sensors) ([]float64, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, dynamo.ErrReentrantInvocation
	}
	defer c.busy.Store(false)

	c.mu.Lock()
	cfg := c.settings
	c.invocations++
	rep := Report{
		Invocation:        c.invocations,
		Target:            cfg.Target,
		TrackTarget:       cfg.TrackTarget,
		CompensateGravity: cfg.CompensateGravity,
		SecondaryEnabled:  cfg.SecondaryEnabled,
	}
	c.mu.Unlock()

	if err := c.sense(s, &rep); err != nil {
		return nil, err
	}

	tau, err := c.compute(cfg, &rep)
	if err != nil {
		return nil, err
	}
	for i, v := range tau {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("torque[%d] = %g: %w", i, v, dynamo.ErrNumericalFailure)
		}
	}
	rep.Saturated = c.arm.ClampToLimits(tau)

	c.mu.Lock()
	c.report = rep
	c.mu.Unlock()
	return tau, nil
}

func (c *Controller) sense(s Sensors, rep *Report) error {
	n := c.mech.NumQ()
	if s.NumCoords() != n {
		return fmt.Errorf("sensors report %d coordinates, model has %d: %w", s.NumCoords(), n, dynamo.ErrDimensionMismatch)
	}
	for i := 0; i < n; i++ {
		q, err := s.SenseJointAngle(i)
		if err != nil {
			return sensorError("joint angle", i, err)
		}
		u, err := s.SenseJointRate(i)
		if err != nil {
			return sensorError("joint rate", i, err)
		}
		c.q[i], c.u[i] = q, u
	}
	if err := c.mech.SetQ(c.q); err != nil {
		return err
	}
	if err := c.mech.SetU(c.u); err != nil {
		return err
	}
	if err := c.mech.Realize(stage.Velocity); err != nil {
		return err
	}

	x, _, err := c.primary.FindStationLocationAndVelocity(0)
	if err != nil {
		return err
	}
	rep.Position = x
	rep.TaskError = r3.Norm(r3.Sub(rep.Target, x))

	if ees, ok := s.(EndEffectorSensor); ok {
		sensed, err := ees.SenseEndEffectorPosition()
		if err != nil {
			return sensorError("end effector", 0, err)
		}
		rep.Sensed = true
		rep.SensedPosition = sensed
		rep.Mismatch = r3.Norm(r3.Sub(sensed, x))
	}
	return nil
}

func sensorError(what string, i int, err error) error {
	if errors.Is(err, dynamo.ErrSensorRead) {
		return fmt.Errorf("sense %s %d: %w", what, i, err)
	}
	return fmt.Errorf("sense %s %d: %w: %w", what, i, dynamo.ErrSensorRead, err)
}

// compute evaluates the prioritized control law on the realized model:
//
//	tracking:     τ = J₁ᵀF₁ + N₁(tail − c u)
//	not tracking: τ = g − c u, or −c u without gravity compensation
//
// where F₁ = Λ₁F₁* + μ₁ + p₁ and tail is g, the secondary task, or both.
func (c *Controller) compute(cfg Settings, rep *Report) ([]float64, error) {
	n := c.mech.NumQ()
	g, err := c.primary.G()
	if err != nil {
		return nil, err
	}

	damp := make([]float64, n)
	floats.ScaleTo(damp, -cfg.Damping, c.u)

	if !cfg.TrackTarget {
		if cfg.CompensateGravity {
			floats.Add(damp, g.RawVector().Data)
		}
		return damp, nil
	}

	f1, err := c.taskForce(c.primary, cfg.Target, cfg, true)
	if err != nil {
		return nil, err
	}
	jt, err := c.primary.JT()
	if err != nil {
		return nil, err
	}
	tau := mat.NewVecDense(n, nil)
	tau.MulVec(jt, f1)

	tail := mat.NewVecDense(n, damp)
	if cfg.SecondaryEnabled {
		t2, err := c.secondaryTorque(cfg)
		if err != nil {
			return nil, err
		}
		tail.AddVec(tail, t2)
	} else if cfg.CompensateGravity {
		tail.AddVec(tail, g)
	}

	proj, err := c.primary.Project(tail)
	if err != nil {
		return nil, err
	}
	tau.AddVec(tau, proj)

	reg, _, err := c.primary.Regularized()
	if err != nil {
		return nil, err
	}
	rep.Regularized = reg
	return tau.RawVector().Data, nil
}

// taskForce returns F = Λ F* + μ (+ p) with F* = Kd(0 − ẋ) + Kp(x_des − x).
func (c *Controller) taskForce(ts *taskspace.TaskSpace, target r3.Vec, cfg Settings, withGravity bool) (*mat.VecDense, error) {
	x, v, err := ts.FindStationLocationAndVelocity(0)
	if err != nil {
		return nil, err
	}
	fs := r3.Add(r3.Scale(-cfg.Kd, v), r3.Scale(cfg.Kp, r3.Sub(target, x)))
	fstar := mat.NewVecDense(3, []float64{fs.X, fs.Y, fs.Z})

	lambda, err := ts.Lambda()
	if err != nil {
		return nil, err
	}
	mu, err := ts.Mu()
	if err != nil {
		return nil, err
	}
	f := mat.NewVecDense(3, nil)
	f.MulVec(lambda, fstar)
	f.AddVec(f, mu)
	if withGravity {
		p, err := ts.P()
		if err != nil {
			return nil, err
		}
		f.AddVec(f, p)
	}
	return f, nil
}

// secondaryTorque is J₂ᵀF₂ plus, with gravity compensation, N₂ g.
func (c *Controller) secondaryTorque(cfg Settings) (*mat.VecDense, error) {
	f2, err := c.taskForce(c.secondary, cfg.SecondaryTarget, cfg, cfg.CompensateGravity)
	if err != nil {
		return nil, err
	}
	jt, err := c.secondary.JT()
	if err != nil {
		return nil, err
	}
	out := mat.NewVecDense(c.mech.NumQ(), nil)
	out.MulVec(jt, f2)
	if cfg.CompensateGravity {
		g, err := c.secondary.G()
		if err != nil {
			return nil, err
		}
		ng, err := c.secondary.Project(g)
		if err != nil {
			return nil, err
		}
		out.AddVec(out, ng)
	}
	return out, nil
}

// Settings returns a snapshot of the current settings.
func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Update applies fn to a copy of the settings and keeps the result if it
// validates.
func (c *Controller) Update(fn func(*Settings)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.settings
	fn(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	c.settings = next
	return nil
}

// SetTarget moves the reaching target.
func (c *Controller) SetTarget(p r3.Vec) error {
	return c.Update(func(s *Settings) { s.Target = p })
}

// MoveTarget shifts the reaching target by delta along axis.
func (c *Controller) MoveTarget(axis Axis, delta float64) (r3.Vec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := nudge(c.settings.Target, axis, delta)
	if err != nil {
		return c.settings.Target, err
	}
	c.settings.Target = next
	c.logger.Debug("target moved", slog.String("axis", axis.String()), slog.Float64("delta", delta))
	return next, nil
}

// ToggleGravityCompensation flips gravity compensation and returns the new
// state.
func (c *Controller) ToggleGravityCompensation() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.CompensateGravity = !c.settings.CompensateGravity
	c.logger.Info("gravity compensation toggled", slog.Bool("on", c.settings.CompensateGravity))
	return c.settings.CompensateGravity
}

// ToggleTask flips end-effector tracking and returns the new state.
func (c *Controller) ToggleTask() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.TrackTarget = !c.settings.TrackTarget
	c.logger.Info("task tracking toggled", slog.Bool("on", c.settings.TrackTarget))
	return c.settings.TrackTarget
}

// ToggleSecondary flips the forearm task and returns the new state.
func (c *Controller) ToggleSecondary() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.SecondaryEnabled = !c.settings.SecondaryEnabled
	c.logger.Info("secondary task toggled", slog.Bool("on", c.settings.SecondaryEnabled))
	return c.settings.SecondaryEnabled
}

// LastReport returns diagnostics from the most recent successful call.
func (c *Controller) LastReport() Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.report
}

// Regularizations counts regularized inversions of M and of both task-space
// operators so far.
func (c *Controller) Regularizations() int {
	return c.mech.MassRegularizations() + c.primary.Regularizations() + c.secondary.Regularizations()
}
