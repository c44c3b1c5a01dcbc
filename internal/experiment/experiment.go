package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/taskctl/internal/config"
	"github.com/san-kum/taskctl/internal/control"
	"github.com/san-kum/taskctl/internal/dynamo"
	"github.com/san-kum/taskctl/internal/metrics"
	"github.com/san-kum/taskctl/internal/models"
	"github.com/san-kum/taskctl/internal/sim"
	"gonum.org/v1/gonum/spatial/r3"
)

type Option func(*Experiment)

func WithLogger(l *slog.Logger) Option {
	return func(e *Experiment) { e.logger = l }
}

func WithCollector(c *metrics.Collector) Option {
	return func(e *Experiment) { e.collector = c }
}

func WithRegistry(r *Registry) Option {
	return func(e *Experiment) { e.registry = r }
}

// Experiment is one configured plant and controller pair.
type Experiment struct {
	cfg       *config.Config
	registry  *Registry
	logger    *slog.Logger
	collector *metrics.Collector

	arm        *models.Arm
	plant      *models.Plant
	controller control.TorqueSource
	integrator dynamo.Integrator
	simulator  *sim.Simulator
}

// New validates cfg and assembles the experiment.
func New(cfg *config.Config, opts ...Option) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Experiment{
		cfg:      cfg.Clone(),
		registry: NewRegistry(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	var err error
	if e.arm, err = e.cfg.Arm(); err != nil {
		return nil, err
	}
	if e.plant, err = models.NewPlant(e.arm, e.cfg.MassScale); err != nil {
		return nil, err
	}
	if e.controller, err = e.registry.GetController(e.cfg.Controller, e.arm, e.cfg, e.logger); err != nil {
		return nil, err
	}
	if e.integrator, err = e.registry.GetIntegrator(e.cfg.Integrator); err != nil {
		return nil, err
	}

	simOpts := []sim.Option{sim.WithLogger(e.logger)}
	if e.collector != nil {
		simOpts = append(simOpts, sim.WithCollector(e.collector))
	}
	e.simulator = sim.New(e.plant, e.controller, e.integrator, simOpts...)
	for _, m := range e.registry.DefaultMetrics(e.plant, e.Target) {
		e.simulator.AddMetric(m)
	}
	return e, nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	return e.simulator.Run(ctx, e.InitialState(), e.cfg.SimConfig())
}

// Stepper returns a fresh interactive loop from the initial state.
func (e *Experiment) Stepper() (*sim.Stepper, error) {
	return sim.NewStepper(e.plant, e.controller, e.integrator, e.InitialState(), e.cfg.SimConfig())
}

// Target is the controller's live target, or the configured one when the
// controller has none.
func (e *Experiment) Target() r3.Vec {
	if c := e.Controller(); c != nil {
		return c.Settings().Target
	}
	return e.cfg.Settings(e.arm).Target
}

// Controller returns the task-space controller, or nil when another
// torque source is configured.
func (e *Experiment) Controller() *control.Controller {
	c, _ := e.controller.(*control.Controller)
	return c
}

func (e *Experiment) InitialState() dynamo.State { return e.cfg.InitialState(e.arm) }
func (e *Experiment) Config() *config.Config     { return e.cfg }
func (e *Experiment) Arm() *models.Arm           { return e.arm }
func (e *Experiment) Plant() *models.Plant       { return e.plant }
func (e *Experiment) Simulator() *sim.Simulator  { return e.simulator }

func (e *Experiment) String() string {
	return fmt.Sprintf("%s/%s/%s", e.cfg.Model, e.cfg.Controller, e.cfg.Integrator)
}
