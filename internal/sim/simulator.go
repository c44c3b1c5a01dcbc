package sim

import (
	"context"
	"log/slog"

	"github.com/san-kum/taskctl/internal/control"
	"github.com/san-kum/taskctl/internal/dynamo"
	"github.com/san-kum/taskctl/internal/metrics"
)

// System is a plant that can both be integrated and sensed.
type System interface {
	Plant
	dynamo.System
}

// Reporter is implemented by controllers that describe their last call.
type Reporter interface {
	LastReport() control.Report
}

// Option configures a Simulator.
type Option func(*Simulator)

func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// WithCollector exports per-tick loop statistics.
func WithCollector(c *metrics.Collector) Option {
	return func(s *Simulator) { s.collector = c }
}

type Simulator struct {
	plant      System
	controller control.TorqueSource
	integrator dynamo.Integrator
	metrics    []dynamo.Metric
	observers  []dynamo.Observer
	collector  *metrics.Collector
	logger     *slog.Logger
}

func New(plant System, controller control.TorqueSource, integrator dynamo.Integrator, opts ...Option) *Simulator {
	s := &Simulator{
		plant:      plant,
		controller: controller,
		integrator: integrator,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "simulator"))
	return s
}

func (s *Simulator) AddMetric(m dynamo.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }

// Run closes the loop from x0 for cfg.Duration. On failure the partial
// result is returned together with a *dynamo.SimulationError.
func (s *Simulator) Run(ctx context.Context, x0 dynamo.State, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stepper, err := NewStepper(s.plant, s.controller, s.integrator, x0, cfg)
	if err != nil {
		return nil, err
	}

	steps := cfg.Steps()
	result := &Result{
		Times:   make([]float64, 0, steps+1),
		States:  make([]dynamo.State, 0, steps+1),
		Torques: make([]dynamo.Control, 0, steps),
		Metrics: make(map[string]float64),
	}
	for _, m := range s.metrics {
		m.Reset()
	}
	result.Times = append(result.Times, 0)
	result.States = append(result.States, x0.Clone())

	s.logger.Info("run started", slog.Int("steps", steps), slog.Float64("dt", cfg.Dt))
	defer s.finish(result)

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		tick, err := stepper.Step()
		if err != nil {
			result.Failures++
			s.observeFailure(err)
			s.logger.Error("run stopped", slog.Int("step", tick.Step), slog.Float64("t", tick.Time), slog.Any("error", err))
			return result, err
		}
		s.record(result, tick)

		result.StepsTaken++
		result.Times = append(result.Times, stepper.Time())
		result.States = append(result.States, stepper.State())
		result.Torques = append(result.Torques, tick.Torque)
	}
	return result, nil
}

func (s *Simulator) record(result *Result, tick Tick) {
	if tick.Held != nil {
		result.Failures++
		s.observeFailure(tick.Held)
		s.logger.Warn("holding previous torque", slog.Int("step", tick.Step), slog.Any("error", tick.Held))
	}
	if tick.Reported {
		rep := tick.Report
		result.TaskErrors = append(result.TaskErrors, rep.TaskError)
		if rep.Regularized {
			result.Regularizations++
		}
		if rep.Saturated > 0 {
			result.Saturations++
		}
		if s.collector != nil {
			s.collector.ObserveTick(tick.Elapsed, rep.TaskError, rep.Regularized, rep.Saturated)
		}
	} else if s.collector != nil && tick.Held == nil {
		s.collector.ObserveTick(tick.Elapsed, 0, false, 0)
	}

	for _, m := range s.metrics {
		m.Observe(tick.State, tick.Torque, tick.Time)
	}
	for _, obs := range s.observers {
		obs.OnStep(tick.State, tick.Torque, tick.Time)
	}
}

func (s *Simulator) observeFailure(err error) {
	if s.collector == nil {
		return
	}
	s.collector.ObserveFailure(dynamo.Classify(err).String())
}

func (s *Simulator) finish(result *Result) {
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	s.logger.Info("run finished",
		slog.Int("steps", result.StepsTaken),
		slog.Int("failures", result.Failures),
		slog.Float64("task_error", result.FinalTaskError()))
}
