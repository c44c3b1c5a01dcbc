package sim

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/san-kum/taskctl/internal/control"
	"github.com/san-kum/taskctl/internal/integrators"
	"github.com/san-kum/taskctl/internal/metrics"
	"github.com/san-kum/taskctl/internal/models"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// SweepSpec describes the plant and loop shared by every trial of a sweep.
type SweepSpec struct {
	Arm        *models.Arm
	MassScale  float64
	Integrator string
	Config     Config

	// Workers bounds the number of concurrent runs; 0 means GOMAXPROCS.
	Workers   int
	Logger    *slog.Logger
	Collector *metrics.Collector
}

// Outcome is the result of one trial. A trial that fails does not stop
// the others; its error is kept in Err.
type Outcome struct {
	Settings control.Settings
	Result   *Result
	Err      error
}

// Sweep runs one independent plant and controller per settings value,
// concurrently, and returns outcomes in the order of trials.
func Sweep(ctx context.Context, spec SweepSpec, trials []control.Settings) ([]Outcome, error) {
	if err := spec.Config.Validate(); err != nil {
		return nil, err
	}
	if _, err := integrators.New(spec.Integrator); err != nil {
		return nil, err
	}
	logger := spec.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := spec.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	outcomes := make([]Outcome, len(trials))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, settings := range trials {
		g.Go(func() error {
			res, err := runTrial(gctx, spec, settings, logger.With(slog.Int("trial", i)))
			outcomes[i] = Outcome{Settings: settings, Result: res, Err: err}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

func runTrial(ctx context.Context, spec SweepSpec, settings control.Settings, logger *slog.Logger) (*Result, error) {
	plant, err := models.NewPlant(spec.Arm, spec.MassScale)
	if err != nil {
		return nil, err
	}
	ctrl, err := control.NewController(spec.Arm, settings, control.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	integ, err := integrators.New(spec.Integrator)
	if err != nil {
		return nil, err
	}
	s := New(plant, ctrl, integ, WithLogger(logger), WithCollector(spec.Collector))
	s.AddMetric(metrics.NewTrackingError(plant.EndEffectorAt, func() r3.Vec { return settings.Target }))
	return s.Run(ctx, plant.InitialState(), spec.Config)
}

// GainGrid returns base with every combination of kps and kds.
func GainGrid(base control.Settings, kps, kds []float64) ([]control.Settings, error) {
	grid := make([]control.Settings, 0, len(kps)*len(kds))
	for _, kp := range kps {
		for _, kd := range kds {
			s := base
			s.Kp, s.Kd = kp, kd
			if err := s.Validate(); err != nil {
				return nil, fmt.Errorf("gain grid kp=%g kd=%g: %w", kp, kd, err)
			}
			grid = append(grid, s)
		}
	}
	return grid, nil
}

var _ System = (*models.Plant)(nil)
