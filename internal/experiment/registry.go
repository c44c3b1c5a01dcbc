package experiment

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/san-kum/taskctl/internal/config"
	"github.com/san-kum/taskctl/internal/control"
	"github.com/san-kum/taskctl/internal/dynamo"
	"github.com/san-kum/taskctl/internal/integrators"
	"github.com/san-kum/taskctl/internal/metrics"
	"github.com/san-kum/taskctl/internal/models"
	"gonum.org/v1/gonum/spatial/r3"
)

// ControllerFactory builds a torque source for arm from cfg.
type ControllerFactory func(arm *models.Arm, cfg *config.Config, logger *slog.Logger) (control.TorqueSource, error)

type Registry struct {
	controllers map[string]ControllerFactory
}

func NewRegistry() *Registry {
	r := &Registry{controllers: make(map[string]ControllerFactory)}

	r.controllers[config.ControllerNone] = func(arm *models.Arm, cfg *config.Config, logger *slog.Logger) (control.TorqueSource, error) {
		return control.NewNone(arm.NumCoords()), nil
	}
	r.controllers[config.ControllerTaskSpace] = func(arm *models.Arm, cfg *config.Config, logger *slog.Logger) (control.TorqueSource, error) {
		opts := cfg.TaskOptions()
		return control.NewController(arm, cfg.Settings(arm),
			control.WithLogger(logger),
			control.WithTaskOptions(opts))
	}
	return r
}

// Register adds or replaces a controller.
func (r *Registry) Register(name string, f ControllerFactory) {
	r.controllers[name] = f
}

func (r *Registry) GetModel(name string) (*models.Arm, error) {
	return models.Lookup(name)
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	return integrators.New(name)
}

func (r *Registry) GetController(name string, arm *models.Arm, cfg *config.Config, logger *slog.Logger) (control.TorqueSource, error) {
	fn, ok := r.controllers[name]
	if !ok {
		return nil, fmt.Errorf("unknown controller: %s", name)
	}
	return fn(arm, cfg, logger)
}

func (r *Registry) ListModels() []string      { return models.Names() }
func (r *Registry) ListIntegrators() []string { return integrators.Names() }

func (r *Registry) ListControllers() []string {
	names := make([]string, 0, len(r.controllers))
	for name := range r.controllers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics are the metrics every run records. target is read on
// each tick so a moving target is tracked.
func (r *Registry) DefaultMetrics(plant *models.Plant, target func() r3.Vec) []dynamo.Metric {
	return []dynamo.Metric{
		metrics.NewTrackingError(plant.EndEffectorAt, target),
		metrics.NewOvershoot(plant.EndEffectorAt, target()),
		metrics.NewControlEffort(),
		metrics.NewSaturation(plant.Arm().TorqueLimits),
		metrics.NewEnergy(plant),
		metrics.NewEnergyDrift(plant),
		metrics.NewDivergence(DivergenceThreshold),
	}
}

// DivergenceThreshold is the state norm past which a tick counts as
// diverged.
const DivergenceThreshold = 1e3
