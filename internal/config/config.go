package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/taskctl/internal/control"
	"github.com/san-kum/taskctl/internal/dynamo"
	"github.com/san-kum/taskctl/internal/integrators"
	"github.com/san-kum/taskctl/internal/models"
	"github.com/san-kum/taskctl/internal/sim"
	"github.com/san-kum/taskctl/internal/taskspace"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	DefaultDt        = 0.002
	DefaultDuration  = 5.0
	DefaultMassScale = 1.0
)

// Controller names accepted in Config.Controller.
const (
	ControllerTaskSpace = "taskspace"
	ControllerNone      = "none"
)

// Vec3 is a point in ground coordinates, written as [x, y, z].
type Vec3 [3]float64

func (v Vec3) R3() r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }

func FromR3(p r3.Vec) *Vec3 { return &Vec3{p.X, p.Y, p.Z} }

type Config struct {
	Model      string  `yaml:"model"`
	Integrator string  `yaml:"integrator"`
	Controller string  `yaml:"controller"`
	Dt         float64 `yaml:"dt"`
	Duration   float64 `yaml:"duration"`

	// MassScale multiplies every plant mass; the controller's model always
	// uses the nominal arm.
	MassScale         float64 `yaml:"mass_scale"`
	HoldOnRecoverable bool    `yaml:"hold_on_recoverable"`

	InitState        InitStateConfig  `yaml:"init_state"`
	ControllerParams ControllerConfig `yaml:"controller_params"`

	// TorqueLimits overrides the arm's per-joint limits when set.
	TorqueLimits []float64 `yaml:"torque_limits,omitempty"`
}

// InitStateConfig overrides the arm's home pose. Empty slices keep it.
type InitStateConfig struct {
	Q []float64 `yaml:"q,omitempty,flow"`
	U []float64 `yaml:"u,omitempty,flow"`
}

type ControllerConfig struct {
	Kp      float64 `yaml:"kp"`
	Kd      float64 `yaml:"kd"`
	Damping float64 `yaml:"damping"`

	// Target defaults to the arm's target when unset.
	Target            *Vec3 `yaml:"target,omitempty,flow"`
	TrackTarget       bool  `yaml:"track_target"`
	CompensateGravity bool  `yaml:"compensate_gravity"`

	Secondary SecondaryConfig `yaml:"secondary"`

	Regularization float64 `yaml:"regularization"`
	MaxCondition   float64 `yaml:"max_condition"`
}

type SecondaryConfig struct {
	Enabled bool  `yaml:"enabled"`
	Target  *Vec3 `yaml:"target,omitempty,flow"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:      "ur10",
		Integrator: "rk4",
		Controller: ControllerTaskSpace,
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		MassScale:  DefaultMassScale,
		ControllerParams: ControllerConfig{
			Kp:                control.DefaultKp,
			Kd:                control.DefaultKd,
			Damping:           control.DefaultDamping,
			TrackTarget:       true,
			CompensateGravity: true,
			Regularization:    taskspace.DefaultRegularization,
			MaxCondition:      taskspace.DefaultMaxCondition,
		},
	}
}

// Load reads a YAML file over DefaultConfig and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every problem with c at once.
func (c *Config) Validate() error {
	var errs []error
	bounds := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format+": %w", append(args, dynamo.ErrParameterBounds)...))
	}

	arm, err := models.Lookup(c.Model)
	if err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains(integrators.Names(), c.Integrator) {
		bounds("unknown integrator %q", c.Integrator)
	}
	if c.Controller != ControllerTaskSpace && c.Controller != ControllerNone {
		bounds("unknown controller %q", c.Controller)
	}
	if err := c.SimConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if !(c.MassScale > 0) {
		bounds("mass_scale = %g", c.MassScale)
	}
	p := c.ControllerParams
	if p.Regularization < 0 {
		bounds("regularization = %g", p.Regularization)
	}
	if p.MaxCondition != 0 && !(p.MaxCondition > 1) {
		bounds("max_condition = %g", p.MaxCondition)
	}

	if arm != nil {
		n := arm.NumCoords()
		for name, v := range map[string][]float64{
			"init_state.q":  c.InitState.Q,
			"init_state.u":  c.InitState.U,
			"torque_limits": c.TorqueLimits,
		} {
			if len(v) != 0 && len(v) != n {
				errs = append(errs, fmt.Errorf("%s has %d entries for %d joints: %w", name, len(v), n, dynamo.ErrDimensionMismatch))
			}
		}
		for i, l := range c.TorqueLimits {
			if !(l > 0) {
				bounds("torque_limits[%d] = %g", i, l)
			}
		}
		if err := c.Settings(arm).Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Arm returns the configured arm with any torque limit override applied.
func (c *Config) Arm() (*models.Arm, error) {
	arm, err := models.Lookup(c.Model)
	if err != nil {
		return nil, err
	}
	if len(c.TorqueLimits) > 0 {
		arm.TorqueLimits = slices.Clone(c.TorqueLimits)
	}
	return arm, nil
}

// InitialState is x0 = [q; u] for arm.
func (c *Config) InitialState(arm *models.Arm) dynamo.State {
	n := arm.NumCoords()
	x := make(dynamo.State, 2*n)
	copy(x, arm.HomeQ)
	if len(c.InitState.Q) == n {
		copy(x, c.InitState.Q)
	}
	if len(c.InitState.U) == n {
		copy(x[n:], c.InitState.U)
	}
	return x
}

// Settings returns the controller settings for arm.
func (c *Config) Settings(arm *models.Arm) control.Settings {
	p := c.ControllerParams
	s := control.DefaultSettings(arm)
	s.Kp, s.Kd, s.Damping = p.Kp, p.Kd, p.Damping
	s.TrackTarget = p.TrackTarget
	s.CompensateGravity = p.CompensateGravity
	s.SecondaryEnabled = p.Secondary.Enabled
	if p.Target != nil {
		s.Target = p.Target.R3()
	}
	if p.Secondary.Target != nil {
		s.SecondaryTarget = p.Secondary.Target.R3()
	}
	return s
}

func (c *Config) TaskOptions() taskspace.Options {
	return taskspace.Options{
		Regularization: c.ControllerParams.Regularization,
		MaxCondition:   c.ControllerParams.MaxCondition,
	}
}

func (c *Config) SimConfig() sim.Config {
	return sim.Config{
		Dt:                c.Dt,
		Duration:          c.Duration,
		HoldOnRecoverable: c.HoldOnRecoverable,
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.InitState.Q = slices.Clone(c.InitState.Q)
	out.InitState.U = slices.Clone(c.InitState.U)
	out.TorqueLimits = slices.Clone(c.TorqueLimits)
	if c.ControllerParams.Target != nil {
		t := *c.ControllerParams.Target
		out.ControllerParams.Target = &t
	}
	if c.ControllerParams.Secondary.Target != nil {
		t := *c.ControllerParams.Secondary.Target
		out.ControllerParams.Secondary.Target = &t
	}
	return &out
}
