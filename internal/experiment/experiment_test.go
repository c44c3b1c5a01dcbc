package experiment

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/taskctl/internal/config"
	"github.com/san-kum/taskctl/internal/control"
	"github.com/san-kum/taskctl/internal/dynamo"
	"github.com/san-kum/taskctl/internal/models"
)

var quiet = slog.New(slog.DiscardHandler)

func shortPreset(t *testing.T, model, preset string) *config.Config {
	t.Helper()
	cfg := config.GetPreset(model, preset)
	require.NotNil(t, cfg)
	cfg.Dt = 0.005
	cfg.Duration = 0.05
	return cfg
}

func TestRunPreset(t *testing.T) {
	e, err := New(shortPreset(t, "ur10", "reach"), WithLogger(quiet))
	require.NoError(t, err)
	assert.Equal(t, "ur10/taskspace/rk4", e.String())
	require.NotNil(t, e.Controller())

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, res.StepsTaken)
	for _, name := range []string{"tracking_error", "overshoot", "control_effort", "saturation", "energy", "energy_drift", "divergence"} {
		assert.Contains(t, res.Metrics, name)
	}
	assert.Zero(t, res.Metrics["divergence"])
	assert.Less(t, res.Metrics["tracking_error"], res.TaskErrors[0])
}

func TestPassiveRun(t *testing.T) {
	e, err := New(shortPreset(t, "pendulum", "limp"), WithLogger(quiet))
	require.NoError(t, err)
	assert.Nil(t, e.Controller())
	assert.Equal(t, e.Arm().Target, e.Target())

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.TaskErrors)
	assert.Zero(t, res.Metrics["control_effort"])
	assert.Less(t, res.Metrics["energy_drift"], 1e-6)
}

func TestTargetIsLive(t *testing.T) {
	e, err := New(shortPreset(t, "two-link", "reach"), WithLogger(quiet))
	require.NoError(t, err)

	before := e.Target()
	_, err = e.Controller().MoveTarget(control.AxisZ, control.TargetIncrement)
	require.NoError(t, err)
	assert.InDelta(t, before.Z+control.TargetIncrement, e.Target().Z, 1e-15)
}

func TestStepperStartsAtInitialState(t *testing.T) {
	cfg := shortPreset(t, "two-link", "reach")
	cfg.InitState.Q = []float64{-1.0, 1.0}
	e, err := New(cfg, WithLogger(quiet))
	require.NoError(t, err)

	st, err := e.Stepper()
	require.NoError(t, err)
	assert.Equal(t, dynamo.State{-1.0, 1.0, 0, 0}, st.State())
}

func TestNewRejectsInvalid(t *testing.T) {
	cfg := shortPreset(t, "pendulum", "reach")
	cfg.MassScale = -1
	_, err := New(cfg)
	assert.ErrorIs(t, err, dynamo.ErrParameterBounds)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"none", "taskspace"}, r.ListControllers())
	assert.Equal(t, models.Names(), r.ListModels())
	assert.Contains(t, r.ListIntegrators(), "rk4")

	arm := models.NewPendulum()
	_, err := r.GetController("lqr", arm, config.DefaultConfig(), quiet)
	assert.Error(t, err)

	called := false
	r.Register("hold", func(arm *models.Arm, cfg *config.Config, logger *slog.Logger) (control.TorqueSource, error) {
		called = true
		return control.NewNone(arm.NumCoords()), nil
	})
	src, err := r.GetController("hold", arm, config.DefaultConfig(), quiet)
	require.NoError(t, err)
	assert.True(t, called)
	tau, err := src.Torque(nil)
	require.NoError(t, err)
	assert.Len(t, tau, 1)
}
