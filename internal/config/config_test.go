package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/taskctl/internal/control"
	"github.com/san-kum/taskctl/internal/dynamo"
	"github.com/san-kum/taskctl/internal/models"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "ur10", cfg.Model)
	assert.Equal(t, ControllerTaskSpace, cfg.Controller)
	assert.True(t, cfg.ControllerParams.TrackTarget)
	assert.True(t, cfg.ControllerParams.CompensateGravity)
	assert.False(t, cfg.ControllerParams.Secondary.Enabled)

	arm, err := cfg.Arm()
	require.NoError(t, err)
	assert.Equal(t, control.DefaultSettings(arm), cfg.Settings(arm))
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	doc := `
model: two-link
dt: 0.001
init_state:
  q: [-1.0, 1.5]
controller_params:
  kp: 50
  target: [1.2, 0, -0.2]
  secondary:
    enabled: true
torque_limits: [200, 150]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "two-link", cfg.Model)
	assert.Equal(t, 0.001, cfg.Dt)
	assert.Equal(t, DefaultDuration, cfg.Duration)
	assert.Equal(t, "rk4", cfg.Integrator)

	arm, err := cfg.Arm()
	require.NoError(t, err)
	assert.Equal(t, []float64{200, 150}, arm.TorqueLimits)
	assert.Equal(t, dynamo.State{-1.0, 1.5, 0, 0}, cfg.InitialState(arm))

	s := cfg.Settings(arm)
	assert.Equal(t, 50.0, s.Kp)
	assert.Equal(t, control.DefaultKd, s.Kd)
	assert.Equal(t, r3.Vec{X: 1.2, Z: -0.2}, s.Target)
	assert.True(t, s.SecondaryEnabled)
	assert.Equal(t, arm.ForearmTarget, s.SecondaryTarget)
	assert.True(t, s.CompensateGravity)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"unknown integrator", "integrator: leapfrog", dynamo.ErrParameterBounds},
		{"negative gain", "controller_params: {kd: -1}", dynamo.ErrParameterBounds},
		{"zero dt", "dt: 0", dynamo.ErrParameterBounds},
		{"mass scale", "mass_scale: 0", dynamo.ErrParameterBounds},
		{"initial pose length", "init_state: {q: [1, 2]}", dynamo.ErrDimensionMismatch},
		{"limit count", "torque_limits: [1, 2, 3]", dynamo.ErrDimensionMismatch},
		{"negative limit", "torque_limits: [1, 1, 1, 1, 1, -1]", dynamo.ErrParameterBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.doc), 0644))
			_, err := Load(path)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: hexapod"), 0644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "hexapod")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSaveLoadPreservesTargets(t *testing.T) {
	cfg := GetPreset("spatial4", "forearm")
	require.NotNil(t, cfg)
	cfg.ControllerParams.Target = FromR3(r3.Vec{X: 0.4, Y: 0.2, Z: 0.7})

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestPresets(t *testing.T) {
	for _, model := range models.Names() {
		names := ListPresets(model)
		require.NotEmpty(t, names, model)
		assert.Contains(t, names, "reach")
		for _, name := range names {
			cfg := GetPreset(model, name)
			require.NotNil(t, cfg)
			assert.Equal(t, model, cfg.Model)
			assert.NoError(t, cfg.Validate(), "%s/%s", model, name)
		}
	}

	assert.Nil(t, GetPreset("ur10", "nonexistent"))
	assert.Nil(t, GetPreset("nonexistent", "reach"))
	assert.Nil(t, ListPresets("nonexistent"))

	a := GetPreset("two-link", "heavy")
	a.Duration = 99
	assert.NotEqual(t, 99.0, GetPreset("two-link", "heavy").Duration)
}

func TestClone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TorqueLimits = []float64{1, 2, 3, 4, 5, 6}
	cfg.ControllerParams.Target = &Vec3{1, 2, 3}

	c := cfg.Clone()
	c.TorqueLimits[0] = 9
	c.ControllerParams.Target[0] = 9
	assert.Equal(t, 1.0, cfg.TorqueLimits[0])
	assert.Equal(t, 1.0, cfg.ControllerParams.Target[0])
}
