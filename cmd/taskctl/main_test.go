package main

import (
	"errors"
	"testing"

	"github.com/san-kum/taskctl/internal/sim"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, flags ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addConfigFlags(cmd)
	require.NoError(t, cmd.Flags().Parse(flags))
	return cmd
}

func TestBuildConfigLayersFlagsOverPreset(t *testing.T) {
	cmd := parse(t, "--preset", "stiff", "--kd", "30", "--target", "0.5,0,0.2", "--hold")

	cfg, err := buildConfig(cmd, []string{"two-link"})
	require.NoError(t, err)
	assert.Equal(t, "two-link", cfg.Model)
	assert.Equal(t, 400.0, cfg.ControllerParams.Kp, "preset value kept")
	assert.Equal(t, 30.0, cfg.ControllerParams.Kd, "flag wins")
	require.NotNil(t, cfg.ControllerParams.Target)
	assert.Equal(t, [3]float64{0.5, 0, 0.2}, [3]float64(*cfg.ControllerParams.Target))
	assert.True(t, cfg.HoldOnRecoverable)
}

func TestBuildConfigDefaultsUntouched(t *testing.T) {
	cfg, err := buildConfig(parse(t), []string{"pendulum"})
	require.NoError(t, err)
	assert.Equal(t, "pendulum", cfg.Model)
	assert.Equal(t, "rk4", cfg.Integrator)
	assert.Nil(t, cfg.ControllerParams.Target)
}

func TestBuildConfigRejects(t *testing.T) {
	_, err := buildConfig(parse(t, "--preset", "nope"), []string{"ur10"})
	assert.ErrorContains(t, err, "unknown preset")

	_, err = buildConfig(parse(t, "--preset", "reach"), nil)
	assert.Error(t, err)

	_, err = buildConfig(parse(t, "--target", "1,2"), []string{"ur10"})
	assert.ErrorContains(t, err, "three values")

	_, err = buildConfig(parse(t, "--dt=-1"), []string{"ur10"})
	assert.Error(t, err)
}

func TestCompareOutcomes(t *testing.T) {
	res := func(e float64) *sim.Result {
		return &sim.Result{Metrics: map[string]float64{"tracking_error": e}}
	}
	good := sim.Outcome{Result: res(0.01)}
	better := sim.Outcome{Result: res(0.001)}
	failed := sim.Outcome{Result: res(0), Err: errors.New("singular")}

	assert.Equal(t, -1, compareOutcomes(better, good))
	assert.Equal(t, 1, compareOutcomes(good, better))
	assert.Equal(t, -1, compareOutcomes(good, failed))
	assert.Equal(t, 1, compareOutcomes(failed, good))
	assert.Equal(t, 0, compareOutcomes(failed, sim.Outcome{}))
}

func TestCaption(t *testing.T) {
	assert.Equal(t, "joint 1 angle (rad)", caption("q1"))
	assert.Equal(t, "joint 0 torque (N m)", caption("tau0"))
	assert.Contains(t, caption("task_error"), "task error")
}
