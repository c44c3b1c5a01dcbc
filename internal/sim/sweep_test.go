package sim_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/taskctl/internal/control"
	"github.com/san-kum/taskctl/internal/dynamo"
	"github.com/san-kum/taskctl/internal/models"
	"github.com/san-kum/taskctl/internal/sim"
)

func TestGainGrid(t *testing.T) {
	base := control.DefaultSettings(models.NewPendulum())
	grid, err := sim.GainGrid(base, []float64{10, 50}, []float64{2, 5, 8})
	require.NoError(t, err)
	require.Len(t, grid, 6)
	assert.Equal(t, 10.0, grid[0].Kp)
	assert.Equal(t, 2.0, grid[0].Kd)
	assert.Equal(t, 50.0, grid[5].Kp)
	assert.Equal(t, 8.0, grid[5].Kd)
	assert.Equal(t, base.Target, grid[3].Target)

	_, err = sim.GainGrid(base, []float64{-1}, []float64{1})
	assert.ErrorIs(t, err, dynamo.ErrParameterBounds)
}

func TestSweep(t *testing.T) {
	arm := models.NewPendulum()
	grid, err := sim.GainGrid(control.DefaultSettings(arm), []float64{20, 100}, []float64{5, 20})
	require.NoError(t, err)

	spec := sim.SweepSpec{
		Arm:        arm,
		MassScale:  1,
		Integrator: "rk4",
		Config:     sim.Config{Dt: 0.005, Duration: 0.1},
		Workers:    2,
		Logger:     quiet,
	}
	outcomes, err := sim.Sweep(context.Background(), spec, grid)
	require.NoError(t, err)
	require.Len(t, outcomes, len(grid))
	for i, o := range outcomes {
		require.NoError(t, o.Err)
		assert.Equal(t, grid[i], o.Settings)
		assert.Equal(t, 20, o.Result.StepsTaken)
		assert.Contains(t, o.Result.Metrics, "tracking_error")
	}
}

func TestSweepIsolatesTrialErrors(t *testing.T) {
	arm := models.NewPendulum()
	good := control.DefaultSettings(arm)
	bad := good
	bad.Kp = -1

	spec := sim.SweepSpec{
		Arm:        arm,
		MassScale:  1,
		Integrator: "euler",
		Config:     sim.Config{Dt: 0.01, Duration: 0.05},
		Logger:     quiet,
	}
	outcomes, err := sim.Sweep(context.Background(), spec, []control.Settings{bad, good})
	require.NoError(t, err)
	assert.ErrorIs(t, outcomes[0].Err, dynamo.ErrParameterBounds)
	assert.Nil(t, outcomes[0].Result)
	assert.NoError(t, outcomes[1].Err)
}

func TestSweepRejectsUnknownIntegrator(t *testing.T) {
	spec := sim.SweepSpec{
		Arm:        models.NewPendulum(),
		MassScale:  1,
		Integrator: "leapfrog",
		Config:     sim.Config{Dt: 0.01, Duration: 0.05},
	}
	_, err := sim.Sweep(context.Background(), spec, nil)
	assert.Error(t, err)
}
