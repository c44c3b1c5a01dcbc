package sim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/taskctl/internal/control"
	"github.com/san-kum/taskctl/internal/dynamo"
	"github.com/san-kum/taskctl/internal/integrators"
	"github.com/san-kum/taskctl/internal/sim"
)

func TestStepper(t *testing.T) {
	plant := newPendulumPlant(t)
	arm := plant.Arm()
	ctrl, err := control.NewController(arm, control.DefaultSettings(arm), control.WithLogger(quiet))
	require.NoError(t, err)
	integ, err := integrators.New("rk4")
	require.NoError(t, err)

	x0 := plant.InitialState()
	st, err := sim.NewStepper(plant, ctrl, integ, x0, sim.Config{Dt: 0.01, Duration: 1})
	require.NoError(t, err)

	tick, err := st.Step()
	require.NoError(t, err)
	assert.Equal(t, 0, tick.Step)
	assert.Equal(t, 0.0, tick.Time)
	assert.Equal(t, x0, tick.State)
	assert.True(t, tick.Reported)
	assert.Equal(t, 1, tick.Report.Invocation)
	assert.Len(t, tick.Torque, 1)
	assert.Equal(t, 1, st.Steps())
	assert.InDelta(t, 0.01, st.Time(), 1e-15)
	assert.NotEqual(t, x0, st.State())

	tick, err = st.Step()
	require.NoError(t, err)
	assert.Equal(t, 2, tick.Report.Invocation)

	require.NoError(t, st.Reset(x0))
	assert.Equal(t, 0, st.Steps())
	assert.Equal(t, x0, st.State())
	assert.ErrorIs(t, st.Reset(dynamo.State{1}), dynamo.ErrDimensionMismatch)
}

func TestStepperFailureLeavesState(t *testing.T) {
	plant := newPendulumPlant(t)
	integ, err := integrators.New("euler")
	require.NoError(t, err)

	x0 := plant.InitialState()
	st, err := sim.NewStepper(plant, &scripted{err: dynamo.ErrSensorRead}, integ, x0, sim.Config{Dt: 0.01})
	require.NoError(t, err)

	_, err = st.Step()
	var simErr *dynamo.SimulationError
	require.ErrorAs(t, err, &simErr)
	assert.ErrorIs(t, err, dynamo.ErrSensorRead)
	assert.Equal(t, x0, simErr.State)
	assert.Equal(t, x0, st.State())
	assert.Equal(t, 0, st.Steps())

	_, err = sim.NewStepper(plant, control.NewNone(1), integ, x0, sim.Config{})
	assert.ErrorIs(t, err, dynamo.ErrParameterBounds)
}
