package powertrain

import (
	"testing"

	"github.com/cxd309/vehicle-emulator/internal/curve"
	"github.com/cxd309/vehicle-emulator/internal/input"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStockEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultEngineSpec())
	require.NoError(t, err)
	return e
}

func TestEngineTorqueScaledByRatios(t *testing.T) {
	e := newStockEngine(t)
	ratio := 4.1 * 3.62
	assert.InDelta(t, ratio, e.Ratio(), 1e-12)
	for _, dp := range BRZProfile() {
		assert.InDelta(t, dp.Torque*ratio, e.TorqueAt(dp.RPM), 1e-9, "rpm=%g", dp.RPM)
	}
	assert.InDelta(t, 150*ratio, e.TorqueAt(1500), 1e-9)
	assert.InDelta(t, 200*ratio, e.TorqueAt(9000), 1e-9, "beyond the table clamps")
}

func TestEngineTickThrottleIsProportional(t *testing.T) {
	e := newStockEngine(t)
	in := input.Snapshot{}
	in.Set(input.Up, 0.5)
	e.Tick(0.1, in)
	assert.Equal(t, 3500.0, e.RPM)
	assert.InDelta(t, e.TorqueAt(3500), e.Torque, 1e-12)

	in.Set(input.Up, 1.7)
	e.Tick(0.1, in)
	assert.Equal(t, 7000.0, e.RPM)

	e.Tick(0.1, input.Snapshot{})
	assert.Equal(t, 0.0, e.RPM)
	assert.Equal(t, 0.0, e.Torque)
}

func TestEnginePowerAndRevMatch(t *testing.T) {
	e := newStockEngine(t)
	e.RevMatch(1000)
	assert.InDelta(t, 4100, e.RPM, 1e-9)
	assert.InDelta(t, 84, e.Power(), 1e-9)
}

func TestNewEngineValidation(t *testing.T) {
	spec := DefaultEngineSpec()
	spec.Profile = nil
	_, err := NewEngine(spec)
	assert.ErrorIs(t, err, curve.ErrEmptyTable)

	spec = DefaultEngineSpec()
	spec.Gear = 6
	_, err = NewEngine(spec)
	assert.Error(t, err)

	spec = DefaultEngineSpec()
	spec.FinalDriveRatio = 0
	_, err = NewEngine(spec)
	assert.Error(t, err)

	spec = DefaultEngineSpec()
	spec.Profile = Profile{{RPM: 1000}, {RPM: 500}}
	_, err = NewEngine(spec)
	assert.ErrorIs(t, err, curve.ErrNotMonotonic)
}

func TestSyntheticEngineCurve(t *testing.T) {
	e, err := NewEngine(EngineSpec{
		Profile:         Profile{{RPM: 0, Torque: 10}, {RPM: 100, Torque: 20}},
		FinalDriveRatio: 2,
		GearRatios:      []float64{1, 0.5},
		Gear:            1,
	})
	require.NoError(t, err)
	assert.InDelta(t, 15.0, e.TorqueAt(50), 1e-12)
	assert.InDelta(t, 10.0, e.Torque, 1e-12, "starts at the first sample")
}

func TestBrakeAbsentIsZero(t *testing.T) {
	b := NewBrake(DefaultMaxBrakingForce)
	b.Apply(1)
	b.Tick(0.1, input.Snapshot{})
	assert.Equal(t, 0.0, b.Force())
}

func TestBrakeMonotonicUpToMax(t *testing.T) {
	b := NewBrake(DefaultMaxBrakingForce)
	prev := -1.0
	for v := 0.0; v <= 1.0001; v += 0.05 {
		in := input.Snapshot{}
		in.Set(input.Down, v)
		b.Tick(0.1, in)
		assert.Greater(t, b.Force(), prev)
		assert.LessOrEqual(t, b.Force(), DefaultMaxBrakingForce)
		prev = b.Force()
	}

	in := input.Snapshot{}
	in.Set(input.Down, 5)
	b.Tick(0.1, in)
	assert.Equal(t, DefaultMaxBrakingForce, b.Force())
}
