package kinematics

import (
	"encoding/json"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	m, err := Decode(nil)
	require.NoError(t, err)
	assert.Equal(t, LinearModelName, m.Name())

	m, err = Decode(json.RawMessage(`{"model":"rotate"}`))
	require.NoError(t, err)
	assert.IsType(t, Rotate{}, m)

	_, err = Decode(json.RawMessage(`{"model":"verlet"}`))
	assert.ErrorIs(t, err, ErrUnknownModel)

	_, err = Decode(json.RawMessage(`[`))
	assert.Error(t, err)
}

func TestEncodeRoundTrip(t *testing.T) {
	m, err := Decode(Encode(Rotate{}))
	require.NoError(t, err)
	assert.Equal(t, RotateModelName, m.Name())
}

func TestLinear(t *testing.T) {
	v := Linear{}.Integrate(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{2, 0, 4}, 0.5)
	assert.Equal(t, mgl64.Vec3{2, 0, 2}, v)
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, Linear{}.Integrate(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{2, 0, 4}, 0))
}

func TestRotatePreservesSpeedUnderPureLateralAcceleration(t *testing.T) {
	v := mgl64.Vec3{10, 0, 0}
	out := Rotate{}.Integrate(v, mgl64.Vec3{0, 0, 5}, 0.1)
	assert.InDelta(t, 10.0, out.Len(), 1e-9)
	assert.Greater(t, out.Z(), 0.0)

	lin := Linear{}.Integrate(v, mgl64.Vec3{0, 0, 5}, 0.1)
	assert.Greater(t, lin.Len(), 10.0)
}

func TestRotateTangentialChangesSpeed(t *testing.T) {
	out := Rotate{}.Integrate(mgl64.Vec3{10, 0, 0}, mgl64.Vec3{3, 0, 0}, 1)
	assert.InDelta(t, 13.0, out.X(), 1e-9)
}

func TestRotateFallsBackAtRest(t *testing.T) {
	out := Rotate{}.Integrate(mgl64.Vec3{}, mgl64.Vec3{2, 0, 0}, 0.5)
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, out)
}

func TestRotateDoesNotReverse(t *testing.T) {
	out := Rotate{}.Integrate(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{-5, 0, 0}, 1)
	assert.Equal(t, mgl64.Vec3{}, out)
}
