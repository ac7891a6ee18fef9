package input

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotAbsentIsZero(t *testing.T) {
	s := Snapshot{}
	assert.False(t, s.Has(Up))
	assert.Equal(t, 0.0, s.Value(Up))

	s.Set(Up, 0.4)
	assert.True(t, s.Has(Up))
	assert.Equal(t, 0.4, s.Value(Up))
}

func TestSnapshotSteering(t *testing.T) {
	assert.Equal(t, 0.0, Snapshot{}.Steering())

	s := Snapshot{}
	s.Set(Left, 0.5)
	assert.Equal(t, -0.5, s.Steering())

	s = Snapshot{}
	s.Set(Right, 3)
	assert.Equal(t, 1.0, s.Steering())

	s.Set(Left, 3)
	assert.Equal(t, 0.0, s.Steering())
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1.0, Clamp(3, -1, 1))
	assert.Equal(t, -1.0, Clamp(-3, -1, 1))
	assert.Equal(t, 0.25, Clamp(0.25, -1, 1))
	assert.Equal(t, 0.0, Clamp(math.NaN(), -1, 1))
	assert.Equal(t, 2.0, Clamp(math.NaN(), 2, 3), "NaN lands inside the range")
}

func TestParseChannel(t *testing.T) {
	c, err := ParseChannel(" UP ")
	require.NoError(t, err)
	assert.Equal(t, Up, c)

	_, err = ParseChannel("jump")
	assert.Error(t, err)
}

func TestKeyboardRampThrottle(t *testing.T) {
	k := NewKeyboardRamp()
	k.Press(Up)
	s := k.Advance(0.25)
	assert.InDelta(t, 0.25, s.Value(Up), 1e-12)
	s = k.Advance(2)
	assert.Equal(t, 1.0, s.Value(Up))

	k.Release(Up)
	s = k.Advance(0.1)
	assert.Equal(t, 0.0, s.Value(Up))
	assert.True(t, s.Has(Up), "throttle channel is always reported")
}

func TestKeyboardRampSteeringHoldsAndCancels(t *testing.T) {
	k := NewKeyboardRamp()
	k.Press(Left)
	s := k.Advance(0.25)
	assert.InDelta(t, 0.5, s.Value(Left), 1e-12)
	assert.False(t, s.Has(Right))

	k.Release(Left)
	s = k.Advance(1)
	assert.InDelta(t, 0.5, s.Value(Left), 1e-12, "steering holds without keys")

	k.Press(Right)
	s = k.Advance(1)
	assert.InDelta(t, 1.0, s.Value(Right), 1e-12)
	assert.False(t, s.Has(Left))

	k.Press(Left)
	k.Advance(0.1)
	assert.False(t, k.Held(Left))
	assert.False(t, k.Held(Right))
}

func TestKeyboardRampCurrentIsCopy(t *testing.T) {
	k := NewKeyboardRamp()
	k.Press(Down)
	k.Advance(0.5)
	cur := k.Current()
	cur.Set(Down, 9)
	assert.InDelta(t, 0.5, k.Current().Value(Down), 1e-12)
}

func TestFromAxesDeadZone(t *testing.T) {
	assert.Empty(t, FromAxes(0.05, -0.05))

	s := FromAxes(-0.6, -1)
	assert.InDelta(t, 0.6, s.Value(Left), 1e-12)
	assert.Equal(t, 1.0, s.Value(Up))
	assert.False(t, s.Has(Right))

	s = FromAxes(0.3, 0.8)
	assert.InDelta(t, 0.3, s.Value(Right), 1e-12)
	assert.InDelta(t, 0.8, s.Value(Down), 1e-12)
}
