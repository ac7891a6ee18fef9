package chassis

import (
	"math"
	"testing"

	"github.com/cxd309/vehicle-emulator/internal/input"
	"github.com/cxd309/vehicle-emulator/internal/tire"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

func assertVec(t *testing.T, want, got mgl64.Vec3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9, "component %d of %v", i, got)
	}
}

func frontAxle() *Axle {
	return NewSteeringAxle(mgl64.Vec3{1.2, 0, 0}, 1.8, 40, tire.Default(), DefaultWheelSpec())
}

func rearAxle() *Axle {
	return NewDrivingAxle(mgl64.Vec3{-1.2, 0, 0}, 1.8, tire.Default(), 0.5, DefaultWheelSpec())
}

func TestWheelInertia(t *testing.T) {
	w := NewWheel(mgl64.Vec3{}, false, true, DefaultWheelSpec())
	assert.InDelta(t, 0.5*15*(0.09+0.04), w.RotationalInertia, 1e-12)
	assert.InDelta(t, 1000.0, w.DrivingForceMagnitude(300), 1e-9)
}

func TestFixedWheelIgnoresSteer(t *testing.T) {
	w := NewWheel(mgl64.Vec3{}, false, true, DefaultWheelSpec())
	w.Steer(30)
	assert.Equal(t, 0.0, w.SteeringAngle)
	assert.Equal(t, mgl64.QuatIdent(), w.Orientation)
}

func TestWheelFrameFollowsSteering(t *testing.T) {
	b := IdentityBasis()
	w := NewWheel(mgl64.Vec3{}, true, false, DefaultWheelSpec())
	w.Steer(90)
	assertVec(t, b.Right, w.Forward(b))
	assertVec(t, b.Forward.Mul(-1), w.Lateral(b))
	assertVec(t, w.Forward(b), w.Orientation.Rotate(b.Forward))
}

func TestAxleHubPlacement(t *testing.T) {
	a := rearAxle()
	assert.Equal(t, mgl64.Vec3{-1.2, 0, -0.9}, a.Left.HubCenter)
	assert.Equal(t, mgl64.Vec3{-1.2, 0, 0.9}, a.Right.HubCenter)
	assert.True(t, a.Left.Drivable)
	assert.False(t, a.Left.Steerable)
}

func TestSteerIsBounded(t *testing.T) {
	a := frontAxle()
	for _, v := range []float64{-1e6, -3, -1, -0.25, 0, 0.5, 1, 2, math.Inf(1)} {
		a.Steer(v)
		assert.LessOrEqual(t, math.Abs(a.SteeringAngle()), 40.0, "value %v", v)
		assert.Equal(t, a.SteeringAngle(), a.Left.SteeringAngle)
		assert.Equal(t, a.SteeringAngle(), a.Right.SteeringAngle)
	}
	a.Steer(0.5)
	assert.Equal(t, 20.0, a.SteeringAngle())

	a.Steer(math.NaN())
	assert.Equal(t, 0.0, a.SteeringAngle())
	assert.Equal(t, 0.0, a.Left.SteeringAngle)
}

func TestAxleTickReadsSteeringChannels(t *testing.T) {
	a := frontAxle()
	in := input.Snapshot{}
	in.Set(input.Left, 0.5)
	a.Tick(0.1, in)
	assert.Equal(t, -20.0, a.SteeringAngle())

	in = input.Snapshot{}
	in.Set(input.Right, 0.25)
	a.Tick(0.1, in)
	assert.Equal(t, 10.0, a.SteeringAngle())

	a.Tick(0.1, input.Snapshot{})
	assert.Equal(t, 0.0, a.SteeringAngle())
}

func TestContactForcePointsIntoTurn(t *testing.T) {
	b := IdentityBasis()
	a := frontAxle()

	a.Steer(0)
	assert.Equal(t, mgl64.Vec3{}, a.ContactForce(1000, b))

	a.Steer(0.25) // 10 degrees right
	f := a.ContactForce(1000, b)
	assertVec(t, mgl64.Vec3{0, 0, 1000}, f)

	a.Steer(1) // full lock
	f = a.ContactForce(1000, b)
	assert.Greater(t, f.Dot(b.Right), 0.0)
	assert.InDelta(t, 0.0, f.Dot(b.Forward), 1e-9, "no drag along the body")

	a.Steer(-0.25)
	f = a.ContactForce(1000, b)
	assert.Less(t, f.Dot(b.Right), 0.0)
	assert.InDelta(t, 0.0, f.Dot(b.Forward), 1e-9)
}

func TestDrivingAxleHasNoContactForce(t *testing.T) {
	assert.Equal(t, mgl64.Vec3{}, rearAxle().ContactForce(5000, IdentityBasis()))
}

func TestSplitTorque(t *testing.T) {
	l, r := rearAxle().SplitTorque(100)
	assert.Equal(t, 50.0, l)
	assert.Equal(t, 50.0, r)

	l, r = frontAxle().SplitTorque(100)
	assert.Zero(t, l)
	assert.Zero(t, r)
}

func TestBrakingForceOpposesHeading(t *testing.T) {
	b := IdentityBasis()
	a := rearAxle()
	in := input.Snapshot{}
	in.Set(input.Down, 0.5)
	a.Tick(0.1, in)
	f := a.BrakingForce(b)
	assert.InDelta(t, -1000.0, f.Dot(b.Forward), 1e-9)
	assert.InDelta(t, 0.0, f.Dot(b.Right), 1e-9)
}

func TestPublishIsPassThrough(t *testing.T) {
	a := rearAxle()
	a.PublishNormal(1, 2)
	a.PublishDriving(3, 4)
	a.PublishContact(-5, 6)
	a.PublishBraking(7, 8)
	assert.Equal(t, Forces{Normal: 1, Driving: 3, Contact: -5, Braking: 7}, a.Left.Forces())
	assert.Equal(t, Forces{Normal: 2, Driving: 4, Contact: 6, Braking: 8}, a.Right.Forces())
}
