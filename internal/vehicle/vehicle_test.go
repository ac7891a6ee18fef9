package vehicle

import (
	"math"
	"testing"

	"github.com/cxd309/vehicle-emulator/internal/chassis"
	"github.com/cxd309/vehicle-emulator/internal/input"
	"github.com/cxd309/vehicle-emulator/internal/kinematics"
	"github.com/go-gl/mathgl/mgl64"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefault(t *testing.T, opts ...Option) *Vehicle {
	t.Helper()
	v, err := New(DefaultParams(), opts...)
	require.NoError(t, err)
	return v
}

func held(pairs ...any) input.Snapshot {
	s := input.Snapshot{}
	for i := 0; i+1 < len(pairs); i += 2 {
		s.Set(pairs[i].(input.Channel), pairs[i+1].(float64))
	}
	return s
}

func assertOrthonormal(t *testing.T, b chassis.Basis) {
	t.Helper()
	assert.InDelta(t, 1, b.Forward.Len(), 1e-9)
	assert.InDelta(t, 1, b.Right.Len(), 1e-9)
	assert.InDelta(t, 1, b.Up.Len(), 1e-9)
	assert.InDelta(t, 0, b.Forward.Dot(b.Right), 1e-9)
	assert.InDelta(t, 0, b.Forward.Dot(b.Up), 1e-9)
	assert.InDelta(t, 0, b.Right.Dot(b.Up), 1e-9)
}

func TestNewStartsAtRestOnCenterOfMass(t *testing.T) {
	v := newDefault(t)
	s := v.State()
	assert.Equal(t, mgl64.Vec3{0, 0.5, 0}, s.Position)
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, s.Forward)
	assert.Equal(t, mgl64.Vec3{0, 0, 1}, s.Right)
	assert.Equal(t, mgl64.Vec3{0, 1, 0}, s.Up)
	assert.True(t, math.IsInf(s.CorneringRadius, 1))
}

func TestNewRejectsInvalidParams(t *testing.T) {
	p := DefaultParams()
	p.Mass = 0
	p.Wheel.Radius = 0
	_, err := New(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mass")
	assert.Contains(t, err.Error(), "wheel radius")

	p = DefaultParams()
	p.Engine.GearRatios = nil
	_, err = New(p)
	assert.Error(t, err)
}

func TestIdleIsExactlyBalanced(t *testing.T) {
	v := newDefault(t)
	start := v.State().Position
	v.Tick(0.1, input.Snapshot{})

	s := v.State()
	assert.Equal(t, mgl64.Vec3{}, s.Velocity)
	assert.Equal(t, mgl64.Vec3{}, s.Acceleration)
	assert.Equal(t, start, s.Position)
	assert.Equal(t, mgl64.Vec3{}, v.Frame().Net)
}

func TestStraightLineHasNoLateralDrift(t *testing.T) {
	v := newDefault(t)
	for i := 0; i < 50; i++ {
		v.Tick(0.05, held(input.Up, 1.0))
		s := v.State()
		require.True(t, math.IsInf(s.CorneringRadius, 1), "tick %d", i)
		require.Equal(t, 0.0, s.Velocity.Z(), "tick %d", i)
		require.Equal(t, 0.0, s.LateralSpeed(), "tick %d", i)
		require.Equal(t, mgl64.Vec3{1, 0, 0}, s.Forward)
	}
}

func TestFullThrottleSpeedIncreasesMonotonically(t *testing.T) {
	v := newDefault(t)
	require.Equal(t, 1246.0, v.Mass)

	prev := 0.0
	for i := 0; i < 10; i++ {
		v.Tick(0.1, held(input.Up, 1.0))
		speed := v.Speed()
		assert.Greater(t, speed, prev, "tick %d", i)
		prev = speed
	}

	// bounded by the clamped top-of-table torque with no resistance
	elapsed := 1.0
	maxForce := v.Engine.TorqueAt(v.Engine.MaxRPM()) / v.Params().Wheel.Radius
	assert.Less(t, prev, maxForce/v.Mass*elapsed)
	assert.Equal(t, 7000.0, v.EngineRPM())
}

func TestWeightShiftsRearwardUnderThrottle(t *testing.T) {
	v := newDefault(t)
	v.Tick(0.1, input.Snapshot{})
	w := v.Mass * Gravity
	assert.InDelta(t, w/2, v.Frame().NormalFront, 1e-9)

	v.Tick(0.1, held(input.Up, 1.0))
	f := v.Frame()
	assert.Less(t, f.NormalFront, f.NormalRear)
	assert.InDelta(t, w, f.NormalFront+f.NormalRear, 1e-9)
	assert.InDelta(t, f.NormalRear,
		f.Wheels[RearLeft].Normal+f.Wheels[RearRight].Normal, 1e-9)
}

func TestBrakingStopsWithoutReversing(t *testing.T) {
	v := newDefault(t)
	for i := 0; i < 20; i++ {
		v.Tick(0.1, held(input.Up, 0.5))
	}
	require.Greater(t, v.Speed(), 1.0)

	prev := v.Speed()
	for i := 0; i < 400; i++ {
		v.Tick(0.1, held(input.Down, 1.0))
		assert.LessOrEqual(t, v.Speed(), prev)
		prev = v.Speed()
	}
	assert.Equal(t, 0.0, v.Speed())
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, v.State().Forward)

	// brakes on a stationary car produce no force
	v.Tick(0.1, held(input.Down, 1.0))
	assert.Equal(t, mgl64.Vec3{}, v.Frame().Braking)
	assert.Equal(t, 0.0, v.Speed())
}

func TestHeadingFollowsMotionWhileCornering(t *testing.T) {
	for _, integ := range []kinematics.Integrator{kinematics.Linear{}, kinematics.Rotate{}} {
		t.Run(integ.Name(), func(t *testing.T) {
			v := newDefault(t, WithIntegrator(integ))
			for i := 0; i < 10; i++ {
				v.Tick(0.1, held(input.Up, 0.6))
			}
			for i := 0; i < 30; i++ {
				v.Tick(0.05, held(input.Up, 0.4, input.Right, 0.3))
				s, prev := v.State(), v.Previous()
				delta := s.Position.Sub(prev.Position)
				if delta.Len() == 0 {
					continue
				}
				dir := delta.Normalize()
				assert.InDelta(t, 1.0, s.Forward.Dot(dir), 1e-9, "tick %d", i)
				assertOrthonormal(t, s.Basis)
			}
			s := v.State()
			assert.Greater(t, s.Forward.Z(), 0.0, "steering right turns toward +z")
			assert.InDelta(t, 1.0, s.Up.Y(), 1e-9, "body stays level")
			assert.False(t, math.IsInf(s.CorneringRadius, 0))
			assert.InDelta(t, 2.4/math.Tan(mgl64.DegToRad(12)), s.CorneringRadius, 1e-9)
		})
	}
}

func TestLeftTurnMirrorsRightTurn(t *testing.T) {
	run := func(ch input.Channel) State {
		v := newDefault(t)
		for i := 0; i < 10; i++ {
			v.Tick(0.1, held(input.Up, 0.6))
		}
		for i := 0; i < 20; i++ {
			v.Tick(0.05, held(input.Up, 0.4, ch, 0.5))
		}
		return v.State()
	}
	l, r := run(input.Left), run(input.Right)
	assert.InDelta(t, l.Position.X(), r.Position.X(), 1e-6)
	assert.InDelta(t, -l.Position.Z(), r.Position.Z(), 1e-6)
	assert.Less(t, l.Position.Z(), 0.0)
}

func TestCentripetalAllocation(t *testing.T) {
	v := newDefault(t)
	for i := 0; i < 20; i++ {
		v.Tick(0.1, held(input.Up, 1.0))
	}
	v.Tick(0.05, held(input.Up, 1.0, input.Right, 0.1))
	f := v.Frame()
	assert.Greater(t, f.CentripetalForce, 0.0)
	// at this speed the front tires cannot hold the turn alone
	assert.Greater(t, f.RearLateral, 0.0)
	assert.InDelta(t, f.CentripetalForce, f.Lateral, 1e-9)
	assert.InDelta(t, f.RearLateral,
		f.Wheels[RearLeft].Contact+f.Wheels[RearRight].Contact, 1e-9)
	assert.Greater(t, f.Wheels[FrontLeft].Normal, f.Wheels[FrontRight].Normal,
		"right turn unloads the inside front wheel")
}

func TestSteeringAddsNoLongitudinalDrag(t *testing.T) {
	v := newDefault(t)
	for i := 0; i < 20; i++ {
		v.Tick(0.1, held(input.Up, 1.0))
	}
	for _, lock := range []float64{0.25, 1} {
		v.Tick(0.05, held(input.Up, 1.0, input.Right, lock))
		f := v.Frame()
		assert.Greater(t, f.DrivingForce, 0.0)
		assert.InDelta(t, f.DrivingForce, f.Longitudinal, 1e-9, "lock %v", lock)
		assert.Greater(t, f.Wheels[FrontLeft].Contact+f.Wheels[FrontRight].Contact, 0.0)
	}
}

func TestTickGuards(t *testing.T) {
	v := newDefault(t)
	before := v.State()
	v.Tick(0, held(input.Up, 1.0))
	v.Tick(-1, held(input.Up, 1.0))
	v.Tick(math.NaN(), held(input.Up, 1.0))
	assert.Equal(t, before, v.State())

	var empty Vehicle
	assert.NotPanics(t, func() { empty.Tick(0.1, held(input.Up, 1.0)) })
}

func TestLargeStepsAreClamped(t *testing.T) {
	a, b := newDefault(t), newDefault(t)
	a.Tick(5, held(input.Up, 1.0))
	b.Tick(DefaultMaxStep, held(input.Up, 1.0))
	assert.Equal(t, b.State(), a.State())
}

func TestObserverReceivesFrames(t *testing.T) {
	var frames []Frame
	v := newDefault(t, WithObserver(func(f Frame) { frames = append(frames, f) }))
	v.Tick(0.1, held(input.Up, 1.0))
	v.Tick(0.1, held(input.Up, 1.0))
	require.Len(t, frames, 2)
	assert.Equal(t, v.Frame().Net, frames[1].Net)
	assert.Greater(t, frames[1].Wheels[RearLeft].Driving, 0.0)
	assert.Equal(t, 0.0, frames[1].Wheels[FrontLeft].Driving)
}

func TestFrameIsACopy(t *testing.T) {
	v := newDefault(t)
	v.Tick(0.1, held(input.Up, 1.0))
	f := v.Frame()
	f.Wheels[RearLeft] = chassis.Forces{Normal: -1}
	assert.NotEqual(t, -1.0, v.Frame().Wheels[RearLeft].Normal)
}

func TestTeleportAndPose(t *testing.T) {
	v := newDefault(t)
	v.Teleport(mgl64.Vec3{10, 0.5, 5}, math.Pi/2)
	s := v.State()
	assert.InDelta(t, 0, s.Forward.X(), 1e-9)
	assert.InDelta(t, 1, s.Forward.Z(), 1e-9)
	assert.InDelta(t, math.Pi/2, s.Heading(), 1e-9)
	assertOrthonormal(t, s.Basis)

	in := held(input.Right, 1.0)
	v.Tick(0.1, in)
	p := v.Pose()
	assert.Len(t, p.WheelYaw, 4)
	assert.Equal(t, mgl64.QuatIdent(), p.WheelYaw[RearLeft])
	assert.NotEqual(t, mgl64.QuatIdent(), p.WheelYaw[FrontLeft])
	assert.Equal(t, v.Driving.Left.HubCenter, p.WheelHubs[RearLeft])
}

func TestWithDefaultsFillsMissingFields(t *testing.T) {
	p := Params{Mass: 900}.WithDefaults()
	assert.Equal(t, 900.0, p.Mass)
	assert.Equal(t, DefaultParams().FrontAxle, p.FrontAxle)
	assert.NotEmpty(t, p.Engine.Profile)
	require.NoError(t, p.Validate())
}

func TestWithDefaultsFillsNestedFields(t *testing.T) {
	var p Params
	raw := `{"wheel": {"radius": 0.33}, "engine": {"final_drive_ratio": 3.9}, "front_axle": {"width": 1.6}}`
	require.NoError(t, jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal([]byte(raw), &p))
	p = p.WithDefaults()
	d := DefaultParams()

	assert.Equal(t, 0.33, p.Wheel.Radius)
	assert.Equal(t, d.Wheel.InnerRadius, p.Wheel.InnerRadius)
	assert.Equal(t, d.Wheel.Mass, p.Wheel.Mass)
	assert.Equal(t, d.Wheel.MaxBrakingForce, p.Wheel.MaxBrakingForce)

	assert.Equal(t, 3.9, p.Engine.FinalDriveRatio)
	assert.Equal(t, d.Engine.Profile, p.Engine.Profile)
	assert.Equal(t, d.Engine.GearRatios, p.Engine.GearRatios)

	assert.Equal(t, 1.6, p.FrontAxle.Width)
	assert.Equal(t, d.FrontAxle.Center, p.FrontAxle.Center)
	require.NoError(t, p.Validate())

	v, err := New(p)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		v.Tick(0.1, held(input.Up, 1.0))
	}
	v.Tick(0.1, held(input.Down, 1.0))
	assert.Less(t, v.Frame().Braking.Dot(v.State().Forward), 0.0, "brakes still work")
}

func TestExplicitZeroSplitAndResistance(t *testing.T) {
	var p Params
	raw := `{"torque_split": 0, "rolling_resistance": 0}`
	require.NoError(t, jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal([]byte(raw), &p))
	p = p.WithDefaults()
	require.NotNil(t, p.TorqueSplit)
	require.NotNil(t, p.RollingResistance)
	assert.Equal(t, 0.0, p.Split())
	assert.Equal(t, 0.0, p.Rolling())
	require.NoError(t, p.Validate())

	assert.Equal(t, 0.5, Params{}.WithDefaults().Split())
	assert.Equal(t, 0.015, Params{}.WithDefaults().Rolling())

	v, err := New(p)
	require.NoError(t, err)
	v.Tick(0.1, held(input.Up, 1.0))
	f := v.Frame()
	assert.Greater(t, f.Wheels[RearLeft].Driving, 0.0)
	assert.Equal(t, 0.0, f.Wheels[RearRight].Driving)

	coast := func(p Params) float64 {
		v, err := New(p)
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			v.Tick(0.1, held(input.Up, 1.0))
		}
		for i := 0; i < 10; i++ {
			v.Tick(0.1, input.Snapshot{})
		}
		return v.State().Speed()
	}
	assert.Greater(t, coast(p), coast(DefaultParams()))

	p.TorqueSplit = Float(1.5)
	assert.ErrorContains(t, p.Validate(), "torque split")
}
