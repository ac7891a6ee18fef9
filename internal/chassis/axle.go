package chassis

import (
	"math"

	"github.com/cxd309/vehicle-emulator/internal/input"
	"github.com/cxd309/vehicle-emulator/internal/tire"
	"github.com/go-gl/mathgl/mgl64"
)

// ContactForceCoefficient scales tire lateral force per unit normal load.
const ContactForceCoefficient = 1.0

// Steering is the capability of an axle whose wheels turn together.
type Steering struct {
	Angle    float64 // degrees, positive turns right
	MaxAngle float64 // degrees
	Tire     *tire.Model
}

// Driving is the capability of an axle that receives engine torque.
type Driving struct {
	// Tire is carried for symmetry with the steering axle; it does not
	// contribute force.
	Tire        *tire.Model
	TorqueSplit float64 // share of torque sent to the right wheel, 0..1
}

// Axle is a pair of wheels on a common beam. Steering and Driving are
// optional capabilities; the stock car has a steering front axle and a
// driving rear axle.
type Axle struct {
	Left     *Wheel
	Right    *Wheel
	Center   mgl64.Vec3
	Width    float64
	Steering *Steering
	Driving  *Driving
}

func newAxle(center mgl64.Vec3, width float64, steerable, drivable bool, spec WheelSpec) *Axle {
	half := mgl64.Vec3{0, 0, width / 2}
	return &Axle{
		Left:   NewWheel(center.Sub(half), steerable, drivable, spec),
		Right:  NewWheel(center.Add(half), steerable, drivable, spec),
		Center: center,
		Width:  width,
	}
}

// NewSteeringAxle builds a front axle whose wheels turn up to maxAngle degrees.
func NewSteeringAxle(center mgl64.Vec3, width, maxAngle float64, tm *tire.Model, spec WheelSpec) *Axle {
	a := newAxle(center, width, true, false, spec)
	a.Steering = &Steering{MaxAngle: math.Abs(maxAngle), Tire: tm}
	return a
}

// NewDrivingAxle builds a rear axle that splits engine torque between its wheels.
func NewDrivingAxle(center mgl64.Vec3, width float64, tm *tire.Model, split float64, spec WheelSpec) *Axle {
	a := newAxle(center, width, false, true, spec)
	a.Driving = &Driving{Tire: tm, TorqueSplit: input.Clamp(split, 0, 1)}
	return a
}

// HalfWidth is half the track width.
func (a *Axle) HalfWidth() float64 { return a.Width / 2 }

// Tick advances both wheels and, on a steering axle, applies the steering
// channels. Left is negative; with neither channel present the wheels
// return to centre.
func (a *Axle) Tick(dt float64, in input.Snapshot) {
	a.Left.Tick(dt, in)
	a.Right.Tick(dt, in)
	if a.Steering == nil {
		return
	}
	switch {
	case in.Has(input.Left):
		a.Steer(-in.Value(input.Left))
	case in.Has(input.Right):
		a.Steer(in.Value(input.Right))
	default:
		a.Steer(0)
	}
}

// Steer turns both wheels to MaxAngle*value. value is clamped to [-1, 1].
func (a *Axle) Steer(value float64) {
	if a.Steering == nil {
		return
	}
	a.Steering.Angle = a.Steering.MaxAngle * input.Clamp(value, -1, 1)
	a.Left.Steer(a.Steering.Angle)
	a.Right.Steer(a.Steering.Angle)
}

// SteeringAngle returns the current steering angle in degrees, 0 for fixed axles.
func (a *Axle) SteeringAngle() float64 {
	if a.Steering == nil {
		return 0
	}
	return a.Steering.Angle
}

// ContactForce returns the lateral tire force produced for the given normal
// load. The steering angle stands in for the slip angle. The force lies
// along the body's right axis, pointing into the turn, so it never adds
// drag along the direction of travel.
func (a *Axle) ContactForce(normal float64, b Basis) mgl64.Vec3 {
	if a.Steering == nil || a.Steering.Tire == nil {
		return mgl64.Vec3{}
	}
	angle := a.Steering.Angle
	direction := 1.0
	if angle > 0 {
		direction = -1
	}
	magnitude := direction * a.Steering.Tire.Force(math.Abs(angle)) * normal * ContactForceCoefficient
	return b.Right.Mul(-magnitude)
}

// SplitTorque divides axle torque between the left and right wheels.
func (a *Axle) SplitTorque(torque float64) (left, right float64) {
	if a.Driving == nil {
		return 0, 0
	}
	right = torque * a.Driving.TorqueSplit
	return torque - right, right
}

// BrakingForce sums both wheels' braking force vectors.
func (a *Axle) BrakingForce(b Basis) mgl64.Vec3 {
	return a.Left.BrakingForce(b).Add(a.Right.BrakingForce(b))
}

// PublishNormal records normal loads for display.
func (a *Axle) PublishNormal(l, r float64) {
	a.update(func(f *Forces, left bool) { f.Normal = pick(left, l, r) })
}

// PublishContact records signed lateral forces for display.
func (a *Axle) PublishContact(l, r float64) {
	a.update(func(f *Forces, left bool) { f.Contact = pick(left, l, r) })
}

// PublishDriving records tractive forces for display.
func (a *Axle) PublishDriving(l, r float64) {
	a.update(func(f *Forces, left bool) { f.Driving = pick(left, l, r) })
}

// PublishBraking records brake force magnitudes for display.
func (a *Axle) PublishBraking(l, r float64) {
	a.update(func(f *Forces, left bool) { f.Braking = pick(left, l, r) })
}

func (a *Axle) update(fn func(f *Forces, left bool)) {
	lf, rf := a.Left.Forces(), a.Right.Forces()
	fn(&lf, true)
	fn(&rf, false)
	a.Left.Publish(lf)
	a.Right.Publish(rf)
}

func pick(left bool, l, r float64) float64 {
	if left {
		return l
	}
	return r
}
