// Package chassis models wheels and axles: steering geometry, brake
// ownership and the per-wheel forces published after every tick.
package chassis

import (
	"math"

	"github.com/cxd309/vehicle-emulator/internal/input"
	"github.com/cxd309/vehicle-emulator/internal/powertrain"
	"github.com/go-gl/mathgl/mgl64"
)

// WorldUp is the vertical axis of the world and body frames.
var WorldUp = mgl64.Vec3{0, 1, 0}

// Basis is the vehicle body frame.
type Basis struct {
	Forward mgl64.Vec3 `json:"forward"`
	Right   mgl64.Vec3 `json:"right"`
	Up      mgl64.Vec3 `json:"up"`
}

// IdentityBasis is the body frame of an unrotated vehicle.
func IdentityBasis() Basis {
	return Basis{
		Forward: mgl64.Vec3{1, 0, 0},
		Right:   mgl64.Vec3{0, 0, 1},
		Up:      mgl64.Vec3{0, 1, 0},
	}
}

// Forces are the force magnitudes last published for a wheel. They are
// outputs for display and telemetry only.
type Forces struct {
	Normal  float64 `json:"normal"`
	Driving float64 `json:"driving"`
	Braking float64 `json:"braking"`
	Contact float64 `json:"contact"` // signed lateral force, positive to the right
}

// WheelSpec holds the physical wheel parameters.
type WheelSpec struct {
	Radius          float64 `json:"radius"`       // m
	InnerRadius     float64 `json:"inner_radius"` // m
	Mass            float64 `json:"mass"`         // kg
	MaxBrakingForce float64 `json:"max_braking_force"`
}

// DefaultWheelSpec returns the stock wheel.
func DefaultWheelSpec() WheelSpec {
	return WheelSpec{
		Radius:          0.3,
		InnerRadius:     0.2,
		Mass:            15,
		MaxBrakingForce: powertrain.DefaultMaxBrakingForce,
	}
}

// Wheel is a rotating contact patch attached to the body at HubCenter.
type Wheel struct {
	Radius            float64
	InnerRadius       float64
	Mass              float64
	RotationalInertia float64
	HubCenter         mgl64.Vec3 // relative to the centre of mass
	SteeringAngle     float64    // degrees, positive turns right
	Steerable         bool
	Drivable          bool
	Brake             *powertrain.Brake

	// Orientation is the wheel's yaw relative to the body, kept for rendering.
	Orientation mgl64.Quat

	forces Forces
}

// NewWheel builds a wheel at hub.
func NewWheel(hub mgl64.Vec3, steerable, drivable bool, spec WheelSpec) *Wheel {
	return &Wheel{
		Radius:            spec.Radius,
		InnerRadius:       spec.InnerRadius,
		Mass:              spec.Mass,
		RotationalInertia: 0.5 * spec.Mass * (spec.Radius*spec.Radius + spec.InnerRadius*spec.InnerRadius),
		HubCenter:         hub,
		Steerable:         steerable,
		Drivable:          drivable,
		Brake:             powertrain.NewBrake(spec.MaxBrakingForce),
		Orientation:       mgl64.QuatIdent(),
	}
}

// Steer sets the steering angle in degrees. Fixed wheels ignore it.
func (w *Wheel) Steer(deg float64) {
	if !w.Steerable {
		return
	}
	w.SteeringAngle = deg
	w.Orientation = mgl64.QuatRotate(-mgl64.DegToRad(deg), WorldUp)
}

// Forward is the wheel's rolling direction in the frame b.
func (w *Wheel) Forward(b Basis) mgl64.Vec3 {
	s, c := math.Sincos(mgl64.DegToRad(w.SteeringAngle))
	return b.Forward.Mul(c).Add(b.Right.Mul(s))
}

// Lateral is the wheel's right-pointing axle direction in the frame b.
func (w *Wheel) Lateral(b Basis) mgl64.Vec3 {
	s, c := math.Sincos(mgl64.DegToRad(w.SteeringAngle))
	return b.Right.Mul(c).Sub(b.Forward.Mul(s))
}

// DrivingForceMagnitude converts wheel torque into tractive force at the
// contact patch, assuming pure rolling.
func (w *Wheel) DrivingForceMagnitude(torque float64) float64 {
	if w.Radius <= 0 {
		return 0
	}
	return torque / w.Radius
}

// BrakingForce is the brake force vector, opposing the wheel's heading.
func (w *Wheel) BrakingForce(b Basis) mgl64.Vec3 {
	return w.Forward(b).Mul(-w.Brake.Force())
}

// AngularVelocity returns the wheel spin rate for a ground speed, rad/s.
func (w *Wheel) AngularVelocity(speed float64) float64 {
	if w.Radius <= 0 {
		return 0
	}
	return speed / w.Radius
}

// Tick advances the brake.
func (w *Wheel) Tick(dt float64, in input.Snapshot) {
	w.Brake.Tick(dt, in)
}

// Forces returns the last published forces.
func (w *Wheel) Forces() Forces { return w.forces }

// Publish replaces the published forces.
func (w *Wheel) Publish(f Forces) { w.forces = f }
