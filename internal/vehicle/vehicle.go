// Package vehicle implements the two-axle vehicle dynamics model.
//
// Each Tick has four stages:
//
//  1. Sub-systems - the engine reads the throttle, the front axle reads the
//     steering channels and every wheel's brake reads the brake channel.
//
//  2. Forces - normal loads are distributed between the axles by longitudinal
//     weight transfer and across each axle by lateral load transfer, the tire
//     model turns the steering angle into lateral contact force, and the
//     centripetal demand is allocated front first with the rear axle covering
//     any shortfall.
//
//  3. Integration - acceleration from the net force advances velocity through
//     the configured integrator, then position.
//
//  4. Heading - the body is rotated onto the displacement of the tick and the
//     basis is re-extracted, so the vehicle always faces its direction of travel.
package vehicle

import (
	"fmt"
	"math"

	"github.com/cxd309/vehicle-emulator/internal/chassis"
	"github.com/cxd309/vehicle-emulator/internal/input"
	"github.com/cxd309/vehicle-emulator/internal/kinematics"
	"github.com/cxd309/vehicle-emulator/internal/powertrain"
	"github.com/cxd309/vehicle-emulator/internal/tire"
	"github.com/go-gl/mathgl/mgl64"
)

// Vehicle is a rear-wheel-drive, front-wheel-steer car. It is not safe for
// concurrent use; one goroutine owns it and calls Tick.
type Vehicle struct {
	params       Params
	CenterOfMass mgl64.Vec3
	Mass         float64

	Engine   *powertrain.Engine
	Steering *chassis.Axle // front
	Driving  *chassis.Axle // rear

	integrator kinematics.Integrator
	observer   Observer

	state    State
	previous State
	frame    Frame
}

// Option customises a Vehicle at construction.
type Option func(*Vehicle)

// WithIntegrator selects the velocity integrator. The default is linear.
func WithIntegrator(i kinematics.Integrator) Option {
	return func(v *Vehicle) {
		if i != nil {
			v.integrator = i
		}
	}
}

// WithObserver registers a callback that receives the force frame after
// every tick.
func WithObserver(o Observer) Option {
	return func(v *Vehicle) { v.observer = o }
}

// New builds a vehicle at rest at its centre of mass position.
func New(p Params, opts ...Option) (*Vehicle, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("vehicle %q: %w", p.Name, err)
	}

	eng, err := powertrain.NewEngine(p.Engine)
	if err != nil {
		return nil, fmt.Errorf("vehicle %q: %w", p.Name, err)
	}

	tm := tire.Default()
	if p.Tire != nil {
		if tm, err = tire.New(p.Tire); err != nil {
			return nil, fmt.Errorf("vehicle %q: %w", p.Name, err)
		}
	}

	v := &Vehicle{
		params:       p,
		CenterOfMass: p.CenterOfMass,
		Mass:         p.Mass,
		Engine:       eng,
		Steering:     chassis.NewSteeringAxle(p.FrontAxle.Center, p.FrontAxle.Width, p.MaxSteeringAngle, tm, p.Wheel),
		Driving:      chassis.NewDrivingAxle(p.RearAxle.Center, p.RearAxle.Width, tm, p.Split(), p.Wheel),
		integrator:   kinematics.Linear{},
		state:        NewState(p.CenterOfMass),
	}
	v.previous = v.state
	v.frame = emptyFrame()
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Tick advances the vehicle by dt seconds using the inputs held this tick.
// Non-positive dt is ignored and dt is clamped to the configured MaxStep.
func (v *Vehicle) Tick(dt float64, in input.Snapshot) {
	if v.Engine == nil {
		return
	}
	if !(dt > 0) {
		return
	}
	if v.params.MaxStep > 0 && dt > v.params.MaxStep {
		dt = v.params.MaxStep
	}
	if in == nil {
		in = input.Snapshot{}
	}

	v.previous = v.state

	v.Engine.Tick(dt, in)
	v.Steering.Tick(dt, in)
	v.Driving.Tick(dt, in)
	v.state.CorneringRadius = v.corneringRadius()

	force, frame := v.computeForce()
	v.frame = frame
	if v.observer != nil {
		v.observer(frame)
	}

	v.state.Acceleration = force.Mul(1 / v.Mass)
	v.integrateVelocity(dt)
	v.state.Position = v.state.Position.Add(v.state.Velocity.Mul(dt))
	v.updateHeading()
}

// corneringRadius derives the turning radius from the steering angle and
// wheelbase. Straight running yields +Inf.
func (v *Vehicle) corneringRadius() float64 {
	angle := math.Abs(v.Steering.SteeringAngle())
	if angle == 0 {
		return math.Inf(1)
	}
	return v.params.Wheelbase() / math.Tan(mgl64.DegToRad(angle))
}

// integrateVelocity applies the integrator and stops the vehicle instead of
// letting resistive forces reverse it.
func (v *Vehicle) integrateVelocity(dt float64) {
	prev := v.state.Velocity
	next := v.integrator.Integrate(prev, v.state.Acceleration, dt)
	if prev.LenSqr() > 0 && next.Dot(prev) <= 0 && v.frame.DrivingForce <= 0 {
		next = mgl64.Vec3{}
	}
	v.state.Velocity = next
}

// headingEpsilon is the displacement below which the heading is left alone.
const headingEpsilon = 1e-12

// updateHeading rotates the body onto the displacement of this tick.
func (v *Vehicle) updateHeading() {
	delta := v.state.Position.Sub(v.previous.Position)
	dist := delta.Len()
	if dist < headingEpsilon {
		return
	}
	dir := delta.Mul(1 / dist)
	from := v.previous.Forward

	axis := from.Cross(dir)
	sin := axis.Len()
	cos := from.Dot(dir)
	if sin < headingEpsilon && cos > 0 {
		return // already facing the direction of travel
	}

	var q mgl64.Quat
	if sin < headingEpsilon {
		q = mgl64.QuatRotate(math.Pi, v.previous.Up)
	} else {
		q = mgl64.QuatRotate(math.Atan2(sin, cos), axis.Mul(1/sin))
	}
	v.state.Orientation = q.Mul(v.state.Orientation)
	v.state.updateBasis()
}

// State returns the current kinematic state.
func (v *Vehicle) State() State { return v.state }

// Previous returns the state at the start of the last tick.
func (v *Vehicle) Previous() State { return v.previous }

// Frame returns the force breakdown of the last tick.
func (v *Vehicle) Frame() Frame { return v.frame.clone() }

// Params returns the configuration the vehicle was built with.
func (v *Vehicle) Params() Params { return v.params }

// Speed returns the current speed in m/s.
func (v *Vehicle) Speed() float64 { return v.state.Speed() }

// SpeedKmh returns the current speed in km/h.
func (v *Vehicle) SpeedKmh() float64 { return ToKmh(v.state.Speed()) }

// EngineRPM returns the current engine speed.
func (v *Vehicle) EngineRPM() float64 { return v.Engine.RPM }

// EngineTorque returns the current wheel-referred engine torque.
func (v *Vehicle) EngineTorque() float64 { return v.Engine.Torque }

// SteeringAngle returns the front wheel angle in degrees, positive right.
func (v *Vehicle) SteeringAngle() float64 { return v.Steering.SteeringAngle() }

// Integrator returns the velocity integrator in use.
func (v *Vehicle) Integrator() kinematics.Integrator { return v.integrator }

// Teleport places the vehicle at rest at position facing heading (radians
// from +x toward +z).
func (v *Vehicle) Teleport(position mgl64.Vec3, heading float64) {
	s := NewState(position)
	s.Orientation = mgl64.QuatRotate(-heading, chassis.WorldUp)
	s.updateBasis()
	v.state = s
	v.previous = s
}

// Pose returns the render pose of the body and wheels.
func (v *Vehicle) Pose() Pose {
	wheels := v.wheels()
	p := Pose{
		Position:    v.state.Position,
		Orientation: v.state.Orientation,
		Basis:       v.state.Basis,
		WheelYaw:    make(map[WheelPosition]mgl64.Quat, len(wheels)),
		WheelHubs:   make(map[WheelPosition]mgl64.Vec3, len(wheels)),
	}
	for pos, w := range wheels {
		p.WheelYaw[pos] = w.Orientation
		p.WheelHubs[pos] = w.HubCenter
	}
	return p
}

func (v *Vehicle) wheels() map[WheelPosition]*chassis.Wheel {
	return map[WheelPosition]*chassis.Wheel{
		FrontLeft:  v.Steering.Left,
		FrontRight: v.Steering.Right,
		RearLeft:   v.Driving.Left,
		RearRight:  v.Driving.Right,
	}
}

func emptyFrame() Frame {
	f := Frame{Wheels: make(map[WheelPosition]chassis.Forces, len(WheelPositions))}
	for _, pos := range WheelPositions {
		f.Wheels[pos] = chassis.Forces{}
	}
	return f
}

func (f Frame) clone() Frame {
	out := f
	out.Wheels = make(map[WheelPosition]chassis.Forces, len(f.Wheels))
	for k, w := range f.Wheels {
		out.Wheels[k] = w
	}
	return out
}
