package vehicle

import (
	"math"

	"github.com/cxd309/vehicle-emulator/internal/input"
	"github.com/go-gl/mathgl/mgl64"
)

// computeForce composes the net world-frame force acting on the body for the
// current sub-system state and returns it with the per-wheel breakdown.
func (v *Vehicle) computeForce() (mgl64.Vec3, Frame) {
	b := v.state.Basis
	speed := v.state.Speed()
	front, rear := v.Steering, v.Driving
	frame := emptyFrame()

	// Tractive force from the rear wheels.
	torqueRL, torqueRR := rear.SplitTorque(v.Engine.Torque)
	drivingRL := rear.Left.DrivingForceMagnitude(torqueRL)
	drivingRR := rear.Right.DrivingForceMagnitude(torqueRR)
	driving := drivingRL + drivingRR

	// Front lateral force per unit normal load, used to estimate the left/right
	// load split before the real loads are known.
	var coeff mgl64.Vec3
	if speed > 0 || v.Engine.Torque > 0 {
		coeff = front.ContactForce(1, b)
	}
	coeffZ := b.Right.Dot(coeff)

	// Longitudinal weight transfer.
	rearDist := math.Abs(rear.Center.X())
	frontDist := math.Abs(front.Center.X())
	wheelbase := frontDist + rearDist
	height := math.Abs(rear.Left.HubCenter.Y()) + rear.Left.Radius
	weight := v.Mass * Gravity

	normalFront := input.Clamp((rearDist*weight-driving*height)/wheelbase, 0, weight)
	normalRear := weight - normalFront

	// Lateral load split across the front axle. Lateral force toward the
	// right unloads the right wheel.
	hw := front.HalfWidth()
	shareFR := input.Clamp((hw-coeffZ)/(2*hw), 0, 1)
	normalFR := normalFront * shareFR
	normalFL := normalFront - normalFR

	var contactFL, contactFR mgl64.Vec3
	if speed > 0 {
		contactFL = front.ContactForce(normalFL, b)
		contactFR = front.ContactForce(normalFR, b)
	}
	frontLateral := contactFL.Add(contactFR)

	// Front contact forces lie along the body's right axis, so only the
	// rear wheels act longitudinally.
	longitudinal := driving
	lateralFront := b.Right.Dot(frontLateral)

	// Centripetal demand: the front axle supplies what it can, the rear axle
	// makes up the shortfall.
	centripetal := v.centripetalForce(speed)
	lateral, lateralRear := lateralFront, 0.0
	if math.Abs(centripetal) > math.Abs(lateralFront) {
		lateralRear = centripetal - lateralFront
		lateral = centripetal
	}

	// Lateral load split across the rear axle, then the rear lateral force is
	// shared in proportion to each wheel's load.
	normalRR := normalRear / 2
	if rear.Width > 0 {
		normalRR = input.Clamp((normalRear*rear.HalfWidth()-lateralRear*height)/rear.Width, 0, normalRear)
	}
	normalRL := normalRear - normalRR
	var contactRL, contactRR float64
	if normalRear > 0 {
		contactRL = normalRL / normalRear * lateralRear
		contactRR = lateralRear - contactRL
	}

	var friction, braking mgl64.Vec3
	if speed > 0 {
		friction = b.Forward.Mul(-v.params.Rolling() * weight)
		braking = front.BrakingForce(b).Add(rear.BrakingForce(b))
	}

	net := b.Forward.Mul(longitudinal).
		Add(b.Right.Mul(lateral)).
		Add(friction).
		Add(braking)

	front.PublishNormal(normalFL, normalFR)
	front.PublishContact(b.Right.Dot(contactFL), b.Right.Dot(contactFR))
	front.PublishDriving(0, 0)
	rear.PublishNormal(normalRL, normalRR)
	rear.PublishContact(contactRL, contactRR)
	rear.PublishDriving(drivingRL, drivingRR)
	if speed > 0 {
		front.PublishBraking(front.Left.Brake.Force(), front.Right.Brake.Force())
		rear.PublishBraking(rear.Left.Brake.Force(), rear.Right.Brake.Force())
	} else {
		front.PublishBraking(0, 0)
		rear.PublishBraking(0, 0)
	}

	for pos, w := range v.wheels() {
		frame.Wheels[pos] = w.Forces()
	}
	frame.NormalFront = normalFront
	frame.NormalRear = normalRear
	frame.DrivingForce = driving
	frame.Longitudinal = longitudinal
	frame.Lateral = lateral
	frame.CentripetalForce = centripetal
	frame.RearLateral = lateralRear
	frame.Friction = friction
	frame.Braking = braking
	frame.Net = net
	return net, frame
}

// centripetalForce returns m·v²/R signed toward the inside of the turn
// (positive to the right). Straight running and standstill yield exactly 0.
func (v *Vehicle) centripetalForce(speed float64) float64 {
	r := v.state.CorneringRadius
	if speed == 0 || math.IsInf(r, 0) || r <= 0 {
		return 0
	}
	fc := v.Mass * speed * speed / r
	if v.Steering.SteeringAngle() < 0 {
		return -fc
	}
	return fc
}
