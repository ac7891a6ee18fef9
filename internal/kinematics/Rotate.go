package kinematics

import "github.com/go-gl/mathgl/mgl64"

// RotateModelName is the JSON discriminator string for the Rotate model.
const RotateModelName = "rotate"

// minSpeed is the speed below which Rotate falls back to a linear step.
const minSpeed = 1e-9

// Rotate splits acceleration into a tangential part that changes speed and a
// normal part that only turns the velocity. The new direction comes from the
// renormalized Euler step and is rescaled to the updated speed, so cornering
// does not inflate speed.
//
// JSON discriminator: "model": "rotate"
type Rotate struct{}

func (Rotate) Name() string { return RotateModelName }

func (Rotate) Integrate(v, a mgl64.Vec3, dt float64) mgl64.Vec3 {
	if dt <= 0 {
		return v
	}
	speed := v.Len()
	if speed < minSpeed {
		return v.Add(a.Mul(dt))
	}

	dir := v.Mul(1 / speed)
	tangential := a.Dot(dir)
	newSpeed := speed + tangential*dt

	step := v.Add(a.Mul(dt))
	stepLen := step.Len()
	if stepLen < minSpeed {
		return mgl64.Vec3{}
	}
	// braking through zero stops the vehicle rather than reversing it
	if newSpeed <= 0 {
		return mgl64.Vec3{}
	}
	return step.Mul(newSpeed / stepLen)
}
