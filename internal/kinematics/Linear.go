package kinematics

import "github.com/go-gl/mathgl/mgl64"

// LinearModelName is the JSON discriminator string for the Linear model.
const LinearModelName = "linear"

// Linear integrates velocity with a single explicit Euler step in the world
// frame. This is the default and simplest model.
//
// JSON discriminator: "model": "linear"
type Linear struct{}

func (Linear) Name() string { return LinearModelName }

func (Linear) Integrate(v, a mgl64.Vec3, dt float64) mgl64.Vec3 {
	if dt <= 0 {
		return v
	}
	return v.Add(a.Mul(dt))
}
