package vehicle

import (
	"math"

	"github.com/cxd309/vehicle-emulator/internal/chassis"
	"github.com/go-gl/mathgl/mgl64"
)

// State is the vehicle's kinematic snapshot. The body basis is always
// re-derived from Orientation and never integrated on its own.
type State struct {
	Position     mgl64.Vec3 `json:"position"`     // m, world
	Velocity     mgl64.Vec3 `json:"velocity"`     // m/s, world
	Acceleration mgl64.Vec3 `json:"acceleration"` // m/s², world; recomputed each tick
	chassis.Basis
	Orientation mgl64.Quat `json:"orientation"`

	// CorneringRadius is +Inf when driving straight.
	CorneringRadius float64 `json:"-"`
}

// NewState returns a state at rest at position, facing +x.
func NewState(position mgl64.Vec3) State {
	s := State{
		Position:        position,
		Orientation:     mgl64.QuatIdent(),
		CorneringRadius: math.Inf(1),
	}
	s.updateBasis()
	return s
}

// updateBasis extracts forward/up/right from the orientation's rotation matrix.
func (s *State) updateBasis() {
	s.Orientation = s.Orientation.Normalize()
	m := s.Orientation.Mat4()
	s.Forward = m.Col(0).Vec3()
	s.Up = m.Col(1).Vec3()
	s.Right = m.Col(2).Vec3()
}

// Speed is the magnitude of velocity.
func (s State) Speed() float64 { return s.Velocity.Len() }

// LongitudinalSpeed is the velocity component along Forward.
func (s State) LongitudinalSpeed() float64 { return s.Velocity.Dot(s.Forward) }

// LateralSpeed is the velocity component along Right.
func (s State) LateralSpeed() float64 { return s.Velocity.Dot(s.Right) }

// LongitudinalAcceleration is the acceleration component along Forward.
func (s State) LongitudinalAcceleration() float64 { return s.Acceleration.Dot(s.Forward) }

// LateralAcceleration is the acceleration component along Right.
func (s State) LateralAcceleration() float64 { return s.Acceleration.Dot(s.Right) }

// Heading is the yaw of Forward in the ground plane, radians from +x toward +z.
func (s State) Heading() float64 { return math.Atan2(s.Forward.Z(), s.Forward.X()) }

// KmhPerMs converts m/s to km/h.
const KmhPerMs = 3.6

// ToKmh converts a speed in m/s to km/h.
func ToKmh(ms float64) float64 { return ms * KmhPerMs }
