package driver

import (
	"errors"
	"fmt"
	"math"

	"github.com/cxd309/vehicle-emulator/internal/input"
	"github.com/cxd309/vehicle-emulator/internal/roadnet"
	"github.com/cxd309/vehicle-emulator/internal/tire"
	"github.com/cxd309/vehicle-emulator/internal/vehicle"
	"github.com/go-gl/mathgl/mgl64"
)

// Phase describes what a route driver is currently doing.
type Phase string

const (
	PhaseStationary   Phase = "stationary"
	PhaseAccelerating Phase = "accelerating"
	PhaseCruising     Phase = "cruising"
	PhaseBraking      Phase = "braking"
	PhaseArrived      Phase = "arrived"
)

// Route driver defaults.
const (
	DefaultCruiseSpeed   = 12.0 // m/s
	DefaultLookahead     = 6.0  // m
	DefaultLookaheadGain = 0.5  // s
	DefaultDeceleration  = 2.5  // m/s², planning value, below what the brakes deliver
	DefaultArrivalRadius = 2.0  // m

	speedBand    = 0.5  // m/s either side of target treated as on-speed
	restSpeed    = 0.25 // m/s
	throttleGain = 0.05 // pedal per m/s of speed error
	brakeGain    = 0.5
)

// RouteSpec is the JSON form of a route driver.
type RouteSpec struct {
	Stops          []roadnet.NodeID `json:"stops"`
	CruiseSpeed    float64          `json:"cruise_speed,omitempty"`    // m/s
	Lookahead      float64          `json:"lookahead,omitempty"`       // m, minimum pursuit distance
	LookaheadGain  float64          `json:"lookahead_gain,omitempty"`  // s, pursuit distance per m/s
	Deceleration   float64          `json:"deceleration,omitempty"`    // m/s²
	ArrivalRadius  float64          `json:"arrival_radius,omitempty"`  // m
	DepartureDelay float64          `json:"departure_delay,omitempty"` // s
}

func (s RouteSpec) withDefaults() RouteSpec {
	if s.CruiseSpeed == 0 {
		s.CruiseSpeed = DefaultCruiseSpeed
	}
	if s.Lookahead == 0 {
		s.Lookahead = DefaultLookahead
	}
	if s.LookaheadGain == 0 {
		s.LookaheadGain = DefaultLookaheadGain
	}
	if s.Deceleration == 0 {
		s.Deceleration = DefaultDeceleration
	}
	if s.ArrivalRadius == 0 {
		s.ArrivalRadius = DefaultArrivalRadius
	}
	return s
}

// Route follows the shortest road route through a list of stops using
// pure-pursuit steering, and holds the speed below the cruise speed, every
// road speed limit and the speed it can still stop from at the last stop.
//
// State machine:
//
//	stationary → accelerating ⇄ cruising ⇄ braking → arrived
type Route struct {
	spec      RouteSpec
	track     *roadnet.Track
	wheelbase float64
	maxAngle  float64
	frontG    float64 // m/s² of grip per unit tire force coefficient on the front axle
	tireSlope float64 // tire force coefficient per degree near straight ahead

	phase    Phase
	segment  int
	progress float64
}

// NewRoute plans the route through spec.Stops on env.Network.
func NewRoute(spec RouteSpec, env Env) (*Route, error) {
	if env.Network == nil {
		return nil, errors.New("route driver: no road network")
	}
	if len(spec.Stops) < 2 {
		return nil, fmt.Errorf("route driver: need at least two stops, got %d", len(spec.Stops))
	}
	spec = spec.withDefaults()
	if spec.CruiseSpeed < 0 || spec.Deceleration < 0 || spec.Lookahead < 0 {
		return nil, errors.New("route driver: speeds and distances must be positive")
	}
	path, err := env.Network.Plan(spec.Stops...)
	if err != nil {
		return nil, fmt.Errorf("route driver: %w", err)
	}
	track, err := env.Network.Track(path)
	if err != nil {
		return nil, fmt.Errorf("route driver: %w", err)
	}
	p := env.Vehicle.WithDefaults()
	tm := tire.Default()
	if p.Tire != nil {
		if tm, err = tire.New(p.Tire); err != nil {
			return nil, fmt.Errorf("route driver: %w", err)
		}
	}
	return &Route{
		spec:      spec,
		track:     track,
		wheelbase: p.Wheelbase(),
		maxAngle:  p.MaxSteeringAngle,
		frontG:    vehicle.Gravity * math.Abs(p.RearAxle.Center.X()) / p.Wheelbase(),
		tireSlope: tm.Force(1),
		phase:     PhaseStationary,
	}, nil
}

// Kind implements Driver.
func (*Route) Kind() Kind { return KindRoute }

// Phase implements Phaser.
func (r *Route) Phase() Phase { return r.phase }

// Progress is the arc length covered along the track, in metres.
func (r *Route) Progress() float64 { return r.progress }

// Track returns the planned polyline.
func (r *Route) Track() *roadnet.Track { return r.track }

// Placement implements Placer: the start of the track, facing along the
// first road.
func (r *Route) Placement() (roadnet.Coordinate, float64) {
	start := r.track.Start()
	ahead := r.track.PointAt(math.Min(1, r.track.Length()))
	d := ahead.Sub(start)
	return start, math.Atan2(d.Z, d.X)
}

// Inputs implements Driver.
func (r *Route) Inputs(t float64, s vehicle.State) input.Snapshot {
	snap := input.Snapshot{}
	speed := s.Speed()

	switch r.phase {
	case PhaseStationary:
		if t < r.spec.DepartureDelay {
			snap.Set(input.Down, 1)
			return snap
		}
		r.phase = PhaseAccelerating
	case PhaseArrived:
		snap.Set(input.Down, 1)
		return snap
	}

	pos := roadnet.Ground(s.Position)
	r.progress, r.segment = r.track.Project(pos, r.segment)
	remaining := r.track.Length() - r.progress
	if remaining <= r.spec.ArrivalRadius && speed < restSpeed {
		r.phase = PhaseArrived
		snap.Set(input.Down, 1)
		return snap
	}

	r.steer(snap, s, pos, speed)

	target := math.Min(r.spec.CruiseSpeed, r.track.SafeSpeed(r.progress, r.spec.Deceleration))
	if remaining <= r.spec.ArrivalRadius {
		target = 0
	}
	switch diff := target - speed; {
	case diff < -speedBand:
		r.phase = PhaseBraking
		snap.Set(input.Down, input.Clamp(-diff*brakeGain, 0, 1))
	case diff > speedBand:
		r.phase = PhaseAccelerating
		snap.Set(input.Up, input.Clamp(diff*throttleGain, 0, 1))
	default:
		r.phase = PhaseCruising
		if diff > 0 {
			snap.Set(input.Up, input.Clamp(diff*throttleGain, 0, 1))
		}
	}
	return snap
}

// steer aims the front wheels at the point one lookahead distance further
// along the track. The front tires alone can turn the car tighter than the
// wheel geometry suggests at low speed, so the angle is also capped at what
// the tires need to supply v²·κ of lateral acceleration.
func (r *Route) steer(snap input.Snapshot, s vehicle.State, pos roadnet.Coordinate, speed float64) {
	ld := math.Max(r.spec.Lookahead, r.spec.LookaheadGain*speed)
	aim := r.track.PointAt(r.progress + ld).Sub(pos)
	d := mgl64.Vec3{aim.X, 0, aim.Z}
	x, z := d.Dot(s.Forward), d.Dot(s.Right)
	dist2 := x*x + z*z
	if dist2 < 1e-9 || r.maxAngle <= 0 {
		return
	}
	curvature := 2 * z / dist2
	angle := mgl64.RadToDeg(math.Atan(r.wheelbase * math.Abs(curvature)))
	if r.frontG > 0 && r.tireSlope > 0 {
		grip := speed * speed * math.Abs(curvature) / r.frontG
		angle = math.Min(angle, grip/r.tireSlope)
	}
	cmd := input.Clamp(math.Copysign(angle, curvature)/r.maxAngle, -1, 1)
	switch {
	case cmd > 0:
		snap.Set(input.Right, cmd)
	case cmd < 0:
		snap.Set(input.Left, -cmd)
	}
}
