package server

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cxd309/vehicle-emulator/internal/input"
	"github.com/cxd309/vehicle-emulator/internal/simulation"
	"github.com/cxd309/vehicle-emulator/internal/vehicle"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// ErrSessionClosed is returned when a closed session receives input.
var ErrSessionClosed = errors.New("session closed")

// Frame is what clients receive after the vehicle has moved.
type Frame struct {
	Type          string         `json:"type"`
	Session       string         `json:"session"`
	Time          float64        `json:"time"` // s of simulated time
	Pose          vehicle.Pose   `json:"pose"`
	Speed         float64        `json:"speed"`     // m/s
	SpeedKmh      float64        `json:"speed_kmh"` // km/h
	EngineRPM     float64        `json:"engine_rpm"`
	SteeringAngle float64        `json:"steering_angle"`
	Inputs        input.Snapshot `json:"inputs"`
}

// Session is one live vehicle shared by every connected client. Inputs come
// from two places: the keyboard ramp, fed by key events, and direct channel
// values, which override the ramp on the channels they set.
type Session struct {
	id string

	mu      sync.Mutex
	params  vehicle.Params
	vehicle *vehicle.Vehicle
	ramp    *input.KeyboardRamp
	direct  input.Snapshot
	stepper *simulation.Stepper
	time    float64
	closed  bool
}

// NewSession builds a vehicle from params ticking at tickRate Hz.
func NewSession(params vehicle.Params, tickRate float64) (*Session, error) {
	if !(tickRate > 0) {
		return nil, fmt.Errorf("tick rate must be positive, got %g", tickRate)
	}
	v, err := vehicle.New(params)
	if err != nil {
		return nil, err
	}
	return &Session{
		id:      uuid.NewString(),
		params:  params,
		vehicle: v,
		ramp:    input.NewKeyboardRamp(),
		direct:  input.Snapshot{},
		stepper: simulation.NewStepper(1/tickRate, 0),
	}, nil
}

// ID identifies the session in frames.
func (s *Session) ID() string { return s.id }

// SetInput holds channel c at value. A zero value releases the channel.
func (s *Session) SetInput(c input.Channel, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if value == 0 {
		delete(s.direct, c)
		return nil
	}
	s.direct.Set(c, input.Clamp(value, 0, 1))
	return nil
}

// SetAxes replaces the direct inputs with a gamepad stick reading.
func (s *Session) SetAxes(horizontal, vertical float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.direct = input.FromAxes(horizontal, vertical)
	return nil
}

// Key presses or releases a ramped key.
func (s *Session) Key(k input.Key, down bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if down {
		s.ramp.Press(k)
	} else {
		s.ramp.Release(k)
	}
	return nil
}

// Reset puts the vehicle back at the origin at rest and clears every input.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.ramp = input.NewKeyboardRamp()
	s.direct = input.Snapshot{}
	s.vehicle.Teleport(mgl64.Vec3{0, s.params.CenterOfMass.Y(), 0}, 0)
	return nil
}

// Advance feeds elapsed wall-clock seconds to the stepper and runs the whole
// steps that fall due. ok is false when no step ran.
func (s *Session) Advance(elapsed float64) (frame Frame, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Frame{}, false
	}
	n := s.stepper.Advance(elapsed)
	var in input.Snapshot
	for i := 0; i < n; i++ {
		in = s.inputs(s.stepper.Step)
		s.vehicle.Tick(s.stepper.Step, in)
		s.time += s.stepper.Step
	}
	if n == 0 {
		return Frame{}, false
	}
	return s.frame(in), true
}

// inputs advances the ramp and overlays the direct channels.
func (s *Session) inputs(dt float64) input.Snapshot {
	in := s.ramp.Advance(dt).Clone()
	for c, v := range s.direct {
		in[c] = v
	}
	// a direct steering value replaces the ramp's side entirely
	if s.direct.Has(input.Left) || s.direct.Has(input.Right) {
		if !s.direct.Has(input.Left) {
			delete(in, input.Left)
		}
		if !s.direct.Has(input.Right) {
			delete(in, input.Right)
		}
	}
	return in
}

// Snapshot returns the current frame without advancing.
func (s *Session) Snapshot() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame(s.ramp.Current())
}

func (s *Session) frame(in input.Snapshot) Frame {
	return Frame{
		Type:          "frame",
		Session:       s.id,
		Time:          s.time,
		Pose:          s.vehicle.Pose(),
		Speed:         s.vehicle.Speed(),
		SpeedKmh:      s.vehicle.SpeedKmh(),
		EngineRPM:     s.vehicle.EngineRPM(),
		SteeringAngle: s.vehicle.SteeringAngle(),
		Inputs:        in.Clone(),
	}
}

// Close stops the session. Further input returns ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
