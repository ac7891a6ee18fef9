// Package driver produces the per-tick input snapshot for a scenario: timed
// scripts, replayed key presses, or an autonomous route follower.
package driver

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cxd309/vehicle-emulator/internal/input"
	"github.com/cxd309/vehicle-emulator/internal/roadnet"
	"github.com/cxd309/vehicle-emulator/internal/vehicle"
)

// Kind selects a driver implementation.
type Kind string

const (
	KindScript   Kind = "script"
	KindKeyboard Kind = "keyboard"
	KindRoute    Kind = "route"
)

// ErrUnknownKind is returned when a driver discriminator is not recognised.
var ErrUnknownKind = errors.New("unknown driver kind")

// Driver decides the inputs held during the tick starting at simulation
// time t, given the vehicle state at that moment.
type Driver interface {
	Kind() Kind
	Inputs(t float64, s vehicle.State) input.Snapshot
}

// Placer is implemented by drivers that choose where the vehicle starts.
type Placer interface {
	Placement() (pos roadnet.Coordinate, heading float64)
}

// Phaser is implemented by drivers that run a state machine.
type Phaser interface {
	Phase() Phase
}

// Env is what a driver may need from the rest of the scenario.
type Env struct {
	Vehicle vehicle.Params
	Network *roadnet.Graph
}

// Spec is the JSON form of a driver. The "kind" key selects the concrete
// spec; the remaining keys are forwarded to it.
type Spec struct {
	Kind     Kind
	Script   *ScriptSpec
	Keyboard *KeyboardSpec
	Route    *RouteSpec
}

type kindDisc struct {
	Kind Kind `json:"kind"`
}

// UnmarshalJSON implements json.Unmarshaler for Spec.
//
// Supported kinds:
//   - "script": timed input segments.
//   - "keyboard": timed key presses through the keyboard ramp.
//   - "route": follow the shortest route through a list of stops.
func (s *Spec) UnmarshalJSON(data []byte) error {
	var disc kindDisc
	if err := json.Unmarshal(data, &disc); err != nil {
		return fmt.Errorf("reading driver kind: %w", err)
	}
	s.Kind = disc.Kind
	switch disc.Kind {
	case KindScript:
		s.Script = &ScriptSpec{}
		if err := json.Unmarshal(data, s.Script); err != nil {
			return fmt.Errorf("parsing script driver: %w", err)
		}
	case KindKeyboard:
		s.Keyboard = &KeyboardSpec{}
		if err := json.Unmarshal(data, s.Keyboard); err != nil {
			return fmt.Errorf("parsing keyboard driver: %w", err)
		}
	case KindRoute:
		s.Route = &RouteSpec{}
		if err := json.Unmarshal(data, s.Route); err != nil {
			return fmt.Errorf("parsing route driver: %w", err)
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownKind, disc.Kind)
	}
	return nil
}

// Build constructs the driver described by s.
func (s Spec) Build(env Env) (Driver, error) {
	switch {
	case s.Kind == KindScript && s.Script != nil:
		return NewScript(*s.Script)
	case s.Kind == KindKeyboard && s.Keyboard != nil:
		return NewKeyboard(*s.Keyboard)
	case s.Kind == KindRoute && s.Route != nil:
		return NewRoute(*s.Route, env)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownKind, s.Kind)
}

// Decode parses and builds a driver from raw JSON. An empty message yields
// an idle script that never touches the controls.
func Decode(raw json.RawMessage, env Env) (Driver, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return NewScript(ScriptSpec{})
	}
	var s Spec
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return s.Build(env)
}
