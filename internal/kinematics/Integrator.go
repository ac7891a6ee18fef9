// Package kinematics defines the Integrator interface that advances a vehicle's
// world-frame velocity from its acceleration, along with built-in models.
//
// Adding a model only requires implementing Integrator and registering it in
// Decode; the vehicle never needs to change.
package kinematics

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrUnknownModel is returned by Decode for an unregistered discriminator.
var ErrUnknownModel = errors.New("unknown integrator model")

// Integrator advances velocity by one timestep.
type Integrator interface {
	// Name returns the JSON discriminator of the model.
	Name() string

	// Integrate returns the velocity after applying acceleration a for dt seconds.
	Integrate(v, a mgl64.Vec3, dt float64) mgl64.Vec3
}

// disc is the minimum JSON structure needed to read the model discriminator.
type disc struct {
	Model string `json:"model"`
}

// Decode resolves an integrator from JSON of the form {"model": "..."}.
// An empty document selects the linear model.
//
// Supported models:
//   - "linear": v += a*dt.
//   - "rotate": speed-preserving rotation under lateral acceleration.
func Decode(raw json.RawMessage) (Integrator, error) {
	if len(raw) == 0 {
		return Linear{}, nil
	}
	var d disc
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("reading integrator model discriminator: %w", err)
	}
	return ByName(d.Model)
}

// ByName returns the integrator registered under name.
func ByName(name string) (Integrator, error) {
	switch name {
	case "", LinearModelName:
		return Linear{}, nil
	case RotateModelName:
		return Rotate{}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownModel, name)
	}
}

// Encode returns the JSON discriminator document for m.
func Encode(m Integrator) json.RawMessage {
	out, _ := json.Marshal(disc{Model: m.Name()})
	return out
}
