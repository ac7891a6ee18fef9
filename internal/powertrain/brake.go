package powertrain

import "github.com/cxd309/vehicle-emulator/internal/input"

// DefaultMaxBrakingForce is the stock per-wheel brake capacity in newtons.
const DefaultMaxBrakingForce = 1000.0

// Brake converts the brake channel into a braking force magnitude. The
// response is instantaneous; releasing the pedal drops the force to zero.
type Brake struct {
	MaxForce float64
	force    float64
}

// NewBrake returns a released brake with the given capacity.
func NewBrake(maxForce float64) *Brake {
	if maxForce < 0 {
		maxForce = 0
	}
	return &Brake{MaxForce: maxForce}
}

// Tick reads the Down channel.
func (b *Brake) Tick(_ float64, in input.Snapshot) {
	if !in.Has(input.Down) {
		b.force = 0
		return
	}
	b.Apply(in.Value(input.Down))
}

// Apply sets the pedal position in [0, 1].
func (b *Brake) Apply(pedal float64) {
	b.force = input.Clamp(pedal, 0, 1) * b.MaxForce
}

// Force is the braking force magnitude in newtons, always >= 0.
func (b *Brake) Force() float64 { return b.force }
