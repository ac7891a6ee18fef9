// Package tire maps a slip angle to a normalized lateral force coefficient.
package tire

import (
	"fmt"
	"math"

	"github.com/cxd309/vehicle-emulator/internal/curve"
)

// defaultCurve is the empirical slip-angle (degrees) to normalized force curve.
var defaultCurve = curve.Table{
	{X: 0, Y: 0},
	{X: 5, Y: 0.825},
	{X: 7, Y: 0.93},
	{X: 10, Y: 1},
	{X: 15, Y: 0.982},
	{X: 20, Y: 0.947},
	{X: 25, Y: 0.912},
	{X: 30, Y: 0.895},
	{X: 35, Y: 0.877},
	{X: 40, Y: 0.842},
	{X: 45, Y: 0.825},
	{X: 50, Y: 0.825},
}

// Model is an immutable slip-angle lookup table.
type Model struct {
	table curve.Table
}

// New builds a Model from a custom curve. X is the slip angle in degrees.
func New(points curve.Table) (*Model, error) {
	if err := points.Validate(); err != nil {
		return nil, fmt.Errorf("tire curve: %w", err)
	}
	return &Model{table: points.Clone()}, nil
}

// Default returns the stock tire model.
func Default() *Model {
	return &Model{table: defaultCurve}
}

// Force returns the normalized lateral force for the given slip angle.
// The sign of the angle is ignored.
func (m *Model) Force(slipAngleDegrees float64) float64 {
	return m.table.At(math.Abs(slipAngleDegrees))
}

// Table returns a copy of the underlying curve.
func (m *Model) Table() curve.Table { return m.table.Clone() }
