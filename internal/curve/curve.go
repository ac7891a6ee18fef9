// Package curve provides piecewise-linear lookup tables used by the tire and
// engine models.
package curve

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTable is returned when a table has no points.
	ErrEmptyTable = errors.New("curve: table has no points")
	// ErrNotMonotonic is returned when table X values are not strictly increasing.
	ErrNotMonotonic = errors.New("curve: x values must be strictly increasing")
)

// Point is a single sample of a curve.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Table is an ordered set of samples. Tables are treated as immutable once built.
type Table []Point

// Validate checks that the table is non-empty and strictly increasing in X.
func (t Table) Validate() error {
	if len(t) == 0 {
		return ErrEmptyTable
	}
	for i := 1; i < len(t); i++ {
		if t[i].X <= t[i-1].X {
			return fmt.Errorf("point %d (x=%g) after x=%g: %w", i, t[i].X, t[i-1].X, ErrNotMonotonic)
		}
	}
	return nil
}

// Last returns the final sample.
func (t Table) Last() Point { return t[len(t)-1] }

// At returns the linearly interpolated value at x.
// Inputs at or beyond the last sample return the last Y exactly; inputs at or
// before the first sample return the first Y.
func (t Table) At(x float64) float64 {
	last := t[len(t)-1]
	if x >= last.X {
		return last.Y
	}
	if x <= t[0].X {
		return t[0].Y
	}

	upper := 1
	for upper < len(t) && x > t[upper].X {
		upper++
	}
	hi, lo := t[upper], t[upper-1]
	if x == hi.X {
		return hi.Y
	}
	return lo.Y + (hi.Y-lo.Y)/(hi.X-lo.X)*(x-lo.X)
}

// Clone returns a copy of the table so callers cannot mutate shared data.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	copy(out, t)
	return out
}
