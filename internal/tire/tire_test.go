package tire

import (
	"testing"

	"github.com/cxd309/vehicle-emulator/internal/curve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultForceAtKnots(t *testing.T) {
	m := Default()
	for _, p := range m.Table() {
		assert.Equal(t, p.Y, m.Force(p.X))
		assert.Equal(t, p.Y, m.Force(-p.X), "negative angles use magnitude")
	}
}

func TestDefaultForceBeyondTable(t *testing.T) {
	m := Default()
	assert.Equal(t, 0.825, m.Force(60))
	assert.Equal(t, 0.825, m.Force(-180))
}

func TestDefaultForceInterpolates(t *testing.T) {
	assert.InDelta(t, 0.991, Default().Force(12.5), 1e-12)
}

func TestNewRejectsBadCurves(t *testing.T) {
	_, err := New(curve.Table{})
	assert.ErrorIs(t, err, curve.ErrEmptyTable)

	_, err = New(curve.Table{{X: 2, Y: 1}, {X: 1, Y: 0}})
	assert.ErrorIs(t, err, curve.ErrNotMonotonic)
}

func TestNewCopiesTable(t *testing.T) {
	pts := curve.Table{{X: 0, Y: 0}, {X: 10, Y: 2}}
	m, err := New(pts)
	require.NoError(t, err)
	pts[1].Y = 100
	assert.Equal(t, 1.0, m.Force(5))
}
