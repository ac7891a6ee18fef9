package curve

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = Table{{0, 0}, {5, 0.825}, {7, 0.93}, {10, 1}, {50, 0.825}}

func TestAtKnotsAreExact(t *testing.T) {
	for _, p := range sample {
		assert.Equal(t, p.Y, sample.At(p.X), "x=%g", p.X)
	}
}

func TestAtClampsBeyondLastSample(t *testing.T) {
	for _, x := range []float64{50, 50.0001, 90, 1e9} {
		assert.Equal(t, 0.825, sample.At(x))
	}
}

func TestAtClampsBelowFirstSample(t *testing.T) {
	assert.Equal(t, 0.0, sample.At(-3))
}

func TestAtInterpolatesLinearly(t *testing.T) {
	assert.InDelta(t, 0.4125, sample.At(2.5), 1e-12)
	assert.InDelta(t, 0.8775, sample.At(6), 1e-12)
	assert.InDelta(t, 0.965, sample.At(8.5), 1e-12)
}

func TestAtSinglePointTable(t *testing.T) {
	one := Table{{3, 7}}
	assert.Equal(t, 7.0, one.At(0))
	assert.Equal(t, 7.0, one.At(3))
	assert.Equal(t, 7.0, one.At(10))
}

func TestValidate(t *testing.T) {
	require.NoError(t, sample.Validate())
	assert.ErrorIs(t, Table{}.Validate(), ErrEmptyTable)

	err := Table{{0, 0}, {1, 1}, {1, 2}}.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotMonotonic))
}

func TestCloneIsIndependent(t *testing.T) {
	c := sample.Clone()
	c[0].Y = 42
	assert.Equal(t, 0.0, sample[0].Y)
}
