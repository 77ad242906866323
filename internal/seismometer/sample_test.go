package seismometer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorMagnitude(t *testing.T) {
	assert.Equal(t, 0.0, Vector{}.Magnitude())
	assert.InDelta(t, 5.0, Vector{X: 3, Y: 4}.Magnitude(), 1e-12)
	assert.InDelta(t, 5.0, Vector{X: -3, Z: 4}.Magnitude(), 1e-12)
}

func TestWindowAxesInterpolatesGaps(t *testing.T) {
	w := Window{
		Samples: []Sample{
			{Vector: Vector{X: 0, Y: 10, Z: -2}, OK: true},
			{OK: false},
			{Vector: Vector{X: 2, Y: 10, Z: -4}, OK: true},
		},
		Period: time.Millisecond,
		Full:   true,
	}

	axes, ok := w.axes()

	require.True(t, ok)
	assert.InDelta(t, 1.0, axes[0][1], 1e-12)
	assert.InDelta(t, 10.0, axes[1][1], 1e-12)
	assert.InDelta(t, -3.0, axes[2][1], 1e-12)
}

func TestWindowAxesHoldsEdges(t *testing.T) {
	w := Window{
		Samples: []Sample{
			{OK: false},
			{Vector: Vector{X: 5}, OK: true},
			{OK: false},
			{OK: false},
		},
		Period: time.Millisecond,
		Full:   true,
	}

	axes, ok := w.axes()

	require.True(t, ok)
	assert.Equal(t, []float64{5, 5, 5, 5}, axes[0])
}

func TestWindowAxesWithoutReadings(t *testing.T) {
	w := Window{
		Samples: make([]Sample, 8),
		Period:  time.Millisecond,
		Full:    true,
	}

	_, ok := w.axes()

	assert.False(t, ok)
}

func TestWindowFillAndPeak(t *testing.T) {
	w := Window{
		Samples: []Sample{
			{Vector: Vector{X: 1}, OK: true},
			{OK: false},
			{Vector: Vector{X: -3}, OK: true},
			{OK: false},
		},
		Period: time.Millisecond,
		Full:   true,
	}

	assert.Equal(t, 2, w.GapCount())
	assert.InDelta(t, 0.5, w.Fill(), 1e-12)
	assert.InDelta(t, 3.0, w.PeakMagnitude(), 1e-12)
	assert.Equal(t, 4*time.Millisecond, w.Duration())
}
