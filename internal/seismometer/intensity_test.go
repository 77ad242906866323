package seismometer

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntensityBurst(t *testing.T) {
	// A burst at 100 gal spanning exactly the target duration pins the
	// sustained acceleration to 100.
	series := make([]float64, 100)
	for i := 0; i < 30; i++ {
		series[i] = 100
	}

	got, err := ComputeIntensity(series, 10*time.Millisecond, 300*time.Millisecond)
	require.NoError(t, err)

	assert.InDelta(t, 100, got.Accel, 1e-9)
	assert.InDelta(t, 4.94, got.Value, 1e-9)
	assert.Equal(t, "5-", got.Scale())
}

func TestIntensityAllZero(t *testing.T) {
	_, err := ComputeIntensity(make([]float64, 300), 10*time.Millisecond, 300*time.Millisecond)
	assert.ErrorIs(t, err, ErrDegenerateSignal)
}

func TestIntensityEmptySeries(t *testing.T) {
	_, err := ComputeIntensity(nil, 10*time.Millisecond, 300*time.Millisecond)
	assert.ErrorIs(t, err, ErrInsufficientWindow)
}

func TestIntensityFlatPositive(t *testing.T) {
	series := make([]float64, 300)
	for i := range series {
		series[i] = 8
	}

	got, err := ComputeIntensity(series, 10*time.Millisecond, 300*time.Millisecond)
	require.NoError(t, err)

	assert.InDelta(t, 8, got.Accel, 1e-12)
}

func TestIntensityTiedValues(t *testing.T) {
	series := make([]float64, 100)
	for i := range series {
		series[i] = 50
	}
	series[0] = 80

	got, err := ComputeIntensity(series, 10*time.Millisecond, 300*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, 50.0, got.Accel)
}

func TestExceedanceIsMonotone(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	series := make([]float64, 400)
	for i := range series {
		series[i] = 120 * r.Float64()
	}
	period := 10 * time.Millisecond

	exceedance := func(a float64) time.Duration {
		n := 0
		for _, v := range series {
			if v >= a {
				n++
			}
		}
		return time.Duration(n) * period
	}

	prev := exceedance(0)
	for a := 1.0; a <= 120; a++ {
		cur := exceedance(a)
		assert.LessOrEqual(t, int64(cur), int64(prev))
		prev = cur
	}
}

func TestIntensityWithinOneQuantum(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	series := make([]float64, 500)
	for i := range series {
		series[i] = 1 + 90*r.Float64()
	}
	period := 10 * time.Millisecond

	for _, target := range []time.Duration{300 * time.Millisecond, 305 * time.Millisecond} {
		got, err := ComputeIntensity(series, period, target)
		require.NoError(t, err)

		n := 0
		for _, v := range series {
			if v >= got.Accel {
				n++
			}
		}

		diff := time.Duration(n)*period - target
		if diff < 0 {
			diff = -diff
		}
		assert.LessOrEqual(t, int64(diff), int64(period), "target %v", target)
	}
}

func TestIntensityGrowsWithAmplitude(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	base := make([]float64, 300)
	for i := range base {
		base[i] = 40 * r.Float64()
	}

	prev := math.Inf(-1)
	for _, scale := range []float64{0.5, 1, 2, 4, 8} {
		series := make([]float64, len(base))
		for i, v := range base {
			series[i] = scale * v
		}

		got, err := ComputeIntensity(series, 10*time.Millisecond, 300*time.Millisecond)
		require.NoError(t, err)

		assert.Greater(t, got.Value, prev)
		prev = got.Value
	}
}

func TestRoundedAndScale(t *testing.T) {
	cases := []struct {
		value   float64
		rounded float64
		scale   string
	}{
		{0.2, 0.2, "0"},
		{1.96, 1.9, "2"},
		{3.46, 3.4, "3"},
		{4.449, 4.4, "4"},
		{4.549, 4.5, "5-"},
		{4.94, 4.9, "5-"},
		{5.0, 5.0, "5+"},
		{5.96, 5.9, "6-"},
		{6.499, 6.5, "7"},
		{-0.2, -0.2, "0"},
	}

	for _, c := range cases {
		i := Intensity{Value: c.value}
		assert.InDelta(t, c.rounded, i.Rounded(), 1e-9, "value %v", c.value)
		assert.Equal(t, c.scale, i.Scale(), "value %v", c.value)
	}
}
