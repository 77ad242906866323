package seismometer

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Intensity is one instrumental seismic intensity measurement.
type Intensity struct {
	Value float64 // raw instrumental intensity
	Accel float64 // acceleration sustained for the target duration, gal
}

// Rounded returns the value rounded the official way: to the second
// decimal first, then cut down to one.
func (i Intensity) Rounded() float64 {
	return math.Floor(math.Round(i.Value*100)/10) / 10
}

// Scale returns the intensity class name for the rounded value, "0"
// through "7" with the split 5 and 6 classes.
func (i Intensity) Scale() string {
	switch v := i.Rounded(); {
	case v < 0.5:
		return "0"
	case v < 1.5:
		return "1"
	case v < 2.5:
		return "2"
	case v < 3.5:
		return "3"
	case v < 4.5:
		return "4"
	case v < 5.0:
		return "5-"
	case v < 5.5:
		return "5+"
	case v < 6.0:
		return "6-"
	case v < 6.5:
		return "6+"
	default:
		return "7"
	}
}

// ComputeIntensity finds the acceleration that the filtered motion kept
// up for the target duration in total and converts it to the
// instrumental seismic intensity. A profile without positive sustained
// motion has no defined intensity and comes back as ErrDegenerateSignal.
func ComputeIntensity(series []float64, period, target time.Duration) (Intensity, error) {
	if len(series) == 0 {
		return Intensity{}, fmt.Errorf("intensity: empty series: %w", ErrInsufficientWindow)
	}
	if period <= 0 || target <= 0 {
		return Intensity{}, fmt.Errorf("intensity: period %v and target %v must be positive", period, target)
	}

	sorted := make([]float64, len(series))
	copy(sorted, series)

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] > sorted[j]
	})

	accel := sustainedValue(sorted, period, target)
	if accel <= 0 || math.IsNaN(accel) {
		return Intensity{}, ErrDegenerateSignal
	}

	return Intensity{
		Value: 2*math.Log10(accel) + 0.94,
		Accel: accel,
	}, nil
}

// sustainedValue reads the descending profile at the continuous rank
// target/period. Interpolating between the neighbouring ranks keeps the
// exceedance time of the result within one sample of the target even
// when the target is not a whole number of samples.
func sustainedValue(sorted []float64, period, target time.Duration) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}

	q := float64(target) / float64(period)

	i := int(math.Floor(q))
	if i < 1 {
		i = 1
	}
	if i > len(sorted)-1 {
		i = len(sorted) - 1
	}

	frac := q - float64(i)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}

	return sorted[i-1] + frac*(sorted[i]-sorted[i-1])
}
