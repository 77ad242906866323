package seismometer

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
)

const lowCutFreq = 0.5   // Hz
const highCutScale = 10. // Hz

// WeightingFilter shapes an acceleration window with the frequency
// weighting used for instrumental seismic intensity: a 1/sqrt(f) period
// effect, a high cut rolling off above 10 Hz and a low cut below
// 0.5 Hz. The DC term is zeroed outright, so any offset that survived
// calibration drops out here.
type WeightingFilter struct {
	fft *fourier.FFT
	n   int
}

func NewWeightingFilter() *WeightingFilter {
	return &WeightingFilter{}
}

// Apply filters each axis of the window and returns the composite
// magnitude of the filtered motion per sample slot.
func (f *WeightingFilter) Apply(w Window) ([]float64, error) {
	axes, ok := w.axes()
	if !ok {
		return nil, fmt.Errorf("filter: window has no readings: %w", ErrInsufficientWindow)
	}

	out := make([]float64, w.Len())

	for _, series := range axes {
		filtered, err := f.ApplySeries(series, w.Period)
		if err != nil {
			return nil, err
		}
		for i, v := range filtered {
			out[i] += v * v
		}
	}

	for i := range out {
		out[i] = math.Sqrt(out[i])
	}

	return out, nil
}

// ApplySeries filters a single fixed-period series. The series must
// span at least one full period of the low cut corner frequency, or the
// lowest weighted band cannot be resolved.
func (f *WeightingFilter) ApplySeries(series []float64, period time.Duration) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("filter: non-positive sample period %v", period)
	}

	n := len(series)
	if min := minSamples(period); n < min {
		return nil, fmt.Errorf(
			"filter: %d samples of %v, need %d: %w",
			n, period, min, ErrInsufficientWindow,
		)
	}

	fft := f.plan(n)
	rate := 1 / period.Seconds()

	coeff := fft.Coefficients(nil, series)
	for i := range coeff {
		coeff[i] *= complex(weight(fft.Freq(i)*rate), 0)
	}

	// Sequence is unnormalized, it returns the series scaled by n.
	out := fft.Sequence(nil, coeff)
	for i := range out {
		out[i] /= float64(n)
	}

	return out, nil
}

func (f *WeightingFilter) plan(n int) *fourier.FFT {
	if f.fft == nil || f.n != n {
		f.fft = fourier.NewFFT(n)
		f.n = n
	}
	return f.fft
}

func minSamples(period time.Duration) int {
	return int(math.Ceil(1 / (lowCutFreq * period.Seconds())))
}

func weight(freq float64) float64 {
	if freq <= 0 {
		return 0
	}

	y := freq / highCutScale
	y2 := y * y
	highCut := 1 + y2*(0.694+y2*(0.241+y2*(0.0557+y2*(0.009664+y2*(0.00134+y2*0.000155)))))
	lowCut := 1 - math.Exp(-math.Pow(freq/lowCutFreq, 3))

	return math.Sqrt(lowCut / highCut / freq)
}
