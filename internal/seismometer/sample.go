package seismometer

import (
	"math"
	"time"
)

// Vector is a single 3-axis acceleration reading in gal.
type Vector struct {
	X float64
	Y float64
	Z float64
}

// Magnitude returns the composite acceleration of the three axes.
func (v Vector) Magnitude() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sample is one slot of the sampling timeline. A slot whose sensor read
// was missed keeps its place with OK false, so the spacing between
// neighbouring samples stays constant.
type Sample struct {
	Time   time.Time
	Vector Vector
	OK     bool
}

// Window is a snapshot of the most recent samples, oldest first. The
// snapshot is a detached copy and is never mutated by later sampling.
type Window struct {
	Samples []Sample
	Period  time.Duration
	Full    bool
}

func (w Window) Len() int {
	return len(w.Samples)
}

func (w Window) Duration() time.Duration {
	return time.Duration(len(w.Samples)) * w.Period
}

// ValidCount returns how many slots hold a real reading.
func (w Window) ValidCount() int {
	valid := 0
	for _, s := range w.Samples {
		if s.OK {
			valid++
		}
	}
	return valid
}

// GapCount returns how many slots were missed.
func (w Window) GapCount() int {
	return len(w.Samples) - w.ValidCount()
}

// Fill returns the fraction of slots holding a real reading.
func (w Window) Fill() float64 {
	if len(w.Samples) == 0 {
		return 0
	}
	return float64(w.ValidCount()) / float64(len(w.Samples))
}

// PeakMagnitude returns the largest raw composite acceleration in the
// window, gaps excluded.
func (w Window) PeakMagnitude() float64 {
	peak := 0.0
	for _, s := range w.Samples {
		if !s.OK {
			continue
		}
		if m := s.Vector.Magnitude(); m > peak {
			peak = m
		}
	}
	return peak
}

// axes splits the window into three per-axis series with constant
// spacing. Gap slots are bridged by linear interpolation between the
// neighbouring readings; leading and trailing gaps hold the nearest
// reading. Reports false when the window has no reading at all.
func (w Window) axes() ([3][]float64, bool) {
	var out [3][]float64

	n := len(w.Samples)
	prev := -1

	for i := range out {
		out[i] = make([]float64, n)
	}

	set := func(i int, v Vector) {
		out[0][i] = v.X
		out[1][i] = v.Y
		out[2][i] = v.Z
	}

	for i, s := range w.Samples {
		if !s.OK {
			continue
		}
		if prev < 0 {
			for j := 0; j < i; j++ {
				set(j, s.Vector)
			}
		} else if i-prev > 1 {
			pv := w.Samples[prev].Vector
			for j := prev + 1; j < i; j++ {
				t := float64(j-prev) / float64(i-prev)
				set(j, Vector{
					X: pv.X + t*(s.Vector.X-pv.X),
					Y: pv.Y + t*(s.Vector.Y-pv.Y),
					Z: pv.Z + t*(s.Vector.Z-pv.Z),
				})
			}
		}
		set(i, s.Vector)
		prev = i
	}

	if prev < 0 {
		return out, false
	}

	for j := prev + 1; j < n; j++ {
		set(j, w.Samples[prev].Vector)
	}

	return out, true
}
