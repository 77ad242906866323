package seismometer

import (
	"time"
)

// WindowStatus tells how much of an evaluated window was usable.
type WindowStatus int

const (
	// StatusFull marks a complete window that was evaluated, minor gaps
	// included.
	StatusFull WindowStatus = iota
	// StatusDegraded marks a complete window with too many gaps to trust
	// an intensity from it.
	StatusDegraded
	// StatusRejected marks a window that does not span the configured
	// duration yet.
	StatusRejected
)

func (s WindowStatus) String() string {
	switch s {
	case StatusFull:
		return "full"
	case StatusDegraded:
		return "degraded"
	case StatusRejected:
		return "rejected"
	}
	return "unknown"
}

// Report is the outcome of one evaluation cycle. Intensity is nil when
// no value could be derived, Fault then tells why.
type Report struct {
	Time      time.Time
	Status    WindowStatus
	Intensity *Intensity
	Fault     string
	PeakGal   float64
	Gaps      int
	Fill      float64
}

// Sink consumes evaluation reports.
type Sink interface {
	Report(r Report) error
}

// Evaluator derives an intensity report from a window snapshot.
type Evaluator struct {
	Filter  *WeightingFilter
	Target  time.Duration // cumulative exceedance duration to search for
	MinFill float64       // usable fraction below which a window is degraded
}

func NewEvaluator(target time.Duration, minFill float64) *Evaluator {
	return &Evaluator{
		Filter:  NewWeightingFilter(),
		Target:  target,
		MinFill: minFill,
	}
}

// Evaluate never mutates the window and always comes back with a
// report, faulted or not.
func (e *Evaluator) Evaluate(w Window) Report {
	r := Report{
		Time:    reportTime(w),
		PeakGal: w.PeakMagnitude(),
		Gaps:    w.GapCount(),
		Fill:    w.Fill(),
	}

	if !w.Full {
		r.Status = StatusRejected
		r.Fault = "partial window"
		return r
	}

	if r.Fill < e.MinFill {
		r.Status = StatusDegraded
		r.Fault = "too many sampling gaps"
		return r
	}

	series, err := e.Filter.Apply(w)
	if err != nil {
		r.Status = StatusRejected
		r.Fault = err.Error()
		return r
	}

	r.Status = StatusFull

	intensity, err := ComputeIntensity(series, w.Period, e.Target)
	if err != nil {
		r.Fault = err.Error()
		return r
	}

	r.Intensity = &intensity
	return r
}

func reportTime(w Window) time.Time {
	if n := len(w.Samples); n > 0 {
		return w.Samples[n-1].Time
	}
	return time.Now()
}
