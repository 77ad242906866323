package seismometer

import "time"

// ringBuffer keeps the most recent samples in a fixed ring, overwriting
// the oldest once full. It belongs to the sampling loop and is not safe
// for concurrent use, snapshots are handed out instead.
type ringBuffer struct {
	samples []Sample
	size    int
	index   int
	count   int
	period  time.Duration
}

func newRingBuffer(size int, period time.Duration) *ringBuffer {
	return &ringBuffer{
		samples: make([]Sample, size),
		size:    size,
		period:  period,
	}
}

func (r *ringBuffer) push(s Sample) {
	r.samples[r.index] = s
	r.index = (r.index + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

// snapshot copies the buffered samples oldest first. Later pushes do
// not touch the copy.
func (r *ringBuffer) snapshot() Window {
	values := make([]Sample, 0, r.count)

	if r.count == r.size {
		values = append(values, r.samples[r.index:]...)
		values = append(values, r.samples[:r.index]...)
	} else {
		values = append(values, r.samples[:r.count]...)
	}

	return Window{
		Samples: values,
		Period:  r.period,
		Full:    r.count == r.size,
	}
}
