package seismometer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Source produces one acceleration reading per call. Read honours the
// context deadline: when the deadline passes first it returns early
// with ErrSensorTimeout while the transaction, if one is on the bus,
// finishes in the background.
type Source interface {
	Read(ctx context.Context) (Vector, error)
}

// SchedulerConfig sizes the sampling pipeline.
type SchedulerConfig struct {
	Period      time.Duration // sampling cadence
	Window      time.Duration // duration covered by the ring
	Evaluate    time.Duration // evaluation cadence
	ReadTimeout time.Duration // deadline for one sensor read, defaults to Period
}

// Scheduler drives the sampling loop on an absolute time grid: each
// wake time is the previous one plus the period, never "now" plus the
// period, so processing latency does not accumulate into drift.
type Scheduler struct {
	source Source
	eval   *Evaluator
	sinks  []Sink
	log    *logrus.Entry

	period      time.Duration
	readTimeout time.Duration
	evalEvery   int

	ring    *ringBuffer
	mailbox *windowMailbox

	overruns uint64
	gaps     uint64
}

func NewScheduler(cfg SchedulerConfig, source Source, eval *Evaluator, log *logrus.Logger, sinks ...Sink) (*Scheduler, error) {
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("scheduler: non-positive period %v", cfg.Period)
	}
	if cfg.Window < cfg.Period {
		return nil, fmt.Errorf("scheduler: window %v shorter than period %v", cfg.Window, cfg.Period)
	}

	evalEvery := int(cfg.Evaluate / cfg.Period)
	if evalEvery < 1 {
		evalEvery = 1
	}

	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = cfg.Period
	}

	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Scheduler{
		source:      source,
		eval:        eval,
		sinks:       sinks,
		log:         log.WithField("component", "scheduler"),
		period:      cfg.Period,
		readTimeout: readTimeout,
		evalEvery:   evalEvery,
		ring:        newRingBuffer(int(cfg.Window/cfg.Period), cfg.Period),
		mailbox:     newWindowMailbox(),
	}, nil
}

// Run samples until the context is cancelled and returns nil on a clean
// stop. Cancellation is honoured between cycles, never halfway through
// a sample.
func (s *Scheduler) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.evalLoop(ctx)
	}()
	defer wg.Wait()

	next := time.Now()
	sinceEval := 0

	for {
		if err := s.sleepUntil(ctx, next); err != nil {
			return nil
		}

		slot := next

		v, err := s.acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			atomic.AddUint64(&s.gaps, 1)
			s.log.WithError(err).Warn("sample missed, gap recorded")
			s.ring.push(Sample{Time: slot, OK: false})
		} else {
			s.ring.push(Sample{Time: slot, Vector: v, OK: true})
		}

		sinceEval++
		if sinceEval >= s.evalEvery {
			sinceEval = 0
			s.mailbox.post(s.ring.snapshot())
		}

		next = next.Add(s.period)

		if late := time.Since(next); late >= 0 {
			atomic.AddUint64(&s.overruns, 1)

			// A whole slot or more behind: stay on the grid and mark the
			// missed slots as gaps instead of firing a burst of catch-up
			// reads.
			if skipped := int(late / s.period); skipped > 0 {
				for i := 0; i < skipped; i++ {
					s.ring.push(Sample{Time: next, OK: false})
					next = next.Add(s.period)
					sinceEval++
				}
				atomic.AddUint64(&s.gaps, uint64(skipped))
				s.log.WithFields(logrus.Fields{
					"late":    late,
					"skipped": skipped,
				}).Warn("cycle overran the period")
			} else {
				s.log.WithField("late", late).Debug("cycle overran the period")
			}
		}
	}
}

// Overruns reports how many cycles finished past their wake time.
func (s *Scheduler) Overruns() uint64 {
	return atomic.LoadUint64(&s.overruns)
}

// Gaps reports how many sample slots went by without a reading.
func (s *Scheduler) Gaps() uint64 {
	return atomic.LoadUint64(&s.gaps)
}

func (s *Scheduler) sleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		// Keep honouring a pending cancellation under sustained overrun.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// acquire reads one sample, giving a timed-out read one immediate
// second chance before the slot is given up as a gap.
func (s *Scheduler) acquire(ctx context.Context) (Vector, error) {
	v, err := s.readOnce(ctx)
	if err != nil && errors.Is(err, ErrSensorTimeout) && ctx.Err() == nil {
		v, err = s.readOnce(ctx)
	}
	return v, err
}

func (s *Scheduler) readOnce(ctx context.Context) (Vector, error) {
	rctx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()
	return s.source.Read(rctx)
}

func (s *Scheduler) evalLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case w := <-s.mailbox.recv():
			s.deliver(s.eval.Evaluate(w))
		}
	}
}

func (s *Scheduler) deliver(r Report) {
	if r.Intensity != nil {
		s.log.WithFields(logrus.Fields{
			"scale":     r.Intensity.Scale(),
			"intensity": r.Intensity.Rounded(),
			"peak_gal":  r.PeakGal,
		}).Debug("window evaluated")
	}

	for _, sink := range s.sinks {
		if err := sink.Report(r); err != nil {
			s.log.WithError(err).Warn("report sink failed")
		}
	}
}
