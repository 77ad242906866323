package monitor

import (
	"sync"
	"time"

	"github.com/ichigozero/home-iot/rpi/mpu6050/go/internal/seismometer"
	"github.com/sirupsen/logrus"
)

// Config tunes when an earthquake event opens and closes.
type Config struct {
	TriggerGal    float64       // raw composite acceleration that opens an event
	ExitIntensity float64       // intensity below which an event may close
	MinEvent      time.Duration // earliest close after the trigger
	MaxEvent      time.Duration // forced close
	Hold          time.Duration // how long the ended screen stays up
	RecordDir     string        // where event records go, empty disables them
}

// EventView is the running state of an event as shown on the display.
type EventView struct {
	Current      string // intensity class of the latest cycle, "-" when none
	CurrentValue float64
	HasCurrent   bool
	Max          string
	MaxValue     float64
	HasMax       bool
	PeakGal      float64
	Elapsed      time.Duration
}

// Display renders the seismometer screens.
type Display interface {
	ShowWaiting(now time.Time) error
	ShowActive(v EventView) error
	ShowEnded(v EventView) error
}

type state int

const (
	stateIdle state = iota
	stateActive
	stateHold
)

var _ seismometer.Sink = (*Monitor)(nil)

// Monitor folds the stream of evaluation reports into earthquake
// events: it opens one when the ground moves, tracks the maxima, closes
// the event when the motion settles and writes its record to disk.
type Monitor struct {
	cfg     Config
	display Display
	log     *logrus.Entry

	mu        sync.Mutex
	state     state
	started   time.Time
	holdUntil time.Time
	view      EventView
	history   []ReportRecord
}

func New(cfg Config, display Display, log *logrus.Logger) *Monitor {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Monitor{
		cfg:     cfg,
		display: display,
		log:     log.WithField("component", "monitor"),
	}
}

// Report implements seismometer.Sink.
func (m *Monitor) Report(r seismometer.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	switch m.state {
	case stateIdle:
		if r.PeakGal >= m.cfg.TriggerGal {
			m.open(r, now)
			return m.showActive()
		}
		return m.showWaiting(now)

	case stateActive:
		m.update(r, now)
		if m.shouldClose(r, now) {
			m.close(now)
			return m.showEnded()
		}
		return m.showActive()

	default: // holding the ended screen
		if now.After(m.holdUntil) {
			m.state = stateIdle
			if r.PeakGal >= m.cfg.TriggerGal {
				m.open(r, now)
				return m.showActive()
			}
			return m.showWaiting(now)
		}
		return m.showEnded()
	}
}

func (m *Monitor) open(r seismometer.Report, now time.Time) {
	m.state = stateActive
	m.started = now
	m.view = EventView{Current: "-"}
	m.history = m.history[:0]
	m.update(r, now)

	m.log.WithField("peak_gal", r.PeakGal).Warn("earthquake event opened")
}

func (m *Monitor) update(r seismometer.Report, now time.Time) {
	m.view.Elapsed = now.Sub(m.started)

	if r.PeakGal > m.view.PeakGal {
		m.view.PeakGal = r.PeakGal
	}

	m.view.HasCurrent = r.Intensity != nil
	if r.Intensity != nil {
		m.view.Current = r.Intensity.Scale()
		m.view.CurrentValue = r.Intensity.Rounded()

		if !m.view.HasMax || r.Intensity.Rounded() > m.view.MaxValue {
			m.view.HasMax = true
			m.view.Max = r.Intensity.Scale()
			m.view.MaxValue = r.Intensity.Rounded()
		}
	} else {
		m.view.Current = "-"
	}

	m.history = append(m.history, newReportRecord(r))
}

// shouldClose ends the event once a trustworthy evaluation shows the
// shaking settled after the minimum duration, or once the maximum is
// exceeded. Degraded and rejected windows cannot attest anything. A
// degenerate signal can, the ground is not moving at all then.
func (m *Monitor) shouldClose(r seismometer.Report, now time.Time) bool {
	elapsed := now.Sub(m.started)

	if elapsed >= m.cfg.MaxEvent {
		return true
	}
	if elapsed < m.cfg.MinEvent {
		return false
	}
	if r.Status != seismometer.StatusFull {
		return false
	}
	if r.Intensity == nil {
		return true
	}
	return r.Intensity.Value < m.cfg.ExitIntensity
}

func (m *Monitor) close(now time.Time) {
	m.view.Elapsed = now.Sub(m.started)
	m.state = stateHold
	m.holdUntil = now.Add(m.cfg.Hold)

	m.log.WithFields(logrus.Fields{
		"max":      m.view.Max,
		"peak_gal": m.view.PeakGal,
		"duration": m.view.Elapsed.Round(time.Second).String(),
	}).Warn("earthquake event closed")

	if m.cfg.RecordDir == "" {
		return
	}

	path, err := m.writeRecord()
	if err != nil {
		m.log.WithError(err).Error("event record not written")
		return
	}
	m.log.WithField("path", path).Info("event record written")
}

func (m *Monitor) showWaiting(now time.Time) error {
	if m.display == nil {
		return nil
	}
	return m.display.ShowWaiting(now)
}

func (m *Monitor) showActive() error {
	if m.display == nil {
		return nil
	}
	return m.display.ShowActive(m.view)
}

func (m *Monitor) showEnded() error {
	if m.display == nil {
		return nil
	}
	return m.display.ShowEnded(m.view)
}
