package display

import (
	"time"

	"github.com/ichigozero/home-iot/rpi/mpu6050/go/internal/monitor"
	"github.com/sirupsen/logrus"
)

var _ monitor.Display = (*Console)(nil)

// Console stands in for the OLED panel when none is attached, logging
// the screens instead of drawing them. The waiting screen is silent,
// it would repeat a clock line a hundred times a second.
type Console struct {
	log *logrus.Entry
}

func NewConsole(log *logrus.Logger) *Console {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Console{log: log.WithField("component", "display")}
}

func (c *Console) ShowWaiting(now time.Time) error {
	return nil
}

func (c *Console) ShowActive(v monitor.EventView) error {
	c.log.WithFields(logrus.Fields{
		"now":      v.Current,
		"max":      v.Max,
		"peak_gal": v.PeakGal,
		"elapsed":  v.Elapsed.Round(time.Second).String(),
	}).Info("earthquake in progress")
	return nil
}

func (c *Console) ShowEnded(v monitor.EventView) error {
	c.log.WithFields(logrus.Fields{
		"max":      v.Max,
		"peak_gal": v.PeakGal,
		"elapsed":  v.Elapsed.Round(time.Second).String(),
	}).Info("earthquake ended")
	return nil
}
