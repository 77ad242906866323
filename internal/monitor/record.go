package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ichigozero/home-iot/rpi/mpu6050/go/internal/seismometer"
)

// ReportRecord is one evaluation cycle inside an event record.
type ReportRecord struct {
	Time      string   `json:"time"`
	Status    string   `json:"status"`
	Intensity *float64 `json:"intensity,omitempty"`
	Scale     string   `json:"scale,omitempty"`
	AccelGal  *float64 `json:"accel_gal,omitempty"`
	PeakGal   float64  `json:"peak_gal"`
	Fill      float64  `json:"fill"`
	Fault     string   `json:"fault,omitempty"`
}

func newReportRecord(r seismometer.Report) ReportRecord {
	rec := ReportRecord{
		Time:    r.Time.Format(time.RFC3339Nano),
		Status:  r.Status.String(),
		PeakGal: r.PeakGal,
		Fill:    r.Fill,
		Fault:   r.Fault,
	}

	if r.Intensity != nil {
		value := r.Intensity.Rounded()
		accel := r.Intensity.Accel
		rec.Intensity = &value
		rec.Scale = r.Intensity.Scale()
		rec.AccelGal = &accel
	}

	return rec
}

// EventRecord is the document written when an event closes.
type EventRecord struct {
	StartedAt    string         `json:"started_at"`
	EndedAt      string         `json:"ended_at"`
	DurationSec  float64        `json:"duration_sec"`
	MaxScale     string         `json:"max_scale,omitempty"`
	MaxIntensity *float64       `json:"max_intensity,omitempty"`
	PeakGal      float64        `json:"peak_gal"`
	Reports      []ReportRecord `json:"reports"`
}

// writeRecord runs with the monitor lock held.
func (m *Monitor) writeRecord() (string, error) {
	record := EventRecord{
		StartedAt:   m.started.Format(time.RFC3339),
		EndedAt:     m.started.Add(m.view.Elapsed).Format(time.RFC3339),
		DurationSec: m.view.Elapsed.Seconds(),
		PeakGal:     m.view.PeakGal,
		Reports:     m.history,
	}

	if m.view.HasMax {
		maxValue := m.view.MaxValue
		record.MaxScale = m.view.Max
		record.MaxIntensity = &maxValue
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(m.cfg.RecordDir, 0755); err != nil {
		return "", err
	}

	path := filepath.Join(
		m.cfg.RecordDir,
		fmt.Sprintf("quake-%s.json", m.started.Format("20060102-150405")),
	)

	return path, os.WriteFile(path, data, 0644)
}
