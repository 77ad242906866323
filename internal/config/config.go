package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the static runtime configuration. Everything is read
// once at startup, nothing here changes while the meter runs.
type Config struct {
	Sampling  Sampling  `yaml:"sampling"`
	Sensor    Sensor    `yaml:"sensor"`
	Display   Display   `yaml:"display"`
	Monitor   Monitor   `yaml:"monitor"`
	Telemetry Telemetry `yaml:"telemetry"`
	Log       Log       `yaml:"log"`
}

type Sampling struct {
	Period   string  `yaml:"period"`   // "10ms"
	Window   string  `yaml:"window"`   // "3s"
	Evaluate string  `yaml:"evaluate"` // "1s"
	Target   string  `yaml:"target"`   // cumulative exceedance target, "300ms"
	MinFill  float64 `yaml:"min_fill"` // usable fraction below which a window is degraded
}

// GetPeriod returns the sampling cadence.
func (s *Sampling) GetPeriod() time.Duration {
	return parseDuration(s.Period, 10*time.Millisecond)
}

// GetWindow returns the duration one evaluation window covers.
func (s *Sampling) GetWindow() time.Duration {
	return parseDuration(s.Window, 3*time.Second)
}

// GetEvaluate returns how often a window is evaluated.
func (s *Sampling) GetEvaluate() time.Duration {
	return parseDuration(s.Evaluate, time.Second)
}

// GetTarget returns the cumulative exceedance duration the intensity
// search aims for.
func (s *Sampling) GetTarget() time.Duration {
	return parseDuration(s.Target, 300*time.Millisecond)
}

type Sensor struct {
	Bus       int    `yaml:"bus"`
	Address   int    `yaml:"address"`
	DLPF      int    `yaml:"dlpf"`      // 0 (260 Hz) .. 6 (5 Hz)
	Calibrate bool   `yaml:"calibrate"` // measure offsets at startup
	Gravity   string `yaml:"gravity"`   // axis holding 1 g at rest, or "free"
}

type Display struct {
	Enabled bool `yaml:"enabled"`
	Bus     int  `yaml:"bus"`
	Address int  `yaml:"address"`
}

type Monitor struct {
	TriggerGal    float64 `yaml:"trigger_gal"`
	ExitIntensity float64 `yaml:"exit_intensity"`
	MinEvent      string  `yaml:"min_event"`
	MaxEvent      string  `yaml:"max_event"`
	Hold          string  `yaml:"hold"`
	RecordDir     string  `yaml:"record_dir"` // empty disables event records
}

func (m *Monitor) GetMinEvent() time.Duration {
	return parseDuration(m.MinEvent, 30*time.Second)
}

func (m *Monitor) GetMaxEvent() time.Duration {
	return parseDuration(m.MaxEvent, 300*time.Second)
}

func (m *Monitor) GetHold() time.Duration {
	return parseDuration(m.Hold, 15*time.Second)
}

type Telemetry struct {
	Transport string `yaml:"transport"` // "mqtt", "nats" or empty for none
	Broker    string `yaml:"broker"`
	ClientID  string `yaml:"client_id"`
	Topic     string `yaml:"topic"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
	File   string `yaml:"file"`   // empty logs to stdout only
}

// Default returns the configuration the meter runs with when no file
// is given: 100 Hz sampling, 3 s windows evaluated every second, the
// MPU6050 and SSD1306 on I2C bus 1 at their stock addresses.
func Default() Config {
	return Config{
		Sampling: Sampling{
			Period:   "10ms",
			Window:   "3s",
			Evaluate: "1s",
			Target:   "300ms",
			MinFill:  0.8,
		},
		Sensor: Sensor{
			Bus:       1,
			Address:   0x68,
			DLPF:      2,
			Calibrate: true,
			Gravity:   "free",
		},
		Display: Display{
			Enabled: true,
			Bus:     1,
			Address: 0x3C,
		},
		Monitor: Monitor{
			TriggerGal:    15,
			ExitIntensity: 2.0,
			MinEvent:      "30s",
			MaxEvent:      "300s",
			Hold:          "15s",
			RecordDir:     "records",
		},
		Telemetry: Telemetry{
			ClientID: "seismo-pi",
			Topic:    "home-iot/seismo-pi/seismo",
		},
		Log: Log{
			Level:  "info",
			Format: "text",
			File:   "seismo.log",
		},
	}
}

// Load builds the configuration from the defaults, the YAML file at
// path when one is given, and finally the SEISMO_* environment
// variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Log.Level = getEnv("SEISMO_LOG_LEVEL", c.Log.Level)
	c.Monitor.RecordDir = getEnv("SEISMO_RECORD_DIR", c.Monitor.RecordDir)
	c.Telemetry.Transport = getEnv("SEISMO_TELEMETRY_TRANSPORT", c.Telemetry.Transport)
	c.Telemetry.Broker = getEnv("SEISMO_TELEMETRY_BROKER", c.Telemetry.Broker)
	c.Telemetry.Username = getEnv("SEISMO_TELEMETRY_USERNAME", c.Telemetry.Username)
	c.Telemetry.Password = getEnv("SEISMO_TELEMETRY_PASSWORD", c.Telemetry.Password)
}

func (c *Config) validate() error {
	if c.Sampling.MinFill < 0 || c.Sampling.MinFill > 1 {
		return fmt.Errorf("config: min_fill %g outside 0..1", c.Sampling.MinFill)
	}
	if c.Sampling.GetWindow() < c.Sampling.GetPeriod() {
		return fmt.Errorf(
			"config: window %s shorter than period %s",
			c.Sampling.GetWindow(), c.Sampling.GetPeriod(),
		)
	}
	if c.Sensor.DLPF < 0 || c.Sensor.DLPF > 6 {
		return fmt.Errorf("config: dlpf %d outside 0..6", c.Sensor.DLPF)
	}
	switch c.Telemetry.Transport {
	case "", "mqtt", "nats":
	default:
		return fmt.Errorf("config: unknown telemetry transport %q", c.Telemetry.Transport)
	}
	return nil
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
