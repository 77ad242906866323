package publisher

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ichigozero/home-iot/rpi/mpu6050/go/internal/seismometer"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Config names the broker a publisher talks to.
type Config struct {
	Transport string // "mqtt" or "nats"
	Broker    string
	ClientID  string
	Topic     string
	Username  string
	Password  string
}

// Transport carries one serialized report to the broker.
type Transport interface {
	Publish(topic string, payload []byte) error
	Close()
}

// Payload is the JSON document published per evaluation cycle.
type Payload struct {
	Time      string   `json:"time"`
	Status    string   `json:"status"`
	Intensity *float64 `json:"intensity,omitempty"`
	Scale     string   `json:"scale,omitempty"`
	AccelGal  *float64 `json:"accel_gal,omitempty"`
	PeakGal   float64  `json:"peak_gal"`
	Gaps      int      `json:"gaps"`
	Fill      float64  `json:"fill"`
	Fault     string   `json:"fault,omitempty"`
}

func newPayload(r seismometer.Report) Payload {
	p := Payload{
		Time:    r.Time.Format(time.RFC3339Nano),
		Status:  r.Status.String(),
		PeakGal: r.PeakGal,
		Gaps:    r.Gaps,
		Fill:    r.Fill,
		Fault:   r.Fault,
	}

	if r.Intensity != nil {
		value := r.Intensity.Rounded()
		accel := r.Intensity.Accel
		p.Intensity = &value
		p.Scale = r.Intensity.Scale()
		p.AccelGal = &accel
	}

	return p
}

var _ seismometer.Sink = (*Publisher)(nil)

// Publisher forwards evaluation reports to a message broker as JSON.
type Publisher struct {
	transport Transport
	topic     string
	log       *logrus.Entry
}

// New connects to the broker named by the config. The caller owns the
// returned publisher and must Close it on shutdown.
func New(cfg Config, log *logrus.Logger) (*Publisher, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	var (
		transport Transport
		err       error
	)

	switch cfg.Transport {
	case "mqtt":
		transport, err = newMQTTTransport(cfg)
	case "nats":
		transport, err = newNATSTransport(cfg)
	default:
		err = fmt.Errorf("publisher: unknown transport %q", cfg.Transport)
	}
	if err != nil {
		return nil, err
	}

	return &Publisher{
		transport: transport,
		topic:     cfg.Topic,
		log:       log.WithField("component", "publisher"),
	}, nil
}

// Report implements seismometer.Sink.
func (p *Publisher) Report(r seismometer.Report) error {
	data, err := json.Marshal(newPayload(r))
	if err != nil {
		return fmt.Errorf("publisher: %w", err)
	}

	if err := p.transport.Publish(p.topic, data); err != nil {
		return fmt.Errorf("publisher: %w", err)
	}

	p.log.WithField("topic", p.topic).Debug("report published")
	return nil
}

func (p *Publisher) Close() {
	p.transport.Close()
}

type mqttTransport struct {
	client mqtt.Client
}

func newMQTTTransport(cfg Config) (*mqttTransport, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	return &mqttTransport{client: client}, nil
}

func (t *mqttTransport) Publish(topic string, payload []byte) error {
	token := t.client.Publish(topic, 0, false, payload)
	token.Wait()
	return token.Error()
}

func (t *mqttTransport) Close() {
	t.client.Disconnect(250)
}

type natsTransport struct {
	conn *nats.Conn
}

func newNATSTransport(cfg Config) (*natsTransport, error) {
	options := []nats.Option{nats.Name(cfg.ClientID)}
	if cfg.Username != "" {
		options = append(options, nats.UserInfo(cfg.Username, cfg.Password))
	}

	conn, err := nats.Connect(cfg.Broker, options...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	return &natsTransport{conn: conn}, nil
}

func (t *natsTransport) Publish(topic string, payload []byte) error {
	return t.conn.Publish(topic, payload)
}

func (t *natsTransport) Close() {
	t.conn.Drain()
}
