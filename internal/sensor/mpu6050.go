package sensor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ichigozero/home-iot/rpi/mpu6050/go/internal/seismometer"
	"gobot.io/x/gobot"
	"gobot.io/x/gobot/drivers/i2c"
)

const mpu6050DefaultAddress = 0x68

const (
	regConfig    = 0x1A
	regAccelXOut = 0x3B
	regPwrMgmt1  = 0x6B

	sleepBit = 0x40
)

const lsbPerG = 16384.0 // +-2 g full scale
const gal = 980.665     // cm/s^2 per g

const calibrationReads = 50
const calibrationInterval = 5 * time.Millisecond

var _ gobot.Driver = (*MPU6050)(nil)
var _ seismometer.Source = (*MPU6050)(nil)

// MPU6050 drives the accelerometer half of the InvenSense MPU-6050 over
// I2C. Readings come back in gal with the offsets from Calibrate
// applied.
type MPU6050 struct {
	name      string
	connector i2c.Connector
	i2c.Config

	dlpf int

	mu         sync.Mutex
	connection i2c.Connection
	offset     [3]float64 // raw counts subtracted per axis
}

// NewMPU6050 returns a driver for the given adaptor. It accepts the
// usual i2c options plus WithDLPF.
func NewMPU6050(a i2c.Connector, options ...func(i2c.Config)) *MPU6050 {
	d := &MPU6050{
		name:      gobot.DefaultName("MPU6050"),
		connector: a,
		Config:    i2c.NewConfig(),
		dlpf:      -1,
	}

	for _, option := range options {
		option(d)
	}

	return d
}

// WithDLPF makes Start program the digital low-pass filter mode, 0
// (260 Hz bandwidth) through 6 (5 Hz).
func WithDLPF(mode int) func(i2c.Config) {
	return func(c i2c.Config) {
		if d, ok := c.(*MPU6050); ok {
			d.dlpf = mode
		}
	}
}

func (d *MPU6050) Name() string {
	return d.name
}

func (d *MPU6050) SetName(n string) {
	d.name = n
}

func (d *MPU6050) Connection() gobot.Connection {
	return d.connector.(gobot.Connection)
}

// Start opens the bus connection, wakes the device out of sleep and
// applies the configured low-pass filter.
func (d *MPU6050) Start() error {
	bus := d.GetBusOrDefault(d.connector.GetDefaultBus())
	address := d.GetAddressOrDefault(mpu6050DefaultAddress)

	connection, err := d.connector.GetConnection(address, bus)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.connection = connection
	d.mu.Unlock()

	if err := d.wake(); err != nil {
		return fmt.Errorf("mpu6050 wakeup: %w", err)
	}

	if d.dlpf >= 0 {
		if err := d.SetDLPF(d.dlpf); err != nil {
			return err
		}
	}

	return nil
}

func (d *MPU6050) Halt() error {
	return nil
}

// SetDLPF programs the digital low-pass filter. Called before Start it
// only records the mode for Start to apply.
func (d *MPU6050) SetDLPF(mode int) error {
	if mode < 0 || mode > 6 {
		return fmt.Errorf("mpu6050: dlpf mode %d out of range 0..6", mode)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.dlpf = mode
	if d.connection == nil {
		return nil
	}

	val, err := d.connection.ReadByteData(regConfig)
	if err != nil {
		return err
	}

	return d.connection.WriteByteData(regConfig, val&0xF8|byte(mode))
}

// Calibrate measures the per-axis offsets from a run of readings taken
// at rest. The gravity option names where the 1 g of gravity sits so it
// survives the offsets: "z+" for a board lying flat, "x-" for one
// standing on its nose, and so on. "free" folds gravity into the
// offsets as well, which is what the seismometer wants, the axes then
// rest at zero.
func (d *MPU6050) Calibrate(gravity string) error {
	var sum [3]float64

	for i := 0; i < calibrationReads; i++ {
		x, y, z, err := d.readRaw()
		if err != nil {
			return fmt.Errorf("mpu6050 calibration: %w", err)
		}
		sum[0] += float64(x)
		sum[1] += float64(y)
		sum[2] += float64(z)
		time.Sleep(calibrationInterval)
	}

	var offset [3]float64
	for i := range offset {
		offset[i] = sum[i] / calibrationReads
	}

	switch gravity {
	case "free":
	case "x+":
		offset[0] -= lsbPerG
	case "x-":
		offset[0] += lsbPerG
	case "y+":
		offset[1] -= lsbPerG
	case "y-":
		offset[1] += lsbPerG
	case "z+":
		offset[2] -= lsbPerG
	case "z-":
		offset[2] += lsbPerG
	default:
		return fmt.Errorf("mpu6050: unknown gravity option %q", gravity)
	}

	d.mu.Lock()
	d.offset = offset
	d.mu.Unlock()

	return nil
}

// ReadVector takes one acceleration sample in gal.
func (d *MPU6050) ReadVector() (seismometer.Vector, error) {
	x, y, z, err := d.readRaw()
	if err != nil {
		return seismometer.Vector{}, err
	}

	d.mu.Lock()
	offset := d.offset
	d.mu.Unlock()

	return seismometer.Vector{
		X: (float64(x) - offset[0]) / lsbPerG * gal,
		Y: (float64(y) - offset[1]) / lsbPerG * gal,
		Z: (float64(z) - offset[2]) / lsbPerG * gal,
	}, nil
}

// Read takes one sample under the context deadline. When the deadline
// wins, the wait is abandoned with ErrSensorTimeout while the bus
// transaction finishes in the background, so the device never sits in a
// half-done exchange.
func (d *MPU6050) Read(ctx context.Context) (seismometer.Vector, error) {
	type reading struct {
		v   seismometer.Vector
		err error
	}

	ch := make(chan reading, 1)
	go func() {
		v, err := d.ReadVector()
		ch <- reading{v: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		return seismometer.Vector{}, fmt.Errorf("mpu6050: %w", seismometer.ErrSensorTimeout)
	}
}

// readRaw reads the six accelerometer registers in one exchange. The
// lock keeps the register select and the block read paired on the bus.
func (d *MPU6050) readRaw() (x, y, z int16, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connection == nil {
		return 0, 0, 0, fmt.Errorf("mpu6050: not started")
	}

	if _, err = d.connection.Write([]byte{regAccelXOut}); err != nil {
		return
	}

	buf := make([]byte, 6)
	n, err := d.connection.Read(buf)
	if err != nil {
		return
	}
	if n != len(buf) {
		err = fmt.Errorf("mpu6050: short read of %d bytes", n)
		return
	}

	x = int16(uint16(buf[0])<<8 | uint16(buf[1]))
	y = int16(uint16(buf[2])<<8 | uint16(buf[3]))
	z = int16(uint16(buf[4])<<8 | uint16(buf[5]))
	return
}

func (d *MPU6050) wake() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	val, err := d.connection.ReadByteData(regPwrMgmt1)
	if err != nil {
		return err
	}

	return d.connection.WriteByteData(regPwrMgmt1, val&^byte(sleepBit))
}
