package sensor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ichigozero/home-iot/rpi/mpu6050/go/internal/seismometer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gobot.io/x/gobot/drivers/i2c"
)

// fakeConnection is an in-memory register file behind the i2c.Connection
// interface.
type fakeConnection struct {
	mu        sync.Mutex
	regs      map[uint8]byte
	pointer   uint8
	readDelay time.Duration
}

func newFakeConnection() *fakeConnection {
	return &fakeConnection{regs: map[uint8]byte{}}
}

func (c *fakeConnection) setAccel(x, y, z int16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	words := []int16{x, y, z}
	for i, w := range words {
		c.regs[uint8(0x3B+2*i)] = byte(uint16(w) >> 8)
		c.regs[uint8(0x3C+2*i)] = byte(uint16(w))
	}
}

func (c *fakeConnection) Read(p []byte) (int, error) {
	if c.readDelay > 0 {
		time.Sleep(c.readDelay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range p {
		p[i] = c.regs[c.pointer+uint8(i)]
	}
	return len(p), nil
}

func (c *fakeConnection) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(p) > 0 {
		c.pointer = p[0]
	}
	for i := 1; i < len(p); i++ {
		c.regs[c.pointer+uint8(i-1)] = p[i]
	}
	return len(p), nil
}

func (c *fakeConnection) Close() error { return nil }

func (c *fakeConnection) ReadByte() (byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs[c.pointer], nil
}

func (c *fakeConnection) ReadByteData(reg uint8) (byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs[reg], nil
}

func (c *fakeConnection) ReadWordData(reg uint8) (uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint16(c.regs[reg]) | uint16(c.regs[reg+1])<<8, nil
}

func (c *fakeConnection) WriteByte(val byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pointer = val
	return nil
}

func (c *fakeConnection) WriteByteData(reg uint8, val byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regs[reg] = val
	return nil
}

func (c *fakeConnection) WriteWordData(reg uint8, val uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regs[reg] = byte(val)
	c.regs[reg+1] = byte(val >> 8)
	return nil
}

func (c *fakeConnection) WriteBlockData(reg uint8, b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, v := range b {
		c.regs[reg+uint8(i)] = v
	}
	return nil
}

// fakeAdaptor hands out one fakeConnection and records what was asked
// for.
type fakeAdaptor struct {
	conn    *fakeConnection
	address int
	bus     int
}

func (a *fakeAdaptor) GetConnection(address, bus int) (i2c.Connection, error) {
	a.address = address
	a.bus = bus
	return a.conn, nil
}

func (a *fakeAdaptor) GetDefaultBus() int { return 1 }

func newTestDriver(t *testing.T, options ...func(i2c.Config)) (*MPU6050, *fakeAdaptor) {
	t.Helper()
	a := &fakeAdaptor{conn: newFakeConnection()}
	a.conn.regs[regPwrMgmt1] = sleepBit // fresh silicon boots asleep
	d := NewMPU6050(a, options...)
	return d, a
}

func TestStartWakesAndConfigures(t *testing.T) {
	d, a := newTestDriver(t, WithDLPF(2))

	require.NoError(t, d.Start())

	assert.Equal(t, mpu6050DefaultAddress, a.address)
	assert.Equal(t, 1, a.bus)
	assert.Equal(t, byte(0), a.conn.regs[regPwrMgmt1]&sleepBit)
	assert.Equal(t, byte(2), a.conn.regs[regConfig]&0x07)
}

func TestStartHonoursBusAndAddressOptions(t *testing.T) {
	d, a := newTestDriver(t, i2c.WithBus(3), i2c.WithAddress(0x69))

	require.NoError(t, d.Start())

	assert.Equal(t, 0x69, a.address)
	assert.Equal(t, 3, a.bus)
}

func TestSetDLPFRange(t *testing.T) {
	d, _ := newTestDriver(t)

	require.NoError(t, d.Start())

	assert.Error(t, d.SetDLPF(-1))
	assert.Error(t, d.SetDLPF(7))
	assert.NoError(t, d.SetDLPF(6))
}

func TestReadVectorConvertsToGal(t *testing.T) {
	d, a := newTestDriver(t)
	require.NoError(t, d.Start())

	a.conn.setAccel(16384, -8192, 0)

	v, err := d.ReadVector()
	require.NoError(t, err)

	assert.InDelta(t, 980.665, v.X, 1e-9)
	assert.InDelta(t, -490.3325, v.Y, 1e-9)
	assert.InDelta(t, 0, v.Z, 1e-9)
}

func TestCalibrateZeroesRestingAxes(t *testing.T) {
	d, a := newTestDriver(t)
	require.NoError(t, d.Start())

	// Lying flat: small electrical offsets plus gravity on Z.
	a.conn.setAccel(100, -50, 16404)

	require.NoError(t, d.Calibrate("z+"))

	v, err := d.ReadVector()
	require.NoError(t, err)

	assert.InDelta(t, 0, v.X, 1e-9)
	assert.InDelta(t, 0, v.Y, 1e-9)
	assert.InDelta(t, 980.665, v.Z, 1e-9)
}

func TestCalibrateFreeRemovesEverything(t *testing.T) {
	d, a := newTestDriver(t)
	require.NoError(t, d.Start())

	a.conn.setAccel(100, -50, 16404)

	require.NoError(t, d.Calibrate("free"))

	v, err := d.ReadVector()
	require.NoError(t, err)

	assert.InDelta(t, 0, v.Magnitude(), 1e-9)
}

func TestCalibrateRejectsUnknownOption(t *testing.T) {
	d, _ := newTestDriver(t)
	require.NoError(t, d.Start())

	assert.Error(t, d.Calibrate("sideways"))
}

func TestReadHonoursDeadline(t *testing.T) {
	d, a := newTestDriver(t)
	require.NoError(t, d.Start())

	a.conn.readDelay = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := d.Read(ctx)

	assert.ErrorIs(t, err, seismometer.ErrSensorTimeout)
	assert.Less(t, time.Since(start), 40*time.Millisecond)
}

func TestReadBeforeStart(t *testing.T) {
	d, _ := newTestDriver(t)

	_, err := d.ReadVector()

	assert.Error(t, err)
}
