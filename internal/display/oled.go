package display

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/ichigozero/home-iot/rpi/mpu6050/go/internal/monitor"
	"gobot.io/x/gobot/drivers/i2c"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const oledWidth = 128
const oledHeight = 64
const lineHeight = 15 // Face7x13 plus a little air

var _ monitor.Display = (*OLED)(nil)

// OLED renders the seismometer screens on an SSD1306 panel.
type OLED struct {
	driver *i2c.SSD1306Driver
}

// NewOLED wraps an SSD1306 on the given adaptor. Pass the usual i2c
// options to move it off the default bus or address.
func NewOLED(a i2c.Connector, options ...func(i2c.Config)) *OLED {
	return &OLED{driver: i2c.NewSSD1306Driver(a, options...)}
}

// Driver exposes the panel for robot registration.
func (o *OLED) Driver() *i2c.SSD1306Driver {
	return o.driver
}

func (o *OLED) ShowWaiting(now time.Time) error {
	return o.render(
		"Seismo Pi",
		"Waiting for quake",
		now.Format("2006-01-02"),
		now.Format("15:04:05"),
	)
}

func (o *OLED) ShowActive(v monitor.EventView) error {
	current := "-"
	if v.HasCurrent {
		current = fmt.Sprintf("%s (%.1f)", v.Current, v.CurrentValue)
	}

	max := "-"
	if v.HasMax {
		max = fmt.Sprintf("%s (%.1f)", v.Max, v.MaxValue)
	}

	return o.render(
		"!! EARTHQUAKE !!",
		"Now "+current,
		"Max "+max,
		fmt.Sprintf("%.0f gal  %ds", v.PeakGal, int(v.Elapsed.Seconds())),
	)
}

func (o *OLED) ShowEnded(v monitor.EventView) error {
	max := "-"
	if v.HasMax {
		max = fmt.Sprintf("%s (%.1f)", v.Max, v.MaxValue)
	}

	return o.render(
		"Quake ended",
		"Max "+max,
		fmt.Sprintf("Peak %.1f gal", v.PeakGal),
		fmt.Sprintf("Lasted %ds", int(v.Elapsed.Seconds())),
	)
}

func (o *OLED) render(lines ...string) error {
	return o.driver.ShowImage(renderLines(lines))
}

// renderLines draws up to four lines of text into a panel-sized frame.
func renderLines(lines []string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, oledWidth, oledHeight))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
	}

	y := lineHeight - 2
	for _, line := range lines {
		drawer.Dot = fixed.P(0, y)
		drawer.DrawString(line)
		y += lineHeight
	}

	return img
}
