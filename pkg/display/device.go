//go:build tinygo

package display

import (
	"errors"
	"fmt"
	"machine"
	"time"

	"tinygo.org/x/drivers/sh1106"
	"tinygo.org/x/drivers/st7789"

	"github.com/tuffrabit/tinygo-navdisplay/pkg/config"
)

const (
	// OLED I2C configuration
	oledAddress = 0x3C
	oledWidth   = 128
	oledHeight  = 128

	// TFT SPI configuration
	tftWidth  = 240
	tftHeight = 320
	tftCS     = machine.Pin(5)
	tftRST    = machine.Pin(22)
	tftDC     = machine.Pin(21)
	tftSDO    = machine.Pin(23)
	tftSCK    = machine.Pin(18)
	tftSDI    = machine.Pin(19)
	tftLED    = machine.Pin(4)
)

var ErrUnknownVariant = errors.New("unknown display variant")

// New initializes the display hardware selected by cfg.Variant and applies
// cfg.Brightness.
func New(cfg config.DeviceConfig) (*Panel, error) {
	var (
		p   *Panel
		err error
	)
	switch cfg.Variant {
	case config.VariantOLED128:
		p, err = NewOLED()
	case config.VariantTFT240:
		p, err = NewTFT()
	default:
		return nil, ErrUnknownVariant
	}
	if err != nil {
		return nil, err
	}
	if err := p.SetBrightness(cfg.Brightness); err != nil {
		return nil, fmt.Errorf("brightness: %w", err)
	}
	return p, nil
}

// NewOLED brings up the 128x128 OLED on I2C0.
func NewOLED() (*Panel, error) {
	i2c := machine.I2C0
	if err := i2c.Configure(machine.I2CConfig{
		Frequency: 400000, // 400kHz fast mode
		SCL:       machine.SCL_PIN,
		SDA:       machine.SDA_PIN,
	}); err != nil {
		return nil, fmt.Errorf("i2c config: %w", err)
	}

	// Small delay for bus stabilization
	time.Sleep(10 * time.Millisecond)

	dev := sh1106.NewI2C(i2c)
	dev.Configure(sh1106.Config{
		Address: oledAddress,
		Width:   oledWidth,
		Height:  oledHeight,
	})
	dev.ClearDisplay()

	return NewPanel(&oled{Device: &dev}), nil
}

// NewTFT brings up the 240x320 ST7789 on SPI0 and turns on the backlight.
func NewTFT() (*Panel, error) {
	spi := machine.SPI0
	if err := spi.Configure(machine.SPIConfig{
		Frequency: 40000000,
		SCK:       tftSCK,
		SDO:       tftSDO,
		SDI:       tftSDI,
		Mode:      0,
	}); err != nil {
		return nil, fmt.Errorf("spi config: %w", err)
	}

	dev := st7789.New(spi, tftRST, tftDC, tftCS, tftLED)
	dev.Configure(st7789.Config{
		Width:    tftWidth,
		Height:   tftHeight,
		Rotation: st7789.NO_ROTATION,
	})
	dev.EnableBacklight(true)
	dev.FillScreen(Black)

	return NewPanel(&tft{Device: &dev}), nil
}

// sh1106 contrast control
const cmdSetContrast = 0x81

// oled adds contrast control to the sh1106 driver.
type oled struct {
	*sh1106.Device
}

// SetBrightness sets the panel contrast.
func (o *oled) SetBrightness(level uint8) error {
	o.Command(cmdSetContrast)
	o.Command(level)
	return nil
}

// tft switches the st7789 backlight. The LED pin is a plain GPIO, so any
// non-zero level means on.
type tft struct {
	*st7789.Device
}

// SetBrightness turns the backlight off at level 0 and on otherwise.
func (t *tft) SetBrightness(level uint8) error {
	t.EnableBacklight(level > 0)
	return nil
}
