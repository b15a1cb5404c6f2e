// Package config defines the persisted device configuration for the
// navigation display. The struct is fixed-size for zero-allocation binary
// serialization and is stored by package storage.
package config

import (
	"encoding/binary"
	"errors"
	"io"
	"time"
)

// CurrentVersion is the config format version.
// Bump this when making breaking changes to the config format.
// When firmware boots and finds a different version in flash, the config is wiped.
const CurrentVersion uint16 = 1

// DeviceConfigSize is the encoded size of DeviceConfig.
const DeviceConfigSize = 30

// Variant selects the display hardware and its fixed layout.
type Variant uint8

const (
	VariantOLED128 Variant = iota // 128x128 monochrome OLED, scrolling text
	VariantTFT240                 // 240x320 ST7789 TFT, wrapped text
)

func (v Variant) String() string {
	switch v {
	case VariantOLED128:
		return "oled128"
	case VariantTFT240:
		return "tft240"
	default:
		return "unknown"
	}
}

// Codec selects how bitmap payload bytes are turned into pixels.
type Codec uint8

const (
	CodecMono   Codec = iota // 1bpp, one span per run
	CodecScaled              // 1bpp, each pixel drawn as a Scale x Scale box
	CodecRGB                 // 3 bytes per pixel
)

func (c Codec) String() string {
	switch c {
	case CodecMono:
		return "mono"
	case CodecScaled:
		return "scaled"
	case CodecRGB:
		return "rgb"
	default:
		return "unknown"
	}
}

// Packing selects the 1bpp row layout.
type Packing uint8

const (
	PackingRowAligned Packing = iota // each row starts on a byte boundary
	PackingBitstream                 // rows follow each other bit by bit
)

func (p Packing) String() string {
	switch p {
	case PackingRowAligned:
		return "rows"
	case PackingBitstream:
		return "bitstream"
	default:
		return "unknown"
	}
}

// DeviceConfig holds the global device settings.
// Total size: 30 bytes
// Layout:
//
//	[0-1]:   Version (uint16)
//	[2]:     Variant (uint8)
//	[3]:     Codec (uint8)
//	[4]:     Packing (uint8)
//	[5]:     Scale (uint8)
//	[6]:     Brightness (uint8)
//	[7]:     Reserved (uint8)
//	[8-9]:   ScrollPauseMs (uint16)
//	[10-11]: ScrollCycleMs (uint16)
//	[12-13]: ScrollTickMs (uint16)
//	[14-29]: Name ([16]byte)
type DeviceConfig struct {
	Version       uint16   // Config format version
	Variant       Variant  // Display hardware
	Codec         Codec    // Bitmap pixel codec
	Packing       Packing  // 1bpp row layout
	Scale         uint8    // Box size for CodecScaled
	Brightness    uint8    // Backlight / contrast 0-255
	Reserved      uint8    // Padding
	ScrollPauseMs uint16   // Marquee pause before motion starts
	ScrollCycleMs uint16   // Marquee period
	ScrollTickMs  uint16   // Redraw interval while a marquee is active
	Name          [16]byte // BLE local name (null-terminated if shorter)
}

// Errors
var (
	ErrInvalidSize   = errors.New("invalid config size")
	ErrInvalidConfig = errors.New("invalid config value")
)

// Default returns the configuration used on first boot.
func Default() DeviceConfig {
	cfg := DeviceConfig{
		Version:       CurrentVersion,
		Variant:       VariantOLED128,
		Codec:         CodecMono,
		Packing:       PackingRowAligned,
		Scale:         1,
		Brightness:    255,
		ScrollPauseMs: 500,
		ScrollCycleMs: 8000,
		ScrollTickMs:  100,
	}
	cfg.SetName("WeNav_OLED")
	return cfg
}

// Validate checks that every field holds a usable value.
func (d *DeviceConfig) Validate() error {
	if d.Variant > VariantTFT240 {
		return ErrInvalidConfig
	}
	if d.Codec > CodecRGB {
		return ErrInvalidConfig
	}
	if d.Packing > PackingBitstream {
		return ErrInvalidConfig
	}
	if d.Scale < 1 || d.Scale > 4 {
		return ErrInvalidConfig
	}
	if d.ScrollCycleMs == 0 || d.ScrollTickMs == 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ScrollPause returns the marquee pause as a duration.
func (d *DeviceConfig) ScrollPause() time.Duration {
	return time.Duration(d.ScrollPauseMs) * time.Millisecond
}

// ScrollCycle returns the marquee period as a duration.
func (d *DeviceConfig) ScrollCycle() time.Duration {
	return time.Duration(d.ScrollCycleMs) * time.Millisecond
}

// ScrollTick returns the forced redraw interval while scrolling.
func (d *DeviceConfig) ScrollTick() time.Duration {
	return time.Duration(d.ScrollTickMs) * time.Millisecond
}

// MarshalBinary implements encoding.BinaryMarshaler for DeviceConfig.
func (d *DeviceConfig) MarshalBinary() ([]byte, error) {
	buf := make([]byte, DeviceConfigSize)
	binary.LittleEndian.PutUint16(buf[0:], d.Version)
	buf[2] = uint8(d.Variant)
	buf[3] = uint8(d.Codec)
	buf[4] = uint8(d.Packing)
	buf[5] = d.Scale
	buf[6] = d.Brightness
	buf[7] = d.Reserved
	binary.LittleEndian.PutUint16(buf[8:], d.ScrollPauseMs)
	binary.LittleEndian.PutUint16(buf[10:], d.ScrollCycleMs)
	binary.LittleEndian.PutUint16(buf[12:], d.ScrollTickMs)
	copy(buf[14:30], d.Name[:])
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for DeviceConfig.
func (d *DeviceConfig) UnmarshalBinary(data []byte) error {
	if len(data) < DeviceConfigSize {
		return ErrInvalidSize
	}

	d.Version = binary.LittleEndian.Uint16(data[0:])
	d.Variant = Variant(data[2])
	d.Codec = Codec(data[3])
	d.Packing = Packing(data[4])
	d.Scale = data[5]
	d.Brightness = data[6]
	d.Reserved = data[7]
	d.ScrollPauseMs = binary.LittleEndian.Uint16(data[8:])
	d.ScrollCycleMs = binary.LittleEndian.Uint16(data[10:])
	d.ScrollTickMs = binary.LittleEndian.Uint16(data[12:])
	copy(d.Name[:], data[14:30])
	return nil
}

// Marshal writes the DeviceConfig to w in binary format.
func (d *DeviceConfig) Marshal(w io.Writer) (int, error) {
	buf, _ := d.MarshalBinary()
	return w.Write(buf)
}

// Unmarshal reads the DeviceConfig from r in binary format.
func (d *DeviceConfig) Unmarshal(r io.Reader) error {
	buf := make([]byte, DeviceConfigSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	return d.UnmarshalBinary(buf)
}

// GetName returns the BLE name as a string (up to null terminator).
func (d *DeviceConfig) GetName() string {
	for i, b := range d.Name {
		if b == 0 {
			return string(d.Name[:i])
		}
	}
	return string(d.Name[:])
}

// SetName sets the BLE name from a string.
// If the name is longer than 15 bytes, it is truncated.
// The name is always null-terminated.
func (d *DeviceConfig) SetName(name string) {
	b := []byte(name)
	if len(b) > 15 {
		b = b[:15]
	}
	d.Name = [16]byte{}
	copy(d.Name[:], b)
}
