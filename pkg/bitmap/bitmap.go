// Package bitmap draws navigation bitmaps onto a display.Canvas.
//
// Payloads are not self-describing: width, height and pixel encoding come
// from configuration. Three codecs exist:
//
//	Mono:   1 bit per pixel, MSB first, one DrawHLine per run of equal pixels
//	Scaled: 1 bit per pixel, each set pixel drawn as a Scale x Scale box
//	RGB:    3 bytes per pixel (R, G, B), one SetPixel per pixel
//
// Every codec rejects a draw whose size exceeds its maximum or whose payload
// is too short, and draws nothing in that case.
package bitmap

import (
	"errors"
	"image/color"

	"github.com/tuffrabit/tinygo-navdisplay/pkg/config"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/display"
)

var (
	ErrTooLarge     = errors.New("bitmap exceeds maximum dimensions")
	ErrShortPayload = errors.New("bitmap payload too short")
)

// Codec decodes a payload of w x h pixels and draws it with its top-left
// corner at (x, y).
type Codec interface {
	Draw(c display.Canvas, x, y int16, data []byte, w, h int16) error
}

// Limits bounds the dimensions a codec accepts.
type Limits struct {
	MaxWidth  int16
	MaxHeight int16
}

func (l Limits) check(w, h int16) error {
	if w <= 0 || h <= 0 || w > l.MaxWidth || h > l.MaxHeight {
		return ErrTooLarge
	}
	return nil
}

// New builds the codec selected by cfg.
func New(cfg config.DeviceConfig, limits Limits, fg, bg color.RGBA) Codec {
	switch cfg.Codec {
	case config.CodecScaled:
		return &Scaled{Limits: limits, Packing: cfg.Packing, Scale: int16(cfg.Scale), Foreground: fg, Background: bg}
	case config.CodecRGB:
		return &RGB{Limits: limits}
	default:
		return &Mono{Limits: limits, Packing: cfg.Packing, Foreground: fg, Background: bg}
	}
}

// Stride returns the number of payload bytes per row for row-aligned data.
func Stride(w int16) int {
	return (int(w) + 7) / 8
}

// PayloadSize returns the number of bytes a w x h 1bpp bitmap occupies.
func PayloadSize(p config.Packing, w, h int16) int {
	if p == config.PackingBitstream {
		return (int(w)*int(h) + 7) / 8
	}
	return Stride(w) * int(h)
}

// bit reports whether the pixel at (col, row) is set.
func bit(data []byte, p config.Packing, w, col, row int16) bool {
	var index, offset int
	if p == config.PackingBitstream {
		pixel := int(row)*int(w) + int(col)
		index = pixel / 8
		offset = pixel % 8
	} else {
		index = int(row)*Stride(w) + int(col)/8
		offset = int(col) % 8
	}
	return data[index]&(0x80>>uint(offset)) != 0
}

// ForEachSpan calls fn once for every maximal run of equal pixels, row by
// row, left to right. A run closes on a value change and at the end of a row.
// The payload must hold PayloadSize bytes.
func ForEachSpan(data []byte, p config.Packing, w, h int16, fn func(row, start, length int16, on bool)) {
	for row := int16(0); row < h; row++ {
		start := int16(0)
		current := bit(data, p, w, 0, row)
		for col := int16(1); col < w; col++ {
			v := bit(data, p, w, col, row)
			if v != current {
				fn(row, start, col-start, current)
				start = col
				current = v
			}
		}
		fn(row, start, w-start, current)
	}
}

// CountSet counts set pixels by direct bit iteration.
func CountSet(data []byte, p config.Packing, w, h int16) int {
	n := 0
	for row := int16(0); row < h; row++ {
		for col := int16(0); col < w; col++ {
			if bit(data, p, w, col, row) {
				n++
			}
		}
	}
	return n
}

// Mono draws 1bpp bitmaps as horizontal spans.
type Mono struct {
	Limits
	Packing    config.Packing
	Foreground color.RGBA
	Background color.RGBA
}

// Draw implements Codec.
func (m *Mono) Draw(c display.Canvas, x, y int16, data []byte, w, h int16) error {
	if err := m.check(w, h); err != nil {
		return err
	}
	if len(data) < PayloadSize(m.Packing, w, h) {
		return ErrShortPayload
	}

	ForEachSpan(data, m.Packing, w, h, func(row, start, length int16, on bool) {
		col := m.Background
		if on {
			col = m.Foreground
		}
		c.DrawHLine(x+start, y+row, length, col)
	})
	return nil
}

// Scaled draws each set pixel of a 1bpp bitmap as a Scale x Scale box.
// Unset pixels are left untouched unless Background is opaque, in which case
// the whole scaled area is cleared first.
type Scaled struct {
	Limits
	Packing    config.Packing
	Scale      int16
	Foreground color.RGBA
	Background color.RGBA
}

// Draw implements Codec. Limits apply to the scaled size.
func (s *Scaled) Draw(c display.Canvas, x, y int16, data []byte, w, h int16) error {
	scale := s.Scale
	if scale < 1 {
		scale = 1
	}
	if err := s.check(w*scale, h*scale); err != nil {
		return err
	}
	if len(data) < PayloadSize(s.Packing, w, h) {
		return ErrShortPayload
	}

	if s.Background.A != 0 {
		c.FillRect(x, y, w*scale, h*scale, s.Background)
	}
	for row := int16(0); row < h; row++ {
		for col := int16(0); col < w; col++ {
			if bit(data, s.Packing, w, col, row) {
				c.FillRect(x+col*scale, y+row*scale, scale, scale, s.Foreground)
			}
		}
	}
	return nil
}

// RGB draws 3-byte-per-pixel bitmaps pixel by pixel.
type RGB struct {
	Limits
}

// Draw implements Codec.
func (r *RGB) Draw(c display.Canvas, x, y int16, data []byte, w, h int16) error {
	if err := r.check(w, h); err != nil {
		return err
	}
	if len(data) < int(w)*int(h)*3 {
		return ErrShortPayload
	}

	i := 0
	for row := int16(0); row < h; row++ {
		for col := int16(0); col < w; col++ {
			c.SetPixel(x+col, y+row, color.RGBA{R: data[i], G: data[i+1], B: data[i+2], A: 255})
			i += 3
		}
	}
	return nil
}
