package display

import (
	"errors"
	"image/color"
)

var errOutOfRange = errors.New("rectangle out of range")

// Framebuffer is an in-memory drivers.Displayer used by the host simulator
// and by tests. It counts driver calls so draw-call budgets can be checked.
type Framebuffer struct {
	width  int16
	height int16
	pix    []color.RGBA

	Pixels  int // SetPixel calls
	Fills   int // FillRectangle calls
	Flushes int // Display calls

	Brightness uint8 // Last level passed to SetBrightness
}

// NewFramebuffer creates a black framebuffer of the given size.
func NewFramebuffer(width, height int16) *Framebuffer {
	fb := &Framebuffer{
		width:  width,
		height: height,
		pix:    make([]color.RGBA, int(width)*int(height)),

		Brightness: 255,
	}
	fb.Clear(Black)
	return fb
}

// Size returns the framebuffer size.
func (fb *Framebuffer) Size() (x, y int16) {
	return fb.width, fb.height
}

// SetPixel sets one pixel. Out of range coordinates are ignored.
func (fb *Framebuffer) SetPixel(x, y int16, c color.RGBA) {
	fb.Pixels++
	if x < 0 || x >= fb.width || y < 0 || y >= fb.height {
		return
	}
	fb.pix[int(y)*int(fb.width)+int(x)] = c
}

// FillRectangle fills a rectangle that must lie fully on screen.
func (fb *Framebuffer) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	if x < 0 || y < 0 || width <= 0 || height <= 0 || x+width > fb.width || y+height > fb.height {
		return errOutOfRange
	}
	fb.Fills++
	for j := y; j < y+height; j++ {
		row := int(j) * int(fb.width)
		for i := x; i < x+width; i++ {
			fb.pix[row+int(i)] = c
		}
	}
	return nil
}

// SetBrightness records level.
func (fb *Framebuffer) SetBrightness(level uint8) error {
	fb.Brightness = level
	return nil
}

// Display records a flush.
func (fb *Framebuffer) Display() error {
	fb.Flushes++
	return nil
}

// At returns the pixel at (x, y), or black when out of range.
func (fb *Framebuffer) At(x, y int16) color.RGBA {
	if x < 0 || x >= fb.width || y < 0 || y >= fb.height {
		return Black
	}
	return fb.pix[int(y)*int(fb.width)+int(x)]
}

// IsOn reports whether the pixel at (x, y) is lit.
func (fb *Framebuffer) IsOn(x, y int16) bool {
	c := fb.At(x, y)
	return c.R != 0 || c.G != 0 || c.B != 0
}

// Clear fills the whole buffer without counting a draw call.
func (fb *Framebuffer) Clear(c color.RGBA) {
	for i := range fb.pix {
		fb.pix[i] = c
	}
}

// ResetCounters zeroes the call counters.
func (fb *Framebuffer) ResetCounters() {
	fb.Pixels = 0
	fb.Fills = 0
	fb.Flushes = 0
}
