// Package display is the drawing capability the compositor renders into.
// Canvas adds span, rectangle and clip operations to drivers.Displayer so
// that any TinyGo display driver (or the in-memory Framebuffer) can serve as
// the target. Clipping is applied here, not in the drivers.
package display

import (
	"image/color"

	"tinygo.org/x/drivers"
)

// Colors used by the layouts. Monochrome panels treat anything non-black as on.
var (
	Black = color.RGBA{0, 0, 0, 255}
	White = color.RGBA{255, 255, 255, 255}
	Green = color.RGBA{0, 255, 0, 255}
	Red   = color.RGBA{255, 0, 0, 255}
)

// Canvas is the display capability consumed by the bitmap compositor, the
// text layout engine and the session.
type Canvas interface {
	drivers.Displayer

	// DrawHLine draws a horizontal run of length pixels starting at x.
	DrawHLine(x, y, length int16, c color.RGBA)

	// FillRect fills a w by h rectangle.
	FillRect(x, y, w, h int16, c color.RGBA)

	// SetClip restricts all subsequent drawing to r.
	SetClip(r Rect)

	// ClearClip restores the full-screen clip.
	ClearClip()
}

// Dimmer is implemented by displays whose brightness can be set. Level 0 is
// darkest and 255 brightest.
type Dimmer interface {
	SetBrightness(level uint8) error
}

// Rect is an axis-aligned rectangle. W and H are sizes, not corners.
type Rect struct {
	X, Y, W, H int16
}

// Empty reports whether r covers no pixels.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Contains reports whether (x, y) lies inside r.
func (r Rect) Contains(x, y int16) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// Intersect returns the overlap of r and o. The result may be Empty.
func (r Rect) Intersect(o Rect) Rect {
	x0 := max(r.X, o.X)
	y0 := max(r.Y, o.Y)
	x1 := min(r.X+r.W, o.X+o.W)
	y1 := min(r.Y+r.H, o.Y+o.H)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}
