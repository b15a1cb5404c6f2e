package display

import (
	"image/color"

	"tinygo.org/x/drivers"
)

// rectFiller is implemented by drivers with a native rectangle fill
// (st7789, ssd1306).
type rectFiller interface {
	FillRectangle(x, y, width, height int16, c color.RGBA) error
}

// Panel adapts a drivers.Displayer to Canvas. Spans and rectangles go to the
// driver's native fill when it has one and fall back to SetPixel otherwise.
type Panel struct {
	dev    drivers.Displayer
	filler rectFiller
	width  int16
	height int16
	clip   Rect
}

// NewPanel wraps dev. The clip starts at the full screen.
func NewPanel(dev drivers.Displayer) *Panel {
	w, h := dev.Size()
	p := &Panel{
		dev:    dev,
		width:  w,
		height: h,
	}
	if f, ok := dev.(rectFiller); ok {
		p.filler = f
	}
	p.ClearClip()
	return p
}

// Size returns the panel size in pixels.
func (p *Panel) Size() (x, y int16) {
	return p.width, p.height
}

// SetBrightness forwards to the driver when it implements Dimmer and is a
// no-op otherwise.
func (p *Panel) SetBrightness(level uint8) error {
	if d, ok := p.dev.(Dimmer); ok {
		return d.SetBrightness(level)
	}
	return nil
}

// SetPixel draws one pixel if it lies inside the clip.
func (p *Panel) SetPixel(x, y int16, c color.RGBA) {
	if !p.clip.Contains(x, y) {
		return
	}
	p.dev.SetPixel(x, y, c)
}

// DrawHLine draws a clipped horizontal span.
func (p *Panel) DrawHLine(x, y, length int16, c color.RGBA) {
	p.fill(Rect{X: x, Y: y, W: length, H: 1}, c)
}

// FillRect fills a clipped rectangle.
func (p *Panel) FillRect(x, y, w, h int16, c color.RGBA) {
	p.fill(Rect{X: x, Y: y, W: w, H: h}, c)
}

// SetClip restricts drawing to r, bounded by the screen.
func (p *Panel) SetClip(r Rect) {
	p.clip = r.Intersect(Rect{W: p.width, H: p.height})
}

// ClearClip restores the full-screen clip.
func (p *Panel) ClearClip() {
	p.clip = Rect{W: p.width, H: p.height}
}

// Display flushes the driver buffer to the screen.
func (p *Panel) Display() error {
	return p.dev.Display()
}

func (p *Panel) fill(r Rect, c color.RGBA) {
	r = r.Intersect(p.clip)
	if r.Empty() {
		return
	}
	if p.filler != nil {
		if err := p.filler.FillRectangle(r.X, r.Y, r.W, r.H, c); err == nil {
			return
		}
	}
	for y := r.Y; y < r.Y+r.H; y++ {
		for x := r.X; x < r.X+r.W; x++ {
			p.dev.SetPixel(x, y, c)
		}
	}
}
