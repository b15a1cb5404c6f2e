package text

import (
	"image/color"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freesans"
)

// TinyFont adapts a tinyfont.Fonter to Font. Ascent and descent are taken
// from the printable ASCII glyphs once, at construction.
type TinyFont struct {
	font    tinyfont.Fonter
	ascent  int16
	descent int16
}

// NewTinyFont wraps f.
func NewTinyFont(f tinyfont.Fonter) *TinyFont {
	t := &TinyFont{font: f}
	for r := rune(0x20); r < 0x7F; r++ {
		info := f.GetGlyph(r).Info()
		if a := -int16(info.YOffset); a > t.ascent {
			t.ascent = a
		}
		if d := -(int16(info.YOffset) + int16(info.Height)); d < t.descent {
			t.descent = d
		}
	}
	return t
}

// Measure returns the advance width of s, saturating at MaxWidth.
func (t *TinyFont) Measure(s string) int16 {
	w, _ := tinyfont.LineWidth(t.font, s)
	if w > MaxWidth {
		return MaxWidth
	}
	return int16(w)
}

// Ascent returns the height above the baseline.
func (t *TinyFont) Ascent() int16 {
	return t.ascent
}

// Descent returns the depth below the baseline as a value <= 0.
func (t *TinyFont) Descent() int16 {
	return t.descent
}

// Draw writes s with its baseline at y.
func (t *TinyFont) Draw(d drivers.Displayer, x, y int16, s string, c color.RGBA) {
	tinyfont.WriteLine(d, t.font, x, y, s, c)
}

// Role names the size class a layout field is drawn in.
type Role uint8

const (
	RoleSmall Role = iota
	RoleMedium
	RoleLarge
)

// Fonts maps roles to fonts.
type Fonts [3]Font

// Get returns the font for r, falling back to the small font.
func (fs Fonts) Get(r Role) Font {
	if int(r) < len(fs) && fs[r] != nil {
		return fs[r]
	}
	return fs[RoleSmall]
}

// DefaultFonts returns the FreeSans fonts used on the device.
func DefaultFonts() Fonts {
	return Fonts{
		RoleSmall:  NewTinyFont(&freesans.Regular9pt7b),
		RoleMedium: NewTinyFont(&freesans.Bold9pt7b),
		RoleLarge:  NewTinyFont(&freesans.Bold12pt7b),
	}
}
