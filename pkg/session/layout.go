package session

import (
	"image/color"

	"github.com/tuffrabit/tinygo-navdisplay/pkg/config"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/display"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/nav"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/text"
)

// Mode selects how a text field is rendered.
type Mode uint8

const (
	ModeHidden Mode = iota
	ModeWrap
	ModeScroll
)

// FieldLayout places one text field.
type FieldLayout struct {
	Mode  Mode
	X     int16 // Left edge
	Y     int16 // Baseline of the first line
	Width int16 // Width budget, 0 means up to the right screen edge
	Font  text.Role
	Color color.RGBA

	// Clear is filled with the background before drawing. Empty means none.
	Clear display.Rect

	// Center centres text that fits horizontally within the field.
	Center bool
}

// Layout is a fixed, hand-placed screen arrangement for one display variant.
type Layout struct {
	Width, Height int16
	Foreground    color.RGBA
	Background    color.RGBA

	// ClearOnConnect repaints the whole background before each connected
	// redraw. Buffered panels use it; TFTs repaint regions instead.
	ClearOnConnect bool

	// Status bar. ConnectedBar is empty on layouts without a connected bar.
	ConnectedBar          display.Rect
	DisconnectedBar       display.Rect
	ConnectedColor        color.RGBA
	DisconnectedColor     color.RGBA
	ConnectedTextColor    color.RGBA
	DisconnectedTextColor color.RGBA
	StatusX, StatusY      int16
	StatusFont            text.Role

	Bitmap display.Rect
	Icon   display.Rect

	Fields [nav.FieldCount]FieldLayout
}

// FieldWidth returns the width budget of f.
func (l *Layout) FieldWidth(f nav.Field) int16 {
	fl := l.Fields[f]
	if fl.Width > 0 {
		return fl.Width
	}
	return l.Width - fl.X
}

// OLED128 is the 128x128 monochrome layout: bitmap top left, distance
// centred below it, title scrolling along the bottom edge. ETA is not shown.
var OLED128 = Layout{
	Width:      128,
	Height:     128,
	Foreground: display.White,
	Background: display.Black,

	ClearOnConnect: true,

	DisconnectedBar:       display.Rect{X: 0, Y: 0, W: 128, H: 16},
	DisconnectedColor:     display.White,
	DisconnectedTextColor: display.Black,
	StatusX:               5,
	StatusY:               14,
	StatusFont:            text.RoleMedium,

	Bitmap: display.Rect{X: 2, Y: 2, W: 90, H: 90},
	Icon:   display.Rect{X: 19, Y: 39, W: 90, H: 90},

	Fields: [nav.FieldCount]FieldLayout{
		nav.FieldTitle: {
			Mode:  ModeScroll,
			X:     0,
			Y:     124,
			Font:  text.RoleSmall,
			Color: display.White,
		},
		nav.FieldETA: {
			Mode: ModeHidden,
		},
		nav.FieldDistance: {
			Mode:   ModeScroll,
			X:      20,
			Y:      102,
			Width:  106,
			Font:   text.RoleLarge,
			Color:  display.White,
			Center: true,
		},
	},
}

// TFT240 is the 240x320 colour layout: green or red status bar, bitmap
// centred under it, then distance, title and ETA wrapped below.
var TFT240 = Layout{
	Width:      240,
	Height:     320,
	Foreground: display.White,
	Background: display.Black,

	ConnectedBar:          display.Rect{X: 0, Y: 0, W: 240, H: 36},
	DisconnectedBar:       display.Rect{X: 0, Y: 0, W: 240, H: 36},
	ConnectedColor:        display.Green,
	DisconnectedColor:     display.Red,
	ConnectedTextColor:    display.Black,
	DisconnectedTextColor: display.White,
	StatusX:               5,
	StatusY:               24,
	StatusFont:            text.RoleMedium,

	Bitmap: display.Rect{X: 54, Y: 38, W: 132, H: 132},
	Icon:   display.Rect{X: 54, Y: 70, W: 132, H: 132},

	Fields: [nav.FieldCount]FieldLayout{
		nav.FieldDistance: {
			Mode:  ModeWrap,
			X:     54,
			Y:     200,
			Font:  text.RoleLarge,
			Color: display.Green,
			Clear: display.Rect{X: 0, Y: 170, W: 240, H: 56},
		},
		nav.FieldTitle: {
			Mode:  ModeWrap,
			X:     5,
			Y:     248,
			Font:  text.RoleSmall,
			Color: display.White,
			Clear: display.Rect{X: 0, Y: 226, W: 240, H: 94},
		},
		nav.FieldETA: {
			Mode:  ModeWrap,
			X:     5,
			Y:     304,
			Font:  text.RoleSmall,
			Color: display.White,
		},
	},
}

// LayoutFor returns the layout of a display variant.
func LayoutFor(v config.Variant) Layout {
	if v == config.VariantTFT240 {
		return TFT240
	}
	return OLED128
}
