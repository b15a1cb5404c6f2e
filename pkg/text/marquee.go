package text

import (
	"image/color"
	"time"

	"github.com/tuffrabit/tinygo-navdisplay/pkg/display"
)

// Default marquee timings.
const (
	DefaultPause = 500 * time.Millisecond
	DefaultCycle = 8000 * time.Millisecond
	DefaultTick  = 100 * time.Millisecond
)

// clipMargin extends the field clip above the ascent and below the descent.
const clipMargin = 6

// ScrollState tracks one scrolling field. The zero value is inactive.
type ScrollState struct {
	Active       bool
	Start        time.Time
	ContentWidth int16
	content      string
}

// Reset stops scrolling. The next overflowing draw restarts the pause.
func (st *ScrollState) Reset() {
	*st = ScrollState{}
}

// Marquee scrolls text that does not fit its field from right to left.
// After Pause the text moves continuously, leaving the screen on the left
// and re-entering from the right once per Cycle.
type Marquee struct {
	Pause       time.Duration
	Cycle       time.Duration
	ScreenWidth int16
}

// NewMarquee returns a Marquee with the default timings.
func NewMarquee(screenWidth int16) Marquee {
	return Marquee{
		Pause:       DefaultPause,
		Cycle:       DefaultCycle,
		ScreenWidth: screenWidth,
	}
}

// Offset returns how far the text has moved left at now, at most MaxWidth.
func (m Marquee) Offset(st ScrollState, now time.Time) int16 {
	elapsed := now.Sub(st.Start)
	if elapsed < m.Pause || m.Cycle <= 0 {
		return 0
	}
	phase := int64((elapsed - m.Pause) % m.Cycle / time.Millisecond)
	cycle := int64(m.Cycle / time.Millisecond)
	travel := int64(st.ContentWidth) + int64(m.ScreenWidth)
	return int16(min(phase*travel/cycle, MaxWidth))
}

// Draw renders s on baseline y of a field starting at x that is maxWidth
// pixels wide. Text that fits is drawn statically at x and st is reset.
// Otherwise the text is drawn at ScreenWidth - Offset, clipped to the field,
// and Draw reports true so the caller keeps redrawing.
func (m Marquee) Draw(c display.Canvas, f Font, st *ScrollState, s string, x, y, maxWidth int16, col color.RGBA, now time.Time) bool {
	width := f.Measure(s)
	if width <= maxWidth {
		st.Reset()
		f.Draw(c, x, y, s, col)
		return false
	}

	if !st.Active || st.content != s {
		*st = ScrollState{
			Active:       true,
			Start:        now,
			ContentWidth: width,
			content:      s,
		}
	}

	top := y - f.Ascent() - clipMargin
	bottom := y + f.Descent() + clipMargin
	c.SetClip(display.Rect{X: x, Y: top, W: maxWidth, H: bottom - top})
	f.Draw(c, m.ScreenWidth-m.Offset(*st, now), y, s, col)
	c.ClearClip()
	return true
}
