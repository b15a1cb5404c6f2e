// Package text lays out navigation strings on a display. Long fields are
// either wrapped over several lines or scrolled as a single-line marquee.
package text

import (
	"image/color"
	"iter"
	"math"
	"strings"
	"unicode/utf8"

	"tinygo.org/x/drivers"
)

// LineGap is added to the font height between wrapped lines.
const LineGap = 5

// MaxWidth is the widest measurement a Font reports. Wider strings saturate
// at MaxWidth so they still compare as overflowing.
const MaxWidth = math.MaxInt16

// Font measures and draws strings. Coordinates passed to Draw are the left
// edge and the baseline.
type Font interface {
	// Measure returns the advance width of s, at most MaxWidth.
	Measure(s string) int16
	Ascent() int16
	// Descent is zero or negative.
	Descent() int16
	Draw(d drivers.Displayer, x, baseline int16, s string, c color.RGBA)
}

// LineHeight returns the baseline-to-baseline pitch of wrapped lines.
func LineHeight(f Font, gap int16) int16 {
	return f.Ascent() - f.Descent() + gap
}

// Wrap splits s greedily into lines no wider than maxWidth. Runes are added
// one at a time; when the candidate overflows and holds more than one rune it
// is broken at its last space, or committed whole if it has none. Words wider
// than maxWidth therefore overflow instead of being split.
//
// The sequence yields each line with its baseline offset relative to the
// first line. Lines that would be empty are skipped and take no space.
func Wrap(s string, maxWidth int16, f Font, gap int16) iter.Seq2[string, int16] {
	return func(yield func(string, int16) bool) {
		pitch := LineHeight(f, gap)
		var y int16
		emit := func(line string) bool {
			if line == "" {
				return true
			}
			if !yield(line, y) {
				return false
			}
			y += pitch
			return true
		}

		line := make([]byte, 0, 32)
		runes := 0
		for _, r := range s {
			line = utf8.AppendRune(line, r)
			runes++
			if runes < 2 || f.Measure(string(line)) <= maxWidth {
				continue
			}

			cut := strings.LastIndexByte(string(line), ' ')
			if cut < 0 {
				if !emit(string(line)) {
					return
				}
				line = line[:0]
				runes = 0
				continue
			}

			if !emit(string(line[:cut])) {
				return
			}
			rest := line[cut+1:]
			line = append(line[:0], rest...)
			runes = utf8.RuneCount(line)
		}
		emit(string(line))
	}
}
