package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/tuffrabit/tinygo-navdisplay/pkg/display"
)

// screen describes the output terminal.
type screen struct {
	cols  int  // 0 means unbounded
	color bool // 24-bit ANSI colour
}

// detectScreen inspects f. Colour and width limits only apply to a terminal.
func detectScreen(f *os.File) screen {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return screen{}
	}
	cols, _, err := term.GetSize(fd)
	if err != nil {
		cols = 0
	}
	return screen{cols: cols, color: true}
}

// step is the pixel stride that fits width into the screen.
func (s screen) step(width int16) int16 {
	if s.cols <= 0 || int(width) <= s.cols {
		return 1
	}
	return int16((int(width) + s.cols - 1) / s.cols)
}

var halfBlocks = [4]string{" ", "▀", "▄", "█"}

// render draws fb with two pixel rows per text line.
func render(w io.Writer, fb *display.Framebuffer, scr screen) error {
	bw := bufio.NewWriter(w)
	width, height := fb.Size()
	step := scr.step(width)

	for y := int16(0); y < height; y += 2 * step {
		for x := int16(0); x < width; x += step {
			if scr.color {
				top, bottom := fb.At(x, y), fb.At(x, y+step)
				fmt.Fprintf(bw, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm▀",
					top.R, top.G, top.B, bottom.R, bottom.G, bottom.B)
				continue
			}
			var idx int
			if fb.IsOn(x, y) {
				idx |= 1
			}
			if fb.IsOn(x, y+step) {
				idx |= 2
			}
			bw.WriteString(halfBlocks[idx])
		}
		if scr.color {
			bw.WriteString("\x1b[0m")
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
