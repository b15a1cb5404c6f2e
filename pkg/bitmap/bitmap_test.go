package bitmap

import (
	"image/color"
	"math/rand"
	"testing"

	"github.com/tuffrabit/tinygo-navdisplay/pkg/config"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/display"
)

type span struct {
	x, y, length int16
	c            color.RGBA
}

type rect struct {
	x, y, w, h int16
}

// recorder is a Canvas that records every call.
type recorder struct {
	spans  []span
	fills  []rect
	pixels int
}

func (r *recorder) Size() (x, y int16) { return 240, 320 }
func (r *recorder) SetPixel(x, y int16, c color.RGBA) { r.pixels++ }
func (r *recorder) Display() error { return nil }
func (r *recorder) SetClip(display.Rect) {}
func (r *recorder) ClearClip() {}

func (r *recorder) DrawHLine(x, y, length int16, c color.RGBA) {
	r.spans = append(r.spans, span{x, y, length, c})
}

func (r *recorder) FillRect(x, y, w, h int16, c color.RGBA) {
	r.fills = append(r.fills, rect{x, y, w, h})
}

func (r *recorder) calls() int {
	return len(r.spans) + len(r.fills) + r.pixels
}

var limits = Limits{MaxWidth: 132, MaxHeight: 132}

func TestMonoSpans(t *testing.T) {
	m := &Mono{Limits: limits, Foreground: display.White, Background: display.Black}
	data := []byte{
		0b11110000,
		0b10101010,
	}
	rec := &recorder{}

	if err := m.Draw(rec, 10, 20, data, 8, 2); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}

	expected := []span{
		{10, 20, 4, display.White},
		{14, 20, 4, display.Black},
		{10, 21, 1, display.White},
		{11, 21, 1, display.Black},
		{12, 21, 1, display.White},
		{13, 21, 1, display.Black},
		{14, 21, 1, display.White},
		{15, 21, 1, display.Black},
		{16, 21, 1, display.White},
		{17, 21, 1, display.Black},
	}
	if len(rec.spans) != len(expected) {
		t.Fatalf("Spans: expected %d, got %d (%v)", len(expected), len(rec.spans), rec.spans)
	}
	for i := range expected {
		if rec.spans[i] != expected[i] {
			t.Errorf("Span %d: expected %v, got %v", i, expected[i], rec.spans[i])
		}
	}
}

func TestMonoSolidRowIsOneSpan(t *testing.T) {
	m := &Mono{Limits: limits, Foreground: display.White}
	data := make([]byte, Stride(90)*90)
	for i := range data {
		data[i] = 0xFF
	}
	rec := &recorder{}

	if err := m.Draw(rec, 0, 0, data, 90, 90); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	if len(rec.spans) != 90 {
		t.Errorf("Spans: expected one per row (90), got %d", len(rec.spans))
	}
	for _, s := range rec.spans {
		if s.length != 90 {
			t.Fatalf("Span length: expected 90, got %d", s.length)
		}
	}
}

func TestPackingDiffersForOddWidth(t *testing.T) {
	// 4x2: row-aligned puts row 1 in byte 1, bitstream packs it in byte 0
	rows := []byte{0b11110000, 0b10010000}
	stream := []byte{0b11111001}

	a := CountSet(rows, config.PackingRowAligned, 4, 2)
	b := CountSet(stream, config.PackingBitstream, 4, 2)
	if a != 6 || b != 6 {
		t.Errorf("CountSet: expected 6 and 6, got %d and %d", a, b)
	}

	var rowSpans, streamSpans []int16
	ForEachSpan(rows, config.PackingRowAligned, 4, 2, func(row, start, length int16, on bool) {
		rowSpans = append(rowSpans, length)
	})
	ForEachSpan(stream, config.PackingBitstream, 4, 2, func(row, start, length int16, on bool) {
		streamSpans = append(streamSpans, length)
	})
	if len(rowSpans) != len(streamSpans) {
		t.Fatalf("Span count: %v vs %v", rowSpans, streamSpans)
	}
	for i := range rowSpans {
		if rowSpans[i] != streamSpans[i] {
			t.Errorf("Span %d: %d vs %d", i, rowSpans[i], streamSpans[i])
		}
	}
}

func TestSpanCountMatchesBitCount(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	sizes := [][2]int16{{1, 1}, {7, 3}, {8, 8}, {9, 5}, {90, 90}, {132, 132}, {13, 1}}

	for _, packing := range []config.Packing{config.PackingRowAligned, config.PackingBitstream} {
		for _, size := range sizes {
			w, h := size[0], size[1]
			data := make([]byte, PayloadSize(packing, w, h))
			rng.Read(data)

			fromSpans := 0
			covered := 0
			ForEachSpan(data, packing, w, h, func(row, start, length int16, on bool) {
				covered += int(length)
				if on {
					fromSpans += int(length)
				}
			})

			direct := CountSet(data, packing, w, h)
			if fromSpans != direct {
				t.Errorf("%v %dx%d: span count %d, bit count %d", packing, w, h, fromSpans, direct)
			}
			if covered != int(w)*int(h) {
				t.Errorf("%v %dx%d: spans cover %d pixels, expected %d", packing, w, h, covered, int(w)*int(h))
			}
		}
	}
}

func TestMonoRendersPixels(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	w, h := int16(21), int16(13)
	data := make([]byte, PayloadSize(config.PackingRowAligned, w, h))
	rng.Read(data)

	fb := display.NewFramebuffer(64, 64)
	m := &Mono{Limits: limits, Foreground: display.White, Background: display.Black}
	if err := m.Draw(display.NewPanel(fb), 3, 4, data, w, h); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}

	lit := 0
	for y := int16(0); y < 64; y++ {
		for x := int16(0); x < 64; x++ {
			if fb.IsOn(x, y) {
				lit++
			}
		}
	}
	if expected := CountSet(data, config.PackingRowAligned, w, h); lit != expected {
		t.Errorf("Lit pixels: expected %d, got %d", expected, lit)
	}
	if fb.Pixels != 0 {
		t.Errorf("Pixels: expected span fills only, got %d SetPixel calls", fb.Pixels)
	}
}

func TestRejectsOversize(t *testing.T) {
	data := make([]byte, 64*1024)
	codecs := map[string]Codec{
		"mono":   &Mono{Limits: limits},
		"scaled": &Scaled{Limits: limits, Scale: 2},
		"rgb":    &RGB{Limits: limits},
	}
	for name, codec := range codecs {
		rec := &recorder{}
		if err := codec.Draw(rec, 0, 0, data, 133, 10); err != ErrTooLarge {
			t.Errorf("%s: expected ErrTooLarge, got %v", name, err)
		}
		if err := codec.Draw(rec, 0, 0, data, 0, 10); err != ErrTooLarge {
			t.Errorf("%s: expected ErrTooLarge for zero width, got %v", name, err)
		}
		if rec.calls() != 0 {
			t.Errorf("%s: expected no draw calls, got %d", name, rec.calls())
		}
	}

	// Scaled checks the drawn size
	rec := &recorder{}
	s := &Scaled{Limits: limits, Scale: 2}
	if err := s.Draw(rec, 0, 0, data, 67, 10); err != ErrTooLarge {
		t.Errorf("scaled 67x2: expected ErrTooLarge, got %v", err)
	}
}

func TestRejectsShortPayload(t *testing.T) {
	codecs := map[string]Codec{
		"mono":   &Mono{Limits: limits},
		"scaled": &Scaled{Limits: limits, Scale: 1},
		"rgb":    &RGB{Limits: limits},
	}
	for name, codec := range codecs {
		rec := &recorder{}
		if err := codec.Draw(rec, 0, 0, []byte{0xFF}, 90, 90); err != ErrShortPayload {
			t.Errorf("%s: expected ErrShortPayload, got %v", name, err)
		}
		if err := codec.Draw(rec, 0, 0, nil, 8, 1); err != ErrShortPayload {
			t.Errorf("%s: expected ErrShortPayload for nil, got %v", name, err)
		}
		if rec.calls() != 0 {
			t.Errorf("%s: expected no draw calls, got %d", name, rec.calls())
		}
	}
}

func TestScaledBoxes(t *testing.T) {
	s := &Scaled{Limits: limits, Scale: 3, Foreground: display.White}
	data := []byte{
		0b01000000,
		0b10000000,
	}
	rec := &recorder{}

	if err := s.Draw(rec, 5, 5, data, 2, 2); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	expected := []rect{{8, 5, 3, 3}, {5, 8, 3, 3}}
	if len(rec.fills) != len(expected) {
		t.Fatalf("Fills: expected %d, got %d", len(expected), len(rec.fills))
	}
	for i := range expected {
		if rec.fills[i] != expected[i] {
			t.Errorf("Fill %d: expected %v, got %v", i, expected[i], rec.fills[i])
		}
	}
	if len(rec.spans) != 0 || rec.pixels != 0 {
		t.Error("Scaled codec should only fill boxes")
	}
}

func TestRGBPerPixel(t *testing.T) {
	fb := display.NewFramebuffer(8, 8)
	r := &RGB{Limits: limits}
	data := []byte{
		255, 0, 0, 0, 255, 0,
		0, 0, 255, 10, 20, 30,
	}

	if err := r.Draw(display.NewPanel(fb), 1, 1, data, 2, 2); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	if fb.Pixels != 4 {
		t.Errorf("Pixels: expected 4 SetPixel calls, got %d", fb.Pixels)
	}
	if got := fb.At(2, 2); got != (color.RGBA{10, 20, 30, 255}) {
		t.Errorf("Pixel (2,2): expected {10 20 30 255}, got %v", got)
	}
	if got := fb.At(1, 1); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("Pixel (1,1): expected red, got %v", got)
	}
}

func TestNewSelectsCodec(t *testing.T) {
	cfg := config.Default()

	cfg.Codec = config.CodecMono
	if _, ok := New(cfg, limits, display.White, display.Black).(*Mono); !ok {
		t.Error("Expected *Mono")
	}
	cfg.Codec = config.CodecScaled
	cfg.Scale = 2
	s, ok := New(cfg, limits, display.White, display.Black).(*Scaled)
	if !ok {
		t.Fatal("Expected *Scaled")
	}
	if s.Scale != 2 {
		t.Errorf("Scale: expected 2, got %d", s.Scale)
	}
	cfg.Codec = config.CodecRGB
	if _, ok := New(cfg, limits, display.White, display.Black).(*RGB); !ok {
		t.Error("Expected *RGB")
	}
}

func TestDisconnectedIcon(t *testing.T) {
	w, h := int16(90), int16(90)
	icon := DisconnectedIcon(w, h)
	if len(icon) != Stride(w)*int(h) {
		t.Fatalf("Size: expected %d, got %d", Stride(w)*int(h), len(icon))
	}

	on := func(col, row int16) bool { return bit(icon, config.PackingRowAligned, w, col, row) }

	if on(0, 0) || on(w-1, 0) || on(0, h-1) || on(w-1, h-1) {
		t.Error("Corners should be clear")
	}
	if !on(w/2, h/2) {
		t.Error("Centre should be on the slash")
	}
	if !on(w/2, 1) {
		t.Error("Top of the ring should be set")
	}
	for row := int16(0); row < h; row++ {
		for col := int16(0); col < w; col++ {
			if on(col, row) != on(row, col) {
				t.Fatalf("Icon not symmetric at (%d,%d)", col, row)
			}
		}
	}
}

func TestScaledOpaqueBackground(t *testing.T) {
	s := &Scaled{Limits: limits, Scale: 2, Foreground: display.White, Background: display.Black}
	rec := &recorder{}

	if err := s.Draw(rec, 0, 0, []byte{0b10000000}, 1, 1); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	expected := []rect{{0, 0, 2, 2}, {0, 0, 2, 2}}
	if len(rec.fills) != 2 || rec.fills[0] != expected[0] || rec.fills[1] != expected[1] {
		t.Errorf("Fills: expected %v, got %v", expected, rec.fills)
	}

	// Rejected draws leave the area untouched
	rec = &recorder{}
	if err := s.Draw(rec, 0, 0, nil, 4, 4); err != ErrShortPayload {
		t.Errorf("Expected ErrShortPayload, got %v", err)
	}
	if rec.calls() != 0 {
		t.Errorf("Expected no draw calls, got %d", rec.calls())
	}
}
