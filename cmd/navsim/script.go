package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/tuffrabit/tinygo-navdisplay/pkg/bitmap"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/config"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/display"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/frame"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/nav"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/session"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/text"
)

var (
	errUnknownCommand = errors.New("unknown command")
	errUsage          = errors.New("bad arguments")
)

// sim drives a display session from script commands. Time only moves on
// "tick", so runs are reproducible.
type sim struct {
	sess   *session.Session
	fb     *display.Framebuffer
	layout session.Layout
	cfg    config.DeviceConfig
	clock  time.Time
	chunk  int
	bitmap []byte
	out    io.Writer
	scr    screen
	logger *slog.Logger
}

func newSim(cfg config.DeviceConfig, fonts text.Fonts, out io.Writer, scr screen, logger *slog.Logger) *sim {
	layout := session.LayoutFor(cfg.Variant)
	s := &sim{
		fb:     display.NewFramebuffer(layout.Width, layout.Height),
		layout: layout,
		cfg:    cfg,
		clock:  time.Unix(0, 0),
		chunk:  20,
		out:    out,
		scr:    scr,
		logger: logger,
	}
	s.sess = session.New(session.Options{
		Canvas: display.NewPanel(s.fb),
		Layout: layout,
		Config: cfg,
		Fonts:  fonts,
		Logger: logger,
		Now:    func() time.Time { return s.clock },
	})
	s.sess.Poll()
	return s
}

// run executes one command per line. Blank lines and lines starting with '#'
// are skipped.
func (s *sim) run(r io.Reader) error {
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		src := strings.TrimSpace(sc.Text())
		if src == "" || strings.HasPrefix(src, "#") {
			continue
		}
		args, err := shlex.Split(src)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if len(args) == 0 {
			continue
		}
		if err := s.exec(args); err != nil {
			return fmt.Errorf("line %d: %s: %w", line, args[0], err)
		}
	}
	return sc.Err()
}

func (s *sim) exec(args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "connect":
		s.sess.Connect()
	case "disconnect":
		s.sess.Disconnect()
	case "chunk":
		if len(rest) != 1 {
			return errUsage
		}
		n, err := strconv.Atoi(rest[0])
		if err != nil || n < 1 {
			return errUsage
		}
		s.chunk = n
		return nil
	case "bitmap":
		return s.setBitmap(rest)
	case "send":
		if len(rest) != 3 {
			return errUsage
		}
		record := nav.Record(nav.State{Bitmap: s.bitmap, Title: rest[0], ETA: rest[1], Distance: rest[2]})
		s.write(frame.Encode(record))
	case "raw":
		if len(rest) != 1 {
			return errUsage
		}
		s.write([]byte(rest[0]))
	case "set":
		if err := s.set(rest); err != nil {
			return err
		}
	case "tick":
		if len(rest) != 1 {
			return errUsage
		}
		ms, err := strconv.Atoi(rest[0])
		if err != nil || ms < 0 {
			return errUsage
		}
		s.advance(time.Duration(ms) * time.Millisecond)
		return nil
	case "show":
		return render(s.out, s.fb, s.scr)
	case "stats":
		s.printStats()
		return nil
	default:
		return errUnknownCommand
	}
	s.sess.Poll()
	return nil
}

// write delivers p in transport-sized chunks.
func (s *sim) write(p []byte) {
	for len(p) > 0 {
		n := min(s.chunk, len(p))
		s.sess.Write(p[:n])
		p = p[n:]
	}
}

// advance moves the clock in poll-interval steps, polling after each.
func (s *sim) advance(d time.Duration) {
	for elapsed := time.Duration(0); elapsed < d; elapsed += session.PollInterval {
		s.clock = s.clock.Add(session.PollInterval)
		s.sess.Poll()
	}
}

func (s *sim) setBitmap(args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "none":
		s.bitmap = nil
	case "icon":
		w, h := s.bitmapSize()
		s.bitmap = iconPayload(s.cfg, w, h)
	case "file":
		if len(args) != 2 {
			return errUsage
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		s.bitmap = data
	default:
		return errUsage
	}
	return nil
}

// bitmapSize is the payload size the session expects for the layout.
func (s *sim) bitmapSize() (w, h int16) {
	r := s.layout.Bitmap
	if s.cfg.Codec == config.CodecScaled && s.cfg.Scale > 1 {
		return r.W / int16(s.cfg.Scale), r.H / int16(s.cfg.Scale)
	}
	return r.W, r.H
}

// set changes one render setting and applies it to the session.
func (s *sim) set(args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	cfg := s.cfg
	key, value := args[0], args[1]
	switch key {
	case "codec":
		c, err := parseCodec(value)
		if err != nil {
			return err
		}
		cfg.Codec = c
	case "packing":
		p, err := parsePacking(value)
		if err != nil {
			return err
		}
		cfg.Packing = p
	default:
		n, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return errUsage
		}
		switch key {
		case "scale":
			cfg.Scale = uint8(n)
		case "pause":
			cfg.ScrollPauseMs = uint16(n)
		case "cycle":
			cfg.ScrollCycleMs = uint16(n)
		case "tick":
			cfg.ScrollTickMs = uint16(n)
		default:
			return errUsage
		}
	}
	if err := s.sess.ApplyConfig(cfg); err != nil {
		return err
	}
	s.cfg = cfg
	return nil
}

func (s *sim) printStats() {
	st := s.sess.Stats()
	fmt.Fprintf(s.out, "state=%s bytes=%d records=%d overflows=%d superseded=%d decoded=%d malformed=%d redraws=%d bitmap_errors=%d\n",
		s.sess.Connection(), st.Frame.Bytes, st.Frame.Records, st.Frame.Overflows, st.Frame.Superseded,
		st.Decoded, st.Malformed, st.Redraws, st.BitmapErrors)
}

func parseCodec(s string) (config.Codec, error) {
	for _, c := range []config.Codec{config.CodecMono, config.CodecScaled, config.CodecRGB} {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: codec %q", errUsage, s)
}

func parsePacking(s string) (config.Packing, error) {
	for _, p := range []config.Packing{config.PackingRowAligned, config.PackingBitstream} {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: packing %q", errUsage, s)
}

func parseVariant(s string) (config.Variant, error) {
	for _, v := range []config.Variant{config.VariantOLED128, config.VariantTFT240} {
		if v.String() == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: variant %q", errUsage, s)
}

// iconPayload renders the disconnected icon in the payload format cfg
// selects, as a stand-in for the phone's turn arrows.
func iconPayload(cfg config.DeviceConfig, w, h int16) []byte {
	icon := bitmap.DisconnectedIcon(w, h)

	switch {
	case cfg.Codec == config.CodecRGB:
		out := make([]byte, 0, int(w)*int(h)*3)
		bitmap.ForEachSpan(icon, config.PackingRowAligned, w, h, func(_, _, length int16, on bool) {
			var v byte
			if on {
				v = 0xFF
			}
			for range length {
				out = append(out, v, v, v)
			}
		})
		return out
	case cfg.Packing == config.PackingBitstream:
		out := make([]byte, bitmap.PayloadSize(config.PackingBitstream, w, h))
		bitmap.ForEachSpan(icon, config.PackingRowAligned, w, h, func(row, start, length int16, on bool) {
			if !on {
				return
			}
			for col := start; col < start+length; col++ {
				pixel := int(row)*int(w) + int(col)
				out[pixel/8] |= 0x80 >> uint(pixel%8)
			}
		})
		return out
	default:
		return icon
	}
}
