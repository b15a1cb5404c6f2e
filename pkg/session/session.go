// Package session ties the byte stream, the decoded navigation state and the
// connection state to the screen.
//
// Transport callbacks (Write, Connect, Disconnect, Submit) may run on any
// goroutine. They only update state under the session lock and mark the
// screen dirty. The render loop (Poll or Run) snapshots that state and draws
// outside the lock, so a slow panel never stalls the transport.
package session

import (
	"context"
	"image/color"
	"log/slog"
	"sync"
	"time"

	"github.com/tuffrabit/tinygo-navdisplay/pkg/bitmap"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/config"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/display"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/frame"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/nav"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/text"
)

// PollInterval is how often Run checks for work.
const PollInterval = 10 * time.Millisecond

// ConnectionState is the transport link state.
type ConnectionState uint8

const (
	Disconnected ConnectionState = iota
	Connected
)

func (c ConnectionState) String() string {
	if c == Connected {
		return "Connected"
	}
	return "Disconnected"
}

// Stats counts session activity.
type Stats struct {
	Frame        frame.Stats
	Decoded      uint32 // Records decoded, malformed included
	Malformed    uint32 // Records without a ';' or two '|'
	Redraws      uint32
	BitmapErrors uint32 // Bitmaps rejected by the codec
}

// Options configures a Session.
type Options struct {
	Canvas display.Canvas
	Layout Layout
	Config config.DeviceConfig
	Fonts  text.Fonts

	// Capacity of the reassembly buffer. Zero means frame.DefaultCapacity.
	Capacity int

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Session is the display session. Create it with New.
type Session struct {
	mu      sync.Mutex
	frames  *frame.Reassembler
	nav     nav.State
	conn    ConnectionState
	dirty   bool
	pending *config.DeviceConfig
	stats   Stats

	// Owned by the render loop
	canvas    display.Canvas
	layout    Layout
	fonts     text.Fonts
	codec     bitmap.Codec
	icon      bitmap.Codec
	iconData  []byte
	marquee   text.Marquee
	tick      time.Duration
	scroll    [nav.FieldCount]text.ScrollState
	scrolling bool
	lastDraw  time.Time

	logger *slog.Logger
	now    func() time.Time
}

// New creates a disconnected session. The first Poll draws the
// disconnected screen.
func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Capacity == 0 {
		opts.Capacity = frame.DefaultCapacity
	}
	if opts.Fonts[text.RoleSmall] == nil {
		opts.Fonts = text.DefaultFonts()
	}

	l := opts.Layout
	s := &Session{
		frames: frame.New(opts.Capacity),
		nav:    nav.Empty(),
		conn:   Disconnected,
		dirty:  true,
		canvas: opts.Canvas,
		layout: l,
		fonts:  opts.Fonts,
		icon: &bitmap.Mono{
			Limits:     bitmap.Limits{MaxWidth: l.Icon.W, MaxHeight: l.Icon.H},
			Foreground: l.Foreground,
			Background: l.Background,
		},
		iconData: bitmap.DisconnectedIcon(l.Icon.W, l.Icon.H),
		marquee:  text.NewMarquee(l.Width),
		logger:   opts.Logger,
		now:      opts.Now,
	}
	s.configure(opts.Config)
	return s
}

// configure applies the render settings of cfg. Render loop only.
func (s *Session) configure(cfg config.DeviceConfig) {
	limits := bitmap.Limits{MaxWidth: s.layout.Bitmap.W, MaxHeight: s.layout.Bitmap.H}
	s.codec = bitmap.New(cfg, limits, s.layout.Foreground, s.layout.Background)
	s.marquee.Pause = cfg.ScrollPause()
	s.marquee.Cycle = cfg.ScrollCycle()
	s.tick = cfg.ScrollTick()
	for i := range s.scroll {
		s.scroll[i].Reset()
	}
	if d, ok := s.canvas.(display.Dimmer); ok {
		if err := d.SetBrightness(cfg.Brightness); err != nil {
			s.logger.Warn("brightness not applied", "err", err)
		}
	}
}

// Write feeds transport bytes to the reassembler. It always consumes all of
// p, so a Session can be used as an io.Writer.
func (s *Session) Write(p []byte) (int, error) {
	s.Feed(p)
	return len(p), nil
}

// Feed feeds transport bytes and reports whether a record completed. When a
// chunk completes several records only the last one is kept.
func (s *Session) Feed(p []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	overflows := s.frames.Stats().Overflows
	record := s.frames.Feed(p)
	if s.frames.Stats().Overflows != overflows {
		s.logger.Warn("frame overflow, resynchronising", "capacity", s.frames.Capacity())
	}
	if record == nil {
		return false
	}
	s.accept(record)
	return true
}

// Submit decodes a record that arrived without frame markers, for example
// from the USB control protocol.
func (s *Session) Submit(record []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accept(record)
}

// accept replaces the navigation state. Caller holds mu.
func (s *Session) accept(record []byte) {
	st := nav.Decode(record)
	s.stats.Decoded++
	if !st.Valid {
		s.stats.Malformed++
		s.logger.Warn("malformed record", "bytes", len(record))
	} else {
		s.logger.Debug("record decoded", "bytes", len(record), "bitmap", len(st.Bitmap))
	}
	s.nav = st
	s.dirty = true
}

// Connect marks the transport as connected.
func (s *Session) Connect() {
	s.setConnection(Connected)
}

// Disconnect marks the transport as disconnected and drops any partial
// frame. The last navigation state is kept for the next connection.
func (s *Session) Disconnect() {
	s.setConnection(Disconnected)
}

func (s *Session) setConnection(c ConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == c {
		return
	}
	s.conn = c
	s.dirty = true
	if c == Disconnected {
		s.frames.Reset()
	}
	s.logger.Info("connection changed", "state", c.String())
}

// Connection returns the current connection state.
func (s *Session) Connection() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// State returns the current navigation state.
func (s *Session) State() nav.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav
}

// Stats returns a snapshot of the counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Frame = s.frames.Stats()
	return st
}

// ApplyConfig schedules new render settings. Codec, packing, scale,
// brightness and scroll timings take effect on the next Poll; the variant
// needs a restart.
func (s *Session) ApplyConfig(cfg config.DeviceConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &cfg
	s.dirty = true
	return nil
}

// Poll redraws the screen if anything changed or a marquee is due, and
// reports whether it drew.
func (s *Session) Poll() bool {
	now := s.now()

	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	redraw := s.dirty || (s.scrolling && now.Sub(s.lastDraw) >= s.tick)
	s.dirty = false
	conn := s.conn
	st := s.nav
	s.mu.Unlock()

	if pending != nil {
		s.configure(*pending)
	}
	if !redraw {
		return false
	}

	if conn == Connected {
		s.RenderOnConnect(st)
	} else {
		s.RenderOnDisconnect()
	}
	return true
}

// Run polls until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Poll()
		}
	}
}

// RenderOnConnect draws the connected layout for st. Render loop only.
func (s *Session) RenderOnConnect(st nav.State) {
	l := &s.layout
	c := s.canvas
	now := s.now()

	if l.ClearOnConnect {
		c.FillRect(0, 0, l.Width, l.Height, l.Background)
	}
	if !l.ConnectedBar.Empty() {
		s.drawStatus(l.ConnectedBar, l.ConnectedColor, l.ConnectedTextColor, Connected)
	}

	s.drawBitmap(st.Bitmap)

	scrolling := false
	for f := range nav.FieldCount {
		if s.drawField(f, st.Text(f), now) {
			scrolling = true
		}
	}
	s.scrolling = scrolling

	s.flush(now)
}

// RenderOnDisconnect draws the disconnected screen. Render loop only.
func (s *Session) RenderOnDisconnect() {
	l := &s.layout
	c := s.canvas
	now := s.now()

	c.FillRect(0, 0, l.Width, l.Height, l.Background)
	s.drawStatus(l.DisconnectedBar, l.DisconnectedColor, l.DisconnectedTextColor, Disconnected)
	if err := s.icon.Draw(c, l.Icon.X, l.Icon.Y, s.iconData, l.Icon.W, l.Icon.H); err != nil {
		s.logger.Warn("icon rejected", "err", err)
	}

	for i := range s.scroll {
		s.scroll[i].Reset()
	}
	s.scrolling = false

	s.flush(now)
}

func (s *Session) drawStatus(bar display.Rect, fill, textColor color.RGBA, c ConnectionState) {
	s.canvas.FillRect(bar.X, bar.Y, bar.W, bar.H, fill)
	s.fonts.Get(s.layout.StatusFont).Draw(s.canvas, s.layout.StatusX, s.layout.StatusY, c.String(), textColor)
}

// drawBitmap draws data into the bitmap region. A record without a bitmap
// blanks the region.
func (s *Session) drawBitmap(data []byte) {
	r := s.layout.Bitmap
	if len(data) == 0 {
		s.canvas.FillRect(r.X, r.Y, r.W, r.H, s.layout.Background)
		return
	}

	w, h := r.W, r.H
	if sc, ok := s.codec.(*bitmap.Scaled); ok && sc.Scale > 1 {
		w, h = w/sc.Scale, h/sc.Scale
	}
	if err := s.codec.Draw(s.canvas, r.X, r.Y, data, w, h); err != nil {
		s.mu.Lock()
		s.stats.BitmapErrors++
		s.mu.Unlock()
		s.logger.Warn("bitmap rejected", "err", err, "bytes", len(data))
	}
}

// drawField draws one text field and reports whether it is scrolling.
func (s *Session) drawField(f nav.Field, value string, now time.Time) bool {
	fl := s.layout.Fields[f]
	if fl.Mode == ModeHidden {
		s.scroll[f].Reset()
		return false
	}

	c := s.canvas
	if !fl.Clear.Empty() {
		c.FillRect(fl.Clear.X, fl.Clear.Y, fl.Clear.W, fl.Clear.H, s.layout.Background)
	}

	font := s.fonts.Get(fl.Font)
	width := s.layout.FieldWidth(f)

	if fl.Mode == ModeWrap {
		s.scroll[f].Reset()
		for line, dy := range text.Wrap(value, width, font, text.LineGap) {
			font.Draw(c, fl.X, fl.Y+dy, line, fl.Color)
		}
		return false
	}

	x := fl.X
	if fl.Center {
		if tw := font.Measure(value); tw < width {
			shift := (width - tw) / 2
			x += shift
			width -= shift
		}
	}
	return s.marquee.Draw(c, font, &s.scroll[f], value, x, fl.Y, width, fl.Color, now)
}

func (s *Session) flush(now time.Time) {
	s.lastDraw = now
	if err := s.canvas.Display(); err != nil {
		s.logger.Error("display flush failed", "err", err)
	}

	s.mu.Lock()
	s.stats.Redraws++
	s.mu.Unlock()
}
