package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"testing"

	"github.com/tuffrabit/tinygo-navdisplay/pkg/config"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/session"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/storage"

	"tinygo.org/x/tinyfs"
)

// fakeNavigator records the calls the handler makes.
type fakeNavigator struct {
	records   [][]byte
	connected bool
	applied   []config.DeviceConfig
	stats     session.Stats
}

func (f *fakeNavigator) Submit(record []byte) { f.records = append(f.records, record) }
func (f *fakeNavigator) Connect() { f.connected = true }
func (f *fakeNavigator) Disconnect() { f.connected = false }
func (f *fakeNavigator) Stats() session.Stats { return f.stats }

func (f *fakeNavigator) ApplyConfig(cfg config.DeviceConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	f.applied = append(f.applied, cfg)
	return nil
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestHandler(t *testing.T) (*Handler, *storage.Manager, *fakeNavigator) {
	blockDev := tinyfs.NewMemoryDevice(256, 4096, 64)
	mgr, err := storage.New(blockDev, true, quiet)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	nav := &fakeNavigator{}
	return NewHandler(mgr, nav, config.VariantOLED128, quiet), mgr, nav
}

func TestFrameEncodingDecoding(t *testing.T) {
	original := &Frame{
		Cmd:     CmdGetConfig,
		Payload: []byte{1, 2, 3, 4},
	}

	var buf bytes.Buffer
	if err := WriteFrame(&buf, original); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	decoded, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	if decoded.Cmd != original.Cmd {
		t.Errorf("Cmd: expected 0x%x, got 0x%x", original.Cmd, decoded.Cmd)
	}
	if !bytes.Equal(decoded.Payload, original.Payload) {
		t.Errorf("Payload: expected %v, got %v", original.Payload, decoded.Payload)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteResponse(&buf, &Response{Status: StatusNotFound, Payload: []byte{9}}); err != nil {
		t.Fatalf("WriteResponse failed: %v", err)
	}
	resp, err := ReadResponse(&buf)
	if err != nil {
		t.Fatalf("ReadResponse failed: %v", err)
	}
	if resp.Status != StatusNotFound || !bytes.Equal(resp.Payload, []byte{9}) {
		t.Errorf("Response: unexpected %+v", resp)
	}
}

func TestLargeNavFrame(t *testing.T) {
	// A 132x132 RGB bitmap plus text
	payload := make([]byte, 132*132*3+20)
	var buf bytes.Buffer
	WriteFrame(&buf, &Frame{Cmd: CmdNavUpdate, Payload: payload})

	f, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if len(f.Payload) != len(payload) {
		t.Errorf("Payload length: expected %d, got %d", len(payload), len(f.Payload))
	}
}

func TestOversizedFrame(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteByte(SyncByte)
	buf.WriteByte(CmdNavUpdate)
	lenBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(lenBytes, MaxPayload+1)
	buf.Write(lenBytes)

	if _, err := ReadFrame(buf); err != ErrInvalidFrame {
		t.Errorf("Expected ErrInvalidFrame, got %v", err)
	}
}

func TestPingCommand(t *testing.T) {
	handler, mgr, _ := newTestHandler(t)
	defer mgr.Close()

	resp := handler.Handle(&Frame{
		Cmd:     CmdPing,
		Payload: []byte{0xAA, 0xBB, 0xCC},
	})
	if resp.Status != StatusOK {
		t.Errorf("Expected StatusOK, got 0x%x", resp.Status)
	}
	if !bytes.Equal(resp.Payload, []byte{0xAA, 0xBB, 0xCC}) {
		t.Errorf("Expected echo, got %v", resp.Payload)
	}
}

func TestNavUpdate(t *testing.T) {
	handler, mgr, nav := newTestHandler(t)
	defer mgr.Close()

	record := []byte("\x01\x02;Main St|12:30|200 m")
	resp := handler.Handle(&Frame{Cmd: CmdNavUpdate, Payload: record})
	if resp.Status != StatusOK {
		t.Fatalf("Expected StatusOK, got 0x%x", resp.Status)
	}
	if len(nav.records) != 1 || !bytes.Equal(nav.records[0], record) {
		t.Errorf("Records: expected %q, got %q", record, nav.records)
	}

	resp = handler.Handle(&Frame{Cmd: CmdNavUpdate})
	if resp.Status != StatusInvalidData {
		t.Errorf("Empty update: expected StatusInvalidData, got 0x%x", resp.Status)
	}
}

func TestGetSetConfig(t *testing.T) {
	handler, mgr, nav := newTestHandler(t)
	defer mgr.Close()

	resp := handler.Handle(&Frame{Cmd: CmdGetConfig})
	if resp.Status != StatusNotFound {
		t.Errorf("Expected StatusNotFound before any save, got 0x%x", resp.Status)
	}

	cfg := config.Default()
	cfg.ScrollCycleMs = 5000
	data, _ := cfg.MarshalBinary()

	resp = handler.Handle(&Frame{Cmd: CmdSetConfig, Payload: data})
	if resp.Status != StatusOK {
		t.Fatalf("SetConfig: expected StatusOK, got 0x%x", resp.Status)
	}
	if !bytes.Equal(resp.Payload, []byte{0}) {
		t.Errorf("Restart flag: expected 0, got %v", resp.Payload)
	}
	if len(nav.applied) != 1 || nav.applied[0].ScrollCycleMs != 5000 {
		t.Errorf("Applied: unexpected %+v", nav.applied)
	}

	resp = handler.Handle(&Frame{Cmd: CmdGetConfig})
	if resp.Status != StatusOK {
		t.Fatalf("GetConfig: expected StatusOK, got 0x%x", resp.Status)
	}
	var loaded config.DeviceConfig
	if err := loaded.UnmarshalBinary(resp.Payload); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}
	if loaded.ScrollCycleMs != 5000 {
		t.Errorf("ScrollCycleMs: expected 5000, got %d", loaded.ScrollCycleMs)
	}
}

func TestSetConfigVariantNeedsRestart(t *testing.T) {
	handler, mgr, _ := newTestHandler(t)
	defer mgr.Close()

	cfg := config.Default()
	cfg.Variant = config.VariantTFT240
	data, _ := cfg.MarshalBinary()

	resp := handler.Handle(&Frame{Cmd: CmdSetConfig, Payload: data})
	if resp.Status != StatusOK {
		t.Fatalf("Expected StatusOK, got 0x%x", resp.Status)
	}
	if !bytes.Equal(resp.Payload, []byte{1}) {
		t.Errorf("Restart flag: expected 1, got %v", resp.Payload)
	}
}

func TestSetConfigRejects(t *testing.T) {
	handler, mgr, nav := newTestHandler(t)
	defer mgr.Close()

	tests := []struct {
		name     string
		mutate   func(*config.DeviceConfig)
		expected uint8
	}{
		{"wrong version", func(c *config.DeviceConfig) { c.Version = config.CurrentVersion + 1 }, StatusVersionMismatch},
		{"bad scale", func(c *config.DeviceConfig) { c.Scale = 9 }, StatusInvalidData},
		{"zero cycle", func(c *config.DeviceConfig) { c.ScrollCycleMs = 0 }, StatusInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			data, _ := cfg.MarshalBinary()
			resp := handler.Handle(&Frame{Cmd: CmdSetConfig, Payload: data})
			if resp.Status != tt.expected {
				t.Errorf("Status: expected %s, got %s", StatusName(tt.expected), StatusName(resp.Status))
			}
		})
	}

	resp := handler.Handle(&Frame{Cmd: CmdSetConfig, Payload: []byte{1, 2, 3}})
	if resp.Status != StatusInvalidData {
		t.Errorf("Short payload: expected StatusInvalidData, got 0x%x", resp.Status)
	}
	if len(nav.applied) != 0 {
		t.Errorf("Expected nothing applied, got %d configs", len(nav.applied))
	}
}

func TestGetStats(t *testing.T) {
	handler, mgr, nav := newTestHandler(t)
	defer mgr.Close()

	nav.stats.Frame.Bytes = 1000
	nav.stats.Frame.Records = 4
	nav.stats.Frame.Overflows = 1
	nav.stats.Malformed = 2
	nav.stats.Redraws = 7

	resp := handler.Handle(&Frame{Cmd: CmdGetStats})
	if resp.Status != StatusOK {
		t.Fatalf("Expected StatusOK, got 0x%x", resp.Status)
	}
	if len(resp.Payload) != 32 {
		t.Fatalf("Payload: expected 32 bytes, got %d", len(resp.Payload))
	}

	field := func(i int) uint32 { return binary.LittleEndian.Uint32(resp.Payload[i*4:]) }
	if field(0) != 1000 || field(1) != 4 || field(2) != 1 || field(5) != 2 || field(6) != 7 {
		t.Errorf("Stats: unexpected payload %v", resp.Payload)
	}
}

func TestSetLink(t *testing.T) {
	handler, mgr, nav := newTestHandler(t)
	defer mgr.Close()

	handler.Handle(&Frame{Cmd: CmdSetLink, Payload: []byte{1}})
	if !nav.connected {
		t.Error("Expected Connect")
	}
	handler.Handle(&Frame{Cmd: CmdSetLink, Payload: []byte{0}})
	if nav.connected {
		t.Error("Expected Disconnect")
	}

	resp := handler.Handle(&Frame{Cmd: CmdSetLink})
	if resp.Status != StatusInvalidData {
		t.Errorf("Expected StatusInvalidData, got 0x%x", resp.Status)
	}
}

func TestStorageStats(t *testing.T) {
	handler, mgr, _ := newTestHandler(t)
	defer mgr.Close()

	resp := handler.Handle(&Frame{Cmd: CmdGetStorageStats})
	if resp.Status != StatusOK {
		t.Fatalf("Expected StatusOK, got 0x%x", resp.Status)
	}
	if len(resp.Payload) != 13 {
		t.Fatalf("Expected 13 byte payload, got %d", len(resp.Payload))
	}

	total := binary.LittleEndian.Uint32(resp.Payload[0:])
	used := binary.LittleEndian.Uint32(resp.Payload[4:])
	free := binary.LittleEndian.Uint32(resp.Payload[8:])
	if total != 256*1024 {
		t.Errorf("Total: expected %d, got %d", 256*1024, total)
	}
	if used+free != total {
		t.Errorf("Used + free should equal total: %d + %d != %d", used, free, total)
	}
	if resp.Payload[12] != 0 {
		t.Error("Expected no stored config")
	}
}

func TestFactoryReset(t *testing.T) {
	handler, mgr, nav := newTestHandler(t)
	defer mgr.Close()

	cfg := config.Default()
	cfg.Brightness = 1
	mgr.SaveConfig(&cfg)

	resp := handler.Handle(&Frame{Cmd: CmdFactoryReset})
	if resp.Status != StatusOK {
		t.Fatalf("Expected StatusOK, got 0x%x", resp.Status)
	}
	if mgr.HasConfig() {
		t.Error("Expected config to be wiped")
	}
	if len(nav.applied) != 1 || nav.applied[0] != config.Default() {
		t.Errorf("Expected defaults applied, got %+v", nav.applied)
	}
}

func TestGetVersion(t *testing.T) {
	handler, mgr, _ := newTestHandler(t)
	defer mgr.Close()

	resp := handler.Handle(&Frame{Cmd: CmdGetVersion})
	if resp.Status != StatusOK {
		t.Fatalf("Expected StatusOK, got 0x%x", resp.Status)
	}
	if len(resp.Payload) != 4 {
		t.Fatalf("Expected 4 byte payload, got %d", len(resp.Payload))
	}
	if resp.Payload[0] != FirmwareMajor || resp.Payload[1] != FirmwareMinor {
		t.Errorf("Firmware: expected %d.%d, got %d.%d", FirmwareMajor, FirmwareMinor, resp.Payload[0], resp.Payload[1])
	}
	if v := binary.LittleEndian.Uint16(resp.Payload[2:]); v != config.CurrentVersion {
		t.Errorf("Config version: expected %d, got %d", config.CurrentVersion, v)
	}
}

func TestInvalidCommand(t *testing.T) {
	handler, mgr, _ := newTestHandler(t)
	defer mgr.Close()

	resp := handler.Handle(&Frame{Cmd: 0xFF})
	if resp.Status != StatusInvalidCmd {
		t.Errorf("Expected StatusInvalidCmd, got 0x%x", resp.Status)
	}
}

func TestCRCMismatch(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteByte(SyncByte)
	buf.WriteByte(CmdPing)
	lenBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(lenBytes, 0)
	buf.Write(lenBytes)
	// Wrong CRC
	buf.Write([]byte{0xFF, 0xFF})

	_, err := ReadFrame(buf)
	if err != ErrCRCMismatch {
		t.Errorf("Expected ErrCRCMismatch, got %v", err)
	}
}

func TestInvalidFrame(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteByte(0x55) // Wrong sync

	_, err := ReadFrame(buf)
	if err != ErrInvalidFrame {
		t.Errorf("Expected ErrInvalidFrame, got %v", err)
	}
}

func TestDiscoverCommand(t *testing.T) {
	handler, mgr, _ := newTestHandler(t)
	defer mgr.Close()

	resp := handler.Handle(&Frame{Cmd: CmdDiscover})
	if resp.Status != StatusOK {
		t.Fatalf("CmdDiscover failed: status 0x%x", resp.Status)
	}
	if string(resp.Payload) != DiscoverReply {
		t.Errorf("Expected payload '%s', got '%s'", DiscoverReply, string(resp.Payload))
	}
}

func TestNames(t *testing.T) {
	if CommandName(CmdNavUpdate) != "NavUpd" {
		t.Errorf("CommandName: expected NavUpd, got %s", CommandName(CmdNavUpdate))
	}
	if CommandName(0xEE) != "CmdEE" {
		t.Errorf("CommandName: expected CmdEE, got %s", CommandName(0xEE))
	}
	if StatusName(StatusCRCError) != "CRC" {
		t.Errorf("StatusName: expected CRC, got %s", StatusName(StatusCRCError))
	}
	if got := Hex(CmdPing, []byte{1, 2, 3, 4, 5, 6}, 4); got != "AA 08 0600 01020304.." {
		t.Errorf("Hex: unexpected %q", got)
	}
	if got := Hex(CmdPing, nil, 4); got != "AA 08 0000" {
		t.Errorf("Hex: unexpected %q", got)
	}
}
