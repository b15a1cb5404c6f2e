// Package protocol implements the binary USB serial protocol used by the host
// companion app. Navigation updates can arrive here as well as over BLE.
//
// Frame format:
//
//	[SYNC:1][CMD:1][LEN:2][PAYLOAD:LEN][CRC:2]
//	- SYNC: 0xAA (frame start marker)
//	- CMD: Command byte
//	- LEN: Payload length (uint16, little-endian)
//	- PAYLOAD: Variable length data
//	- CRC: CRC16-CCITT of [CMD][LEN][PAYLOAD]
//
// Response format is identical, with a status byte in place of CMD.
package protocol

import (
	"encoding/binary"
	"errors"
	"io"
	"log/slog"

	"github.com/tuffrabit/tinygo-navdisplay/pkg/config"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/session"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/storage"
)

const (
	SyncByte = 0xAA

	// MaxPayload bounds a frame payload. A navigation record with a full
	// size colour bitmap must fit.
	MaxPayload = 60000

	// DiscoverReply identifies the device to the host app.
	DiscoverReply = "navdisplay"

	// Command codes (PC → Device)
	CmdNavUpdate       = 0x01
	CmdGetConfig       = 0x02
	CmdSetConfig       = 0x03
	CmdGetStats        = 0x04
	CmdSetLink         = 0x05
	CmdGetStorageStats = 0x07
	CmdPing            = 0x08
	CmdFactoryReset    = 0x09
	CmdGetVersion      = 0x10
	CmdDiscover        = 0x11

	// Response status codes (Device → PC)
	StatusOK              = 0x00
	StatusError           = 0x01
	StatusInvalidCmd      = 0x02
	StatusInvalidData     = 0x03
	StatusNotFound        = 0x04
	StatusNoSpace         = 0x05
	StatusVersionMismatch = 0x06
	StatusCRCError        = 0x07
)

// Firmware version reported by CmdGetVersion.
const (
	FirmwareMajor = 0
	FirmwareMinor = 2
)

var (
	ErrInvalidFrame = errors.New("invalid frame")
	ErrCRCMismatch  = errors.New("CRC mismatch")
)

// Navigator is the display session as seen by the protocol.
type Navigator interface {
	Submit(record []byte)
	Connect()
	Disconnect()
	ApplyConfig(cfg config.DeviceConfig) error
	Stats() session.Stats
}

// Handler processes protocol commands.
type Handler struct {
	storage *storage.Manager
	nav     Navigator
	variant config.Variant
	logger  *slog.Logger
}

// NewHandler creates a new protocol handler. variant is the display the
// firmware is running; a config selecting another one needs a restart.
func NewHandler(sm *storage.Manager, nav Navigator, variant config.Variant, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		storage: sm,
		nav:     nav,
		variant: variant,
		logger:  logger,
	}
}

// Frame represents a protocol frame.
type Frame struct {
	Cmd     uint8
	Payload []byte
}

// Response represents a protocol response.
type Response struct {
	Status  uint8
	Payload []byte
}

// ReadFrame reads and validates a frame from the reader.
func ReadFrame(r io.Reader) (*Frame, error) {
	sync := make([]byte, 1)
	if _, err := io.ReadFull(r, sync); err != nil {
		return nil, err
	}
	if sync[0] != SyncByte {
		return nil, ErrInvalidFrame
	}

	// Header: cmd + len
	header := make([]byte, 3)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	cmd := header[0]
	length := binary.LittleEndian.Uint16(header[1:])
	if length > MaxPayload {
		return nil, ErrInvalidFrame
	}

	var payload []byte
	if length > 0 {
		payload = make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}

	crcBytes := make([]byte, 2)
	if _, err := io.ReadFull(r, crcBytes); err != nil {
		return nil, err
	}
	receivedCRC := binary.LittleEndian.Uint16(crcBytes)

	if receivedCRC != calcCRC(append(header, payload...)) {
		return nil, ErrCRCMismatch
	}

	return &Frame{
		Cmd:     cmd,
		Payload: payload,
	}, nil
}

// WriteResponse writes a response frame to the writer.
func WriteResponse(w io.Writer, resp *Response) error {
	_, err := w.Write(encode(resp.Status, resp.Payload))
	return err
}

// WriteFrame writes a request frame (host side and tests).
func WriteFrame(w io.Writer, frame *Frame) error {
	_, err := w.Write(encode(frame.Cmd, frame.Payload))
	return err
}

// ReadResponse reads a response frame (host side and tests).
func ReadResponse(r io.Reader) (*Response, error) {
	f, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	return &Response{Status: f.Cmd, Payload: f.Payload}, nil
}

// encode builds [SYNC][code][LEN][PAYLOAD][CRC].
func encode(code uint8, payload []byte) []byte {
	payloadLen := uint16(len(payload))
	buf := make([]byte, 0, 1+1+2+int(payloadLen)+2)

	buf = append(buf, SyncByte, code)
	buf = binary.LittleEndian.AppendUint16(buf, payloadLen)
	buf = append(buf, payload...)

	// CRC skips the sync byte
	return binary.LittleEndian.AppendUint16(buf, calcCRC(buf[1:]))
}

// Handle processes a command frame and returns a response.
func (h *Handler) Handle(frame *Frame) *Response {
	var resp *Response
	switch frame.Cmd {
	case CmdNavUpdate:
		resp = h.handleNavUpdate(frame.Payload)
	case CmdPing:
		resp = h.handlePing(frame.Payload)
	case CmdGetConfig:
		resp = h.handleGetConfig()
	case CmdSetConfig:
		resp = h.handleSetConfig(frame.Payload)
	case CmdGetStats:
		resp = h.handleGetStats()
	case CmdSetLink:
		resp = h.handleSetLink(frame.Payload)
	case CmdGetStorageStats:
		resp = h.handleGetStorageStats()
	case CmdFactoryReset:
		resp = h.handleFactoryReset()
	case CmdGetVersion:
		resp = h.handleGetVersion()
	case CmdDiscover:
		resp = &Response{Status: StatusOK, Payload: []byte(DiscoverReply)}
	default:
		resp = &Response{Status: StatusInvalidCmd}
	}

	h.logger.Debug("command handled",
		"cmd", CommandName(frame.Cmd),
		"len", len(frame.Payload),
		"status", StatusName(resp.Status))
	return resp
}

// handleNavUpdate passes a bare navigation record to the session.
// Payload: [BITMAP][';'][TITLE]['|'][ETA]['|'][DISTANCE]
func (h *Handler) handleNavUpdate(payload []byte) *Response {
	if len(payload) == 0 {
		return &Response{Status: StatusInvalidData}
	}
	h.nav.Submit(payload)
	return &Response{Status: StatusOK}
}

// handlePing responds with the same payload (echo).
func (h *Handler) handlePing(payload []byte) *Response {
	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// handleGetConfig returns the stored device configuration.
func (h *Handler) handleGetConfig() *Response {
	var cfg config.DeviceConfig
	if err := h.storage.LoadConfig(&cfg); err != nil {
		if errors.Is(err, storage.ErrConfigNotFound) {
			return &Response{Status: StatusNotFound}
		}
		return &Response{Status: StatusError}
	}

	data, err := cfg.MarshalBinary()
	if err != nil {
		return &Response{Status: StatusError}
	}

	return &Response{
		Status:  StatusOK,
		Payload: data,
	}
}

// handleSetConfig stores and applies a device configuration.
// Payload: [DeviceConfig:30 bytes]
// Response: [RestartRequired:1]
func (h *Handler) handleSetConfig(payload []byte) *Response {
	if len(payload) != config.DeviceConfigSize {
		return &Response{Status: StatusInvalidData}
	}

	var cfg config.DeviceConfig
	if err := cfg.UnmarshalBinary(payload); err != nil {
		return &Response{Status: StatusInvalidData}
	}
	if cfg.Version != config.CurrentVersion {
		return &Response{Status: StatusVersionMismatch}
	}

	if err := h.storage.SaveConfig(&cfg); err != nil {
		if errors.Is(err, config.ErrInvalidConfig) {
			return &Response{Status: StatusInvalidData}
		}
		return &Response{Status: StatusError}
	}
	if err := h.nav.ApplyConfig(cfg); err != nil {
		return &Response{Status: StatusError}
	}

	var restart uint8
	if cfg.Variant != h.variant {
		restart = 1
	}
	return &Response{Status: StatusOK, Payload: []byte{restart}}
}

// handleGetStats returns the session counters.
// Response: [Bytes:4][Records:4][Overflows:4][Superseded:4]
// [Decoded:4][Malformed:4][Redraws:4][BitmapErrors:4]
func (h *Handler) handleGetStats() *Response {
	st := h.nav.Stats()

	payload := make([]byte, 0, 32)
	for _, v := range []uint32{
		st.Frame.Bytes,
		st.Frame.Records,
		st.Frame.Overflows,
		st.Frame.Superseded,
		st.Decoded,
		st.Malformed,
		st.Redraws,
		st.BitmapErrors,
	} {
		payload = binary.LittleEndian.AppendUint32(payload, v)
	}

	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// handleSetLink lets a host driving the display over USB report its link.
// Payload: [Connected:1]
func (h *Handler) handleSetLink(payload []byte) *Response {
	if len(payload) != 1 {
		return &Response{Status: StatusInvalidData}
	}
	if payload[0] != 0 {
		h.nav.Connect()
	} else {
		h.nav.Disconnect()
	}
	return &Response{Status: StatusOK}
}

// handleGetStorageStats returns storage statistics.
// Response: [Total:4][Used:4][Free:4][HasConfig:1]
func (h *Handler) handleGetStorageStats() *Response {
	stats, err := h.storage.GetStats()
	if err != nil {
		return &Response{Status: StatusError}
	}

	payload := make([]byte, 13)
	binary.LittleEndian.PutUint32(payload[0:], uint32(stats.TotalSpace))
	binary.LittleEndian.PutUint32(payload[4:], uint32(stats.UsedSpace))
	binary.LittleEndian.PutUint32(payload[8:], uint32(stats.FreeSpace))
	if stats.HasConfig {
		payload[12] = 1
	}

	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// handleFactoryReset wipes the stored configuration and applies defaults.
func (h *Handler) handleFactoryReset() *Response {
	if err := h.storage.Wipe(); err != nil {
		return &Response{Status: StatusError}
	}
	if err := h.nav.ApplyConfig(config.Default()); err != nil {
		return &Response{Status: StatusError}
	}
	return &Response{Status: StatusOK}
}

// handleGetVersion returns firmware and config version info.
// Response: [FirmwareVersionMajor:1][FirmwareVersionMinor:1][ConfigVersion:2]
func (h *Handler) handleGetVersion() *Response {
	payload := make([]byte, 4)
	payload[0] = FirmwareMajor
	payload[1] = FirmwareMinor
	binary.LittleEndian.PutUint16(payload[2:], config.CurrentVersion)

	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// calcCRC calculates CRC16-CCITT.
// Polynomial: 0x1021, Initial: 0xFFFF
func calcCRC(data []byte) uint16 {
	var crc uint16 = 0xFFFF

	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}

	return crc
}
