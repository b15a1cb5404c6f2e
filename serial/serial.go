// Package serial runs the control protocol over the USB CDC port.
package serial

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/tuffrabit/tinygo-navdisplay/pkg/protocol"
)

// idleDelay is how long to wait when the port has no data.
const idleDelay = time.Millisecond

// Port is the byte interface of machine.Serialer.
type Port interface {
	ReadByte() (byte, error)
	Write(p []byte) (int, error)
}

// Serial reads protocol frames from a port and answers them.
type Serial struct {
	port    Port
	handler *protocol.Handler
	logger  *slog.Logger
}

// NewSerial creates a Serial. A nil logger uses slog.Default().
func NewSerial(port Port, handler *protocol.Handler, logger *slog.Logger) *Serial {
	if logger == nil {
		logger = slog.Default()
	}
	return &Serial{
		port:    port,
		handler: handler,
		logger:  logger,
	}
}

// Handle serves frames until ctx is done or the port reports io.EOF.
// Bytes that do not start a frame are skipped, so the loop resynchronises on
// the next sync byte after line noise.
func (s *Serial) Handle(ctx context.Context) error {
	r := &portReader{port: s.port, ctx: ctx}
	for {
		frame, err := protocol.ReadFrame(r)
		switch {
		case err == nil:
		case errors.Is(err, protocol.ErrInvalidFrame):
			s.logger.Debug("skipping byte outside frame")
			continue
		case errors.Is(err, protocol.ErrCRCMismatch):
			s.logger.Warn("frame CRC mismatch")
			if err := s.reply(&protocol.Response{Status: protocol.StatusCRCError}); err != nil {
				return err
			}
			continue
		default:
			return err
		}

		s.logger.Debug("frame in", "hex", protocol.Hex(frame.Cmd, frame.Payload, 8))
		if err := s.reply(s.handler.Handle(frame)); err != nil {
			return err
		}
	}
}

func (s *Serial) reply(resp *protocol.Response) error {
	s.logger.Debug("frame out", "hex", protocol.Hex(resp.Status, resp.Payload, 8))
	return protocol.WriteResponse(s.port, resp)
}

// portReader adapts a polled Port to io.Reader.
type portReader struct {
	port Port
	ctx  context.Context
}

// Read blocks until one byte is available and returns it. The port is
// polled because machine.Serialer has no blocking read.
func (r *portReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		b, err := r.port.ReadByte()
		if err == nil {
			p[0] = b
			return 1, nil
		}
		if errors.Is(err, io.EOF) {
			return 0, err
		}
		if err := r.ctx.Err(); err != nil {
			return 0, err
		}
		time.Sleep(idleDelay)
	}
}
