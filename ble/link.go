// Package ble exposes the display session as a BLE peripheral. The phone app
// writes navigation frames to a single characteristic; connection changes
// switch the display between its connected and disconnected layouts.
package ble

import (
	"io"
	"log/slog"
	"sync"
)

const (
	ServiceUUID        = "18199909-f923-426c-9fdd-1e7a884d8aa2"
	CharacteristicUUID = "a37b8b6d-00e9-41db-ad37-9808464cba1b"
)

// Sink receives characteristic writes and link changes.
// *session.Session satisfies it.
type Sink interface {
	io.Writer
	Connect()
	Disconnect()
}

// Advertiser restarts advertising after a central drops.
type Advertiser interface {
	Start() error
}

// Link routes BLE callbacks to a Sink. Callbacks may arrive on the radio
// stack's goroutine; the Sink does its own locking.
type Link struct {
	sink   Sink
	adv    Advertiser
	logger *slog.Logger

	mu       sync.Mutex
	centrals int
	writes   uint32
	bytes    uint32
}

// NewLink creates a Link. A nil logger uses slog.Default().
func NewLink(sink Sink, adv Advertiser, logger *slog.Logger) *Link {
	if logger == nil {
		logger = slog.Default()
	}
	return &Link{
		sink:   sink,
		adv:    adv,
		logger: logger,
	}
}

// OnWrite delivers one characteristic write. Writes are arbitrary chunks of
// the frame stream, typically one ATT MTU each.
func (l *Link) OnWrite(value []byte) {
	l.mu.Lock()
	l.writes++
	l.bytes += uint32(len(value))
	l.mu.Unlock()

	if _, err := l.sink.Write(value); err != nil {
		l.logger.Warn("characteristic write dropped", "err", err, "bytes", len(value))
	}
}

// OnConnect handles a connect or disconnect event. The sink only sees a
// disconnect once the last central has gone. Advertising is restarted on
// every disconnect since the stack stops it when a central connects.
func (l *Link) OnConnect(connected bool) {
	l.mu.Lock()
	if connected {
		l.centrals++
	} else if l.centrals > 0 {
		l.centrals--
	}
	remaining := l.centrals
	writes, received := l.writes, l.bytes
	l.mu.Unlock()

	if connected {
		l.logger.Info("central connected", "centrals", remaining)
		l.sink.Connect()
		return
	}

	l.logger.Info("central disconnected", "centrals", remaining, "writes", writes, "bytes", received)
	if remaining == 0 {
		l.sink.Disconnect()
	}
	if l.adv == nil {
		return
	}
	if err := l.adv.Start(); err != nil {
		l.logger.Error("restart advertising", "err", err)
	}
}
