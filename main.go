//go:build tinygo

package main

import (
	"context"
	"log/slog"
	"machine"

	"github.com/tuffrabit/tinygo-navdisplay/ble"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/config"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/display"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/protocol"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/session"
	"github.com/tuffrabit/tinygo-navdisplay/pkg/storage"
	"github.com/tuffrabit/tinygo-navdisplay/serial"
)

// MAIN THREAD DUTIES
// - load config from flash
// - bring up the display and the session
// - BLE peripheral and USB control protocol feed the session
// - render loop

func main() {
	// Logs go to the UART; USB CDC carries the control protocol.
	logger := slog.New(slog.NewTextHandler(machine.DefaultUART, nil))
	slog.SetDefault(logger)

	ctx := context.Background()

	cfg := config.Default()
	sm, err := storage.New(machine.Flash, true, logger)
	if err != nil {
		logger.Error("storage init failed, using defaults", "err", err)
	} else {
		cfg = sm.LoadOrDefault()
	}
	logger.Info("config loaded", "variant", cfg.Variant.String(), "codec", cfg.Codec.String(), "name", cfg.GetName())

	panel, err := display.New(cfg)
	if err != nil {
		logger.Error("display init failed", "err", err)
		select {}
	}

	sess := session.New(session.Options{
		Canvas: panel,
		Layout: session.LayoutFor(cfg.Variant),
		Config: cfg,
		Logger: logger,
	})

	if _, err := ble.Start(cfg.GetName(), sess, logger); err != nil {
		logger.Error("ble init failed", "err", err)
	}

	if sm != nil {
		handler := protocol.NewHandler(sm, sess, cfg.Variant, logger)
		usb := serial.NewSerial(machine.Serial, handler, logger)
		go func() {
			if err := usb.Handle(ctx); err != nil {
				logger.Error("usb serial stopped", "err", err)
			}
		}()
	}

	sess.Run(ctx)
}
