//go:build tinygo

package ble

import (
	"fmt"
	"log/slog"

	"tinygo.org/x/bluetooth"
)

// Peripheral advertises the navigation service and owns the GATT
// characteristic the phone writes frames to.
type Peripheral struct {
	adapter *bluetooth.Adapter
	adv     *bluetooth.Advertisement
	char    bluetooth.Characteristic
	link    *Link
}

// Start enables the default adapter, registers the service and begins
// advertising under name. A nil logger uses slog.Default().
func Start(name string, sink Sink, logger *slog.Logger) (*Peripheral, error) {
	if logger == nil {
		logger = slog.Default()
	}
	serviceUUID, err := bluetooth.ParseUUID(ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("service uuid: %w", err)
	}
	charUUID, err := bluetooth.ParseUUID(CharacteristicUUID)
	if err != nil {
		return nil, fmt.Errorf("characteristic uuid: %w", err)
	}

	p := &Peripheral{
		adapter: bluetooth.DefaultAdapter,
	}
	if err := p.adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enable adapter: %w", err)
	}

	p.adv = p.adapter.DefaultAdvertisement()
	p.link = NewLink(sink, p.adv, logger)

	p.adapter.SetConnectHandler(func(_ bluetooth.Device, connected bool) {
		p.link.OnConnect(connected)
	})

	err = p.adapter.AddService(&bluetooth.Service{
		UUID: serviceUUID,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &p.char,
				UUID:   charUUID,
				Flags:  bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicWriteWithoutResponsePermission,
				WriteEvent: func(_ bluetooth.Connection, _ int, value []byte) {
					p.link.OnWrite(value)
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("add service: %w", err)
	}

	err = p.adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    name,
		ServiceUUIDs: []bluetooth.UUID{serviceUUID},
	})
	if err != nil {
		return nil, fmt.Errorf("configure advertisement: %w", err)
	}
	if err := p.adv.Start(); err != nil {
		return nil, fmt.Errorf("start advertisement: %w", err)
	}

	logger.Info("advertising", "name", name, "service", ServiceUUID)
	return p, nil
}
