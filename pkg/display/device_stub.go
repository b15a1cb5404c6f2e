//go:build !tinygo

package display

import (
	"errors"

	"github.com/tuffrabit/tinygo-navdisplay/pkg/config"
)

// ErrUnknownVariant is returned for a variant without hardware support.
var ErrUnknownVariant = errors.New("unknown display variant")

// ErrNoHardware is returned when built without TinyGo.
// Host builds render into a Framebuffer instead.
var ErrNoHardware = errors.New("display hardware requires tinygo")

// New is unavailable on host builds.
func New(cfg config.DeviceConfig) (*Panel, error) {
	if cfg.Variant > config.VariantTFT240 {
		return nil, ErrUnknownVariant
	}
	return nil, ErrNoHardware
}
