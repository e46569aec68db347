// Package indicator drives the status LED. The LED mirrors link state
// so the node can be triaged without a serial console.
package indicator

import (
	"context"
	"time"

	"codeberg.org/mutker/sensornode/internal/logger"
	"periph.io/x/periph/conn/gpio"
)

// Link reports whether the network link is currently usable.
type Link interface {
	IsUp() bool
}

type Indicator struct {
	link     Link
	pin      gpio.PinIO
	interval time.Duration
}

func New(link Link, pin gpio.PinIO, interval time.Duration) *Indicator {
	return &Indicator{
		link:     link,
		pin:      pin,
		interval: interval,
	}
}

// Run polls link state until the context is canceled and turns the LED
// off on the way out. A failed pin write only costs one stale blink, so
// it is logged at debug and the loop keeps going.
func (i *Indicator) Run(ctx context.Context) {
	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	logger.Debug().
		Str("pin", i.pin.Name()).
		Dur("interval", i.interval).
		Msg("Indicator started")

	for {
		select {
		case <-ctx.Done():
			if err := i.pin.Out(gpio.Low); err != nil {
				logger.Debug().Err(err).Msg("Failed to clear status LED")
			}
			logger.Debug().Msg("Indicator stopped")
			return
		case <-ticker.C:
			if err := i.pin.Out(gpio.Level(i.link.IsUp())); err != nil {
				logger.Debug().Err(err).Msg("Failed to set status LED")
			}
		}
	}
}
