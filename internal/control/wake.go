package control

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultWakeAttempts is the bounded attempt count for the wake retry
// protocol when the caller does not specify one.
const DefaultWakeAttempts = 5

// minAttemptSpacing is the minimum gap between consecutive wake attempts,
// measured from attempt start to attempt start. Waking displays drop the
// first connection attempts; hammering them faster than this does not help.
const minAttemptSpacing = 2000 * time.Millisecond

// WakeAndConnect waits wakeDelay, sends the network wake signal, waits
// connectDelay, then attempts one connection with a single retry. A missing
// hardware address is logged and treated as a failed wake, not an error;
// the connection attempt still runs because the device may already be up.
func (c *Controller) WakeAndConnect(ctx context.Context, wakeDelay, connectDelay time.Duration) bool {
	c.clock.Sleep(ctx, wakeDelay)

	if c.dev.HardwareAddr == "" {
		log.Warn().Str("device", c.dev.Name).
			Msg("no hardware address configured, skipping wake signal")
	} else if c.wake == nil {
		log.Warn().Str("device", c.dev.Name).Msg("no wake sender configured")
	} else if err := c.wake.SendWakeSignal(c.dev.HardwareAddr); err != nil {
		log.Warn().Err(err).Str("device", c.dev.Name).
			Str("hwaddr", c.dev.HardwareAddr).Msg("wake signal failed")
	}

	c.clock.Sleep(ctx, connectDelay)

	if !c.Connect(ctx, 2) {
		return false
	}
	c.setJustWoken(true)
	return true
}

// WakeAndConnectWithRetries runs WakeAndConnect up to maxAttempts times
// (DefaultWakeAttempts when <= 0) and stops at the first success. The
// first iteration uses the configured wake delay; later iterations use
// zero, the device is assumed to be waking already. After a failed attempt
// the wait is padded so consecutive attempt starts are spaced at least
// minAttemptSpacing apart, accounting for the time the attempt consumed.
func (c *Controller) WakeAndConnectWithRetries(ctx context.Context, maxAttempts int) bool {
	if maxAttempts <= 0 {
		maxAttempts = DefaultWakeAttempts
	}

	for i := 0; i < maxAttempts; i++ {
		start := c.clock.Now()

		wakeDelay := c.wakeDelay
		if i > 0 {
			wakeDelay = 0
		}

		if c.WakeAndConnect(ctx, wakeDelay, c.connectDelay) {
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		if i < maxAttempts-1 {
			if pad := minAttemptSpacing - c.clock.Now().Sub(start); pad > 0 {
				c.clock.Sleep(ctx, pad)
			}
		}
	}

	log.Warn().Str("device", c.dev.Name).Int("attempts", maxAttempts).
		Msg("wake retry protocol exhausted")
	return false
}

// PowerOn wakes the device over the network and reconnects. It respects
// manual-off attribution only through HandleHostEvent; a direct PowerOn
// call is always honored.
func (c *Controller) PowerOn(ctx context.Context) bool {
	return c.WakeAndConnectWithRetries(ctx, DefaultWakeAttempts)
}
