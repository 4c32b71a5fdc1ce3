package control

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tvcompanion/host/internal/device"
	apperrors "github.com/tvcompanion/host/internal/errors"
)

// powerOffTimeout bounds the power-off acknowledgement. Devices tear the
// channel down while acknowledging, so a timeout usually means the command
// was delivered anyway.
const powerOffTimeout = 2 * time.Second

// PowerOff powers the device off. It is a no-op with success when the
// device is not currently Active. With checkHdmiSource set and an HDMI
// port configured, a foreground app bound to a different input also makes
// it a no-op with success: the display has been switched away from us and
// is presumably in use. Attribution is stamped before the command so the
// resulting power push is recognized as our own.
func (c *Controller) PowerOff(ctx context.Context, checkHdmiSource bool) bool {
	if c.dev.State() != device.StateActive {
		log.Debug().Str("device", c.dev.Name).Str("state", string(c.dev.State())).
			Msg("power off skipped, device not active")
		return true
	}

	if checkHdmiSource && c.dev.HDMIInput > 0 {
		app := c.dev.ForegroundApp()
		want := fmt.Sprintf(".hdmi%d", c.dev.HDMIInput)
		if app != "" && !strings.HasSuffix(app, want) {
			log.Info().Str("device", c.dev.Name).Str("foreground", app).
				Int("hdmi", c.dev.HDMIInput).
				Msg("power off skipped, display switched to another input")
			return true
		}
	}

	if !c.Connected(ctx, false, c.connectRetries) {
		return false
	}
	s := c.currentSession()
	if s == nil {
		return false
	}

	c.dev.StampPowerOff()

	offCtx, cancel := context.WithTimeout(ctx, powerOffTimeout)
	defer cancel()

	err := s.TurnOff(offCtx)
	if err == nil {
		return true
	}
	if offCtx.Err() == context.DeadlineExceeded {
		// Non-fatal: the acknowledgement raced the channel teardown.
		log.Info().Str("device", c.dev.Name).Err(apperrors.PowerTimeout(c.dev.Name)).
			Msg("power off not acknowledged, assuming delivered")
		return true
	}

	// Protocol rejection. One retry over a fresh session, then fail.
	log.Warn().Err(err).Str("device", c.dev.Name).Msg("power off rejected, retrying once")
	if !c.Connect(ctx, c.connectRetries) {
		return false
	}
	s = c.currentSession()
	if s == nil {
		return false
	}

	c.dev.StampPowerOff()
	retryCtx, cancel2 := context.WithTimeout(ctx, powerOffTimeout)
	defer cancel2()
	if err := s.TurnOff(retryCtx); err != nil && retryCtx.Err() != context.DeadlineExceeded {
		log.Warn().Err(err).Str("device", c.dev.Name).Msg("power off failed")
		return false
	}
	return true
}

// ScreenOff blanks the panel while leaving the device running.
func (c *Controller) ScreenOff(ctx context.Context) error {
	if !c.Connected(ctx, false, c.connectRetries) {
		return apperrors.NoSession(c.dev.Name)
	}
	s := c.currentSession()
	if s == nil {
		return apperrors.NoSession(c.dev.Name)
	}
	return s.TurnScreenOff(ctx)
}

// ScreenOn restores a blanked panel.
func (c *Controller) ScreenOn(ctx context.Context) error {
	if !c.Connected(ctx, false, c.connectRetries) {
		return apperrors.NoSession(c.dev.Name)
	}
	s := c.currentSession()
	if s == nil {
		return apperrors.NoSession(c.dev.Name)
	}
	return s.TurnScreenOn(ctx)
}
