package control

import (
	"context"

	"github.com/rs/zerolog/log"
)

// HostEvent is a power event on the machine running the daemon.
type HostEvent string

const (
	HostStartup  HostEvent = "startup"
	HostResume   HostEvent = "resume"
	HostShutdown HostEvent = "shutdown"
	HostStandby  HostEvent = "standby"
)

// HandleHostEvent applies the device's policy flags for a host power
// event. Automatic power-on is suppressed when the last observed power-off
// was manual, unless the device opts back in; someone who turned the TV
// off with the remote does not want the daemon turning it on again.
func (c *Controller) HandleHostEvent(ctx context.Context, ev HostEvent) {
	switch ev {
	case HostStartup, HostResume:
		wantOn := (ev == HostStartup && c.dev.PowerOnAfterStartup) ||
			(ev == HostResume && c.dev.PowerOnAfterResume)
		if !wantOn {
			return
		}
		if c.dev.LastOffWasManual() && !c.dev.PowerOnAfterManualOff {
			log.Info().Str("device", c.dev.Name).Str("event", string(ev)).
				Msg("automatic power on suppressed, last power off was manual")
			return
		}
		c.PowerOn(ctx)

	case HostShutdown, HostStandby:
		wantOff := (ev == HostShutdown && c.dev.PowerOffOnShutdown) ||
			(ev == HostStandby && c.dev.PowerOffOnStandby)
		if !wantOff {
			return
		}
		c.PowerOff(ctx, true)
	}
}
