package control

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"

	apperrors "github.com/tvcompanion/host/internal/errors"
	"github.com/tvcompanion/host/internal/preset"
	"github.com/tvcompanion/host/internal/transport"
)

// Well-known application ids that receive built-in launch parameter
// payloads when advanced actions are enabled and the preset carries none.
const (
	appSoftwareUpdate = "com.webos.app.softwareupdate"
	appFactoryMenu    = "com.webos.app.factorywin"
)

// defaultStepDelay is the inter-step delay applied after a raw
// remote-control key press that carries no explicit delay.
const defaultStepDelay = 180 * time.Millisecond

// ExecutePreset runs a preset against the device. The wake retry protocol
// runs first when the script asks for it; the body then gets up to two
// attempts, the second always forcing a fresh reconnect. Failures are
// logged and reported as false, never raised.
func (c *Controller) ExecutePreset(ctx context.Context, p *preset.Preset, forceReconnect bool) bool {
	ok := c.executePreset(ctx, p, forceReconnect)
	if c.audit != nil {
		c.audit.RecordPresetRun(c.dev.Name, p.Name, ok, c.clock.Now())
	}
	c.setJustWoken(false)
	return ok
}

func (c *Controller) executePreset(ctx context.Context, p *preset.Preset, forceReconnect bool) bool {
	if p.HasWakeStep() {
		if !c.WakeAndConnectWithRetries(ctx, DefaultWakeAttempts) {
			log.Warn().Str("device", c.dev.Name).Str("preset", p.Name).
				Msg("preset aborted, device did not wake")
			return false
		}
	}

	for attempt := 0; attempt < 2; attempt++ {
		reconnect := forceReconnect || attempt > 0
		if !c.Connected(ctx, reconnect, c.connectRetries) {
			continue
		}
		s := c.currentSession()
		if s == nil {
			continue
		}

		if p.AppID != "" {
			params := c.launchParams(p)
			if err := s.LaunchApp(ctx, p.AppID, params); err != nil {
				log.Warn().Err(err).Str("device", c.dev.Name).Str("app", p.AppID).
					Int("attempt", attempt+1).Msg("app launch failed")
				continue
			}
			if c.wasJustWoken() {
				c.clock.Sleep(ctx, appSettleDelay)
			}
		}

		if len(p.Steps) > 0 {
			if p.AppID != "" {
				c.clock.Sleep(ctx, stepsAfterLaunchDelay)
			}
			if err := c.runSteps(ctx, s, p); err != nil {
				log.Warn().Err(err).Str("device", c.dev.Name).Str("preset", p.Name).
					Int("attempt", attempt+1).Msg("step sequence failed")
				continue
			}
		}

		log.Info().Str("device", c.dev.Name).Str("preset", p.Name).Msg("preset executed")
		return true
	}

	return false
}

// launchParams computes app launch parameters: explicit preset parameters
// win; otherwise two well-known app ids get hard-coded payloads when
// advanced actions are enabled. The factory menu sub-mode is chosen by
// whether the preset name mentions ezadjust.
func (c *Controller) launchParams(p *preset.Preset) map[string]any {
	if len(p.AppParams) > 0 {
		return p.AppParams
	}
	if !c.advanced {
		return nil
	}

	switch p.AppID {
	case appSoftwareUpdate:
		return map[string]any{"mode": "user", "flagUpdate": true}
	case appFactoryMenu:
		irKey := "inStart"
		if strings.Contains(strings.ToLower(p.Name), "ezadjust") {
			irKey = "ezAdjust"
		}
		return map[string]any{"id": "executeFactory", "irKey": irKey}
	}
	return nil
}

// runSteps executes the step tokens in order, no parallelism. A pointer
// channel for raw key presses is acquired lazily, once per run, and reused
// for subsequent raw-key steps.
func (c *Controller) runSteps(ctx context.Context, s transport.Session, p *preset.Preset) error {
	var pointer transport.Pointer
	defer func() {
		if pointer != nil {
			_ = pointer.Close()
		}
	}()

	for _, token := range p.Steps {
		// The wake marker was consumed before the body ran.
		if token == preset.StepWake {
			continue
		}

		st := preset.ParseStep(token)
		delay := st.Delay

		// One registry pass resolves and runs the step; an unknown name
		// falls through to the handler or the raw key path.
		handled := false
		if _, err := c.registry.Execute(ctx, st.Key, st.Params); err == nil {
			handled = true
		} else if !apperrors.IsCode(err, apperrors.CodeActionNotFound) {
			return err
		} else if c.stepHandler != nil && len(st.Params) > 0 {
			h, herr := c.stepHandler(st.Key, st.Params)
			if herr != nil {
				return herr
			}
			handled = h
		}

		if !handled {
			// Raw remote-control key.
			if pointer == nil {
				var err error
				if pointer, err = s.PointerChannel(ctx); err != nil {
					return err
				}
			}
			if err := pointer.SendButton(ctx, NormalizeKey(st.Key)); err != nil {
				return err
			}
			if !st.HasDelay {
				delay = defaultStepDelay
			}
		}

		if delay > 0 {
			c.clock.Sleep(ctx, delay)
		}
	}

	return nil
}

// NormalizeKey turns a step token into a remote-control key identifier:
// uppercased, and prefixed with an underscore when it starts with a digit,
// since key identifiers cannot begin with one.
func NormalizeKey(key string) string {
	k := strings.ToUpper(key)
	if k != "" && unicode.IsDigit(rune(k[0])) {
		k = "_" + k
	}
	return k
}
