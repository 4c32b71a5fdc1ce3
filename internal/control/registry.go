package control

import (
	"context"
	"fmt"
	"strings"

	"github.com/tvcompanion/host/internal/actions"
	apperrors "github.com/tvcompanion/host/internal/errors"
	"github.com/tvcompanion/host/internal/preset"
)

func lowerKey(name string) string {
	return strings.ToLower(name)
}

// buildRegistry assembles the built-in action set for one device. The set
// covers the standard picture and sound settings, the power functions, and
// one device-config key; presets register on top of it afterwards.
func buildRegistry(c *Controller) *actions.Registry {
	r := actions.NewRegistry(c)

	// The four core picture settings. Their cached values are fed by the
	// picture-settings push channel, not the post-apply cache.
	for _, s := range []struct{ name, title string }{
		{"backlight", "Backlight"},
		{"contrast", "Contrast"},
		{"brightness", "Brightness"},
		{"color", "Color"},
	} {
		r.Register(&actions.Action{
			Name:     s.name,
			Kind:     actions.KindSetting,
			Title:    s.title,
			Category: actions.CategoryPicture,
			Min:      0,
			Max:      100,
			Steps:    101,
		})
	}

	r.Register(&actions.Action{
		Name:     "pictureMode",
		Kind:     actions.KindSetting,
		Title:    "Picture Mode",
		Category: actions.CategoryPicture,
		EnumName: actions.EnumPictureMode,
		Enum: []string{
			"vivid", "normal", "eco", "cinema", "sports", "game",
			"filmMaker", "expert1", "expert2",
		},
	})
	r.Register(&actions.Action{
		Name:     "energySaving",
		Kind:     actions.KindSetting,
		Title:    "Energy Saving",
		Category: actions.CategoryPicture,
		EnumName: "energySaving",
		Enum:     []string{"auto", "off", "min", "med", "max", "screen_off"},
	})
	r.Register(&actions.Action{
		Name:     "dynamicContrast",
		Kind:     actions.KindSetting,
		Title:    "Dynamic Contrast",
		Category: actions.CategoryPicture,
		EnumName: "dynamicContrast",
		Enum:     []string{"off", "low", "medium", "high"},
	})
	r.Register(&actions.Action{
		Name:     "soundMode",
		Kind:     actions.KindSetting,
		Title:    "Sound Mode",
		Category: actions.CategorySound,
		EnumName: "soundMode",
		Enum:     []string{"aiSoundPlus", "standard", "movie", "news", "sports", "music"},
	})

	// Service-menu configuration key. The "_config" suffix marks the kind;
	// the underlying key is the name without it.
	r.Register(&actions.Action{
		Name:     "motionPro" + actions.DeviceConfigSuffix,
		Kind:     actions.KindDeviceConfig,
		Title:    "OLED Motion Pro",
		Category: actions.CategoryPicture,
		EnumName: "motionPro",
		Enum:     []string{"OFF", "Low", "Medium", "High"},
	})

	// Power functions. These bind controller operations; parameters are
	// ignored.
	r.Register(&actions.Action{
		Name:     "powerOn",
		Kind:     actions.KindFunction,
		Title:    "Power On",
		Category: actions.CategoryPower,
		Fn: func(ctx context.Context, _ []string) error {
			if !c.PowerOn(ctx) {
				return apperrors.New(apperrors.CodePresetWakeFailed,
					fmt.Sprintf("could not wake %s", c.dev.Name))
			}
			return nil
		},
	})
	r.Register(&actions.Action{
		Name:     "powerOff",
		Kind:     actions.KindFunction,
		Title:    "Power Off",
		Category: actions.CategoryPower,
		Fn: func(ctx context.Context, _ []string) error {
			if !c.PowerOff(ctx, true) {
				return apperrors.New(apperrors.CodeConnectFailed,
					fmt.Sprintf("could not power off %s", c.dev.Name))
			}
			return nil
		},
	})
	r.Register(&actions.Action{
		Name:     "screenOff",
		Kind:     actions.KindFunction,
		Title:    "Screen Off",
		Category: actions.CategoryPower,
		Fn: func(ctx context.Context, _ []string) error {
			return c.ScreenOff(ctx)
		},
	})
	r.Register(&actions.Action{
		Name:     "screenOn",
		Kind:     actions.KindFunction,
		Title:    "Screen On",
		Category: actions.CategoryPower,
		Fn: func(ctx context.Context, _ []string) error {
			return c.ScreenOn(ctx)
		},
	})

	return r
}

// registerPreset stores the preset and exposes it as an action under the
// preset's name. Preset actions registered later replace built-ins on a
// name collision; users naming a preset after a built-in mean the preset.
func (c *Controller) registerPreset(p *preset.Preset) {
	if p == nil || p.Name == "" {
		return
	}
	c.presets[lowerKey(p.Name)] = p

	pp := p
	c.registry.Register(&actions.Action{
		Name:     pp.Name,
		Kind:     actions.KindPreset,
		Title:    pp.Name,
		Category: actions.CategoryOther,
		Preset:   pp,
		Fn: func(ctx context.Context, _ []string) error {
			if !c.ExecutePreset(ctx, pp, false) {
				return apperrors.New(apperrors.CodePresetStepFailed,
					fmt.Sprintf("preset %s failed", pp.Name))
			}
			return nil
		},
	})
}
