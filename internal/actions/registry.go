// Package actions implements the registry of named, invocable device
// operations. The registry is built once at device construction and its
// shape is immutable afterwards; only each action's cached current value
// mutates, after a successful apply.
//
// Actions come in four kinds, dispatched by tag rather than by function
// pointer plus metadata bag: a generic system setting, a device-config key
// requiring a description, an arbitrary bound function (screen on/off,
// network wake), and a wrapper around a canned preset.
package actions

import (
	"context"
	"strconv"
	"strings"
	"sync"

	apperrors "github.com/tvcompanion/host/internal/errors"
	"github.com/tvcompanion/host/internal/preset"
)

// Kind tags the execution strategy of an action.
type Kind string

const (
	// KindSetting applies a named system setting.
	KindSetting Kind = "setting"
	// KindDeviceConfig applies a configuration key whose value requires a
	// human-readable description.
	KindDeviceConfig Kind = "device_config"
	// KindFunction executes an arbitrary bound operation.
	KindFunction Kind = "function"
	// KindPreset wraps a canned preset.
	KindPreset Kind = "preset"
)

// Categories group actions for display and for the derived views.
const (
	CategoryPicture = "picture"
	CategorySound   = "sound"
	CategoryPower   = "power"
	CategoryOther   = "other"
)

// DeviceConfigSuffix is stripped from a device-config action's name to
// obtain the underlying configuration key.
const DeviceConfigSuffix = "_config"

// EnumPictureMode identifies the primary picture-mode enumeration. Actions
// bound to it are excluded from the quality view; picture mode has its own
// surface.
const EnumPictureMode = "pictureMode"

// pictureFields are the setting names whose live values flow through the
// picture-settings push channel instead of the post-apply cache.
var pictureFields = map[string]bool{
	"backlight":  true,
	"contrast":   true,
	"brightness": true,
	"color":      true,
}

// defaultQuickAccess is the built-in quick-access set used when a device
// configures an empty name list.
var defaultQuickAccess = []string{"backlight", "contrast", "brightness", "color"}

// Func is a bound operation for KindFunction and KindPreset actions.
type Func func(ctx context.Context, params []string) error

// Action is one named, invocable device operation with its declared value
// domain and category. Fields beyond the tag are only meaningful for the
// kinds that declare them.
type Action struct {
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	Title    string `json:"title"`
	Category string `json:"category"`

	// Enumerated value domain, when the action has one. EnumName
	// identifies the enumeration itself.
	Enum     []string `json:"enum,omitempty"`
	EnumName string   `json:"enum_name,omitempty"`

	// Numeric range and sample count, when the action has one.
	Min   int `json:"min,omitempty"`
	Max   int `json:"max,omitempty"`
	Steps int `json:"steps,omitempty"`

	// Current is the cached current value (an enum ordinal for enumerated
	// actions). The only mutable field after registration.
	Current int `json:"current"`

	// Fn is the bound operation for KindFunction and KindPreset.
	Fn Func `json:"-"`
	// Preset is the wrapped preset for KindPreset.
	Preset *preset.Preset `json:"-"`
}

// Applier performs the actual transport calls for setting and
// device-config actions. The control layer implements it; tests substitute
// a recorder.
type Applier interface {
	// ApplySetting applies a system setting. value is either a single
	// string or an []int, matching the parameter coercion rule.
	ApplySetting(ctx context.Context, name string, value any, category string) error
	// ApplyDeviceConfig applies a configuration key with a description.
	ApplyDeviceConfig(ctx context.Context, key, value, description string) error
}

// Registry stores a device's actions. Resolution is a case-insensitive
// exact match on name. Register is construction-time only and the shape
// never changes afterwards, but each action's cached Current value does:
// writes to it are guarded by the registry mutex, and the views return
// copies taken under it so callers can marshal them while Execute runs.
type Registry struct {
	applier Applier
	byName  map[string]*Action
	order   []*Action

	// mu guards the Current field of registered actions.
	mu sync.RWMutex
}

// NewRegistry creates an empty registry bound to an applier.
func NewRegistry(applier Applier) *Registry {
	return &Registry{
		applier: applier,
		byName:  make(map[string]*Action),
	}
}

// Register adds an action. Later registrations under the same name replace
// earlier ones; callers register the built-in set first and presets last.
func (r *Registry) Register(a *Action) {
	key := strings.ToLower(a.Name)
	if _, exists := r.byName[key]; !exists {
		r.order = append(r.order, a)
	} else {
		for i, old := range r.order {
			if strings.EqualFold(old.Name, a.Name) {
				r.order[i] = a
				break
			}
		}
	}
	r.byName[key] = a
}

// Lookup resolves an action by name, case-insensitively. Returns nil when
// no action is registered under the name.
func (r *Registry) Lookup(name string) *Action {
	return r.byName[strings.ToLower(name)]
}

// All returns copies of the actions in registration order.
func (r *Registry) All() []*Action {
	return r.copyActions(r.order)
}

// copyActions snapshots the listed actions under the registry mutex.
func (r *Registry) copyActions(list []*Action) []*Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Action, len(list))
	for i, a := range list {
		copied := *a
		out[i] = &copied
	}
	return out
}

// Execute resolves and runs an action. It returns applied=false with a nil
// error for deliberate no-ops, and never panics past the boundary.
func (r *Registry) Execute(ctx context.Context, name string, params []string) (applied bool, err error) {
	a := r.Lookup(name)
	if a == nil {
		return false, apperrors.ActionNotFound(name)
	}

	switch a.Kind {
	case KindSetting:
		return r.executeSetting(ctx, a, params)
	case KindDeviceConfig:
		return r.executeDeviceConfig(ctx, a, params)
	case KindFunction, KindPreset:
		if a.Fn == nil {
			return false, nil
		}
		if err := a.Fn(ctx, params); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, nil
	}
}

func (r *Registry) executeSetting(ctx context.Context, a *Action, params []string) (bool, error) {
	if len(params) == 0 {
		return false, nil
	}

	var value any
	if len(params) > 1 {
		ints := make([]int, len(params))
		for i, p := range params {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return false, apperrors.BadParameter(a.Name, p)
			}
			ints[i] = n
		}
		value = ints
	} else {
		value = params[0]
	}

	if err := r.applier.ApplySetting(ctx, a.Name, value, a.Category); err != nil {
		return false, apperrors.ApplyFailed(a.Name, err)
	}

	// Cache update. Backlight/contrast/brightness/color are excluded:
	// their live values arrive through the picture-settings push channel.
	if !pictureFields[strings.ToLower(a.Name)] {
		r.mu.Lock()
		if len(a.Enum) > 0 {
			// A stale cache is acceptable; an unparsable value simply
			// leaves the previous ordinal in place.
			if ord, ok := enumOrdinal(a.Enum, params[0]); ok {
				a.Current = ord
			}
		} else {
			a.Current = 0
		}
		r.mu.Unlock()
	}

	return true, nil
}

func (r *Registry) executeDeviceConfig(ctx context.Context, a *Action, params []string) (bool, error) {
	if len(params) == 0 {
		return false, nil
	}

	key := strings.TrimSuffix(a.Name, DeviceConfigSuffix)
	value := params[0]

	// The human-readable description is the matching enum member name;
	// the raw value stands in when the enum does not know it.
	description := value
	if member, ok := enumMember(a.Enum, value); ok {
		description = member
	}

	if err := r.applier.ApplyDeviceConfig(ctx, key, value, description); err != nil {
		return false, apperrors.ApplyFailed(a.Name, err)
	}
	return true, nil
}

// Quality returns the actions that tune picture quality: picture-category
// settings with either a real enumerated domain other than the primary
// picture-mode enum, or a positive numeric range.
func (r *Registry) Quality() []*Action {
	var out []*Action
	for _, a := range r.order {
		if a.Kind != KindSetting || a.Category != CategoryPicture {
			continue
		}
		if (len(a.Enum) > 0 && a.EnumName != EnumPictureMode) || a.Max > 0 {
			out = append(out, a)
		}
	}
	return r.copyActions(out)
}

// QuickAccess returns the actions named in the per-device quick-access
// list. An empty list selects the built-in default of the four core
// picture settings. Names that resolve to nothing are skipped.
func (r *Registry) QuickAccess(names []string) []*Action {
	if len(names) == 0 {
		names = defaultQuickAccess
	}
	var out []*Action
	for _, n := range names {
		if a := r.Lookup(n); a != nil {
			out = append(out, a)
		}
	}
	return r.copyActions(out)
}

func enumOrdinal(enum []string, value string) (int, bool) {
	for i, m := range enum {
		if strings.EqualFold(m, value) {
			return i, true
		}
	}
	return 0, false
}

func enumMember(enum []string, value string) (string, bool) {
	for _, m := range enum {
		if strings.EqualFold(m, value) {
			return m, true
		}
	}
	return "", false
}
