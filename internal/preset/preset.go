// Package preset defines scripted command sequences and their step-token
// grammar. A preset is configuration data: devices execute presets but do
// not own or mutate them.
package preset

import (
	"strconv"
	"strings"
	"time"
)

// StepWake is the literal step token that requests the wake-on-network
// retry protocol before the preset body runs.
const StepWake = "WOL"

// Preset is a named, ordered script of steps executed as one logical
// operation, optionally preceded by an app launch.
type Preset struct {
	// Name identifies the preset. Preset actions register under this name.
	Name string `toml:"name" json:"name"`
	// Device optionally binds the preset to a configured device name.
	Device string `toml:"device" json:"device,omitempty"`
	// AppID is the application to launch before running steps, if any.
	AppID string `toml:"app_id" json:"app_id,omitempty"`
	// AppParams are explicit launch parameters. When empty, well-known app
	// ids may receive built-in defaults (see the step interpreter).
	AppParams map[string]any `toml:"app_params" json:"app_params,omitempty"`
	// Steps is the ordered list of step tokens.
	Steps []string `toml:"steps" json:"steps,omitempty"`
}

// HasWakeStep reports whether any step token equals the wake marker.
func (p *Preset) HasWakeStep() bool {
	for _, s := range p.Steps {
		if s == StepWake {
			return true
		}
	}
	return false
}

// Step is one parsed step token.
//
// Grammar:
//
//	KEY
//	KEY:delayMs
//	name(param1;param2;...)
//	name(param1;...):delayMs
type Step struct {
	// Raw is the token as written.
	Raw string
	// Key is the action name or remote-control key, without parameters or
	// delay suffix. Raw-key normalization (uppercasing, digit prefixing)
	// is the interpreter's job, not the parser's.
	Key string
	// Params is the parenthesized parameter list; nil when absent.
	Params []string
	// Delay is the explicit trailing delay; HasDelay distinguishes an
	// explicit zero from no suffix at all.
	Delay    time.Duration
	HasDelay bool
}

// ParseStep splits a step token into key, parameters and delay. Parsing is
// lenient: a non-numeric delay suffix or an unterminated parameter list is
// treated as part of the key rather than rejected, matching the rule that
// malformed script input degrades instead of failing the whole preset.
func ParseStep(token string) Step {
	st := Step{Raw: token, Key: token}

	// Optional trailing ":delayMs". The colon must come after any closing
	// parenthesis so parameter values may themselves contain colons.
	if i := strings.LastIndex(st.Key, ":"); i > strings.LastIndex(st.Key, ")") && i >= 0 {
		if ms, err := strconv.Atoi(st.Key[i+1:]); err == nil && ms >= 0 {
			st.Delay = time.Duration(ms) * time.Millisecond
			st.HasDelay = true
			st.Key = st.Key[:i]
		}
	}

	// Optional "(param1;param2;...)" suffix.
	if strings.HasSuffix(st.Key, ")") {
		if i := strings.Index(st.Key, "("); i >= 0 {
			inner := st.Key[i+1 : len(st.Key)-1]
			st.Key = st.Key[:i]
			if inner == "" {
				st.Params = []string{}
			} else {
				st.Params = strings.Split(inner, ";")
			}
		}
	}

	return st
}
