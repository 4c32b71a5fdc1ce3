// Package config provides TOML configuration file loading for the daemon.
// The configuration file lives at ~/.tvcompanion/config.toml by default,
// but can be overridden with the --config flag. CLI flags always take
// precedence over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tvcompanion/host/internal/device"
	"github.com/tvcompanion/host/internal/mqtt"
	"github.com/tvcompanion/host/internal/preset"
)

// Config represents the daemon configuration file structure.
type Config struct {
	// Addr is the host:port for the local HTTP API.
	// Default: 127.0.0.1:8320
	Addr string `toml:"addr"`

	// LogLevel controls logging verbosity: debug, info, warn, error.
	// Default: info
	LogLevel string `toml:"log_level"`

	// Database is the path to the SQLite database for the audit trail and
	// pairing keys. Empty disables storage.
	// Default: ~/.tvcompanion/tvcompanion.db
	Database string `toml:"database"`

	// AdvancedActions enables built-in launch parameters for the
	// service-menu and software-update applications.
	// Default: false
	AdvancedActions bool `toml:"advanced_actions"`

	// WakeDelayMs is the pause before the first wake signal of a retry
	// run, in milliseconds. Default: 2000
	WakeDelayMs int `toml:"wake_delay_ms"`

	// ConnectDelayMs is the pause between wake signal and connect
	// attempt, in milliseconds. Default: 1000
	ConnectDelayMs int `toml:"connect_delay_ms"`

	// ConnectRetries is the per-connect session creation attempt count.
	// Default: 2
	ConnectRetries int `toml:"connect_retries"`

	// MQTT configures the optional event notifier. A zero Host disables it.
	MQTT mqtt.Config `toml:"mqtt"`

	// Devices declares the controlled displays.
	Devices []DeviceConfig `toml:"devices"`

	// Presets declares the scripted command sequences.
	Presets []preset.Preset `toml:"presets"`
}

// DeviceConfig is one declared display.
type DeviceConfig struct {
	// Name identifies the device in the API, logs, and presets.
	Name string `toml:"name"`

	// Address is the device's IP or hostname. The SSAP port is appended
	// when absent.
	Address string `toml:"address"`

	// HardwareAddr is the MAC address for wake-on-network; may be empty.
	HardwareAddr string `toml:"hardware_addr"`

	// Custom marks hand-entered devices as opposed to discovered ones.
	Custom bool `toml:"custom"`

	// Policy flags for host power events.
	PowerOnAfterStartup   bool `toml:"power_on_after_startup"`
	PowerOnAfterResume    bool `toml:"power_on_after_resume"`
	PowerOffOnShutdown    bool `toml:"power_off_on_shutdown"`
	PowerOffOnStandby     bool `toml:"power_off_on_standby"`
	PowerOnAfterManualOff bool `toml:"power_on_after_manual_off"`

	// HDMIInput binds guarded power-off to an input port; 0 means unbound.
	HDMIInput int `toml:"hdmi_input"`

	// QuickAccess pins action names for the quick-access view. Empty
	// selects the built-in default set.
	QuickAccess []string `toml:"quick_access"`
}

// ToDevice converts the declaration into a runtime Device.
func (dc DeviceConfig) ToDevice() *device.Device {
	d := device.New(dc.Name, dc.Address, device.Options{})
	d.HardwareAddr = dc.HardwareAddr
	d.Custom = dc.Custom
	d.PowerOnAfterStartup = dc.PowerOnAfterStartup
	d.PowerOnAfterResume = dc.PowerOnAfterResume
	d.PowerOffOnShutdown = dc.PowerOffOnShutdown
	d.PowerOffOnStandby = dc.PowerOffOnStandby
	d.PowerOnAfterManualOff = dc.PowerOnAfterManualOff
	d.HDMIInput = dc.HDMIInput
	d.QuickAccess = dc.QuickAccess
	return d
}

// WakeDelay returns the configured wake delay, or 0 for the default.
func (c *Config) WakeDelay() time.Duration {
	return time.Duration(c.WakeDelayMs) * time.Millisecond
}

// ConnectDelay returns the configured connect delay, or 0 for the default.
func (c *Config) ConnectDelay() time.Duration {
	return time.Duration(c.ConnectDelayMs) * time.Millisecond
}

// DefaultConfigPath returns the default config file location:
// ~/.tvcompanion/config.toml. Returns an error only if the user's home
// directory cannot be determined.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".tvcompanion", "config.toml"), nil
}

// DefaultDatabasePath returns ~/.tvcompanion/tvcompanion.db.
func DefaultDatabasePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".tvcompanion", "tvcompanion.db"), nil
}

// WriteDefault creates a starter config file at the given path.
//
// Behavior:
//   - If the file already exists, returns without error (does not overwrite).
//   - Creates the parent directory if it doesn't exist.
//   - Returns an error if the file cannot be written.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	const content = `# tvcompanion configuration

addr = "127.0.0.1:8320"
log_level = "info"

# [[devices]]
# name = "living-room"
# address = "192.168.1.40"
# hardware_addr = "aa:bb:cc:dd:ee:ff"
# power_on_after_startup = true
# power_off_on_shutdown = true

# [[presets]]
# name = "movie-night"
# device = "living-room"
# steps = ["WOL", "pictureMode(cinema)", "backlight(40):300"]
`

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads a TOML config file from the given path.
//
// Behavior:
//   - If path is empty, attempts the default location and returns an empty
//     Config without error if the file doesn't exist.
//   - If path is specified, returns an error if the file doesn't exist.
//   - Returns an error if the file exists but cannot be parsed.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
		if _, err := os.Stat(defaultPath); os.IsNotExist(err) {
			return cfg, nil
		}
		path = defaultPath
	} else {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}
