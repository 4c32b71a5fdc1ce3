package webos

import "encoding/json"

// registerID is the fixed message id of the pairing handshake exchange.
const registerID = "register_0"

// SSAP message types.
const (
	typeRegister   = "register"
	typeRegistered = "registered"
	typeRequest    = "request"
	typeSubscribe  = "subscribe"
	typeResponse   = "response"
	typeError      = "error"
)

// Service URIs used by the adapter.
const (
	uriSystemInfo      = "ssap://system/getSystemInfo"
	uriTurnOff         = "ssap://system/turnOff"
	uriPowerState      = "ssap://com.webos.service.tvpower/power/getPowerState"
	uriScreenOff       = "ssap://com.webos.service.tvpower/power/turnOffScreen"
	uriScreenOn        = "ssap://com.webos.service.tvpower/power/turnOnScreen"
	uriGetSettings     = "ssap://settings/getSystemSettings"
	uriSetSettings     = "ssap://settings/setSystemSettings"
	uriForegroundApp   = "ssap://com.webos.applicationManager/getForegroundAppInfo"
	uriListApps        = "ssap://com.webos.applicationManager/listApps"
	uriLaunchApp       = "ssap://system.launcher/launch"
	uriAudioStatus     = "ssap://audio/getStatus"
	uriPointerSocket   = "ssap://com.webos.service.networkinput/getPointerInputSocket"
	uriSetDeviceConfig = "ssap://config/setConfigs"
)

// message is one SSAP frame in either direction.
type message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	URI     string          `json:"uri,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// registerPayload is the pairing handshake payload. The client key is
// empty on first pairing; the device answers with a key that must be
// presented on subsequent registrations to skip the on-screen prompt.
type registerPayload struct {
	ForcePairing bool           `json:"forcePairing"`
	PairingType  string         `json:"pairingType"`
	ClientKey    string         `json:"client-key,omitempty"`
	Manifest     map[string]any `json:"manifest"`
}

// registeredPayload is the handshake answer carrying the client key.
type registeredPayload struct {
	ClientKey string `json:"client-key"`
}

// permissions requested during pairing. The set covers everything the
// Session interface needs and nothing more.
var manifestPermissions = []string{
	"LAUNCH",
	"LAUNCH_WEBAPP",
	"CONTROL_AUDIO",
	"CONTROL_DISPLAY",
	"CONTROL_INPUT_JOYSTICK",
	"CONTROL_INPUT_MEDIA_PLAYBACK",
	"CONTROL_INPUT_TV",
	"CONTROL_POWER",
	"CONTROL_TV_SCREEN",
	"READ_APP_STATUS",
	"READ_CURRENT_CHANNEL",
	"READ_INPUT_DEVICE_LIST",
	"READ_INSTALLED_APPS",
	"READ_RUNNING_APPS",
	"READ_SETTINGS",
	"READ_TV_CURRENT_TIME",
	"WRITE_SETTINGS",
}

func registerManifest() map[string]any {
	return map[string]any{
		"manifestVersion": 1,
		"permissions":     manifestPermissions,
	}
}

// Response payload shapes for the operations the Session exposes.

type responseEnvelope struct {
	ReturnValue bool   `json:"returnValue"`
	ErrorText   string `json:"errorText,omitempty"`
}

type powerStatePayload struct {
	State      string `json:"state"`
	Processing string `json:"processing,omitempty"`
}

type settingsPayload struct {
	Category string         `json:"category"`
	Settings map[string]any `json:"settings"`
}

type foregroundAppPayload struct {
	AppID string `json:"appId"`
}

type listAppsPayload struct {
	Apps []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"apps"`
}

type audioStatusPayload struct {
	Mute bool `json:"mute"`
}

type pointerSocketPayload struct {
	SocketPath string `json:"socketPath"`
}
