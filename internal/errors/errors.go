// Package errors provides standardized error codes for the host application.
//
// Error codes follow the format {domain}.{error} where:
//   - domain: The subsystem that generated the error (transport, connect, wake, action, preset, power)
//   - error: The specific error type within that domain
//
// These codes are stable and can be used by API clients for programmatic
// error handling. Human-readable messages are provided alongside codes.
// No error from the control core escapes as an unhandled fault: public
// operations report success booleans, and codes only surface in logs and
// API responses.
package errors

import (
	"errors"
	"fmt"
)

// Error codes by domain.
const (
	// Transport domain - session and wire channel errors
	CodeTransportDialFailed    = "transport.dial_failed"    // Session creation failed after retries
	CodeTransportClosed        = "transport.closed"         // Session channel is closed
	CodeTransportRejected      = "transport.rejected"       // Device rejected a request payload
	CodeTransportPairingDenied = "transport.pairing_denied" // User declined the pairing prompt on the TV
	CodeTransportBadPayload    = "transport.bad_payload"    // Malformed response or push payload

	// Connect domain - connection manager errors
	CodeConnectNoSession = "connect.no_session" // Operation requires a live session
	CodeConnectFailed    = "connect.failed"     // Reconnect attempt failed

	// Wake domain - wake-on-network errors
	CodeWakeNoHardwareAddr = "wake.no_hardware_addr" // Device has no MAC address configured
	CodeWakeSendFailed     = "wake.send_failed"      // Magic packet could not be sent

	// Action domain - registry resolution and apply errors
	CodeActionNotFound     = "action.not_found"     // No action registered under that name
	CodeActionApplyFailed  = "action.apply_failed"  // Device rejected the setting apply
	CodeActionBadParameter = "action.bad_parameter" // Parameter coercion failed

	// Preset domain - step interpreter errors
	CodePresetLaunchFailed = "preset.launch_failed" // App launch failed on both attempts
	CodePresetStepFailed   = "preset.step_failed"   // A step failed on both attempts
	CodePresetWakeFailed   = "preset.wake_failed"   // Wake/retry protocol exhausted its attempts

	// Power domain - guarded power-off errors
	CodePowerTimeout = "power.timeout" // Power-off acknowledgement timed out (non-fatal)

	// Storage domain - audit persistence errors
	CodeStorageOpenFailed  = "storage.open_failed"  // Database open failed
	CodeStorageWriteFailed = "storage.write_failed" // Failed to record an event

	// General domain - catch-all errors
	CodeUnknown = "error.unknown" // Unknown error
)

// CodedError wraps an error with a stable error code.
// This allows errors to carry both a code for programmatic handling
// and a message for human consumption.
type CodedError struct {
	Code    string // Stable error code (e.g., "transport.dial_failed")
	Message string // Human-readable error message
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New creates a new CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CodedError wrapping an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetCode extracts the error code from an error.
// Falls back to CodeUnknown for unrecognized errors.
func GetCode(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}

	return CodeUnknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// ToCodeAndMessage extracts both code and message from an error.
// This is the primary function for converting errors to API responses.
func ToCodeAndMessage(err error) (code, message string) {
	if err == nil {
		return "", ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code, coded.Message
	}

	return CodeUnknown, err.Error()
}

// Common error constructors for frequently used error types.

// DialFailed creates a "transport.dial_failed" error.
func DialFailed(address string, cause error) *CodedError {
	return Wrap(CodeTransportDialFailed, fmt.Sprintf("could not reach %s", address), cause)
}

// SessionClosed creates a "transport.closed" error.
func SessionClosed(address string) *CodedError {
	return New(CodeTransportClosed, fmt.Sprintf("session to %s is closed", address))
}

// Rejected creates a "transport.rejected" error carrying the device's reason.
func Rejected(uri, reason string) *CodedError {
	return New(CodeTransportRejected, fmt.Sprintf("device rejected %s: %s", uri, reason))
}

// NoSession creates a "connect.no_session" error.
func NoSession(device string) *CodedError {
	return New(CodeConnectNoSession, fmt.Sprintf("no live session for %s", device))
}

// NoHardwareAddr creates a "wake.no_hardware_addr" error.
func NoHardwareAddr(device string) *CodedError {
	return New(CodeWakeNoHardwareAddr, fmt.Sprintf("device %s has no hardware address configured", device))
}

// ActionNotFound creates an "action.not_found" error.
func ActionNotFound(name string) *CodedError {
	return New(CodeActionNotFound, fmt.Sprintf("no action named %q", name))
}

// ApplyFailed creates an "action.apply_failed" error.
func ApplyFailed(name string, cause error) *CodedError {
	return Wrap(CodeActionApplyFailed, fmt.Sprintf("apply %s failed", name), cause)
}

// BadParameter creates an "action.bad_parameter" error.
func BadParameter(name, value string) *CodedError {
	return New(CodeActionBadParameter, fmt.Sprintf("action %s: cannot coerce %q to an integer", name, value))
}

// LaunchFailed creates a "preset.launch_failed" error.
func LaunchFailed(appID string, cause error) *CodedError {
	return Wrap(CodePresetLaunchFailed, fmt.Sprintf("launch %s failed", appID), cause)
}

// StepFailed creates a "preset.step_failed" error.
func StepFailed(step string, cause error) *CodedError {
	return Wrap(CodePresetStepFailed, fmt.Sprintf("step %q failed", step), cause)
}

// PowerTimeout creates a "power.timeout" error.
func PowerTimeout(device string) *CodedError {
	return New(CodePowerTimeout, fmt.Sprintf("power-off acknowledgement from %s timed out", device))
}
