// Package logic contains pure business logic for the heartbeat feedback loop.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// View is the screen currently shown. Exactly one view is shown at a time.
type View string

const (
	ViewLoading      View = "LOADING"
	ViewError        View = "ERROR"
	ViewUnauthorized View = "UNAUTHORIZED"
	ViewAuthorized   View = "AUTHORIZED"
)

// ErrorKind classifies the failures surfaced on the error view.
type ErrorKind string

const (
	// ErrorUnsupported means the health service does not exist on this device.
	ErrorUnsupported ErrorKind = "UNSUPPORTED"
	// ErrorCheckFailed means the authorization check itself failed.
	ErrorCheckFailed ErrorKind = "CHECK_FAILED"
	// ErrorRequestFailed means the authorization request failed or was declined.
	ErrorRequestFailed ErrorKind = "REQUEST_FAILED"
)

// RetryAction is what the retry button does for a given error.
type RetryAction string

const (
	RetryCheck   RetryAction = "CHECK"
	RetryRequest RetryAction = "REQUEST"
)

// Retry returns the action the retry button performs for this kind.
// Unsupported only re-checks (and will fail again); the authorization
// failures re-run the request flow.
func (k ErrorKind) Retry() RetryAction {
	if k == ErrorUnsupported {
		return RetryCheck
	}
	return RetryRequest
}

// Message returns the user-facing text for the error view.
func (k ErrorKind) Message() string {
	switch k {
	case ErrorUnsupported:
		return "Heart rate data is not available on this device."
	case ErrorCheckFailed:
		return "Could not check heart rate access."
	case ErrorRequestFailed:
		return "Heart rate access was not granted."
	}
	return "Something went wrong."
}

// PressEventType represents an engagement transition.
type PressEventType string

const (
	EventPressStart PressEventType = "PRESS_START"
	EventPressEnd   PressEventType = "PRESS_END"
)

// PressEvent is a debounced engagement transition.
type PressEvent struct {
	Timestamp time.Time
	Type      PressEventType
}

// Input represents a single sample of the press input.
type Input struct {
	Pressed bool // true = held down (already inverted from raw GPIO)
	Time    time.Time
}

// SessionEventType is the kind of engagement session event.
type SessionEventType string

const (
	EventSessionStart SessionEventType = "SESSION_START"
	EventSessionEnd   SessionEventType = "SESSION_END"
)

// Counts tracks activity since startup.
type Counts struct {
	Pulses   int
	Sessions int
	Readings int
}

// Command is a user action delivered to the controller from any surface
// (button, web page, terminal).
type Command string

const (
	CommandRetry      Command = "RETRY"
	CommandAuthorize  Command = "AUTHORIZE"
	CommandPressStart Command = "PRESS_START"
	CommandPressEnd   Command = "PRESS_END"
)
