// Package mqtt publishes session and lifecycle events with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/heartbeat-haptic/internal/logic"
)

// TopicSessions is the MQTT topic for engagement session events.
const TopicSessions = "health/heartbeat-haptic/sessions"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "health/heartbeat-haptic/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishSession sends an engagement session event.
	// Returns error if publishing fails (should not crash the process).
	PublishSession(event SessionEvent) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // shutdown only
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// SessionEvent represents the start or end of one press-and-hold session.
type SessionEvent struct {
	Timestamp time.Time
	Type      logic.SessionEventType
	SessionID string
	BPM       float64       // latest reading when the event was raised
	Pulses    int           // pulses emitted in the session (end only)
	Duration  time.Duration // session length (end only)
}

// Payload represents the MQTT message payload for session events.
type Payload struct {
	Session SessionPayload `json:"session"`
}

// SessionPayload contains the session event details.
type SessionPayload struct {
	Timestamp  string  `json:"timestamp"`
	Event      string  `json:"event"`
	ID         string  `json:"id"`
	BPM        float64 `json:"bpm"`
	Pulses     int     `json:"pulses"`
	DurationMs int64   `json:"duration_ms,omitempty"`
}

// FormatPayload creates the JSON payload for a session event.
func FormatPayload(event SessionEvent) ([]byte, error) {
	return json.Marshal(Payload{
		Session: SessionPayload{
			Timestamp:  event.Timestamp.UTC().Format(time.RFC3339),
			Event:      string(event.Type),
			ID:         event.SessionID,
			BPM:        event.BPM,
			Pulses:     event.Pulses,
			DurationMs: event.Duration.Milliseconds(),
		},
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}
