package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/heartbeat-haptic/internal/logic"
)

func TestFormatPayload(t *testing.T) {
	event := SessionEvent{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:      logic.EventSessionEnd,
		SessionID: "5b0c1f0e-6d57-4c3c-9a6e-4a1f3f5b9f10",
		BPM:       72,
		Pulses:    31,
		Duration:  25 * time.Second,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Session.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("unexpected timestamp: %s", parsed.Session.Timestamp)
	}
	if parsed.Session.Event != "SESSION_END" {
		t.Errorf("unexpected event: %s", parsed.Session.Event)
	}
	if parsed.Session.ID != event.SessionID {
		t.Errorf("unexpected id: %s", parsed.Session.ID)
	}
	if parsed.Session.BPM != 72 {
		t.Errorf("unexpected bpm: %v", parsed.Session.BPM)
	}
	if parsed.Session.Pulses != 31 {
		t.Errorf("unexpected pulses: %d", parsed.Session.Pulses)
	}
	if parsed.Session.DurationMs != 25000 {
		t.Errorf("unexpected duration_ms: %d", parsed.Session.DurationMs)
	}
}

func TestFormatPayloadStartOmitsDuration(t *testing.T) {
	payload, err := FormatPayload(SessionEvent{
		Timestamp: time.Now(),
		Type:      logic.EventSessionStart,
		SessionID: "abc",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := raw["session"]["duration_ms"]; ok {
		t.Error("duration_ms should be omitted for SESSION_START")
	}
}

func TestFormatSystemPayload(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"system":{"timestamp":"2026-01-01T00:00:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != want {
		t.Errorf("payload:\n got %s\nwant %s", payload, want)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "HEARTBEAT", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload passthrough, got %s", payload)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	if err := f.PublishSession(SessionEvent{Timestamp: time.Now(), Type: logic.EventSessionStart}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "STARTUP"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := f.Sessions(); len(got) != 1 || got[0].Type != logic.EventSessionStart {
		t.Errorf("unexpected sessions: %+v", got)
	}
	if len(f.Payloads) != 1 {
		t.Errorf("expected 1 payload, got %d", len(f.Payloads))
	}
	if got := f.Systems(); len(got) != 1 || got[0].Event != "STARTUP" {
		t.Errorf("unexpected system events: %+v", got)
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("simulated error")
	f.PublishSystemError = errors.New("simulated error")

	if err := f.PublishSession(SessionEvent{Timestamp: time.Now()}); err == nil {
		t.Error("expected error")
	}
	if err := f.PublishSystem(SystemEvent{Timestamp: time.Now()}); err == nil {
		t.Error("expected error")
	}
	if len(f.Sessions()) != 0 || len(f.Systems()) != 0 {
		t.Error("expected nothing recorded on error")
	}
}

func TestFakePublisherCloseAndReset(t *testing.T) {
	f := NewFakePublisher()
	f.Connected = true
	f.PublishSession(SessionEvent{Timestamp: time.Now()})
	f.Close()
	if !f.Closed {
		t.Error("expected closed")
	}

	f.Reset()
	if f.Closed || f.IsConnected() || len(f.Sessions()) != 0 {
		t.Error("expected clean state after Reset")
	}
}
