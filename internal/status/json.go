package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/heartbeat-haptic/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	View          string       `json:"view"`
	Error         *ErrorJSON   `json:"error,omitempty"`
	Reading       *ReadingJSON `json:"reading,omitempty"`
	Engaged       bool         `json:"engaged"`
	Session       *SessionJSON `json:"session,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Source        SourceStatus `json:"source"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ErrorJSON describes the error view.
type ErrorJSON struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Retry   string `json:"retry"`
}

// ReadingJSON is the latest heart-rate reading.
type ReadingJSON struct {
	BPM            float64 `json:"bpm"`
	Timestamp      string  `json:"timestamp"`
	BeatIntervalMs int64   `json:"beat_interval_ms"`
}

// SessionJSON describes the running engagement session.
type SessionJSON struct {
	ID        string `json:"id"`
	StartTime string `json:"start_time"`
	Pulses    int    `json:"pulses"`
}

// SourceStatus reports the heart-rate source connection state.
type SourceStatus struct {
	Connected bool   `json:"connected"`
	Type      string `json:"type"`
	Addr      string `json:"addr"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of activity counts.
type CountsJSON struct {
	Pulses   int `json:"pulses"`
	Sessions int `json:"sessions"`
	Readings int `json:"readings"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Source      string `json:"source"`
	SourceAddr  string `json:"source_addr"`
	TickMs      int64  `json:"tick_ms"`
	PollMs      int64  `json:"poll_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		View:          string(snap.View),
		Engaged:       snap.Engaged,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Source:        SourceStatus{Connected: snap.SourceConnected, Type: snap.Config.Source, Addr: snap.Config.SourceAddr},
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Pulses:   snap.Counts.Pulses,
			Sessions: snap.Counts.Sessions,
			Readings: snap.Counts.Readings,
		},
		Config: ConfigJSON{
			Source:      snap.Config.Source,
			SourceAddr:  snap.Config.SourceAddr,
			TickMs:      snap.Config.TickMs,
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	if snap.ErrorKind != "" {
		inner.Error = &ErrorJSON{
			Kind:    string(snap.ErrorKind),
			Message: snap.ErrorKind.Message(),
			Detail:  snap.ErrorDetail,
			Retry:   string(snap.ErrorKind.Retry()),
		}
	}
	if snap.HasReading {
		inner.Reading = &ReadingJSON{
			BPM:            snap.BPM,
			Timestamp:      snap.ReadingAt.UTC().Format(time.RFC3339),
			BeatIntervalMs: logic.BeatInterval(snap.BPM).Milliseconds(),
		}
	}
	if snap.Engaged {
		inner.Session = &SessionJSON{
			ID:        snap.SessionID,
			StartTime: snap.SessionStart.UTC().Format(time.RFC3339),
			Pulses:    snap.SessionPulses,
		}
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
