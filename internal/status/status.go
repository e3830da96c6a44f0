// Package status provides a thread-safe status tracker for the heartbeat-haptic daemon.
// It is written by the controller loop and read by the HTTP and terminal views.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/heartbeat-haptic/internal/logic"
)

// NetworkInfo contains network state as reported by the host helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Source      string // "mqtt" or "nats"
	SourceAddr  string
	TickMs      int64
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	View        logic.View
	ErrorKind   logic.ErrorKind // set when View is ERROR
	ErrorDetail string

	BPM        float64
	HasReading bool
	ReadingAt  time.Time

	SourceConnected bool

	Engaged       bool
	SessionID     string
	SessionStart  time.Time
	SessionPulses int
	LastPulse     time.Time

	Counts        logic.Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
// The initial view is LOADING.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			View:      logic.ViewLoading,
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// SetView switches the displayed view. kind and detail are only kept for
// the error view.
func (t *Tracker) SetView(view logic.View, kind logic.ErrorKind, detail string) {
	t.mu.Lock()
	t.snap.View = view
	if view == logic.ViewError {
		t.snap.ErrorKind = kind
		t.snap.ErrorDetail = detail
	} else {
		t.snap.ErrorKind = ""
		t.snap.ErrorDetail = ""
	}
	t.mu.Unlock()
}

// SetReading records the latest heart-rate reading.
func (t *Tracker) SetReading(bpm float64, at time.Time) {
	t.mu.Lock()
	t.snap.BPM = bpm
	t.snap.HasReading = true
	t.snap.ReadingAt = at
	t.snap.Counts.Readings++
	t.mu.Unlock()
}

// StartSession marks the user as engaged.
func (t *Tracker) StartSession(id string, at time.Time) {
	t.mu.Lock()
	t.snap.Engaged = true
	t.snap.SessionID = id
	t.snap.SessionStart = at
	t.snap.SessionPulses = 0
	t.snap.Counts.Sessions++
	t.mu.Unlock()
}

// EndSession marks the user as no longer engaged.
func (t *Tracker) EndSession() {
	t.mu.Lock()
	t.snap.Engaged = false
	t.snap.SessionID = ""
	t.mu.Unlock()
}

// RecordPulse counts one haptic pulse.
func (t *Tracker) RecordPulse(at time.Time) {
	t.mu.Lock()
	t.snap.Counts.Pulses++
	t.snap.SessionPulses++
	t.snap.LastPulse = at
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetSourceConnected sets the heart-rate source connection status.
func (t *Tracker) SetSourceConnected(connected bool) {
	t.mu.Lock()
	t.snap.SourceConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	now := t.now
	t.mu.RUnlock()
	s.Now = now()
	return s
}
