package health

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// samplePayload accepts both the native form
//
//	{"bpm": 72, "timestamp": "2026-01-01T12:00:00Z"}
//
// and the stream processor form
//
//	{"subject": "ecg.params", "ts": 1767268800000, "hr": 72}
type samplePayload struct {
	BPM       *float64 `json:"bpm"`
	Timestamp string   `json:"timestamp"`
	HR        *float64 `json:"hr"`
	Ts        int64    `json:"ts"`
}

// ParseSample decodes a sample message. now is used when the message carries
// no timestamp.
func ParseSample(data []byte, now time.Time) (Sample, error) {
	var p samplePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Sample{}, fmt.Errorf("decode sample: %w", err)
	}

	var bpm float64
	switch {
	case p.BPM != nil:
		bpm = *p.BPM
	case p.HR != nil:
		bpm = *p.HR
	default:
		return Sample{}, fmt.Errorf("decode sample: no bpm or hr field")
	}
	if math.IsNaN(bpm) || math.IsInf(bpm, 0) || bpm < 0 {
		return Sample{}, fmt.Errorf("decode sample: invalid bpm %v", bpm)
	}

	ts := now
	switch {
	case p.Timestamp != "":
		t, err := time.Parse(time.RFC3339Nano, p.Timestamp)
		if err != nil {
			return Sample{}, fmt.Errorf("decode sample timestamp: %w", err)
		}
		ts = t
	case p.Ts > 0:
		ts = time.UnixMilli(p.Ts)
	}

	return Sample{BPM: bpm, Timestamp: ts}, nil
}
