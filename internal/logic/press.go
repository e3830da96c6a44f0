package logic

import "time"

// PressDetector tracks the press input and detects debounced transitions.
type PressDetector struct {
	debounceDuration time.Duration
	stable           bool
	pending          bool
	hasPending       bool
	pendingSince     time.Time
	baselined        bool
}

// NewPressDetector creates a new press detector with the given debounce duration.
func NewPressDetector(debounceDuration time.Duration) *PressDetector {
	return &PressDetector{debounceDuration: debounceDuration}
}

// Process takes a new input sample and returns the event to emit, if any.
// Nothing is returned until a baseline has been established, so a button
// already held at startup does not count as a press.
func (d *PressDetector) Process(input Input) *PressEvent {
	if !d.baselined {
		if !d.hasPending || d.pending != input.Pressed {
			// Start (or restart) observing
			d.pending = input.Pressed
			d.hasPending = true
			d.pendingSince = input.Time
		}
		if input.Time.Sub(d.pendingSince) >= d.debounceDuration {
			d.stable = input.Pressed
			d.baselined = true
			d.hasPending = false
		}
		return nil
	}

	if input.Pressed == d.stable {
		d.hasPending = false
		return nil
	}

	if !d.hasPending || d.pending != input.Pressed {
		d.pending = input.Pressed
		d.hasPending = true
		d.pendingSince = input.Time
		if d.debounceDuration > 0 {
			return nil
		}
	}

	if input.Time.Sub(d.pendingSince) < d.debounceDuration {
		return nil
	}

	d.stable = input.Pressed
	d.hasPending = false
	eventType := EventPressEnd
	if d.stable {
		eventType = EventPressStart
	}
	return &PressEvent{Timestamp: input.Time, Type: eventType}
}

// IsBaselined returns whether the detector has established a baseline.
func (d *PressDetector) IsBaselined() bool {
	return d.baselined
}

// Pressed returns the current stable state.
func (d *PressDetector) Pressed() bool {
	return d.stable
}
