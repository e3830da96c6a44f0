package logic

import (
	"math"
	"time"
)

// FloorBPM is the slowest heartbeat the scheduler will pace at. Missing or
// implausibly low readings are treated as this value so pulsing never stalls.
const FloorBPM = 60.0

// BeatInterval returns the time between heartbeats for the given reading:
// 60 / max(bpm, 60) seconds.
func BeatInterval(bpm float64) time.Duration {
	if math.IsNaN(bpm) || bpm < FloorBPM {
		bpm = FloorBPM
	}
	return time.Duration(float64(time.Minute) / bpm)
}

// Accumulator counts elapsed time since the last pulse on a fixed tick grid.
// The zero value is ready to use.
type Accumulator struct {
	elapsed time.Duration
}

// Advance adds step to the elapsed time and reports whether a beat is due.
// When it is, the elapsed time is reduced to elapsed mod interval so the
// phase carries over to the next beat.
func (a *Accumulator) Advance(step, interval time.Duration) bool {
	a.elapsed += step
	if interval <= 0 || a.elapsed < interval {
		return false
	}
	a.elapsed %= interval
	return true
}

// Elapsed returns the time accumulated since the last beat.
func (a *Accumulator) Elapsed() time.Duration {
	return a.elapsed
}

// Reset clears the accumulated time.
func (a *Accumulator) Reset() {
	a.elapsed = 0
}
