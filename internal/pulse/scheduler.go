// Package pulse turns the latest heart-rate reading into one haptic pulse per
// heartbeat while the user stays engaged.
//
// The scheduler polls on a short fixed period instead of arming a one-shot
// timer per beat, so the beat interval can follow new readings without
// rescheduling. It is not safe for concurrent use: Start, Stop and Tick must
// all be called from the same goroutine.
package pulse

import (
	"time"

	"github.com/sweeney/heartbeat-haptic/internal/clock"
	"github.com/sweeney/heartbeat-haptic/internal/logic"
)

// DefaultTickPeriod is the polling period of the recurring wake-up.
const DefaultTickPeriod = 100 * time.Millisecond

// Emitter fires a single haptic pulse. It must not block and has no failure mode.
type Emitter interface {
	Pulse()
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func()

// Pulse calls f.
func (f EmitterFunc) Pulse() { f() }

// Scheduler emits pulses at the rate given by the latest reading.
type Scheduler struct {
	clock   clock.Clock
	period  time.Duration
	emitter Emitter

	ticker clock.Ticker
	gen    uint64
	acc    logic.Accumulator
}

// NewScheduler creates a stopped scheduler. A non-positive period selects
// DefaultTickPeriod.
func NewScheduler(c clock.Clock, period time.Duration, e Emitter) *Scheduler {
	if period <= 0 {
		period = DefaultTickPeriod
	}
	return &Scheduler{clock: c, period: period, emitter: e}
}

// Start begins a new schedule: any previous wake-up is cancelled, the counter
// is reset, one pulse fires immediately and a recurring wake-up is installed.
func (s *Scheduler) Start() {
	s.cancel()
	s.acc.Reset()
	s.gen++
	s.emitter.Pulse()
	s.ticker = s.clock.NewTicker(s.period)
}

// Stop cancels the wake-up and resets the counter. Safe to call when stopped.
func (s *Scheduler) Stop() {
	s.cancel()
	s.acc.Reset()
}

func (s *Scheduler) cancel() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

// Wake returns the channel of the current wake-up and the generation it
// belongs to. The channel is nil while stopped, so selecting on it blocks.
func (s *Scheduler) Wake() (<-chan time.Time, uint64) {
	if s.ticker == nil {
		return nil, s.gen
	}
	return s.ticker.C(), s.gen
}

// Tick handles one wake-up of generation gen with the current reading.
// Ticks from a cancelled schedule are ignored. Reports whether a pulse fired.
func (s *Scheduler) Tick(gen uint64, bpm float64) bool {
	if s.ticker == nil || gen != s.gen {
		return false
	}
	if !s.acc.Advance(s.period, logic.BeatInterval(bpm)) {
		return false
	}
	s.emitter.Pulse()
	return true
}

// Active reports whether a schedule is running.
func (s *Scheduler) Active() bool {
	return s.ticker != nil
}

// Accumulated returns the time counted since the last pulse.
func (s *Scheduler) Accumulated() time.Duration {
	return s.acc.Elapsed()
}

// Period returns the polling period.
func (s *Scheduler) Period() time.Duration {
	return s.period
}
