// Package clock abstracts wall time and recurring wake-ups so that timer-driven
// code can be tested without sleeping.
package clock

import "time"

// Ticker is a recurring wake-up. A tick already buffered on C may survive Stop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers and reports the current time.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Real uses actual system time.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// NewTicker wraps time.NewTicker.
func (Real) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }
