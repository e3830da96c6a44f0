package haptic

import "sync"

// FakeActuator counts pulses for test assertions. It is safe for concurrent use.
type FakeActuator struct {
	mu     sync.Mutex
	pulses int
	closed bool
}

// NewFakeActuator creates a FakeActuator.
func NewFakeActuator() *FakeActuator {
	return &FakeActuator{}
}

// Pulse records a pulse.
func (f *FakeActuator) Pulse() {
	f.mu.Lock()
	f.pulses++
	f.mu.Unlock()
}

// Pulses returns the number of pulses recorded.
func (f *FakeActuator) Pulses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pulses
}

// Close marks the actuator as closed.
func (f *FakeActuator) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakeActuator) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Nop is an Actuator that does nothing, for running without a motor.
type Nop struct{}

// Pulse does nothing.
func (Nop) Pulse() {}

// Close does nothing.
func (Nop) Close() error { return nil }
