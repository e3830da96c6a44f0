// Package haptic drives the vibration motor with hardware abstraction.
// The real implementation toggles a Linux GPIO output line.
// The fake implementation allows testing without hardware.
package haptic

import "time"

// Actuator emits haptic pulses.
type Actuator interface {
	// Pulse fires one pulse. It does not block and has no failure mode;
	// hardware errors are logged by the implementation.
	Pulse()

	// Close turns the motor off and releases resources.
	Close() error
}

// DefaultPin is the BCM pin driving the motor transistor.
const DefaultPin = 18

// DefaultPulseWidth is how long the motor runs per pulse.
const DefaultPulseWidth = 40 * time.Millisecond
