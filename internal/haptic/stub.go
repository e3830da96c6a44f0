//go:build !linux

package haptic

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

// GPIOActuator is not available on non-Linux platforms.
type GPIOActuator struct{}

// NewGPIOActuator returns an error on non-Linux platforms.
func NewGPIOActuator(pin int, width time.Duration, log *zap.Logger) (*GPIOActuator, error) {
	return nil, errors.New("haptic: gpio not supported on this platform (requires Linux)")
}

// Pulse does nothing on non-Linux platforms.
func (a *GPIOActuator) Pulse() {}

// Close is not implemented on non-Linux platforms.
func (a *GPIOActuator) Close() error {
	return nil
}
