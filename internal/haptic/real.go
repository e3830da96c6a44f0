//go:build linux

package haptic

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/zap"
)

// GPIOActuator runs a vibration motor from a GPIO output line.
type GPIOActuator struct {
	mu    sync.Mutex
	chip  *gpiocdev.Chip
	line  *gpiocdev.Line
	width time.Duration
	off   *time.Timer
	log   *zap.Logger
}

// NewGPIOActuator claims pin as an output, initially low.
func NewGPIOActuator(pin int, width time.Duration, log *zap.Logger) (*GPIOActuator, error) {
	if width <= 0 {
		width = DefaultPulseWidth
	}
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request motor pin %d: %w", pin, err)
	}
	return &GPIOActuator{
		chip:  chip,
		line:  line,
		width: width,
		log:   log.Named("haptic"),
	}, nil
}

// Pulse drives the line high for the pulse width. A pulse during a running
// pulse extends it.
func (a *GPIOActuator) Pulse() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.line == nil {
		return
	}
	if err := a.line.SetValue(1); err != nil {
		a.log.Warn("motor on failed", zap.Error(err))
		return
	}
	if a.off == nil {
		a.off = time.AfterFunc(a.width, a.motorOff)
		return
	}
	a.off.Reset(a.width)
}

func (a *GPIOActuator) motorOff() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.line == nil {
		return
	}
	if err := a.line.SetValue(0); err != nil {
		a.log.Warn("motor off failed", zap.Error(err))
	}
}

// Close turns the motor off and returns the pin to input with pull-down
// (the Pi boot default).
func (a *GPIOActuator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.off != nil {
		a.off.Stop()
	}

	var errs []error
	if a.line != nil {
		if err := a.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("motor off: %w", err))
		}
		if err := a.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure motor pin: %w", err))
		}
		if err := a.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close motor pin: %w", err))
		}
		a.line = nil
	}
	if a.chip != nil {
		if err := a.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		a.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
