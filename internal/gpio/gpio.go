// Package gpio provides press-button input reading with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "errors"

// Reader reads the press button.
type Reader interface {
	// Read returns the logical state of the button.
	// The raw GPIO value is inverted: the button pulls the line low when held.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// DefaultPinButton is the BCM pin number of the press button.
const DefaultPinButton = 17

// ErrNotSupported is returned by the hardware reader on platforms without
// the GPIO character device.
var ErrNotSupported = errors.New("gpio: not supported on this platform (requires Linux)")
