//go:build !linux

package gpio

import "fmt"

// RealReader is a placeholder so the daemon builds for development on
// non-Linux hosts. Run with -no-button there.
type RealReader struct{}

// NewRealReader always fails with ErrNotSupported.
func NewRealReader(pin int) (*RealReader, error) {
	return nil, fmt.Errorf("button on pin %d: %w", pin, ErrNotSupported)
}

// Read always fails with ErrNotSupported.
func (r *RealReader) Read() (bool, error) {
	return false, ErrNotSupported
}

// Close is a no-op.
func (r *RealReader) Close() error {
	return nil
}
