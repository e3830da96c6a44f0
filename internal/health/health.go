// Package health provides the heart-rate data service: authorization, the
// latest-sample query and change notifications. Backends are MQTT and NATS;
// FakeService supports tests.
package health

import (
	"context"
	"errors"
	"sync"
	"time"
)

// AuthStatus is the result of an authorization check.
type AuthStatus string

const (
	StatusAuthorized   AuthStatus = "AUTHORIZED"
	StatusNeedsRequest AuthStatus = "NEEDS_REQUEST"
	StatusUnsupported  AuthStatus = "UNSUPPORTED"
)

var (
	// ErrUnsupported is returned when no heart-rate source exists on this device.
	ErrUnsupported = errors.New("health: heart rate data unavailable on this device")
	// ErrDeclined is returned when the source refuses the credentials.
	ErrDeclined = errors.New("health: access declined")
)

// Sample is a single heart-rate reading.
type Sample struct {
	BPM       float64
	Timestamp time.Time
}

// ConnectionStatus is implemented by sources that hold a broker connection.
type ConnectionStatus interface {
	IsConnected() bool
}

// Service is the heart-rate data service consumed by the controller.
type Service interface {
	// CheckAuthorization reports whether samples can be read.
	CheckAuthorization(ctx context.Context) (AuthStatus, error)

	// RequestAuthorization asks the source for read access.
	// Returns an error wrapping ErrDeclined if access was refused.
	RequestAuthorization(ctx context.Context) error

	// QueryLatestSample returns the most recent sample, if any.
	QueryLatestSample(ctx context.Context) (Sample, bool, error)

	// Subscribe registers fn to be called when new samples arrive.
	// fn is called from a background goroutine and must not block.
	Subscribe(fn func()) error

	// Close releases the connection.
	Close() error
}

// latest caches the newest sample and fans out change notifications.
// Shared by the backends.
type latest struct {
	mu     sync.Mutex
	sample Sample
	ok     bool
	subs   []func()
}

// store keeps s if it is not older than the cached sample and notifies
// subscribers. Returns false if s was dropped.
func (l *latest) store(s Sample) bool {
	l.mu.Lock()
	if l.ok && s.Timestamp.Before(l.sample.Timestamp) {
		l.mu.Unlock()
		return false
	}
	l.sample = s
	l.ok = true
	subs := append([]func(){}, l.subs...)
	l.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
	return true
}

func (l *latest) get() (Sample, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sample, l.ok
}

func (l *latest) subscribe(fn func()) {
	l.mu.Lock()
	l.subs = append(l.subs, fn)
	l.mu.Unlock()
}
