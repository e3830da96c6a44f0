package mqtt

import "sync"

// FakePublisher records published events for test assertions.
// It is safe for concurrent use; read fields through Sessions/Systems when
// the publisher is shared with a running goroutine.
type FakePublisher struct {
	mu sync.Mutex

	// SessionEvents contains all session events that were published.
	SessionEvents []SessionEvent

	// Payloads contains the JSON payloads of session events.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by PublishSession.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishSession records the session event.
func (f *FakePublisher) PublishSession(event SessionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.SessionEvents = append(f.SessionEvents, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Sessions returns a copy of the recorded session events.
func (f *FakePublisher) Sessions() []SessionEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SessionEvent(nil), f.SessionEvents...)
}

// Systems returns a copy of the recorded system events.
func (f *FakePublisher) Systems() []SystemEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SystemEvent(nil), f.SystemEvents...)
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SessionEvents = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}

// Set changes the scripted fields under the lock.
func (f *FakePublisher) Set(fn func(f *FakePublisher)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}
