package health

import (
	"context"
	"sync"
)

// FakeService is a scripted Service for tests. It is safe for concurrent use.
type FakeService struct {
	mu sync.Mutex

	// Status is returned by CheckAuthorization.
	Status AuthStatus

	// CheckError, if set, is returned by CheckAuthorization.
	CheckError error

	// RequestError, if set, is returned by RequestAuthorization.
	// Otherwise a request sets Status to StatusAuthorized.
	RequestError error

	// QueryError, if set, is returned by QueryLatestSample.
	QueryError error

	// SubscribeError, if set, is returned by Subscribe.
	SubscribeError error

	// Connected controls the return value of IsConnected.
	Connected bool

	// Counters for assertions.
	Checks   int
	Requests int
	Queries  int
	Closed   bool

	cache latest
}

// NewFakeService creates a FakeService reporting the given status.
func NewFakeService(status AuthStatus) *FakeService {
	return &FakeService{Status: status}
}

// CheckAuthorization implements Service.
func (f *FakeService) CheckAuthorization(ctx context.Context) (AuthStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Checks++
	if f.CheckError != nil {
		return "", f.CheckError
	}
	return f.Status, nil
}

// RequestAuthorization implements Service.
func (f *FakeService) RequestAuthorization(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests++
	if f.RequestError != nil {
		return f.RequestError
	}
	f.Status = StatusAuthorized
	return nil
}

// QueryLatestSample implements Service.
func (f *FakeService) QueryLatestSample(ctx context.Context) (Sample, bool, error) {
	f.mu.Lock()
	f.Queries++
	err := f.QueryError
	f.mu.Unlock()
	if err != nil {
		return Sample{}, false, err
	}
	s, ok := f.cache.get()
	return s, ok, nil
}

// Subscribe implements Service.
func (f *FakeService) Subscribe(fn func()) error {
	f.mu.Lock()
	err := f.SubscribeError
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.cache.subscribe(fn)
	return nil
}

// Push stores a sample and notifies subscribers, as a backend does when a
// message arrives.
func (f *FakeService) Push(s Sample) bool {
	return f.cache.store(s)
}

// Set changes the scripted fields under the lock.
func (f *FakeService) Set(fn func(f *FakeService)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// Counts returns the call counters.
func (f *FakeService) Counts() (checks, requests, queries int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Checks, f.Requests, f.Queries
}

// Close implements Service.
func (f *FakeService) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake source is "connected".
func (f *FakeService) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}
