package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubject is the NATS subject carrying heart-rate samples.
const DefaultSubject = "ecg.params"

// NATSOptions configures a NATSService.
type NATSOptions struct {
	URL      string // empty means no source on this device
	Subject  string
	Username string
	Password string
	Token    string
}

// NATSService reads samples from a NATS subject.
type NATSService struct {
	opts  NATSOptions
	log   *zap.Logger
	cache latest
	now   func() time.Time

	mu  sync.Mutex
	nc  *nats.Conn
	sub *nats.Subscription
}

// NewNATSService creates a service. It does not connect until
// RequestAuthorization is called.
func NewNATSService(opts NATSOptions, log *zap.Logger) *NATSService {
	if opts.Subject == "" {
		opts.Subject = DefaultSubject
	}
	return &NATSService{opts: opts, log: log.Named("health.nats"), now: time.Now}
}

// CheckAuthorization implements Service.
func (s *NATSService) CheckAuthorization(ctx context.Context) (AuthStatus, error) {
	if s.opts.URL == "" {
		return StatusUnsupported, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nc != nil && s.nc.IsConnected() && s.sub != nil && s.sub.IsValid() {
		return StatusAuthorized, nil
	}
	return StatusNeedsRequest, nil
}

// RequestAuthorization connects and subscribes to the sample subject.
func (s *NATSService) RequestAuthorization(ctx context.Context) error {
	if s.opts.URL == "" {
		return ErrUnsupported
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nc != nil && s.nc.IsConnected() && s.sub != nil && s.sub.IsValid() {
		return nil
	}
	if s.nc != nil {
		s.nc.Close()
		s.nc, s.sub = nil, nil
	}

	timeout := 3 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return ctx.Err()
		}
	}
	opts := []nats.Option{
		nats.Name("heartbeat-haptic"),
		nats.Timeout(timeout),
		nats.ReconnectWait(500 * time.Millisecond),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				s.log.Warn("disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			s.log.Info("reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	if s.opts.Username != "" {
		opts = append(opts, nats.UserInfo(s.opts.Username, s.opts.Password))
	}
	if s.opts.Token != "" {
		opts = append(opts, nats.Token(s.opts.Token))
	}

	nc, err := nats.Connect(s.opts.URL, opts...)
	if err != nil {
		if errors.Is(err, nats.ErrAuthorization) {
			return fmt.Errorf("%w: %v", ErrDeclined, err)
		}
		return fmt.Errorf("connect to %s: %w", s.opts.URL, err)
	}

	sub, err := nc.Subscribe(s.opts.Subject, s.handleMessage)
	if err != nil {
		nc.Close()
		return fmt.Errorf("subscribe %s: %w", s.opts.Subject, err)
	}
	s.nc, s.sub = nc, sub
	s.log.Info("authorized", zap.String("url", s.opts.URL), zap.String("subject", s.opts.Subject))
	return nil
}

func (s *NATSService) handleMessage(msg *nats.Msg) {
	sample, err := ParseSample(msg.Data, s.now())
	if err != nil {
		s.log.Warn("dropping sample", zap.String("subject", msg.Subject), zap.Error(err))
		return
	}
	if !s.cache.store(sample) {
		s.log.Debug("dropping out-of-order sample", zap.Time("timestamp", sample.Timestamp))
	}
}

// QueryLatestSample implements Service.
func (s *NATSService) QueryLatestSample(ctx context.Context) (Sample, bool, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, false, err
	}
	sample, ok := s.cache.get()
	return sample, ok, nil
}

// Subscribe implements Service.
func (s *NATSService) Subscribe(fn func()) error {
	s.cache.subscribe(fn)
	return nil
}

// IsConnected reports whether the NATS connection is up.
func (s *NATSService) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nc != nil && s.nc.IsConnected()
}

// Close drains and closes the connection.
func (s *NATSService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nc == nil {
		return nil
	}
	err := s.nc.Drain()
	s.nc, s.sub = nil, nil
	return err
}
