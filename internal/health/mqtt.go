package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
	"go.uber.org/zap"
)

// DefaultTopic is the MQTT topic carrying heart-rate samples.
const DefaultTopic = "health/heartrate/samples"

// MQTTOptions configures an MQTTService.
type MQTTOptions struct {
	Broker   string // empty means no source on this device
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// MQTTService reads samples from an MQTT topic.
type MQTTService struct {
	opts  MQTTOptions
	log   *zap.Logger
	cache latest
	now   func() time.Time

	mu         sync.Mutex
	client     paho.Client
	subscribed bool
}

// NewMQTTService creates a service. It does not connect until
// RequestAuthorization is called.
func NewMQTTService(opts MQTTOptions, log *zap.Logger) *MQTTService {
	if opts.Topic == "" {
		opts.Topic = DefaultTopic
	}
	if opts.ClientID == "" {
		opts.ClientID = "heartbeat-haptic-health"
	}
	return &MQTTService{opts: opts, log: log.Named("health.mqtt"), now: time.Now}
}

// CheckAuthorization implements Service.
func (s *MQTTService) CheckAuthorization(ctx context.Context) (AuthStatus, error) {
	if s.opts.Broker == "" {
		return StatusUnsupported, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil && s.client.IsConnectionOpen() && s.subscribed {
		return StatusAuthorized, nil
	}
	return StatusNeedsRequest, nil
}

// RequestAuthorization connects with the configured credentials and
// subscribes to the sample topic.
func (s *MQTTService) RequestAuthorization(ctx context.Context) error {
	if s.opts.Broker == "" {
		return ErrUnsupported
	}

	s.mu.Lock()
	if s.client != nil && s.client.IsConnectionOpen() && s.subscribed {
		s.mu.Unlock()
		return nil
	}
	if s.client != nil {
		s.client.Disconnect(250)
	}
	s.subscribed = false
	opts := paho.NewClientOptions().
		AddBroker(s.opts.Broker).
		SetClientID(s.opts.ClientID).
		SetUsername(s.opts.Username).
		SetPassword(s.opts.Password).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			s.log.Warn("connection lost", zap.Error(err))
		})
	client := paho.NewClient(opts)
	s.client = client
	s.mu.Unlock()

	if err := waitToken(ctx, client.Connect()); err != nil {
		if errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword) || errors.Is(err, packets.ErrorRefusedNotAuthorised) {
			return fmt.Errorf("%w: %v", ErrDeclined, err)
		}
		return fmt.Errorf("connect to %s: %w", s.opts.Broker, err)
	}

	if err := waitToken(ctx, client.Subscribe(s.opts.Topic, s.opts.QoS, s.handleMessage)); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.opts.Topic, err)
	}

	s.mu.Lock()
	s.subscribed = true
	s.mu.Unlock()
	s.log.Info("authorized", zap.String("broker", s.opts.Broker), zap.String("topic", s.opts.Topic))
	return nil
}

// onConnect restores the subscription after an automatic reconnect. The
// first connection is subscribed by RequestAuthorization.
func (s *MQTTService) onConnect(client paho.Client) {
	s.mu.Lock()
	resubscribe := s.subscribed
	s.mu.Unlock()
	if !resubscribe {
		return
	}
	token := client.Subscribe(s.opts.Topic, s.opts.QoS, s.handleMessage)
	go func() {
		if token.Wait() && token.Error() != nil {
			s.log.Error("resubscribe failed", zap.String("topic", s.opts.Topic), zap.Error(token.Error()))
			return
		}
		s.log.Info("resubscribed", zap.String("topic", s.opts.Topic))
	}()
}

func (s *MQTTService) handleMessage(_ paho.Client, msg paho.Message) {
	sample, err := ParseSample(msg.Payload(), s.now())
	if err != nil {
		s.log.Warn("dropping sample", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}
	if !s.cache.store(sample) {
		s.log.Debug("dropping out-of-order sample", zap.Time("timestamp", sample.Timestamp))
	}
}

// QueryLatestSample implements Service.
func (s *MQTTService) QueryLatestSample(ctx context.Context) (Sample, bool, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, false, err
	}
	sample, ok := s.cache.get()
	return sample, ok, nil
}

// Subscribe implements Service.
func (s *MQTTService) Subscribe(fn func()) error {
	s.cache.subscribe(fn)
	return nil
}

// IsConnected reports whether the broker connection is up.
func (s *MQTTService) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil && s.client.IsConnected()
}

// Close disconnects from the broker.
func (s *MQTTService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Disconnect(250)
		s.client = nil
	}
	s.subscribed = false
	return nil
}

// waitToken waits for a paho token or the context, whichever comes first.
func waitToken(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
