package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	// DefaultBufferSize is how many messages are kept while the broker is unreachable.
	DefaultBufferSize = 100

	connectRetryInterval = 5 * time.Second
	replayTimeout        = 5 * time.Second
)

// RealPublisher publishes to an actual MQTT broker. Messages published while
// disconnected are buffered and replayed, oldest first, on reconnect.
type RealPublisher struct {
	client paho.Client
	log    *zap.Logger

	mu     sync.Mutex
	buffer *ringBuffer
}

// NewRealPublisher creates a publisher for the given broker. The connection
// is established in the background and retried until it succeeds, so a
// missing broker at startup is not fatal.
func NewRealPublisher(broker, clientID string, log *zap.Logger) *RealPublisher {
	p := &RealPublisher{
		log:    log.Named("mqtt"),
		buffer: newRingBuffer(DefaultBufferSize),
	}

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(connectRetryInterval).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(func(paho.Client) {
			p.log.Info("connected", zap.String("broker", broker))
			go p.flush()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warn("connection lost", zap.Error(err))
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

// PublishSession sends a session event. QoS 1, not retained.
func (p *RealPublisher) PublishSession(event SessionEvent) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.publish(TopicSessions, 1, false, payload)
}

// PublishSystem sends a system lifecycle event. QoS 1.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(TopicSystem, 1, event.Retained, payload)
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		p.enqueue(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(replayTimeout) {
		p.enqueue(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (p *RealPublisher) enqueue(msg bufferedMsg) {
	p.mu.Lock()
	overflow := p.buffer.push(msg)
	p.mu.Unlock()
	if overflow {
		p.log.Warn("buffer full, dropping oldest", zap.Int("capacity", DefaultBufferSize))
	}
}

// flush replays buffered messages after a (re)connect.
func (p *RealPublisher) flush() {
	p.mu.Lock()
	dropped := p.buffer.dropped()
	msgs := p.buffer.drainAll()
	p.mu.Unlock()
	if len(msgs) == 0 {
		return
	}

	p.log.Info("replaying buffered messages", zap.Int("count", len(msgs)), zap.Int("dropped", dropped))
	for _, m := range msgs {
		token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(replayTimeout) {
			p.log.Warn("replay timeout", zap.String("topic", m.topic))
			continue
		}
		if err := token.Error(); err != nil {
			p.log.Warn("replay failed", zap.String("topic", m.topic), zap.Error(err))
		}
	}
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
