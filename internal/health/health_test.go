package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLatestMostRecentWins(t *testing.T) {
	var l latest
	var notified int32
	l.subscribe(func() { atomic.AddInt32(&notified, 1) })

	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	require.True(t, l.store(Sample{BPM: 70, Timestamp: t0}))
	require.True(t, l.store(Sample{BPM: 75, Timestamp: t0.Add(time.Second)}))
	assert.False(t, l.store(Sample{BPM: 99, Timestamp: t0}), "older sample should be dropped")

	s, ok := l.get()
	require.True(t, ok)
	assert.Equal(t, 75.0, s.BPM)
	assert.Equal(t, int32(2), atomic.LoadInt32(&notified))
}

func TestLatestEmpty(t *testing.T) {
	var l latest
	_, ok := l.get()
	assert.False(t, ok)
}

func TestMQTTServiceUnsupportedWithoutBroker(t *testing.T) {
	svc := NewMQTTService(MQTTOptions{}, zap.NewNop())
	st, err := svc.CheckAuthorization(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusUnsupported, st)

	err = svc.RequestAuthorization(context.Background())
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestMQTTServiceNeedsRequestBeforeConnect(t *testing.T) {
	svc := NewMQTTService(MQTTOptions{Broker: "tcp://127.0.0.1:1883"}, zap.NewNop())
	st, err := svc.CheckAuthorization(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsRequest, st)
	assert.False(t, svc.IsConnected())
	assert.Equal(t, DefaultTopic, svc.opts.Topic)
}

func TestMQTTServiceQueryBeforeAnySample(t *testing.T) {
	svc := NewMQTTService(MQTTOptions{Broker: "tcp://127.0.0.1:1883"}, zap.NewNop())
	_, ok, err := svc.QueryLatestSample(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = svc.QueryLatestSample(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNATSServiceUnsupportedWithoutURL(t *testing.T) {
	svc := NewNATSService(NATSOptions{}, zap.NewNop())
	st, err := svc.CheckAuthorization(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusUnsupported, st)
	assert.ErrorIs(t, svc.RequestAuthorization(context.Background()), ErrUnsupported)
	assert.False(t, svc.IsConnected())
	assert.NoError(t, svc.Close())
}

func TestServicesReportConnectionStatus(t *testing.T) {
	var _ ConnectionStatus = (*MQTTService)(nil)
	var _ ConnectionStatus = (*NATSService)(nil)

	f := NewFakeService(StatusAuthorized)
	var cs ConnectionStatus = f
	assert.False(t, cs.IsConnected())
	f.Connected = true
	assert.True(t, cs.IsConnected())
}

func TestNATSServiceNeedsRequestBeforeConnect(t *testing.T) {
	svc := NewNATSService(NATSOptions{URL: "nats://127.0.0.1:4222"}, zap.NewNop())
	st, err := svc.CheckAuthorization(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsRequest, st)
	assert.Equal(t, DefaultSubject, svc.opts.Subject)
}

func TestFakeServiceRequestAuthorizes(t *testing.T) {
	f := NewFakeService(StatusNeedsRequest)
	require.NoError(t, f.RequestAuthorization(context.Background()))
	st, err := f.CheckAuthorization(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusAuthorized, st)

	checks, requests, _ := f.Counts()
	assert.Equal(t, 1, checks)
	assert.Equal(t, 1, requests)
}

func TestFakeServicePushNotifies(t *testing.T) {
	f := NewFakeService(StatusAuthorized)
	fired := make(chan struct{}, 1)
	require.NoError(t, f.Subscribe(func() { fired <- struct{}{} }))

	f.Push(Sample{BPM: 81, Timestamp: time.Now()})
	select {
	case <-fired:
	default:
		t.Fatal("subscriber not notified")
	}
	s, ok, err := f.QueryLatestSample(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 81.0, s.BPM)
}
