package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanline/dsnscan/internal/analysis/processor"
	"github.com/scanline/dsnscan/internal/conf"
	"github.com/scanline/dsnscan/internal/dsn"
	"github.com/scanline/dsnscan/internal/errors"
	"github.com/scanline/dsnscan/internal/fusion"
	"github.com/scanline/dsnscan/internal/observability/metrics"
)

type publishedMessage struct {
	topic   string
	payload []byte
}

// fakeClient records publications instead of talking to a broker
type fakeClient struct {
	mu        sync.Mutex
	messages  []publishedMessage
	publishFn func() error
	connected bool
}

func (f *fakeClient) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeClient) Publish(_ context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishFn != nil {
		if err := f.publishFn(); err != nil {
			return err
		}
	}
	f.messages = append(f.messages, publishedMessage{topic: topic, payload: payload})
	return nil
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func (f *fakeClient) published() []publishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedMessage(nil), f.messages...)
}

func frameResult(session, text string, decision fusion.Decision) processor.FrameResult {
	return processor.FrameResult{
		SessionID:        session,
		FrameID:          7,
		Timestamp:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		State:            decision,
		EnvironmentScore: 0.8,
		Readings: []processor.Reading{{
			EnhancedResult: fusion.EnhancedResult{
				Text:                text,
				ComponentType:       dsn.ComponentBattery01,
				Tier:                dsn.TierHigh,
				CompositeConfidence: 0.915,
				Decision:            decision,
				ThresholdUsed:       0.95,
			},
			Frames: 3,
		}},
	}
}

func TestPublisher_PublishesTerminalResult(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{}
	p := NewPublisher(fc, "dsnscan/results", "bench-1", nil)

	require.NoError(t, p.Publish(t.Context(), frameResult("s1", "AB12CD34EF56", fusion.DecisionPendingConfirmation)))

	msgs := fc.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, "dsnscan/results", msgs[0].topic)

	var dto FrameResultDTO
	require.NoError(t, json.Unmarshal(msgs[0].payload, &dto))
	assert.Equal(t, "bench-1", dto.Instance)
	assert.Equal(t, "s1", dto.SessionID)
	assert.Equal(t, "pending_confirmation", dto.State)
	assert.Equal(t, "2026-03-01T12:00:00.000Z", dto.Timestamp)
	require.NotNil(t, dto.Best)
	assert.Equal(t, "AB12CD34EF56", dto.Best.Text)
	assert.Equal(t, string(dsn.ComponentBattery01), dto.Best.ComponentType)
	assert.InDelta(t, 0.915, dto.Best.CompositeConfidence, 1e-9)
	assert.Equal(t, 3, dto.Best.Frames)
}

func TestPublisher_SkipsNonTerminalAndEmpty(t *testing.T) {
	t.Parallel()

	m, err := metrics.NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	fc := &fakeClient{}
	p := NewPublisher(fc, "t", "i", m)

	require.NoError(t, p.Publish(t.Context(), processor.FrameResult{SessionID: "s1", State: fusion.DecisionScanning}))
	scanning := frameResult("s1", "AB12CD34EF56", fusion.DecisionScanning)
	require.NoError(t, p.Publish(t.Context(), scanning))

	assert.Empty(t, fc.published())
	assert.InDelta(t, 2, testutil.ToFloat64(m.Suppressed.WithLabelValues(metrics.SuppressNonTerminal)), 0)
}

func TestPublisher_SuppressesRepeats(t *testing.T) {
	t.Parallel()

	m, err := metrics.NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	fc := &fakeClient{}
	p := NewPublisher(fc, "t", "i", m)
	ctx := t.Context()

	require.NoError(t, p.Publish(ctx, frameResult("s1", "AB12CD34EF56", fusion.DecisionPendingConfirmation)))
	require.NoError(t, p.Publish(ctx, frameResult("s1", "AB12CD34EF56", fusion.DecisionPendingConfirmation)))
	assert.Len(t, fc.published(), 1)
	assert.Equal(t, uint64(1), p.Skipped())
	assert.InDelta(t, 1, testutil.ToFloat64(m.Suppressed.WithLabelValues(metrics.SuppressRepeat)), 0)

	// A changed decision, text or session is published again
	require.NoError(t, p.Publish(ctx, frameResult("s1", "AB12CD34EF56", fusion.DecisionAutoAccepted)))
	require.NoError(t, p.Publish(ctx, frameResult("s1", "ZX98CD34EF56", fusion.DecisionAutoAccepted)))
	require.NoError(t, p.Publish(ctx, frameResult("s2", "ZX98CD34EF56", fusion.DecisionAutoAccepted)))
	assert.Len(t, fc.published(), 4)
	assert.InDelta(t, 3, testutil.ToFloat64(m.Published.WithLabelValues(string(fusion.DecisionAutoAccepted))), 0)
}

func TestPublisher_FailureIsRetried(t *testing.T) {
	t.Parallel()

	fail := true
	fc := &fakeClient{}
	fc.publishFn = func() error {
		if fail {
			return errors.NewStd("broker unavailable")
		}
		return nil
	}
	p := NewPublisher(fc, "t", "i", nil)
	result := frameResult("s1", "AB12CD34EF56", fusion.DecisionAutoAccepted)

	require.Error(t, p.Publish(t.Context(), result))
	assert.Empty(t, fc.published())

	fc.mu.Lock()
	fail = false
	fc.mu.Unlock()

	require.NoError(t, p.Publish(t.Context(), result), "a failed publication is not remembered as sent")
	assert.Len(t, fc.published(), 1)
}

func TestNewFrameResultDTO_NoReadings(t *testing.T) {
	t.Parallel()

	dto := NewFrameResultDTO("i", &processor.FrameResult{SessionID: "s", State: fusion.DecisionScanning})
	assert.Nil(t, dto.Best)
	assert.NotNil(t, dto.Readings)
	assert.Empty(t, dto.Readings)
}

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()

	s := conf.Default()
	s.Main.Name = "bench"
	s.MQTT.Broker = "tcp://localhost:1883"
	s.MQTT.Topic = "dsn/out"
	s.MQTT.QoS = 1
	s.MQTT.Retain = true

	cfg := ConfigFromSettings(s)
	assert.Equal(t, "tcp://localhost:1883", cfg.Broker)
	assert.Equal(t, "dsn/out", cfg.Topic)
	assert.Equal(t, byte(1), cfg.QoS)
	assert.True(t, cfg.Retain)
	assert.Regexp(t, `^bench-[0-9a-f]{8}$`, cfg.ClientID)
	assert.Equal(t, DefaultConfig().ConnectTimeout, cfg.ConnectTimeout)

	s.MQTT.ClientID = "fixed"
	assert.Equal(t, "fixed", ConfigFromSettings(s).ClientID)
}

func TestClient_ConnectRejectsInvalidBroker(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Broker = "://nope"
	c := NewClient(cfg, nil)

	err := c.Connect(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	assert.False(t, c.IsConnected())
}

func TestClient_ConnectCooldown(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Broker = "://nope"
	cfg.ReconnectCooldown = time.Hour
	c := NewClient(cfg, nil)

	require.Error(t, c.Connect(t.Context()))
	err := c.Connect(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTConnection))
}

func TestClient_PublishWhenDisconnected(t *testing.T) {
	t.Parallel()

	c := NewClient(DefaultConfig(), nil)
	err := c.Publish(t.Context(), "t", []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTPublish))
	c.Disconnect()
}
