package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Reasons a frame result was not sent to the broker
const (
	SuppressNonTerminal = "non_terminal"
	SuppressRepeat      = "repeat"
)

// MQTTMetrics tracks the broker connection and the frame results published to it.
type MQTTMetrics struct {
	Connected         prometheus.Gauge
	LastConnectTime   prometheus.Gauge
	ReconnectAttempts prometheus.Counter
	Published         *prometheus.CounterVec // by decision
	Suppressed        *prometheus.CounterVec // by reason
	Failures          prometheus.Counter
	PayloadSize       prometheus.Histogram
	PublishLatency    prometheus.Histogram
}

// NewMQTTMetrics creates the MQTT collectors and registers them with registry.
func NewMQTTMetrics(registry prometheus.Registerer) (*MQTTMetrics, error) {
	m := &MQTTMetrics{
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dsnscan_mqtt_connected",
			Help: "1 while connected to the MQTT broker, 0 otherwise",
		}),
		LastConnectTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dsnscan_mqtt_last_connect_time_seconds",
			Help: "Unix time of the last successful broker connection",
		}),
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dsnscan_mqtt_reconnect_attempts_total",
			Help: "Automatic reconnection attempts after a lost connection",
		}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dsnscan_mqtt_results_published_total",
			Help: "Frame results delivered to the broker by decision",
		}, []string{"decision"}),
		Suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dsnscan_mqtt_results_suppressed_total",
			Help: "Frame results not published by reason",
		}, []string{"reason"}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dsnscan_mqtt_failures_total",
			Help: "Failed publishes and lost connections",
		}),
		PayloadSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dsnscan_mqtt_payload_size_bytes",
			Help:    "Size of published payloads",
			Buckets: prometheus.ExponentialBuckets(BucketStart64B, BucketFactor2, BucketCount10),
		}),
		PublishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dsnscan_mqtt_publish_latency_seconds",
			Help:    "Time until the broker acknowledged a publish",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

// SetConnected records the connection state; connecting also stamps LastConnectTime.
func (m *MQTTMetrics) SetConnected(connected bool) {
	if !connected {
		m.Connected.Set(0)
		return
	}
	m.Connected.Set(1)
	m.LastConnectTime.SetToCurrentTime()
}

// RecordReconnect counts an automatic reconnection attempt
func (m *MQTTMetrics) RecordReconnect() {
	m.ReconnectAttempts.Inc()
}

// RecordFailure counts a failed publish or a lost connection
func (m *MQTTMetrics) RecordFailure() {
	m.Failures.Inc()
}

// RecordDelivery observes an acknowledged payload
func (m *MQTTMetrics) RecordDelivery(size int, latency time.Duration) {
	m.PayloadSize.Observe(float64(size))
	m.PublishLatency.Observe(latency.Seconds())
}

// RecordPublished counts a frame result published with decision
func (m *MQTTMetrics) RecordPublished(decision string) {
	m.Published.WithLabelValues(decision).Inc()
}

// RecordSuppressed counts a frame result held back for reason
func (m *MQTTMetrics) RecordSuppressed(reason string) {
	m.Suppressed.WithLabelValues(reason).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Connected.Describe(ch)
	m.LastConnectTime.Describe(ch)
	m.ReconnectAttempts.Describe(ch)
	m.Published.Describe(ch)
	m.Suppressed.Describe(ch)
	m.Failures.Describe(ch)
	m.PayloadSize.Describe(ch)
	m.PublishLatency.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Connected.Collect(ch)
	m.LastConnectTime.Collect(ch)
	m.ReconnectAttempts.Collect(ch)
	m.Published.Collect(ch)
	m.Suppressed.Collect(ch)
	m.Failures.Collect(ch)
	m.PayloadSize.Collect(ch)
	m.PublishLatency.Collect(ch)
}
