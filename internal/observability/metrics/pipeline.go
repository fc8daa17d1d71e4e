package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains the Prometheus metrics of the scan pipeline.
type PipelineMetrics struct {
	Operations          *prometheus.CounterVec
	OperationDuration   *prometheus.HistogramVec
	Errors              *prometheus.CounterVec
	Decisions           *prometheus.CounterVec
	CompositeConfidence *prometheus.HistogramVec
	EnvironmentScore    prometheus.Gauge
	StabilizedGroups    prometheus.Gauge
}

// NewPipelineMetrics creates the pipeline metrics and registers them with registry.
func NewPipelineMetrics(registry prometheus.Registerer) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.Operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dsnscan_operations_total",
		Help: "Total number of pipeline operations by outcome",
	}, []string{"operation", "status"})

	m.OperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dsnscan_operation_duration_seconds",
		Help:    "Duration of pipeline operations in seconds",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms/10, BucketFactor2, BucketCount10+2),
	}, []string{"operation"})

	m.Errors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dsnscan_errors_total",
		Help: "Total number of errors by operation and category",
	}, []string{"operation", "category"})

	m.Decisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dsnscan_decisions_total",
		Help: "Total number of scored readings by decision and component type",
	}, []string{"decision", "component_type"})

	m.CompositeConfidence = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dsnscan_composite_confidence",
		Help:    "Distribution of composite confidence per component type",
		Buckets: prometheus.LinearBuckets(0, ConfidenceBucketWidth, ConfidenceBucketCount),
	}, []string{"component_type"})

	m.EnvironmentScore = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dsnscan_environment_score",
		Help: "Most recent environmental score in [0,1]",
	})

	m.StabilizedGroups = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dsnscan_stabilizer_groups",
		Help: "Number of reading groups in the stabilizer window after the last pass",
	})
}

// RecordOperation implements Recorder.
func (m *PipelineMetrics) RecordOperation(operation, status string) {
	m.Operations.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder.
func (m *PipelineMetrics) RecordDuration(operation string, seconds float64) {
	m.OperationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder.
func (m *PipelineMetrics) RecordError(operation, errorType string) {
	m.Errors.WithLabelValues(operation, errorType).Inc()
}

// RecordDecision counts one scored reading and observes its composite confidence
func (m *PipelineMetrics) RecordDecision(decision, componentType string, composite float64) {
	m.Decisions.WithLabelValues(decision, componentType).Inc()
	m.CompositeConfidence.WithLabelValues(componentType).Observe(composite)
}

// SetEnvironmentScore updates the environment score gauge
func (m *PipelineMetrics) SetEnvironmentScore(score float64) {
	m.EnvironmentScore.Set(score)
}

// SetStabilizedGroups updates the stabilizer group gauge
func (m *PipelineMetrics) SetStabilizedGroups(n int) {
	m.StabilizedGroups.Set(float64(n))
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Operations.Describe(ch)
	m.OperationDuration.Describe(ch)
	m.Errors.Describe(ch)
	m.Decisions.Describe(ch)
	m.CompositeConfidence.Describe(ch)
	ch <- m.EnvironmentScore.Desc()
	ch <- m.StabilizedGroups.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Operations.Collect(ch)
	m.OperationDuration.Collect(ch)
	m.Errors.Collect(ch)
	m.Decisions.Collect(ch)
	m.CompositeConfidence.Collect(ch)
	ch <- m.EnvironmentScore
	ch <- m.StabilizedGroups
}
