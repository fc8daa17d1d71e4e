// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Operation names recorded through Recorder.
const (
	// OpFrame is one analysis pass over a frame.
	OpFrame = "frame"
	// OpFusion is composite confidence scoring of one candidate.
	OpFusion = "fusion"
	// OpStabilize is multi-frame grouping of one frame's candidates.
	OpStabilize = "stabilize"
	// OpManualEntry is validation of a manually typed serial.
	OpManualEntry = "manual_entry"
	// OpPublish is publishing a frame result.
	OpPublish = "publish"
	// OpConfigReload is a configuration hot reload.
	OpConfigReload = "config_reload"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	// StatusDropped marks a frame rejected by the analysis throttle or a full queue.
	StatusDropped = "dropped"
	// StatusEmpty marks a frame without usable candidates.
	StatusEmpty = "empty"
)

// Histogram bucket configuration constants.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketStart64B is the starting bucket for 64 byte histograms.
	BucketStart64B = 64.0
	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2
	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// ConfidenceBucketWidth is the width of the linear confidence buckets.
	ConfidenceBucketWidth = 0.05
	// ConfidenceBucketCount covers [0,1] in ConfidenceBucketWidth steps.
	ConfidenceBucketCount = 21
)

// ShutdownTimeout is the timeout for graceful shutdown operations.
const ShutdownTimeout = 5 * time.Second
