// Package fusion blends native recognition confidence with pattern, stability
// and environmental signals into one composite confidence and decides whether
// a reading can be auto-accepted.
package fusion

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/scanline/dsnscan/internal/conf"
	"github.com/scanline/dsnscan/internal/dsn"
)

// BoundingBox is the screen-space box of a text fragment
type BoundingBox struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Centroid returns the box center
func (b BoundingBox) Centroid() r2.Vec {
	return r2.Vec{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Diagonal returns the length of the box diagonal
func (b BoundingBox) Diagonal() float64 {
	return math.Hypot(b.Width, b.Height)
}

// Factors are the four independent signals behind a composite confidence
type Factors struct {
	Native        float64 `json:"native"`
	Pattern       float64 `json:"pattern"`
	Stability     float64 `json:"stability"`
	Environmental float64 `json:"environmental"`
}

// Input is one reading to score
type Input struct {
	Text        string       // raw or normalized text
	Native      *float64     // recognition engine confidence, nil when absent
	BoundingBox *BoundingBox // current box, nil when absent
	// Track holds recent boxes of the same reading, oldest first, ending with the current one
	Track         []BoundingBox
	ComponentType dsn.ComponentType // expected type; ComponentUnknown uses the inferred type
	Timestamp     time.Time
	Environmental *float64 // environmental score, nil uses the configured default
	// ForceVerification keeps the result from auto-accepting regardless of score
	ForceVerification bool
}

// EnhancedResult is the outcome of one scoring pass
type EnhancedResult struct {
	Text                       string               `json:"text"`
	ComponentType              dsn.ComponentType    `json:"component_type"`
	Tier                       dsn.ConfidenceTier   `json:"tier"`
	PatternMatched             bool                 `json:"pattern_matched"`
	CompositeConfidence        float64              `json:"composite_confidence"`
	RequiresManualVerification bool                 `json:"requires_manual_verification"`
	Factors                    Factors              `json:"factors"`
	ThresholdUsed              float64              `json:"threshold_used"`
	BaseThreshold              float64              `json:"base_threshold"`
	Strictness                 conf.Strictness      `json:"strictness"`
	Sensitivity                conf.SensitivityMode `json:"sensitivity"`
	EstimatedNative            bool                 `json:"estimated_native"`
	Decision                   Decision             `json:"decision"`
	Timestamp                  time.Time            `json:"timestamp"`
}

// HistoryPoint is one entry of the confidence history
type HistoryPoint struct {
	Timestamp                  time.Time         `json:"timestamp"`
	Text                       string            `json:"text"`
	ComponentType              dsn.ComponentType `json:"component_type"`
	CompositeConfidence        float64           `json:"composite_confidence"`
	RequiresManualVerification bool              `json:"requires_manual_verification"`
	Decision                   Decision          `json:"decision"`
}
