package fusion

import (
	"math"
	"sync"

	"github.com/scanline/dsnscan/internal/conf"
	"github.com/scanline/dsnscan/internal/dsn"
	"github.com/scanline/dsnscan/internal/logger"
	"github.com/scanline/dsnscan/internal/ringbuf"
)

// Engine scores readings and keeps a bounded confidence history.
// It is safe for concurrent use.
type Engine struct {
	mu      sync.Mutex
	history *ringbuf.Buffer[HistoryPoint]
	log     logger.Logger
}

// NewEngine returns an engine whose history holds historySize points
func NewEngine(historySize int) *Engine {
	return &Engine{
		history: ringbuf.New[HistoryPoint](historySize),
		log:     logger.Global().Module("fusion"),
	}
}

// Evaluate scores in against cfg without touching the history
func (e *Engine) Evaluate(cfg *conf.Settings, in Input) EnhancedResult {
	return Evaluate(cfg, in)
}

// Score evaluates in and records the result in the confidence history. The
// history capacity follows cfg.OCR.HistorySize.
func (e *Engine) Score(cfg *conf.Settings, in Input) EnhancedResult {
	res := Evaluate(cfg, in)

	e.mu.Lock()
	if e.history.Cap() != cfg.OCR.HistorySize {
		e.history.Resize(cfg.OCR.HistorySize)
	}
	e.history.Push(HistoryPoint{
		Timestamp:                  res.Timestamp,
		Text:                       res.Text,
		ComponentType:              res.ComponentType,
		CompositeConfidence:        res.CompositeConfidence,
		RequiresManualVerification: res.RequiresManualVerification,
		Decision:                   res.Decision,
	})
	e.mu.Unlock()

	e.log.Trace("reading scored",
		logger.String("text", res.Text),
		logger.String("component_type", res.ComponentType.String()),
		logger.Float64("composite", res.CompositeConfidence),
		logger.String("decision", string(res.Decision)))
	return res
}

// History returns a copy of the confidence history, oldest first
func (e *Engine) History() []HistoryPoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Snapshot()
}

// Reset clears the confidence history
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history.Clear()
}

// Evaluate computes the composite confidence and decision for one reading.
// It is a pure function of cfg and in.
func Evaluate(cfg *conf.Settings, in Input) EnhancedResult {
	c := dsn.Classify(in.Text)

	componentType := in.ComponentType
	if !componentType.Known() {
		componentType = c.ComponentType
	}
	base, manual, strictness := cfg.OCR.Thresholds(componentType)

	native, estimated := nativeConfidence(in.Native, c.NormalizedText, strictness == conf.StrictnessStrict)

	factors := Factors{
		Native:        native,
		Pattern:       PatternScore(c, strictness, in.ComponentType),
		Stability:     stabilityFor(in, cfg.OCR.StabilityFrames),
		Environmental: environmentalScore(cfg, in.Environmental),
	}

	w := cfg.OCR.Weights
	weighted := w.Native*factors.Native +
		w.Pattern*factors.Pattern +
		w.Stability*factors.Stability +
		w.Environmental*factors.Environmental
	composite := RoundConfidence(clamp01(weighted * cfg.OCR.SensitivityMode.Multiplier()))

	forced := in.ForceVerification || (estimated && !cfg.OCR.AllowEstimatedAutoAccept)
	requires := composite < manual || forced || !c.PatternMatched

	return EnhancedResult{
		Text:                       c.NormalizedText,
		ComponentType:              componentType,
		Tier:                       c.Tier,
		PatternMatched:             c.PatternMatched,
		CompositeConfidence:        composite,
		RequiresManualVerification: requires,
		Factors:                    factors,
		ThresholdUsed:              manual,
		BaseThreshold:              base,
		Strictness:                 strictness,
		Sensitivity:                cfg.OCR.SensitivityMode,
		EstimatedNative:            estimated,
		Decision:                   Decide(composite, base, manual, c.PatternMatched, forced),
		Timestamp:                  in.Timestamp,
	}
}

// nativeConfidence clamps a reported confidence or estimates one
func nativeConfidence(reported *float64, normalized string, strict bool) (float64, bool) {
	if reported != nil && !math.IsNaN(*reported) {
		return clamp01(*reported), false
	}
	return EstimateNative(normalized, strict), true
}

func stabilityFor(in Input, frames int) float64 {
	track := in.Track
	if len(track) == 0 && in.BoundingBox != nil {
		track = []BoundingBox{*in.BoundingBox}
	}
	return StabilityScore(track, frames)
}

func environmentalScore(cfg *conf.Settings, score *float64) float64 {
	if !cfg.OCR.EnvironmentalAdaptation || score == nil || math.IsNaN(*score) {
		return cfg.Environment.DefaultScore
	}
	return clamp01(*score)
}
