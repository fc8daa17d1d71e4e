package fusion

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanline/dsnscan/internal/conf"
	"github.com/scanline/dsnscan/internal/dsn"
)

func ptr(v float64) *float64 { return &v }

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestEvaluate_ControllerAutoAccepted(t *testing.T) {
	t.Parallel()

	res := Evaluate(conf.Default(), Input{Text: "G0G46K123456789", Native: ptr(0.95), Timestamp: testTime})

	assert.Equal(t, dsn.ComponentController, res.ComponentType)
	assert.Equal(t, dsn.TierHigh, res.Tier)
	assert.InDelta(t, 0.95, res.Factors.Native, 1e-9)
	assert.InDelta(t, 1.0, res.Factors.Pattern, 1e-9)
	assert.InDelta(t, 0.6, res.Factors.Stability, 1e-9, "no history gives the mid stability score")
	assert.InDelta(t, 1.0, res.Factors.Environmental, 1e-9)
	assert.InDelta(t, 0.915, res.CompositeConfidence, 1e-9)
	assert.GreaterOrEqual(t, res.CompositeConfidence, res.ThresholdUsed)
	assert.False(t, res.RequiresManualVerification)
	assert.Equal(t, DecisionAutoAccepted, res.Decision)
	assert.Equal(t, testTime, res.Timestamp)
}

func TestEvaluate_BatteryPendingConfirmation(t *testing.T) {
	t.Parallel()

	res := Evaluate(conf.Default(), Input{Text: "BAT-001234", Native: ptr(0.75)})

	assert.Equal(t, dsn.ComponentBattery01, res.ComponentType)
	assert.Equal(t, conf.StrictnessStrict, res.Strictness)
	assert.InDelta(t, 0.85, res.Factors.Pattern, 1e-9)
	assert.InDelta(t, 0.7775, res.CompositeConfidence, 1e-9)
	assert.InDelta(t, 0.75, res.BaseThreshold, 1e-9)
	assert.InDelta(t, 0.95, res.ThresholdUsed, 1e-9)
	assert.True(t, res.RequiresManualVerification)
	assert.Equal(t, DecisionPendingConfirmation, res.Decision)
}

func TestEvaluate_Deterministic(t *testing.T) {
	t.Parallel()

	cfg := conf.Default()
	in := Input{
		Text:          "G0H A1B 123456",
		Native:        ptr(0.81),
		Track:         []BoundingBox{{X: 10, Y: 10, Width: 100, Height: 20}, {X: 11, Y: 10, Width: 100, Height: 20}, {X: 11, Y: 11, Width: 100, Height: 20}},
		Environmental: ptr(0.7),
	}
	first := Evaluate(cfg, in)
	for range 20 {
		assert.Equal(t, first, Evaluate(cfg, in))
	}
}

func TestEvaluate_MonotonicInNative(t *testing.T) {
	t.Parallel()

	cfg := conf.Default()
	texts := []string{"G0G46K123456789", "BAT-001234", "ABCDEF12", "xk#9"}
	for _, text := range texts {
		prev := -1.0
		for i := 0; i <= 20; i++ {
			res := Evaluate(cfg, Input{Text: text, Native: ptr(float64(i) / 20)})
			assert.GreaterOrEqual(t, res.CompositeConfidence, prev, "%s at native %.2f", text, float64(i)/20)
			prev = res.CompositeConfidence
		}
	}
}

func TestEvaluate_ThresholdBoundary(t *testing.T) {
	t.Parallel()

	cfg := conf.Default()
	cfg.OCR.Weights = conf.FusionWeights{Native: 1}

	at := Evaluate(cfg, Input{Text: "G0G46K123456789", Native: ptr(0.9)})
	assert.InDelta(t, 0.9, at.ThresholdUsed, 1e-12)
	assert.False(t, at.RequiresManualVerification, "composite equal to the threshold is accepted")
	assert.Equal(t, DecisionAutoAccepted, at.Decision)

	below := Evaluate(cfg, Input{Text: "G0G46K123456789", Native: ptr(math.Nextafter(0.9, 0))})
	assert.True(t, below.RequiresManualVerification)
	assert.Equal(t, DecisionPendingConfirmation, below.Decision)
}

func TestEvaluate_UnknownTypeUsesGlobalThresholds(t *testing.T) {
	t.Parallel()

	cfg := conf.Default()
	cfg.OCR.BaseThreshold = 0.6
	cfg.OCR.ManualVerificationThreshold = 0.85

	res := Evaluate(cfg, Input{Text: "ABCDEF12", Native: ptr(0.9)})
	assert.Equal(t, dsn.ComponentUnknown, res.ComponentType)
	assert.True(t, res.PatternMatched)
	assert.InDelta(t, 0.6, res.BaseThreshold, 1e-9)
	assert.InDelta(t, 0.85, res.ThresholdUsed, 1e-9)
	assert.Equal(t, conf.StrictnessMedium, res.Strictness)
}

func TestEvaluate_ExpectedTypeOverridesInference(t *testing.T) {
	t.Parallel()

	cfg := conf.Default()

	res := Evaluate(cfg, Input{Text: "PAD-123456", Native: ptr(0.9), ComponentType: dsn.ComponentBattery02})
	assert.Equal(t, dsn.ComponentBattery02, res.ComponentType)
	assert.InDelta(t, 0.85*0.4, res.Factors.Pattern, 1e-9, "strict type mismatch is penalized")

	res = Evaluate(cfg, Input{Text: "BAT-001234", Native: ptr(0.9), ComponentType: dsn.ComponentBattery02})
	assert.InDelta(t, 0.85, res.Factors.Pattern, 1e-9, "any battery satisfies a battery slot")
}

func TestEvaluate_EstimatedNativeForcesVerification(t *testing.T) {
	t.Parallel()

	cfg := conf.Default()
	cfg.OCR.Weights = conf.FusionWeights{Pattern: 1}

	res := Evaluate(cfg, Input{Text: "G0G46K123456789"})
	assert.True(t, res.EstimatedNative)
	assert.InDelta(t, 0.7, res.Factors.Native, 1e-9)
	assert.InDelta(t, 1.0, res.CompositeConfidence, 1e-9)
	assert.True(t, res.RequiresManualVerification)
	assert.Equal(t, DecisionPendingConfirmation, res.Decision)

	cfg.OCR.AllowEstimatedAutoAccept = true
	res = Evaluate(cfg, Input{Text: "G0G46K123456789"})
	assert.False(t, res.RequiresManualVerification)
	assert.Equal(t, DecisionAutoAccepted, res.Decision)

	res = Evaluate(cfg, Input{Text: "G0G46K123456789", Native: ptr(math.NaN())})
	assert.True(t, res.EstimatedNative, "NaN is treated as absent")
}

func TestEvaluate_ForceVerification(t *testing.T) {
	t.Parallel()

	res := Evaluate(conf.Default(), Input{Text: "G0G46K123456789", Native: ptr(1), ForceVerification: true})
	assert.True(t, res.RequiresManualVerification)
	assert.Equal(t, DecisionPendingConfirmation, res.Decision)
}

func TestEvaluate_UnmatchedNeedsManualEntry(t *testing.T) {
	t.Parallel()

	res := Evaluate(conf.Default(), Input{Text: "xk#9", Native: ptr(1)})
	assert.False(t, res.PatternMatched)
	assert.True(t, res.RequiresManualVerification)
	assert.Equal(t, DecisionManualEntryRequired, res.Decision)
}

func TestEvaluate_Environment(t *testing.T) {
	t.Parallel()

	cfg := conf.Default()
	in := Input{Text: "G0G46K123456789", Native: ptr(0.95)}

	neutral := Evaluate(cfg, in)
	in.Environmental = ptr(0.4)
	dim := Evaluate(cfg, in)
	assert.InDelta(t, 0.4, dim.Factors.Environmental, 1e-9)
	assert.InDelta(t, 0.06, neutral.CompositeConfidence-dim.CompositeConfidence, 1e-9)

	cfg.OCR.EnvironmentalAdaptation = false
	off := Evaluate(cfg, in)
	assert.InDelta(t, cfg.Environment.DefaultScore, off.Factors.Environmental, 1e-9)
}

func TestEvaluate_Sensitivity(t *testing.T) {
	t.Parallel()

	cfg := conf.Default()
	in := Input{Text: "BAT-001234", Native: ptr(0.75)}
	balanced := Evaluate(cfg, in).CompositeConfidence

	cfg.OCR.SensitivityMode = conf.SensitivityConservative
	assert.InDelta(t, balanced*0.95, Evaluate(cfg, in).CompositeConfidence, 1e-9)

	cfg.OCR.SensitivityMode = conf.SensitivityAggressive
	assert.InDelta(t, balanced*1.05, Evaluate(cfg, in).CompositeConfidence, 1e-9)

	in.Native = ptr(1)
	in.Text = "G0G46K123456789"
	in.Track = stationaryTrack(3)
	assert.InDelta(t, 1.0, Evaluate(cfg, in).CompositeConfidence, 1e-9, "composite is clamped to 1")
}

func TestEngine_HistoryIsBounded(t *testing.T) {
	t.Parallel()

	cfg := conf.Default()
	cfg.OCR.HistorySize = 3
	e := NewEngine(cfg.OCR.HistorySize)

	e.Evaluate(cfg, Input{Text: "G0G46K123456789", Native: ptr(0.9)})
	assert.Empty(t, e.History(), "Evaluate does not record")

	texts := []string{"ABCDEF11", "ABCDEF12", "ABCDEF13", "ABCDEF14", "ABCDEF15"}
	for i, text := range texts {
		e.Score(cfg, Input{Text: text, Native: ptr(0.8), Timestamp: testTime.Add(time.Duration(i) * time.Second)})
	}

	history := e.History()
	require.Len(t, history, 3)
	assert.Equal(t, "ABCDEF13", history[0].Text)
	assert.Equal(t, "ABCDEF15", history[2].Text)
	assert.Equal(t, testTime.Add(4*time.Second), history[2].Timestamp)

	cfg.OCR.HistorySize = 5
	e.Score(cfg, Input{Text: "ABCDEF16", Native: ptr(0.8)})
	assert.Len(t, e.History(), 4, "growing the capacity keeps existing points")

	e.Reset()
	assert.Empty(t, e.History())
}
