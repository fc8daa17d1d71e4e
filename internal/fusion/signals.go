package fusion

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/scanline/dsnscan/internal/conf"
	"github.com/scanline/dsnscan/internal/dsn"
)

const (
	// insufficientHistoryStability is used when there are too few boxes to measure drift
	insufficientHistoryStability = 0.6

	estimateCap         = 0.7
	estimateBase        = 0.4
	estimateLengthBonus = 0.2
	estimateMixedBonus  = 0.1
	strictEstimateBias  = 0.85

	strictMismatchFactor = 0.4
)

// EstimateNative synthesizes a native confidence for engines that report
// none, from length and character mix. The estimate never exceeds 0.7 and is
// lowered further for strict component types.
func EstimateNative(normalized string, strict bool) float64 {
	compact := dsn.Compact(normalized)
	if compact == "" {
		return 0
	}

	lengthScore := clamp01(float64(len(compact)-4) / 8)
	est := estimateBase + estimateLengthBonus*lengthScore
	if hasLetterAndDigit(compact) {
		est += estimateMixedBonus
	}
	est = min(est, estimateCap)
	if strict {
		est *= strictEstimateBias
	}
	return est
}

// PatternScore scores a classification under a strictness policy. expected is
// the component type the caller is scanning for; ComponentUnknown skips the
// strict type check.
func PatternScore(c dsn.ClassificationResult, strictness conf.Strictness, expected dsn.ComponentType) float64 {
	switch strictness {
	case conf.StrictnessLoose:
		if c.PatternMatched {
			return 0.9
		}
		return 0.3
	case conf.StrictnessStrict:
		if !c.PatternMatched {
			return 0.1
		}
		score := conformanceScore(c)
		if expected.Known() && c.ComponentType != expected && !batteryCrossSlot(c, expected) {
			score *= strictMismatchFactor
		}
		return score
	case conf.StrictnessMedium:
		if !c.PatternMatched {
			return 0.2
		}
		return conformanceScore(c)
	default:
		if !c.PatternMatched {
			return 0.2
		}
		return conformanceScore(c)
	}
}

// conformanceScore rewards tier, a plausible length and a product prefix
func conformanceScore(c dsn.ClassificationResult) float64 {
	var score float64
	switch c.Tier {
	case dsn.TierHigh:
		score = 1.0
	case dsn.TierMedium:
		score = 0.75
	case dsn.TierLow:
		score = 0.5
	default:
		score = 0.5
	}
	if n := len(dsn.Compact(c.NormalizedText)); n >= 8 && n <= 20 {
		score += 0.05
	}
	if c.ProductPattern {
		score += 0.05
	}
	return clamp01(score)
}

// batteryCrossSlot lets a battery reading satisfy any battery slot
func batteryCrossSlot(c dsn.ClassificationResult, expected dsn.ComponentType) bool {
	return expected.IsBattery() && dsn.IsLikelyBattery(c.NormalizedText)
}

// StabilityScore measures centroid drift across the last frames boxes of
// track, relative to the newest box diagonal. Fewer boxes than frames
// returns a conservative mid score.
func StabilityScore(track []BoundingBox, frames int) float64 {
	if frames < 2 {
		frames = 2
	}
	if len(track) < frames {
		return insufficientHistoryStability
	}
	recent := track[len(track)-frames:]

	scale := recent[len(recent)-1].Diagonal()
	if scale <= 0 {
		return insufficientHistoryStability
	}

	var total float64
	for i := 1; i < len(recent); i++ {
		total += r2.Norm(r2.Sub(recent[i].Centroid(), recent[i-1].Centroid()))
	}
	drift := total / float64(len(recent)-1) / scale

	switch {
	case drift < 0.02:
		return 1.0
	case drift < 0.05:
		return 0.9
	case drift < 0.1:
		return 0.75
	case drift < 0.2:
		return 0.5
	default:
		return 0.3
	}
}

func hasLetterAndDigit(s string) bool {
	var letter, digit bool
	for i := range len(s) {
		switch c := s[i]; {
		case c >= 'A' && c <= 'Z':
			letter = true
		case c >= '0' && c <= '9':
			digit = true
		}
	}
	return letter && digit
}

// confidenceSteps is the number of steps per unit confidences are reported
// at. Averages and weighted sums are rounded to it so a value equal to a
// threshold on paper does not land one float step below it.
const confidenceSteps = 1e9

// RoundConfidence rounds v to the reporting resolution
func RoundConfidence(v float64) float64 {
	return math.Round(v*confidenceSteps) / confidenceSteps
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
