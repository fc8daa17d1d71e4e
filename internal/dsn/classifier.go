package dsn

// Classify normalizes text, matches it against the serial formats and infers
// the component type.
//
// Tier is High only when a product format matched and the type came from the
// high inference band; Medium when any format matched and the type came from
// the high or medium band; Low otherwise.
func Classify(text string) ClassificationResult {
	normalized := Normalize(text)
	res := ClassificationResult{NormalizedText: normalized, Tier: TierLow}
	if normalized == "" {
		return res
	}

	for _, p := range productPatterns {
		if p.match(normalized) {
			res.PatternMatched = true
			res.ProductPattern = true
			res.PatternName = p.name
			break
		}
	}
	if !res.PatternMatched {
		for _, p := range genericPatterns {
			if p.match(normalized) {
				res.PatternMatched = true
				res.PatternName = p.name
				break
			}
		}
	}

	component, band := inferType(normalized)
	res.ComponentType = component

	switch {
	case res.ProductPattern && band == bandHigh:
		res.Tier = TierHigh
	case res.PatternMatched && (band == bandHigh || band == bandMedium):
		res.Tier = TierMedium
	default:
		res.Tier = TierLow
	}
	return res
}

// IsDSN reports whether text matches any serial format after normalization
func IsDSN(text string) bool {
	return Classify(text).PatternMatched
}

// IsLikelyBattery reports whether text carries a battery marker, regardless
// of which battery slot it would be inferred as.
func IsLikelyBattery(text string) bool {
	return batteryHint.MatchString(Normalize(text))
}
