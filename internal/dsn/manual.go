package dsn

import "fmt"

// DefaultMinTextLength is the shortest serial accepted from manual entry
const DefaultMinTextLength = 6

// ManualEntryResult is the outcome of ValidateManualEntry
type ManualEntryResult struct {
	Valid          bool           `json:"valid"`
	NormalizedText string         `json:"normalized_text,omitempty"`
	ComponentType  ComponentType  `json:"component_type,omitempty"`
	Tier           ConfidenceTier `json:"tier"`
	Error          string         `json:"error,omitempty"`
}

// ValidateManualEntry holds a typed serial to the same normalization and
// format rules as camera readings. A minLength below 1 uses DefaultMinTextLength.
func ValidateManualEntry(text string, minLength int) ManualEntryResult {
	if minLength < 1 {
		minLength = DefaultMinTextLength
	}

	c := Classify(text)
	res := ManualEntryResult{NormalizedText: c.NormalizedText, Tier: c.Tier}

	switch {
	case c.NormalizedText == "":
		res.Error = "serial is empty"
	case len(Compact(c.NormalizedText)) < minLength:
		res.Error = fmt.Sprintf("serial must be at least %d characters", minLength)
	case !c.PatternMatched:
		res.Error = "serial does not match any known serial format"
	default:
		res.Valid = true
		res.ComponentType = c.ComponentType
	}
	return res
}
