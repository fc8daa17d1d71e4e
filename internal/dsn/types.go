// Package dsn classifies device serial numbers read by OCR.
//
// Everything in this package is a pure function of its input: the same text
// always yields the same ClassificationResult.
package dsn

import "fmt"

// ComponentType identifies the equipment role a serial belongs to.
// The zero value ComponentUnknown means no type could be inferred.
type ComponentType string

const (
	ComponentUnknown    ComponentType = ""
	ComponentGlasses    ComponentType = "glasses"
	ComponentController ComponentType = "controller"
	ComponentBattery01  ComponentType = "battery_01"
	ComponentBattery02  ComponentType = "battery_02"
	ComponentBattery03  ComponentType = "battery_03"
	ComponentPads       ComponentType = "pads"
	ComponentUnused01   ComponentType = "unused_01"
	ComponentUnused02   ComponentType = "unused_02"
)

// ComponentTypes lists every known component type in display order
var ComponentTypes = []ComponentType{
	ComponentGlasses,
	ComponentController,
	ComponentBattery01,
	ComponentBattery02,
	ComponentBattery03,
	ComponentPads,
	ComponentUnused01,
	ComponentUnused02,
}

// Known reports whether c is one of the fixed component types
func (c ComponentType) Known() bool {
	switch c {
	case ComponentGlasses, ComponentController,
		ComponentBattery01, ComponentBattery02, ComponentBattery03,
		ComponentPads, ComponentUnused01, ComponentUnused02:
		return true
	default:
		return false
	}
}

// IsBattery reports whether c is one of the battery slots
func (c ComponentType) IsBattery() bool {
	switch c {
	case ComponentBattery01, ComponentBattery02, ComponentBattery03:
		return true
	default:
		return false
	}
}

// String returns "none" for ComponentUnknown
func (c ComponentType) String() string {
	if c == ComponentUnknown {
		return "none"
	}
	return string(c)
}

// ParseComponentType accepts the canonical names. The empty string and "none" map to ComponentUnknown.
func ParseComponentType(s string) (ComponentType, error) {
	if s == "" || s == "none" {
		return ComponentUnknown, nil
	}
	c := ComponentType(s)
	if !c.Known() {
		return ComponentUnknown, fmt.Errorf("unknown component type %q", s)
	}
	return c, nil
}

// ConfidenceTier grades how strongly the text matched the serial patterns.
// It is independent of the composite confidence.
type ConfidenceTier int

const (
	TierLow ConfidenceTier = iota
	TierMedium
	TierHigh
)

func (t ConfidenceTier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// MarshalText renders the tier by name in JSON and YAML
func (t ConfidenceTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a tier name written by MarshalText
func (t *ConfidenceTier) UnmarshalText(b []byte) error {
	switch string(b) {
	case "high":
		*t = TierHigh
	case "medium":
		*t = TierMedium
	case "low":
		*t = TierLow
	default:
		return fmt.Errorf("unknown confidence tier %q", string(b))
	}
	return nil
}

// ClassificationResult is the output of Classify
type ClassificationResult struct {
	NormalizedText string         `json:"normalized_text"`
	ComponentType  ComponentType  `json:"component_type"`
	Tier           ConfidenceTier `json:"tier"`

	// PatternMatched is true when any serial format matched
	PatternMatched bool `json:"pattern_matched"`
	// ProductPattern is true when a product-specific format matched
	ProductPattern bool `json:"product_pattern"`
	// PatternName names the first format that matched, empty when none did
	PatternName string `json:"pattern_name,omitempty"`
}
