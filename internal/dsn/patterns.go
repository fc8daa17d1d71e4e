package dsn

import "regexp"

// serialPattern is one accepted serial format
type serialPattern struct {
	name      string
	re        *regexp.Regexp
	needDigit bool
}

// productPatterns are the product-specific formats, checked first.
var productPatterns = []serialPattern{
	{name: "glasses", re: regexp.MustCompile(`^G0H[0-9A-Z]{3}\d{6,}$`)},
	{name: "controller", re: regexp.MustCompile(`^G0G[0-9A-Z]{3}\d{6,}$`)},
	{name: "battery", re: regexp.MustCompile(`^(G0B[1-3]|BAT)[-_ ]?\d{6,}$`)},
	{name: "pads", re: regexp.MustCompile(`^PAD[-_ ]?\d{6,}$`)},
}

// genericPatterns validate that text looks like a serial without implying a type.
var genericPatterns = []serialPattern{
	{name: "prefix_digits", re: regexp.MustCompile(`^[A-Z]{1,4}[-_ ]?\d{4,}$`)},
	{name: "alternating_blocks", re: regexp.MustCompile(`^\d*([A-Z]+\d+){2,}[A-Z]*$`)},
	{name: "dash_numeric", re: regexp.MustCompile(`^\d{2,}(-\d{2,})+$`)},
	{name: "underscore_delimited", re: regexp.MustCompile(`^[A-Z0-9]+(_[A-Z0-9]+)+$`), needDigit: true},
	{name: "bare_alphanumeric", re: regexp.MustCompile(`^[A-Z0-9]{8,}$`), needDigit: true},
}

func (p serialPattern) match(normalized string) bool {
	if p.needDigit && !hasDigit(normalized) {
		return false
	}
	return p.re.MatchString(normalized)
}

// typeRule maps a regular expression to the component type it implies
type typeRule struct {
	re        *regexp.Regexp
	component ComponentType
}

type typeBand int

const (
	bandNone typeBand = iota
	bandLow
	bandMedium
	bandHigh
)

// Type inference bands, evaluated high to low; the first band with a match wins
// and within a band the first rule wins.
var (
	highTypeRules = []typeRule{
		{regexp.MustCompile(`^G0H`), ComponentGlasses},
		{regexp.MustCompile(`^G0G`), ComponentController},
		{regexp.MustCompile(`^G0B1`), ComponentBattery01},
		{regexp.MustCompile(`^G0B2`), ComponentBattery02},
		{regexp.MustCompile(`^G0B3`), ComponentBattery03},
	}
	mediumTypeRules = []typeRule{
		{regexp.MustCompile(`^BAT`), ComponentBattery01},
		{regexp.MustCompile(`^PAD`), ComponentPads},
		{regexp.MustCompile(`^(CTRL|CTL)`), ComponentController},
		{regexp.MustCompile(`^(GLS|GLASS)`), ComponentGlasses},
		{regexp.MustCompile(`^U0?1[-_ ]?\d`), ComponentUnused01},
		{regexp.MustCompile(`^U0?2[-_ ]?\d`), ComponentUnused02},
	}
	lowTypeRules = []typeRule{
		{regexp.MustCompile(`BATT?`), ComponentBattery01},
		{regexp.MustCompile(`PAD`), ComponentPads},
		{regexp.MustCompile(`CONTROL|CTRL`), ComponentController},
		{regexp.MustCompile(`GLASS`), ComponentGlasses},
		{regexp.MustCompile(`^G0`), ComponentController},
	}
)

var batteryHint = regexp.MustCompile(`BATT?|G0B[1-3]`)

func inferType(normalized string) (ComponentType, typeBand) {
	bands := [...]struct {
		band  typeBand
		rules []typeRule
	}{
		{bandHigh, highTypeRules},
		{bandMedium, mediumTypeRules},
		{bandLow, lowTypeRules},
	}
	for _, b := range bands {
		for _, r := range b.rules {
			if r.re.MatchString(normalized) {
				return r.component, b.band
			}
		}
	}
	return ComponentUnknown, bandNone
}

func hasDigit(s string) bool {
	for i := range len(s) {
		if s[i] >= '0' && s[i] <= '9' {
			return true
		}
	}
	return false
}
