// conf/validate.go

package conf

import (
	"fmt"
	"math"
	"net"
	"net/url"
	"strings"

	"github.com/scanline/dsnscan/internal/dsn"
	"github.com/scanline/dsnscan/internal/logger"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings reports problems that Sanitize cannot repair.
// Call it after Sanitize.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateLoggingSettings(&settings.Logging); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateDiagnosticsSettings(&settings.Diagnostics); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateMQTTSettings(&settings.MQTT); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateLoggingSettings(cfg *logger.LoggingConfig) error {
	var errs []string

	levels := map[string]string{"defaultlevel": cfg.DefaultLevel}
	if cfg.Console != nil {
		levels["console.level"] = cfg.Console.Level
	}
	if cfg.FileOutput != nil {
		levels["fileoutput.level"] = cfg.FileOutput.Level
		if cfg.FileOutput.Enabled && strings.TrimSpace(cfg.FileOutput.Path) == "" {
			errs = append(errs, "log file output is enabled but no path is set")
		}
	}
	for module, level := range cfg.ModuleLevels {
		levels["modulelevels."+module] = level
	}
	for key, level := range levels {
		if level == "" {
			continue
		}
		switch logger.LogLevel(strings.ToLower(level)) {
		case logger.LogLevelTrace, logger.LogLevelDebug, logger.LogLevelInfo, logger.LogLevelWarn, logger.LogLevelError:
		default:
			errs = append(errs, fmt.Sprintf("logging %s: unknown level %q", key, level))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("logging settings errors: %v", errs)
	}
	return nil
}

func validateDiagnosticsSettings(cfg *DiagnosticsSettings) error {
	if !cfg.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.Listen); err != nil {
		return fmt.Errorf("diagnostics listen address %q is invalid: %w", cfg.Listen, err)
	}
	return nil
}

func validateMQTTSettings(cfg *MQTTSettings) error {
	if !cfg.Enabled {
		return nil
	}

	var errs []string
	if cfg.Broker == "" {
		errs = append(errs, "MQTT broker URL is required when MQTT is enabled")
	} else if u, err := url.Parse(cfg.Broker); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("MQTT broker URL %q is invalid", cfg.Broker))
	}
	if cfg.Topic == "" {
		errs = append(errs, "MQTT topic is required when MQTT is enabled")
	}
	if cfg.QoS > 2 {
		errs = append(errs, fmt.Sprintf("MQTT QoS must be 0, 1 or 2, got %d", cfg.QoS))
	}

	if len(errs) > 0 {
		return fmt.Errorf("MQTT settings errors: %v", errs)
	}
	return nil
}

// Sanitize repairs recoverable configuration problems in place and returns a
// note for every adjustment. Unknown modes fall back to defaults and numeric
// thresholds are clamped into [0,1].
func Sanitize(s *Settings) []string {
	var notes []string
	note := func(format string, args ...any) {
		notes = append(notes, fmt.Sprintf(format, args...))
	}

	sanitizeConfidence(&s.OCR, note)
	sanitizeStabilizer(&s.Stabilizer, note)
	sanitizeEnvironment(&s.Environment, note)
	if s.Logging.ModuleLevels == nil {
		s.Logging.ModuleLevels = make(map[string]string)
	}
	return notes
}

type noteFunc func(format string, args ...any)

func sanitizeConfidence(c *ConfidenceSettings, note noteFunc) {
	if mode, ok := ParseSensitivityMode(string(c.SensitivityMode)); ok {
		c.SensitivityMode = mode
	} else {
		note("unknown sensitivity mode %q, using %s", c.SensitivityMode, DefaultSensitivity)
		c.SensitivityMode = DefaultSensitivity
	}

	if strictness, ok := ParseStrictness(string(c.DefaultStrictness)); ok {
		c.DefaultStrictness = strictness
	} else {
		note("unknown default strictness %q, using %s", c.DefaultStrictness, DefaultStrictness)
		c.DefaultStrictness = DefaultStrictness
	}

	c.BaseThreshold = clampUnit("ocr.basethreshold", c.BaseThreshold, DefaultBaseThreshold, note)
	c.ManualVerificationThreshold = clampUnit("ocr.manualverificationthreshold", c.ManualVerificationThreshold, DefaultManualVerificationThreshold, note)
	if c.ManualVerificationThreshold < c.BaseThreshold {
		note("ocr.manualverificationthreshold %.3f is below the base threshold, raised to %.3f", c.ManualVerificationThreshold, c.BaseThreshold)
		c.ManualVerificationThreshold = c.BaseThreshold
	}
	c.HighConfidenceCutoff = clampUnit("ocr.highconfidencecutoff", c.HighConfidenceCutoff, DefaultHighConfidenceCutoff, note)

	c.Weights = sanitizeWeights(c.Weights, note)

	if c.HistorySize < 1 {
		note("ocr.historysize %d is invalid, using %d", c.HistorySize, DefaultHistorySize)
		c.HistorySize = DefaultHistorySize
	}
	if c.StabilityFrames < 2 {
		note("ocr.stabilityframes %d is invalid, using %d", c.StabilityFrames, DefaultStabilityFrames)
		c.StabilityFrames = DefaultStabilityFrames
	}
	if c.AnalysisInterval < 0 {
		note("ocr.analysisinterval %s is negative, using %s", c.AnalysisInterval, DefaultAnalysisInterval)
		c.AnalysisInterval = DefaultAnalysisInterval
	}
	if c.MinTextLength < 1 {
		note("ocr.mintextlength %d is invalid, using %d", c.MinTextLength, DefaultMinTextLength)
		c.MinTextLength = DefaultMinTextLength
	}

	components := make(map[dsn.ComponentType]ComponentThreshold, len(c.Components))
	for ct, o := range c.Components {
		if !ct.Known() {
			note("ignoring thresholds for unknown component type %q", string(ct))
			continue
		}
		key := "ocr.components." + string(ct)
		o.BaseThreshold = clampUnit(key+".basethreshold", o.BaseThreshold, c.BaseThreshold, note)
		o.ManualVerificationThreshold = clampUnit(key+".manualverificationthreshold", o.ManualVerificationThreshold, c.ManualVerificationThreshold, note)
		if o.ManualVerificationThreshold < o.BaseThreshold {
			note("%s.manualverificationthreshold is below its base threshold, raised to %.3f", key, o.BaseThreshold)
			o.ManualVerificationThreshold = o.BaseThreshold
		}
		if o.Strictness == "" {
			o.Strictness = c.DefaultStrictness
		} else if strictness, ok := ParseStrictness(string(o.Strictness)); ok {
			o.Strictness = strictness
		} else {
			note("%s.strictness %q is unknown, using %s", key, o.Strictness, c.DefaultStrictness)
			o.Strictness = c.DefaultStrictness
		}
		components[ct] = o
	}
	c.Components = components
}

// sanitizeWeights zeroes negative weights and normalizes the rest to sum to 1.
// A non-positive total restores the defaults.
func sanitizeWeights(w FusionWeights, note noteFunc) FusionWeights {
	fix := func(name string, v float64) float64 {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			note("ocr.weights.%s %g is invalid, using 0", name, v)
			return 0
		}
		return v
	}
	w.Native = fix("native", w.Native)
	w.Pattern = fix("pattern", w.Pattern)
	w.Stability = fix("stability", w.Stability)
	w.Environmental = fix("environmental", w.Environmental)

	sum := w.Sum()
	if sum <= 0 {
		note("ocr.weights sum to %g, using defaults", sum)
		return DefaultWeights()
	}
	if math.Abs(sum-1) > 1e-9 {
		note("ocr.weights sum to %g, normalized to 1", sum)
		w.Native /= sum
		w.Pattern /= sum
		w.Stability /= sum
		w.Environmental /= sum
	}
	return w
}

func sanitizeStabilizer(s *StabilizerSettings, note noteFunc) {
	if s.HistoryTimeout <= 0 {
		note("stabilizer.historytimeout %s is invalid, using %s", s.HistoryTimeout, DefaultHistoryTimeout)
		s.HistoryTimeout = DefaultHistoryTimeout
	}
	if s.MaxEditDistance < 0 {
		note("stabilizer.maxeditdistance %d is negative, using 0", s.MaxEditDistance)
		s.MaxEditDistance = 0
	}
	if s.MinSimilarLen < 1 {
		note("stabilizer.minsimilarlen %d is invalid, using %d", s.MinSimilarLen, DefaultMinSimilarLen)
		s.MinSimilarLen = DefaultMinSimilarLen
	}
	if s.MaxEntries < 1 {
		note("stabilizer.maxentries %d is invalid, using %d", s.MaxEntries, DefaultMaxEntries)
		s.MaxEntries = DefaultMaxEntries
	}

	table, err := dsn.ParseConfusionTable(s.Confusions)
	if err != nil {
		note("stabilizer.confusions: %v, using defaults", err)
		table = dsn.DefaultConfusionTable()
		s.Confusions = table.Pairs()
	}
	s.table = table
}

func sanitizeEnvironment(e *EnvironmentSettings, note noteFunc) {
	if e.LightWindow < 1 {
		note("environment.lightwindow %d is invalid, using %d", e.LightWindow, DefaultLightWindow)
		e.LightWindow = DefaultLightWindow
	}
	if e.LightTTL <= 0 {
		note("environment.lightttl %s is invalid, using %s", e.LightTTL, DefaultLightTTL)
		e.LightTTL = DefaultLightTTL
	}
	if e.MotionWindow <= 0 {
		note("environment.motionwindow %s is invalid, using %s", e.MotionWindow, DefaultMotionWindow)
		e.MotionWindow = DefaultMotionWindow
	}
	e.DefaultScore = clampUnit("environment.defaultscore", e.DefaultScore, DefaultEnvironmentScore, note)
	if e.CacheTTL <= 0 {
		note("environment.cachettl %s is invalid, using %s", e.CacheTTL, DefaultEnvCacheTTL)
		e.CacheTTL = DefaultEnvCacheTTL
	}
}

// clampUnit clamps v into [0,1]. NaN uses fallback.
func clampUnit(key string, v, fallback float64, note noteFunc) float64 {
	switch {
	case math.IsNaN(v):
		note("%s is NaN, using %.3f", key, fallback)
		return fallback
	case v < 0:
		note("%s %.3f clamped to 0", key, v)
		return 0
	case v > 1:
		note("%s %.3f clamped to 1", key, v)
		return 1
	default:
		return v
	}
}
