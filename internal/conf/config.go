// Package conf holds the dsnscan configuration model: thresholds, fusion
// weights, per-component overrides and the surrounding service settings.
package conf

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/scanline/dsnscan/internal/dsn"
	"github.com/scanline/dsnscan/internal/errors"
	"github.com/scanline/dsnscan/internal/logger"
	"github.com/scanline/dsnscan/internal/privacy"
	"github.com/scanline/dsnscan/internal/secrets"
)

// SensitivityMode is the global tuning preset applied to composite confidence
type SensitivityMode string

const (
	SensitivityConservative SensitivityMode = "conservative"
	SensitivityBalanced     SensitivityMode = "balanced"
	SensitivityAggressive   SensitivityMode = "aggressive"
)

// ParseSensitivityMode accepts mode names case-insensitively.
// Unknown names return SensitivityBalanced and false.
func ParseSensitivityMode(s string) (SensitivityMode, bool) {
	switch m := SensitivityMode(strings.ToLower(strings.TrimSpace(s))); m {
	case SensitivityConservative, SensitivityBalanced, SensitivityAggressive:
		return m, true
	default:
		return SensitivityBalanced, false
	}
}

// Multiplier returns the factor applied to the weighted sum
func (m SensitivityMode) Multiplier() float64 {
	switch m {
	case SensitivityConservative:
		return 0.95
	case SensitivityAggressive:
		return 1.05
	case SensitivityBalanced:
		return 1.0
	default:
		return 1.0
	}
}

// Strictness selects how the pattern score treats a component type
type Strictness string

const (
	StrictnessLoose  Strictness = "loose"
	StrictnessMedium Strictness = "medium"
	StrictnessStrict Strictness = "strict"
)

// ParseStrictness accepts strictness names case-insensitively
func ParseStrictness(s string) (Strictness, bool) {
	switch v := Strictness(strings.ToLower(strings.TrimSpace(s))); v {
	case StrictnessLoose, StrictnessMedium, StrictnessStrict:
		return v, true
	default:
		return DefaultStrictness, false
	}
}

// ComponentThreshold overrides the global thresholds for one component type
type ComponentThreshold struct {
	BaseThreshold               float64    // below this the result needs manual entry
	ManualVerificationThreshold float64    // at or above this the result is auto-accepted
	Strictness                  Strictness // pattern scoring policy
}

// FusionWeights are the weights of the four confidence factors
type FusionWeights struct {
	Native        float64 // recognition engine confidence
	Pattern       float64 // serial format match
	Stability     float64 // bounding box drift across frames
	Environmental float64 // light and motion conditions
}

// DefaultWeights returns 0.5/0.25/0.15/0.1
func DefaultWeights() FusionWeights {
	return FusionWeights{
		Native:        DefaultWeightNative,
		Pattern:       DefaultWeightPattern,
		Stability:     DefaultWeightStability,
		Environmental: DefaultWeightEnvironmental,
	}
}

// Sum returns the total weight
func (w FusionWeights) Sum() float64 {
	return w.Native + w.Pattern + w.Stability + w.Environmental
}

// ConfidenceSettings parameterizes classification, fusion and decisions
type ConfidenceSettings struct {
	SensitivityMode             SensitivityMode // conservative, balanced or aggressive
	BaseThreshold               float64         // global base threshold
	ManualVerificationThreshold float64         // global auto-accept threshold
	DefaultStrictness           Strictness      // strictness for types without an override
	HighConfidenceCutoff        float64         // first-seen readings at or above pass through the stabilizer unchanged
	Weights                     FusionWeights   // fusion weights, normalized to sum to 1
	EnvironmentalAdaptation     bool            // false scores the environment with the neutral default
	HistorySize                 int             // confidence history capacity
	StabilityFrames             int             // frames used for bounding box drift
	AnalysisInterval            time.Duration   // minimum time between analysis passes
	MinTextLength               int             // shorter fragments are ignored and rejected in manual entry
	AllowEstimatedAutoAccept    bool            // true lets results with an estimated native confidence auto-accept

	Components map[dsn.ComponentType]ComponentThreshold // per-component overrides
}

// Thresholds returns the effective threshold pair and strictness for a component type.
// ComponentUnknown and types without an override use the global values.
func (c *ConfidenceSettings) Thresholds(ct dsn.ComponentType) (base, manual float64, strictness Strictness) {
	if ct.Known() {
		if o, ok := c.Components[ct]; ok {
			return o.BaseThreshold, o.ManualVerificationThreshold, o.Strictness
		}
	}
	return c.BaseThreshold, c.ManualVerificationThreshold, c.DefaultStrictness
}

// StabilizerSettings parameterizes multi-frame grouping
type StabilizerSettings struct {
	HistoryTimeout  time.Duration // entries older than this are pruned
	MaxEditDistance int           // edit distance tolerated between readings of one serial
	MinSimilarLen   int           // readings shorter than this must match exactly
	MaxEntries      int           // frame history capacity
	Confusions      []string      // "letter:digit" pairs of OCR confusions

	table dsn.ConfusionTable
}

// SimilarityOptions returns the grouping tolerance for dsn.Similar
func (s *StabilizerSettings) SimilarityOptions() dsn.SimilarityOptions {
	table := s.table
	if table == nil {
		parsed, err := dsn.ParseConfusionTable(s.Confusions)
		if err != nil {
			parsed = dsn.DefaultConfusionTable()
		}
		table = parsed
	}
	return dsn.SimilarityOptions{
		MaxEditDistance: s.MaxEditDistance,
		MinLength:       s.MinSimilarLen,
		Table:           table,
	}
}

// ConfusionTable returns the parsed confusion table
func (s *StabilizerSettings) ConfusionTable() dsn.ConfusionTable {
	return s.SimilarityOptions().Table
}

// EnvironmentSettings parameterizes the environmental scorer
type EnvironmentSettings struct {
	LightWindow  int           // light samples in the rolling mean
	LightTTL     time.Duration // light samples older than this relative to the frame are ignored
	MotionWindow time.Duration // accelerometer window for motion variance, ending at the frame
	DefaultScore float64       // neutral score used when sensors are missing
	CacheTTL     time.Duration // how long the last known score stays valid
}

// DiagnosticsSettings configures the diagnostics HTTP API
type DiagnosticsSettings struct {
	Enabled bool   // true to serve the diagnostics API
	Listen  string // host:port to listen on
}

// MQTTSettings configures the decision publisher
type MQTTSettings struct {
	Enabled  bool   // true to publish frame results
	Broker   string // broker URL, e.g. tcp://localhost:1883
	Topic    string // topic for frame results
	ClientID string // client id, generated when empty
	Username string // broker username
	Password string // broker password, ${VAR} references are expanded
	// PasswordFile is read instead of Password when set, e.g. /run/secrets/mqtt
	PasswordFile string
	QoS          byte // publish quality of service
	Retain       bool // retain the last published result
}

// Settings is the complete dsnscan configuration
type Settings struct {
	Debug bool // true to enable debug logging

	Main struct {
		Name string // instance name reported in health output and MQTT payloads
	}

	Logging     logger.LoggingConfig // logging configuration
	OCR         ConfidenceSettings   // scoring and decision configuration
	Stabilizer  StabilizerSettings   // multi-frame grouping configuration
	Environment EnvironmentSettings  // environmental scorer configuration
	Diagnostics DiagnosticsSettings  // diagnostics API
	MQTT        MQTTSettings         // decision publisher
}

// Clone returns a deep copy of s
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	out := *s
	out.OCR.Components = maps.Clone(s.OCR.Components)
	out.Stabilizer.Confusions = slices.Clone(s.Stabilizer.Confusions)
	out.Stabilizer.table = maps.Clone(s.Stabilizer.table)
	out.Logging.ModuleLevels = maps.Clone(s.Logging.ModuleLevels)
	if s.Logging.Console != nil {
		c := *s.Logging.Console
		out.Logging.Console = &c
	}
	if s.Logging.FileOutput != nil {
		f := *s.Logging.FileOutput
		out.Logging.FileOutput = &f
	}
	return &out
}

// Redacted returns a copy safe for display
func (s *Settings) Redacted() *Settings {
	out := s.Clone()
	if out.MQTT.Password != "" {
		out.MQTT.Password = "********"
	}
	if strings.Contains(out.MQTT.Broker, "@") {
		out.MQTT.Broker = privacy.RedactURL(out.MQTT.Broker)
	}
	return out
}

// Load reads configuration into v from configFile, or from the default search
// paths when configFile is empty, then sanitizes and validates it.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if err := initViper(v, configFile); err != nil {
		return nil, err
	}
	return decode(v)
}

// Inspect reads configuration like Load but reports instead of failing: it
// returns the sanitized settings, every sanitize note and the validation
// error, if any. Only unreadable input is returned as err.
func Inspect(v *viper.Viper, configFile string) (settings *Settings, notes []string, invalid error, err error) {
	if err := initViper(v, configFile); err != nil {
		return nil, nil, nil, err
	}
	settings = &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, nil, nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}
	secretErr := resolveSecrets(settings)
	notes = Sanitize(settings)
	invalid = ValidateSettings(settings)
	if secretErr != nil {
		ve := ValidationError{Errors: []string{secretErr.Error()}}
		var prev ValidationError
		if errors.As(invalid, &prev) {
			ve.Errors = append(ve.Errors, prev.Errors...)
		}
		invalid = ve
	}
	return settings, notes, invalid, nil
}

// resolveSecrets replaces credential references with their values
func resolveSecrets(s *Settings) error {
	password, err := secrets.Resolve(s.MQTT.PasswordFile, s.MQTT.Password)
	if err != nil {
		return fmt.Errorf("MQTT password: %w", err)
	}
	s.MQTT.Password = password

	username, err := secrets.ExpandString(s.MQTT.Username)
	if err != nil {
		return fmt.Errorf("MQTT username: %w", err)
	}
	s.MQTT.Username = username
	return nil
}

// Default returns sanitized default settings without reading files or the environment
func Default() *Settings {
	v := viper.New()
	setDefaultConfig(v)
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		// defaults are static, a failure here is a programming error
		panic(fmt.Sprintf("conf: decoding defaults: %v", err))
	}
	Sanitize(settings)
	return settings
}

// decode unmarshals v, sanitizes and validates the result
func decode(v *viper.Viper) (*Settings, error) {
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}

	if err := resolveSecrets(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "resolve_secrets").
			Build()
	}

	log := GetLogger()
	for _, note := range Sanitize(settings) {
		log.Warn("configuration adjusted", logger.String("note", note))
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}
	return settings, nil
}

// initViper sets defaults, environment bindings and reads the configuration file
func initViper(v *viper.Viper, configFile string) error {
	v.SetConfigType("yaml")
	setDefaultConfig(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnvVars(v); err != nil {
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		for _, path := range defaultConfigPaths() {
			v.AddConfigPath(path)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			GetLogger().Info("no configuration file found, using defaults")
			return nil
		}
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileParsing).
			Context("config_file", configFile).
			Build()
	}

	GetLogger().Info("configuration loaded", logger.String("path", v.ConfigFileUsed()))
	return nil
}

func defaultConfigPaths() []string {
	return []string{".", "$HOME/.config/dsnscan", "/etc/dsnscan"}
}
