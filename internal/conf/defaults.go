// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"

	"github.com/scanline/dsnscan/internal/dsn"
	"github.com/scanline/dsnscan/internal/logger"
)

// setDefaultConfig registers a default for every configuration key
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("main.name", "dsnscan")

	v.SetDefault("logging.defaultlevel", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.fileoutput.enabled", logger.DefaultFileEnabled)
	v.SetDefault("logging.fileoutput.path", logger.DefaultLogPath)
	v.SetDefault("logging.fileoutput.level", logger.DefaultLogLevel)
	v.SetDefault("logging.modulelevels", map[string]string{})

	v.SetDefault("ocr.sensitivitymode", string(DefaultSensitivity))
	v.SetDefault("ocr.basethreshold", DefaultBaseThreshold)
	v.SetDefault("ocr.manualverificationthreshold", DefaultManualVerificationThreshold)
	v.SetDefault("ocr.defaultstrictness", string(DefaultStrictness))
	v.SetDefault("ocr.highconfidencecutoff", DefaultHighConfidenceCutoff)
	v.SetDefault("ocr.weights.native", DefaultWeightNative)
	v.SetDefault("ocr.weights.pattern", DefaultWeightPattern)
	v.SetDefault("ocr.weights.stability", DefaultWeightStability)
	v.SetDefault("ocr.weights.environmental", DefaultWeightEnvironmental)
	v.SetDefault("ocr.environmentaladaptation", true)
	v.SetDefault("ocr.historysize", DefaultHistorySize)
	v.SetDefault("ocr.stabilityframes", DefaultStabilityFrames)
	v.SetDefault("ocr.analysisinterval", DefaultAnalysisInterval)
	v.SetDefault("ocr.mintextlength", DefaultMinTextLength)
	v.SetDefault("ocr.allowestimatedautoaccept", false)
	v.SetDefault("ocr.components", defaultComponents())

	v.SetDefault("stabilizer.historytimeout", DefaultHistoryTimeout)
	v.SetDefault("stabilizer.maxeditdistance", DefaultMaxEditDistance)
	v.SetDefault("stabilizer.minsimilarlen", DefaultMinSimilarLen)
	v.SetDefault("stabilizer.maxentries", DefaultMaxEntries)
	v.SetDefault("stabilizer.confusions", dsn.DefaultConfusions)

	v.SetDefault("environment.lightwindow", DefaultLightWindow)
	v.SetDefault("environment.lightttl", DefaultLightTTL)
	v.SetDefault("environment.motionwindow", DefaultMotionWindow)
	v.SetDefault("environment.defaultscore", DefaultEnvironmentScore)
	v.SetDefault("environment.cachettl", DefaultEnvCacheTTL)

	v.SetDefault("diagnostics.enabled", false)
	v.SetDefault("diagnostics.listen", DefaultDiagnosticsListen)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", DefaultMQTTBroker)
	v.SetDefault("mqtt.topic", DefaultMQTTTopic)
	v.SetDefault("mqtt.clientid", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.passwordfile", "")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.retain", false)
}

// defaultComponents returns the per-component overrides. Batteries use a
// stricter pair and pattern policy.
func defaultComponents() map[string]any {
	entry := func(base, manual float64, strictness Strictness) map[string]any {
		return map[string]any{
			"basethreshold":               base,
			"manualverificationthreshold": manual,
			"strictness":                  string(strictness),
		}
	}
	return map[string]any{
		string(dsn.ComponentGlasses):    entry(0.7, 0.9, StrictnessMedium),
		string(dsn.ComponentController): entry(0.7, 0.9, StrictnessMedium),
		string(dsn.ComponentBattery01):  entry(0.75, 0.95, StrictnessStrict),
		string(dsn.ComponentBattery02):  entry(0.75, 0.95, StrictnessStrict),
		string(dsn.ComponentBattery03):  entry(0.75, 0.95, StrictnessStrict),
		string(dsn.ComponentPads):       entry(0.7, 0.9, StrictnessLoose),
		string(dsn.ComponentUnused01):   entry(0.7, 0.9, StrictnessLoose),
		string(dsn.ComponentUnused02):   entry(0.7, 0.9, StrictnessLoose),
	}
}
