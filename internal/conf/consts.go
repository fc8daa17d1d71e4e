// conf/consts.go default values shared by defaults.go and Sanitize
package conf

import "time"

const (
	DefaultSensitivity                 = SensitivityBalanced
	DefaultBaseThreshold               = 0.7
	DefaultManualVerificationThreshold = 0.9
	DefaultStrictness                  = StrictnessMedium
	DefaultHighConfidenceCutoff        = 0.9
	DefaultHistorySize                 = 10
	DefaultStabilityFrames             = 3
	DefaultAnalysisInterval            = 300 * time.Millisecond
	DefaultMinTextLength               = 6

	DefaultWeightNative        = 0.5
	DefaultWeightPattern       = 0.25
	DefaultWeightStability     = 0.15
	DefaultWeightEnvironmental = 0.1

	DefaultHistoryTimeout  = 1500 * time.Millisecond
	DefaultMaxEditDistance = 1
	DefaultMinSimilarLen   = 6
	DefaultMaxEntries      = 64

	DefaultLightWindow      = 10
	DefaultLightTTL         = 2 * time.Second
	DefaultMotionWindow     = 500 * time.Millisecond
	DefaultEnvironmentScore = 1.0
	DefaultEnvCacheTTL      = 5 * time.Second

	DefaultDiagnosticsListen = "127.0.0.1:8090"
	DefaultMQTTBroker        = "tcp://localhost:1883"
	DefaultMQTTTopic         = "dsnscan/results"

	EnvPrefix = "DSNSCAN"
)
