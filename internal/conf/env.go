// env.go environment variable bindings and validation
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for an environment variable binding
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings lists the explicitly documented environment variables.
// Every other key is still reachable through the DSNSCAN_ prefix.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "DSNSCAN_DEBUG", validateEnvBool},
		{"ocr.sensitivitymode", "DSNSCAN_SENSITIVITY", validateEnvSensitivity},
		{"ocr.basethreshold", "DSNSCAN_BASE_THRESHOLD", validateEnvThreshold},
		{"ocr.manualverificationthreshold", "DSNSCAN_MANUAL_THRESHOLD", validateEnvThreshold},
		{"ocr.analysisinterval", "DSNSCAN_ANALYSIS_INTERVAL", validateEnvDuration},
		{"ocr.historysize", "DSNSCAN_HISTORY_SIZE", validateEnvPositiveInt},
		{"stabilizer.historytimeout", "DSNSCAN_HISTORY_TIMEOUT", validateEnvDuration},
		{"diagnostics.enabled", "DSNSCAN_DIAGNOSTICS", validateEnvBool},
		{"diagnostics.listen", "DSNSCAN_LISTEN", nil},
		{"mqtt.enabled", "DSNSCAN_MQTT", validateEnvBool},
		{"mqtt.broker", "DSNSCAN_MQTT_BROKER", nil},
		{"mqtt.username", "DSNSCAN_MQTT_USERNAME", nil},
		{"mqtt.password", "DSNSCAN_MQTT_PASSWORD", nil},
		{"mqtt.passwordfile", "DSNSCAN_MQTT_PASSWORD_FILE", nil},
	}
}

// bindEnvVars binds the documented variables and validates any that are set
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvSensitivity(value string) error {
	if _, ok := ParseSensitivityMode(value); !ok {
		return fmt.Errorf("sensitivity must be one of conservative, balanced, aggressive, got '%s'", value)
	}
	return nil
}

func validateEnvThreshold(value string) error {
	threshold, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid threshold: %w", err)
	}
	if threshold < 0.0 || threshold > 1.0 {
		return fmt.Errorf("threshold must be between 0.0 and 1.0, got %g", threshold)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", d)
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n < 1 {
		return fmt.Errorf("value must be at least 1, got %d", n)
	}
	return nil
}
