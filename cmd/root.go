package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/scanline/dsnscan/cmd/config"
	"github.com/scanline/dsnscan/cmd/replay"
	"github.com/scanline/dsnscan/cmd/serve"
	"github.com/scanline/dsnscan/cmd/validate"
	"github.com/scanline/dsnscan/internal/buildinfo"
	"github.com/scanline/dsnscan/internal/conf"
	"github.com/scanline/dsnscan/internal/logger"
)

// skipLoad marks commands that read the configuration themselves
const skipLoad = "skip-load"

// RootCommand creates and returns the root command
func RootCommand(build *buildinfo.Context) *cobra.Command {
	settings := &conf.Settings{}
	v := viper.New()
	var configFile string
	var central *logger.CentralLogger

	rootCmd := &cobra.Command{
		Use:           "dsnscan",
		Short:         "Serial number confidence scoring for OCR scans",
		Long:          "dsnscan scores OCR readings of device serial numbers, stabilizes them across frames and decides whether they can be accepted.",
		Version:       build.Version(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, v, &configFile); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		validate.Command(settings),
		replay.Command(settings),
		serve.Command(settings, v, build),
		configcmd.Command(v, &configFile),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if _, ok := cmd.Annotations[skipLoad]; ok {
			return nil
		}

		if err := checkSensitivityFlag(cmd); err != nil {
			return err
		}

		loaded, err := conf.Load(v, configFile)
		if err != nil {
			return err
		}
		*settings = *loaded

		central, err = initLogging(settings)
		return err
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if central == nil {
			return nil
		}
		return central.Close()
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
// and binds them to their configuration keys.
func setupFlags(rootCmd *cobra.Command, v *viper.Viper, configFile *string) error {
	rootCmd.PersistentFlags().StringVarP(configFile, "config", "c", "", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().StringP("sensitivity", "s", string(conf.DefaultSensitivity), "Sensitivity mode: conservative, balanced or aggressive")

	bindings := map[string]string{
		"debug":       "debug",
		"sensitivity": "ocr.sensitivitymode",
	}
	for flag, key := range bindings {
		if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// checkSensitivityFlag rejects unknown modes given on the command line instead
// of letting Sanitize fall back silently.
func checkSensitivityFlag(cmd *cobra.Command) error {
	flag := cmd.Flags().Lookup("sensitivity")
	if flag == nil || !flag.Changed {
		return nil
	}
	if _, ok := conf.ParseSensitivityMode(flag.Value.String()); !ok {
		return fmt.Errorf("invalid sensitivity mode %q, expected one of: %s",
			flag.Value.String(), strings.Join(sensitivityModes(), ", "))
	}
	return nil
}

func sensitivityModes() []string {
	return []string{
		string(conf.SensitivityConservative),
		string(conf.SensitivityBalanced),
		string(conf.SensitivityAggressive),
	}
}

// initLogging installs the global logger described by settings
func initLogging(settings *conf.Settings) (*logger.CentralLogger, error) {
	cfg := settings.Logging
	if settings.Debug {
		cfg.DefaultLevel = string(logger.LogLevelDebug)
		if cfg.Console != nil {
			console := *cfg.Console
			console.Level = string(logger.LogLevelDebug)
			cfg.Console = &console
		}
	}

	central, err := logger.NewCentralLogger(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)
	return central, nil
}
