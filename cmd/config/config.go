// Package config implements the config command, which prints the effective
// configuration or checks it without starting anything.
package config

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/scanline/dsnscan/internal/buildinfo"
	"github.com/scanline/dsnscan/internal/conf"
	"github.com/scanline/dsnscan/internal/errors"
)

// Command creates the config command. It reads the configuration itself so
// that an invalid file can still be reported.
func Command(v *viper.Viper, configFile *string) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Print or check the effective configuration",
		Long:        "Print the effective configuration as YAML with secrets redacted. With --check, report the adjustments and errors found while loading it instead.",
		Annotations: map[string]string{"skip-load": ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if configFile != nil {
				path = *configFile
			}
			settings, notes, invalid, err := conf.Inspect(v, path)
			if err != nil {
				return err
			}
			if check {
				return Check(cmd.OutOrStdout(), notes, invalid)
			}
			return Print(cmd.OutOrStdout(), settings)
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Check the configuration and report problems")
	return cmd
}

// Print writes settings as YAML with secrets redacted
func Print(w io.Writer, settings *conf.Settings) error {
	out, err := conf.Marshal(settings.Redacted())
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// Check writes the validation result for notes and invalid, and returns an
// error when the configuration would not load.
func Check(w io.Writer, notes []string, invalid error) error {
	result := Validate(notes, invalid)

	out, err := yaml.Marshal(result)
	if err != nil {
		return err
	}
	if _, err := w.Write(out); err != nil {
		return err
	}

	if !result.Valid {
		return errors.Newf("configuration has %d error(s)", len(result.Errors)).
			Component("config").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// Validate converts sanitize notes and a validation error to a result
func Validate(notes []string, invalid error) *buildinfo.ValidationResult {
	result := buildinfo.NewValidationResult()
	for _, note := range notes {
		result.AddWarning(note)
	}
	if invalid == nil {
		return result
	}

	var ve conf.ValidationError
	if errors.As(invalid, &ve) {
		for _, msg := range ve.Errors {
			result.AddError(msg)
		}
		return result
	}
	result.AddError(fmt.Sprint(invalid))
	return result
}
