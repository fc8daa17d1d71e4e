package validate

import (
	"encoding/json"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/scanline/dsnscan/internal/conf"
	"github.com/scanline/dsnscan/internal/dsn"
	"github.com/scanline/dsnscan/internal/errors"
)

// Command creates the validate command, which checks manually entered serials.
func Command(settings *conf.Settings) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate <serial>...",
		Short: "Validate manually entered serial numbers",
		Long:  "Validate serial numbers against the same normalization and format rules used for camera readings. Exits with an error when any serial is invalid.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := Run(args, settings.OCR.MinTextLength)
			if err := Write(cmd.OutOrStdout(), args, results, asJSON); err != nil {
				return err
			}
			return Check(results)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

// Run validates every serial
func Run(serials []string, minLength int) []dsn.ManualEntryResult {
	results := make([]dsn.ManualEntryResult, 0, len(serials))
	for _, s := range serials {
		results = append(results, dsn.ValidateManualEntry(s, minLength))
	}
	return results
}

// Write prints results as a table or as JSON
func Write(w io.Writer, serials []string, results []dsn.ManualEntryResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Input", "Valid", "Normalized", "Component", "Tier", "Reason"})
	for i, r := range results {
		tw.AppendRow(table.Row{serials[i], r.Valid, r.NormalizedText, r.ComponentType.String(), r.Tier.String(), r.Error})
	}
	tw.Render()
	return nil
}

// Check returns a validation error when any result is invalid
func Check(results []dsn.ManualEntryResult) error {
	invalid := 0
	for _, r := range results {
		if !r.Valid {
			invalid++
		}
	}
	if invalid == 0 {
		return nil
	}
	return errors.Newf("%d of %d serials are invalid", invalid, len(results)).
		Component("validate").
		Category(errors.CategoryValidation).
		Build()
}
