// Package replay runs a recorded scan through the processor and prints the
// outcome of every frame.
package replay

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/scanline/dsnscan/internal/analysis/processor"
	"github.com/scanline/dsnscan/internal/conf"
	"github.com/scanline/dsnscan/internal/fusion"
	"github.com/scanline/dsnscan/internal/logger"
)

// Options control a replay
type Options struct {
	NoThrottle bool // process every frame regardless of the analysis interval
	JSON       bool // print frame results as JSON lines
}

// Step is the outcome of one fixture frame
type Step struct {
	Offset    time.Duration
	Throttled bool
	Result    processor.FrameResult
}

// Command creates the replay command.
func Command(settings *conf.Settings) *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:   "replay <fixture.yaml>",
		Short: "Replay a recorded scan",
		Long:  "Replay recorded recognition frames and sensor samples through the scoring pipeline and print the result of every frame.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fixture, err := LoadFixture(args[0])
			if err != nil {
				return err
			}
			steps := Run(settings, fixture, opts)
			return Write(cmd.OutOrStdout(), steps, opts.JSON)
		},
	}

	cmd.Flags().BoolVar(&opts.NoThrottle, "no-throttle", false, "Process every frame regardless of the analysis interval")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print frame results as JSON lines")
	return cmd
}

// Run replays fixture against a fresh processor and returns one step per frame
func Run(settings *conf.Settings, fixture *Fixture, opts Options) []Step {
	cfg := settings.Clone()
	if opts.NoThrottle {
		cfg.OCR.AnalysisInterval = 0
	}
	proc := processor.New(conf.NewStore(cfg), processor.WithSessionID("replay"))
	log := logger.Global().Module("replay")

	steps := make([]Step, 0, len(fixture.Frames))
	for _, ev := range fixture.timeline() {
		if ev.sensor != nil {
			proc.IngestSensors(*ev.sensor)
			continue
		}

		step := Step{Offset: ev.at.Sub(fixture.Start)}
		if !proc.Allow(ev.at) {
			step.Throttled = true
			log.Debug("frame throttled", logger.Duration("offset", step.Offset))
		} else {
			step.Result = proc.ProcessFrame(*ev.frame)
		}
		steps = append(steps, step)
	}
	return steps
}

// Write prints steps as a table, or as JSON lines of the processed frames
func Write(w io.Writer, steps []Step, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		for i := range steps {
			if steps[i].Throttled {
				continue
			}
			if err := enc.Encode(steps[i].Result); err != nil {
				return err
			}
		}
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Offset", "State", "Text", "Component", "Composite", "Decision", "Frames", "Env"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
		{Number: 9, Align: text.AlignRight},
	})

	for i := range steps {
		s := &steps[i]
		row := table.Row{i + 1, s.Offset.String()}
		best, ok := s.Result.Best()
		switch {
		case s.Throttled:
			row = append(row, "throttled", "", "", "", "", "", "")
		case !ok:
			row = append(row, string(s.Result.State), "", "", "", "", "", formatScore(s.Result.EnvironmentScore))
		default:
			row = append(row,
				string(s.Result.State),
				best.Text,
				best.ComponentType.String(),
				formatScore(best.CompositeConfidence),
				string(best.Decision),
				strconv.Itoa(best.Frames),
				formatScore(s.Result.EnvironmentScore))
		}
		tw.AppendRow(row)
	}
	tw.Render()

	_, err := fmt.Fprintf(w, "final state: %s\n", FinalState(steps))
	return err
}

// FinalState returns the state of the last processed frame
func FinalState(steps []Step) fusion.Decision {
	for i := len(steps) - 1; i >= 0; i-- {
		if !steps[i].Throttled {
			return steps[i].Result.State
		}
	}
	return fusion.DecisionScanning
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
