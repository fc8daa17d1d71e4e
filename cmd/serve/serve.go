// Package serve runs the analysis worker with its outer surfaces: the
// diagnostics API, the MQTT publisher and a JSON lines frame input.
package serve

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/scanline/dsnscan/internal/analysis/processor"
	"github.com/scanline/dsnscan/internal/api"
	"github.com/scanline/dsnscan/internal/buildinfo"
	"github.com/scanline/dsnscan/internal/conf"
	"github.com/scanline/dsnscan/internal/errors"
	"github.com/scanline/dsnscan/internal/logger"
	"github.com/scanline/dsnscan/internal/mqtt"
	"github.com/scanline/dsnscan/internal/observability"
	"github.com/scanline/dsnscan/internal/observability/metrics"
)

// maxLineSize bounds one JSON frame on the input stream
const maxLineSize = 1 << 20

// errInputDone ends a serve run that only had the input to process
var errInputDone = errors.NewStd("frame input finished")

// Options are the command line switches of serve
type Options struct {
	Listen string // diagnostics listen address, enables the API when set
	Input  string // JSON lines frame source, "-" for stdin
	Print  bool   // print every frame result as a JSON line
}

// Command creates the serve command.
func Command(settings *conf.Settings, v *viper.Viper, build *buildinfo.Context) *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis worker",
		Long:  "Run the analysis worker with the diagnostics API and the MQTT publisher as configured. Frames arrive through the API or as JSON lines on --input.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Listen != "" {
				settings.Diagnostics.Enabled = true
				settings.Diagnostics.Listen = opts.Listen
			}
			return Run(cmd.Context(), settings, v, build, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "Diagnostics API listen address (enables the API)")
	cmd.Flags().StringVar(&opts.Input, "input", "", `Read frames as JSON lines from a file, "-" for stdin`)
	cmd.Flags().BoolVar(&opts.Print, "print", false, "Print every frame result as a JSON line")
	return cmd
}

// Run wires the processor to its surfaces and blocks until ctx is cancelled,
// the input ends with no other surface running, or a surface fails.
func Run(ctx context.Context, settings *conf.Settings, v *viper.Viper, build *buildinfo.Context,
	opts Options, stdin io.Reader, stdout io.Writer) error {
	log := logger.Global().Module("serve")

	if !settings.Diagnostics.Enabled && !settings.MQTT.Enabled && opts.Input == "" {
		return errors.Newf("nothing to serve: enable diagnostics or mqtt, or pass --input").
			Component("serve").
			Category(errors.CategoryConfiguration).
			Build()
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}
	m.InstallErrorHook()
	defer errors.ClearErrorHooks()

	store := conf.NewStore(settings)
	procOpts := []processor.Option{processor.WithMetrics(m.Pipeline)}

	var client mqtt.Client
	if settings.MQTT.Enabled {
		mqttCfg := mqtt.ConfigFromSettings(settings)
		client = mqtt.NewClient(mqttCfg, m.MQTT)
		procOpts = append(procOpts, processor.WithPublisher(mqtt.NewPublisher(client, mqttCfg.Topic, settings.Main.Name, m.MQTT)))
	}
	if opts.Print {
		procOpts = append(procOpts, processor.WithResultHandler(jsonLines(stdout)))
	}
	proc := processor.New(store, procOpts...)

	if v != nil && v.ConfigFileUsed() != "" {
		conf.Watch(v, store, func(*conf.Settings) {
			m.Pipeline.RecordOperation(metrics.OpConfigReload, metrics.StatusSuccess)
		})
	}

	g, gctx := errgroup.WithContext(ctx)

	if err := proc.Start(gctx); err != nil {
		return err
	}
	defer proc.Stop()

	surfaces := 0
	if settings.Diagnostics.Enabled {
		srv, err := api.New(settings, proc, api.WithMetrics(m), api.WithBuildInfo(build))
		if err != nil {
			return err
		}
		surfaces++
		g.Go(func() error { return srv.ListenAndServe(gctx) })
	}
	if client != nil {
		surfaces++
		g.Go(func() error { return maintainConnection(gctx, client, log) })
	}

	if opts.Input != "" {
		r, closeInput, err := openInput(opts.Input, stdin)
		if err != nil {
			return err
		}
		defer closeInput()

		standalone := surfaces == 0
		g.Go(func() error {
			err := feedFrames(gctx, r, proc, log)
			if err == nil && standalone {
				// Nothing else to serve; Stop lets the last frame finish
				return errInputDone
			}
			return err
		})
	}

	log.Info("dsnscan serving",
		logger.String("session_id", proc.SessionID()),
		logger.String("version", build.Version()),
		logger.Bool("diagnostics", settings.Diagnostics.Enabled),
		logger.Bool("mqtt", client != nil),
		logger.String("input", opts.Input))

	err = g.Wait()
	if errors.Is(err, errInputDone) || errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info("dsnscan stopped", logger.String("session_id", proc.SessionID()))
	return err
}

// maintainConnection connects client and keeps retrying failed connection
// attempts until ctx is cancelled. Paho reconnects established sessions itself.
func maintainConnection(ctx context.Context, client mqtt.Client, log logger.Logger) error {
	defer client.Disconnect()

	const retryInterval = 10 * time.Second
	for {
		if err := client.Connect(ctx); err != nil {
			log.Warn("MQTT connection failed, retrying", logger.Error(err), logger.Duration("retry_in", retryInterval))
		} else {
			<-ctx.Done()
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(retryInterval):
		}
	}
}

// openInput opens the frame source; "-" is stdin
func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.New(err).
			Component("serve").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return f, func() { _ = f.Close() }, nil
}

// feedFrames submits every JSON line of r as a frame, waiting for the worker
// between frames. Malformed lines are logged and skipped. It returns nil at the
// end of input or when ctx ends.
func feedFrames(ctx context.Context, r io.Reader, proc *processor.Processor, log logger.Logger) error {
	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	// The scanner blocks in Read and cannot be interrupted; on cancellation it
	// is abandoned and exits with the process.
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for sc.Scan() {
			line := append([]byte(nil), sc.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	submitted, dropped, malformed := 0, 0, 0
	defer func() {
		log.Info("frame input finished",
			logger.Int("submitted", submitted),
			logger.Int("dropped", dropped),
			logger.Int("malformed", malformed))
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					return errors.New(err).
						Component("serve").
						Category(errors.CategoryFileIO).
						Context("operation", "read_frames").
						Build()
				}
				return nil
			}
			if len(line) == 0 {
				continue
			}
			var frame processor.Frame
			if err := json.Unmarshal(line, &frame); err != nil {
				malformed++
				log.Warn("skipping malformed frame", logger.Error(err))
				continue
			}
			accepted, err := proc.SubmitWait(ctx, frame)
			if err != nil {
				return nil
			}
			if accepted {
				submitted++
			} else {
				dropped++
			}
		}
	}
}

// jsonLines returns a result handler writing one JSON document per result
func jsonLines(w io.Writer) processor.ResultHandler {
	var mu sync.Mutex
	enc := json.NewEncoder(w)
	return func(r processor.FrameResult) {
		mu.Lock()
		defer mu.Unlock()
		_ = enc.Encode(r)
	}
}
