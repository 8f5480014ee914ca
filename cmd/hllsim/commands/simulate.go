// Package commands implements CLI command handlers for hllsim.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/hllsim/internal/config"
	"github.com/Sumatoshi-tech/hllsim/internal/observability"
	"github.com/Sumatoshi-tech/hllsim/internal/output"
	"github.com/Sumatoshi-tech/hllsim/internal/simulation"
	"github.com/Sumatoshi-tech/hllsim/pkg/safeconv"
	"github.com/Sumatoshi-tech/hllsim/pkg/version"
)

const (
	outputDirPerm = 0o755

	// plotStream is the stream whose time series is drawn in the single-stream chart.
	plotStream = 0
)

type simulateExecutor func(ctx context.Context, cfg *config.Config, colorize bool, out io.Writer) error

// SimulateCommand holds configuration and dependencies for the simulate command.
type SimulateCommand struct {
	configPath string

	streamLength int
	streams      int
	precision    int
	partitions   int
	seed         uint64

	outDir          string
	summaryFormat   string
	compress        bool
	noTable         bool
	noPlot          bool
	noColor         bool
	logLevel        string
	logFormat       string
	metricsTextfile string
	otlpEndpoint    string

	exec simulateExecutor
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand() *cobra.Command {
	return newSimulateCommandWithDeps(runSimulation)
}

func newSimulateCommandWithDeps(exec simulateExecutor) *cobra.Command {
	sc := &SimulateCommand{exec: exec}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the checkpointed multi-stream simulation",
		Long: `Feed synthetic token streams through the basic and corrected HyperLogLog
estimators, checkpoint them against an exact count and summarize the
accuracy across streams.

Settings come from defaults, .hllsim.yaml, HLLSIM_* environment variables
and finally these flags.`,
		Args: cobra.NoArgs,
		RunE: sc.run,
	}

	cmd.Flags().StringVar(&sc.configPath, "config", "", "Config file path (default: .hllsim.yaml in CWD or $HOME)")
	cmd.Flags().IntVarP(&sc.streamLength, "stream-length", "n", config.DefaultStreamLength, "Tokens per stream")
	cmd.Flags().IntVarP(&sc.streams, "streams", "s", config.DefaultStreams, "Number of independent streams")
	cmd.Flags().IntVarP(&sc.precision, "precision", "b", config.DefaultPrecision, "Register index bits B (4-16)")
	cmd.Flags().IntVar(&sc.partitions, "partitions", config.DefaultPartitions, "Checkpoints per stream")
	cmd.Flags().Uint64Var(&sc.seed, "seed", config.DefaultSeed, "Base seed")
	cmd.Flags().StringVarP(&sc.outDir, "out-dir", "o", config.DefaultOutputDir, "Directory for result files")
	cmd.Flags().StringVar(&sc.summaryFormat, "summary-format", config.DefaultSummaryFormat, "Summary format: csv, yaml, json")
	cmd.Flags().BoolVar(&sc.compress, "compress", false, "lz4-compress the time-series file")
	cmd.Flags().BoolVar(&sc.noTable, "no-table", false, "Do not print the summary table")
	cmd.Flags().BoolVar(&sc.noPlot, "no-plot", false, "Do not write the HTML plot page")
	cmd.Flags().BoolVar(&sc.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&sc.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&sc.logFormat, "log-format", config.DefaultLogFormat, "Log format: text, json")
	cmd.Flags().StringVar(&sc.metricsTextfile, "metrics-textfile", "", "Write final metrics in Prometheus text format to this file")
	cmd.Flags().StringVar(&sc.otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC collector address")

	return cmd
}

func (sc *SimulateCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(sc.configPath)
	if err != nil {
		return err
	}

	sc.applyFlags(cmd, cfg)

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("validate flags: %w", err)
	}

	colorize := !sc.noColor && !color.NoColor

	return sc.exec(cmd.Context(), cfg, colorize, cmd.OutOrStdout())
}

// applyFlags overrides config values with flags the user set explicitly.
func (sc *SimulateCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("stream-length") {
		cfg.Simulation.StreamLength = sc.streamLength
	}

	if flags.Changed("streams") {
		cfg.Simulation.Streams = sc.streams
	}

	if flags.Changed("precision") {
		cfg.Simulation.Precision = sc.precision
	}

	if flags.Changed("partitions") {
		cfg.Simulation.Partitions = sc.partitions
	}

	if flags.Changed("seed") {
		cfg.Simulation.Seed = sc.seed
	}

	if flags.Changed("out-dir") {
		cfg.Output.Dir = sc.outDir
	}

	if flags.Changed("summary-format") {
		cfg.Output.SummaryFormat = sc.summaryFormat
	}

	if flags.Changed("compress") {
		cfg.Output.Compress = sc.compress
	}

	if sc.noTable {
		cfg.Output.Table = false
	}

	if sc.noPlot {
		cfg.Output.Plot = ""
	}

	if flags.Changed("log-level") {
		cfg.Logging.Level = sc.logLevel
	}

	if flags.Changed("log-format") {
		cfg.Logging.Format = sc.logFormat
	}

	if flags.Changed("metrics-textfile") {
		cfg.Telemetry.MetricsTextfile = sc.metricsTextfile
	}

	if flags.Changed("otlp-endpoint") {
		cfg.Telemetry.OTLPEndpoint = sc.otlpEndpoint
	}
}

// observabilityConfig maps the loaded settings onto telemetry providers.
func observabilityConfig(cfg *config.Config) (observability.Config, error) {
	level, err := observability.ParseLogLevel(cfg.Logging.Level)
	if err != nil {
		return observability.Config{}, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceName = cfg.Telemetry.ServiceName
	obsCfg.ServiceVersion = version.Version
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	obsCfg.MetricsTextfile = cfg.Telemetry.MetricsTextfile
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.Format == config.LogFormatJSON

	return obsCfg, nil
}

func simulationParams(cfg *config.Config) simulation.Params {
	return simulation.Params{
		StreamLength: cfg.Simulation.StreamLength,
		Streams:      cfg.Simulation.Streams,
		Partitions:   cfg.Simulation.Partitions,
		Seed:         cfg.Simulation.Seed,
		Precision:    safeconv.MustIntToUint8(cfg.Simulation.Precision),
	}
}

func runSimulation(ctx context.Context, cfg *config.Config, colorize bool, out io.Writer) (retErr error) {
	obsCfg, err := observabilityConfig(cfg)
	if err != nil {
		return err
	}

	providers, err := observability.Init(ctx, obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		retErr = errors.Join(retErr, providers.Shutdown(context.WithoutCancel(ctx)))
	}()

	metrics, err := observability.NewSimulationMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	err = os.MkdirAll(cfg.Output.Dir, outputDirPerm)
	if err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var (
		sinks      output.MultiSink
		timeseries *output.TimeSeriesWriter
		collector  *output.SeriesCollector
	)

	if cfg.Output.Timeseries != "" {
		timeseries, err = output.CreateTimeSeries(filepath.Join(cfg.Output.Dir, cfg.Output.Timeseries), cfg.Output.Compress)
		if err != nil {
			return err
		}

		sinks = append(sinks, timeseries)
	}

	if cfg.Output.Plot != "" {
		collector = output.NewSeriesCollector(plotStream)
		sinks = append(sinks, collector)
	}

	runner, err := simulation.NewRunner(simulationParams(cfg), sinks,
		simulation.WithLogger(providers.Logger),
		simulation.WithTracer(providers.Tracer),
		simulation.WithMetrics(metrics),
	)
	if err != nil {
		return errors.Join(err, closeTimeSeries(timeseries))
	}

	res, err := runner.Run(ctx)

	closeErr := closeTimeSeries(timeseries)
	if err != nil || closeErr != nil {
		return errors.Join(err, closeErr)
	}

	written := make([]string, 0, 2)

	if timeseries != nil {
		providers.Logger.InfoContext(ctx, "wrote output", "path", timeseries.Path(), "rows", timeseries.Rows())
	}

	if cfg.Output.Summary != "" {
		path := filepath.Join(cfg.Output.Dir, cfg.Output.Summary)

		err = writeFile(path, func(w io.Writer) error {
			return output.WriteSummary(w, res.Summaries, cfg.Output.SummaryFormat)
		})
		if err != nil {
			return err
		}

		written = append(written, path)
	}

	if collector != nil {
		path := filepath.Join(cfg.Output.Dir, cfg.Output.Plot)

		err = writeFile(path, func(w io.Writer) error {
			return output.WritePlot(w, collector.Records(), res.Summaries)
		})
		if err != nil {
			return err
		}

		written = append(written, path)
	}

	if cfg.Output.Table {
		err = output.RenderTable(out, res, colorize)
		if err != nil {
			return err
		}
	}

	for _, path := range written {
		providers.Logger.InfoContext(ctx, "wrote output", "path", path)
	}

	return nil
}

func closeTimeSeries(tsw *output.TimeSeriesWriter) error {
	if tsw == nil {
		return nil
	}

	return tsw.Close()
}

func writeFile(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	err = write(f)
	if err != nil {
		return errors.Join(fmt.Errorf("write %s: %w", path, err), f.Close())
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	return nil
}
