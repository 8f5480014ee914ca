// Package config loads hllsim settings from defaults, a YAML file and
// HLLSIM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Sumatoshi-tech/hllsim/internal/output"
	"github.com/Sumatoshi-tech/hllsim/pkg/alg/hll"
)

// Config is the top-level configuration struct for hllsim.
// Field tags use mapstructure for viper unmarshalling and json for schema
// validation.
type Config struct {
	Simulation SimulationConfig `json:"simulation" mapstructure:"simulation"`
	Output     OutputConfig     `json:"output"     mapstructure:"output"`
	Logging    LoggingConfig    `json:"logging"    mapstructure:"logging"`
	Telemetry  TelemetryConfig  `json:"telemetry"  mapstructure:"telemetry"`
}

// SimulationConfig holds the run parameters.
type SimulationConfig struct {
	StreamLength int    `json:"stream_length" mapstructure:"stream_length"`
	Streams      int    `json:"streams"       mapstructure:"streams"`
	Precision    int    `json:"precision"     mapstructure:"precision"`
	Partitions   int    `json:"partitions"    mapstructure:"partitions"`
	Seed         uint64 `json:"seed"          mapstructure:"seed"`
}

// OutputConfig holds result file settings. File names are relative to Dir;
// an empty name disables that output.
type OutputConfig struct {
	Dir           string `json:"dir"            mapstructure:"dir"`
	Timeseries    string `json:"timeseries"     mapstructure:"timeseries"`
	Summary       string `json:"summary"        mapstructure:"summary"`
	SummaryFormat string `json:"summary_format" mapstructure:"summary_format"`
	Compress      bool   `json:"compress"       mapstructure:"compress"`
	Plot          string `json:"plot"           mapstructure:"plot"`
	Table         bool   `json:"table"          mapstructure:"table"`
}

// LoggingConfig holds slog settings.
type LoggingConfig struct {
	Level  string `json:"level"  mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	OTLPEndpoint    string `json:"otlp_endpoint"    mapstructure:"otlp_endpoint"`
	OTLPInsecure    bool   `json:"otlp_insecure"    mapstructure:"otlp_insecure"`
	OTLPHeaders     string `json:"otlp_headers"     mapstructure:"otlp_headers"`
	MetricsTextfile string `json:"metrics_textfile" mapstructure:"metrics_textfile"`
	ServiceName     string `json:"service_name"     mapstructure:"service_name"`
}

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

var (
	summaryFormats = []string{output.FormatCSV, output.FormatYAML, output.FormatJSON}
	logFormats     = []string{LogFormatText, LogFormatJSON}
)

// Sentinel errors for configuration validation.
var (
	// ErrInvalidStreamLength indicates the stream length is not positive.
	ErrInvalidStreamLength = errors.New("simulation.stream_length must be positive")
	// ErrInvalidStreams indicates the stream count is not positive.
	ErrInvalidStreams = errors.New("simulation.streams must be positive")
	// ErrInvalidPrecision indicates the precision is outside [4, 16].
	ErrInvalidPrecision = errors.New("simulation.precision must be between 4 and 16")
	// ErrInvalidPartitions indicates the partition count is not positive.
	ErrInvalidPartitions = errors.New("simulation.partitions must be positive")
	// ErrInvalidSummaryFormat indicates an unsupported summary format.
	ErrInvalidSummaryFormat = errors.New("output.summary_format must be csv, yaml or json")
	// ErrInvalidLogFormat indicates an unsupported log format.
	ErrInvalidLogFormat = errors.New("logging.format must be text or json")
	// ErrSchemaViolation indicates the decoded config does not match the schema.
	ErrSchemaViolation = errors.New("config does not match schema")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	simErr := c.validateSimulation()
	if simErr != nil {
		return simErr
	}

	if !slices.Contains(summaryFormats, c.Output.SummaryFormat) {
		return fmt.Errorf("%w: got %q", ErrInvalidSummaryFormat, c.Output.SummaryFormat)
	}

	if !slices.Contains(logFormats, c.Logging.Format) {
		return fmt.Errorf("%w: got %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	return nil
}

func (c *Config) validateSimulation() error {
	if c.Simulation.StreamLength <= 0 {
		return ErrInvalidStreamLength
	}

	if c.Simulation.Streams <= 0 {
		return ErrInvalidStreams
	}

	if c.Simulation.Precision < int(hll.MinPrecision) || c.Simulation.Precision > int(hll.MaxPrecision) {
		return ErrInvalidPrecision
	}

	if c.Simulation.Partitions <= 0 {
		return ErrInvalidPartitions
	}

	return nil
}
