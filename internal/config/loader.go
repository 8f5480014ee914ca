package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/hllsim/internal/output"
)

// configName is the config file name without extension.
const configName = ".hllsim"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for hllsim settings.
const envPrefix = "HLLSIM"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// Default values.
const (
	DefaultStreamLength  = 50000
	DefaultStreams       = 30
	DefaultPrecision     = 10
	DefaultPartitions    = 20
	DefaultSeed          = 42
	DefaultOutputDir     = "."
	DefaultTimeseries    = "out_timeseries.csv"
	DefaultSummary       = "out_stats.csv"
	DefaultSummaryFormat = output.FormatCSV
	DefaultPlot          = "out_graphs.html"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = LogFormatText
	DefaultServiceName   = "hllsim"
)

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	schemaErr := ValidateSchema(&cfg)
	if schemaErr != nil {
		return nil, fmt.Errorf("validate config: %w", schemaErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("simulation.stream_length", DefaultStreamLength)
	viperCfg.SetDefault("simulation.streams", DefaultStreams)
	viperCfg.SetDefault("simulation.precision", DefaultPrecision)
	viperCfg.SetDefault("simulation.partitions", DefaultPartitions)
	viperCfg.SetDefault("simulation.seed", DefaultSeed)

	viperCfg.SetDefault("output.dir", DefaultOutputDir)
	viperCfg.SetDefault("output.timeseries", DefaultTimeseries)
	viperCfg.SetDefault("output.summary", DefaultSummary)
	viperCfg.SetDefault("output.summary_format", DefaultSummaryFormat)
	viperCfg.SetDefault("output.compress", false)
	viperCfg.SetDefault("output.plot", DefaultPlot)
	viperCfg.SetDefault("output.table", true)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.metrics_textfile", "")
	viperCfg.SetDefault("telemetry.service_name", DefaultServiceName)
}
