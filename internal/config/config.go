package config

import (
	"errors"
	"os"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Source file formats.
const (
	FormatWide = "wide"
	FormatLong = "long"
)

// Config holds all run settings, populated from environment variables.
type Config struct {
	SourceDir      string
	SourceFormat   string
	PopulationFile string
	OutputPath     string
	RulesFile      string
	LogLevel       string
	LogFormat      string

	DownloadEnabled bool
	DownloadTimeout time.Duration

	// Kafka sink, optional.
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string

	PushgatewayURL string
	SummaryEnabled bool
}

// Load reads configuration from environment variables, applying defaults
// where unset, and validates it.
func Load() (*Config, error) {
	cfg, err := Read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without Validate, for callers that apply overrides such as
// command-line flags first. It fails only on values that do not parse.
func Read() (*Config, error) {
	downloadTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("DOWNLOAD_TIMEOUT", "30s"))
	if err != nil || downloadTimeout <= 0 {
		return nil, errors.New("invalid DOWNLOAD_TIMEOUT")
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		SourceDir:      sharedcfg.EnvOrDefault("SOURCE_DIR", "data"),
		SourceFormat:   strings.ToLower(sharedcfg.EnvOrDefault("SOURCE_FORMAT", FormatWide)),
		PopulationFile: sharedcfg.EnvOrDefault("POPULATION_FILE", "data/population-figures-by-country.csv"),
		OutputPath:     sharedcfg.EnvOrDefault("OUTPUT_PATH", "out/countries.json"),
		RulesFile:      os.Getenv("RULES_FILE"),
		LogLevel:       sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:      sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),

		DownloadEnabled: os.Getenv("DOWNLOAD_ENABLED") == "true",
		DownloadTimeout: downloadTimeout,

		KafkaEnabled:   kafkaEnabled,
		KafkaBrokers:   brokers,
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "country-series"),

		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
		SummaryEnabled: sharedcfg.EnvOrDefault("SUMMARY_ENABLED", "true") == "true",
	}
	return cfg, nil
}

// Validate checks settings that can be overridden after Load, e.g. by flags.
func (c *Config) Validate() error {
	if c.SourceDir == "" {
		return errors.New("SOURCE_DIR is required")
	}
	if c.SourceFormat != FormatWide && c.SourceFormat != FormatLong {
		return errors.New("SOURCE_FORMAT must be wide or long")
	}
	if c.OutputPath == "" {
		return errors.New("OUTPUT_PATH is required")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if c.KafkaEnabled && c.KafkaSinkTopic == "" {
		return errors.New("KAFKA_SINK_TOPIC is required")
	}
	return nil
}
