package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBrokers = "broker1:9092,broker2:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.SourceDir)
	assert.Equal(t, FormatWide, cfg.SourceFormat)
	assert.Equal(t, "data/population-figures-by-country.csv", cfg.PopulationFile)
	assert.Equal(t, "out/countries.json", cfg.OutputPath)
	assert.Empty(t, cfg.RulesFile)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.False(t, cfg.DownloadEnabled)
	assert.Equal(t, 30*time.Second, cfg.DownloadTimeout)
	assert.False(t, cfg.KafkaEnabled)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "country-series", cfg.KafkaSinkTopic)
	assert.Empty(t, cfg.PushgatewayURL)
	assert.True(t, cfg.SummaryEnabled)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("SOURCE_DIR", "/srv/series")
	t.Setenv("SOURCE_FORMAT", "LONG")
	t.Setenv("POPULATION_FILE", "/srv/pop.csv")
	t.Setenv("OUTPUT_PATH", "/srv/out.json")
	t.Setenv("RULES_FILE", "/etc/outbreak/rules.yaml")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("DOWNLOAD_ENABLED", "true")
	t.Setenv("DOWNLOAD_TIMEOUT", "2m")
	t.Setenv("KAFKA_BROKERS", testBrokers)
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("PUSHGATEWAY_URL", "http://pushgateway:9091")
	t.Setenv("SUMMARY_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/series", cfg.SourceDir)
	assert.Equal(t, FormatLong, cfg.SourceFormat)
	assert.Equal(t, "/srv/pop.csv", cfg.PopulationFile)
	assert.Equal(t, "/srv/out.json", cfg.OutputPath)
	assert.Equal(t, "/etc/outbreak/rules.yaml", cfg.RulesFile)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.True(t, cfg.DownloadEnabled)
	assert.Equal(t, 2*time.Minute, cfg.DownloadTimeout)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, "http://pushgateway:9091", cfg.PushgatewayURL)
	assert.False(t, cfg.SummaryEnabled)
}

func TestLoad_InvalidDownloadTimeout(t *testing.T) {
	t.Setenv("DOWNLOAD_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOWNLOAD_TIMEOUT")
}

func TestLoad_NegativeDownloadTimeout(t *testing.T) {
	t.Setenv("DOWNLOAD_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOWNLOAD_TIMEOUT")
}

func TestLoad_InvalidSourceFormat(t *testing.T) {
	t.Setenv("SOURCE_FORMAT", "xml")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOURCE_FORMAT")
}

func TestLoad_KafkaEnabledWithoutBrokers(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoad_KafkaExplicitlyDisabled(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", testBrokers)
	t.Setenv("KAFKA_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.KafkaEnabled)
}

func TestValidate_EmptyOutputPath(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.OutputPath = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OUTPUT_PATH")
}

func TestRead_DefersValidation(t *testing.T) {
	t.Setenv("SOURCE_FORMAT", "xml")

	cfg, err := Read()
	require.NoError(t, err)
	assert.Equal(t, "xml", cfg.SourceFormat)

	cfg.SourceFormat = FormatWide
	assert.NoError(t, cfg.Validate())
}

func TestRead_InvalidDownloadTimeout(t *testing.T) {
	t.Setenv("DOWNLOAD_TIMEOUT", "soon")
	_, err := Read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOWNLOAD_TIMEOUT")
}
