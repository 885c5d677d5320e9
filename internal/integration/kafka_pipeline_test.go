//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/outbreak-series-etl/internal/adapter/csvsource"
	"github.com/couchcryptid/outbreak-series-etl/internal/adapter/jsonsink"
	"github.com/couchcryptid/outbreak-series-etl/internal/adapter/kafka"
	"github.com/couchcryptid/outbreak-series-etl/internal/config"
	"github.com/couchcryptid/outbreak-series-etl/internal/domain"
	"github.com/couchcryptid/outbreak-series-etl/internal/observability"
	"github.com/couchcryptid/outbreak-series-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testSinkTopic = "test-country-series"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("outbreak-etl-test"))
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start kafka container")

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrlConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrlConn.Close()

	require.NoError(t, ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func writeFixtures(t *testing.T, dir string, rules *config.RulesFile) {
	t.Helper()
	bodies := map[domain.Metric]string{
		domain.MetricConfirmed: "Province/State,Country/Region,Lat,Long,3/1/20,3/2/20\n" +
			",Italy,43,12,60,90\n" +
			"Ontario,Canada,51,-85,30,40\n" +
			"Quebec,Canada,52,-73,25,30\n",
		domain.MetricDeaths:    "Province/State,Country/Region,Lat,Long,3/1/20\n,Italy,43,12,1\n",
		domain.MetricRecovered: "Province/State,Country/Region,Lat,Long,3/1/20\n,Italy,43,12,0\n",
	}
	for _, m := range rules.Metrics {
		require.NoError(t, os.WriteFile(filepath.Join(dir, m.File), []byte(bodies[domain.Metric(m.Name)]), 0o600))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "population.csv"), []byte("Country,Year_2016\nItaly,60000000\nCanada,36000000\n"), 0o600))
}

// TestPipeline_CSVToKafka runs the full batch from CSV files to the JSON
// file and the Kafka sink topic.
func TestPipeline_CSVToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	dir := t.TempDir()
	rules := config.DefaultRulesFile()
	rules.Metrics[0].MinDays = 1
	writeFixtures(t, dir, &rules)

	cfg := &config.Config{
		SourceDir:      dir,
		SourceFormat:   config.FormatWide,
		PopulationFile: filepath.Join(dir, "population.csv"),
		OutputPath:     filepath.Join(dir, "out", "countries.json"),
		KafkaEnabled:   true,
		KafkaBrokers:   []string{broker},
		KafkaSinkTopic: testSinkTopic,
	}
	clock := clockwork.NewFakeClockAt(time.Date(2020, time.April, 1, 6, 0, 0, 0, time.UTC))

	writer := kafka.NewWriter(cfg, discardLogger(), clock)
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(
		csvsource.New(cfg, &rules, discardLogger()),
		[]pipeline.Loader{jsonsink.New(cfg.OutputPath, false, discardLogger()), writer},
		rules.Rules(),
		discardLogger(),
		observability.NewMetrics(),
		pipeline.WithClock(clock),
	)

	result, err := p.Run(ctx)
	require.NoError(t, err)
	require.Len(t, result.Records, 2)

	doc, err := jsonsink.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	assert.Len(t, doc.Countries, 2)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	got := map[string]domain.CountryRecord{}
	for range result.Records {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read from sink topic")

		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, clock.Now().Format(time.RFC3339), headers["processed_at"])
		assert.Equal(t, "confirmed", headers["metrics"])

		var rec domain.CountryRecord
		require.NoError(t, json.Unmarshal(msg.Value, &rec))
		got[string(msg.Key)] = rec
	}

	require.Contains(t, got, "Italy")
	require.Contains(t, got, "Canada")
	assert.Equal(t, []int64{60, 90}, got["Italy"].Metrics[domain.MetricConfirmed].Absolute)
	assert.Equal(t, []int64{55, 70}, got["Canada"].Metrics[domain.MetricConfirmed].Absolute)
	assert.Equal(t, int64(36000000), got["Canada"].Population)
}
