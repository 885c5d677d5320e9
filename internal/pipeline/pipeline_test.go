package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/outbreak-series-etl/internal/domain"
	"github.com/couchcryptid/outbreak-series-etl/internal/observability"
	"github.com/couchcryptid/outbreak-series-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	in  pipeline.Input
	err error
}

func (m *mockExtractor) Extract(_ context.Context) (pipeline.Input, error) {
	return m.in, m.err
}

type mockLoader struct {
	name   string
	err    error
	loaded []pipeline.Result
}

func (m *mockLoader) Name() string { return m.name }

func (m *mockLoader) Load(_ context.Context, result pipeline.Result) error {
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, result)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleInput() pipeline.Input {
	return pipeline.Input{
		Rows: map[domain.Metric][]domain.RawRow{
			domain.MetricConfirmed: {
				raw(countryB, "", map[string]string{"3/1/20": "70", "3/2/20": "90"}),
			},
		},
		Population: map[string]int64{countryB: 1000},
	}
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ext := &mockExtractor{in: sampleInput()}
	file := &mockLoader{name: "file"}
	topic := &mockLoader{name: "kafka"}
	metrics := observability.NewMetrics()
	clock := clockwork.NewFakeClockAt(time.Date(2020, time.April, 1, 6, 0, 0, 0, time.UTC))

	p := pipeline.New(ext, []pipeline.Loader{file, topic}, testRules(), discardLogger(), metrics, pipeline.WithClock(clock))

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Len(t, file.loaded, 1)
	assert.Len(t, topic.loaded, 1)
	assert.Equal(t, res.Records, file.loaded[0].Records)

	families, err := metrics.Registry.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			switch {
			case m.GetGauge() != nil:
				values[f.GetName()] += m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				values[f.GetName()] += m.GetCounter().GetValue()
			}
		}
	}
	assert.InDelta(t, 1.0, values["outbreak_etl_rows_read_total"], 1e-9)
	assert.InDelta(t, 1.0, values["outbreak_etl_countries_emitted"], 1e-9)
	assert.InDelta(t, float64(clock.Now().Unix()), values["outbreak_etl_last_success_timestamp_seconds"], 1e-9)
}

func TestPipeline_Run_ExtractError(t *testing.T) {
	ext := &mockExtractor{err: errors.New("disk gone")}
	ldr := &mockLoader{name: "file"}

	p := pipeline.New(ext, []pipeline.Loader{ldr}, testRules(), discardLogger(), observability.NewMetrics())

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract")
	assert.Empty(t, ldr.loaded)
}

func TestPipeline_Run_LoadErrorStopsLaterLoaders(t *testing.T) {
	ext := &mockExtractor{in: sampleInput()}
	failing := &mockLoader{name: "file", err: errors.New("read-only filesystem")}
	after := &mockLoader{name: "kafka"}

	p := pipeline.New(ext, []pipeline.Loader{failing, after}, testRules(), discardLogger(), observability.NewMetrics())

	res, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load file")
	assert.Len(t, res.Records, 1, "result is still returned")
	assert.Empty(t, after.loaded)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{in: sampleInput()}
	ldr := &mockLoader{name: "file"}

	p := pipeline.New(ext, []pipeline.Loader{ldr}, testRules(), discardLogger(), observability.NewMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ldr.loaded)
}

func TestPipeline_Run_NoLoaders(t *testing.T) {
	p := pipeline.New(&mockExtractor{in: sampleInput()}, nil, testRules(), discardLogger(), observability.NewMetrics())

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Records, 1)
}
