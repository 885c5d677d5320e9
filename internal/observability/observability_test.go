package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_FreshRegistryPerRun(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RowsRead.WithLabelValues("confirmed").Add(3)

	assert.InDelta(t, 3.0, gatheredValue(t, a, "outbreak_etl_rows_read_total"), 1e-9)
	assert.InDelta(t, 0.0, gatheredValue(t, b, "outbreak_etl_rows_read_total"), 1e-9)
}

// gatheredValue sums every sample of a counter family in m's registry.
func gatheredValue(t *testing.T, m *Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func TestMetrics_Push(t *testing.T) {
	var gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		gotBody = buf.Bytes()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMetrics()
	m.CountriesEmitted.Set(42)

	require.NoError(t, m.Push(context.Background(), srv.URL, "outbreak-etl"))
	assert.Equal(t, "/metrics/job/outbreak-etl", gotPath)
	assert.NotEmpty(t, gotBody)
}

func TestMetrics_PushError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewMetrics().Push(context.Background(), srv.URL, "outbreak-etl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push metrics")
}

func TestNewLoggerTo(t *testing.T) {
	t.Run("json at warn drops info", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerTo(&buf, "warn", "json")
		logger.Info("hidden")
		logger.Warn("shown", "country", "Atlantis")

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 1)
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
		assert.Equal(t, "shown", entry["msg"])
		assert.Equal(t, "Atlantis", entry["country"])
	})

	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		NewLoggerTo(&buf, "debug", "text").Debug("hello")
		assert.Contains(t, buf.String(), "msg=hello")
	})
}
