// Package report renders a console summary of a run.
package report

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/couchcryptid/outbreak-series-etl/internal/domain"
	"github.com/couchcryptid/outbreak-series-etl/internal/pipeline"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// Summary implements pipeline.Loader by printing tables instead of storing
// anything.
type Summary struct {
	w   io.Writer
	top int
}

// NewSummary prints to w. top limits the country table to the countries
// with the highest latest count of the first metric; 0 prints all.
func NewSummary(w io.Writer, top int) *Summary {
	return &Summary{w: w, top: top}
}

func (s *Summary) Name() string { return "summary" }

// Load prints per-metric stats, diagnostic counts and the country table.
func (s *Summary) Load(_ context.Context, result pipeline.Result) error {
	if err := s.render(statsHeader(), statsRows(result.Stats)); err != nil {
		return err
	}
	if len(result.Diagnostics) > 0 {
		if _, err := fmt.Fprintln(s.w); err != nil {
			return err
		}
		if err := s.render([]string{"diagnostic", "count"}, diagnosticRows(result.Diagnostics)); err != nil {
			return err
		}
	}
	if len(result.Records) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(s.w); err != nil {
		return err
	}
	metrics := statsMetrics(result.Stats)
	return s.render(countryHeader(metrics), countryRows(result.Records, metrics, s.top))
}

func (s *Summary) render(header []string, rows [][]string) error {
	table := newTable(s.w)
	table.Header(header)
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("summary rows: %w", err)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	return nil
}

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoWrap: tw.WrapNone,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignRight,
				},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoFormat: tw.On,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{
					ShowHeader: tw.Off,
				},
			},
		}),
	)
}

func statsHeader() []string {
	return []string{"metric", "rows", "aggregated", "retained", "rejected"}
}

func statsRows(stats []pipeline.MetricStats) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rejected := 0
		for _, n := range s.Rejected {
			rejected += n
		}
		rows = append(rows, []string{
			string(s.Metric),
			strconv.Itoa(s.RowsRead),
			strconv.Itoa(s.Aggregated),
			strconv.Itoa(s.Retained),
			strconv.Itoa(rejected),
		})
	}
	return rows
}

func statsMetrics(stats []pipeline.MetricStats) []domain.Metric {
	metrics := make([]domain.Metric, len(stats))
	for i, s := range stats {
		metrics[i] = s.Metric
	}
	return metrics
}

func diagnosticRows(diags []domain.Diagnostic) [][]string {
	counts := make(map[domain.DiagnosticKind]int)
	for _, d := range diags {
		counts[d.Kind]++
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	rows := make([][]string, len(kinds))
	for i, k := range kinds {
		rows[i] = []string{k, strconv.Itoa(counts[domain.DiagnosticKind(k)])}
	}
	return rows
}

func countryHeader(metrics []domain.Metric) []string {
	header := []string{"country", "start", "population"}
	for _, m := range metrics {
		header = append(header, string(m), string(m)+" per 100k")
	}
	return header
}

// countryRows lists one row per record with the latest value of each
// metric. Records are ordered by the latest count of the first metric,
// highest first, ties by name.
func countryRows(records []domain.CountryRecord, metrics []domain.Metric, top int) [][]string {
	sorted := append([]domain.CountryRecord(nil), records...)
	if len(metrics) > 0 {
		lead := metrics[0]
		sort.SliceStable(sorted, func(i, j int) bool {
			a, b := latest(sorted[i], lead), latest(sorted[j], lead)
			if a != b {
				return a > b
			}
			return sorted[i].Country < sorted[j].Country
		})
	}
	if top > 0 && len(sorted) > top {
		sorted = sorted[:top]
	}

	rows := make([][]string, 0, len(sorted))
	for _, r := range sorted {
		row := []string{r.Country, r.Start.String(), population(r.Population)}
		for _, m := range metrics {
			s, ok := r.Metrics[m]
			if !ok {
				row = append(row, "-", "-")
				continue
			}
			row = append(row, strconv.FormatInt(s.Absolute[len(s.Absolute)-1], 10), relative(s))
		}
		rows = append(rows, row)
	}
	return rows
}

func latest(r domain.CountryRecord, m domain.Metric) int64 {
	s, ok := r.Metrics[m]
	if !ok || len(s.Absolute) == 0 {
		return -1
	}
	return s.Absolute[len(s.Absolute)-1]
}

func population(p int64) string {
	if p == 0 {
		return "unknown"
	}
	return strconv.FormatInt(p, 10)
}

// relative formats the latest relative value rescaled to per 100k.
func relative(s domain.MetricSeries) string {
	if s.Relative == nil || len(s.Relative.Values) == 0 {
		return "-"
	}
	v := s.Relative.Values[len(s.Relative.Values)-1]
	if s.Relative.Scale > 0 {
		v = v * domain.DefaultScale / s.Relative.Scale
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
