package pipeline

import (
	"sort"

	"github.com/couchcryptid/outbreak-series-etl/internal/domain"
)

// Input is everything the transform needs, already read by the extractor.
type Input struct {
	Rows       map[domain.Metric][]domain.RawRow
	Population map[string]int64
}

// MetricStats counts what happened to one metric during a run.
type MetricStats struct {
	Metric     domain.Metric
	RowsRead   int
	Aggregated int
	Retained   int
	Rejected   map[domain.Reason]int
}

// Result is the output of one transform run.
type Result struct {
	Records     []domain.CountryRecord // sorted by country
	Diagnostics []domain.Diagnostic
	Stats       []MetricStats // in rules order
}

// Process runs normalize, aggregate, filter and rate derivation for every
// metric in rules order and merges the retained series into one record per
// country. It does no I/O and does not modify in.
//
// Population is looked up by canonical country name: population table
// entries spelled as an alias ("US") are resolved through rules.Aliases, and
// an entry already spelled canonically takes precedence.
func Process(in Input, rules domain.Rules) Result {
	normalizer := domain.NewNormalizer(rules.Aliases, rules.DateLayouts)
	aggOpts := domain.AggregateOptionsFrom(rules, normalizer)

	population := populationIndex(in.Population, normalizer)
	records := make(map[string]*domain.CountryRecord)
	var result Result
	unknownPop := make(map[string]bool)

	for _, mr := range rules.Metrics {
		stats := MetricStats{Metric: mr.Metric, Rejected: make(map[domain.Reason]int)}

		raw := in.Rows[mr.Metric]
		stats.RowsRead = len(raw)
		rows := make([]domain.NormalizedRow, 0, len(raw))
		for _, r := range raw {
			row, diags := normalizer.NormalizeRow(mr.Metric, r)
			rows = append(rows, row)
			result.Diagnostics = append(result.Diagnostics, diags...)
		}

		series, diags := domain.Aggregate(mr.Metric, rows, aggOpts)
		result.Diagnostics = append(result.Diagnostics, diags...)
		stats.Aggregated = len(series)

		for _, s := range series {
			retained, reason := domain.FilterSeries(s, mr.Threshold)
			if reason != domain.ReasonRetained {
				stats.Rejected[reason]++
				result.Diagnostics = append(result.Diagnostics, domain.Diagnostic{
					Country: s.Country,
					Metric:  mr.Metric,
					Kind:    domain.KindEmptyMetricResult,
					Detail:  string(reason),
				})
				continue
			}
			stats.Retained++

			rec, ok := records[s.Country]
			if !ok {
				pop, known := population[s.Country]
				if !known || pop <= 0 {
					pop = 0
					if !unknownPop[s.Country] {
						unknownPop[s.Country] = true
						result.Diagnostics = append(result.Diagnostics, domain.Diagnostic{
							Country: s.Country,
							Kind:    domain.KindUnknownPopulation,
						})
					}
				}
				// The first metric to qualify fixes the start day.
				rec = &domain.CountryRecord{
					Country:    s.Country,
					Start:      retained.Start(),
					Population: pop,
					Metrics:    make(map[domain.Metric]domain.MetricSeries),
				}
				records[s.Country] = rec
			}
			rec.Metrics[mr.Metric] = domain.Series(retained, rec.Population, rules.Scale)
		}

		result.Stats = append(result.Stats, stats)
	}

	result.Records = make([]domain.CountryRecord, 0, len(records))
	for _, rec := range records {
		result.Records = append(result.Records, *rec)
	}
	sort.Slice(result.Records, func(i, j int) bool {
		return result.Records[i].Country < result.Records[j].Country
	})

	return result
}

// populationIndex keys the population table by canonical country name.
// Names already canonical win over aliased spellings; among aliased
// spellings of one country the larger figure wins.
func populationIndex(table map[string]int64, n *domain.Normalizer) map[string]int64 {
	index := make(map[string]int64, len(table))
	aliased := make(map[string]int64)
	for name, pop := range table {
		canonical := n.CanonicalRegion(name)
		if canonical == name {
			index[name] = pop
			continue
		}
		if pop > aliased[canonical] {
			aliased[canonical] = pop
		}
	}
	for name, pop := range aliased {
		if _, ok := index[name]; !ok {
			index[name] = pop
		}
	}
	return index
}
