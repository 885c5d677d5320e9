package domain

import (
	"fmt"
	"sort"
)

// AggregateOptions controls how rows of one metric are merged into
// country-level series.
type AggregateOptions struct {
	Consolidate []string
	Renames     map[string]string
	Exclude     []string
	Duplicates  DuplicatePolicy
}

// AggregateOptionsFrom extracts the aggregation settings from rules, with
// region names passed through the normalizer so they match normalized rows.
func AggregateOptionsFrom(r Rules, n *Normalizer) AggregateOptions {
	opts := AggregateOptions{
		Renames:    make(map[string]string, len(r.Renames)),
		Duplicates: r.Duplicates,
	}
	for _, c := range r.Consolidate {
		opts.Consolidate = append(opts.Consolidate, n.CanonicalRegion(c))
	}
	for _, e := range r.Exclude {
		opts.Exclude = append(opts.Exclude, n.CanonicalRegion(e))
	}
	for from, to := range r.Renames {
		opts.Renames[n.CanonicalRegion(from)] = cleanName(to)
	}
	return opts
}

// Aggregate merges normalized rows of one metric into one series per
// country. Consolidated countries are the per-day sum of all their rows
// (a day missing from a row contributes 0). Other countries use their
// whole-country row; province-level rows of non-consolidated countries are
// discarded. Renames apply to consolidated countries, and exclusions apply
// to names both before and after renaming. The result is sorted by country
// name.
func Aggregate(metric Metric, rows []NormalizedRow, opts AggregateOptions) ([]AggregatedSeries, []Diagnostic) {
	byRegion := make(map[string][]NormalizedRow)
	for _, row := range rows {
		byRegion[row.Region] = append(byRegion[row.Region], row)
	}

	consolidate := toSet(opts.Consolidate)
	exclude := toSet(opts.Exclude)

	var diags []Diagnostic
	byName := make(map[string][]candidate, len(byRegion))

	for _, region := range sortedKeys(byRegion) {
		if exclude[region] {
			diags = append(diags, Diagnostic{Country: region, Metric: metric, Kind: KindExcludedRegion})
			continue
		}
		if consolidate[region] {
			continue
		}

		whole := wholeCountryRows(byRegion[region])
		switch {
		case len(whole) == 0:
			continue
		case len(whole) > 1:
			diags = append(diags, Diagnostic{
				Country: region,
				Metric:  metric,
				Kind:    KindDuplicateRow,
				Detail:  fmt.Sprintf("%d whole-country rows, policy %s", len(whole), opts.Duplicates),
			})
			if opts.Duplicates == DuplicateReject {
				continue
			}
		}

		last := whole[len(whole)-1]
		byName[region] = append(byName[region], candidate{
			source: region,
			series: AggregatedSeries{Country: region, Metric: metric, Points: pointsOf(last.Counts)},
		})
	}

	for _, region := range dedupe(opts.Consolidate) {
		if exclude[region] {
			continue
		}
		group := byRegion[region]
		if len(group) == 0 {
			diags = append(diags, Diagnostic{
				Country: region,
				Metric:  metric,
				Kind:    KindMissingRegionData,
				Detail:  "no rows for consolidated region",
			})
			continue
		}

		name := region
		if to, ok := opts.Renames[region]; ok && to != "" {
			name = to
		}
		if name != region && exclude[name] {
			diags = append(diags, Diagnostic{
				Country: name,
				Metric:  metric,
				Kind:    KindExcludedRegion,
				Detail:  fmt.Sprintf("renamed from %s", region),
			})
			continue
		}
		byName[name] = append(byName[name], candidate{
			source:  region,
			renamed: name != region,
			series: AggregatedSeries{
				Country:      name,
				Metric:       metric,
				Points:       pointsOf(sumCounts(group)),
				Consolidated: true,
			},
		})
	}

	series := make([]AggregatedSeries, 0, len(byName))
	for _, name := range sortedKeys(byName) {
		winner, losers := resolve(byName[name])
		for _, l := range losers {
			diags = append(diags, Diagnostic{
				Country: name,
				Metric:  metric,
				Kind:    KindRenameCollision,
				Detail:  fmt.Sprintf("%s replaced by %s", l.source, winner.source),
			})
		}
		series = append(series, winner.series)
	}
	sortDiagnostics(diags)
	return series, diags
}

// candidate is one source's series for a final country name.
type candidate struct {
	source  string
	renamed bool
	series  AggregatedSeries
}

// resolve picks the series kept for a name. A renamed series beats the
// name's own series; among renamed series the smallest source name wins.
func resolve(cs []candidate) (candidate, []candidate) {
	sorted := append([]candidate(nil), cs...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].renamed != sorted[j].renamed {
			return sorted[i].renamed
		}
		return sorted[i].source < sorted[j].source
	})
	return sorted[0], sorted[1:]
}

// sumCounts adds the counts of every row day by day over the union of days.
func sumCounts(rows []NormalizedRow) map[Day]int64 {
	total := make(map[Day]int64)
	for _, row := range rows {
		for day, n := range row.Counts {
			total[day] += n
		}
	}
	return total
}

func wholeCountryRows(rows []NormalizedRow) []NormalizedRow {
	var whole []NormalizedRow
	for _, row := range rows {
		if row.SubRegion == "" {
			whole = append(whole, row)
		}
	}
	return whole
}

// pointsOf returns the counts as points sorted by day.
func pointsOf(counts map[Day]int64) []Point {
	points := make([]Point, 0, len(counts))
	for day, n := range counts {
		points = append(points, Point{Day: day, Count: n})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Day < points[j].Day })
	return points
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
