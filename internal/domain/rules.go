package domain

import (
	"errors"
	"fmt"
	"strings"
)

// DuplicatePolicy decides what happens when a non-consolidated country has
// more than one whole-country row for the same metric.
type DuplicatePolicy string

const (
	// DuplicateLastWins keeps the last row read.
	DuplicateLastWins DuplicatePolicy = "last_wins"
	// DuplicateReject drops the country's series for that metric.
	DuplicateReject DuplicatePolicy = "reject"
)

// DefaultDateLayouts covers the month/day/two-digit-year labels of the
// public wide files ("3/13/20") and the ISO dates of the long files. Feeds
// labelled day/month ("13/3/20") need "2/1/06" in Rules.DateLayouts; under
// the defaults such a label is not a date and "1/3/20" reads as January 3.
var DefaultDateLayouts = []string{"1/2/06", "2006-01-02"}

// DefaultScale expresses relative series per 100,000 inhabitants.
const DefaultScale = 100_000

// MetricRule binds a metric to its threshold. The order of MetricRules in
// Rules is the processing order.
type MetricRule struct {
	Metric    Metric
	Threshold Threshold
}

// Rules is the complete configuration of one transform run. It is passed
// explicitly and never mutated by the transform.
type Rules struct {
	Metrics     []MetricRule
	Consolidate []string
	Aliases     map[string]string // applied to raw region names before grouping
	Renames     map[string]string // applied to consolidated countries after aggregation
	Exclude     []string
	Scale       float64
	DateLayouts []string
	Duplicates  DuplicatePolicy
}

// DefaultRules returns the rules used when no rules file is given.
func DefaultRules() Rules {
	return Rules{
		Metrics: []MetricRule{
			{Metric: MetricConfirmed, Threshold: Threshold{MinDays: 10, MinCases: 50}},
			{Metric: MetricDeaths, Threshold: Threshold{MinDays: 5, MinCases: 10}},
			{Metric: MetricRecovered, Threshold: Threshold{MinDays: 5, MinCases: 10}},
		},
		Consolidate: []string{"China", "Australia", "Canada"},
		Aliases: map[string]string{
			"Mainland China": "China",
			"Korea, South":   "South Korea",
			"US":             "United States",
		},
		Renames:     map[string]string{},
		Exclude:     []string{"International", "Diamond Princess", "MS Zaandam"},
		Scale:       DefaultScale,
		DateLayouts: append([]string(nil), DefaultDateLayouts...),
		Duplicates:  DuplicateLastWins,
	}
}

// Threshold looks up the threshold configured for m.
func (r Rules) Threshold(m Metric) (Threshold, bool) {
	for _, mr := range r.Metrics {
		if mr.Metric == m {
			return mr.Threshold, true
		}
	}
	return Threshold{}, false
}

var reservedKeys = []string{"start", "population"}

// Validate reports the first configuration problem found.
func (r Rules) Validate() error {
	if len(r.Metrics) == 0 {
		return errors.New("at least one metric is required")
	}
	seen := make(map[Metric]bool, len(r.Metrics))
	for _, mr := range r.Metrics {
		name := string(mr.Metric)
		if name == "" {
			return errors.New("metric name is required")
		}
		for _, k := range reservedKeys {
			if name == k {
				return fmt.Errorf("metric name %q is reserved", name)
			}
		}
		for _, suffix := range []string{suffixRelative, suffixLog, suffixDates} {
			if strings.HasSuffix(name, suffix) {
				return fmt.Errorf("metric name %q must not end in %q", name, suffix)
			}
		}
		if seen[mr.Metric] {
			return fmt.Errorf("metric %q listed twice", name)
		}
		seen[mr.Metric] = true
		if mr.Threshold.MinDays < 0 {
			return fmt.Errorf("metric %q: min_days must be >= 0", name)
		}
		if mr.Threshold.MinCases < 0 {
			return fmt.Errorf("metric %q: min_cases must be >= 0", name)
		}
	}
	if r.Scale <= 0 {
		return errors.New("scale must be > 0")
	}
	if len(r.DateLayouts) == 0 {
		return errors.New("at least one date layout is required")
	}
	switch r.Duplicates {
	case DuplicateLastWins, DuplicateReject:
	default:
		return fmt.Errorf("unknown duplicate policy %q", r.Duplicates)
	}
	return nil
}
