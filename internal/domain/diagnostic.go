package domain

import (
	"fmt"
	"sort"
)

// DiagnosticKind classifies a recovered anomaly.
type DiagnosticKind string

const (
	KindMalformedValue    DiagnosticKind = "malformed_value"
	KindMissingRegionData DiagnosticKind = "missing_region_data"
	KindUnknownPopulation DiagnosticKind = "unknown_population"
	KindEmptyMetricResult DiagnosticKind = "empty_metric_result"
	KindDuplicateRow      DiagnosticKind = "duplicate_row"
	KindExcludedRegion    DiagnosticKind = "excluded_region"
	KindRenameCollision   DiagnosticKind = "rename_collision"
)

// Diagnostic reports something the transform recovered from. Metric is empty
// for country-wide diagnostics such as unknown population.
type Diagnostic struct {
	Country string         `json:"country"`
	Metric  Metric         `json:"metric,omitempty"`
	Kind    DiagnosticKind `json:"kind"`
	Detail  string         `json:"detail,omitempty"`
}

func (d Diagnostic) String() string {
	s := fmt.Sprintf("%s: %s", d.Kind, d.Country)
	if d.Metric != "" {
		s += "/" + string(d.Metric)
	}
	if d.Detail != "" {
		s += ": " + d.Detail
	}
	return s
}

func sortDiagnostics(diags []Diagnostic) {
	sort.Slice(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.Country != b.Country {
			return a.Country < b.Country
		}
		if a.Metric != b.Metric {
			return a.Metric < b.Metric
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Detail < b.Detail
	})
}
