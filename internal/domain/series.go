package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Metric names one of the independent count series, e.g. "confirmed".
type Metric string

// Standard metrics carried by the daily time-series files.
const (
	MetricConfirmed Metric = "confirmed"
	MetricDeaths    Metric = "deaths"
	MetricRecovered Metric = "recovered"
)

// RawRow is one region's raw values for a single metric, straight from the
// source file. Cells maps column label to cell text and may include
// non-date columns.
type RawRow struct {
	Region    string
	SubRegion string // empty for a whole-country row
	Cells     map[string]string
}

// NormalizedRow is a RawRow after name canonicalization and date parsing.
type NormalizedRow struct {
	Region    string
	SubRegion string
	Counts    map[Day]int64
}

// Point is one dated observation.
type Point struct {
	Day   Day
	Count int64
}

// AggregatedSeries is one metric's country-level series, sorted by day.
type AggregatedSeries struct {
	Country      string
	Metric       Metric
	Points       []Point
	Consolidated bool // summed from sub-region rows
}

// Threshold decides which dates qualify and how many are needed.
type Threshold struct {
	MinDays  int   `yaml:"min_days" json:"min_days"`
	MinCases int64 `yaml:"min_cases" json:"min_cases"`
}

// RetainedSeries holds only the qualifying points of an AggregatedSeries.
type RetainedSeries struct {
	Country string
	Metric  Metric
	Points  []Point
}

// Start returns the first qualifying day.
func (s RetainedSeries) Start() Day {
	return s.Points[0].Day
}

// Rates is a population-relative series. A nil *Rates means the relative
// series is absent because population is unknown.
type Rates struct {
	Scale      float64
	Population int64
	Values     []float64
}

// MetricSeries is the output for one metric of one country.
type MetricSeries struct {
	Days     []Day
	Absolute []int64
	Relative *Rates
	// Log holds log10 of each absolute value; nil where the count is not
	// strictly positive and the logarithm is undefined.
	Log []*float64
}

// CountryRecord is the final per-country output across all metrics.
type CountryRecord struct {
	Country    string
	Start      Day
	Population int64
	Metrics    map[Metric]MetricSeries
}

// MetricNames returns the record's metrics sorted by name.
func (r CountryRecord) MetricNames() []Metric {
	names := make([]Metric, 0, len(r.Metrics))
	for m := range r.Metrics {
		names = append(names, m)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

const (
	suffixRelative = "_relative"
	suffixLog      = "_log"
	suffixDates    = "_dates"
)

// MarshalJSON flattens the record into
// {"start", "population", "<metric>", "<metric>_relative", "<metric>_log", "<metric>_dates"}.
// Keys with absent values are omitted. encoding/json sorts map keys, so the
// output is stable.
func (r CountryRecord) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"start":      r.Start,
		"population": r.Population,
	}
	for m, s := range r.Metrics {
		key := string(m)
		out[key] = s.Absolute
		out[key+suffixDates] = s.Days
		if s.Log != nil {
			out[key+suffixLog] = s.Log
		}
		if s.Relative != nil {
			out[key+suffixRelative] = s.Relative.Values
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON. Country is not part of the encoding and
// is left for the caller to fill from the enclosing key. Relative.Scale is
// not encoded either and stays 0.
func (r *CountryRecord) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode country record: %w", err)
	}

	rec := CountryRecord{Metrics: make(map[Metric]MetricSeries)}
	if v, ok := raw["start"]; ok {
		if err := json.Unmarshal(v, &rec.Start); err != nil {
			return fmt.Errorf("decode start: %w", err)
		}
	}
	if v, ok := raw["population"]; ok {
		if err := json.Unmarshal(v, &rec.Population); err != nil {
			return fmt.Errorf("decode population: %w", err)
		}
	}

	for key, v := range raw {
		if key == "start" || key == "population" ||
			strings.HasSuffix(key, suffixRelative) ||
			strings.HasSuffix(key, suffixLog) ||
			strings.HasSuffix(key, suffixDates) {
			continue
		}
		var s MetricSeries
		if err := json.Unmarshal(v, &s.Absolute); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		if d, ok := raw[key+suffixDates]; ok {
			if err := json.Unmarshal(d, &s.Days); err != nil {
				return fmt.Errorf("decode %s%s: %w", key, suffixDates, err)
			}
		}
		if l, ok := raw[key+suffixLog]; ok {
			if err := json.Unmarshal(l, &s.Log); err != nil {
				return fmt.Errorf("decode %s%s: %w", key, suffixLog, err)
			}
		}
		if rel, ok := raw[key+suffixRelative]; ok {
			s.Relative = &Rates{Population: rec.Population}
			if err := json.Unmarshal(rel, &s.Relative.Values); err != nil {
				return fmt.Errorf("decode %s%s: %w", key, suffixRelative, err)
			}
		}
		rec.Metrics[Metric(key)] = s
	}

	*r = rec
	return nil
}
