// Package domain models daily epidemic time series and the pure transforms
// that turn raw per-region rows into per-country records.
//
// # Data Source
//
// Counts originate from public daily time-series CSV files, one file per
// metric (confirmed, deaths, recovered). Each row is one region; each date
// column holds the cumulative count reported for that day. Non-date columns
// such as latitude and longitude sit alongside the date columns and are
// ignored during normalization.
//
// # Region Conventions
//
// Region naming:
//
//	"Country/Region" holds the country, "Province/State" the sub-region.
//	An empty sub-region marks a whole-country row.
//	Some countries arrive only split by province (e.g. "China"); those are
//	listed under consolidate and summed into one synthetic whole-country row.
//	Alternate spellings ("Mainland China", "Korea, South") are mapped to a
//	canonical name by the alias table before any grouping happens.
//
// Date columns:
//
//	Labels like "1/22/20" (month/day/two-digit year) or "2020-01-22".
//	Layouts are tried in order; a label matching none is not a date column.
//
// Count cells:
//
//	Base-10 integers. Empty or unparseable cells count as 0. Negative
//	values (upstream corrections) are clamped to 0.
//
// # Thresholds
//
// A date qualifies for a metric when its count is strictly greater than the
// metric's MinCases. A series is kept only when at least MinDays dates
// qualify, and only the qualifying dates are kept, which yields a
// "days since threshold crossed" x-axis for plotting.
//
// # Relative Series
//
// Relative values are count * Scale / population (e.g. cases per 100,000).
// A country with unknown population has no relative series at all: nil,
// never zero-filled. Zero counts stay 0.
//
// # Diagnostics
//
// Nothing in this package fails a run. Anomalies (malformed cells, missing
// consolidation regions, duplicate rows, unknown populations, series that do
// not pass thresholds) are returned as [Diagnostic] values for the caller to
// log.
package domain
