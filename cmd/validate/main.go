// Command validate checks an output file written by etl against the
// invariants every country record must hold: ascending dates, equal series
// lengths, non-negative counts, consistent log and relative series, and the
// configured thresholds.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -output out/countries.json \
//	  -rules rules.yaml
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/couchcryptid/outbreak-series-etl/internal/adapter/jsonsink"
	"github.com/couchcryptid/outbreak-series-etl/internal/config"
	"github.com/couchcryptid/outbreak-series-etl/internal/domain"
)

const tolerance = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	output := flag.String("output", "out/countries.json", "output JSON written by etl")
	rulesPath := flag.String("rules", "", "rules YAML used for the run (default rules when empty)")
	flag.Parse()

	if code := run(*output, *rulesPath); code != 0 {
		os.Exit(code)
	}
}

func run(outputPath, rulesPath string) int {
	fmt.Println("=== Outbreak Series Validation ===")
	fmt.Println()

	rf, err := config.LoadRules(rulesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load rules: %v\n", err)
		return 1
	}
	doc, err := jsonsink.ReadFile(outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load output: %v\n", err)
		return 1
	}

	records := sortedRecords(doc)
	rules := rf.Rules()
	phases := []*phase{
		validateStructure(records),
		validateValues(records, rules.Scale),
		validateThresholds(records, rules),
	}

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Countries: %d\n", len(records))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func sortedRecords(doc jsonsink.Document) []domain.CountryRecord {
	records := make([]domain.CountryRecord, 0, len(doc.Countries))
	for _, r := range doc.Countries {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Country < records[j].Country })
	return records
}

// ── Phase 1: Structure ──
// Every record has a metric, every series is date-aligned and ascending,
// and start is the first day of one of the series.

func validateStructure(records []domain.CountryRecord) *phase {
	p := &phase{name: "Phase 1: Structure (dates, lengths)"}

	for _, r := range records {
		if len(r.Metrics) == 0 {
			p.errorf("%s: no metrics", r.Country)
			continue
		}
		startMatches := false
		for _, m := range r.MetricNames() {
			s := r.Metrics[m]
			n := len(s.Days)
			if n == 0 {
				p.errorf("%s/%s: empty series", r.Country, m)
				continue
			}
			if s.Days[0] == r.Start {
				startMatches = true
			}
			if len(s.Absolute) != n {
				p.errorf("%s/%s: %d dates but %d values", r.Country, m, n, len(s.Absolute))
			}
			if s.Log != nil && len(s.Log) != n {
				p.errorf("%s/%s: %d dates but %d log values", r.Country, m, n, len(s.Log))
			}
			if s.Relative != nil && len(s.Relative.Values) != n {
				p.errorf("%s/%s: %d dates but %d relative values", r.Country, m, n, len(s.Relative.Values))
			}
			for i := 1; i < n; i++ {
				if s.Days[i] <= s.Days[i-1] {
					p.errorf("%s/%s: dates not ascending at %s", r.Country, m, s.Days[i])
					break
				}
			}
		}
		if !startMatches {
			p.errorf("%s: start %s is not the first day of any series", r.Country, r.Start)
		}
	}
	return p
}

// ── Phase 2: Values ──
// Counts are non-negative, log values are log10 of positive counts, and
// relative values are count*scale/population when population is known.

func validateValues(records []domain.CountryRecord, scale float64) *phase {
	p := &phase{name: "Phase 2: Values (log, relative)"}

	for _, r := range records {
		for _, m := range r.MetricNames() {
			s := r.Metrics[m]
			if r.Population <= 0 && s.Relative != nil {
				p.errorf("%s/%s: relative series present without population", r.Country, m)
			}
			if r.Population > 0 && s.Relative == nil {
				p.errorf("%s/%s: relative series missing", r.Country, m)
			}
			for i, v := range s.Absolute {
				if v < 0 {
					p.errorf("%s/%s: negative count %d on %s", r.Country, m, v, s.Days[i])
				}
				if i < len(s.Log) {
					checkLog(p, r.Country, m, v, s.Log[i])
				}
				if s.Relative != nil && i < len(s.Relative.Values) && r.Population > 0 {
					want := float64(v) * scale / float64(r.Population)
					if v <= 0 {
						want = 0
					}
					if math.Abs(s.Relative.Values[i]-want) > tolerance*math.Max(1, want) {
						p.errorf("%s/%s: relative %g on day %d, want %g", r.Country, m, s.Relative.Values[i], i, want)
					}
				}
			}
		}
	}
	return p
}

func checkLog(p *phase, country string, m domain.Metric, count int64, got *float64) {
	if count <= 0 {
		if got != nil {
			p.errorf("%s/%s: log of %d should be null", country, m, count)
		}
		return
	}
	if got == nil {
		p.errorf("%s/%s: log of %d is null", country, m, count)
		return
	}
	if want := math.Log10(float64(count)); math.Abs(*got-want) > tolerance {
		p.errorf("%s/%s: log of %d is %g, want %g", country, m, count, *got, want)
	}
}

// ── Phase 3: Thresholds ──
// Retained series are long enough and every kept count exceeds min cases.

func validateThresholds(records []domain.CountryRecord, rules domain.Rules) *phase {
	p := &phase{name: "Phase 3: Thresholds (min days, min cases)"}

	for _, r := range records {
		for _, m := range r.MetricNames() {
			th, ok := rules.Threshold(m)
			if !ok {
				p.errorf("%s: metric %s is not configured", r.Country, m)
				continue
			}
			s := r.Metrics[m]
			if len(s.Absolute) < max(th.MinDays, 1) {
				p.errorf("%s/%s: %d days, want at least %d", r.Country, m, len(s.Absolute), th.MinDays)
			}
			for i, v := range s.Absolute {
				if v <= th.MinCases {
					p.errorf("%s/%s: count %d on %s does not exceed min cases %d", r.Country, m, v, s.Days[i], th.MinCases)
					break
				}
			}
		}
	}
	return p
}
