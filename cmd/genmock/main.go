// Command genmock writes deterministic wide-format source CSVs and a
// population table for local runs and tests. With -expected it also runs
// the real transform over the generated files and writes the resulting
// output document, so fixtures and pipeline behavior stay in step.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out-dir data/mock \
//	  -days 60 \
//	  -expected data/mock/countries.expected.json
package main

import (
	"bytes"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/outbreak-series-etl/internal/adapter/csvsource"
	"github.com/couchcryptid/outbreak-series-etl/internal/adapter/jsonsink"
	"github.com/couchcryptid/outbreak-series-etl/internal/config"
	"github.com/couchcryptid/outbreak-series-etl/internal/domain"
	"github.com/couchcryptid/outbreak-series-etl/internal/pipeline"
)

var firstDay = domain.NewDay(2020, 1, 22)

// region is one source row. Counts follow a logistic curve so fixtures
// cross the default thresholds at different days per region.
type region struct {
	subRegion string
	country   string
	peak      float64 // final confirmed count
	midpoint  float64 // day of fastest growth
	rate      float64
}

var regions = []region{
	{"", "Italy", 120_000, 40, 0.18},
	{"", "Spain", 110_000, 44, 0.20},
	{"", "Korea, South", 9_000, 25, 0.25},
	{"", "US", 400_000, 55, 0.22},
	{"", "Iceland", 1_500, 48, 0.30},
	{"", "Holy See", 7, 50, 0.5},
	{"Hubei", "Mainland China", 67_000, 12, 0.30},
	{"Guangdong", "Mainland China", 1_300, 10, 0.35},
	{"Ontario", "Canada", 6_000, 50, 0.20},
	{"Quebec", "Canada", 9_000, 52, 0.22},
	{"New South Wales", "Australia", 2_500, 52, 0.25},
	{"Victoria", "Australia", 1_200, 53, 0.25},
	{"", "Diamond Princess", 712, 15, 0.5},
}

var population = [][]string{
	{"Italy", "ITA", "60600590"},
	{"Spain", "ESP", "46443959"},
	{"South Korea", "KOR", "51245707"},
	{"United States", "USA", "323127513"},
	{"Iceland", "ISL", "334252"},
	{"China", "CHN", "1378665000"},
	{"Canada", "CAN", "36286425"},
	{"Australia", "AUS", "24127159"},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "", "directory for the generated CSV files")
	days := flag.Int("days", 60, "number of date columns")
	expected := flag.String("expected", "", "optional path for the expected output JSON")
	flag.Parse()

	if *outDir == "" || *days < 1 {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out-dir")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	rules := config.DefaultRulesFile()
	for _, m := range rules.Metrics {
		path := filepath.Join(*outDir, m.File)
		if err := writeCSV(path, wideRows(domain.Metric(m.Name), *days)); err != nil {
			return fmt.Errorf("writing %s: %w", m.Name, err)
		}
		log.Printf("wrote %s: %d rows, %d days", path, len(regions), *days)
	}

	popPath := filepath.Join(*outDir, "population-figures-by-country.csv")
	popRows := append([][]string{{"Country", "Country_Code", "Year_2016"}}, population...)
	if err := writeCSV(popPath, popRows); err != nil {
		return fmt.Errorf("writing population: %w", err)
	}
	log.Printf("wrote %s: %d countries", popPath, len(population))

	if *expected == "" {
		return nil
	}
	return writeExpected(*outDir, popPath, *expected, &rules)
}

// writeExpected runs the transform over the generated files.
func writeExpected(dir, popPath, path string, rules *config.RulesFile) error {
	in := pipeline.Input{Rows: make(map[domain.Metric][]domain.RawRow)}
	for _, m := range rules.Metrics {
		f, err := os.Open(filepath.Join(dir, m.File))
		if err != nil {
			return err
		}
		rows, err := csvsource.ReadWide(f, rules.Wide)
		f.Close()
		if err != nil {
			return fmt.Errorf("reading %s: %w", m.File, err)
		}
		in.Rows[domain.Metric(m.Name)] = rows
	}

	data, err := os.ReadFile(popPath)
	if err != nil {
		return err
	}
	in.Population, err = csvsource.ReadPopulation(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("reading population: %w", err)
	}

	result := pipeline.Process(in, rules.Rules())
	out, err := jsonsink.Encode(result.Records, true)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return err
	}
	log.Printf("wrote expected output %s: %d countries, %d diagnostics", path, len(result.Records), len(result.Diagnostics))
	return nil
}

func wideRows(metric domain.Metric, days int) [][]string {
	header := []string{"Province/State", "Country/Region", "Lat", "Long"}
	for d := range days {
		header = append(header, (firstDay + domain.Day(d)).Time().Format("1/2/06"))
	}

	rows := [][]string{header}
	for _, r := range regions {
		row := []string{r.subRegion, r.country, "0", "0"}
		for d := range days {
			row = append(row, strconv.FormatInt(count(r, metric, d), 10))
		}
		rows = append(rows, row)
	}
	return rows
}

// count is the cumulative value of metric for r on day d. Deaths trail
// confirmed by a week, recoveries by three.
func count(r region, metric domain.Metric, d int) int64 {
	logistic := func(day float64) float64 {
		return r.peak / (1 + math.Exp(-r.rate*(day-r.midpoint)))
	}
	switch metric {
	case domain.MetricDeaths:
		return int64(0.06 * logistic(float64(d-7)))
	case domain.MetricRecovered:
		return int64(0.7 * logistic(float64(d-21)))
	default:
		return int64(logistic(float64(d)))
	}
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
