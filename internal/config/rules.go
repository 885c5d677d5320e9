package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/couchcryptid/outbreak-series-etl/internal/domain"
	"gopkg.in/yaml.v3"
)

const jhuBaseURL = "https://raw.githubusercontent.com/CSSEGISandData/COVID-19/master/csse_covid_19_data/csse_covid_19_time_series/"

// RulesFile is the YAML form of the transform rules plus where each
// metric's data comes from. Keys left out of the file keep their defaults.
type RulesFile struct {
	Scale       float64           `yaml:"scale"`
	Duplicates  string            `yaml:"duplicates"`
	DateLayouts []string          `yaml:"date_layouts"`
	Consolidate []string          `yaml:"consolidate"`
	Exclude     []string          `yaml:"exclude"`
	Aliases     map[string]string `yaml:"aliases"`
	Renames     map[string]string `yaml:"renames"`
	Metrics     []MetricSource    `yaml:"metrics"`
	Wide        WideColumns       `yaml:"wide"`
	Long        LongSource        `yaml:"long"`
}

// MetricSource is one metric's threshold and source location.
type MetricSource struct {
	Name     string `yaml:"name"`
	MinDays  int    `yaml:"min_days"`
	MinCases int64  `yaml:"min_cases"`
	File     string `yaml:"file"`   // wide format file, relative to SOURCE_DIR
	URL      string `yaml:"url"`    // download location of File
	Column   string `yaml:"column"` // long format column holding this metric
}

// WideColumns names the region columns of wide files.
type WideColumns struct {
	RegionColumn    string `yaml:"region_column"`
	SubRegionColumn string `yaml:"sub_region_column"`
}

// LongSource describes the single long-format file (one row per country and date).
type LongSource struct {
	File          string `yaml:"file"`
	URL           string `yaml:"url"`
	DateColumn    string `yaml:"date_column"`
	CountryColumn string `yaml:"country_column"`
}

// DefaultRulesFile mirrors domain.DefaultRules and points at the public
// daily time-series files.
func DefaultRulesFile() RulesFile {
	def := domain.DefaultRules()

	rf := RulesFile{
		Scale:       def.Scale,
		Duplicates:  string(def.Duplicates),
		DateLayouts: def.DateLayouts,
		Consolidate: def.Consolidate,
		Exclude:     def.Exclude,
		Aliases:     def.Aliases,
		Renames:     def.Renames,
		Wide: WideColumns{
			RegionColumn:    "Country/Region",
			SubRegionColumn: "Province/State",
		},
		Long: LongSource{
			File:          "full_data.csv",
			URL:           "https://covid.ourworldindata.org/data/full_data.csv",
			DateColumn:    "date",
			CountryColumn: "location",
		},
	}

	columns := map[domain.Metric]string{
		domain.MetricConfirmed: "total_cases",
		domain.MetricDeaths:    "total_deaths",
	}
	for _, mr := range def.Metrics {
		file := fmt.Sprintf("time_series_covid19_%s_global.csv", mr.Metric)
		rf.Metrics = append(rf.Metrics, MetricSource{
			Name:     string(mr.Metric),
			MinDays:  mr.Threshold.MinDays,
			MinCases: mr.Threshold.MinCases,
			File:     file,
			URL:      jhuBaseURL + file,
			Column:   columns[mr.Metric],
		})
	}
	return rf
}

// LoadRules reads a YAML rules file. An empty path returns the defaults.
func LoadRules(path string) (*RulesFile, error) {
	def := DefaultRulesFile()
	if path == "" {
		return &def, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("rules file %s not found: %w", path, err)
		}
		return nil, fmt.Errorf("read rules: %w", err)
	}

	var rf RulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	rf.applyDefaults(def)

	if err := rf.Rules().Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules %s: %w", path, err)
	}
	return &rf, nil
}

func (rf *RulesFile) applyDefaults(def RulesFile) {
	if rf.Scale == 0 {
		rf.Scale = def.Scale
	}
	if rf.Duplicates == "" {
		rf.Duplicates = def.Duplicates
	}
	if rf.DateLayouts == nil {
		rf.DateLayouts = def.DateLayouts
	}
	if rf.Consolidate == nil {
		rf.Consolidate = def.Consolidate
	}
	if rf.Exclude == nil {
		rf.Exclude = def.Exclude
	}
	if rf.Aliases == nil {
		rf.Aliases = def.Aliases
	}
	if rf.Renames == nil {
		rf.Renames = def.Renames
	}
	if rf.Metrics == nil {
		rf.Metrics = def.Metrics
	}
	if rf.Wide.RegionColumn == "" {
		rf.Wide.RegionColumn = def.Wide.RegionColumn
	}
	if rf.Wide.SubRegionColumn == "" {
		rf.Wide.SubRegionColumn = def.Wide.SubRegionColumn
	}
	if rf.Long.File == "" {
		rf.Long.File = def.Long.File
	}
	if rf.Long.DateColumn == "" {
		rf.Long.DateColumn = def.Long.DateColumn
	}
	if rf.Long.CountryColumn == "" {
		rf.Long.CountryColumn = def.Long.CountryColumn
	}
}

// Rules converts the file into the transform's rules.
func (rf *RulesFile) Rules() domain.Rules {
	r := domain.Rules{
		Consolidate: rf.Consolidate,
		Aliases:     rf.Aliases,
		Renames:     rf.Renames,
		Exclude:     rf.Exclude,
		Scale:       rf.Scale,
		DateLayouts: rf.DateLayouts,
		Duplicates:  domain.DuplicatePolicy(rf.Duplicates),
	}
	for _, m := range rf.Metrics {
		r.Metrics = append(r.Metrics, domain.MetricRule{
			Metric:    domain.Metric(m.Name),
			Threshold: domain.Threshold{MinDays: m.MinDays, MinCases: m.MinCases},
		})
	}
	return r
}
