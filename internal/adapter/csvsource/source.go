// Package csvsource reads raw metric rows and the population table from
// CSV files on disk.
package csvsource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/outbreak-series-etl/internal/config"
	"github.com/couchcryptid/outbreak-series-etl/internal/domain"
	"github.com/couchcryptid/outbreak-series-etl/internal/pipeline"
	"golang.org/x/sync/errgroup"
)

// Source implements pipeline.Extractor over a directory of CSV files.
type Source struct {
	dir            string
	format         string
	populationFile string
	rules          *config.RulesFile
	logger         *slog.Logger
}

// New creates a Source for the configured directory and format.
func New(cfg *config.Config, rules *config.RulesFile, logger *slog.Logger) *Source {
	return &Source{
		dir:            cfg.SourceDir,
		format:         cfg.SourceFormat,
		populationFile: cfg.PopulationFile,
		rules:          rules,
		logger:         logger,
	}
}

// Extract reads every metric and the population table. Wide files are read
// concurrently, one goroutine per metric.
func (s *Source) Extract(ctx context.Context) (pipeline.Input, error) {
	var (
		in  pipeline.Input
		err error
	)
	switch s.format {
	case config.FormatLong:
		in.Rows, err = s.extractLong()
	default:
		in.Rows, err = s.extractWide(ctx)
	}
	if err != nil {
		return pipeline.Input{}, err
	}

	in.Population, err = s.extractPopulation()
	if err != nil {
		return pipeline.Input{}, err
	}
	return in, nil
}

func (s *Source) extractWide(ctx context.Context) (map[domain.Metric][]domain.RawRow, error) {
	results := make([][]domain.RawRow, len(s.rules.Metrics))

	g, ctx := errgroup.WithContext(ctx)
	for i, m := range s.rules.Metrics {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(s.dir, m.File)
			rows, err := readFile(path, func(r io.Reader) ([]domain.RawRow, error) {
				return ReadWide(r, s.rules.Wide)
			})
			if err != nil {
				return fmt.Errorf("metric %s: %w", m.Name, err)
			}
			results[i] = rows
			s.logger.Debug("metric file read", "metric", m.Name, "path", path, "rows", len(rows))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[domain.Metric][]domain.RawRow, len(results))
	for i, m := range s.rules.Metrics {
		out[domain.Metric(m.Name)] = results[i]
	}
	return out, nil
}

func (s *Source) extractLong() (map[domain.Metric][]domain.RawRow, error) {
	columns := make(map[domain.Metric]string, len(s.rules.Metrics))
	for _, m := range s.rules.Metrics {
		columns[domain.Metric(m.Name)] = m.Column
	}

	path := filepath.Join(s.dir, s.rules.Long.File)
	out, err := readFile(path, func(r io.Reader) (map[domain.Metric][]domain.RawRow, error) {
		return ReadLong(r, s.rules.Long, columns)
	})
	if err != nil {
		return nil, err
	}
	for _, m := range s.rules.Metrics {
		if _, ok := out[domain.Metric(m.Name)]; !ok {
			s.logger.Warn("metric has no column in long file", "metric", m.Name, "column", m.Column, "path", path)
		}
	}
	return out, nil
}

func (s *Source) extractPopulation() (map[string]int64, error) {
	if s.populationFile == "" {
		return map[string]int64{}, nil
	}
	pop, err := readFile(s.populationFile, ReadPopulation)
	if err != nil {
		return nil, fmt.Errorf("population: %w", err)
	}
	s.logger.Debug("population table read", "path", s.populationFile, "countries", len(pop))
	return pop, nil
}

func readFile[T any](path string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	v, err := parse(f)
	if err != nil {
		return zero, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}
