package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/outbreak-series-etl/internal/domain"
	"github.com/couchcryptid/outbreak-series-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Extractor reads the raw rows of every metric plus the population table.
type Extractor interface {
	Extract(ctx context.Context) (Input, error)
}

// Loader writes a finished result to one destination.
type Loader interface {
	Name() string
	Load(ctx context.Context, result Result) error
}

// Pipeline runs one extract-transform-load batch.
type Pipeline struct {
	extractor Extractor
	loaders   []Loader
	rules     domain.Rules
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClock replaces the wall clock used for run timing.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// New creates a Pipeline with the given stages and observability.
func New(e Extractor, loaders []Loader, rules domain.Rules, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor: e,
		loaders:   loaders,
		rules:     rules,
		logger:    logger,
		metrics:   metrics,
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run extracts input, transforms it and hands the result to every loader
// in order. Data anomalies never fail a run; extractor and loader errors do.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	start := p.clock.Now()
	p.logger.Info("pipeline started", "metrics", len(p.rules.Metrics), "loaders", len(p.loaders))

	in, err := p.extractor.Extract(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("extract: %w", err)
	}

	result := Process(in, p.rules)
	p.observe(result)

	for _, l := range p.loaders {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := l.Load(ctx, result); err != nil {
			p.metrics.LoadErrors.WithLabelValues(l.Name()).Inc()
			return result, fmt.Errorf("load %s: %w", l.Name(), err)
		}
		p.logger.Debug("sink written", "sink", l.Name(), "countries", len(result.Records))
	}

	elapsed := p.clock.Since(start)
	p.metrics.RunDuration.Set(elapsed.Seconds())
	p.metrics.LastSuccessTime.Set(float64(p.clock.Now().Unix()))
	p.logger.Info("pipeline finished",
		"countries", len(result.Records),
		"diagnostics", len(result.Diagnostics),
		"duration", elapsed,
	)
	return result, nil
}

// observe records per-metric counts and logs diagnostics. Routine threshold
// rejections are logged at debug; everything else at warn.
func (p *Pipeline) observe(result Result) {
	for _, s := range result.Stats {
		metric := string(s.Metric)
		p.metrics.RowsRead.WithLabelValues(metric).Add(float64(s.RowsRead))
		p.metrics.SeriesAggregated.WithLabelValues(metric).Add(float64(s.Aggregated))
		p.metrics.SeriesRetained.WithLabelValues(metric).Add(float64(s.Retained))
		for reason, n := range s.Rejected {
			p.metrics.SeriesRejected.WithLabelValues(metric, string(reason)).Add(float64(n))
		}
		p.logger.Info("metric processed",
			"metric", metric,
			"rows", s.RowsRead,
			"aggregated", s.Aggregated,
			"retained", s.Retained,
		)
	}

	for _, d := range result.Diagnostics {
		p.metrics.Diagnostics.WithLabelValues(string(d.Kind)).Inc()
		attrs := []any{"kind", d.Kind, "country", d.Country, "metric", d.Metric, "detail", d.Detail}
		switch d.Kind {
		case domain.KindEmptyMetricResult, domain.KindExcludedRegion, domain.KindMalformedValue:
			p.logger.Debug("data diagnostic", attrs...)
		default:
			p.logger.Warn("data diagnostic", attrs...)
		}
	}

	p.metrics.CountriesEmitted.Set(float64(len(result.Records)))
}
