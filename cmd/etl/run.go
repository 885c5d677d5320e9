package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/outbreak-series-etl/internal/adapter/csvsource"
	"github.com/couchcryptid/outbreak-series-etl/internal/adapter/download"
	"github.com/couchcryptid/outbreak-series-etl/internal/adapter/jsonsink"
	kafkaadapter "github.com/couchcryptid/outbreak-series-etl/internal/adapter/kafka"
	"github.com/couchcryptid/outbreak-series-etl/internal/adapter/report"
	"github.com/couchcryptid/outbreak-series-etl/internal/observability"
	"github.com/couchcryptid/outbreak-series-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

const (
	pushJob     = "outbreak-etl"
	pushTimeout = 10 * time.Second
)

func newRunCmd(f *flags, a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one extract-transform-load batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.run(ctx, f)
		},
	}

	cmd.Flags().BoolVar(&f.download, "download", false, "download the source files before reading (DOWNLOAD_ENABLED)")
	cmd.Flags().BoolVar(&f.kafka, "kafka", false, "publish records to Kafka (KAFKA_ENABLED)")
	cmd.Flags().BoolVar(&f.summary, "summary", true, "print a summary table to stdout (SUMMARY_ENABLED)")
	cmd.Flags().IntVar(&f.top, "top", 25, "countries in the summary table, 0 for all")
	cmd.Flags().BoolVar(&f.indent, "indent", false, "indent the output JSON")
	return cmd
}

func (a *app) run(ctx context.Context, f *flags) error {
	cfg, logger := a.cfg, a.logger
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	// Metrics are pushed even for failed runs so the failure is visible.
	if cfg.PushgatewayURL != "" {
		defer func() {
			pushCtx, cancel := context.WithTimeout(context.Background(), pushTimeout)
			defer cancel()
			if err := metrics.Push(pushCtx, cfg.PushgatewayURL, pushJob); err != nil {
				logger.Error("metrics push failed", "error", err)
			}
		}()
	}

	if cfg.DownloadEnabled {
		client := download.NewClient(cfg.DownloadTimeout, metrics, logger)
		if err := client.FetchAll(ctx, download.Targets(cfg, a.rules)); err != nil {
			logger.Error("download failed", "error", err)
			return err
		}
	}

	loaders := []pipeline.Loader{jsonsink.New(cfg.OutputPath, f.indent, logger)}
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger, clock)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		loaders = append(loaders, writer)
	}
	if cfg.SummaryEnabled {
		loaders = append(loaders, report.NewSummary(os.Stdout, f.top))
	}

	source := csvsource.New(cfg, a.rules, logger)
	p := pipeline.New(source, loaders, a.rules.Rules(), logger, metrics, pipeline.WithClock(clock))

	if _, err := p.Run(ctx); err != nil {
		logger.Error("pipeline error", "error", err)
		return err
	}
	return nil
}
