// Package download fetches source CSV files over HTTP into the source
// directory.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/outbreak-series-etl/internal/config"
	"github.com/couchcryptid/outbreak-series-etl/internal/observability"
	"golang.org/x/sync/errgroup"
)

const maxParallel = 3

// Target is one remote file and where to store it.
type Target struct {
	URL  string
	Path string
}

// Client downloads source files.
type Client struct {
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a download client whose requests give up after timeout.
func NewClient(timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Targets lists the files the configured format needs. Metrics without a
// URL are skipped.
func Targets(cfg *config.Config, rules *config.RulesFile) []Target {
	if cfg.SourceFormat == config.FormatLong {
		if rules.Long.URL == "" {
			return nil
		}
		return []Target{{URL: rules.Long.URL, Path: filepath.Join(cfg.SourceDir, rules.Long.File)}}
	}
	var targets []Target
	for _, m := range rules.Metrics {
		if m.URL == "" {
			continue
		}
		targets = append(targets, Target{URL: m.URL, Path: filepath.Join(cfg.SourceDir, m.File)})
	}
	return targets
}

// FetchAll downloads every target, a few at a time. The first failure
// cancels the rest.
func (c *Client) FetchAll(ctx context.Context, targets []Target) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for _, t := range targets {
		g.Go(func() error {
			return c.Fetch(ctx, t)
		})
	}
	return g.Wait()
}

// Fetch downloads one target. The file is written next to its destination
// and renamed into place, so a failed download never leaves a partial file.
func (c *Client) Fetch(ctx context.Context, t Target) error {
	start := time.Now()
	n, err := c.fetch(ctx, t)
	c.metrics.DownloadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.Downloads.WithLabelValues("error").Inc()
		return err
	}
	c.metrics.Downloads.WithLabelValues("ok").Inc()
	c.logger.Info("source file downloaded", "url", t.URL, "path", t.Path, "bytes", n)
	return nil
}

func (c *Client) fetch(ctx context.Context, t Target) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", t.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("download %s: status %d: %s", t.URL, resp.StatusCode, body)
	}

	if err := os.MkdirAll(filepath.Dir(t.Path), 0o755); err != nil {
		return 0, fmt.Errorf("create source dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(t.Path), filepath.Base(t.Path)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("download %s: %w", t.URL, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), t.Path); err != nil {
		return 0, fmt.Errorf("move into place: %w", err)
	}
	return n, nil
}
