// Command etl runs the outbreak series batch: read the daily time-series
// CSVs, aggregate them per country, filter and derive rates, then write the
// result to a JSON file and optionally to Kafka.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/outbreak-series-etl/internal/config"
	"github.com/couchcryptid/outbreak-series-etl/internal/observability"
	"github.com/spf13/cobra"
)

// flags holds command-line overrides; unset flags keep the environment value.
type flags struct {
	sourceDir  string
	format     string
	population string
	output     string
	rulesFile  string
	logLevel   string
	download   bool
	kafka      bool
	summary    bool
	top        int
	indent     bool
}

type app struct {
	cfg    *config.Config
	rules  *config.RulesFile
	logger *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		f flags
		a app
	)

	root := &cobra.Command{
		Use:   "etl",
		Short: "Outbreak time-series ETL",
		Long: `etl turns per-region daily epidemic counts into per-country series.

Settings come from environment variables (SOURCE_DIR, OUTPUT_PATH, RULES_FILE,
KAFKA_BROKERS, PUSHGATEWAY_URL, ...). Flags override them.

Example usage:
  etl run                          # read ./data, write out/countries.json
  etl run --download --top 20      # fetch fresh files first, print top 20
  etl run --format long --rules rules.yaml
  etl rules                        # print the effective rules as YAML`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd, f)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.sourceDir, "source-dir", "", "directory holding the source CSV files (SOURCE_DIR)")
	pf.StringVar(&f.format, "format", "", "source layout: wide or long (SOURCE_FORMAT)")
	pf.StringVar(&f.population, "population", "", "population CSV (POPULATION_FILE)")
	pf.StringVar(&f.output, "output", "", "output JSON path (OUTPUT_PATH)")
	pf.StringVar(&f.rulesFile, "rules", "", "rules YAML file (RULES_FILE)")
	pf.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error (LOG_LEVEL)")

	root.AddCommand(newRunCmd(&f, &a), newRulesCmd(&a))
	return root
}

// init loads env config, applies flag overrides and reads the rules file.
func (a *app) init(cmd *cobra.Command, f flags) error {
	cfg, err := config.Read()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(cmd, cfg, f)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.rules = rules
	a.logger = observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	return nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config, f flags) {
	set := cmd.Flags().Changed
	if set("source-dir") {
		cfg.SourceDir = f.sourceDir
	}
	if set("format") {
		cfg.SourceFormat = strings.ToLower(f.format)
	}
	if set("population") {
		cfg.PopulationFile = f.population
	}
	if set("output") {
		cfg.OutputPath = f.output
	}
	if set("rules") {
		cfg.RulesFile = f.rulesFile
	}
	if set("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if set("download") {
		cfg.DownloadEnabled = f.download
	}
	if set("kafka") {
		cfg.KafkaEnabled = f.kafka
	}
	if set("summary") {
		cfg.SummaryEnabled = f.summary
	}
}
