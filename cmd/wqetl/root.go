package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	kafkaadapter "github.com/couchcryptid/water-quality-etl/internal/adapter/kafka"
	"github.com/couchcryptid/water-quality-etl/internal/adapter/snapshot"
	"github.com/couchcryptid/water-quality-etl/internal/adapter/store"
	"github.com/couchcryptid/water-quality-etl/internal/adapter/wqp"
	"github.com/couchcryptid/water-quality-etl/internal/catalog"
	"github.com/couchcryptid/water-quality-etl/internal/config"
	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/observability"
	"github.com/couchcryptid/water-quality-etl/internal/pipeline"
)

var catalogFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wqetl",
		Short:         "Water-quality trend ETL for the upper Colorado River basin",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// A missing .env is normal outside local development.
			_ = godotenv.Load()
		},
	}
	root.PersistentFlags().StringVar(&catalogFile, "catalog", "", "catalog YAML file (default: built-in catalog, or CATALOG_FILE)")

	root.AddCommand(
		newInitCmd(),
		newFetchCmd(),
		newRunCmd(),
		newServeCmd(),
		newValidateCmd(),
		newRankingsCmd(),
	)
	return root
}

// app holds the wiring shared by every command.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *observability.Metrics
	catalog   *catalog.Catalog
	snapshots *snapshot.Store
	results   *store.Store // nil unless DATABASE_DSN is set and loaders are wired
	pipeline  *pipeline.Pipeline
	closers   []func() error
}

// newApp loads configuration and the catalog and wires the pipeline. Result
// loaders are attached only when withLoaders is set.
func newApp(withLoaders bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if catalogFile != "" {
		cfg.CatalogFile = catalogFile
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, metrics: metrics, catalog: cat}

	var loaders []pipeline.ResultLoader
	if withLoaders {
		if cfg.DatabaseEnabled() {
			st, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, logger)
			if err != nil {
				return nil, err
			}
			loaders = append(loaders, st)
			a.results = st
			a.closers = append(a.closers, st.Close)
		}
		if cfg.KafkaEnabled() {
			w := kafkaadapter.NewWriter(cfg, metrics, logger)
			loaders = append(loaders, w)
			a.closers = append(a.closers, w.Close)
			logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		}
	}

	client := wqp.NewClient(cfg.WQPBaseURL, cfg.WQPTimeout, metrics, logger)
	a.snapshots = snapshot.NewStore(cfg.SnapshotPath, logger)
	a.pipeline = pipeline.New(cat, client, a.snapshots, loaders, logger, metrics, cfg.FetchConcurrency)

	logger.Info("pipeline configured",
		"catalog", catalogSource(cfg.CatalogFile),
		"sites", len(cat.Sites),
		"parameters", len(cat.Parameters),
		"snapshot", a.snapshots.Path(),
		"loaders", len(loaders),
	)
	return a, nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Error("close error", "error", err)
		}
	}
}

// runOrHint wraps a missing snapshot with the command that creates one.
func runOrHint(ctx context.Context, p *pipeline.Pipeline) (*domain.RunResult, error) {
	result, err := p.Run(ctx)
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		return nil, fmt.Errorf("%w; run `wqetl fetch` first", err)
	}
	return result, err
}

// restoreLatest serves the newest stored run until the first run of this
// process completes. It is a no-op without a results database.
func (a *app) restoreLatest(ctx context.Context) {
	if a.results == nil {
		return
	}
	_, err := a.pipeline.Restore(ctx, a.results)
	switch {
	case errors.Is(err, store.ErrNoRuns):
		a.logger.Info("no stored run to restore")
	case err != nil:
		a.logger.Warn("restore stored run failed", "error", err)
	}
}

func catalogSource(path string) string {
	if path == "" {
		return "built-in"
	}
	return path
}
