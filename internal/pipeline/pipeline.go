package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/water-quality-etl/internal/catalog"
	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/observability"
)

// ErrNotReady is returned before the first successful run.
var ErrNotReady = errors.New("pipeline has not completed a run yet")

// Fetcher downloads observations and site metadata from the data provider.
type Fetcher interface {
	FetchResults(ctx context.Context, q domain.ResultQuery) ([]domain.RawObservation, error)
	FetchSites(ctx context.Context, siteIDs []string) ([]domain.Site, error)
}

// SnapshotStore persists the extracted snapshot between phases.
type SnapshotStore interface {
	Save(ctx context.Context, snap *domain.Snapshot) error
	Load(ctx context.Context) (*domain.Snapshot, error)
}

// ResultLoader writes a transform result to a destination.
type ResultLoader interface {
	Name() string
	Load(ctx context.Context, result *domain.RunResult) error
}

// ResultArchive reads back the most recently persisted run.
type ResultArchive interface {
	LatestResult(ctx context.Context) (*domain.RunResult, error)
}

// Pipeline orchestrates extract, transform and load for one catalog.
type Pipeline struct {
	catalog     *catalog.Catalog
	fetcher     Fetcher
	snapshots   SnapshotStore
	loaders     []ResultLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	concurrency int
	latest      atomic.Pointer[domain.RunResult]
}

// New creates a Pipeline. concurrency bounds parallel per-parameter fetches;
// values below one fetch sequentially.
func New(cat *catalog.Catalog, f Fetcher, s SnapshotStore, loaders []ResultLoader, logger *slog.Logger, metrics *observability.Metrics, concurrency int) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		catalog:     cat,
		fetcher:     f,
		snapshots:   s,
		loaders:     loaders,
		logger:      logger,
		metrics:     metrics,
		concurrency: concurrency,
	}
}

// CheckReadiness returns nil once a run has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.latest.Load() == nil {
		return ErrNotReady
	}
	return nil
}

// Latest returns the most recent successful run result.
func (p *Pipeline) Latest() (*domain.RunResult, error) {
	r := p.latest.Load()
	if r == nil {
		return nil, ErrNotReady
	}
	return r, nil
}

// Restore publishes the newest archived run as the latest result so readers
// are served before this process completes a run of its own. The wide table
// is rebuilt from the archived annual rows, and sites are taken from the
// stored snapshot when it is the one the run was built from. A result
// published by Run is never replaced.
func (p *Pipeline) Restore(ctx context.Context, archive ResultArchive) (*domain.RunResult, error) {
	result, err := archive.LatestResult(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore result: %w", err)
	}
	result.Wide, err = domain.Pivot(domain.Means(result.Annual), p.catalog.DerivedColumns())
	if err != nil {
		return nil, fmt.Errorf("restore run %s: %w", result.RunID, err)
	}
	if snap, err := p.snapshots.Load(ctx); err == nil && snap.RunID == result.SnapshotID {
		result.Sites = snap.Sites
	}

	if !p.latest.CompareAndSwap(nil, result) {
		return p.latest.Load(), nil
	}
	p.logger.Info("restored archived run", "run_id", result.RunID, "created_at", result.CreatedAt, "fits", len(result.Ranking))
	return result, nil
}

// Extract fetches every catalog parameter, then the site metadata, and
// returns them as a snapshot. Per-parameter results are concatenated in
// catalog order regardless of completion order. The first failure cancels
// the remaining fetches.
func (p *Pipeline) Extract(ctx context.Context) (*domain.Snapshot, error) {
	ctx, span := observability.StartSpan(ctx, "extract")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	queries := p.catalog.Queries()
	results := make([][]domain.RawObservation, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, q := range queries {
		g.Go(func() error {
			rows, err := p.fetcher.FetchResults(gctx, q)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, fmt.Errorf("extract observations: %w", err)
	}

	var observations []domain.RawObservation
	for _, rows := range results {
		observations = append(observations, rows...)
	}

	sites, err := p.fetcher.FetchSites(ctx, p.catalog.SiteIDs())
	if err != nil {
		return nil, fmt.Errorf("extract sites: %w", err)
	}
	basins := p.catalog.Basins()
	for i := range sites {
		sites[i].Basin = basins[sites[i].ID]
	}

	snap := &domain.Snapshot{
		RunID:        uuid.NewString(),
		CreatedAt:    domain.Now(),
		StartDate:    p.catalog.StartDate,
		EndDate:      p.catalog.EndDate,
		Observations: observations,
		Sites:        sites,
	}
	p.logger.Info("extract complete",
		"snapshot_id", snap.RunID,
		"parameters", len(queries),
		"observations", len(observations),
		"sites", len(sites),
	)
	return snap, nil
}

// Fetch extracts a fresh snapshot and persists it.
func (p *Pipeline) Fetch(ctx context.Context) (*domain.Snapshot, error) {
	start := time.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	snap, err := p.Extract(ctx)
	if err == nil {
		err = p.snapshots.Save(ctx, snap)
	}
	p.observePhase("fetch", start, err)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Run loads the stored snapshot, transforms it, hands the result to every
// loader and publishes it as the latest result.
func (p *Pipeline) Run(ctx context.Context) (*domain.RunResult, error) {
	start := time.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	result, err := p.run(ctx)
	p.observePhase("run", start, err)
	if err != nil {
		return nil, err
	}

	p.latest.Store(result)
	p.metrics.LastSuccess.Set(float64(domain.Now().Unix()))
	return result, nil
}

func (p *Pipeline) run(ctx context.Context) (*domain.RunResult, error) {
	snap, err := p.snapshots.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	result, err := p.Transform(ctx, snap)
	if err != nil {
		return nil, err
	}
	if err := p.Load(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Load hands the result to every configured loader in order.
func (p *Pipeline) Load(ctx context.Context, result *domain.RunResult) error {
	for _, l := range p.loaders {
		lctx, span := observability.StartSpan(ctx, "load", attribute.String("loader", l.Name()))
		err := l.Load(lctx, result)
		observability.EndSpan(span, err)
		if err != nil {
			p.logger.Error("load failed", "loader", l.Name(), "run_id", result.RunID, "error", err)
			return fmt.Errorf("load %s: %w", l.Name(), err)
		}
		p.logger.Info("load complete", "loader", l.Name(), "run_id", result.RunID)
	}
	return nil
}

func (p *Pipeline) observePhase(phase string, start time.Time, err error) {
	p.metrics.RunDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
	outcome := "success"
	if err != nil {
		outcome = "error"
		p.logger.Error("pipeline phase failed", "phase", phase, "error", err)
	}
	p.metrics.RunsTotal.WithLabelValues(phase, outcome).Inc()
}
