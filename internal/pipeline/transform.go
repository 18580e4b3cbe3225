package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/observability"
)

// Stage names used for spans and the stage_rows metric.
const (
	stageClean     = "clean"
	stageHarmonize = "harmonize"
	stageDaily     = "daily"
	stageAnnual    = "annual"
	stagePivot     = "pivot"
	stageModel     = "model"
)

// Transform runs the pure stages over a snapshot: clean, harmonize, daily
// and annual aggregation, pivot, and per-partition trend fits.
func (p *Pipeline) Transform(ctx context.Context, snap *domain.Snapshot) (*domain.RunResult, error) {
	ctx, span := observability.StartSpan(ctx, "transform", attribute.String("snapshot_id", snap.RunID))
	var err error
	defer func() { observability.EndSpan(span, err) }()

	result := &domain.RunResult{
		RunID:      uuid.NewString(),
		SnapshotID: snap.RunID,
		CreatedAt:  domain.Now(),
		Sites:      snap.Sites,
	}

	var clean []domain.CleanObservation
	p.stage(ctx, stageClean, func() int {
		clean = domain.Clean(snap.Observations, p.catalog.SampleMedia)
		return len(clean)
	})
	result.CleanRows = len(clean)

	p.stage(ctx, stageHarmonize, func() int {
		result.Tidy, result.Report = domain.Harmonize(clean, domain.HarmonizeRules{
			IncompatibleUnits: p.catalog.IncompatibleUnitSet(),
			ParameterNames:    p.catalog.ParameterNames(),
		})
		return len(result.Tidy)
	})
	p.recordHarmonize(result.Report)

	p.stage(ctx, stageDaily, func() int {
		result.Daily = domain.DailyAverages(result.Tidy)
		return len(result.Daily)
	})

	p.stage(ctx, stageAnnual, func() int {
		result.Annual = domain.AnnualSummaries(result.Daily, p.catalog.ExcludedSet())
		return len(result.Annual)
	})

	p.stage(ctx, stagePivot, func() int {
		result.Wide, err = domain.Pivot(domain.Means(result.Annual), p.catalog.DerivedColumns())
		return len(result.Wide.Rows)
	})
	if err != nil {
		err = fmt.Errorf("reshape annual table: %w", err)
		return nil, err
	}

	p.stage(ctx, stageModel, func() int {
		result.Models = domain.FitGroups(result.Annual)
		result.Ranking = domain.Rank(result.Models)
		return len(result.Ranking)
	})
	skipped := len(result.Models) - len(result.Ranking)
	p.metrics.ModelsFitted.Set(float64(len(result.Ranking)))
	p.metrics.ModelsSkipped.Set(float64(skipped))

	p.logger.Info("transform complete",
		"run_id", result.RunID,
		"snapshot_id", snap.RunID,
		"raw", len(snap.Observations),
		"clean", result.CleanRows,
		"tidy", len(result.Tidy),
		"daily", len(result.Daily),
		"annual", len(result.Annual),
		"models", len(result.Ranking),
		"skipped", skipped,
	)
	return result, nil
}

// stage runs fn inside a span and records the row count it returns.
func (p *Pipeline) stage(ctx context.Context, name string, fn func() int) {
	_, span := observability.StartSpan(ctx, name)
	rows := fn()
	span.SetAttributes(attribute.Int("rows", rows))
	span.End()
	p.metrics.StageRows.WithLabelValues(name).Set(float64(rows))
}

func (p *Pipeline) recordHarmonize(r domain.HarmonizeReport) {
	p.metrics.RowsDropped.WithLabelValues("incompatible_unit").Add(float64(r.IncompatibleUnits))
	p.metrics.RowsDropped.WithLabelValues("unparseable_date").Add(float64(r.UnparseableDates))
	if r.UnparseableDates > 0 {
		p.logger.Warn("dropped rows with unparseable dates", "rows", r.UnparseableDates)
	}
	if r.MissingValues > 0 {
		p.logger.Info("rows with non-numeric values kept as missing", "rows", r.MissingValues)
	}
}
