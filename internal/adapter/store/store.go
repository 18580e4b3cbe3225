// Package store persists run results to a SQL database through GORM.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
)

// ErrNoRuns is returned when the store holds no completed run.
var ErrNoRuns = errors.New("no runs stored")

const batchSize = 500

// Store writes run results and reads them back. It implements
// pipeline.ResultLoader and pipeline.ResultArchive.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects with the named driver and migrates the schema.
func Open(driver, dsn string, logger *slog.Logger) (*Store, error) {
	dialector, err := dialectorFor(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if err := db.AutoMigrate(&pipelineRun{}, &annualSummaryRecord{}, &modelFitRecord{}); err != nil {
		return nil, fmt.Errorf("migrate %s database: %w", driver, err)
	}

	logger.Info("results store ready", "driver", driver)
	return &Store{db: db, logger: logger}, nil
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s database DSN cannot be empty", driver)
	}
	switch driver {
	case "sqlite":
		return sqlite.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Name identifies the store in load errors and spans.
func (s *Store) Name() string { return "sql" }

// Load persists the result. It satisfies pipeline.ResultLoader.
func (s *Store) Load(ctx context.Context, result *domain.RunResult) error {
	return s.SaveResult(ctx, result)
}

// SaveResult writes the run, its annual table, and its ranked fits in one
// transaction.
func (s *Store) SaveResult(ctx context.Context, result *domain.RunResult) error {
	run := newRunRecord(result)

	annual := make([]annualSummaryRecord, len(result.Annual))
	for i, a := range result.Annual {
		annual[i] = newAnnualRecord(result.RunID, a)
	}
	fits := make([]modelFitRecord, len(result.Ranking))
	for i, f := range result.Ranking {
		fits[i] = newFitRecord(result.RunID, i+1, f)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		if len(annual) > 0 {
			if err := tx.CreateInBatches(annual, batchSize).Error; err != nil {
				return fmt.Errorf("insert annual summaries: %w", err)
			}
		}
		if len(fits) > 0 {
			if err := tx.CreateInBatches(fits, batchSize).Error; err != nil {
				return fmt.Errorf("insert model fits: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save run %s: %w", result.RunID, err)
	}

	s.logger.Info("results stored", "run_id", result.RunID, "annual_rows", len(annual), "fits", len(fits))
	return nil
}

// LatestRanking returns up to limit fits of the most recent run in rank
// order. A non-positive limit returns every fit.
func (s *Store) LatestRanking(ctx context.Context, limit int) (string, []domain.FitStats, error) {
	run, err := s.latestRun(ctx)
	if err != nil {
		return "", nil, err
	}
	fits, err := s.fits(ctx, run.ID, limit)
	if err != nil {
		return "", nil, err
	}
	return run.ID, fits, nil
}

// LatestResult rebuilds the most recent run from its stored rows. Only the
// run header, annual table and ranking are persisted, so the tidy, daily,
// wide and model fields are left empty.
func (s *Store) LatestResult(ctx context.Context) (*domain.RunResult, error) {
	run, err := s.latestRun(ctx)
	if err != nil {
		return nil, err
	}
	fits, err := s.fits(ctx, run.ID, 0)
	if err != nil {
		return nil, err
	}
	annual, err := s.AnnualSummaries(ctx, run.ID, "", "")
	if err != nil {
		return nil, err
	}
	return run.result(annual, fits), nil
}

func (s *Store) latestRun(ctx context.Context) (*pipelineRun, error) {
	var run pipelineRun
	err := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}
	return &run, nil
}

func (s *Store) fits(ctx context.Context, runID string, limit int) ([]domain.FitStats, error) {
	q := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("fit_rank ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var records []modelFitRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query fits for run %s: %w", runID, err)
	}

	out := make([]domain.FitStats, len(records))
	for i, r := range records {
		out[i] = r.fitStats()
	}
	return out, nil
}

// AnnualSummaries returns the stored annual rows of a run, optionally
// filtered by site and parameter.
func (s *Store) AnnualSummaries(ctx context.Context, runID, site, parameter string) ([]domain.AnnualSummary, error) {
	q := s.db.WithContext(ctx).Where("run_id = ?", runID)
	if site != "" {
		q = q.Where("site = ?", site)
	}
	if parameter != "" {
		q = q.Where("parameter = ?", parameter)
	}

	var records []annualSummaryRecord
	if err := q.Order("site").Order("year").Order("parameter").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query annual summaries: %w", err)
	}

	out := make([]domain.AnnualSummary, len(records))
	for i, r := range records {
		out[i] = domain.AnnualSummary{
			Site: r.Site, Year: r.Year, Parameter: r.Parameter,
			Mean: r.Mean, Variance: r.Variance, N: r.N,
		}
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
