package store

import (
	"time"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
)

// pipelineRun is one completed transform run.
type pipelineRun struct {
	ID                string    `gorm:"primaryKey;size:36"`
	SnapshotID        string    `gorm:"size:36;not null"`
	CreatedAt         time.Time `gorm:"index;not null"`
	CleanRows         int
	TidyRows          int
	DailyRows         int
	AnnualRows        int
	FittedModels      int
	SkippedModels     int
	IncompatibleUnits int
	UnparseableDates  int
	MissingValues     int
}

func (pipelineRun) TableName() string { return "pipeline_runs" }

// annualSummaryRecord is one (site, year, parameter) row of a run's annual table.
type annualSummaryRecord struct {
	ID        uint     `gorm:"primaryKey;autoIncrement"`
	RunID     string   `gorm:"size:36;index:idx_annual_run_site_param;not null"`
	Site      string   `gorm:"size:32;index:idx_annual_run_site_param;not null"`
	Parameter string   `gorm:"size:64;index:idx_annual_run_site_param;not null"`
	Year      int      `gorm:"not null"`
	Mean      *float64 `gorm:"column:conc"`
	Variance  *float64 `gorm:"column:var"`
	N         int      `gorm:"column:n"`
}

func (annualSummaryRecord) TableName() string { return "annual_summaries" }

// modelFitRecord is one ranked (parameter, site) fit of a run.
type modelFitRecord struct {
	ID          uint     `gorm:"primaryKey;autoIncrement"`
	RunID       string   `gorm:"size:36;index:idx_fit_run_rank;not null"`
	Rank        int      `gorm:"column:fit_rank;index:idx_fit_run_rank;not null"`
	Parameter   string   `gorm:"size:64;not null"`
	Site        string   `gorm:"size:32;not null"`
	N           int      `gorm:"column:n"`
	DF          int      `gorm:"column:df_residual"`
	Slope       float64  `gorm:"column:slope"`
	Intercept   float64  `gorm:"column:intercept"`
	RSquared    *float64 `gorm:"column:r_squared"`
	AdjRSquared *float64 `gorm:"column:adj_r_squared"`
	PValue      *float64 `gorm:"column:p_value"`
	Sigma       *float64 `gorm:"column:sigma"`
	LogLik      *float64 `gorm:"column:log_lik"`
	AIC         *float64 `gorm:"column:aic"`
	BIC         *float64 `gorm:"column:bic"`
}

func (modelFitRecord) TableName() string { return "model_fits" }

func newRunRecord(r *domain.RunResult) pipelineRun {
	skipped := len(r.Skipped())
	return pipelineRun{
		ID:                r.RunID,
		SnapshotID:        r.SnapshotID,
		CreatedAt:         r.CreatedAt.UTC(),
		CleanRows:         r.CleanRows,
		TidyRows:          len(r.Tidy),
		DailyRows:         len(r.Daily),
		AnnualRows:        len(r.Annual),
		FittedModels:      len(r.Models) - skipped,
		SkippedModels:     skipped,
		IncompatibleUnits: r.Report.IncompatibleUnits,
		UnparseableDates:  r.Report.UnparseableDates,
		MissingValues:     r.Report.MissingValues,
	}
}

func (r *pipelineRun) result(annual []domain.AnnualSummary, ranking []domain.FitStats) *domain.RunResult {
	return &domain.RunResult{
		RunID:      r.ID,
		SnapshotID: r.SnapshotID,
		CreatedAt:  r.CreatedAt,
		CleanRows:  r.CleanRows,
		Report: domain.HarmonizeReport{
			IncompatibleUnits: r.IncompatibleUnits,
			UnparseableDates:  r.UnparseableDates,
			MissingValues:     r.MissingValues,
		},
		Annual:  annual,
		Ranking: ranking,
	}
}

func newAnnualRecord(runID string, a domain.AnnualSummary) annualSummaryRecord {
	return annualSummaryRecord{
		RunID:     runID,
		Site:      a.Site,
		Parameter: a.Parameter,
		Year:      a.Year,
		Mean:      a.Mean,
		Variance:  a.Variance,
		N:         a.N,
	}
}

func newFitRecord(runID string, rank int, f domain.FitStats) modelFitRecord {
	return modelFitRecord{
		RunID:       runID,
		Rank:        rank,
		Parameter:   f.Parameter,
		Site:        f.Site,
		N:           f.N,
		DF:          f.DF,
		Slope:       f.Slope,
		Intercept:   f.Intercept,
		RSquared:    f.RSquared,
		AdjRSquared: f.AdjRSquared,
		PValue:      f.PValue,
		Sigma:       f.Sigma,
		LogLik:      f.LogLik,
		AIC:         f.AIC,
		BIC:         f.BIC,
	}
}

func (m modelFitRecord) fitStats() domain.FitStats {
	return domain.FitStats{
		Parameter:   m.Parameter,
		Site:        m.Site,
		N:           m.N,
		DF:          m.DF,
		Slope:       m.Slope,
		Intercept:   m.Intercept,
		RSquared:    m.RSquared,
		AdjRSquared: m.AdjRSquared,
		PValue:      m.PValue,
		Sigma:       m.Sigma,
		LogLik:      m.LogLik,
		AIC:         m.AIC,
		BIC:         m.BIC,
	}
}
