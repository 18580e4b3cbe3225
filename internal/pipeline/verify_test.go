package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/pipeline"
)

func runFixture(t *testing.T) *domain.RunResult {
	t.Helper()
	p, _, _ := newTestPipeline(t, newFakeFetcher())
	snap, err := p.Extract(context.Background())
	require.NoError(t, err)
	result, err := p.Transform(context.Background(), snap)
	require.NoError(t, err)
	return result
}

func failedPhases(r *pipeline.Report) map[string][]string {
	out := make(map[string][]string)
	for _, p := range r.Phases {
		if !p.Passed() {
			out[p.Name] = p.Errors
		}
	}
	return out
}

func TestVerify_CleanRunPasses(t *testing.T) {
	report := pipeline.Verify(runFixture(t), testCatalog())
	assert.True(t, report.Passed())
	assert.Empty(t, failedPhases(report))
	assert.Len(t, report.Phases, 5)
}

func TestVerify_DuplicateDailyRow(t *testing.T) {
	r := runFixture(t)
	r.Daily = append(r.Daily, r.Daily[0])

	failed := failedPhases(pipeline.Verify(r, testCatalog()))
	require.Contains(t, failed, "Daily key uniqueness")
	assert.Contains(t, failed["Daily key uniqueness"][0], "duplicate daily row")
}

func TestVerify_DenylistedSiteAndVarianceFromOneValue(t *testing.T) {
	r := runFixture(t)
	r.Annual = append(r.Annual, domain.AnnualSummary{
		Site: siteDolors, Year: 2020, Parameter: "Calcium",
		Mean: domain.Float(5), Variance: domain.Float(0), N: 1,
	})

	failed := failedPhases(pipeline.Verify(r, testCatalog()))
	errs := failed["Annual summary integrity"]
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "denylisted site")
	assert.Contains(t, errs[1], "variance defined from 1 value")
	assert.Contains(t, failed, "Pivot round trip", "annual table no longer matches the wide table")
}

func TestVerify_HarmonizeAccounting(t *testing.T) {
	r := runFixture(t)
	r.Report.IncompatibleUnits++

	failed := failedPhases(pipeline.Verify(r, testCatalog()))
	require.Contains(t, failed, "Harmonize accounting")
}

func TestVerify_RankingOrder(t *testing.T) {
	r := runFixture(t)
	r.Ranking[0], r.Ranking[1] = r.Ranking[1], r.Ranking[0]

	failed := failedPhases(pipeline.Verify(r, testCatalog()))
	require.Contains(t, failed, "Model ranking")
	assert.Contains(t, failed["Model ranking"][0], "adjusted R² increases")
}

func TestVerify_CapsErrorsPerPhase(t *testing.T) {
	r := runFixture(t)
	day := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		r.Tidy = append(r.Tidy, domain.TidyObservation{Date: day.AddDate(0, 0, i), Parameter: "Calcium", Site: siteHot})
	}

	report := pipeline.Verify(r, testCatalog())
	for _, p := range report.Phases {
		if p.Name == "Daily key uniqueness" {
			assert.Len(t, p.Errors, 20)
			assert.Equal(t, 11, p.Suppressed)
			return
		}
	}
	t.Fatal("daily phase missing")
}
