package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/water-quality-etl/internal/catalog"
	"github.com/couchcryptid/water-quality-etl/internal/domain"
)

const (
	siteHot    = "USGS-09034500"
	siteEagle  = "USGS-09069000"
	siteDolors = "USGS-09180000"
)

var errNoSnapshot = errors.New("no snapshot")

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Sites: []catalog.Site{
			{ID: siteHot, Basin: "colorado1"},
			{ID: siteEagle, Basin: "eagle"},
			{ID: siteDolors, Basin: "dolores"},
		},
		Parameters: []catalog.Parameter{
			{Code: "ca", Name: "Calcium", Synonyms: []string{"Calcium"}},
			{Code: "mg", Name: "Magnesium", Synonyms: []string{"Magnesium"}},
		},
		SampleMedia:       "Water",
		StartDate:         "2018-01-01",
		EndDate:           "2020-12-31",
		IncompatibleUnits: []string{"tons/day"},
		ExcludedSites:     []string{siteDolors},
		Derived:           []catalog.Derived{{Name: "Mg+Ca", Sum: []string{"Magnesium", "Calcium"}}},
	}
}

func obs(code, site, date, value, unit string) domain.RawObservation {
	return domain.RawObservation{
		Code:                 code,
		ActivityStartDate:    date,
		CharacteristicName:   map[string]string{"ca": "Calcium", "mg": "Magnesium"}[code],
		ResultMeasureValue:   value,
		MeasureUnitCode:      unit,
		MonitoringLocationID: site,
		ActivityMediaName:    "Water",
		ResultStatus:         "Accepted",
	}
}

// fixtureResults is keyed by parameter code. It contains one duplicate
// same-day Calcium pair (10, 20), a tons/day row, a sediment row, a bad date,
// a censored value, and a denylisted site.
func fixtureResults() map[string][]domain.RawObservation {
	sediment := obs("ca", siteHot, "2020-06-01", "99", "mg/kg")
	sediment.ActivityMediaName = "Sediment"

	return map[string][]domain.RawObservation{
		"ca": {
			obs("ca", siteHot, "2020-06-01", "10", "mg/l"),
			obs("ca", siteHot, "2020-06-01", "20", "mg/l "),
			obs("ca", siteHot, "2019-06-01", "12", "mg/l"),
			obs("ca", siteHot, "2018-06-01", "11", "mg/l"),
			obs("ca", siteEagle, "2020-07-01", "900", "tons/day"),
			obs("ca", siteEagle, "2020-07-01", "8", "mg/l"),
			obs("ca", siteDolors, "2020-01-01", "5", "mg/l"),
			sediment,
			obs("ca", siteHot, "06/01/2020", "7", "mg/l"),
		},
		"mg": {
			obs("mg", siteHot, "2018-06-01", "3", "mg/l"),
			obs("mg", siteHot, "2019-06-01", "4", "mg/l"),
			obs("mg", siteHot, "2020-06-01", "5", "mg/l"),
			obs("mg", siteEagle, "2020-07-02", "<0.5", "mg/l"),
		},
	}
}

func fixtureSites() []domain.Site {
	return []domain.Site{
		{ID: siteHot, Name: "COLORADO RIVER AT HOT SULPHUR SPRINGS, CO", Latitude: domain.Float(40.083), Longitude: domain.Float(-106.289)},
		{ID: siteEagle, Name: "EAGLE RIVER AT GYPSUM CO"},
		{ID: siteDolors, Name: "DOLORES RIVER NEAR CISCO, UT"},
	}
}

// --- fakes ---

type fakeFetcher struct {
	mu      sync.Mutex
	results map[string][]domain.RawObservation
	sites   []domain.Site
	delay   map[string]time.Duration
	fail    map[string]error
	calls   []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{results: fixtureResults(), sites: fixtureSites()}
}

func (f *fakeFetcher) FetchResults(ctx context.Context, q domain.ResultQuery) ([]domain.RawObservation, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q.Code)
	f.mu.Unlock()

	if d := f.delay[q.Code]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.fail[q.Code]; err != nil {
		return nil, err
	}
	rows := f.results[q.Code]
	out := make([]domain.RawObservation, len(rows))
	copy(out, rows)
	return out, nil
}

func (f *fakeFetcher) FetchSites(_ context.Context, ids []string) ([]domain.Site, error) {
	if len(ids) == 0 {
		return nil, errors.New("no sites requested")
	}
	out := make([]domain.Site, len(f.sites))
	copy(out, f.sites)
	return out, nil
}

type memSnapshots struct {
	snap *domain.Snapshot
}

func (m *memSnapshots) Save(_ context.Context, snap *domain.Snapshot) error {
	m.snap = snap
	return nil
}

func (m *memSnapshots) Load(_ context.Context) (*domain.Snapshot, error) {
	if m.snap == nil {
		return nil, errNoSnapshot
	}
	return m.snap, nil
}

type recordingLoader struct {
	name    string
	err     error
	results []*domain.RunResult
}

func (r *recordingLoader) Name() string { return r.name }

func (r *recordingLoader) Load(_ context.Context, result *domain.RunResult) error {
	if r.err != nil {
		return r.err
	}
	r.results = append(r.results, result)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
