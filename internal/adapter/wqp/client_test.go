package wqp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/observability"
)

const contentTypeCSV = "text/csv"

var resultHeader = strings.Join([]string{
	"OrganizationIdentifier", "OrganizationFormalName", "ActivityMediaName",
	"ActivityStartDate", "ActivityStartTime/Time", "ActivityDepthHeightMeasure/MeasureValue",
	"ActivityDepthHeightMeasure/MeasureUnitCode", "MonitoringLocationIdentifier",
	"SampleCollectionMethod/MethodName", "CharacteristicName", "ResultSampleFractionText",
	"ResultMeasureValue", "ResultMeasure/MeasureUnitCode", "ResultStatusIdentifier",
	"ResultParticleSizeBasisText", "ResultAnalyticalMethod/MethodName",
}, ",")

const stationCSV = `OrganizationIdentifier,MonitoringLocationIdentifier,MonitoringLocationName,DrainageAreaMeasure/MeasureValue,DrainageAreaMeasure/MeasureUnitCode,LatitudeMeasure,LongitudeMeasure
USGS-CO,USGS-09034500,"COLORADO RIVER AT HOT SULPHUR SPRINGS, CO",825,sq mi,40.0830,-106.2890
USGS-CO,USGS-09034500,"COLORADO RIVER AT HOT SULPHUR SPRINGS, CO",825,sq mi,40.0830,-106.2890
USGS-CO,USGS-09069000,EAGLE RIVER AT GYPSUM CO,,,39.6494,-106.9531
`

func testClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func calciumQuery() domain.ResultQuery {
	return domain.ResultQuery{
		Code:        "ca",
		Synonyms:    []string{"Calcium"},
		SiteIDs:     []string{"USGS-09034500", "USGS-09069000"},
		SampleMedia: "Water",
		StartDate:   "1980-10-01",
		EndDate:     "2020-09-30",
	}
}

func TestClient_FetchResults_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Result/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "csv", q.Get("mimeType"))
		assert.Equal(t, "no", q.Get("zip"))
		assert.Equal(t, []string{"USGS-09034500", "USGS-09069000"}, q["siteid"])
		assert.Equal(t, []string{"Calcium"}, q["characteristicName"])
		assert.Equal(t, "Water", q.Get("sampleMedia"))
		assert.Equal(t, "10-01-1980", q.Get("startDateLo"))
		assert.Equal(t, "09-30-2020", q.Get("startDateHi"))

		w.Header().Set("Content-Type", contentTypeCSV)
		_, _ = io.WriteString(w, resultHeader+"\n"+
			"USGS-CO,USGS Colorado Water Science Center,Water,2020-06-01,10:30:00,,,USGS-09034500,Sampler,Calcium,Dissolved,10.5,mg/l ,Accepted,,ICP\n"+
			"USGS-CO,USGS Colorado Water Science Center,Water,2020-06-02,,,,USGS-09069000,Sampler,Calcium,Dissolved,,mg/l,Accepted,,ICP\n")
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	rows, err := c.FetchResults(context.Background(), calciumQuery())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "ca", first.Code)
	assert.Equal(t, "2020-06-01", first.ActivityStartDate)
	assert.Equal(t, "10:30:00", first.ActivityStartTime)
	assert.Equal(t, "Calcium", first.CharacteristicName)
	assert.Equal(t, "10.5", first.ResultMeasureValue)
	assert.Equal(t, "mg/l ", first.MeasureUnitCode, "units are trimmed by the cleaner, not the fetcher")
	assert.Equal(t, "USGS-09034500", first.MonitoringLocationID)
	assert.Equal(t, "USGS Colorado Water Science Center", first.OrganizationName)
	assert.Equal(t, "Water", first.ActivityMediaName)
	assert.Equal(t, "Dissolved", first.SampleFraction)
	assert.Empty(t, first.ActivityStartDateTime)

	assert.Equal(t, "ca", rows[1].Code)
	assert.Empty(t, rows[1].ResultMeasureValue)

	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.WQPRequests.WithLabelValues(endpointResult, "success")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(c.metrics.WQPRowsFetched.WithLabelValues(endpointResult)), 0)
}

func TestClient_FetchResults_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rows, err := testClient(srv.URL).FetchResults(context.Background(), calciumQuery())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestClient_FetchResults_HeaderOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, resultHeader+"\n")
	}))
	defer srv.Close()

	rows, err := testClient(srv.URL).FetchResults(context.Background(), calciumQuery())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestClient_FetchResults_MissingColumns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ActivityStartDate,CharacteristicName\n2020-06-01,Calcium\n")
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.FetchResults(context.Background(), calciumQuery())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))
	assert.Contains(t, err.Error(), `"ResultMeasureValue"`)
	assert.Contains(t, err.Error(), `"MonitoringLocationIdentifier"`)
	assert.Contains(t, err.Error(), `"ResultStatusIdentifier"`)
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.WQPRequests.WithLabelValues(endpointResult, "error")), 0)
}

func TestClient_FetchResults_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("Invalid siteid"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchResults(context.Background(), calciumQuery())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "Invalid siteid")
	assert.Contains(t, err.Error(), "fetch ca results")
}

func TestClient_FetchResults_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.httpClient.Timeout = 50 * time.Millisecond

	_, err := c.FetchResults(context.Background(), calciumQuery())
	require.Error(t, err)
}

func TestClient_FetchResults_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(srv.URL).FetchResults(ctx, calciumQuery())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestClient_FetchResults_RejectsBadDate(t *testing.T) {
	q := calciumQuery()
	q.StartDate = "10/01/1980"

	_, err := testClient("http://unused").FetchResults(context.Background(), q)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid date")
}

func TestClient_FetchResults_RequiresSynonyms(t *testing.T) {
	q := calciumQuery()
	q.Synonyms = nil

	_, err := testClient("http://unused").FetchResults(context.Background(), q)
	require.Error(t, err)
}

func TestClient_FetchSites_Deduplicates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Station/search", r.URL.Path)
		assert.Equal(t, []string{"USGS-09034500", "USGS-09069000"}, r.URL.Query()["siteid"])
		w.Header().Set("Content-Type", contentTypeCSV)
		_, _ = io.WriteString(w, stationCSV)
	}))
	defer srv.Close()

	sites, err := testClient(srv.URL).FetchSites(context.Background(), []string{"USGS-09034500", "USGS-09069000"})
	require.NoError(t, err)
	require.Len(t, sites, 2)

	hot := sites[0]
	assert.Equal(t, "USGS-09034500", hot.ID)
	assert.Equal(t, "COLORADO RIVER AT HOT SULPHUR SPRINGS, CO", hot.Name)
	require.NotNil(t, hot.DrainageArea)
	assert.InDelta(t, 825, *hot.DrainageArea, 0)
	assert.Equal(t, "sq mi", hot.DrainageAreaUnit)
	require.NotNil(t, hot.Latitude)
	assert.InDelta(t, 40.083, *hot.Latitude, 1e-9)

	eagle := sites[1]
	assert.Equal(t, "USGS-09069000", eagle.ID)
	assert.Nil(t, eagle.DrainageArea)
	assert.Empty(t, eagle.DrainageAreaUnit)
	require.NotNil(t, eagle.Longitude)
	assert.InDelta(t, -106.9531, *eagle.Longitude, 1e-9)
}

func TestClient_FetchSites_KeepsRowsThatDifferInAnyField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "MonitoringLocationIdentifier,MonitoringLocationName,DrainageAreaMeasure/MeasureValue,DrainageAreaMeasure/MeasureUnitCode,LatitudeMeasure,LongitudeMeasure\n"+
			"USGS-1,A,1,sq mi,1,1\n"+
			"USGS-1,A,2,sq mi,1,1\n")
	}))
	defer srv.Close()

	sites, err := testClient(srv.URL).FetchSites(context.Background(), []string{"USGS-1"})
	require.NoError(t, err)
	assert.Len(t, sites, 2)
}

func TestClient_FetchSites_HandlesByteOrderMark(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "\ufeff"+stationCSV)
	}))
	defer srv.Close()

	sites, err := testClient(srv.URL).FetchSites(context.Background(), []string{"USGS-09034500"})
	require.NoError(t, err)
	assert.Len(t, sites, 2)
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	c := NewClient("", time.Second, observability.NewMetricsForTesting(), slog.Default())
	assert.Equal(t, DefaultBaseURL, c.baseURL)

	c = NewClient("http://localhost:8080/data/", time.Second, observability.NewMetricsForTesting(), slog.Default())
	assert.Equal(t, "http://localhost:8080/data", c.baseURL)
}
