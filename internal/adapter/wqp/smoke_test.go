//go:build wqp

package wqp

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/observability"
)

// These tests hit the live Water Quality Portal.
// Run with: go test -tags=wqp ./internal/adapter/wqp/ -v -count=1

func smokeClient() *Client {
	return NewClient(DefaultBaseURL, 2*time.Minute, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSmoke_FetchResults(t *testing.T) {
	c := smokeClient()

	rows, err := c.FetchResults(context.Background(), domain.ResultQuery{
		Code:        "ca",
		Synonyms:    []string{"Calcium"},
		SiteIDs:     []string{"USGS-09034500"},
		SampleMedia: "Water",
		StartDate:   "2015-10-01",
		EndDate:     "2016-09-30",
	})
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	for _, r := range rows {
		assert.Equal(t, "ca", r.Code)
		assert.Equal(t, "USGS-09034500", r.MonitoringLocationID)
		assert.Equal(t, "Calcium", r.CharacteristicName)
	}
}

func TestSmoke_FetchSites(t *testing.T) {
	c := smokeClient()

	sites, err := c.FetchSites(context.Background(), []string{"USGS-09034500", "USGS-09069000"})
	require.NoError(t, err)
	require.Len(t, sites, 2)
	for _, s := range sites {
		assert.NotEmpty(t, s.Name)
		assert.NotNil(t, s.Latitude)
	}
}
