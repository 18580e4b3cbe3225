// Package wqp fetches result and station data from the Water Quality Portal.
package wqp

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/observability"
)

// DefaultBaseURL is the public WQP data service root.
const DefaultBaseURL = "https://www.waterqualitydata.us/data"

// wqpDateLayout is the MM-DD-YYYY form WQP expects for startDateLo/Hi.
const wqpDateLayout = "01-02-2006"

const (
	endpointResult  = "result"
	endpointStation = "station"
)

// ErrSchema reports a WQP response missing expected columns.
var ErrSchema = errors.New("unexpected wqp schema")

// Client downloads WQP CSV exports over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a WQP client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// FetchResults downloads every result row matching the query and tags each
// with the query's canonical parameter code.
func (c *Client) FetchResults(ctx context.Context, q domain.ResultQuery) ([]domain.RawObservation, error) {
	params, err := resultParams(q)
	if err != nil {
		return nil, err
	}

	var out []domain.RawObservation
	err = c.doRequest(ctx, c.baseURL+"/Result/search?"+params.Encode(), endpointResult, resultColumns, func(get func(string) string) {
		out = append(out, domain.RawObservation{
			Code:                  q.Code,
			ActivityStartDate:     get(colActivityStartDate),
			ActivityStartTime:     get(colActivityStartTime),
			ActivityStartDateTime: get(colActivityStartDateTime),
			CharacteristicName:    get(colCharacteristicName),
			ResultMeasureValue:    get(colResultMeasureValue),
			MeasureUnitCode:       get(colMeasureUnitCode),
			MonitoringLocationID:  get(colMonitoringLocationID),
			OrganizationName:      get(colOrganizationName),
			OrganizationID:        get(colOrganizationID),
			SampleMethod:          get(colSampleMethod),
			AnalyticalMethod:      get(colAnalyticalMethod),
			ParticleSizeBasis:     get(colParticleSizeBasis),
			ActivityMediaName:     get(colActivityMediaName),
			SampleDepth:           get(colSampleDepth),
			SampleDepthUnit:       get(colSampleDepthUnit),
			SampleFraction:        get(colSampleFraction),
			ResultStatus:          get(colResultStatus),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s results: %w", q.Code, err)
	}

	c.logger.Info("wqp results fetched", "code", q.Code, "rows", len(out))
	return out, nil
}

// FetchSites downloads station metadata for the given sites. Rows identical
// in every selected field are collapsed to their first occurrence.
func (c *Client) FetchSites(ctx context.Context, siteIDs []string) ([]domain.Site, error) {
	params := url.Values{
		"mimeType": {"csv"},
		"zip":      {"no"},
		"siteid":   siteIDs,
	}

	var out []domain.Site
	seen := make(map[siteRow]bool)
	err := c.doRequest(ctx, c.baseURL+"/Station/search?"+params.Encode(), endpointStation, stationColumns, func(get func(string) string) {
		row := siteRow{
			id:           get(colMonitoringLocationID),
			name:         get(colLocationName),
			drainage:     get(colDrainageArea),
			drainageUnit: get(colDrainageAreaUnit),
			lat:          get(colLatitude),
			long:         get(colLongitude),
		}
		if seen[row] {
			return
		}
		seen[row] = true
		out = append(out, row.site())
	})
	if err != nil {
		return nil, fmt.Errorf("fetch sites: %w", err)
	}

	c.logger.Info("wqp sites fetched", "sites", len(out))
	return out, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL, endpoint string, required []string, emit func(get func(string) string)) error {
	start := time.Now()
	rows, err := c.decode(ctx, fullURL, required, emit)
	c.metrics.WQPAPIDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.WQPRequests.WithLabelValues(endpoint, "error").Inc()
		c.logger.Warn("wqp request failed", "endpoint", endpoint, "error", err)
		return err
	}
	c.metrics.WQPRequests.WithLabelValues(endpoint, "success").Inc()
	c.metrics.WQPRowsFetched.WithLabelValues(endpoint).Add(float64(rows))
	return nil
}

func (c *Client) decode(ctx context.Context, fullURL string, required []string, emit func(get func(string) string)) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("wqp request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("wqp API error: status %d: %s", resp.StatusCode, body)
	}

	r := csv.NewReader(resp.Body)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		// WQP answers an empty match with a zero-byte body.
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	if err := checkColumns(index, required); err != nil {
		return 0, err
	}

	n := 0
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("read csv row %d: %w", n+2, err)
		}
		emit(func(col string) string {
			if i, ok := index[col]; ok && i < len(record) {
				return record[i]
			}
			return ""
		})
		n++
	}
	return n, nil
}

// checkColumns fails with every missing column listed at once.
func checkColumns(index map[string]int, required []string) error {
	var result *multierror.Error
	for _, col := range required {
		if _, ok := index[col]; !ok {
			result = multierror.Append(result, fmt.Errorf("missing column %q", col))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrSchema, err)
	}
	return nil
}

func resultParams(q domain.ResultQuery) (url.Values, error) {
	if len(q.Synonyms) == 0 {
		return nil, fmt.Errorf("parameter %s has no characteristic names", q.Code)
	}
	params := url.Values{
		"mimeType":           {"csv"},
		"zip":                {"no"},
		"siteid":             q.SiteIDs,
		"characteristicName": q.Synonyms,
	}
	if q.SampleMedia != "" {
		params.Set("sampleMedia", q.SampleMedia)
	}
	if q.StartDate != "" {
		d, err := wqpDate(q.StartDate)
		if err != nil {
			return nil, err
		}
		params.Set("startDateLo", d)
	}
	if q.EndDate != "" {
		d, err := wqpDate(q.EndDate)
		if err != nil {
			return nil, err
		}
		params.Set("startDateHi", d)
	}
	return params, nil
}

func wqpDate(iso string) (string, error) {
	t, err := time.Parse(domain.DateLayout, iso)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", iso, err)
	}
	return t.Format(wqpDateLayout), nil
}

type siteRow struct {
	id, name, drainage, drainageUnit, lat, long string
}

func (r siteRow) site() domain.Site {
	return domain.Site{
		ID:               r.id,
		Name:             r.name,
		DrainageArea:     parseOptional(r.drainage),
		DrainageAreaUnit: r.drainageUnit,
		Latitude:         parseOptional(r.lat),
		Longitude:        parseOptional(r.long),
	}
}

func parseOptional(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &v
}
