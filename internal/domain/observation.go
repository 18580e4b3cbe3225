package domain

import "time"

// DateLayout is the ISO calendar date layout used by WQP and the catalog.
const DateLayout = "2006-01-02"

// Site is reference data for one monitoring location.
type Site struct {
	ID               string   `json:"site"`
	Basin            string   `json:"basin,omitempty"`
	Name             string   `json:"name,omitempty"`
	DrainageArea     *float64 `json:"drainage_area,omitempty"`
	DrainageAreaUnit string   `json:"drainage_area_unit,omitempty"`
	Latitude         *float64 `json:"lat,omitempty"`
	Longitude        *float64 `json:"long,omitempty"`
}

// ResultQuery addresses one canonical parameter across all catalog sites.
type ResultQuery struct {
	Code        string
	Synonyms    []string
	SiteIDs     []string
	SampleMedia string
	StartDate   string // YYYY-MM-DD
	EndDate     string // YYYY-MM-DD
}

// RawObservation is one WQP result row as delivered by the provider, tagged
// with the canonical parameter code it was requested under.
type RawObservation struct {
	Code string

	ActivityStartDate     string
	ActivityStartTime     string
	ActivityStartDateTime string
	CharacteristicName    string
	ResultMeasureValue    string
	MeasureUnitCode       string
	MonitoringLocationID  string
	OrganizationName      string
	OrganizationID        string
	SampleMethod          string
	AnalyticalMethod      string
	ParticleSizeBasis     string
	ActivityMediaName     string
	SampleDepth           string
	SampleDepthUnit       string
	SampleFraction        string
	ResultStatus          string
}

// CleanObservation is a raw row projected onto canonical column names.
type CleanObservation struct {
	Code             string `json:"code"`
	Date             string `json:"date"`
	Parameter        string `json:"parameter"`
	Units            string `json:"units"`
	Site             string `json:"site"`
	Org              string `json:"org"`
	OrgID            string `json:"org_id"`
	Time             string `json:"time"`
	Value            string `json:"value"`
	SampleMethod     string `json:"sample_method"`
	AnalyticalMethod string `json:"analytical_method"`
	ParticleSize     string `json:"particle_size"`
	DateTime         string `json:"date_time"`
	Media            string `json:"media"`
	SampleDepth      string `json:"sample_depth"`
	SampleDepthUnit  string `json:"sample_depth_unit"`
	Fraction         string `json:"fraction"`
	Status           string `json:"status"`
}

// TidyObservation is a harmonized (date, parameter, site, concentration) row.
// Concentration is nil when the provider value was not numeric.
type TidyObservation struct {
	Date          time.Time `json:"date"`
	Parameter     string    `json:"parameter"`
	Site          string    `json:"site"`
	Concentration *float64  `json:"conc"`
}

// DailyAverage is the mean concentration of one (date, parameter, site).
// Concentration is nil when every value in the group was missing.
type DailyAverage struct {
	Date          time.Time `json:"date"`
	Parameter     string    `json:"parameter"`
	Site          string    `json:"site"`
	Concentration *float64  `json:"conc"`
}

// AnnualSummary is the mean and sample variance of daily averages for one
// (site, year, parameter). Variance is nil when fewer than two values exist.
type AnnualSummary struct {
	Site      string   `json:"site"`
	Year      int      `json:"year"`
	Parameter string   `json:"parameter"`
	Mean      *float64 `json:"conc"`
	Variance  *float64 `json:"var"`
	N         int      `json:"n"`
}

// Snapshot is the persisted result of an extract: everything the later stages
// need so the expensive fetch does not have to be repeated.
type Snapshot struct {
	RunID        string           `json:"run_id"`
	CreatedAt    time.Time        `json:"created_at"`
	StartDate    string           `json:"start_date"`
	EndDate      string           `json:"end_date"`
	Observations []RawObservation `json:"-"`
	Sites        []Site           `json:"-"`
}
