package snapshot

import "github.com/couchcryptid/water-quality-etl/internal/domain"

// observationRow is the Parquet schema of a raw WQP result row.
type observationRow struct {
	Code                  string `parquet:"name=code, type=BYTE_ARRAY, convertedtype=UTF8"`
	ActivityStartDate     string `parquet:"name=activity_start_date, type=BYTE_ARRAY, convertedtype=UTF8"`
	ActivityStartTime     string `parquet:"name=activity_start_time, type=BYTE_ARRAY, convertedtype=UTF8"`
	ActivityStartDateTime string `parquet:"name=activity_start_date_time, type=BYTE_ARRAY, convertedtype=UTF8"`
	CharacteristicName    string `parquet:"name=characteristic_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	ResultMeasureValue    string `parquet:"name=result_measure_value, type=BYTE_ARRAY, convertedtype=UTF8"`
	MeasureUnitCode       string `parquet:"name=measure_unit_code, type=BYTE_ARRAY, convertedtype=UTF8"`
	MonitoringLocationID  string `parquet:"name=monitoring_location_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	OrganizationName      string `parquet:"name=organization_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	OrganizationID        string `parquet:"name=organization_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	SampleMethod          string `parquet:"name=sample_method, type=BYTE_ARRAY, convertedtype=UTF8"`
	AnalyticalMethod      string `parquet:"name=analytical_method, type=BYTE_ARRAY, convertedtype=UTF8"`
	ParticleSizeBasis     string `parquet:"name=particle_size_basis, type=BYTE_ARRAY, convertedtype=UTF8"`
	ActivityMediaName     string `parquet:"name=activity_media_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	SampleDepth           string `parquet:"name=sample_depth, type=BYTE_ARRAY, convertedtype=UTF8"`
	SampleDepthUnit       string `parquet:"name=sample_depth_unit, type=BYTE_ARRAY, convertedtype=UTF8"`
	SampleFraction        string `parquet:"name=sample_fraction, type=BYTE_ARRAY, convertedtype=UTF8"`
	ResultStatus          string `parquet:"name=result_status, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func toObservationRow(o domain.RawObservation) observationRow {
	return observationRow(o)
}

func (r observationRow) observation() domain.RawObservation {
	return domain.RawObservation(r)
}

// siteRow is the Parquet schema of a site metadata row.
type siteRow struct {
	ID               string   `parquet:"name=site, type=BYTE_ARRAY, convertedtype=UTF8"`
	Basin            string   `parquet:"name=basin, type=BYTE_ARRAY, convertedtype=UTF8"`
	Name             string   `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	DrainageArea     *float64 `parquet:"name=drainage_area, type=DOUBLE, repetitiontype=OPTIONAL"`
	DrainageAreaUnit string   `parquet:"name=drainage_area_unit, type=BYTE_ARRAY, convertedtype=UTF8"`
	Latitude         *float64 `parquet:"name=lat, type=DOUBLE, repetitiontype=OPTIONAL"`
	Longitude        *float64 `parquet:"name=long, type=DOUBLE, repetitiontype=OPTIONAL"`
}

func toSiteRow(s domain.Site) siteRow {
	return siteRow{
		ID:               s.ID,
		Basin:            s.Basin,
		Name:             s.Name,
		DrainageArea:     s.DrainageArea,
		DrainageAreaUnit: s.DrainageAreaUnit,
		Latitude:         s.Latitude,
		Longitude:        s.Longitude,
	}
}

func (r siteRow) site() domain.Site {
	return domain.Site{
		ID:               r.ID,
		Basin:            r.Basin,
		Name:             r.Name,
		DrainageArea:     r.DrainageArea,
		DrainageAreaUnit: r.DrainageAreaUnit,
		Latitude:         r.Latitude,
		Longitude:        r.Longitude,
	}
}
