package domain

import "strings"

// Clean projects raw provider rows onto the canonical column set, trims unit
// strings, and keeps only rows sampled from the given medium. It performs no
// other validation: malformed rows pass through untouched.
func Clean(raw []RawObservation, medium string) []CleanObservation {
	out := make([]CleanObservation, 0, len(raw))
	for i := range raw {
		r := &raw[i]
		if r.ActivityMediaName != medium {
			continue
		}
		out = append(out, CleanObservation{
			Code:             r.Code,
			Date:             r.ActivityStartDate,
			Parameter:        r.CharacteristicName,
			Units:            strings.TrimSpace(r.MeasureUnitCode),
			Site:             r.MonitoringLocationID,
			Org:              r.OrganizationName,
			OrgID:            r.OrganizationID,
			Time:             r.ActivityStartTime,
			Value:            r.ResultMeasureValue,
			SampleMethod:     r.SampleMethod,
			AnalyticalMethod: r.AnalyticalMethod,
			ParticleSize:     r.ParticleSizeBasis,
			DateTime:         r.ActivityStartDateTime,
			Media:            r.ActivityMediaName,
			SampleDepth:      r.SampleDepth,
			SampleDepthUnit:  r.SampleDepthUnit,
			Fraction:         r.SampleFraction,
			Status:           r.ResultStatus,
		})
	}
	return out
}
