package domain

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

type dailyKey struct {
	date      time.Time
	parameter string
	site      string
}

type annualKey struct {
	site      string
	year      int
	parameter string
}

// DailyAverages collapses same-day samples into one row per (date, parameter,
// site). Missing concentrations are excluded from both the sum and the count;
// a group with no usable value is still emitted with a nil concentration.
// Output is ordered by site, parameter, then date.
func DailyAverages(rows []TidyObservation) []DailyAverage {
	values := make(map[dailyKey][]float64)
	var keys []dailyKey

	for i := range rows {
		k := dailyKey{date: rows[i].Date, parameter: rows[i].Parameter, site: rows[i].Site}
		vs, seen := values[k]
		if !seen {
			keys = append(keys, k)
			vs = []float64{}
		}
		if c := rows[i].Concentration; c != nil {
			vs = append(vs, *c)
		}
		values[k] = vs
	}

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.site != b.site {
			return a.site < b.site
		}
		if a.parameter != b.parameter {
			return a.parameter < b.parameter
		}
		return a.date.Before(b.date)
	})

	out := make([]DailyAverage, 0, len(keys))
	for _, k := range keys {
		d := DailyAverage{Date: k.date, Parameter: k.parameter, Site: k.site}
		if vs := values[k]; len(vs) > 0 {
			d.Concentration = Float(stat.Mean(vs, nil))
		}
		out = append(out, d)
	}
	return out
}

// AnnualSummaries drops excluded sites and summarises daily averages per
// (site, year, parameter) with the mean and the sample variance (n−1 divisor)
// of the non-missing values. Variance is nil below two values; mean is nil
// when there are none. Output is ordered by site, year, then parameter.
func AnnualSummaries(daily []DailyAverage, excluded map[string]struct{}) []AnnualSummary {
	values := make(map[annualKey][]float64)
	var keys []annualKey

	for i := range daily {
		d := &daily[i]
		if _, skip := excluded[d.Site]; skip {
			continue
		}
		k := annualKey{site: d.Site, year: d.Date.Year(), parameter: d.Parameter}
		vs, seen := values[k]
		if !seen {
			keys = append(keys, k)
			vs = []float64{}
		}
		if d.Concentration != nil {
			vs = append(vs, *d.Concentration)
		}
		values[k] = vs
	}

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.site != b.site {
			return a.site < b.site
		}
		if a.year != b.year {
			return a.year < b.year
		}
		return a.parameter < b.parameter
	})

	out := make([]AnnualSummary, 0, len(keys))
	for _, k := range keys {
		vs := values[k]
		s := AnnualSummary{Site: k.site, Year: k.year, Parameter: k.parameter, N: len(vs)}
		if len(vs) > 0 {
			s.Mean = Float(stat.Mean(vs, nil))
		}
		if len(vs) > 1 {
			s.Variance = Float(stat.Variance(vs, nil))
		}
		out = append(out, s)
	}
	return out
}
