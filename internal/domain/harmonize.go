package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// HarmonizeRules carries the data-quality judgments applied by Harmonize.
type HarmonizeRules struct {
	// IncompatibleUnits lists unit strings that are not concentrations.
	IncompatibleUnits map[string]struct{}
	// ParameterNames maps canonical codes to the name reported downstream.
	// Rows whose code is absent keep their characteristic name.
	ParameterNames map[string]string
}

// HarmonizeReport counts rows removed or degraded by Harmonize.
type HarmonizeReport struct {
	Input             int `json:"input"`
	Output            int `json:"output"`
	IncompatibleUnits int `json:"incompatible_units"`
	UnparseableDates  int `json:"unparseable_dates"`
	MissingValues     int `json:"missing_values"`
}

// Harmonize drops rows reported in an incompatible unit, parses dates and
// values, and reduces each row to (date, parameter, site, concentration).
// Rows whose date does not parse are dropped and counted. Values that do not
// parse are kept as explicitly missing concentrations.
func Harmonize(rows []CleanObservation, rules HarmonizeRules) ([]TidyObservation, HarmonizeReport) {
	report := HarmonizeReport{Input: len(rows)}
	out := make([]TidyObservation, 0, len(rows))

	for i := range rows {
		r := &rows[i]
		if _, bad := rules.IncompatibleUnits[r.Units]; bad {
			report.IncompatibleUnits++
			continue
		}

		date, err := time.ParseInLocation(DateLayout, strings.TrimSpace(r.Date), time.UTC)
		if err != nil {
			report.UnparseableDates++
			continue
		}

		conc := parseConcentration(r.Value)
		if conc == nil {
			report.MissingValues++
		}

		out = append(out, TidyObservation{
			Date:          date,
			Parameter:     canonicalParameter(r, rules.ParameterNames),
			Site:          r.Site,
			Concentration: conc,
		})
	}

	report.Output = len(out)
	return out, report
}

// canonicalParameter reports the row under its code's canonical name so that
// synonyms of one constituent land in one column.
func canonicalParameter(r *CleanObservation, names map[string]string) string {
	if name, ok := names[r.Code]; ok && name != "" {
		return name
	}
	return r.Parameter
}

// parseConcentration parses a provider value, returning nil for empty,
// censored ("<0.5") or otherwise non-numeric text.
func parseConcentration(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
