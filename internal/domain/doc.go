// Package domain models Water Quality Portal (WQP) observations for Colorado
// River basin monitoring sites and the pure stages that turn them into annual
// trend statistics.
//
// # Data Source
//
// Observations come from the Water Quality Portal result service, available at
// https://www.waterqualitydata.us/. The portal federates USGS NWIS and EPA STORET
// samples and returns one CSV row per analytical result. Site attributes come from
// the companion station service. The portal only accepts one group of
// characteristic names per result query in this workflow, so results are fetched
// once per canonical parameter and tagged with that parameter's code.
//
// # WQP Data Conventions
//
// Site identifiers:
//
//	"<agency>-<station>"  →  e.g. "USGS-09034500"
//	The agency prefix is part of the identifier and is never stripped.
//
// Characteristic names:
//
//	Providers label the same constituent differently ("Sulfate",
//	"Sulfate as SO4"). A canonical code (e.g. "so4") owns a non-empty synonym
//	set; every synonym is requested together and the results are reported under
//	the code's canonical name.
//
// Dates:
//
//	ActivityStartDate is "YYYY-MM-DD". Rows whose date does not parse are
//	dropped by [Harmonize] and counted in [HarmonizeReport].
//
// Values:
//
//	ResultMeasureValue is free text. Non-numeric entries ("ND", "<0.5", "")
//	become explicitly missing concentrations rather than zeros.
//
// Units:
//
//	Unit strings arrive with stray whitespace and are trimmed by [Clean].
//	Load units such as "tons/day" cannot be compared with concentrations and are
//	dropped by [Harmonize]. All other units are assumed to be mutually
//	convertible mg/L equivalents; no conversion is computed.
//
// # Aggregation
//
// Same-day samples are averaged into one [DailyAverage] per (date, parameter,
// site). Daily averages are summarised per (site, year, parameter) into an
// [AnnualSummary] with mean and sample variance (n−1 divisor). Sites with
// insufficient coverage are excluded by an explicit denylist.
//
// # Trends
//
// Each (parameter, site) partition of the annual table gets an ordinary least
// squares fit of annual mean on year. Partitions with fewer than two distinct
// years are kept but marked skipped. See [FitGroups].
package domain
