package catalog

// Default returns the built-in Colorado River basin study: eight mainstem and
// tributary gages, the major-ion dictionary, and water-year 1981-2020.
func Default() *Catalog {
	return &Catalog{
		Sites: []Site{
			{ID: "USGS-09034500", Basin: "colorado1"},
			{ID: "USGS-09069000", Basin: "eagle"},
			{ID: "USGS-09085000", Basin: "roaring"},
			{ID: "USGS-09095500", Basin: "colorado3"},
			{ID: "USGS-09152500", Basin: "gunnison"},
			{ID: "USGS-09180000", Basin: "dolores"},
			{ID: "USGS-09180500", Basin: "colorado4"},
			{ID: "USGS-09380000", Basin: "colorado5"},
		},
		Parameters: []Parameter{
			{Code: "ca", Name: "Calcium", Synonyms: []string{"Calcium"}},
			{Code: "mg", Name: "Magnesium", Synonyms: []string{"Magnesium"}},
			{Code: "na", Name: "Sodium", Synonyms: []string{"Sodium"}},
			{Code: "k", Name: "Potassium", Synonyms: []string{"Potassium"}},
			{Code: "cl", Name: "Chloride", Synonyms: []string{"Chloride"}},
			{Code: "so4", Name: "Sulfate", Synonyms: []string{"Sulfate", "Sulfate as SO4", "Sulfur Sulfate", "Total Sulfate"}},
			{Code: "hco3", Name: "Bicarbonate", Synonyms: []string{"Alkalinity, bicarbonate", "Bicarbonate"}},
		},
		SampleMedia:       "Water",
		StartDate:         "1980-10-01",
		EndDate:           "2020-09-30",
		IncompatibleUnits: []string{"tons/day"},
		// Too few years of record for a trend.
		ExcludedSites: []string{"USGS-09180000", "USGS-09180500", "USGS-09380000"},
		Derived: []Derived{
			{Name: "Mg+Ca", Sum: []string{"Magnesium", "Calcium"}},
		},
	}
}
