package domain

import (
	"errors"
	"fmt"
	"sort"
)

// ErrPivotCollision reports more than one annual row for a (site, year,
// parameter) cell of the wide table.
var ErrPivotCollision = errors.New("pivot collision")

// DerivedColumn is a wide-table column computed as the sum of two parameters.
type DerivedColumn struct {
	Name string
	Sum  [2]string
}

// WideRow is one (site, year) row of the wide annual table. Values holds the
// annual mean per parameter; a present key with a nil value is a missing
// mean, an absent key is a parameter never observed that year.
type WideRow struct {
	Site    string              `json:"site"`
	Year    int                 `json:"year"`
	Values  map[string]*float64 `json:"values"`
	Derived map[string]*float64 `json:"derived,omitempty"`
}

// WideTable is the annual summary pivoted to one column per parameter.
type WideTable struct {
	Parameters []string  `json:"parameters"`
	Derived    []string  `json:"derived,omitempty"`
	Rows       []WideRow `json:"rows"`
}

// AnnualMean is the (site, year, parameter, mean) projection of an
// AnnualSummary, the long form that Pivot and Melt convert between.
type AnnualMean struct {
	Site      string   `json:"site"`
	Year      int      `json:"year"`
	Parameter string   `json:"parameter"`
	Mean      *float64 `json:"conc"`
}

// Means drops the variance and count columns from an annual table.
func Means(annual []AnnualSummary) []AnnualMean {
	out := make([]AnnualMean, len(annual))
	for i, a := range annual {
		out[i] = AnnualMean{Site: a.Site, Year: a.Year, Parameter: a.Parameter, Mean: a.Mean}
	}
	return out
}

// Pivot spreads the long annual means into one row per (site, year) with one
// column per parameter, then computes each derived column as the sum of its
// two addends (nil when either is missing). A duplicate cell fails with
// ErrPivotCollision rather than silently overwriting.
func Pivot(long []AnnualMean, derived []DerivedColumn) (WideTable, error) {
	type rowKey struct {
		site string
		year int
	}

	rows := make(map[rowKey]*WideRow)
	var order []rowKey
	params := make(map[string]struct{})

	for _, m := range long {
		k := rowKey{site: m.Site, year: m.Year}
		row, ok := rows[k]
		if !ok {
			row = &WideRow{Site: m.Site, Year: m.Year, Values: make(map[string]*float64)}
			rows[k] = row
			order = append(order, k)
		}
		if _, dup := row.Values[m.Parameter]; dup {
			return WideTable{}, fmt.Errorf("%w: site %s year %d parameter %q", ErrPivotCollision, m.Site, m.Year, m.Parameter)
		}
		row.Values[m.Parameter] = m.Mean
		params[m.Parameter] = struct{}{}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].site != order[j].site {
			return order[i].site < order[j].site
		}
		return order[i].year < order[j].year
	})

	table := WideTable{
		Parameters: make([]string, 0, len(params)),
		Rows:       make([]WideRow, 0, len(order)),
	}
	for p := range params {
		table.Parameters = append(table.Parameters, p)
	}
	sort.Strings(table.Parameters)
	for _, d := range derived {
		table.Derived = append(table.Derived, d.Name)
	}

	for _, k := range order {
		row := rows[k]
		if len(derived) > 0 {
			row.Derived = make(map[string]*float64, len(derived))
			for _, d := range derived {
				row.Derived[d.Name] = sumCells(row.Values[d.Sum[0]], row.Values[d.Sum[1]])
			}
		}
		table.Rows = append(table.Rows, *row)
	}
	return table, nil
}

// Melt gathers the parameter columns of a wide table back into long form,
// ordered by site, year, then parameter. Derived columns are not melted.
func Melt(table WideTable) []AnnualMean {
	var out []AnnualMean
	for _, row := range table.Rows {
		names := make([]string, 0, len(row.Values))
		for p := range row.Values {
			names = append(names, p)
		}
		sort.Strings(names)
		for _, p := range names {
			out = append(out, AnnualMean{Site: row.Site, Year: row.Year, Parameter: p, Mean: row.Values[p]})
		}
	}
	return out
}

func sumCells(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	return Float(*a + *b)
}
