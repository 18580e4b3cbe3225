package domain

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// fitParams is the number of estimated parameters for the information
// criteria: intercept, slope and residual variance.
const fitParams = 3

// ModelKey identifies one (parameter, site) partition of the annual table.
type ModelKey struct {
	Parameter string `json:"parameter"`
	Site      string `json:"site"`
}

// FitStats summarises an ordinary least squares fit of annual mean
// concentration on year. Nil fields are undefined for the partition, e.g.
// adjusted R² with zero residual degrees of freedom.
type FitStats struct {
	Parameter   string   `json:"parameter"`
	Site        string   `json:"site"`
	N           int      `json:"n"`
	DF          int      `json:"df_residual"`
	Slope       float64  `json:"slope"`
	Intercept   float64  `json:"intercept"`
	RSquared    *float64 `json:"r_squared"`
	AdjRSquared *float64 `json:"adj_r_squared"`
	PValue      *float64 `json:"p_value"`
	Sigma       *float64 `json:"sigma"`
	LogLik      *float64 `json:"log_lik"`
	AIC         *float64 `json:"aic"`
	BIC         *float64 `json:"bic"`
}

// GroupModel is one partition with its rows and, unless skipped, its fit.
type GroupModel struct {
	Key     ModelKey        `json:"key"`
	Rows    []AnnualSummary `json:"rows"`
	Fit     *FitStats       `json:"fit,omitempty"`
	Skipped bool            `json:"skipped"`
	Reason  string          `json:"reason,omitempty"`
}

// FitGroups partitions the annual table by (parameter, site) and fits each
// partition independently. Rows with a missing mean do not contribute.
// Partitions with fewer than two distinct years are returned skipped with a
// reason instead of a fabricated fit.
func FitGroups(annual []AnnualSummary) map[ModelKey]*GroupModel {
	groups := make(map[ModelKey]*GroupModel)
	for _, a := range annual {
		k := ModelKey{Parameter: a.Parameter, Site: a.Site}
		g, ok := groups[k]
		if !ok {
			g = &GroupModel{Key: k}
			groups[k] = g
		}
		g.Rows = append(g.Rows, a)
	}

	for _, g := range groups {
		x, y := regressionInputs(g.Rows)
		if distinct(x) < 2 {
			g.Skipped = true
			g.Reason = "fewer than 2 distinct years with a mean"
			continue
		}
		fit := FitLinear(x, y)
		fit.Parameter = g.Key.Parameter
		fit.Site = g.Key.Site
		g.Fit = &fit
	}
	return groups
}

// FitLinear fits y = intercept + slope*x by ordinary least squares. Callers
// must supply at least two distinct x values.
func FitLinear(x, y []float64) FitStats {
	n := len(x)
	df := n - 2
	intercept, slope := stat.LinearRegression(x, y, nil, false)

	yMean := stat.Mean(y, nil)
	xMean := stat.Mean(x, nil)
	var rss, tss, sxx float64
	for i := range x {
		r := y[i] - (intercept + slope*x[i])
		rss += r * r
		tss += (y[i] - yMean) * (y[i] - yMean)
		sxx += (x[i] - xMean) * (x[i] - xMean)
	}
	// Round-off on an exact fit leaves residuals near machine epsilon relative
	// to the spread of y. A constant series is always fit exactly.
	if tss == 0 || rss <= 1e-12*tss {
		rss = 0
	}

	fit := FitStats{N: n, DF: df, Slope: slope, Intercept: intercept}

	var r2 float64
	if tss > 0 {
		r2 = 1 - rss/tss
		fit.RSquared = Float(r2)
	}

	if df > 0 {
		sigma := math.Sqrt(rss / float64(df))
		fit.Sigma = Float(sigma)
		if fit.RSquared != nil {
			fit.AdjRSquared = Float(1 - (1-r2)*float64(n-1)/float64(df))
		}
		fit.PValue = slopePValue(slope, sigma, sxx, df)
	}

	if rss > 0 {
		ll := -0.5 * float64(n) * (math.Log(2*math.Pi) + math.Log(rss/float64(n)) + 1)
		fit.LogLik = Float(ll)
		fit.AIC = Float(-2*ll + 2*fitParams)
		fit.BIC = Float(-2*ll + math.Log(float64(n))*fitParams)
	}
	return fit
}

// slopePValue is the two-sided t-test of slope = 0. With one predictor it
// equals the overall F-test p-value.
func slopePValue(slope, sigma, sxx float64, df int) *float64 {
	se := sigma / math.Sqrt(sxx)
	if se == 0 {
		if slope == 0 {
			return nil
		}
		return Float(0)
	}
	t := math.Abs(slope / se)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	return Float(2 * dist.Survival(t))
}

// Rank returns the fitted partitions ordered by adjusted R² descending.
// Partitions with an undefined adjusted R² sort last; ties break on
// parameter then site. Skipped partitions are omitted.
func Rank(groups map[ModelKey]*GroupModel) []FitStats {
	out := make([]FitStats, 0, len(groups))
	for _, g := range groups {
		if g.Fit != nil {
			out = append(out, *g.Fit)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].AdjRSquared, out[j].AdjRSquared
		switch {
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		case a != nil && b != nil && *a != *b:
			return *a > *b
		}
		if out[i].Parameter != out[j].Parameter {
			return out[i].Parameter < out[j].Parameter
		}
		return out[i].Site < out[j].Site
	})
	return out
}

func sortGroups(gs []GroupModel) {
	sort.Slice(gs, func(i, j int) bool {
		if gs[i].Key.Parameter != gs[j].Key.Parameter {
			return gs[i].Key.Parameter < gs[j].Key.Parameter
		}
		return gs[i].Key.Site < gs[j].Key.Site
	})
}

func regressionInputs(rows []AnnualSummary) (x, y []float64) {
	sorted := make([]AnnualSummary, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })
	for _, r := range sorted {
		if r.Mean == nil {
			continue
		}
		x = append(x, float64(r.Year))
		y = append(y, *r.Mean)
	}
	return x, y
}

func distinct(vs []float64) int {
	seen := make(map[float64]struct{}, len(vs))
	for _, v := range vs {
		seen[v] = struct{}{}
	}
	return len(seen)
}
