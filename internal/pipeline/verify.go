package pipeline

import (
	"fmt"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/couchcryptid/water-quality-etl/internal/catalog"
	"github.com/couchcryptid/water-quality-etl/internal/domain"
)

// maxPhaseErrors caps the detail kept per phase.
const maxPhaseErrors = 20

// Phase is one named consistency check and the problems it found.
type Phase struct {
	Name   string   `json:"name"`
	Errors []string `json:"errors,omitempty"`
	// Suppressed counts errors beyond maxPhaseErrors.
	Suppressed int `json:"suppressed,omitempty"`
}

func (p *Phase) errorf(format string, args ...any) {
	if len(p.Errors) >= maxPhaseErrors {
		p.Suppressed++
		return
	}
	p.Errors = append(p.Errors, fmt.Sprintf(format, args...))
}

// Passed reports whether the phase found no problems.
func (p *Phase) Passed() bool { return len(p.Errors) == 0 }

// Report is the outcome of Verify.
type Report struct {
	Phases []*Phase `json:"phases"`
}

// Passed reports whether every phase passed.
func (r *Report) Passed() bool {
	for _, p := range r.Phases {
		if !p.Passed() {
			return false
		}
	}
	return true
}

// Verify re-checks the invariants each stage promises against a finished
// run. It never mutates the result.
func Verify(result *domain.RunResult, cat *catalog.Catalog) *Report {
	return &Report{Phases: []*Phase{
		verifyHarmonize(result),
		verifyDaily(result),
		verifyAnnual(result, cat),
		verifyPivot(result),
		verifyRanking(result),
	}}
}

// ── Phase 1: harmonize accounting ──

func verifyHarmonize(r *domain.RunResult) *Phase {
	p := &Phase{Name: "Harmonize accounting"}
	rep := r.Report
	if rep.Input != r.CleanRows {
		p.errorf("harmonize input %d, clean rows %d", rep.Input, r.CleanRows)
	}
	if rep.Output != len(r.Tidy) {
		p.errorf("harmonize output %d, tidy rows %d", rep.Output, len(r.Tidy))
	}
	if got := rep.Output + rep.IncompatibleUnits + rep.UnparseableDates; got != rep.Input {
		p.errorf("kept %d + incompatible %d + bad dates %d != input %d",
			rep.Output, rep.IncompatibleUnits, rep.UnparseableDates, rep.Input)
	}
	return p
}

// ── Phase 2: daily uniqueness ──

type dayKey struct {
	date      time.Time
	parameter string
	site      string
}

func verifyDaily(r *domain.RunResult) *Phase {
	p := &Phase{Name: "Daily key uniqueness"}

	seen := make(map[dayKey]bool, len(r.Daily))
	for _, d := range r.Daily {
		k := dayKey{d.Date, d.Parameter, d.Site}
		if seen[k] {
			p.errorf("duplicate daily row %s %s %s", d.Date.Format(domain.DateLayout), d.Parameter, d.Site)
		}
		seen[k] = true
	}

	// Every tidy row must fall in exactly one daily group.
	groups := make(map[dayKey]bool, len(r.Daily))
	for _, t := range r.Tidy {
		k := dayKey{t.Date, t.Parameter, t.Site}
		groups[k] = true
		if !seen[k] {
			p.errorf("tidy row %s %s %s has no daily average", t.Date.Format(domain.DateLayout), t.Parameter, t.Site)
		}
	}
	if len(groups) != len(r.Daily) {
		p.errorf("tidy rows form %d groups, daily table has %d rows", len(groups), len(r.Daily))
	}
	return p
}

// ── Phase 3: annual uniqueness, denylist, variance ──

type yearKey struct {
	site      string
	year      int
	parameter string
}

func verifyAnnual(r *domain.RunResult, cat *catalog.Catalog) *Phase {
	p := &Phase{Name: "Annual summary integrity"}
	excluded := cat.ExcludedSet()

	seen := make(map[yearKey]bool, len(r.Annual))
	for _, a := range r.Annual {
		k := yearKey{a.Site, a.Year, a.Parameter}
		if seen[k] {
			p.errorf("duplicate annual row %s %d %s", a.Site, a.Year, a.Parameter)
		}
		seen[k] = true

		if _, bad := excluded[a.Site]; bad {
			p.errorf("denylisted site %s present in %d %s", a.Site, a.Year, a.Parameter)
		}
		if a.N < 2 && a.Variance != nil {
			p.errorf("%s %d %s: variance defined from %d value(s)", a.Site, a.Year, a.Parameter, a.N)
		}
		if a.N >= 2 && a.Variance == nil {
			p.errorf("%s %d %s: variance missing with %d values", a.Site, a.Year, a.Parameter, a.N)
		}
		if a.N == 0 && a.Mean != nil {
			p.errorf("%s %d %s: mean defined with no values", a.Site, a.Year, a.Parameter)
		}
	}
	return p
}

// ── Phase 4: pivot round trip ──

func verifyPivot(r *domain.RunResult) *Phase {
	p := &Phase{Name: "Pivot round trip"}
	if diff := cmp.Diff(domain.Means(r.Annual), domain.Melt(r.Wide), cmpopts.EquateEmpty()); diff != "" {
		p.errorf("melt(pivot(annual)) differs from annual means (-annual +melted):\n%s", diff)
	}
	for _, row := range r.Wide.Rows {
		for _, name := range r.Wide.Derived {
			if _, ok := row.Derived[name]; !ok {
				p.errorf("%s %d: derived column %s missing", row.Site, row.Year, name)
			}
		}
	}
	return p
}

// ── Phase 5: ranking order ──

func verifyRanking(r *domain.RunResult) *Phase {
	p := &Phase{Name: "Model ranking"}
	fitted := 0
	for _, g := range r.Models {
		if g.Fit != nil {
			fitted++
		}
		if g.Skipped && g.Fit != nil {
			p.errorf("%s %s: skipped partition carries a fit", g.Key.Parameter, g.Key.Site)
		}
	}
	if fitted != len(r.Ranking) {
		p.errorf("%d fitted partitions, %d ranked", fitted, len(r.Ranking))
	}

	seenUndefined := false
	for i, f := range r.Ranking {
		if f.AdjRSquared == nil {
			seenUndefined = true
			continue
		}
		if seenUndefined {
			p.errorf("rank %d (%s %s): defined adjusted R² after an undefined one", i+1, f.Parameter, f.Site)
			continue
		}
		if i > 0 && r.Ranking[i-1].AdjRSquared != nil && *r.Ranking[i-1].AdjRSquared < *f.AdjRSquared {
			p.errorf("rank %d (%s %s): adjusted R² increases", i+1, f.Parameter, f.Site)
		}
	}
	return p
}
