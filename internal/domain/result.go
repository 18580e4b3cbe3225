package domain

import "time"

// RunResult is everything one transform run produces from a snapshot.
type RunResult struct {
	RunID      string          `json:"run_id"`
	SnapshotID string          `json:"snapshot_id"`
	CreatedAt  time.Time       `json:"created_at"`
	Sites      []Site          `json:"sites"`
	Report     HarmonizeReport `json:"harmonize"`
	CleanRows  int             `json:"clean_rows"`

	Tidy    []TidyObservation        `json:"-"`
	Daily   []DailyAverage           `json:"-"`
	Annual  []AnnualSummary          `json:"annual"`
	Wide    WideTable                `json:"wide"`
	Models  map[ModelKey]*GroupModel `json:"-"`
	Ranking []FitStats               `json:"ranking"`
}

// Skipped lists the partitions that were too short to fit, ordered by
// parameter then site.
func (r *RunResult) Skipped() []GroupModel {
	var out []GroupModel
	for _, g := range r.Models {
		if g.Skipped {
			out = append(out, *g)
		}
	}
	sortGroups(out)
	return out
}
