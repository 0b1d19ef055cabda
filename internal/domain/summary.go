package domain

import "time"

// SourceStats counts per-article outcomes for one source during a run. OffTaxonomy counts
// persisted records whose category is outside the catalog.
type SourceStats struct {
	Source               string
	Fetched              int
	Invalid              int
	Deduped              int
	GatedOut             int
	ClassificationFailed int
	OffTaxonomy          int
	Persisted            int
	SinkFailed           int
	FetchError           string
}

// RunSummary is reported at the end of every pipeline run.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Sources    []SourceStats
	Records    []Record
}

// Totals folds per-source counters into a single row.
func (s RunSummary) Totals() SourceStats {
	total := SourceStats{Source: "total"}
	for _, st := range s.Sources {
		total.Fetched += st.Fetched
		total.Invalid += st.Invalid
		total.Deduped += st.Deduped
		total.GatedOut += st.GatedOut
		total.ClassificationFailed += st.ClassificationFailed
		total.OffTaxonomy += st.OffTaxonomy
		total.Persisted += st.Persisted
		total.SinkFailed += st.SinkFailed
	}
	return total
}
