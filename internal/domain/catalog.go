package domain

import "time"

// ItemKind distinguishes feature films from episodic series.
type ItemKind string

const (
	KindFilm   ItemKind = "film"
	KindSeries ItemKind = "series"
)

// Noun returns the search-facing noun for the kind ("movie" / "tv show").
func (k ItemKind) Noun() string {
	if k == KindSeries {
		return "tv show"
	}
	return "movie"
}

// CatalogItem is a film or series tracked in the catalog store. The refresh
// pipeline only ever mutates Sentiment, PreviousSentiment, Tier and
// LastRefreshed; everything else is owned by the upstream metadata ingester.
type CatalogItem struct {
	ID                int64
	ExternalID        string
	Title             string
	Kind              ItemKind
	ReleaseDate       *time.Time
	Popularity        float64
	VoteCount         int64
	Sentiment         *int
	PreviousSentiment *int
	Tier              *int
	LastRefreshed     *time.Time
}

// ReleaseYear returns the release year, or nil when the date is unknown.
func (c CatalogItem) ReleaseYear() *int {
	if c.ReleaseDate == nil {
		return nil
	}
	y := c.ReleaseDate.Year()
	return &y
}

// Outcome classifies how one item's refresh ended.
type Outcome string

const (
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFailed    Outcome = "failed"
)

// SentimentUpdate is the single write the recorder applies to an item.
// A nil NewValue means an unchanged-touch: the timestamp and tier are
// stamped but the stored sentiment is left alone.
type SentimentUpdate struct {
	ItemID        int64
	NewValue      *int
	PreviousValue *int
	Tier          int
	RefreshedAt   time.Time
}

// RunSummary is one per-calendar-date record of a refresh run. Reruns on the
// same date overwrite the previous record wholesale, so a crashed run can be
// re-executed safely without double-counting.
type RunSummary struct {
	Date          time.Time
	StartedAt     time.Time
	FinishedAt    time.Time
	Processed     int
	Updated       int
	Unchanged     int
	Failed        int
	Requests      int
	EstimatedCost float64
	ErrorDetail   string
	DryRun        bool
}

// Duration reports the run's wall-clock time.
func (s RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// ExtractionResult is the transient outcome of running the sentiment
// extractor over one piece of content; it is folded into the item update and
// never persisted on its own.
type ExtractionResult struct {
	Percent int
	Rule    string
	Matched string
}
