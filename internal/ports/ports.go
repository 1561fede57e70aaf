package ports

import (
	"context"
	"errors"
	"time"

	"SentimentScanner/internal/domain"
)

// ErrContentUnavailable signals that the search provider could not deliver
// content for a query: the submission was rejected, the handle went missing,
// or result polling ran out of attempts. The dispatcher reacts by advancing
// to the next query candidate.
var ErrContentUnavailable = errors.New("search content unavailable")

// ErrRunInProgress is returned when a run is triggered while another one is
// still executing.
var ErrRunInProgress = errors.New("refresh run already in progress")

// CatalogStore is the relational collaborator owning catalog items and run
// summaries. Item-level writes are atomic; no multi-item transactions are
// required by this core.
type CatalogStore interface {
	// ListDueItems returns at most limit items whose tier cadence window has
	// elapsed, ordered by tier ascending then popularity descending.
	// Read-only.
	ListDueItems(ctx context.Context, limit int, now time.Time) ([]domain.CatalogItem, error)

	// UpdateSentiment applies one item's refresh result; see
	// domain.SentimentUpdate for the unchanged-touch convention.
	UpdateSentiment(ctx context.Context, upd domain.SentimentUpdate) error

	// UpsertRunSummary stores the summary keyed by calendar date, replacing
	// any earlier record for the same date.
	UpsertRunSummary(ctx context.Context, summary domain.RunSummary) error

	// GetTierDistribution returns item counts per refresh tier.
	GetTierDistribution(ctx context.Context) (map[int]int, error)

	// ListRunSummaries returns recent summaries, newest first.
	ListRunSummaries(ctx context.Context, limit int) ([]domain.RunSummary, error)
}

// SearchProvider hides the external provider's two-phase task protocol
// behind a single blocking call. Throttling is absorbed internally with
// backoff; a returned error is final for that query.
type SearchProvider interface {
	FetchContent(ctx context.Context, query string) (string, error)
}

// Scheduler triggers the recurring refresh job.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
