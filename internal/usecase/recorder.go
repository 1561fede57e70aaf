package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"SentimentScanner/internal/domain"
	"SentimentScanner/internal/ports"
)

// Recorder applies refresh results to the catalog store and classifies each
// item's outcome for the run tally.
type Recorder struct {
	store  ports.CatalogStore
	logger *slog.Logger
}

// NewRecorder wires the catalog store.
func NewRecorder(store ports.CatalogStore, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Record persists one item's result. A nil percentage classifies the item
// as failed and leaves the stored row untouched, so the item stays due for
// the next scheduled run. Equal values stamp the timestamp without touching
// the stored sentiment; differing values write the new one and keep the old
// as previous_sentiment.
func (r *Recorder) Record(ctx context.Context, item domain.CatalogItem, percent *int, itemTier int, now time.Time) (domain.Outcome, error) {
	if percent == nil {
		r.debug("refresh failed", "item", item.ExternalID)
		return domain.OutcomeFailed, nil
	}

	upd := domain.SentimentUpdate{
		ItemID:      item.ID,
		Tier:        itemTier,
		RefreshedAt: now,
	}

	outcome := domain.OutcomeUpdated
	if item.Sentiment != nil && *item.Sentiment == *percent {
		outcome = domain.OutcomeUnchanged
	} else {
		upd.NewValue = percent
		upd.PreviousValue = item.Sentiment
	}

	if err := r.store.UpdateSentiment(ctx, upd); err != nil {
		return domain.OutcomeFailed, fmt.Errorf("record item %s: %w", item.ExternalID, err)
	}

	r.debug("refresh recorded", "item", item.ExternalID, "outcome", outcome, "value", *percent)
	return outcome, nil
}

func (r *Recorder) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

// Tally accumulates per-run counters across dispatcher workers.
type Tally struct {
	mu        sync.Mutex
	processed int
	updated   int
	unchanged int
	failed    int
}

// Add counts one finished item under its outcome.
func (t *Tally) Add(outcome domain.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processed++
	switch outcome {
	case domain.OutcomeUpdated:
		t.updated++
	case domain.OutcomeUnchanged:
		t.unchanged++
	default:
		t.failed++
	}
}

// Snapshot copies the counters into a summary.
func (t *Tally) Snapshot() (processed, updated, unchanged, failed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.processed, t.updated, t.unchanged, t.failed
}
