package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"SentimentScanner/internal/domain"
	"SentimentScanner/internal/extract"
	"SentimentScanner/internal/ports"
	"SentimentScanner/internal/query"
	"SentimentScanner/internal/tier"
)

// Dispatcher runs the per-item refresh state machine over a bounded worker
// pool. Each item walks Selected -> Querying -> {Extracted | Exhausted} ->
// Recorded; candidates are tried strictly in order and the first extractable
// result wins. Items never block each other: a worker slot frees as soon as
// its item reaches Recorded.
type Dispatcher struct {
	provider    ports.SearchProvider
	recorder    *Recorder
	logger      *slog.Logger
	concurrency int
}

// NewDispatcher builds a pool of the given width (defaults to 8).
func NewDispatcher(provider ports.SearchProvider, recorder *Recorder, concurrency int, logger *slog.Logger) *Dispatcher {
	if concurrency < 1 {
		concurrency = 8
	}
	return &Dispatcher{
		provider:    provider,
		recorder:    recorder,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Process refreshes every item in the batch, feeding outcomes into the
// tally. Cancellation is cooperative: once ctx is done no new item is
// admitted, but in-flight items run to completion.
func (d *Dispatcher) Process(ctx context.Context, items []domain.CatalogItem, now time.Time, tally *Tally) {
	jobs := make(chan domain.CatalogItem)

	var wg sync.WaitGroup
	for i := 0; i < d.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				d.refreshOne(ctx, item, now, tally)
			}
		}()
	}

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		jobs <- item
	}
	close(jobs)
	wg.Wait()
}

// refreshOne drives a single item through the state machine.
func (d *Dispatcher) refreshOne(ctx context.Context, item domain.CatalogItem, now time.Time, tally *Tally) {
	candidates := query.Candidates(item.Title, item.ReleaseYear(), item.Kind)

	var percent *int
	var rule string
	for _, candidate := range candidates {
		content, err := d.provider.FetchContent(ctx, candidate)
		if err != nil {
			// Non-fatal for the item; advance to the next candidate.
			d.debug("candidate failed", "item", item.ExternalID, "query", candidate, "error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if res, ok := extract.Sentiment(content); ok {
			v := res.Percent
			percent = &v
			rule = res.Rule
			break
		}
		d.debug("no sentiment in content", "item", item.ExternalID, "query", candidate)
	}

	itemTier := tier.ClassifyItem(item.ReleaseDate, item.VoteCount, now)
	if item.Tier != nil {
		itemTier = *item.Tier
	}

	outcome, err := d.recorder.Record(ctx, item, percent, itemTier, now)
	if err != nil {
		// A store write error fails the item, never the run.
		d.warn("record failed", "item", item.ExternalID, "error", err)
	}
	tally.Add(outcome)

	if percent != nil {
		d.debug("item refreshed", "item", item.ExternalID, "value", *percent, "rule", rule, "outcome", outcome)
	}
}

func (d *Dispatcher) debug(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}

func (d *Dispatcher) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}
