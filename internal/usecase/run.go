package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"SentimentScanner/internal/domain"
	"SentimentScanner/internal/ports"
)

// estimatedRequestsPerItem assumes one submit plus one fetch per item when
// the first candidate succeeds; dry-run cost projections use it.
const estimatedRequestsPerItem = 2

// Orchestrator drives one complete refresh run: selection under the daily
// cap, dispatching, and the idempotent per-date summary. Only one run may
// execute at a time.
type Orchestrator struct {
	store          ports.CatalogStore
	selector       *Selector
	dispatcher     *Dispatcher
	logger         *slog.Logger
	costPerRequest float64
	defaultCap     int

	requests *atomic.Int64
	running  sync.Mutex

	now func() time.Time
}

// NewOrchestrator wires the run pipeline. The requests counter is shared
// with the search client's per-call hook, so the summary's request count
// covers retries too; pass nil when no client is counting.
func NewOrchestrator(store ports.CatalogStore, selector *Selector, dispatcher *Dispatcher,
	requests *atomic.Int64, costPerRequest float64, defaultCap int, logger *slog.Logger) *Orchestrator {
	if defaultCap < 1 {
		defaultCap = 1000
	}
	if requests == nil {
		requests = new(atomic.Int64)
	}
	return &Orchestrator{
		store:          store,
		selector:       selector,
		dispatcher:     dispatcher,
		logger:         logger,
		costPerRequest: costPerRequest,
		defaultCap:     defaultCap,
		requests:       requests,
		now:            time.Now,
	}
}

// RunNow executes one refresh run and returns its finalized summary.
// limit <= 0 falls back to the configured daily cap. Dry runs estimate
// capacity and cost without contacting the provider or writing any row.
func (o *Orchestrator) RunNow(ctx context.Context, limit int, dryRun bool) (domain.RunSummary, error) {
	if !o.running.TryLock() {
		return domain.RunSummary{}, ports.ErrRunInProgress
	}
	defer o.running.Unlock()

	if limit <= 0 {
		limit = o.defaultCap
	}

	started := o.now()
	summary := domain.RunSummary{
		Date:      started.UTC().Truncate(24 * time.Hour),
		StartedAt: started,
		DryRun:    dryRun,
	}

	items, err := o.selector.SelectDue(ctx, limit, started, dryRun)
	if err != nil {
		// Store unreachable at the listing step aborts the whole run.
		summary.FinishedAt = o.now()
		summary.ErrorDetail = err.Error()
		if !dryRun {
			if upsertErr := o.store.UpsertRunSummary(ctx, summary); upsertErr != nil {
				o.warn("summary upsert after aborted selection failed", "error", upsertErr)
			}
		}
		return summary, fmt.Errorf("select due items: %w", err)
	}

	// Tier distribution is the run-scoped cache: fetched once per run for
	// the report, never held across runs.
	distribution, err := o.store.GetTierDistribution(ctx)
	if err != nil {
		o.warn("tier distribution unavailable", "error", err)
		distribution = nil
	}

	if dryRun {
		summary.FinishedAt = o.now()
		summary.Processed = len(items)
		summary.Requests = len(items) * estimatedRequestsPerItem
		summary.EstimatedCost = float64(summary.Requests) * o.costPerRequest
		o.info("dry run estimated", "due", len(items), "projected_cost", summary.EstimatedCost,
			"tier_distribution", distribution)
		return summary, nil
	}

	before := o.requests.Load()
	tally := &Tally{}
	o.dispatcher.Process(ctx, items, started, tally)

	summary.FinishedAt = o.now()
	summary.Processed, summary.Updated, summary.Unchanged, summary.Failed = tally.Snapshot()
	summary.Requests = int(o.requests.Load() - before)
	summary.EstimatedCost = float64(summary.Requests) * o.costPerRequest

	if err := o.store.UpsertRunSummary(ctx, summary); err != nil {
		return summary, fmt.Errorf("upsert run summary: %w", err)
	}

	o.info("run complete",
		"date", summary.Date.Format("2006-01-02"),
		"processed", summary.Processed,
		"updated", summary.Updated,
		"unchanged", summary.Unchanged,
		"failed", summary.Failed,
		"requests", summary.Requests,
		"cost", summary.EstimatedCost,
		"duration", summary.Duration(),
		"tier_distribution", distribution)

	return summary, nil
}

func (o *Orchestrator) info(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Info(msg, args...)
	}
}

func (o *Orchestrator) warn(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Warn(msg, args...)
	}
}
