package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"SentimentScanner/internal/domain"
	"SentimentScanner/internal/ports"
	"SentimentScanner/internal/tier"
)

var errUnavailable = ports.ErrContentUnavailable

var testNow = time.Date(2026, time.February, 10, 6, 0, 0, 0, time.UTC)

func dateMonthsAgo(months int) *time.Time {
	d := testNow.AddDate(0, -months, 0)
	return &d
}

func intPtr(v int) *int { return &v }

func newPipeline(store *fakeStore, provider *fakeProvider, dailyCap int) *Orchestrator {
	selector := NewSelector(store, nil)
	recorder := NewRecorder(store, nil)
	dispatcher := NewDispatcher(provider, recorder, 4, nil)
	orch := NewOrchestrator(store, selector, dispatcher, nil, 0.001, dailyCap, nil)
	orch.now = func() time.Time { return testNow }
	return orch
}

// Scenario A: no release date, zero votes, no prior sentiment; every
// candidate fails -> recorded as failed, sentiment stays absent.
func TestRunScenarioAllCandidatesFail(t *testing.T) {
	t.Parallel()

	item := domain.CatalogItem{ID: 1, ExternalID: "ext-1", Title: "Obscure Ruin", Kind: domain.KindFilm}
	store := newFakeStore(item)
	provider := &fakeProvider{}

	summary, err := newPipeline(store, provider, 10).RunNow(context.Background(), 10, false)
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}

	if summary.Processed != 1 || summary.Failed != 1 || summary.Updated != 0 {
		t.Fatalf("unexpected counters: %+v", summary)
	}
	if got := store.item(1); got.Sentiment != nil {
		t.Fatalf("failed item must keep sentiment absent, got %d", *got.Sentiment)
	}
	if store.updateCount() != 0 {
		t.Fatalf("failed item must not be written, got %d writes", store.updateCount())
	}
	if len(provider.queriesFor("Obscure Ruin")) == 0 {
		t.Fatalf("expected candidate queries for the item")
	}
}

// Scenario B: fresh item, first query yields 87% -> updated, previous nil.
func TestRunScenarioFirstQuerySucceeds(t *testing.T) {
	t.Parallel()

	item := domain.CatalogItem{
		ID: 2, ExternalID: "ext-2", Title: "New Release", Kind: domain.KindFilm,
		ReleaseDate: dateMonthsAgo(3), Popularity: 50, VoteCount: 200,
	}
	store := newFakeStore(item)
	provider := &fakeProvider{content: map[string]string{
		"New Release 2025 movie": "reviews say 87% liked this movie",
	}}

	summary, err := newPipeline(store, provider, 10).RunNow(context.Background(), 10, false)
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}

	if summary.Updated != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected counters: %+v", summary)
	}
	got := store.item(2)
	if got.Sentiment == nil || *got.Sentiment != 87 {
		t.Fatalf("expected sentiment 87, got %v", got.Sentiment)
	}
	if got.PreviousSentiment != nil {
		t.Fatalf("first-ever value must have nil previous, got %d", *got.PreviousSentiment)
	}
	if got.Tier == nil || *got.Tier != tier.Biweekly {
		t.Fatalf("3-month-old item should be recorded at tier 1, got %v", got.Tier)
	}
	if got.LastRefreshed == nil || !got.LastRefreshed.Equal(testNow) {
		t.Fatalf("timestamp not stamped: %v", got.LastRefreshed)
	}
	// First candidate hit; no fallback should have been tried.
	if n := len(provider.queriesFor("New Release")); n != 1 {
		t.Fatalf("expected exactly 1 query, got %d", n)
	}
}

// Scenario C: stored 92, refresh yields 92 -> unchanged, timestamp advances,
// unchanged counter increments, updated does not.
func TestRunScenarioUnchangedValue(t *testing.T) {
	t.Parallel()

	// 30 months old puts the item in the quarterly tier, so the last
	// refresh must be older than its 91-day cadence for it to be due.
	old := testNow.AddDate(0, -4, 0)
	item := domain.CatalogItem{
		ID: 3, ExternalID: "ext-3", Title: "Steady Classic", Kind: domain.KindFilm,
		ReleaseDate: dateMonthsAgo(30), VoteCount: 900,
		Sentiment: intPtr(92), LastRefreshed: &old,
	}
	store := newFakeStore(item)
	provider := &fakeProvider{content: map[string]string{
		"Steady Classic 2023 movie": "92% liked this movie",
	}}

	summary, err := newPipeline(store, provider, 10).RunNow(context.Background(), 10, false)
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}

	if summary.Unchanged != 1 || summary.Updated != 0 {
		t.Fatalf("unexpected counters: %+v", summary)
	}
	got := store.item(3)
	if got.Sentiment == nil || *got.Sentiment != 92 {
		t.Fatalf("sentiment must stay 92, got %v", got.Sentiment)
	}
	if got.LastRefreshed == nil || !got.LastRefreshed.Equal(testNow) {
		t.Fatalf("unchanged outcome must still advance the timestamp")
	}
}

func TestRunStoreWriteErrorFailsItemNotRun(t *testing.T) {
	t.Parallel()

	a := domain.CatalogItem{
		ID: 4, ExternalID: "ext-4", Title: "Writable", Kind: domain.KindFilm,
		ReleaseDate: dateMonthsAgo(3), Popularity: 10,
	}
	store := newFakeStore(a)
	store.updateErr = errors.New("disk on fire")
	provider := &fakeProvider{content: map[string]string{
		"Writable 2025 movie": "80% liked this movie",
	}}

	summary, err := newPipeline(store, provider, 10).RunNow(context.Background(), 10, false)
	if err != nil {
		t.Fatalf("a store write error must not abort the run: %v", err)
	}
	if summary.Failed != 1 || summary.Processed != 1 {
		t.Fatalf("write-errored item should count as failed: %+v", summary)
	}
	if len(store.summaries) != 1 {
		t.Fatalf("run summary must still be recorded")
	}
}

func TestRunFatalSelectionAbortsWithSummary(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.listErr = errors.New("store unreachable")
	provider := &fakeProvider{}

	summary, err := newPipeline(store, provider, 10).RunNow(context.Background(), 10, false)
	if err == nil {
		t.Fatalf("expected fatal selection error")
	}
	if summary.ErrorDetail == "" {
		t.Fatalf("summary must carry the error detail")
	}
	if len(provider.queries) != 0 {
		t.Fatalf("no items may be processed after fatal selection")
	}
	recorded, ok := store.summaries[testNow.UTC().Truncate(24*time.Hour).Format("2006-01-02")]
	if !ok {
		t.Fatalf("aborted run must still upsert its summary")
	}
	if recorded.Processed != 0 {
		t.Fatalf("aborted run processed nothing, got %d", recorded.Processed)
	}
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	t.Parallel()

	item := domain.CatalogItem{
		ID: 5, ExternalID: "ext-5", Title: "Untouched", Kind: domain.KindSeries,
		ReleaseDate: dateMonthsAgo(12), Popularity: 5,
	}
	store := newFakeStore(item)
	provider := &fakeProvider{}

	summary, err := newPipeline(store, provider, 10).RunNow(context.Background(), 10, true)
	if err != nil {
		t.Fatalf("RunNow dry: %v", err)
	}

	if !summary.DryRun {
		t.Fatalf("summary must be flagged as dry run")
	}
	if summary.Processed != 1 {
		t.Fatalf("dry run should report 1 due item, got %d", summary.Processed)
	}
	if summary.EstimatedCost <= 0 {
		t.Fatalf("dry run must project a cost")
	}
	if len(provider.queries) != 0 {
		t.Fatalf("dry run must not contact the provider")
	}
	if store.updateCount() != 0 || len(store.summaries) != 0 {
		t.Fatalf("dry run must not write anything")
	}
}

func TestRunRespectsDailyCap(t *testing.T) {
	t.Parallel()

	var due []domain.CatalogItem
	for i := int64(1); i <= 6; i++ {
		due = append(due, domain.CatalogItem{
			ID: i, ExternalID: "cap", Title: "Capped", Kind: domain.KindFilm,
			ReleaseDate: dateMonthsAgo(3), Popularity: float64(i),
		})
	}
	store := newFakeStore(due...)
	provider := &fakeProvider{}

	summary, err := newPipeline(store, provider, 3).RunNow(context.Background(), 0, false)
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	// Items past the cap are left due for the next run, not counted failed.
	if summary.Processed != 3 {
		t.Fatalf("cap of 3 must admit 3 items, processed %d", summary.Processed)
	}
}

func TestRunSameDateOverwritesSummary(t *testing.T) {
	t.Parallel()

	item := domain.CatalogItem{
		ID: 6, ExternalID: "ext-6", Title: "Replay", Kind: domain.KindFilm,
		ReleaseDate: dateMonthsAgo(3),
	}
	store := newFakeStore(item)
	provider := &fakeProvider{content: map[string]string{
		"Replay 2025 movie": "70% liked this movie",
	}}

	pipeline := newPipeline(store, provider, 10)
	if _, err := pipeline.RunNow(context.Background(), 10, false); err != nil {
		t.Fatalf("first run: %v", err)
	}
	// A second process invocation on the same date: the item is no longer
	// due, so the overwritten summary reports zero processed rather than
	// accumulating counts from the first run.
	if _, err := pipeline.RunNow(context.Background(), 10, false); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(store.summaries) != 1 {
		t.Fatalf("expected one summary row per date, got %d", len(store.summaries))
	}
	final := store.summaries[testNow.UTC().Truncate(24*time.Hour).Format("2006-01-02")]
	if final.Updated != 0 || final.Processed != 0 {
		t.Fatalf("rerun summary must overwrite, not accumulate: %+v", final)
	}
}
