package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"SentimentScanner/internal/domain"
)

// fakeStore is an in-memory CatalogStore for pipeline tests.
type fakeStore struct {
	mu        sync.Mutex
	due       []domain.CatalogItem
	listErr   error
	updateErr error
	updates   []domain.SentimentUpdate
	items     map[int64]domain.CatalogItem
	summaries map[string]domain.RunSummary
	tiers     map[int]int
}

func newFakeStore(due ...domain.CatalogItem) *fakeStore {
	items := make(map[int64]domain.CatalogItem, len(due))
	for _, item := range due {
		items[item.ID] = item
	}
	return &fakeStore{
		due:       due,
		items:     items,
		summaries: map[string]domain.RunSummary{},
		tiers:     map[int]int{},
	}
}

func (f *fakeStore) ListDueItems(_ context.Context, limit int, _ time.Time) ([]domain.CatalogItem, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.CatalogItem, 0, len(f.due))
	for _, d := range f.due {
		out = append(out, f.items[d.ID])
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) UpdateSentiment(_ context.Context, upd domain.SentimentUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, upd)
	item := f.items[upd.ItemID]
	item.Tier = &upd.Tier
	ts := upd.RefreshedAt
	item.LastRefreshed = &ts
	if upd.NewValue != nil {
		item.PreviousSentiment = upd.PreviousValue
		v := *upd.NewValue
		item.Sentiment = &v
	}
	f.items[upd.ItemID] = item
	return nil
}

func (f *fakeStore) UpsertRunSummary(_ context.Context, summary domain.RunSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries[summary.Date.Format("2006-01-02")] = summary
	return nil
}

func (f *fakeStore) GetTierDistribution(_ context.Context) (map[int]int, error) {
	return f.tiers, nil
}

func (f *fakeStore) ListRunSummaries(_ context.Context, limit int) ([]domain.RunSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.RunSummary, 0, len(f.summaries))
	for _, s := range f.summaries {
		out = append(out, s)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) item(id int64) domain.CatalogItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id]
}

func (f *fakeStore) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

// fakeProvider resolves queries against a canned map; unknown queries fail
// like a rejected submission.
type fakeProvider struct {
	mu      sync.Mutex
	content map[string]string
	err     error
	queries []string
}

func (f *fakeProvider) FetchContent(_ context.Context, query string) (string, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if content, ok := f.content[query]; ok {
		return content, nil
	}
	return "", errUnavailable
}

func (f *fakeProvider) queriesFor(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, q := range f.queries {
		if strings.HasPrefix(q, prefix) {
			out = append(out, q)
		}
	}
	return out
}
