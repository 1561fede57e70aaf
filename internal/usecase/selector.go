package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"SentimentScanner/internal/domain"
	"SentimentScanner/internal/ports"
	"SentimentScanner/internal/tier"
)

// Selector computes which catalog items are due now. Selection is strictly
// read-only; tiers are reclassified lazily in memory here and persisted only
// when the recorder eventually writes the item.
type Selector struct {
	store  ports.CatalogStore
	logger *slog.Logger
}

// NewSelector wires the catalog store.
func NewSelector(store ports.CatalogStore, logger *slog.Logger) *Selector {
	return &Selector{store: store, logger: logger}
}

// SelectDue returns at most limit due items ordered by tier ascending then
// popularity descending. The dryRun flag exists for capacity estimation; it
// changes nothing here because selection never mutates state either way.
func (s *Selector) SelectDue(ctx context.Context, limit int, now time.Time, dryRun bool) ([]domain.CatalogItem, error) {
	if limit <= 0 {
		return nil, nil
	}

	// Overfetch so items that reclassification promotes out of the batch
	// (aged into tier 5, or no longer due under a slower tier) still leave a
	// full cap's worth behind.
	candidates, err := s.store.ListDueItems(ctx, limit*2, now)
	if err != nil {
		return nil, fmt.Errorf("list due items: %w", err)
	}

	selected := make([]domain.CatalogItem, 0, len(candidates))
	for _, item := range candidates {
		current := tier.ClassifyItem(item.ReleaseDate, item.VoteCount, now)
		if current == tier.Never {
			continue
		}
		if item.LastRefreshed != nil && now.Sub(*item.LastRefreshed) < tier.Cadence(current) {
			continue
		}
		t := current
		item.Tier = &t
		selected = append(selected, item)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		if *selected[i].Tier != *selected[j].Tier {
			return *selected[i].Tier < *selected[j].Tier
		}
		return selected[i].Popularity > selected[j].Popularity
	})

	if len(selected) > limit {
		selected = selected[:limit]
	}

	if s.logger != nil {
		s.logger.Debug("selection complete",
			"candidates", len(candidates), "selected", len(selected), "dry_run", dryRun)
	}

	return selected, nil
}
