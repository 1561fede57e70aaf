package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"

	"SentimentScanner/internal/domain"
	"SentimentScanner/internal/ports"
	"SentimentScanner/internal/tier"
)

// PostgresStore is the catalog collaborator backed by Postgres. Item writes
// are single-row and atomic; run summaries are keyed by calendar date.
type PostgresStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.CatalogStore = (*PostgresStore)(nil)

// Open connects to Postgres through the pgx database/sql driver.
func Open(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewPostgresStore(db), nil
}

// NewPostgresStore wires an existing sql.DB.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Migrate creates the catalog and run tables when absent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS catalog_items (
			id                 BIGSERIAL PRIMARY KEY,
			external_id        TEXT NOT NULL UNIQUE,
			title              TEXT NOT NULL,
			kind               TEXT NOT NULL,
			release_date       DATE,
			popularity         DOUBLE PRECISION NOT NULL DEFAULT 0,
			vote_count         BIGINT NOT NULL DEFAULT 0,
			sentiment          INTEGER CHECK (sentiment BETWEEN 0 AND 100),
			previous_sentiment INTEGER,
			tier               INTEGER CHECK (tier BETWEEN 1 AND 5),
			last_refreshed     TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS refresh_runs (
			run_date       DATE PRIMARY KEY,
			started_at     TIMESTAMPTZ NOT NULL,
			finished_at    TIMESTAMPTZ NOT NULL,
			processed      INTEGER NOT NULL,
			updated        INTEGER NOT NULL,
			unchanged      INTEGER NOT NULL,
			failed         INTEGER NOT NULL,
			requests       INTEGER NOT NULL,
			estimated_cost DOUBLE PRECISION NOT NULL,
			error_detail   TEXT NOT NULL DEFAULT ''
		)`,
	}

	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Ping verifies connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// dueCadence expresses the per-tier cadence window inside the WHERE clause.
const dueCadence = `(CASE tier
	WHEN 1 THEN INTERVAL '14 days'
	WHEN 2 THEN INTERVAL '30 days'
	WHEN 3 THEN INTERVAL '91 days'
	ELSE INTERVAL '182 days'
END)`

// ListDueItems returns at most limit items whose cadence window has elapsed,
// tier ascending then popularity descending. Unclassified items and items
// never refreshed count as due; tier 5 is excluded outright.
func (s *PostgresStore) ListDueItems(ctx context.Context, limit int, now time.Time) ([]domain.CatalogItem, error) {
	q := s.builder.
		Select("id", "external_id", "title", "kind", "release_date", "popularity",
			"vote_count", "sentiment", "previous_sentiment", "tier", "last_refreshed").
		From("catalog_items").
		Where(sq.Or{
			sq.Eq{"tier": nil},
			sq.And{
				sq.Lt{"tier": tier.Never},
				sq.Or{
					sq.Eq{"last_refreshed": nil},
					sq.Expr("last_refreshed <= ?::timestamptz - "+dueCadence, now),
				},
			},
		}).
		OrderBy("tier ASC NULLS FIRST", "popularity DESC").
		Limit(uint64(limit))

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build due query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query due items: %w", err)
	}
	defer rows.Close()

	var items []domain.CatalogItem
	for rows.Next() {
		var (
			item          domain.CatalogItem
			kind          string
			releaseDate   sql.NullTime
			sentiment     sql.NullInt64
			prevSentiment sql.NullInt64
			tierValue     sql.NullInt64
			lastRefreshed sql.NullTime
		)
		if err := rows.Scan(&item.ID, &item.ExternalID, &item.Title, &kind, &releaseDate,
			&item.Popularity, &item.VoteCount, &sentiment, &prevSentiment, &tierValue, &lastRefreshed); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		item.Kind = domain.ItemKind(kind)
		if releaseDate.Valid {
			d := releaseDate.Time
			item.ReleaseDate = &d
		}
		if sentiment.Valid {
			v := int(sentiment.Int64)
			item.Sentiment = &v
		}
		if prevSentiment.Valid {
			v := int(prevSentiment.Int64)
			item.PreviousSentiment = &v
		}
		if tierValue.Valid {
			v := int(tierValue.Int64)
			item.Tier = &v
		}
		if lastRefreshed.Valid {
			ts := lastRefreshed.Time
			item.LastRefreshed = &ts
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return items, nil
}

// UpdateSentiment applies one refresh result. A nil NewValue only stamps the
// tier and timestamp (the unchanged-touch), otherwise the new value is
// written and the previous one preserved for audit.
func (s *PostgresStore) UpdateSentiment(ctx context.Context, upd domain.SentimentUpdate) error {
	q := s.builder.
		Update("catalog_items").
		Set("tier", upd.Tier).
		Set("last_refreshed", upd.RefreshedAt).
		Where(sq.Eq{"id": upd.ItemID})

	if upd.NewValue != nil {
		q = q.Set("sentiment", *upd.NewValue).
			Set("previous_sentiment", upd.PreviousValue)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update sentiment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update sentiment: item %d not found", upd.ItemID)
	}

	return nil
}

// UpsertRunSummary overwrites the summary row for the summary's calendar
// date, so re-running a day's batch replaces rather than accumulates.
func (s *PostgresStore) UpsertRunSummary(ctx context.Context, summary domain.RunSummary) error {
	query, args, err := s.builder.
		Insert("refresh_runs").
		Columns("run_date", "started_at", "finished_at", "processed", "updated",
			"unchanged", "failed", "requests", "estimated_cost", "error_detail").
		Values(summary.Date, summary.StartedAt, summary.FinishedAt, summary.Processed,
			summary.Updated, summary.Unchanged, summary.Failed, summary.Requests,
			summary.EstimatedCost, summary.ErrorDetail).
		Suffix(`ON CONFLICT (run_date) DO UPDATE SET
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at,
			processed = EXCLUDED.processed,
			updated = EXCLUDED.updated,
			unchanged = EXCLUDED.unchanged,
			failed = EXCLUDED.failed,
			requests = EXCLUDED.requests,
			estimated_cost = EXCLUDED.estimated_cost,
			error_detail = EXCLUDED.error_detail`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert run summary: %w", err)
	}

	return nil
}

// GetTierDistribution counts items per tier; unclassified items appear
// under tier 0.
func (s *PostgresStore) GetTierDistribution(ctx context.Context) (map[int]int, error) {
	query, args, err := s.builder.
		Select("COALESCE(tier, 0) AS tier", "COUNT(*)").
		From("catalog_items").
		GroupBy("COALESCE(tier, 0)").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build distribution query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query distribution: %w", err)
	}
	defer rows.Close()

	dist := make(map[int]int)
	for rows.Next() {
		var tierValue, count int
		if err := rows.Scan(&tierValue, &count); err != nil {
			return nil, fmt.Errorf("scan distribution: %w", err)
		}
		dist[tierValue] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return dist, nil
}

// ListRunSummaries returns the most recent run summaries, newest first.
func (s *PostgresStore) ListRunSummaries(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	query, args, err := s.builder.
		Select("run_date", "started_at", "finished_at", "processed", "updated",
			"unchanged", "failed", "requests", "estimated_cost", "error_detail").
		From("refresh_runs").
		OrderBy("run_date DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build summaries query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var summaries []domain.RunSummary
	for rows.Next() {
		var summary domain.RunSummary
		if err := rows.Scan(&summary.Date, &summary.StartedAt, &summary.FinishedAt,
			&summary.Processed, &summary.Updated, &summary.Unchanged, &summary.Failed,
			&summary.Requests, &summary.EstimatedCost, &summary.ErrorDetail); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return summaries, nil
}
