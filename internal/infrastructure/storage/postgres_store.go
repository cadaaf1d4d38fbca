package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"GrantRadar/internal/domain"
	"GrantRadar/internal/ports"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var postingColumns = []string{
	"id", "title", "organization", "category", "start_date", "end_date",
	"target", "url", "summary", "source", "collected_at", "notified_at",
	"is_notified",
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS postings (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    organization TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    start_date TEXT NOT NULL DEFAULT '',
    end_date TEXT NOT NULL DEFAULT '',
    target TEXT NOT NULL DEFAULT '',
    url TEXT NOT NULL DEFAULT '',
    summary TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    collected_at TIMESTAMPTZ NOT NULL,
    notified_at TIMESTAMPTZ,
    is_notified BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_postings_notified ON postings (is_notified);
CREATE INDEX IF NOT EXISTS idx_postings_end_date ON postings (end_date);
CREATE INDEX IF NOT EXISTS idx_postings_collected ON postings (collected_at);
CREATE TABLE IF NOT EXISTS daily_sends (
    day TEXT PRIMARY KEY,
    sent_count INTEGER NOT NULL DEFAULT 0,
    sent_at TIMESTAMPTZ NOT NULL
)`

// PostgresStore persists postings and daily-send records in Postgres.
// It is the single dedup gate of the pipeline.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.PostingStore = (*PostgresStore)(nil)

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// EnsureSchema creates tables and indices when they are absent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Insert persists the posting on first sighting. A posting whose id is
// already stored is an idempotent no-op reported as isNew=false.
func (s *PostgresStore) Insert(ctx context.Context, posting domain.Posting) (bool, error) {
	query := psql.Insert("postings").
		Columns("id", "title", "organization", "category", "start_date",
			"end_date", "target", "url", "summary", "source", "collected_at").
		Values(posting.ID, posting.Title, posting.Organization, posting.Category,
			posting.StartDate, posting.EndDate, posting.Target, posting.URL,
			posting.Summary, posting.Source, s.now().UTC()).
		Suffix("ON CONFLICT (id) DO NOTHING")

	result, err := query.RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return false, fmt.Errorf("insert posting %s: %w", posting.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert posting %s: rows affected: %w", posting.ID, err)
	}

	return affected > 0, nil
}

// ListUnnotified returns pending postings ordered newest first.
func (s *PostgresStore) ListUnnotified(ctx context.Context) ([]domain.StoredPosting, error) {
	query := psql.Select(postingColumns...).
		From("postings").
		Where(sq.Eq{"is_notified": false}).
		OrderBy("collected_at DESC")

	return s.queryPostings(ctx, query)
}

// MarkNotified flags the given ids as notified now. Ids missing from
// the table are silently ignored.
func (s *PostgresStore) MarkNotified(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := psql.Update("postings").
		Set("is_notified", true).
		Set("notified_at", s.now().UTC()).
		Where(sq.Eq{"id": ids})

	if _, err := query.RunWith(s.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}

	return nil
}

// HasSentToday reports whether a daily batch already went out for the
// given calendar day.
func (s *PostgresStore) HasSentToday(ctx context.Context, day string) (bool, error) {
	query := psql.Select("1").From("daily_sends").Where(sq.Eq{"day": day})

	var one int
	err := query.RunWith(s.db).QueryRowContext(ctx).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query daily send %s: %w", day, err)
	}

	return true, nil
}

// RecordDailySend stores the day's send record. The statement upserts;
// at-most-once-per-day is the orchestrator's responsibility via
// HasSentToday.
func (s *PostgresStore) RecordDailySend(ctx context.Context, day string, count int) error {
	query := psql.Insert("daily_sends").
		Columns("day", "sent_count", "sent_at").
		Values(day, count, s.now().UTC()).
		Suffix("ON CONFLICT (day) DO UPDATE SET sent_count = EXCLUDED.sent_count, sent_at = EXCLUDED.sent_at")

	if _, err := query.RunWith(s.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("record daily send %s: %w", day, err)
	}

	return nil
}

// ExpiringSoon returns postings whose parseable end date falls between
// today and today+days, soonest deadline first.
func (s *PostgresStore) ExpiringSoon(ctx context.Context, days int) ([]domain.StoredPosting, error) {
	from := domain.FormatDay(s.now().UTC())
	to := domain.FormatDay(s.now().UTC().AddDate(0, 0, days))

	query := psql.Select(postingColumns...).
		From("postings").
		Where(sq.Expr(`end_date ~ '^[0-9]{4}-[0-9]{2}-[0-9]{2}$'`)).
		Where(sq.GtOrEq{"end_date": from}).
		Where(sq.LtOrEq{"end_date": to}).
		OrderBy("end_date ASC")

	return s.queryPostings(ctx, query)
}

// Stats aggregates store contents for the post-run summary.
func (s *PostgresStore) Stats(ctx context.Context) (domain.Stats, error) {
	stats := domain.Stats{BySource: map[string]int{}}

	totals := psql.Select("COUNT(*)", "COUNT(*) FILTER (WHERE is_notified)").From("postings")
	if err := totals.RunWith(s.db).QueryRowContext(ctx).Scan(&stats.Total, &stats.Notified); err != nil {
		return domain.Stats{}, fmt.Errorf("query totals: %w", err)
	}
	stats.Pending = stats.Total - stats.Notified

	bySource := psql.Select("source", "COUNT(*)").From("postings").GroupBy("source")
	rows, err := bySource.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("query by source: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return domain.Stats{}, fmt.Errorf("scan source count: %w", err)
		}
		stats.BySource[source] = count
	}
	if err := rows.Err(); err != nil {
		return domain.Stats{}, fmt.Errorf("rows iteration: %w", err)
	}

	return stats, nil
}

func (s *PostgresStore) queryPostings(ctx context.Context, query sq.SelectBuilder) ([]domain.StoredPosting, error) {
	rows, err := query.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query postings: %w", err)
	}
	defer rows.Close()

	var postings []domain.StoredPosting
	for rows.Next() {
		var p domain.StoredPosting
		var notifiedAt sql.NullTime
		err := rows.Scan(&p.ID, &p.Title, &p.Organization, &p.Category,
			&p.StartDate, &p.EndDate, &p.Target, &p.URL, &p.Summary,
			&p.Source, &p.CollectedAt, &notifiedAt, &p.IsNotified)
		if err != nil {
			return nil, fmt.Errorf("scan posting: %w", err)
		}
		if notifiedAt.Valid {
			t := notifiedAt.Time
			p.NotifiedAt = &t
		}
		postings = append(postings, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return postings, nil
}
