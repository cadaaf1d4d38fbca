package ports

import (
	"context"

	"GrantRadar/internal/domain"
)

// PostingSource aggregates candidate postings from all configured
// upstream sources for one run.
type PostingSource interface {
	Collect(ctx context.Context) ([]domain.Posting, error)
}

// PostingStore persists postings for deduplication and notification
// tracking. Any I/O failure is fatal to the run.
type PostingStore interface {
	// Insert persists the posting on first sighting and reports whether
	// it was new. A posting whose id already exists is left untouched.
	Insert(ctx context.Context, posting domain.Posting) (bool, error)

	// ListUnnotified returns pending postings, newest first.
	ListUnnotified(ctx context.Context) ([]domain.StoredPosting, error)

	// MarkNotified flags the given ids as notified. Unknown ids are
	// ignored.
	MarkNotified(ctx context.Context, ids []string) error

	// HasSentToday reports whether a daily batch was already delivered
	// for the given YYYY-MM-DD day.
	HasSentToday(ctx context.Context, day string) (bool, error)

	// RecordDailySend records that the given day's batch went out with
	// the given posting count.
	RecordDailySend(ctx context.Context, day string, count int) error

	// ExpiringSoon returns postings whose end date falls within the next
	// N days.
	ExpiringSoon(ctx context.Context, days int) ([]domain.StoredPosting, error)

	// Stats aggregates store contents, read-only.
	Stats(ctx context.Context) (domain.Stats, error)
}

// Reporter delivers one daily batch to the messaging channel. An empty
// batch still produces a "nothing to report" notice.
type Reporter interface {
	SendReport(ctx context.Context, postings []domain.Posting) error
}
