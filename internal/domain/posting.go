package domain

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// Posting is a candidate grant announcement produced by a collector.
// Only Title is mandatory; everything else defaults to empty.
type Posting struct {
	ID           string
	Title        string
	Organization string
	Category     string
	Target       string
	Summary      string
	URL          string
	StartDate    string
	EndDate      string
	Source       string
}

// Valid reports whether the posting may enter the store at all.
func (p Posting) Valid() bool {
	return strings.TrimSpace(p.Title) != ""
}

// StoredPosting is a Posting persisted with dedup/notification metadata.
type StoredPosting struct {
	Posting
	CollectedAt time.Time
	NotifiedAt  *time.Time
	IsNotified  bool
}

// Stats aggregates store contents for the post-run summary.
type Stats struct {
	Total    int
	Notified int
	Pending  int
	BySource map[string]int
}

// DeriveID fingerprints a posting by title and URL. Sources without a
// native identifier must use this so re-discovered announcements map to
// the same id on every run.
func DeriveID(title, url string) string {
	sum := md5.Sum([]byte(title + ":" + url))
	return hex.EncodeToString(sum[:])
}

const dayLayout = "2006-01-02"

// NormalizeDate reshapes separator-formatted calendar dates into
// YYYY-MM-DD. Inputs that are not eight digits after stripping
// separators (deadline markers like "D-30" or "rolling") come back
// trimmed but otherwise untouched. Never fails.
func NormalizeDate(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	cleaned := strings.NewReplacer(".", "", "/", "", "-", "", " ", "").Replace(trimmed)
	if len(cleaned) != 8 {
		return trimmed
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return trimmed
		}
	}

	return cleaned[:4] + "-" + cleaned[4:6] + "-" + cleaned[6:8]
}

// ParseDay parses a normalized YYYY-MM-DD value. The second return is
// false for empty strings and opaque tokens.
func ParseDay(value string) (time.Time, bool) {
	t, err := time.Parse(dayLayout, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatDay renders a timestamp as the calendar-day key used by the
// daily-send table.
func FormatDay(t time.Time) string {
	return t.Format(dayLayout)
}
