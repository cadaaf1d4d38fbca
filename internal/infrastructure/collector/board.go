package collector

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"GrantRadar/internal/collect"
	"GrantRadar/internal/domain"
)

var datePairExpr = regexp.MustCompile(`\d{4}[.\-/]\d{2}[.\-/]\d{2}`)

// BoardCollector scrapes a government announcement board rendered as an
// HTML table. Rows carry a title link, the issuing organization, and an
// application date range. Sources without a native id get a derived one.
type BoardCollector struct {
	fetcher *Fetcher
}

var _ collect.Collector = (*BoardCollector)(nil)

// NewBoardCollector wires the shared retrying fetcher.
func NewBoardCollector(fetcher *Fetcher) *BoardCollector {
	return &BoardCollector{fetcher: fetcher}
}

// Name identifies the strategy inside the registry.
func (b *BoardCollector) Name() string {
	return "board"
}

// Collect fetches the listing page and parses every announcement row it
// can. Malformed rows are skipped, not fatal to the batch.
func (b *BoardCollector) Collect(ctx context.Context, req collect.Request) ([]domain.Posting, error) {
	if req.ListURL == "" {
		return nil, fmt.Errorf("no list url configured for source %s", req.SourceName)
	}

	body, err := b.fetcher.Get(ctx, req.ListURL)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", req.SourceName, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("source %s: parse document: %w", req.SourceName, err)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}

	postings := make([]domain.Posting, 0)
	doc.Find("table tbody tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if posting, ok := parseBoardRow(row, req); ok {
			postings = append(postings, posting)
		}
		return len(postings) < limit
	})

	// Some boards render announcement links outside a table.
	if len(postings) == 0 {
		doc.Find("a[href]").EachWithBreak(func(i int, link *goquery.Selection) bool {
			if posting, ok := parseBoardLink(link, req); ok {
				postings = append(postings, posting)
			}
			return len(postings) < limit
		})
	}

	return postings, nil
}

func parseBoardRow(row *goquery.Selection, req collect.Request) (domain.Posting, bool) {
	cells := row.Find("td")
	if cells.Length() < 3 {
		return domain.Posting{}, false
	}

	link := row.Find("a[href]").First()
	title := strings.TrimSpace(link.Text())
	href, _ := link.Attr("href")
	if title == "" || href == "" {
		return domain.Posting{}, false
	}

	organization := strings.TrimSpace(cells.Eq(1).Text())

	var startDate, endDate string
	cells.Each(func(i int, cell *goquery.Selection) {
		dates := datePairExpr.FindAllString(cell.Text(), -1)
		switch {
		case len(dates) >= 2:
			startDate = domain.NormalizeDate(dates[0])
			endDate = domain.NormalizeDate(dates[1])
		case len(dates) == 1 && endDate == "":
			endDate = domain.NormalizeDate(dates[0])
		}
	})

	url := absoluteURL(href, req.BaseURL)

	return domain.Posting{
		ID:           domain.DeriveID(title, url),
		Title:        title,
		Organization: organization,
		StartDate:    startDate,
		EndDate:      endDate,
		URL:          url,
		Source:       req.SourceName,
	}, true
}

func parseBoardLink(link *goquery.Selection, req collect.Request) (domain.Posting, bool) {
	pattern := req.Options["linkPattern"]
	href, _ := link.Attr("href")
	if pattern == "" || !strings.Contains(href, pattern) {
		return domain.Posting{}, false
	}

	title := strings.TrimSpace(link.Text())
	if title == "" {
		return domain.Posting{}, false
	}

	url := absoluteURL(href, req.BaseURL)

	return domain.Posting{
		ID:     domain.DeriveID(title, url),
		Title:  title,
		URL:    url,
		Source: req.SourceName,
	}, true
}

func absoluteURL(href, base string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return base + href
}
