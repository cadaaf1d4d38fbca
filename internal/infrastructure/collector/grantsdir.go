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

const minCardTitleLen = 5

var (
	dDayExpr = regexp.MustCompile(`D-(\d+)`)
	orgExpr  = regexp.MustCompile(`\b([A-Z][\w&.-]*(?:\s+[A-Z][\w&.-]*)*\s+(?:Ministry|Agency|Institute|Foundation|Administration|Office|Center))\b`)
)

// GrantsDirCollector scrapes a grants directory built from anchor
// cards. Cards expose no calendar dates, only a relative "D-n"
// deadline, which stays an opaque token downstream.
type GrantsDirCollector struct {
	fetcher *Fetcher
}

var _ collect.Collector = (*GrantsDirCollector)(nil)

// NewGrantsDirCollector wires the shared retrying fetcher.
func NewGrantsDirCollector(fetcher *Fetcher) *GrantsDirCollector {
	return &GrantsDirCollector{fetcher: fetcher}
}

// Name identifies the strategy inside the registry.
func (g *GrantsDirCollector) Name() string {
	return "grantsdir"
}

// Collect extracts program cards from the directory page. The same card
// can appear in several page sections, so results are deduplicated by
// derived id before returning.
func (g *GrantsDirCollector) Collect(ctx context.Context, req collect.Request) ([]domain.Posting, error) {
	if req.ListURL == "" {
		return nil, fmt.Errorf("no list url configured for source %s", req.SourceName)
	}

	body, err := g.fetcher.Get(ctx, req.ListURL)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", req.SourceName, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("source %s: parse document: %w", req.SourceName, err)
	}

	pattern := req.Options["linkPattern"]
	if pattern == "" {
		pattern = "/grants/"
	}

	seen := map[string]struct{}{}
	postings := make([]domain.Posting, 0)

	doc.Find("a[href]").Each(func(i int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if !strings.Contains(href, pattern) {
			return
		}

		title := strings.TrimSpace(link.Text())
		if len([]rune(title)) < minCardTitleLen {
			return
		}

		url := absoluteURL(href, req.BaseURL)
		id := domain.DeriveID(title, url)
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}

		organization, deadline := parseCardContext(link)

		postings = append(postings, domain.Posting{
			ID:           id,
			Title:        title,
			Organization: organization,
			EndDate:      deadline,
			URL:          url,
			Source:       req.SourceName,
		})
	})

	return postings, nil
}

// parseCardContext pulls the issuing body and the D-day marker from the
// card surrounding the link, when present.
func parseCardContext(link *goquery.Selection) (organization, deadline string) {
	parent := link.Parent()
	if parent == nil {
		return "", ""
	}
	text := parent.Text()

	if m := orgExpr.FindStringSubmatch(text); m != nil {
		organization = m[1]
	}
	if m := dDayExpr.FindStringSubmatch(text); m != nil {
		deadline = "D-" + m[1]
	}
	return organization, deadline
}
