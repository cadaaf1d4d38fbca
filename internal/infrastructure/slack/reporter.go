package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"GrantRadar/internal/domain"
	"GrantRadar/internal/ports"
)

const (
	defaultAPIURL = "https://slack.com/api/chat.postMessage"

	sectionTextLimit = 3000
	detailSummaryLen = 200
	threadPause      = 300 * time.Millisecond
)

// Reporter posts the daily report to a Slack channel via the Bot API:
// one header message, then one threaded reply per posting.
type Reporter struct {
	botToken string
	channel  string
	apiURL   string
	client   *http.Client
	pause    time.Duration
	now      func() time.Time
}

var _ ports.Reporter = (*Reporter)(nil)

// NewReporter registers bot token and target channel.
func NewReporter(botToken, channel string) *Reporter {
	return &Reporter{
		botToken: botToken,
		channel:  channel,
		apiURL:   defaultAPIURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		pause:    threadPause,
		now:      time.Now,
	}
}

type textObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type buttonElement struct {
	Type string     `json:"type"`
	Text textObject `json:"text"`
	URL  string     `json:"url"`
}

type block struct {
	Type     string      `json:"type"`
	Text     *textObject `json:"text,omitempty"`
	Elements []any       `json:"elements,omitempty"`
}

// SendReport delivers the batch. An empty batch still posts a distinct
// "nothing new" notice and counts as success.
func (r *Reporter) SendReport(ctx context.Context, postings []domain.Posting) error {
	if r.botToken == "" || r.channel == "" || r.client == nil {
		return fmt.Errorf("slack reporter misconfigured")
	}

	if len(postings) == 0 {
		return r.sendNoUpdates(ctx)
	}

	threadTS, err := r.postMessage(ctx,
		r.headerBlocks(postings),
		fmt.Sprintf("%d new grant postings", len(postings)),
		"")
	if err != nil {
		return fmt.Errorf("post header: %w", err)
	}

	for i, posting := range postings {
		blocks := buildPostingBlocks(posting, i+1, len(postings))
		if _, err := r.postMessage(ctx, blocks, posting.Title, threadTS); err != nil {
			return fmt.Errorf("post detail %d/%d: %w", i+1, len(postings), err)
		}
		// Pace thread replies under the API rate limit.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.pause):
		}
	}

	return nil
}

func (r *Reporter) headerBlocks(postings []domain.Posting) []block {
	today := domain.FormatDay(r.now())

	counts := map[string]int{}
	for _, posting := range postings {
		source := posting.Source
		if source == "" {
			source = "other"
		}
		counts[source]++
	}
	sources := make([]string, 0, len(counts))
	for source := range counts {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	parts := make([]string, 0, len(sources))
	for _, source := range sources {
		parts = append(parts, fmt.Sprintf("%s: %d", source, counts[source]))
	}

	return []block{
		{
			Type: "header",
			Text: &textObject{Type: "plain_text", Text: fmt.Sprintf("Grant program alerts (%s)", today)},
		},
		{Type: "divider"},
		{
			Type: "section",
			Text: &textObject{
				Type: "mrkdwn",
				Text: fmt.Sprintf(":mega: *%d new relevant grant postings*\n\n:bar_chart: %s",
					len(postings), strings.Join(parts, " | ")),
			},
		},
		{Type: "divider"},
		{
			Type: "context",
			Elements: []any{
				textObject{Type: "mrkdwn", Text: ":point_down: Details for each posting are in the *thread*."},
			},
		},
	}
}

func buildPostingBlocks(posting domain.Posting, index, total int) []block {
	tag := ""
	if posting.Category != "" {
		tag = "[" + posting.Category + "] "
	}

	parts := []string{fmt.Sprintf("*%d/%d  %s%s*", index, total, tag, posting.Title)}

	if posting.Organization != "" {
		parts = append(parts, ":office:  Issuer: "+posting.Organization)
	}
	switch {
	case posting.StartDate != "" && posting.EndDate != "":
		parts = append(parts, fmt.Sprintf(":calendar:  Applications: %s ~ %s", posting.StartDate, posting.EndDate))
	case posting.EndDate != "":
		parts = append(parts, ":calendar:  Deadline: "+posting.EndDate)
	}
	if posting.Target != "" {
		parts = append(parts, ":bust_in_silhouette:  Eligibility: "+posting.Target)
	}
	if posting.Summary != "" {
		summary := posting.Summary
		if runes := []rune(summary); len(runes) > detailSummaryLen {
			summary = string(runes[:detailSummaryLen])
		}
		parts = append(parts, ":page_facing_up:  "+summary)
	}

	text := strings.Join(parts, "\n")
	if runes := []rune(text); len(runes) > sectionTextLimit {
		text = string(runes[:sectionTextLimit])
	}

	blocks := []block{
		{Type: "section", Text: &textObject{Type: "mrkdwn", Text: text}},
	}

	if posting.URL != "" {
		blocks = append(blocks, block{
			Type: "actions",
			Elements: []any{
				buttonElement{
					Type: "button",
					Text: textObject{Type: "plain_text", Text: ":link: Open posting"},
					URL:  posting.URL,
				},
			},
		})
	}

	return blocks
}

func (r *Reporter) sendNoUpdates(ctx context.Context) error {
	today := domain.FormatDay(r.now())
	blocks := []block{
		{
			Type: "section",
			Text: &textObject{
				Type: "mrkdwn",
				Text: fmt.Sprintf(":memo: *%s* - no new relevant grant postings today.", today),
			},
		},
	}

	if _, err := r.postMessage(ctx, blocks, "No new grant postings today", ""); err != nil {
		return fmt.Errorf("post no-updates notice: %w", err)
	}
	return nil
}

// postMessage calls chat.postMessage and returns the message ts used to
// thread replies.
func (r *Reporter) postMessage(ctx context.Context, blocks []block, fallback, threadTS string) (string, error) {
	payload := map[string]any{
		"channel": r.channel,
		"text":    fallback,
		"blocks":  blocks,
	}
	if threadTS != "" {
		payload["thread_ts"] = threadTS
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.botToken)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("slack error: %s", resp.Status)
	}

	var result struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if !result.OK {
		return "", fmt.Errorf("slack error: %s", result.Error)
	}

	return result.TS, nil
}
