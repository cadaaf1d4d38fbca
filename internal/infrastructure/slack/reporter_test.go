package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GrantRadar/internal/domain"
)

type recordedMessage struct {
	Channel  string `json:"channel"`
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts"`
	Blocks   []struct {
		Type string `json:"type"`
		Text *struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"text"`
	} `json:"blocks"`
}

func newTestReporter(t *testing.T, handler func(recordedMessage) string) (*Reporter, *[]recordedMessage) {
	t.Helper()

	var messages []recordedMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer xoxb-test", r.Header.Get("Authorization"))

		var msg recordedMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		messages = append(messages, msg)

		ts := handler(msg)
		fmt.Fprintf(w, `{"ok": true, "ts": %q}`, ts)
	}))
	t.Cleanup(server.Close)

	r := NewReporter("xoxb-test", "grants")
	r.apiURL = server.URL
	r.pause = 0
	r.now = func() time.Time {
		return time.Date(2026, time.February, 20, 11, 0, 0, 0, time.UTC)
	}
	return r, &messages
}

func TestSendReportThreadsDetails(t *testing.T) {
	t.Parallel()

	var sent int
	reporter, messages := newTestReporter(t, func(recordedMessage) string {
		sent++
		return fmt.Sprintf("ts-%d", sent)
	})

	postings := []domain.Posting{
		{
			Title:        "Early-Stage Startup Package",
			Organization: "Ministry X",
			Category:     "startup",
			StartDate:    "2026-02-10",
			EndDate:      "2026-03-15",
			Target:       "pre-founding entrepreneurs",
			URL:          "https://x/1",
			Source:       "kstartup",
		},
		{
			Title:  "Export Voucher",
			Source: "bizinfo",
		},
	}

	err := reporter.SendReport(context.Background(), postings)
	require.NoError(t, err)

	require.Len(t, *messages, 3, "header plus one reply per posting")

	header := (*messages)[0]
	assert.Equal(t, "grants", header.Channel)
	assert.Empty(t, header.ThreadTS)
	require.NotEmpty(t, header.Blocks)
	assert.Equal(t, "header", header.Blocks[0].Type)
	assert.Contains(t, header.Blocks[0].Text.Text, "2026-02-20")

	var summary string
	for _, b := range header.Blocks {
		if b.Type == "section" && b.Text != nil {
			summary = b.Text.Text
		}
	}
	assert.Contains(t, summary, "2 new relevant grant postings")
	assert.Contains(t, summary, "bizinfo: 1")
	assert.Contains(t, summary, "kstartup: 1")

	for i, msg := range (*messages)[1:] {
		assert.Equal(t, "ts-1", msg.ThreadTS, "reply %d must thread under the header", i+1)
	}

	detail := (*messages)[1]
	require.NotEmpty(t, detail.Blocks)
	text := detail.Blocks[0].Text.Text
	assert.Contains(t, text, "1/2")
	assert.Contains(t, text, "[startup] Early-Stage Startup Package")
	assert.Contains(t, text, "Applications: 2026-02-10 ~ 2026-03-15")
	assert.Contains(t, text, "Eligibility: pre-founding entrepreneurs")
}

func TestSendReportEmptyBatch(t *testing.T) {
	t.Parallel()

	reporter, messages := newTestReporter(t, func(recordedMessage) string { return "ts-1" })

	err := reporter.SendReport(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, *messages, 1)
	text := (*messages)[0].Blocks[0].Text.Text
	assert.Contains(t, text, "no new relevant grant postings")
	assert.Contains(t, text, "2026-02-20")
}

func TestSendReportSlackAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok": false, "error": "channel_not_found"}`))
	}))
	t.Cleanup(server.Close)

	reporter := NewReporter("xoxb-test", "missing")
	reporter.apiURL = server.URL
	reporter.pause = 0

	err := reporter.SendReport(context.Background(), []domain.Posting{{Title: "Anything"}})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "channel_not_found"))
}

func TestSendReportMisconfigured(t *testing.T) {
	t.Parallel()

	reporter := NewReporter("", "")
	err := reporter.SendReport(context.Background(), nil)
	require.Error(t, err)
}
