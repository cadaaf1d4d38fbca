package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GrantRadar/internal/domain"
)

func testVocabulary() Vocabulary {
	return Vocabulary{
		DomainTerms:       []string{"startup", "founder", "venture"},
		ExpansionTerms:    []string{"global", "export"},
		NationwideTerms:   []string{"nationwide", "no restriction"},
		HomeRegions:       []string{"seoul", "capital region"},
		RestrictedRegions: []string{"busan", "jeju"},
		RestrictionPhrases: []string{
			`headquartered\s+in`,
			`located\s+in`,
			`limited\s+to`,
		},
	}
}

func testClock() time.Time {
	return time.Date(2026, time.February, 20, 11, 0, 0, 0, time.UTC)
}

func TestClassifyAcceptsRelevantPosting(t *testing.T) {
	t.Parallel()

	c := New(testVocabulary())
	posting := domain.Posting{
		Title:        "2026 Early-Stage Startup Package",
		Organization: "Ministry X",
		Target:       "pre-founding entrepreneurs",
		StartDate:    "2026-02-10",
		EndDate:      "2026-03-15",
		URL:          "https://x/1",
		Source:       "a",
	}

	result := c.Classify(posting, testClock())
	require.True(t, result.Accepted)
	assert.Equal(t, []string{"startup"}, result.Evidence)
}

func TestClassifyRejectsExpired(t *testing.T) {
	t.Parallel()

	c := New(testVocabulary())
	posting := domain.Posting{
		Title:   "Global Startup Expansion Grant",
		EndDate: "2025-01-01",
	}

	result := c.Classify(posting, testClock())
	require.False(t, result.Accepted)
	assert.Equal(t, ReasonExpired, result.Reason)
}

func TestClassifyExpiryIgnoresKeywordContent(t *testing.T) {
	t.Parallel()

	// Expiry is checked before keywords: even a perfect match loses.
	c := New(testVocabulary())
	posting := domain.Posting{
		Title:   "startup venture global export",
		EndDate: "2026-02-19",
	}

	result := c.Classify(posting, testClock())
	assert.Equal(t, ReasonExpired, result.Reason)
}

func TestClassifyPastYear(t *testing.T) {
	t.Parallel()

	c := New(testVocabulary())

	cases := []struct {
		name    string
		posting domain.Posting
		reason  Reason
	}{
		{
			name:    "past start no end",
			posting: domain.Posting{Title: "startup call", StartDate: "2025-06-01"},
			reason:  ReasonPastYear,
		},
		{
			name:    "past start past end year",
			posting: domain.Posting{Title: "startup call", StartDate: "2025-06-01", EndDate: "2025-12-31"},
			reason:  ReasonExpired, // end date already behind the clock
		},
		{
			name:    "past start opaque end",
			posting: domain.Posting{Title: "startup call", StartDate: "2025-06-01", EndDate: "rolling"},
			reason:  ReasonPastYear,
		},
		{
			name:    "past start current end",
			posting: domain.Posting{Title: "startup call", StartDate: "2025-12-01", EndDate: "2026-06-30"},
			reason:  ReasonNone,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := c.Classify(tc.posting, testClock())
			if tc.reason == ReasonNone {
				assert.True(t, result.Accepted)
			} else {
				assert.Equal(t, tc.reason, result.Reason)
			}
		})
	}
}

func TestClassifyOpaqueDeadlineSkipsExpiry(t *testing.T) {
	t.Parallel()

	c := New(testVocabulary())
	posting := domain.Posting{
		Title:   "Startup Directory Listing",
		EndDate: "D-3",
	}

	result := c.Classify(posting, testClock())
	assert.True(t, result.Accepted)
}

func TestClassifyNoKeywordMatch(t *testing.T) {
	t.Parallel()

	c := New(testVocabulary())
	posting := domain.Posting{
		Title:   "Road maintenance procurement notice",
		EndDate: "2026-12-31",
	}

	result := c.Classify(posting, testClock())
	require.False(t, result.Accepted)
	assert.Equal(t, ReasonNoKeywordMatch, result.Reason)
	assert.Empty(t, result.Evidence)
}

func TestClassifyCollectsAllMatchedKeywords(t *testing.T) {
	t.Parallel()

	c := New(testVocabulary())
	posting := domain.Posting{
		Title:   "Global Startup Export Program",
		Summary: "venture support",
	}

	result := c.Classify(posting, testClock())
	require.True(t, result.Accepted)
	assert.ElementsMatch(t, []string{"startup", "venture", "global", "export"}, result.Evidence)
}

func TestClassifyRegionRestricted(t *testing.T) {
	t.Parallel()

	c := New(testVocabulary())
	posting := domain.Posting{
		Title:  "Startup Voucher Program",
		Target: "companies headquartered in Busan",
	}

	result := c.Classify(posting, testClock())
	require.False(t, result.Accepted)
	assert.Equal(t, ReasonRegionRestricted, result.Reason)
}

func TestClassifyRestrictionPhraseBeforeRegion(t *testing.T) {
	t.Parallel()

	c := New(testVocabulary())
	posting := domain.Posting{
		Title:   "Startup Voucher Program",
		Summary: "eligibility limited to the greater Jeju island",
	}

	result := c.Classify(posting, testClock())
	assert.Equal(t, ReasonRegionRestricted, result.Reason)
}

func TestClassifyHomeRegionShortCircuit(t *testing.T) {
	t.Parallel()

	// A posting mentioning both a restricted region and a home region
	// is accepted: the home signal wins before restriction patterns run.
	c := New(testVocabulary())
	posting := domain.Posting{
		Title:   "Startup Relay Busan-Seoul",
		Summary: "open to startups headquartered in Busan or Seoul",
	}

	result := c.Classify(posting, testClock())
	assert.True(t, result.Accepted)
}

func TestClassifyNationwideShortCircuit(t *testing.T) {
	t.Parallel()

	c := New(testVocabulary())
	posting := domain.Posting{
		Title:        "Startup Scale Program",
		Organization: "Busan Techno Park",
		Summary:      "nationwide call, companies headquartered in Busan run the program office",
	}

	result := c.Classify(posting, testClock())
	assert.True(t, result.Accepted)
}

func TestClassifyPlainRegionMentionIsNotRestriction(t *testing.T) {
	t.Parallel()

	// Region named without any restriction phrase nearby: the mention
	// alone (e.g. the issuing office address) must not reject.
	c := New(testVocabulary())
	posting := domain.Posting{
		Title:        "Startup Growth Fund",
		Organization: "Busan Regional Office",
	}

	result := c.Classify(posting, testClock())
	assert.True(t, result.Accepted)
}

func TestClassifyTitleTagWithTargetRegion(t *testing.T) {
	t.Parallel()

	c := New(testVocabulary())

	restricted := domain.Posting{
		Title:  "[Jeju] Startup Nest 2026",
		Target: "startups operating in Jeju",
	}
	result := c.Classify(restricted, testClock())
	assert.Equal(t, ReasonRegionRestricted, result.Reason)

	// Same tagged title, but the target welcomes home-region companies.
	open := domain.Posting{
		Title:  "[Jeju] Startup Nest 2026",
		Target: "startups from Jeju and Seoul",
	}
	result = c.Classify(open, testClock())
	assert.True(t, result.Accepted)
}

func TestClassifyEmptyGeoTextAccepts(t *testing.T) {
	t.Parallel()

	c := New(Vocabulary{
		DomainTerms:       []string{"grant"},
		RestrictedRegions: []string{"busan"},
	})
	posting := domain.Posting{Category: "grant"}

	result := c.Classify(posting, testClock())
	// Keyword match came from category; geo text (title/target/summary/
	// organization) is empty, so no restriction can apply.
	assert.True(t, result.Accepted)
}
