package classify

import (
	"regexp"
	"strings"
	"time"

	"GrantRadar/internal/domain"
)

// Reason explains why a posting was rejected.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonExpired
	ReasonPastYear
	ReasonNoKeywordMatch
	ReasonRegionRestricted
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonExpired:
		return "expired"
	case ReasonPastYear:
		return "past-year"
	case ReasonNoKeywordMatch:
		return "no-keyword-match"
	case ReasonRegionRestricted:
		return "region-restricted"
	default:
		return "unknown"
	}
}

// Result is the classifier verdict for one posting. Evidence carries
// every matched relevance term once the keyword check has run.
type Result struct {
	Accepted bool
	Reason   Reason
	Evidence []string
}

type restrictedRegion struct {
	name      string
	adjacency *regexp.Regexp
	titleTag  *regexp.Regexp
}

// Classifier decides whether a posting is worth notifying. It is pure:
// no I/O, deterministic for a given vocabulary and reference day.
type Classifier struct {
	vocab     Vocabulary
	relevance []string
	regions   []restrictedRegion
}

// New compiles the vocabulary into a ready classifier.
func New(vocab Vocabulary) *Classifier {
	relevance := make([]string, 0)
	for _, term := range vocab.RelevanceTerms() {
		if t := strings.TrimSpace(term); t != "" {
			relevance = append(relevance, strings.ToLower(t))
		}
	}

	phrases := strings.Join(vocab.RestrictionPhrases, "|")

	regions := make([]restrictedRegion, 0, len(vocab.RestrictedRegions))
	for _, name := range vocab.RestrictedRegions {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		quoted := regexp.QuoteMeta(name)

		var adjacency *regexp.Regexp
		if phrases != "" {
			adjacency = regexp.MustCompile(
				`(?is)` + quoted + `.*(?:` + phrases + `)|(?:` + phrases + `).*` + quoted)
		}

		titleTag := regexp.MustCompile(
			`(?i)\[` + quoted + `\]|\(` + quoted + `\)|` + quoted + `\s+(?:region|area|province|city)`)

		regions = append(regions, restrictedRegion{
			name:      name,
			adjacency: adjacency,
			titleTag:  titleTag,
		})
	}

	return &Classifier{
		vocab:     vocab,
		relevance: relevance,
		regions:   regions,
	}
}

// Classify runs the three ordered sub-checks against the posting:
// date validity, keyword relevance, geographic restriction. A posting
// must pass all three. today fixes the reference calendar date.
func (c *Classifier) Classify(posting domain.Posting, today time.Time) Result {
	if reason := c.checkDates(posting, today); reason != ReasonNone {
		return Result{Reason: reason}
	}

	evidence := c.matchKeywords(posting)
	if len(evidence) == 0 {
		return Result{Reason: ReasonNoKeywordMatch}
	}

	if c.isRegionRestricted(posting) {
		return Result{Reason: ReasonRegionRestricted, Evidence: evidence}
	}

	return Result{Accepted: true, Evidence: evidence}
}

// checkDates prunes expired and stale postings. Opaque deadline tokens
// ("D-30", "rolling") are not parseable and skip the expiry check; they
// still count as stale when the start date belongs to an earlier year.
func (c *Classifier) checkDates(posting domain.Posting, today time.Time) Reason {
	todayDay := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	end, endParsed := domain.ParseDay(posting.EndDate)
	if endParsed && end.Before(todayDay) {
		return ReasonExpired
	}

	start, startParsed := domain.ParseDay(posting.StartDate)
	if startParsed && start.Year() < todayDay.Year() {
		switch {
		case posting.EndDate == "":
			return ReasonPastYear
		case endParsed && end.Year() < todayDay.Year():
			return ReasonPastYear
		case !endParsed:
			// End date present but malformed: no way to prove the
			// window is still open, treat as stale.
			return ReasonPastYear
		}
	}

	return ReasonNone
}

// matchKeywords returns every relevance term found in the lower-cased
// title/category/target/summary text, in vocabulary order.
func (c *Classifier) matchKeywords(posting domain.Posting) []string {
	searchable := strings.ToLower(strings.Join([]string{
		posting.Title,
		posting.Category,
		posting.Target,
		posting.Summary,
	}, " "))

	var matched []string
	for _, term := range c.relevance {
		if strings.Contains(searchable, term) {
			matched = append(matched, term)
		}
	}
	return matched
}

// isRegionRestricted reports whether the posting is limited to a region
// the organization cannot apply from. Nationwide and home-region
// signals short-circuit before any restrictive pattern is evaluated.
func (c *Classifier) isRegionRestricted(posting domain.Posting) bool {
	searchable := strings.Join([]string{
		posting.Title,
		posting.Target,
		posting.Summary,
		posting.Organization,
	}, " ")

	if strings.TrimSpace(searchable) == "" {
		return false
	}

	if containsAnyFold(searchable, c.vocab.NationwideTerms) {
		return false
	}
	if containsAnyFold(searchable, c.vocab.HomeRegions) {
		return false
	}

	for _, region := range c.regions {
		if !containsFold(searchable, region.name) {
			continue
		}

		if region.adjacency != nil && region.adjacency.MatchString(searchable) {
			return true
		}

		// Region tagged in the title and named in the target with no
		// broader-eligibility signal there.
		if region.titleTag.MatchString(posting.Title) &&
			containsFold(posting.Target, region.name) &&
			!containsAnyFold(posting.Target, c.vocab.HomeRegions) &&
			!containsAnyFold(posting.Target, c.vocab.NationwideTerms) {
			return true
		}
	}

	return false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func containsAnyFold(haystack string, needles []string) bool {
	for _, needle := range needles {
		if needle == "" {
			continue
		}
		if containsFold(haystack, needle) {
			return true
		}
	}
	return false
}
