package classify

// Vocabulary is the immutable word profile the classifier matches
// against. Tests substitute small profiles; production values come from
// configuration.
type Vocabulary struct {
	// DomainTerms and ExpansionTerms form the relevance vocabulary.
	// The split is informational only; matching runs over the union.
	DomainTerms    []string
	ExpansionTerms []string

	// NationwideTerms mark an announcement as open regardless of any
	// region mention.
	NationwideTerms []string

	// HomeRegions are the regions where the consuming organization is
	// always eligible.
	HomeRegions []string

	// RestrictedRegions are region names that, combined with a
	// restriction phrase, signal a locally limited announcement.
	RestrictedRegions []string

	// RestrictionPhrases are regexp fragments meaning "limited to" /
	// "headquartered in" and the like.
	RestrictionPhrases []string
}

// RelevanceTerms returns the effective keyword vocabulary.
func (v Vocabulary) RelevanceTerms() []string {
	terms := make([]string, 0, len(v.DomainTerms)+len(v.ExpansionTerms))
	terms = append(terms, v.DomainTerms...)
	terms = append(terms, v.ExpansionTerms...)
	return terms
}
