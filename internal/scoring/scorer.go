package scoring

import (
	"sort"
	"strings"

	"golang.org/x/text/language"

	"keyart/internal/assets"
)

// Tier buckets, lower is better. Tier 1 is preferred language and HD.
const (
	TierPreferredHD = 1
	TierPreferred   = 2
	TierHD          = 3
	TierRemainder   = 4
)

// hdHints are provider metadata hints that mark a candidate HD regardless of
// reported dimensions.
var hdHints = map[string]struct{}{
	"hd":     {},
	"bluray": {},
	"4k":     {},
	"uhd":    {},
	"1080p":  {},
	"2160p":  {},
}

const hdMinDimension = 1920

// Ranked is one candidate with its computed tier and informational score.
type Ranked struct {
	assets.Candidate
	Tier  int
	Score float64
}

// Rank orders candidates best first. providerOrder is the caller's priority
// list of provider names, most trusted first; providers not on the list sort
// after all listed ones. The sort is stable so residual ties keep input
// order.
func Rank(candidates []assets.Candidate, preferredLanguage string, providerOrder []string) []Ranked {
	pref := parsePreferred(preferredLanguage)

	ranked := make([]Ranked, len(candidates))
	for i, c := range candidates {
		tier := tierOf(c, pref)
		ranked[i] = Ranked{
			Candidate: c,
			Tier:      tier,
			Score:     informationalScore(c, tier),
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return compare(ranked[i], ranked[j], providerOrder) < 0
	})
	return ranked
}

// compare returns negative when a ranks before b. Each rule either decides
// or falls through; a rule is skipped entirely when either side is missing
// the field it needs.
func compare(a, b Ranked, providerOrder []string) int {
	if a.Tier != b.Tier {
		return a.Tier - b.Tier
	}

	if a.VoteCount != nil && b.VoteCount != nil {
		if d := compareVotes(*a.VoteCount, *b.VoteCount); d != 0 {
			return d
		}
	}

	r1, r2 := a.Resolution(), b.Resolution()
	if r1 > 0 && r2 > 0 {
		if d := compareResolution(r1, r2); d != 0 {
			return d
		}
	}

	p1 := providerIndex(providerOrder, a.Provider)
	p2 := providerIndex(providerOrder, b.Provider)
	return p1 - p2
}

// compareVotes applies the vote-significance rule: the difference must
// strictly exceed half the smaller count to decide.
func compareVotes(v1, v2 int) int {
	lo, diff := v1, v2-v1
	if v2 < v1 {
		lo, diff = v2, v1-v2
	}
	if float64(diff) > 0.5*float64(lo) {
		return v2 - v1
	}
	return 0
}

// compareResolution applies the resolution-significance rule: the pixel
// count difference must strictly exceed 10% of the smaller resolution.
func compareResolution(r1, r2 int) int {
	lo, diff := r1, r2-r1
	if r2 < r1 {
		lo, diff = r2, r1-r2
	}
	if float64(diff) > 0.1*float64(lo) {
		return r2 - r1
	}
	return 0
}

func providerIndex(order []string, provider string) int {
	for i, name := range order {
		if strings.EqualFold(name, provider) {
			return i
		}
	}
	return len(order)
}

func tierOf(c assets.Candidate, pref language.Base) int {
	preferred := languageMatches(c.Language, pref)
	hd := isHD(c)
	switch {
	case preferred && hd:
		return TierPreferredHD
	case preferred:
		return TierPreferred
	case hd:
		return TierHD
	default:
		return TierRemainder
	}
}

// isHD reports whether a candidate qualifies as HD: either dimension at
// least 1920 pixels, an explicit hd/4k quality tag, or a known HD metadata
// hint.
func isHD(c assets.Candidate) bool {
	if c.Width >= hdMinDimension || c.Height >= hdMinDimension {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.QualityTag)) {
	case "hd", "4k":
		return true
	}
	for _, hint := range c.Hints {
		if _, ok := hdHints[strings.ToLower(strings.TrimSpace(hint))]; ok {
			return true
		}
	}
	return false
}

func parsePreferred(preferred string) language.Base {
	tag, err := language.Parse(strings.TrimSpace(preferred))
	if err != nil {
		tag = language.English
	}
	base, _ := tag.Base()
	return base
}

// languageMatches places a candidate relative to the preferred language. An
// empty or missing language is neutral and stays eligible for the preferred
// tiers; any other tag must parse and match, so a garbage tag ranks as a
// mismatch alongside explicit different languages.
func languageMatches(candidate string, pref language.Base) bool {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return true
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return false
	}
	base, _ := tag.Base()
	return base == pref
}
