package scoring_test

import (
	"testing"

	"keyart/internal/assets"
	"keyart/internal/scoring"
)

func intPtr(v int) *int { return &v }

func candidate(provider, url, lang string, w, h int, votes *int) assets.Candidate {
	return assets.Candidate{
		Entity:    assets.EntityKey{Type: assets.EntityMovie, ID: 1},
		Asset:     assets.AssetPoster,
		Provider:  provider,
		URL:       url,
		Language:  lang,
		Width:     w,
		Height:    h,
		VoteCount: votes,
	}
}

var providerOrder = []string{"tmdb", "fanarttv", "tvdb"}

func TestRankTierOrdering(t *testing.T) {
	input := []assets.Candidate{
		candidate("tmdb", "u-remainder", "fr", 800, 1200, nil),
		candidate("tmdb", "u-pref-hd", "en", 1400, 2100, nil),
		candidate("tmdb", "u-hd-only", "de", 2000, 3000, nil),
		candidate("tmdb", "u-pref-sd", "en", 680, 1000, nil),
	}

	ranked := scoring.Rank(input, "en", providerOrder)
	wantOrder := []string{"u-pref-hd", "u-pref-sd", "u-hd-only", "u-remainder"}
	for i, want := range wantOrder {
		if ranked[i].URL != want {
			t.Fatalf("position %d: got %s, want %s", i, ranked[i].URL, want)
		}
	}
	for i, want := range []int{1, 2, 3, 4} {
		if ranked[i].Tier != want {
			t.Fatalf("position %d: tier %d, want %d", i, ranked[i].Tier, want)
		}
	}
}

func TestVoteSignificanceBoundaryIsExclusive(t *testing.T) {
	// 150 vs 100: difference is exactly 0.5 x min, so votes must not
	// decide; the significantly higher resolution must.
	lowVotesBigImage := candidate("tmdb", "u-big", "en", 2000, 3000, intPtr(100))
	highVotesSmallImage := candidate("tmdb", "u-small", "en", 1700, 2550, intPtr(150))

	ranked := scoring.Rank([]assets.Candidate{highVotesSmallImage, lowVotesBigImage}, "en", providerOrder)
	if ranked[0].URL != "u-big" {
		t.Fatalf("expected resolution to decide after insignificant votes, winner %s", ranked[0].URL)
	}
}

func TestVoteSignificanceDecides(t *testing.T) {
	a := candidate("tmdb", "u-42", "en", 2000, 3000, intPtr(42))
	b := candidate("tmdb", "u-125", "en", 2000, 3000, intPtr(125))

	ranked := scoring.Rank([]assets.Candidate{a, b}, "en", providerOrder)
	if ranked[0].URL != "u-125" {
		t.Fatalf("expected significant vote difference to decide, winner %s", ranked[0].URL)
	}
}

func TestMissingVotesSkipRuleEntirely(t *testing.T) {
	// One side reports no votes: the vote rule is skipped, not tied, so
	// resolution decides.
	noVotes := candidate("tmdb", "u-novotes", "en", 2200, 3300, nil)
	votes := candidate("tmdb", "u-votes", "en", 2000, 3000, intPtr(900))

	ranked := scoring.Rank([]assets.Candidate{votes, noVotes}, "en", providerOrder)
	if ranked[0].URL != "u-novotes" {
		t.Fatalf("expected resolution to decide when one side lacks votes, winner %s", ranked[0].URL)
	}
}

func TestProviderPriorityIsTerminalTieBreak(t *testing.T) {
	a := candidate("fanarttv", "u-fanart", "en", 2000, 3000, intPtr(50))
	b := candidate("tmdb", "u-tmdb", "en", 2000, 3000, intPtr(50))

	ranked := scoring.Rank([]assets.Candidate{a, b}, "en", providerOrder)
	if ranked[0].URL != "u-tmdb" {
		t.Fatalf("expected tmdb to win on provider priority, winner %s", ranked[0].URL)
	}
}

func TestResidualTiePreservesInputOrder(t *testing.T) {
	a := candidate("tmdb", "u-first", "en", 2000, 3000, intPtr(50))
	b := candidate("tmdb", "u-second", "en", 2000, 3000, intPtr(50))

	ranked := scoring.Rank([]assets.Candidate{a, b}, "en", providerOrder)
	if ranked[0].URL != "u-first" || ranked[1].URL != "u-second" {
		t.Fatalf("expected stable order, got %s then %s", ranked[0].URL, ranked[1].URL)
	}
}

func TestRankDegradesOnMissingData(t *testing.T) {
	input := []assets.Candidate{
		{},
		candidate("", "", "", 0, 0, nil),
		candidate("unknown-provider", "u-x", "zz-not-a-language", -5, -5, intPtr(0)),
		candidate("tmdb", "u-ok", "en", 1400, 2100, intPtr(10)),
	}

	ranked := scoring.Rank(input, "en", providerOrder)
	if len(ranked) != len(input) {
		t.Fatalf("expected all candidates ranked, got %d", len(ranked))
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i-1].Tier > ranked[i].Tier {
			t.Fatalf("tier order violated at %d", i)
		}
	}
	if ranked[0].URL != "u-ok" {
		t.Fatalf("expected the only HD preferred-language candidate first, got %q", ranked[0].URL)
	}
}

func TestRankEmptyInput(t *testing.T) {
	if got := scoring.Rank(nil, "en", providerOrder); len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
}

func TestHDDetectionByHintAndTag(t *testing.T) {
	byHint := candidate("tmdb", "u-hint", "en", 600, 900, nil)
	byHint.Hints = []string{"BluRay"}
	byTag := candidate("tmdb", "u-tag", "en", 600, 900, nil)
	byTag.QualityTag = "4k"
	plain := candidate("tmdb", "u-plain", "en", 600, 900, nil)

	ranked := scoring.Rank([]assets.Candidate{plain, byHint, byTag}, "en", providerOrder)
	if ranked[0].Tier != scoring.TierPreferredHD || ranked[1].Tier != scoring.TierPreferredHD {
		t.Fatalf("expected hint and tag candidates in tier 1, got tiers %d %d %d",
			ranked[0].Tier, ranked[1].Tier, ranked[2].Tier)
	}
	if ranked[2].URL != "u-plain" {
		t.Fatalf("expected plain SD candidate last, got %s", ranked[2].URL)
	}
}

func TestEndToEndTierBeatsVotes(t *testing.T) {
	tier1Low := candidate("tmdb", "u-t1-42", "en", 2000, 3000, intPtr(42))
	tier1High := candidate("tmdb", "u-t1-125", "en", 2000, 3000, intPtr(125))
	tier2Huge := candidate("tmdb", "u-t2-900", "en", 680, 1000, intPtr(900))

	ranked := scoring.Rank([]assets.Candidate{tier1Low, tier1High, tier2Huge}, "en", providerOrder)
	if ranked[0].URL != "u-t1-125" {
		t.Fatalf("expected tier to beat votes and 125 to beat 42, winner %s", ranked[0].URL)
	}
}

func TestInformationalScoreClamped(t *testing.T) {
	best := candidate("tmdb", "u-best", "en", 4000, 6000, intPtr(5000))
	ranked := scoring.Rank([]assets.Candidate{best}, "en", providerOrder)
	if ranked[0].Score > 1.0 {
		t.Fatalf("score not clamped: %f", ranked[0].Score)
	}
	if ranked[0].Score <= 0 {
		t.Fatalf("expected positive score, got %f", ranked[0].Score)
	}
}

func TestLanguageNeutralAndUnparseableBoundary(t *testing.T) {
	// All HD, so language alone places the tier: an empty tag is neutral
	// and keeps tier 1 eligibility, a garbage tag is a mismatch like any
	// explicit different language.
	exact := candidate("tmdb", "u-exact", "en", 2000, 3000, nil)
	empty := candidate("tmdb", "u-empty", "", 2000, 3000, nil)
	garbage := candidate("tmdb", "u-garbage", "not-a-language", 2000, 3000, nil)
	other := candidate("tmdb", "u-other", "fr", 2000, 3000, nil)

	ranked := scoring.Rank([]assets.Candidate{garbage, other, empty, exact}, "en", providerOrder)
	tiers := map[string]int{}
	for _, r := range ranked {
		tiers[r.URL] = r.Tier
	}
	if tiers["u-exact"] != scoring.TierPreferredHD || tiers["u-empty"] != scoring.TierPreferredHD {
		t.Fatalf("exact/empty tiers = %d/%d, want both in tier 1", tiers["u-exact"], tiers["u-empty"])
	}
	if tiers["u-garbage"] != scoring.TierHD {
		t.Fatalf("unparseable tag tier = %d, want HD mismatch tier", tiers["u-garbage"])
	}
	if tiers["u-other"] != scoring.TierHD {
		t.Fatalf("different language tier = %d, want HD mismatch tier", tiers["u-other"])
	}
}
