package scoring

import (
	"sort"

	"keyart/internal/assets"
)

// Deduplicate removes candidates that describe the same underlying asset and
// drops candidates that match an asset already present on the entity, so
// automation never re-recommends what is in place.
//
// Two candidates are the same asset when they share provider and URL, when
// width, height, and file size are all reported and identical, or when both
// carry a perceptual hash and the hashes match exactly. The surviving
// representative of each group is chosen by canonical (provider, URL) order,
// which makes the result independent of input ordering.
func Deduplicate(candidates, existing []assets.Candidate) []assets.Candidate {
	ordered := make([]assets.Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Provider != ordered[j].Provider {
			return ordered[i].Provider < ordered[j].Provider
		}
		return ordered[i].URL < ordered[j].URL
	})

	kept := make([]assets.Candidate, 0, len(ordered))
	for _, candidate := range ordered {
		if matchesAny(candidate, existing) {
			continue
		}
		if matchesAny(candidate, kept) {
			continue
		}
		kept = append(kept, candidate)
	}
	return kept
}

func matchesAny(candidate assets.Candidate, against []assets.Candidate) bool {
	for i := range against {
		if SameAsset(candidate, against[i]) {
			return true
		}
	}
	return false
}

// SameAsset reports whether two candidates describe the same underlying
// image: shared provider and URL, identical reported width, height, and file
// size, or matching perceptual hashes.
func SameAsset(a, b assets.Candidate) bool {
	if a.Provider == b.Provider && a.URL != "" && a.URL == b.URL {
		return true
	}
	if a.Width > 0 && a.Height > 0 && a.FileSize > 0 &&
		a.Width == b.Width && a.Height == b.Height && a.FileSize == b.FileSize {
		return true
	}
	if a.PHash != "" && b.PHash != "" && a.PHash == b.PHash {
		return true
	}
	return false
}
