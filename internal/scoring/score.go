package scoring

import (
	"math"

	"keyart/internal/assets"
)

// informationalScore computes the explanation score shown in the UI. It is
// never used for ranking: the tier dominates, and the remaining terms give a
// rough sense of why one candidate looks better than another.
//
//	(5 - tier)/4 + 0.2*resolution + 0.1*aspect + 0.15*min(votes/100, 1)
//
// clamped to 1.0.
func informationalScore(c assets.Candidate, tier int) float64 {
	score := float64(5-tier) / 4.0
	score += 0.2 * resolutionScore(c.Resolution())
	score += 0.1 * aspectScore(c)
	if c.VoteCount != nil {
		score += 0.15 * math.Min(float64(*c.VoteCount)/100.0, 1.0)
	}
	return math.Min(score, 1.0)
}

// resolutionScore is a monotone lookup curve over pixel count, stepping at
// roughly SD, 720p, 1080p, and 4K boundaries.
func resolutionScore(pixels int) float64 {
	switch {
	case pixels <= 0:
		return 0
	case pixels < 500_000:
		return 0.2
	case pixels < 1_000_000:
		return 0.4
	case pixels < 2_500_000:
		return 0.6
	case pixels < 8_500_000:
		return 0.8
	default:
		return 1.0
	}
}

// aspectScore grades how close a candidate is to the aspect ratio expected
// for its asset type.
func aspectScore(c assets.Candidate) float64 {
	expected := c.Asset.ExpectedAspect()
	if expected <= 0 || c.Width <= 0 || c.Height <= 0 {
		return 0
	}
	ratio := float64(c.Width) / float64(c.Height)
	deviation := math.Abs(ratio-expected) / expected
	switch {
	case deviation <= 0.02:
		return 1.0
	case deviation <= 0.05:
		return 0.8
	case deviation <= 0.10:
		return 0.6
	case deviation <= 0.20:
		return 0.4
	default:
		return 0.2
	}
}
