// Package rankdomain computes rank and medal progression from completion
// history and the Discord role set that progression implies.
package rankdomain

import "github.com/Black-And-White-Club/parkour-bot/app/shared/difficulty"

// MaxRank is the highest rank, reached by clearing every tier above Beginner.
const MaxRank = 7

var rankNames = [MaxRank]string{"Ninja", "Jumper", "Skilled", "Pro", "Master", "Grandmaster", "God"}

// RankName returns the display name of a 1-based rank.
func RankName(rank int) string {
	if rank < 1 || rank > MaxRank {
		return "Unranked"
	}
	return rankNames[rank-1]
}

// AllowedSubmitTier is the highest tier an author of the given rank may
// submit or have approved.
func AllowedSubmitTier(rank int) difficulty.Tier {
	switch {
	case rank >= 6:
		return difficulty.Hell
	case rank == 5:
		return difficulty.Extreme
	case rank >= 3:
		return difficulty.VeryHard
	default:
		return difficulty.Hard
	}
}

// CanSubmit reports whether rank allows a map at tier.
func CanSubmit(rank int, tier difficulty.Tier) bool {
	return tier <= AllowedSubmitTier(rank)
}
