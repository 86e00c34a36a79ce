package service

import (
	"math"

	leaderboardDto "anoa.com/ulike/internal/modules/leaderboard/dto"
)

type rankTier struct {
	name      string
	minPoints int
}

// Rank tiers, highest first. Ranks never demote since points are only
// ever awarded.
var rankTiers = []rankTier{
	{"Legend", 20000},
	{"Veteran", 8000},
	{"Notable", 3000},
	{"Contributor", 600},
	{"Member", 100},
	{"Newcomer", 0},
}

// GetGamificationStatus places a point total on the rank ladder.
func GetGamificationStatus(points int) leaderboardDto.GamificationStatus {
	status := leaderboardDto.GamificationStatus{CurrentPoints: points}

	for i, tier := range rankTiers {
		if points < tier.minPoints {
			continue
		}
		status.RankName = tier.name
		if i == 0 {
			status.NextRank = "Max Level"
			status.TargetPoints = tier.minPoints
			status.Progress = 100
			return status
		}
		next := rankTiers[i-1]
		status.NextRank = next.name
		status.TargetPoints = next.minPoints
		status.Progress = math.Round(float64(points)/float64(next.minPoints)*10000) / 100
		return status
	}

	// Negative totals only come from manual corrections.
	last := rankTiers[len(rankTiers)-1]
	status.RankName = last.name
	status.NextRank = rankTiers[len(rankTiers)-2].name
	status.TargetPoints = rankTiers[len(rankTiers)-2].minPoints
	return status
}
