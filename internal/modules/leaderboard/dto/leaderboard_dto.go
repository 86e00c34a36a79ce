package dto

import "github.com/google/uuid"

// GamificationStatus is a user's place on the rank ladder.
type GamificationStatus struct {
	RankName      string  `json:"rank_name"`
	NextRank      string  `json:"next_rank"`
	CurrentPoints int     `json:"current_points"`
	TargetPoints  int     `json:"target_points"`
	Progress      float64 `json:"progress"` // percent of TargetPoints, 0-100
}

// LeaderboardEntry represents a single user entry in the leaderboard.
type LeaderboardEntry struct {
	UserID             uuid.UUID          `json:"user_id"`
	Username           string             `json:"username"`
	DisplayName        string             `json:"display_name"`
	AvatarURL          *string            `json:"avatar_url,omitempty"`
	Position           int                `json:"position"` // 1-based
	LikesReceived      int64              `json:"likes_received"`
	GamificationStatus GamificationStatus `json:"gamification_status"`
}
