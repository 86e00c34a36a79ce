package dto

import "anoa.com/ulike/internal/entity"

type TypeSummary struct {
	ItemType     entity.ItemType `json:"item_type"`
	Subjects     int64           `json:"subjects"`
	LikeCount    int64           `json:"like_count"`
	DislikeCount int64           `json:"dislike_count"`
}

type SummaryResponse struct {
	TotalUsers    int64         `json:"total_users"`
	TotalReactors int64         `json:"total_reactors"`
	TotalLikes    int64         `json:"total_likes"`
	TotalDislikes int64         `json:"total_dislikes"`
	ByType        []TypeSummary `json:"by_type"`
}

type TopSubject struct {
	Subject      entity.Subject `json:"subject"`
	Title        string         `json:"title"`
	LikeCount    int64          `json:"like_count"`
	DislikeCount int64          `json:"dislike_count"`
	CounterText  string         `json:"counter_text"`
}
