package dto

import (
	"fmt"

	"anoa.com/ulike/internal/entity"
	commonDto "anoa.com/ulike/pkg/dto"
)

// SubjectRef is the subject reference carried in request bodies.
type SubjectRef struct {
	Type string  `json:"type" binding:"required"`
	ID   *uint64 `json:"id" binding:"required"`
}

// Subject validates the reference against the registered item types.
func (r SubjectRef) Subject() (entity.Subject, error) {
	itemType, err := entity.ParseItemType(r.Type)
	if err != nil {
		return entity.Subject{}, err
	}
	var id uint64
	if r.ID != nil {
		id = *r.ID
	}
	if id > entity.MaxSubjectID {
		return entity.Subject{}, fmt.Errorf("%w: %d", entity.ErrInvalidSubject, id)
	}
	return entity.Subject{Type: itemType, ID: id}, nil
}

// ToggleRequest is the body of POST /api/react. The reactor comes from the
// session, never from the body.
type ToggleRequest struct {
	Subject         SubjectRef `json:"subject" binding:"required"`
	RequestedKind   string     `json:"requested_kind" binding:"required,oneof=like dislike"`
	Token           string     `json:"token"`
	PresentedStatus string     `json:"presented_status" binding:"omitempty,oneof=logged_out not_yet_reacted reacted reacted_opposite_available"`
}

type ToggleResponse struct {
	NewCounterValue int64                     `json:"new_counter_value"`
	CounterText     string                    `json:"counter_text"`
	LikeCount       int64                     `json:"like_count"`
	DislikeCount    int64                     `json:"dislike_count"`
	NextState       entity.State              `json:"next_state"`
	ButtonStatus    entity.PresentationStatus `json:"button_status"`
	Message         string                    `json:"message"`
	ButtonText      string                    `json:"button_text"`
	Stale           bool                      `json:"stale"`
}

// LikersRequest is the body of POST /api/likers.
type LikersRequest struct {
	Subject SubjectRef `json:"subject" binding:"required"`
	Refresh bool       `json:"refresh"`
	Page    int        `json:"page" binding:"omitempty,min=1"`
}

type LikerItem struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type LikersResponse struct {
	Items        []LikerItem              `json:"items"`
	HTML         string                   `json:"html"`
	WrapperClass string                   `json:"wrapper_class"`
	Hidden       bool                     `json:"hidden"`
	Meta         commonDto.PaginationMeta `json:"meta"`
}

// StatusResponse describes a widget before the viewer acts on it.
type StatusResponse struct {
	Subject         entity.Subject            `json:"subject"`
	LikeCount       int64                     `json:"like_count"`
	DislikeCount    int64                     `json:"dislike_count"`
	CounterText     string                    `json:"counter_text"`
	State           entity.State              `json:"state"`
	ButtonStatus    entity.PresentationStatus `json:"button_status"`
	ButtonText      string                    `json:"button_text"`
	Token           string                    `json:"token,omitempty"`
	DisplayPosition string                    `json:"display_position"`
	Message         string                    `json:"message,omitempty"`
}
