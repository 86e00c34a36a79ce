package dto

import "github.com/google/uuid"

// UpsertContentInput registers a reactable item published by the host.
type UpsertContentInput struct {
	Type     string     `json:"type" binding:"required"`
	ID       *uint64    `json:"id" binding:"required"`
	AuthorID *uuid.UUID `json:"author_id"`
	Title    string     `json:"title" binding:"max=255"`
}

type SyncPendingResponse struct {
	Checked int `json:"checked"`
}
