package service

import (
	"context"
	"net/http"

	"anoa.com/ulike/internal/entity"
	"anoa.com/ulike/internal/modules/stat/dto"
	statRepo "anoa.com/ulike/internal/modules/stat/repository"
	"anoa.com/ulike/pkg/apperror"
)

// UserCounter is the part of the user repository statistics need.
type UserCounter interface {
	Count(ctx context.Context) (int64, error)
}

type StatService interface {
	Summary(ctx context.Context) (*dto.SummaryResponse, error)
	TopSubjects(ctx context.Context, itemType string, limit int) ([]dto.TopSubject, error)
}

type statService struct {
	repo  statRepo.StatRepository
	users UserCounter
}

func NewStatService(repo statRepo.StatRepository, users UserCounter) StatService {
	return &statService{
		repo:  repo,
		users: users,
	}
}

func (s *statService) Summary(ctx context.Context) (*dto.SummaryResponse, error) {
	users, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	reactors, err := s.repo.CountReactors(ctx)
	if err != nil {
		return nil, err
	}
	totals, err := s.repo.TotalsByType(ctx)
	if err != nil {
		return nil, err
	}

	resp := &dto.SummaryResponse{
		TotalUsers:    users,
		TotalReactors: reactors,
		ByType:        make([]dto.TypeSummary, 0, len(totals)),
	}
	for _, t := range totals {
		resp.TotalLikes += t.LikeCount
		resp.TotalDislikes += t.DislikeCount
		resp.ByType = append(resp.ByType, dto.TypeSummary{
			ItemType:     t.ItemType,
			Subjects:     t.Subjects,
			LikeCount:    t.LikeCount,
			DislikeCount: t.DislikeCount,
		})
	}
	return resp, nil
}

func (s *statService) TopSubjects(ctx context.Context, itemType string, limit int) ([]dto.TopSubject, error) {
	var filter entity.ItemType
	if itemType != "" {
		parsed, err := entity.ParseItemType(itemType)
		if err != nil {
			return nil, apperror.New(http.StatusBadRequest, err.Error(), apperror.ErrBadRequest)
		}
		filter = parsed
	}

	ranked, err := s.repo.TopLiked(ctx, filter, limit)
	if err != nil {
		return nil, err
	}

	top := make([]dto.TopSubject, 0, len(ranked))
	for _, r := range ranked {
		top = append(top, dto.TopSubject{
			Subject:      entity.Subject{Type: r.ItemType, ID: r.ItemID},
			Title:        r.Title,
			LikeCount:    r.LikeCount,
			DislikeCount: r.DislikeCount,
			CounterText:  entity.FormatCount(r.LikeCount),
		})
	}
	return top, nil
}
