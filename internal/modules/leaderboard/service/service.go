package service

import (
	"context"
	"errors"

	"anoa.com/ulike/internal/entity"
	leaderboardDto "anoa.com/ulike/internal/modules/leaderboard/dto"
	leaderboardRepo "anoa.com/ulike/internal/modules/leaderboard/repository"
	reaction "anoa.com/ulike/internal/modules/reaction/service"
	"anoa.com/ulike/pkg/apperror"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const ActionLikeReceived = "like_received"

// UserDirectory resolves leaderboard users.
type UserDirectory interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.User, error)
}

type LeaderboardService interface {
	// AwardLikeReceived gives the author of subject points for a like by
	// actor. It is a no-op when the actor was already counted.
	AwardLikeReceived(ctx context.Context, authorID uuid.UUID, actor entity.Reactor, subject entity.Subject) (bool, error)
	GetLeaderboard(ctx context.Context, limit int) ([]leaderboardDto.LeaderboardEntry, error)
}

type leaderboardService struct {
	repo   leaderboardRepo.LeaderboardRepository
	users  UserDirectory
	points int
	logger *zap.Logger
}

func NewLeaderboardService(repo leaderboardRepo.LeaderboardRepository, users UserDirectory, pointsLikeReceived int, logger *zap.Logger) LeaderboardService {
	return &leaderboardService{
		repo:   repo,
		users:  users,
		points: pointsLikeReceived,
		logger: logger.Named("leaderboard"),
	}
}

func (s *leaderboardService) AwardLikeReceived(ctx context.Context, authorID uuid.UUID, actor entity.Reactor, subject entity.Subject) (bool, error) {
	if s.points <= 0 {
		return false, nil
	}

	before, err := s.repo.GetUserStats(ctx, authorID)
	if err != nil {
		return false, err
	}

	awarded, err := s.repo.AwardOnce(ctx, &entity.PointLog{
		UserID:      authorID,
		ActionType:  ActionLikeReceived,
		Points:      s.points,
		ReferenceID: subject.String(),
		ActorKey:    actor.Key(),
	}, true)
	if err != nil {
		return false, err
	}
	if !awarded {
		s.logger.Debug("Duplicate like points prevented",
			zap.String("actor", actor.Key()),
			zap.String("subject", subject.String()))
		return false, nil
	}

	previousRank := GetGamificationStatus(before.TotalScoreAllTime).RankName
	newRank := GetGamificationStatus(before.TotalScoreAllTime + s.points).RankName
	if newRank != previousRank {
		s.logger.Info("User ranked up",
			zap.String("user_id", authorID.String()),
			zap.String("from", previousRank),
			zap.String("to", newRank))
	}
	return true, nil
}

func (s *leaderboardService) GetLeaderboard(ctx context.Context, limit int) ([]leaderboardDto.LeaderboardEntry, error) {
	stats, err := s.repo.GetTopUsers(ctx, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(stats))
	for _, stat := range stats {
		ids = append(ids, stat.UserID)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]entity.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	entries := make([]leaderboardDto.LeaderboardEntry, 0, len(stats))
	for _, stat := range stats {
		user, ok := byID[stat.UserID]
		if !ok {
			continue
		}
		entries = append(entries, leaderboardDto.LeaderboardEntry{
			UserID:             user.ID,
			Username:           user.Username,
			DisplayName:        user.DisplayName(),
			AvatarURL:          user.AvatarURL,
			Position:           len(entries) + 1,
			LikesReceived:      stat.LikesReceived,
			GamificationStatus: GetGamificationStatus(stat.TotalScoreAllTime),
		})
	}

	return entries, nil
}

// ReactionListener awards points to authors whose content gets liked.
type ReactionListener struct {
	service LeaderboardService
	content reaction.ContentFinder
}

func NewReactionListener(service LeaderboardService, content reaction.ContentFinder) *ReactionListener {
	return &ReactionListener{service: service, content: content}
}

func (l *ReactionListener) Name() string { return "points" }

func (l *ReactionListener) HandleReaction(ctx context.Context, event reaction.Event) error {
	if event.NewState != entity.StateLiked || event.Reactor.IsAnonymous() || event.Reactor.UserID == nil {
		return nil
	}

	item, err := l.content.FindBySubject(ctx, event.Subject)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil
		}
		return err
	}
	if item.AuthorID == nil || *item.AuthorID == *event.Reactor.UserID {
		return nil
	}

	_, err = l.service.AwardLikeReceived(ctx, *item.AuthorID, event.Reactor, event.Subject)
	return err
}
