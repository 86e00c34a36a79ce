package service

import (
	"context"
	"encoding/json"
	"fmt"

	"anoa.com/ulike/internal/entity"
	notifRepo "anoa.com/ulike/internal/modules/notification/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel is the pub/sub channel a user's notifications are published on.
func Channel(userID uuid.UUID) string {
	return fmt.Sprintf("user_notifications:%s", userID.String())
}

type NotificationService interface {
	CreateNotification(ctx context.Context, notification *entity.Notification) error
	GetNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.Notification, error)
	MarkAsRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	Subscribe(ctx context.Context, userID uuid.UUID) *redis.PubSub
}

type notificationService struct {
	repo        notifRepo.NotificationRepository
	redisClient *redis.Client
	logger      *zap.Logger
}

func NewNotificationService(repo notifRepo.NotificationRepository, redisClient *redis.Client, logger *zap.Logger) NotificationService {
	return &notificationService{
		repo:        repo,
		redisClient: redisClient,
		logger:      logger.Named("notifications"),
	}
}

func (s *notificationService) CreateNotification(ctx context.Context, notification *entity.Notification) error {
	// 1. Save to DB
	if err := s.repo.Create(ctx, notification); err != nil {
		return err
	}

	// 2. Publish to Redis if Redis is available
	if s.redisClient != nil {
		payload, err := json.Marshal(notification)
		if err != nil {
			return err
		}
		if err := s.redisClient.Publish(ctx, Channel(notification.UserID), payload).Err(); err != nil {
			// The row is stored; the live push is best effort.
			s.logger.Warn("Failed to publish notification",
				zap.String("user_id", notification.UserID.String()),
				zap.Error(err))
		}
	}

	return nil
}

func (s *notificationService) GetNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.Notification, error) {
	return s.repo.GetByUserID(ctx, userID, limit, offset)
}

func (s *notificationService) MarkAsRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.MarkAsRead(ctx, userID, id)
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

func (s *notificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

// Subscribe returns nil when Redis is not configured.
func (s *notificationService) Subscribe(ctx context.Context, userID uuid.UUID) *redis.PubSub {
	if s.redisClient == nil {
		return nil
	}
	return s.redisClient.Subscribe(ctx, Channel(userID))
}
