package service

import (
	"context"
	"errors"
	"fmt"

	"anoa.com/ulike/internal/entity"
	reaction "anoa.com/ulike/internal/modules/reaction/service"
	"anoa.com/ulike/pkg/apperror"
	"github.com/google/uuid"
)

const titleSnippetLen = 40

// ActorDirectory looks up the user who reacted.
type ActorDirectory interface {
	FindByID(ctx context.Context, id string) (*entity.User, error)
}

// ReactionListener tells authors when someone likes their content for the
// first time.
type ReactionListener struct {
	notifications NotificationService
	content       reaction.ContentFinder
	actors        ActorDirectory
	enabled       bool
}

func NewReactionListener(notifications NotificationService, content reaction.ContentFinder, actors ActorDirectory, enabled bool) *ReactionListener {
	return &ReactionListener{
		notifications: notifications,
		content:       content,
		actors:        actors,
		enabled:       enabled,
	}
}

func (l *ReactionListener) Name() string { return "notification" }

func (l *ReactionListener) HandleReaction(ctx context.Context, event reaction.Event) error {
	// Only a brand new like from a signed-in user notifies. Re-likes after an
	// unlike would otherwise spam the author.
	if !l.enabled || !event.FirstReaction || event.NewState != entity.StateLiked {
		return nil
	}
	if event.Reactor.IsAnonymous() || event.Reactor.UserID == nil {
		return nil
	}
	actorID := *event.Reactor.UserID

	item, err := l.content.FindBySubject(ctx, event.Subject)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil
		}
		return err
	}
	if item.AuthorID == nil || *item.AuthorID == uuid.Nil || *item.AuthorID == actorID {
		return nil
	}

	actorName := "Someone"
	if actor, err := l.actors.FindByID(ctx, actorID.String()); err == nil {
		actorName = actor.DisplayName()
	}

	return l.notifications.CreateNotification(ctx, &entity.Notification{
		UserID:     *item.AuthorID,
		ActorID:    actorID,
		EntityType: event.Subject.Type,
		EntityID:   event.Subject.ID,
		Type:       "like_" + string(event.Subject.Type),
		Message:    message(actorName, event.Subject.Type, item.Title),
		IsRead:     false,
	})
}

func message(actor string, itemType entity.ItemType, title string) string {
	if title == "" {
		return fmt.Sprintf("%s liked your %s", actor, itemType)
	}
	runes := []rune(title)
	if len(runes) > titleSnippetLen {
		title = string(runes[:titleSnippetLen]) + "..."
	}
	return fmt.Sprintf("%s liked your %s: %s", actor, itemType, title)
}
