package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"time"

	"anoa.com/ulike/internal/entity"
	reactionRepo "anoa.com/ulike/internal/modules/reaction/repository"
	"anoa.com/ulike/pkg/dto"
	"anoa.com/ulike/pkg/storage"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LikersWrapperClass is the CSS class of the likers list container.
const LikersWrapperClass = "ulike-likers-list"

// UserDirectory resolves reactor user ids to display metadata.
type UserDirectory interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.User, error)
}

type Liker struct {
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	ReactedAt   time.Time `json:"reacted_at"`
}

// LikersList is a rendered page of the users who like a subject.
type LikersList struct {
	Items        []Liker            `json:"items"`
	HTML         string             `json:"html"`
	WrapperClass string             `json:"wrapper_class"`
	Hidden       bool               `json:"hidden"`
	Meta         dto.PaginationMeta `json:"meta"`
}

var likersTemplate = template.Must(template.New("likers").Parse(
	`<ul class="tiles">{{range .}}<li><a class="user-tooltip" title="{{.DisplayName}}" data-user="{{.Username}}">` +
		`{{if .AvatarURL}}<img src="{{.AvatarURL}}" alt="{{.DisplayName}}" width="32" height="32">{{else}}{{.DisplayName}}{{end}}` +
		`</a></li>{{end}}</ul>`))

type LikersBuilder struct {
	repo     reactionRepo.ReactionRepository
	users    UserDirectory
	rdb      *redis.Client
	policy   *bluemonday.Policy
	avatars  storage.Thumbnailer
	pageSize int
	cacheTTL time.Duration
	logger   *zap.Logger
}

func NewLikersBuilder(repo reactionRepo.ReactionRepository, users UserDirectory, rdb *redis.Client, pageSize int, cacheTTL time.Duration, logger *zap.Logger) *LikersBuilder {
	return &LikersBuilder{
		repo:     repo,
		users:    users,
		rdb:      rdb,
		policy:   bluemonday.StrictPolicy(),
		pageSize: pageSize,
		cacheTTL: cacheTTL,
		logger:   logger.Named("likers"),
	}
}

// UseThumbnails sizes avatar URLs before they are cached and rendered.
func (b *LikersBuilder) UseThumbnails(t storage.Thumbnailer) {
	b.avatars = t
}

func likersKey(subject entity.Subject, page int) string {
	return fmt.Sprintf("likers:%s:%d:%d", subject.Type, subject.ID, page)
}

// Build returns one page of likers. A subject nobody likes yields a hidden,
// empty list. refresh skips the cached copy and rewrites it.
func (b *LikersBuilder) Build(ctx context.Context, subject entity.Subject, page int, refresh bool) (*LikersList, error) {
	if page < 1 {
		page = 1
	}

	// 1. Try Redis
	if !refresh {
		if cached, ok := b.cached(ctx, subject, page); ok {
			return cached, nil
		}
	}

	// 2. Build from the store
	list, err := b.build(ctx, subject, page)
	if err != nil {
		return nil, err
	}

	// 3. Repopulate Redis
	if b.rdb != nil && b.cacheTTL > 0 {
		if data, err := json.Marshal(list); err == nil {
			if err := b.rdb.Set(ctx, likersKey(subject, page), data, b.cacheTTL).Err(); err != nil {
				b.logger.Warn("Failed to cache likers", zap.String("subject", subject.String()), zap.Error(err))
			}
		}
	}

	return list, nil
}

func (b *LikersBuilder) cached(ctx context.Context, subject entity.Subject, page int) (*LikersList, bool) {
	if b.rdb == nil {
		return nil, false
	}
	data, err := b.rdb.Get(ctx, likersKey(subject, page)).Bytes()
	if err != nil {
		return nil, false
	}
	var list LikersList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, false
	}
	return &list, true
}

func (b *LikersBuilder) build(ctx context.Context, subject entity.Subject, page int) (*LikersList, error) {
	entries, total, err := b.repo.ListReactors(ctx, subject, entity.StateLiked, reactionRepo.Page{Number: page, Size: b.pageSize})
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		if e.Reactor.UserID != nil {
			ids = append(ids, *e.Reactor.UserID)
		}
	}

	byID := make(map[uuid.UUID]entity.User, len(ids))
	if len(ids) > 0 {
		users, err := b.users.FindByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			byID[u.ID] = u
		}
	}

	items := make([]Liker, 0, len(entries))
	for _, e := range entries {
		if e.Reactor.UserID == nil {
			continue
		}
		user, ok := byID[*e.Reactor.UserID]
		if !ok {
			// Deleted accounts keep their reaction rows.
			continue
		}
		liker := Liker{
			UserID:      user.ID,
			Username:    b.policy.Sanitize(user.Username),
			DisplayName: b.policy.Sanitize(user.DisplayName()),
			ReactedAt:   e.ReactedAt,
		}
		if user.AvatarURL != nil {
			liker.AvatarURL = *user.AvatarURL
			if b.avatars != nil {
				liker.AvatarURL = b.avatars.Thumbnail(liker.AvatarURL)
			}
		}
		items = append(items, liker)
	}

	list := &LikersList{
		Items:        items,
		WrapperClass: LikersWrapperClass,
		Hidden:       len(items) == 0,
		Meta:         dto.NewPaginationMeta(page, b.pageSize, total),
	}
	if list.Hidden {
		return list, nil
	}

	var buf bytes.Buffer
	if err := likersTemplate.Execute(&buf, items); err != nil {
		return nil, fmt.Errorf("render likers: %w", err)
	}
	list.HTML = buf.String()
	return list, nil
}

// Invalidate drops every cached page of a subject.
func (b *LikersBuilder) Invalidate(ctx context.Context, subject entity.Subject) error {
	if b.rdb == nil {
		return nil
	}

	pattern := fmt.Sprintf("likers:%s:%d:*", subject.Type, subject.ID)
	iter := b.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return b.rdb.Del(ctx, keys...).Err()
}

func (b *LikersBuilder) Name() string { return "likers_cache" }

// HandleReaction invalidates cached pages whenever the liked set changes.
func (b *LikersBuilder) HandleReaction(ctx context.Context, event Event) error {
	if event.OldState != entity.StateLiked && event.NewState != entity.StateLiked {
		return nil
	}
	return b.Invalidate(ctx, event.Subject)
}
