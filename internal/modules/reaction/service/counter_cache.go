package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"anoa.com/ulike/internal/entity"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	pendingSubjectsKey = "pending:reaction_subjects"
	countsTTL          = 7 * 24 * time.Hour
)

// setCountsScript writes a snapshot unless the cached one has a higher
// counter row version.
var setCountsScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
if cur and tonumber(cur) > tonumber(ARGV[3]) then
	return 0
end
redis.call('HSET', KEYS[1], 'like', ARGV[1], 'dislike', ARGV[2], 'version', ARGV[3])
redis.call('EXPIRE', KEYS[1], ARGV[4])
return 1
`)

// StateUpdate is the payload broadcast to live widgets after a toggle.
type StateUpdate struct {
	Type         entity.ItemType `json:"type"`
	ID           uint64          `json:"id"`
	LikeCount    int64           `json:"like_count"`
	DislikeCount int64           `json:"dislike_count"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CounterCache mirrors subject counters into Redis and fans state updates
// out over pub/sub. Every method is a no-op on a nil cache or without a
// Redis client.
type CounterCache struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewCounterCache(rdb *redis.Client, logger *zap.Logger) *CounterCache {
	return &CounterCache{rdb: rdb, logger: logger.Named("counter_cache")}
}

func countsKey(subject entity.Subject) string {
	return fmt.Sprintf("counts:%s:%d", subject.Type, subject.ID)
}

// UpdatesChannel is the pub/sub channel of a subject.
func UpdatesChannel(subject entity.Subject) string {
	return fmt.Sprintf("reaction_updates:%s:%d", subject.Type, subject.ID)
}

// Get returns cached counters; ok is false on a miss.
func (c *CounterCache) Get(ctx context.Context, subject entity.Subject) (*entity.ReactionCounter, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}

	val, err := c.rdb.HGetAll(ctx, countsKey(subject)).Result()
	if err != nil || len(val) == 0 {
		return nil, false
	}

	likes, err := strconv.ParseInt(val["like"], 10, 64)
	if err != nil {
		return nil, false
	}
	dislikes, err := strconv.ParseInt(val["dislike"], 10, 64)
	if err != nil {
		return nil, false
	}
	version, _ := strconv.ParseInt(val["version"], 10, 64)

	return &entity.ReactionCounter{
		ItemType:     subject.Type,
		ItemID:       subject.ID,
		LikeCount:    likes,
		DislikeCount: dislikes,
		Version:      version,
	}, true
}

// Set caches the counters of a subject. Listeners finish in any order, so a
// snapshot older than the cached one is dropped.
func (c *CounterCache) Set(ctx context.Context, counter *entity.ReactionCounter) error {
	if c == nil || c.rdb == nil {
		return nil
	}

	key := countsKey(entity.Subject{Type: counter.ItemType, ID: counter.ItemID})
	written, err := setCountsScript.Run(ctx, c.rdb, []string{key},
		counter.LikeCount, counter.DislikeCount, counter.Version, int64(countsTTL/time.Second)).Int()
	if err != nil {
		return err
	}
	if written == 0 {
		c.logger.Debug("Skipped stale counter snapshot",
			zap.String("key", key),
			zap.Int64("version", counter.Version))
	}
	return nil
}

// MarkPending queues a subject for reconciliation.
func (c *CounterCache) MarkPending(ctx context.Context, subject entity.Subject) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.SAdd(ctx, pendingSubjectsKey, subject.String()).Err()
}

// PopPending removes up to n subjects from the reconciliation queue.
func (c *CounterCache) PopPending(ctx context.Context, n int64) ([]entity.Subject, error) {
	if c == nil || c.rdb == nil {
		return nil, nil
	}

	members, err := c.rdb.SPopN(ctx, pendingSubjectsKey, n).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	subjects := make([]entity.Subject, 0, len(members))
	for _, m := range members {
		subject, err := entity.ParseSubject(m)
		if err != nil {
			c.logger.Warn("Dropping malformed pending subject", zap.String("member", m), zap.Error(err))
			continue
		}
		subjects = append(subjects, subject)
	}
	return subjects, nil
}

// Publish broadcasts the counters of a subject to its live widgets.
func (c *CounterCache) Publish(ctx context.Context, counter *entity.ReactionCounter) error {
	if c == nil || c.rdb == nil {
		return nil
	}

	subject := entity.Subject{Type: counter.ItemType, ID: counter.ItemID}
	payload, err := json.Marshal(StateUpdate{
		Type:         counter.ItemType,
		ID:           counter.ItemID,
		LikeCount:    counter.LikeCount,
		DislikeCount: counter.DislikeCount,
		UpdatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return c.rdb.Publish(ctx, UpdatesChannel(subject), payload).Err()
}

// Subscribe opens a pub/sub subscription to a subject's updates. It returns
// nil without a Redis client.
func (c *CounterCache) Subscribe(ctx context.Context, subject entity.Subject) *redis.PubSub {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Subscribe(ctx, UpdatesChannel(subject))
}

func (c *CounterCache) Name() string { return "counter_cache" }

// HandleReaction keeps the cache and live widgets in step with the store.
func (c *CounterCache) HandleReaction(ctx context.Context, event Event) error {
	counter := event.Counters
	if err := c.Set(ctx, &counter); err != nil {
		return fmt.Errorf("cache counters: %w", err)
	}
	if err := c.MarkPending(ctx, event.Subject); err != nil {
		return fmt.Errorf("mark pending: %w", err)
	}
	if err := c.Publish(ctx, &counter); err != nil {
		return fmt.Errorf("publish update: %w", err)
	}
	return nil
}
