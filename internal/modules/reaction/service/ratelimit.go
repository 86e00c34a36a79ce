package service

import (
	"context"
	"fmt"
	"time"

	"anoa.com/ulike/internal/entity"
	"anoa.com/ulike/pkg/apperror"
	"github.com/redis/go-redis/v9"
)

// ActionToggle is the rate limited action name of a reaction toggle.
const ActionToggle = "toggle"

// RateLimiter throttles a reactor to one action per window using SETNX.
// A nil Redis client or a zero window disables it.
type RateLimiter struct {
	rdb *redis.Client
}

func NewRateLimiter(rdb *redis.Client) *RateLimiter {
	return &RateLimiter{rdb: rdb}
}

func rateLimitKey(reactor entity.Reactor, action string) string {
	return fmt.Sprintf("rate_limit:%s:%s", reactor.Key(), action)
}

// Allow reserves the window for reactor and reports whether it was free.
func (l *RateLimiter) Allow(ctx context.Context, reactor entity.Reactor, action string, window time.Duration) (bool, error) {
	if l.rdb == nil || window <= 0 {
		return true, nil
	}

	wasSet, err := l.rdb.SetNX(ctx, rateLimitKey(reactor, action), "locked", window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit in redis: %w", err)
	}
	return wasSet, nil
}

// Check is Allow with the refusal turned into an error carrying the wait.
func (l *RateLimiter) Check(ctx context.Context, reactor entity.Reactor, action string, window time.Duration) error {
	allowed, err := l.Allow(ctx, reactor, action, window)
	if err != nil {
		return err
	}
	if allowed {
		return nil
	}

	ttl, _ := l.TTL(ctx, reactor, action)
	return fmt.Errorf("%w: try again in %s", apperror.ErrRateLimitExceeded, ttl.Round(time.Millisecond))
}

func (l *RateLimiter) TTL(ctx context.Context, reactor entity.Reactor, action string) (time.Duration, error) {
	if l.rdb == nil {
		return 0, nil
	}
	return l.rdb.TTL(ctx, rateLimitKey(reactor, action)).Result()
}

// Clear releases the window, e.g. when the guarded action failed.
func (l *RateLimiter) Clear(ctx context.Context, reactor entity.Reactor, action string) error {
	if l.rdb == nil {
		return nil
	}
	return l.rdb.Del(ctx, rateLimitKey(reactor, action)).Err()
}
