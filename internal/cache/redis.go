package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/simplesconnect/simples-connect/internal/config"
)

// LikeCountTTL bounds how long a cached like count may outlive its last refresh.
const LikeCountTTL = time.Hour

// Event types published to users.
const (
	EventMatchFormed = "match.formed"
	EventMessageSent = "message.sent"
)

type RedisCache struct {
	Client *redis.Client
}

// Event is the payload pushed to a user's channel.
type Event struct {
	Type    string    `json:"type"`
	MatchID string    `json:"match_id"`
	At      time.Time `json:"at"`
	Data    any       `json:"data,omitempty"`
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

// KeyForLikeCount generates Redis key for a user's like count
func (c *RedisCache) KeyForLikeCount(userID string) string {
	return fmt.Sprintf("likes:count:%s", userID)
}

// SetLikeCount stores count and refreshes the TTL.
func (c *RedisCache) SetLikeCount(ctx context.Context, userID string, count int64) error {
	return c.Set(ctx, c.KeyForLikeCount(userID), count, LikeCountTTL)
}

// GetLikeCount returns the cached count; ok is false on a cache miss.
func (c *RedisCache) GetLikeCount(ctx context.Context, userID string) (int64, bool, error) {
	key := c.KeyForLikeCount(userID)
	val, err := c.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return 0, false, nil // cache miss
	} else if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil // corrupt value counts as a miss
	}
	// refresh TTL on access
	_ = c.Client.Expire(ctx, key, LikeCountTTL).Err()
	return n, true, nil
}

// InvalidateLikeCount drops the cached count so the next read goes to the DB.
func (c *RedisCache) InvalidateLikeCount(ctx context.Context, userID string) error {
	return c.Del(ctx, c.KeyForLikeCount(userID))
}

// ChannelForUser is the pub/sub channel a client subscribes to for its events.
func (c *RedisCache) ChannelForUser(userID string) string {
	return fmt.Sprintf("events:user:%s", userID)
}

// Publish sends ev to every given user's channel.
func (c *RedisCache) Publish(ctx context.Context, ev Event, userIDs ...string) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	pipe := c.Client.Pipeline()
	for _, id := range userIDs {
		pipe.Publish(ctx, c.ChannelForUser(id), payload)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Subscribe opens a subscription to the user's event channel.
func (c *RedisCache) Subscribe(ctx context.Context, userID string) *redis.PubSub {
	return c.Client.Subscribe(ctx, c.ChannelForUser(userID))
}
