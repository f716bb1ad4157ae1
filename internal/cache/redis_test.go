package cache_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesconnect/simples-connect/internal/cache"
	"github.com/simplesconnect/simples-connect/internal/config"
)

func newCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	return cache.NewRedisCache(cfg), mr
}

func TestLikeCount(t *testing.T) {
	ctx := context.Background()
	rc, mr := newCache(t)

	_, ok, err := rc.GetLikeCount(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, rc.SetLikeCount(ctx, "u1", 7))
	n, ok, err := rc.GetLikeCount(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, cache.LikeCountTTL, mr.TTL("likes:count:u1"))

	require.NoError(t, rc.InvalidateLikeCount(ctx, "u1"))
	assert.False(t, mr.Exists("likes:count:u1"))
}

func TestLikeCount_CorruptValueIsMiss(t *testing.T) {
	ctx := context.Background()
	rc, mr := newCache(t)

	require.NoError(t, mr.Set("likes:count:u2", "not-a-number"))
	_, ok, err := rc.GetLikeCount(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPublishReachesSubscriber(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rc, _ := newCache(t)

	sub := rc.Subscribe(ctx, "bob")
	defer sub.Close()
	// wait for the subscription confirmation before publishing
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, rc.Publish(ctx, cache.Event{Type: cache.EventMatchFormed, MatchID: "m1"}, "alice", "bob"))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "events:user:bob", msg.Channel)

	var ev cache.Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
	assert.Equal(t, cache.EventMatchFormed, ev.Type)
	assert.Equal(t, "m1", ev.MatchID)
}
