package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"yt-elt/infrastructure/logger"

	"github.com/redis/go-redis/v9"
)

const playlistKeyPrefix = "yt-elt:playlist:"

// NewCache connects to Redis and verifies the connection with PING.
func NewCache(ctx context.Context, addr, username, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
		DB:       0,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	logger.GetLogger().WithField("addr", addr).Info("Redis connected")
	return rdb, nil
}

// PlaylistCache stores handle -> uploads playlist id.
type PlaylistCache struct {
	rdb *redis.Client
}

func NewPlaylistCache(rdb *redis.Client) *PlaylistCache {
	return &PlaylistCache{rdb: rdb}
}

func playlistKey(handle string) string {
	return playlistKeyPrefix + strings.ToLower(strings.TrimPrefix(handle, "@"))
}

func (c *PlaylistCache) GetPlaylistID(ctx context.Context, handle string) (string, bool, error) {
	if c.rdb == nil {
		return "", false, nil
	}
	val, err := c.rdb.Get(ctx, playlistKey(handle)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, val != "", nil
}

func (c *PlaylistCache) SetPlaylistID(ctx context.Context, handle, playlistID string, ttl time.Duration) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Set(ctx, playlistKey(handle), playlistID, ttl).Err()
}

func (c *PlaylistCache) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
