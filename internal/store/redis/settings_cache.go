package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/BibekSapkota1/Share-Project/internal/model"
)

const settingsKeyPrefix = "settings:user:"

func settingsKey(userID int64) string {
	return fmt.Sprintf("%s%d", settingsKeyPrefix, userID)
}

// SettingsCache is a read-through model.SettingsProvider. Redis failures are
// logged and fall through to the inner provider; they never fail a request.
type SettingsCache struct {
	client *Client
	inner  model.SettingsProvider
	ttl    time.Duration
}

// NewSettingsCache caches inner's results for ttl.
func NewSettingsCache(client *Client, inner model.SettingsProvider, ttl time.Duration) *SettingsCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &SettingsCache{client: client, inner: inner, ttl: ttl}
}

var _ model.SettingsProvider = (*SettingsCache)(nil)

// GetSettings returns cached settings or resolves and caches them.
func (c *SettingsCache) GetSettings(ctx context.Context, userID int64) (model.Settings, error) {
	key := settingsKey(userID)

	var raw []byte
	err := c.client.breaker.Execute(ctx, func(ctx context.Context) error {
		b, err := c.client.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		raw = b
		return err
	})
	if err != nil {
		slog.Warn("settings cache read failed", "user_id", userID, "err", err)
	}
	if len(raw) > 0 {
		var s model.Settings
		if jerr := json.Unmarshal(raw, &s); jerr == nil && s.Validate() == nil {
			return s, nil
		}
		slog.Warn("settings cache entry discarded", "user_id", userID)
	}

	s, err := c.inner.GetSettings(ctx, userID)
	if err != nil {
		return model.Settings{}, err
	}

	payload, _ := json.Marshal(s)
	if err := c.client.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.client.rdb.Set(ctx, key, payload, c.ttl).Err()
	}); err != nil {
		slog.Warn("settings cache write failed", "user_id", userID, "err", err)
	}
	return s, nil
}

// Invalidate drops one user's cached settings.
func (c *SettingsCache) Invalidate(ctx context.Context, userID int64) error {
	return c.client.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.client.rdb.Del(ctx, settingsKey(userID)).Err()
	})
}

// InvalidateAll drops every cached user's settings, e.g. after a global
// default changes.
func (c *SettingsCache) InvalidateAll(ctx context.Context) error {
	return c.client.breaker.Execute(ctx, func(ctx context.Context) error {
		iter := c.client.rdb.Scan(ctx, 0, settingsKeyPrefix+"*", 100).Iterator()
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
		return c.client.rdb.Del(ctx, keys...).Err()
	})
}
