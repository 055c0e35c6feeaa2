package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"telegram-subscription-billing/internal/domain/model"
	"telegram-subscription-billing/internal/domain/ports/repository"
	"telegram-subscription-billing/internal/infra/metrics"
	red "telegram-subscription-billing/internal/infra/redis"
)

var _ repository.UserRepository = (*userRepoCacheDecorator)(nil)

// userRepoCacheDecorator caches user lookups in Redis. The billing core only
// reads users (notification text), so entries are safe to cache for the TTL.
type userRepoCacheDecorator struct {
	inner repository.UserRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewUserRepoCacheDecorator(inner repository.UserRepository, cache red.RedisClient, ttl time.Duration) repository.UserRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &userRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func (d *userRepoCacheDecorator) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.User, error) {
	return d.fetch(ctx, fmt.Sprintf("user:id:%s", id), func() (*model.User, error) {
		return d.inner.FindByID(ctx, qx, id)
	})
}

func (d *userRepoCacheDecorator) FindByTelegramID(ctx context.Context, qx repository.Tx, tgID int64) (*model.User, error) {
	return d.fetch(ctx, fmt.Sprintf("user:tgid:%d", tgID), func() (*model.User, error) {
		return d.inner.FindByTelegramID(ctx, qx, tgID)
	})
}

func (d *userRepoCacheDecorator) fetch(ctx context.Context, key string, load func() (*model.User, error)) (*model.User, error) {
	val, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		var user model.User
		if json.Unmarshal([]byte(val), &user) == nil {
			metrics.IncCacheRequest("user", "hit")
			return &user, nil
		}
		// Corrupt entry. Drop it and reload from the source of truth.
		_ = d.cache.Del(ctx, key)
		metrics.IncCacheRequest("user", "miss")
	case errors.Is(err, red.Nil):
		metrics.IncCacheRequest("user", "miss")
	default:
		// Anything but a plain miss means the cache itself is unhealthy.
		metrics.IncCacheRequest("user", "error")
	}

	user, err := load()
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(user); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return user, nil
}
