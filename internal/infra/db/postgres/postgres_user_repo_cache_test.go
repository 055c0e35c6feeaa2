//go:build !integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"telegram-subscription-billing/internal/domain"
	"telegram-subscription-billing/internal/domain/model"
	"telegram-subscription-billing/internal/domain/ports/repository"
)

func TestUserRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: "user-123", TelegramID: 98765, Username: "alice"}

	t.Run("miss loads from the inner repo and warms the cache", func(t *testing.T) {
		innerCalled := false
		var setKey string
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				return "", redis.Nil
			},
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				setKey = key
				return nil
			},
		}
		inner := &mockInnerUserRepo{
			FindByIDFunc: func(ctx context.Context, qx repository.Tx, id string) (*model.User, error) {
				innerCalled = true
				return user, nil
			},
		}
		decorator := NewUserRepoCacheDecorator(inner, mockRedis, time.Minute)

		got, err := decorator.FindByID(ctx, repository.NoTX, "user-123")
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if !innerCalled {
			t.Error("inner repository should be called on a cache miss")
		}
		if got.Username != "alice" {
			t.Errorf("unexpected user %+v", got)
		}
		if setKey != "user:id:user-123" {
			t.Errorf("unexpected cache key %q", setKey)
		}
	})

	t.Run("hit skips the inner repo", func(t *testing.T) {
		cached, _ := json.Marshal(user)
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				return string(cached), nil
			},
		}
		inner := &mockInnerUserRepo{
			FindByTelegramIDFunc: func(ctx context.Context, qx repository.Tx, tgID int64) (*model.User, error) {
				t.Error("inner repository must not be called on a cache hit")
				return nil, domain.ErrNotFound
			},
		}
		decorator := NewUserRepoCacheDecorator(inner, mockRedis, time.Minute)

		got, err := decorator.FindByTelegramID(ctx, repository.NoTX, 98765)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if got.ID != "user-123" {
			t.Errorf("unexpected user %+v", got)
		}
	})

	t.Run("corrupt entry is dropped and reloaded", func(t *testing.T) {
		var deletedKey string
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				return "{not json", nil
			},
			DelFunc: func(ctx context.Context, keys ...string) error {
				if len(keys) == 1 {
					deletedKey = keys[0]
				}
				return nil
			},
		}
		inner := &mockInnerUserRepo{
			FindByIDFunc: func(ctx context.Context, qx repository.Tx, id string) (*model.User, error) {
				return user, nil
			},
		}
		decorator := NewUserRepoCacheDecorator(inner, mockRedis, time.Minute)

		got, err := decorator.FindByID(ctx, repository.NoTX, "user-123")
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if got.Username != "alice" {
			t.Errorf("unexpected user %+v", got)
		}
		if deletedKey != "user:id:user-123" {
			t.Errorf("expected the corrupt key deleted, got %q", deletedKey)
		}
	})

	t.Run("cache outage falls back to the inner repo", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				return "", errors.New("connection refused")
			},
		}
		inner := &mockInnerUserRepo{
			FindByIDFunc: func(ctx context.Context, qx repository.Tx, id string) (*model.User, error) {
				return user, nil
			},
		}
		decorator := NewUserRepoCacheDecorator(inner, mockRedis, time.Minute)

		got, err := decorator.FindByID(ctx, repository.NoTX, "user-123")
		if err != nil {
			t.Fatalf("expected the read served from postgres, got: %v", err)
		}
		if got.ID != "user-123" {
			t.Errorf("unexpected user %+v", got)
		}
	})

	t.Run("inner repo errors pass through", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				return "", redis.Nil
			},
		}
		inner := &mockInnerUserRepo{
			FindByIDFunc: func(ctx context.Context, qx repository.Tx, id string) (*model.User, error) {
				return nil, domain.ErrNotFound
			},
		}
		decorator := NewUserRepoCacheDecorator(inner, mockRedis, time.Minute)

		if _, err := decorator.FindByID(ctx, repository.NoTX, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got: %v", err)
		}
	})
}
