//go:build !integration

package postgres

import (
	"context"
	"time"

	"telegram-subscription-billing/internal/domain"
	"telegram-subscription-billing/internal/domain/model"
	"telegram-subscription-billing/internal/domain/ports/repository"
)

// mockRedisClient implements red.RedisClient for decorator tests.
type mockRedisClient struct {
	GetFunc func(ctx context.Context, key string) (string, error)
	SetFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc func(ctx context.Context, keys ...string) error
}

func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return "", domain.ErrNotFound
}

func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, expiration)
	}
	return nil
}

func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc != nil {
		return m.DelFunc(ctx, keys...)
	}
	return nil
}

func (m *mockRedisClient) Close() error { return nil }

// mockInnerUserRepo is the wrapped repository for decorator tests.
type mockInnerUserRepo struct {
	FindByIDFunc         func(ctx context.Context, qx repository.Tx, id string) (*model.User, error)
	FindByTelegramIDFunc func(ctx context.Context, qx repository.Tx, tgID int64) (*model.User, error)
}

func (m *mockInnerUserRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, qx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockInnerUserRepo) FindByTelegramID(ctx context.Context, qx repository.Tx, tgID int64) (*model.User, error) {
	if m.FindByTelegramIDFunc != nil {
		return m.FindByTelegramIDFunc(ctx, qx, tgID)
	}
	return nil, domain.ErrNotFound
}
