package repository

import (
	"context"
	"time"

	"telegram-subscription-billing/internal/domain/model"
)

// FailedWebhookRepository is the dead-letter store. Entries are created by
// the ingress on processing failures and read by operators; they are never
// auto-deleted.
type FailedWebhookRepository interface {
	Save(ctx context.Context, qx Tx, fw *model.FailedWebhook) error
	FindByID(ctx context.Context, qx Tx, id string) (*model.FailedWebhook, error)
	ListUnresolved(ctx context.Context, qx Tx, limit int) ([]*model.FailedWebhook, error)
	MarkResolved(ctx context.Context, qx Tx, id string, at time.Time) error
	IncrementRetry(ctx context.Context, qx Tx, id string) error
}
