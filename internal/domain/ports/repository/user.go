package repository

import (
	"context"

	"telegram-subscription-billing/internal/domain/model"
)

// UserRepository is a read-only collaborator here; the billing core only
// resolves users for notification text.
type UserRepository interface {
	FindByID(ctx context.Context, qx Tx, id string) (*model.User, error)
	FindByTelegramID(ctx context.Context, qx Tx, tgID int64) (*model.User, error)
}
