package repository

import (
	"context"
	"time"

	"telegram-subscription-billing/internal/domain/model"
)

type SubscriptionRepository interface {
	Save(ctx context.Context, qx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, qx Tx, id string) (*model.Subscription, error)
	// FindCurrentByUserAndProduct returns the user's non-expired subscription
	// for a product (active or canceled-but-still-entitled), or ErrNotFound.
	FindCurrentByUserAndProduct(ctx context.Context, qx Tx, userID, productID string) (*model.Subscription, error)
	ListByUser(ctx context.Context, qx Tx, userID string) ([]*model.Subscription, error)
	// ListExpiring returns active subscriptions with end_date <= until.
	ListExpiring(ctx context.Context, qx Tx, until time.Time, limit int) ([]*model.Subscription, error)
	// ListOutdated returns active or canceled subscriptions with
	// end_date <= now, i.e. windows that should be flipped to expired.
	ListOutdated(ctx context.Context, qx Tx, now time.Time, limit int) ([]*model.Subscription, error)
	CountByStatus(ctx context.Context, qx Tx) (map[model.SubscriptionStatus]int, error)
}
