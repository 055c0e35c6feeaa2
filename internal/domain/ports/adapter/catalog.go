package adapter

import (
	"context"

	"telegram-subscription-billing/internal/domain/model"
	"telegram-subscription-billing/internal/domain/ports/repository"
)

// SubscriptionManager is the handle a reward receives to grant entitlements.
// Implemented by the subscription use case; the indirection keeps the
// orchestrator free of per-product effects.
type SubscriptionManager interface {
	// TopUp extends the user's subscription for the product, creating it if
	// absent. Runs inside the caller's transaction (qx).
	TopUp(ctx context.Context, qx repository.Tx, userID string, product *model.Product, provider model.ProviderID, currency string, rd *model.RecurringDetails) (*model.Subscription, error)
}

// Reward performs the domain effect a successful payment grants, typically
// extending a subscription. It runs inside the orchestrator's transaction,
// guarded by the payment's was_rewarded flag.
type Reward func(ctx context.Context, qx repository.Tx, payment *model.Payment, rd *model.RecurringDetails, subs SubscriptionManager) (subscriptionID string, err error)

// CatalogEntry pairs the product lookup data with its reward dispatch.
type CatalogEntry struct {
	Product *model.Product
	Reward  Reward
}

// ProductCatalog is the external pricing/reward collaborator. Returns
// domain.ErrProductNotFound for unknown ids.
type ProductCatalog interface {
	Get(ctx context.Context, productID string) (*CatalogEntry, error)
}
