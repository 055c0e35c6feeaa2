package catalog

import (
	"context"
	"fmt"

	"telegram-subscription-billing/internal/config"
	"telegram-subscription-billing/internal/domain"
	"telegram-subscription-billing/internal/domain/model"
	"telegram-subscription-billing/internal/domain/ports/adapter"
	"telegram-subscription-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ adapter.ProductCatalog = (*StaticCatalog)(nil)

// StaticCatalog is a config-backed product catalog. Pricing is owned by the
// product team; this implementation only satisfies the lookup/reward contract
// the billing core consumes. Every product's reward extends the buyer's
// subscription by the product duration.
type StaticCatalog struct {
	entries map[string]*adapter.CatalogEntry
}

func NewStaticCatalog(products []config.ProductConfig) (*StaticCatalog, error) {
	entries := make(map[string]*adapter.CatalogEntry, len(products))
	for _, pc := range products {
		if pc.ID == "" || pc.DurationDays <= 0 || len(pc.Prices) == 0 {
			return nil, fmt.Errorf("%w: product %q", domain.ErrInvalidArgument, pc.ID)
		}
		product := &model.Product{
			ID:           pc.ID,
			Name:         pc.Name,
			DurationDays: pc.DurationDays,
			Prices:       pc.Prices,
			IsRecurring:  pc.IsRecurring,
		}
		entries[pc.ID] = &adapter.CatalogEntry{
			Product: product,
			Reward:  subscriptionReward(product),
		}
	}
	return &StaticCatalog{entries: entries}, nil
}

func (c *StaticCatalog) Get(ctx context.Context, productID string) (*adapter.CatalogEntry, error) {
	entry, ok := c.entries[productID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	return entry, nil
}

// subscriptionReward returns the reward dispatched on a successful payment
// for product: extend (or create) the buyer's subscription. Runs inside the
// orchestrator's locked transaction.
func subscriptionReward(product *model.Product) adapter.Reward {
	return func(ctx context.Context, qx repository.Tx, payment *model.Payment, rd *model.RecurringDetails, subs adapter.SubscriptionManager) (string, error) {
		s, err := subs.TopUp(ctx, qx, payment.UserID, product, payment.Provider, payment.Currency, rd)
		if err != nil {
			return "", err
		}
		return s.ID, nil
	}
}
