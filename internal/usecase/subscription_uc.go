package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-subscription-billing/internal/domain"
	"telegram-subscription-billing/internal/domain/model"
	"telegram-subscription-billing/internal/domain/ports/adapter"
	"telegram-subscription-billing/internal/domain/ports/repository"
)

// Compile-time checks
var (
	_ SubscriptionUseCase         = (*subscriptionUC)(nil)
	_ adapter.SubscriptionManager = (*subscriptionUC)(nil)
)

type SubscriptionUseCase interface {
	adapter.SubscriptionManager

	// Cancel marks a subscription canceled with the user's reason and optional
	// feedback. Cancellation is not revocation: access persists until end_date.
	Cancel(ctx context.Context, userID, subscriptionID, reason, feedback string) (*model.Subscription, error)
	Get(ctx context.Context, subscriptionID string) (*model.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Subscription, error)
	// HasAccess reports whether the user currently holds an entitlement for
	// the product (active, or canceled with a window still open).
	HasAccess(ctx context.Context, userID, productID string) (bool, error)
	CountByStatus(ctx context.Context) (map[model.SubscriptionStatus]int, error)
}

type subscriptionUC struct {
	subs repository.SubscriptionRepository
	tm   repository.TransactionManager
	log  *zerolog.Logger
}

func NewSubscriptionUseCase(subs repository.SubscriptionRepository, tm repository.TransactionManager, logger *zerolog.Logger) *subscriptionUC {
	ucLog := logger.With().Str("component", "SubscriptionUC").Logger()
	return &subscriptionUC{subs: subs, tm: tm, log: &ucLog}
}

// TopUp extends the user's subscription for product by its duration, creating
// the subscription if none is current. Runs inside the caller's transaction
// (the orchestrator's locked reward phase), so it takes qx instead of opening
// its own.
func (uc *subscriptionUC) TopUp(ctx context.Context, qx repository.Tx, userID string, product *model.Product, provider model.ProviderID, currency string, rd *model.RecurringDetails) (*model.Subscription, error) {
	now := time.Now()
	s, err := uc.subs.FindCurrentByUserAndProduct(ctx, qx, userID, product.ID)
	switch {
	case err == nil:
		s.Extend(product.DurationDays, now)
	case errors.Is(err, domain.ErrNotFound):
		s, err = model.NewSubscription(uuid.NewString(), userID, product.ID, provider, currency, product.DurationDays, now)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	if rd != nil {
		s.Recurring = rd
	}
	if err := uc.subs.Save(ctx, qx, s); err != nil {
		return nil, err
	}
	uc.log.Info().Str("subscription_id", s.ID).Str("user_id", userID).Time("end_date", s.EndDate).Msg("subscription topped up")
	return s, nil
}

func (uc *subscriptionUC) Cancel(ctx context.Context, userID, subscriptionID, reason, feedback string) (*model.Subscription, error) {
	var out *model.Subscription
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, qx repository.Tx) error {
		s, err := uc.subs.FindByID(ctx, qx, subscriptionID)
		if err != nil {
			return err
		}
		if s.UserID != userID {
			return fmt.Errorf("%w: subscription %s does not belong to user", domain.ErrInvalidArgument, subscriptionID)
		}
		if s.Status != model.SubscriptionStatusActive {
			return fmt.Errorf("%w: subscription %s is %s", domain.ErrInvalidArgument, subscriptionID, s.Status)
		}
		now := time.Now()
		s.Status = model.SubscriptionStatusCanceled
		s.CanceledAt = &now
		s.CancellationReason = reason
		s.CancellationFeedback = feedback
		s.UpdatedAt = now
		if err := uc.subs.Save(ctx, qx, s); err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("subscription_id", subscriptionID).Str("reason", reason).Msg("subscription canceled")
	return out, nil
}

func (uc *subscriptionUC) Get(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	return uc.subs.FindByID(ctx, repository.NoTX, subscriptionID)
}

func (uc *subscriptionUC) ListByUser(ctx context.Context, userID string) ([]*model.Subscription, error) {
	return uc.subs.ListByUser(ctx, repository.NoTX, userID)
}

func (uc *subscriptionUC) HasAccess(ctx context.Context, userID, productID string) (bool, error) {
	s, err := uc.subs.FindCurrentByUserAndProduct(ctx, repository.NoTX, userID, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.HasAccess(time.Now()), nil
}

func (uc *subscriptionUC) CountByStatus(ctx context.Context) (map[model.SubscriptionStatus]int, error) {
	return uc.subs.CountByStatus(ctx, repository.NoTX)
}
