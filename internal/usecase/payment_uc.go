package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"telegram-subscription-billing/internal/domain"
	"telegram-subscription-billing/internal/domain/model"
	"telegram-subscription-billing/internal/domain/ports/adapter"
	"telegram-subscription-billing/internal/domain/ports/repository"
	"telegram-subscription-billing/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// PaymentUseCase is the payments orchestrator: the only writer of
// Payment.status. Every state transition funnels through finalize, which
// holds the row lock for the duration of the write.
type PaymentUseCase interface {
	// Start creates a payment for a catalog product and initiates it with the
	// provider. Returns the payment and the client-facing action (redirect
	// URL or invoice link).
	Start(ctx context.Context, userID, productID, currency string, provider model.ProviderID, returnURL string) (*model.Payment, *adapter.ClientAction, error)
	// ProcessCallback parses a provider notification and applies the resulting
	// transition under the payment row lock. Safe to call concurrently with
	// duplicate deliveries of the same notification.
	ProcessCallback(ctx context.Context, provider model.ProviderID, raw []byte) (*model.Payment, error)
	// ChargeSubscription creates a recurring payment for a subscription and
	// charges its saved renewal token. The provider call happens with no
	// transaction held.
	ChargeSubscription(ctx context.Context, sub *model.Subscription) (*model.Payment, error)
}

type paymentUC struct {
	payments  repository.PaymentRepository
	events    repository.PaymentEventRepository
	catalog   adapter.ProductCatalog
	providers map[model.ProviderID]adapter.PaymentProvider
	subs      adapter.SubscriptionManager
	tm        repository.TransactionManager
	log       *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	events repository.PaymentEventRepository,
	catalog adapter.ProductCatalog,
	providers map[model.ProviderID]adapter.PaymentProvider,
	subs adapter.SubscriptionManager,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *paymentUC {
	ucLog := logger.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{
		payments:  payments,
		events:    events,
		catalog:   catalog,
		providers: providers,
		subs:      subs,
		tm:        tm,
		log:       &ucLog,
	}
}

func (u *paymentUC) provider(id model.ProviderID) (adapter.PaymentProvider, error) {
	p, ok := u.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, id)
	}
	return p, nil
}

func (u *paymentUC) Start(ctx context.Context, userID, productID, currency string, provider model.ProviderID, returnURL string) (*model.Payment, *adapter.ClientAction, error) {
	entry, err := u.catalog.Get(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	price, ok := entry.Product.Price(currency)
	if !ok {
		return nil, nil, fmt.Errorf("%w: product %s has no price in %s", domain.ErrInvalidArgument, productID, currency)
	}
	prov, err := u.provider(provider)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	p := &model.Payment{
		ID:          uuid.NewString(),
		UserID:      userID,
		ProductID:   productID,
		Provider:    provider,
		Amount:      price,
		Currency:    currency,
		Status:      model.PaymentStatusCreated,
		IsRecurring: entry.Product.IsRecurring,
		// The gateway reads this when deciding whether to request a saved
		// payment method or a subscription invoice.
		ProviderMetadata: map[string]any{"product_recurring": entry.Product.IsRecurring},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	// Short transaction: the row plus its CREATED audit event.
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, qx repository.Tx) error {
		if err := u.payments.Save(ctx, qx, p); err != nil {
			return err
		}
		return u.appendEvent(ctx, qx, p, model.PaymentEventCreated, map[string]any{"product_id": productID, "amount": price, "currency": currency})
	})
	if err != nil {
		return nil, nil, err
	}

	// Provider round-trip with no transaction held.
	update, action, provErr := prov.CreatePayment(ctx, p, returnURL)
	if provErr != nil {
		failErr := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, qx repository.Tx) error {
			p.Status = model.PaymentStatusFailed
			p.UpdatedAt = time.Now()
			if err := u.payments.Save(ctx, qx, p); err != nil {
				return err
			}
			return u.appendEvent(ctx, qx, p, model.PaymentEventFailed, map[string]any{"error": provErr.Error()})
		})
		if failErr != nil {
			u.log.Error().Err(failErr).Str("payment_id", p.ID).Msg("failed to record provider initiation failure")
		}
		metrics.IncPayment(string(provider), "failed")
		return nil, nil, fmt.Errorf("create payment with %s: %w", provider, provErr)
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, qx repository.Tx) error {
		update.Apply(p, time.Now())
		if err := u.payments.Save(ctx, qx, p); err != nil {
			return err
		}
		return u.appendEvent(ctx, qx, p, model.PaymentEventInitiated, update.Metadata)
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.IncPayment(string(provider), "initiated")
	u.log.Info().Str("payment_id", p.ID).Str("provider", string(provider)).Int64("amount", price).Msg("payment initiated")
	return p, action, nil
}

func (u *paymentUC) ProcessCallback(ctx context.Context, provider model.ProviderID, raw []byte) (*model.Payment, error) {
	prov, err := u.provider(provider)
	if err != nil {
		return nil, err
	}
	res, err := prov.ProcessCallback(ctx, raw)
	if err != nil {
		return nil, err
	}
	return u.finalize(ctx, res)
}

func (u *paymentUC) ChargeSubscription(ctx context.Context, sub *model.Subscription) (*model.Payment, error) {
	entry, err := u.catalog.Get(ctx, sub.ProductID)
	if err != nil {
		return nil, err
	}
	price, ok := entry.Product.Price(sub.Currency)
	if !ok {
		return nil, fmt.Errorf("%w: product %s has no price in %s", domain.ErrInvalidArgument, sub.ProductID, sub.Currency)
	}
	prov, err := u.provider(sub.Provider)
	if err != nil {
		return nil, err
	}
	if prov.RenewalMode() == model.RenewalNone {
		return nil, fmt.Errorf("%w: provider %s does not renew", domain.ErrInvalidArgument, sub.Provider)
	}

	now := time.Now()
	subID := sub.ID
	p := &model.Payment{
		ID:             uuid.NewString(),
		UserID:         sub.UserID,
		ProductID:      sub.ProductID,
		Provider:       sub.Provider,
		Amount:         price,
		Currency:       sub.Currency,
		Status:         model.PaymentStatusCreated,
		SubscriptionID: &subID,
		IsRecurring:    true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, qx repository.Tx) error {
		if err := u.payments.Save(ctx, qx, p); err != nil {
			return err
		}
		return u.appendEvent(ctx, qx, p, model.PaymentEventCreated, map[string]any{"subscription_id": sub.ID})
	})
	if err != nil {
		return nil, err
	}

	// Charge the saved token between transactions; this may take seconds.
	res, provErr := prov.ChargeRecurring(ctx, p, sub.Recurring)
	if provErr != nil {
		// Source behavior preserved: any charge failure marks the payment
		// FAILED, transport errors included.
		res = &adapter.CallbackResult{
			PaymentID: p.ID,
			EventType: model.PaymentEventFailed,
			Update:    model.PaymentUpdate{Status: model.PaymentStatusFailed},
			Raw:       map[string]any{"error": provErr.Error()},
		}
		if _, err := u.finalize(ctx, res); err != nil {
			u.log.Error().Err(err).Str("payment_id", p.ID).Msg("failed to record recurring charge failure")
		}
		return p, fmt.Errorf("charge recurring with %s: %w", sub.Provider, provErr)
	}

	return u.finalize(ctx, res)
}

// finalize applies a classified provider result to the payment it references.
// It is the single write path shared by callbacks and recurring charges:
// re-fetch under an exclusive row lock, guard terminal states, grant the
// reward at most once, apply the diff, append the audit event. All inside one
// transaction holding the lock.
func (u *paymentUC) finalize(ctx context.Context, res *adapter.CallbackResult) (*model.Payment, error) {
	var out *model.Payment
	var duplicate bool
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, qx repository.Tx) error {
		p, err := u.payments.FindByID(ctx, qx, res.PaymentID)
		if err != nil {
			return fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, res.PaymentID)
		}

		if p.Status.Terminal() {
			// Benign duplicate or late delivery. Discard the update, keep the
			// audit trail, report success to the provider.
			raw := map[string]any{"duplicate": true}
			for k, v := range res.Raw {
				raw[k] = v
			}
			if err := u.appendEvent(ctx, qx, p, res.EventType, raw); err != nil {
				return err
			}
			metrics.IncDuplicateCallback(string(p.Provider))
			u.log.Info().Str("payment_id", p.ID).Str("status", string(p.Status)).Msg("callback for terminal payment discarded")
			out = p
			duplicate = true
			return nil
		}

		if res.EventType == model.PaymentEventSucceeded && !p.WasRewarded {
			entry, err := u.catalog.Get(ctx, p.ProductID)
			if err != nil {
				return err
			}
			subID, err := entry.Reward(ctx, qx, p, res.Recurring, u.subs)
			if err != nil {
				return fmt.Errorf("reward payment %s: %w", p.ID, err)
			}
			p.WasRewarded = true
			if subID != "" {
				p.SubscriptionID = &subID
			}
		}

		res.Update.Apply(p, time.Now())
		if err := u.payments.Save(ctx, qx, p); err != nil {
			return err
		}
		if err := u.appendEvent(ctx, qx, p, res.EventType, res.Raw); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	// A discarded duplicate already counted when it first landed; counting it
	// again would double payments_total on every redelivery.
	if !duplicate {
		metrics.IncPayment(string(out.Provider), string(out.Status))
	}
	return out, nil
}

func (u *paymentUC) appendEvent(ctx context.Context, qx repository.Tx, p *model.Payment, t model.PaymentEventType, raw map[string]any) error {
	return u.events.Append(ctx, qx, &model.PaymentEvent{
		ID:          ulid.Make().String(),
		PaymentID:   p.ID,
		Provider:    p.Provider,
		EventType:   t,
		IsRecurring: p.IsRecurring,
		RawData:     raw,
		CreatedAt:   time.Now(),
	})
}
