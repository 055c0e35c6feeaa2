package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"telegram-subscription-billing/internal/domain/model"
	"telegram-subscription-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

// StatsUseCase aggregates billing figures for the ops API.
type StatsUseCase interface {
	Summary(ctx context.Context) (*BillingSummary, error)
}

// BillingSummary is a point-in-time revenue and subscription snapshot.
// Revenue figures are sums of succeeded payment amounts in minor units,
// mixed across currencies; the ops UI splits them if it cares.
type BillingSummary struct {
	RevenueDay    int64
	RevenueWeek   int64
	RevenueMonth  int64
	Subscriptions map[model.SubscriptionStatus]int
}

type statsUC struct {
	payments repository.PaymentRepository
	subs     repository.SubscriptionRepository
	log      *zerolog.Logger
}

func NewStatsUseCase(payments repository.PaymentRepository, subs repository.SubscriptionRepository, logger *zerolog.Logger) *statsUC {
	ucLog := logger.With().Str("component", "StatsUC").Logger()
	return &statsUC{payments: payments, subs: subs, log: &ucLog}
}

func (uc *statsUC) Summary(ctx context.Context) (*BillingSummary, error) {
	out := &BillingSummary{}
	periods := []struct {
		name string
		dst  *int64
	}{
		{"day", &out.RevenueDay},
		{"week", &out.RevenueWeek},
		{"month", &out.RevenueMonth},
	}
	for _, p := range periods {
		sum, err := uc.payments.SumSucceededByPeriod(ctx, repository.NoTX, p.name)
		if err != nil {
			return nil, fmt.Errorf("sum revenue for %s: %w", p.name, err)
		}
		*p.dst = sum
	}

	counts, err := uc.subs.CountByStatus(ctx, repository.NoTX)
	if err != nil {
		return nil, fmt.Errorf("count subscriptions: %w", err)
	}
	out.Subscriptions = counts
	return out, nil
}
