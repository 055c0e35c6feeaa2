package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-subscription-billing/internal/domain/model"
	"telegram-subscription-billing/internal/domain/ports/adapter"
	"telegram-subscription-billing/internal/domain/ports/repository"
	"telegram-subscription-billing/internal/infra/metrics"
)

// Compile-time check
var _ LifecycleUseCase = (*lifecycleUC)(nil)

// LifecycleUseCase drives the two background subscription jobs. Both process
// one subscription per transaction: a failure on row N never rolls back or
// blocks rows N+1..M, and no provider call happens while a transaction or row
// lock is held.
type LifecycleUseCase interface {
	// ChargeExpiring renews active subscriptions whose window closes within
	// horizon. Manual providers are charged; managed providers are only
	// reported (the platform renews them itself); gifts are skipped.
	ChargeExpiring(ctx context.Context, horizon time.Duration) (*RenewalReport, error)
	// ExpireOutdated flips active/canceled subscriptions whose end_date has
	// passed to expired, one short transaction per row.
	ExpireOutdated(ctx context.Context, now time.Time) (*ExpiryReport, error)
}

type RenewalReport struct {
	Charged int
	Failed  int
	Managed int
	Skipped int
	// FailedUsers collects display names for the consolidated admin alert.
	FailedUsers []string
}

type ExpiryReport struct {
	Expired int
	Failed  int
	// Lines are per-subscription display rows for the admin summary.
	Lines []string
}

const batchLimit = 500

type lifecycleUC struct {
	subs      repository.SubscriptionRepository
	users     repository.UserRepository
	catalog   adapter.ProductCatalog
	payments  PaymentUseCase
	providers map[model.ProviderID]adapter.PaymentProvider
	tm        repository.TransactionManager
	notifier  adapter.AdminNotifier
	log       *zerolog.Logger
}

func NewLifecycleUseCase(
	subs repository.SubscriptionRepository,
	users repository.UserRepository,
	catalog adapter.ProductCatalog,
	payments PaymentUseCase,
	providers map[model.ProviderID]adapter.PaymentProvider,
	tm repository.TransactionManager,
	notifier adapter.AdminNotifier,
	logger *zerolog.Logger,
) *lifecycleUC {
	ucLog := logger.With().Str("component", "LifecycleUC").Logger()
	return &lifecycleUC{
		subs:      subs,
		users:     users,
		catalog:   catalog,
		payments:  payments,
		providers: providers,
		tm:        tm,
		notifier:  notifier,
		log:       &ucLog,
	}
}

func (uc *lifecycleUC) ChargeExpiring(ctx context.Context, horizon time.Duration) (*RenewalReport, error) {
	until := time.Now().Add(horizon)
	// Read-only scan; no lock survives past this call.
	expiring, err := uc.subs.ListExpiring(ctx, repository.NoTX, until, batchLimit)
	if err != nil {
		return nil, fmt.Errorf("list expiring subscriptions: %w", err)
	}

	report := &RenewalReport{}
	for _, sub := range expiring {
		prov, ok := uc.providers[sub.Provider]
		if !ok {
			report.Skipped++
			uc.log.Warn().Str("subscription_id", sub.ID).Str("provider", string(sub.Provider)).Msg("no provider registered, skipping renewal")
			continue
		}
		switch prov.RenewalMode() {
		case model.RenewalNone:
			report.Skipped++
		case model.RenewalManaged:
			// The platform renews on its own schedule; we only watch for the
			// eventual callback. Report, never write.
			report.Managed++
			uc.log.Info().Str("subscription_id", sub.ID).Time("end_date", sub.EndDate).Msg("platform-managed renewal expected")
		case model.RenewalManual:
			uc.chargeOne(ctx, sub, report)
		}
	}

	metrics.ObserveRenewalRun(report.Charged, report.Failed, report.Managed)
	// Consolidated notification, outside any DB transaction.
	uc.notifyRenewal(ctx, report)
	return report, nil
}

// chargeOne renews a single subscription. Errors are absorbed into the report
// so one provider outage cannot block the batch.
func (uc *lifecycleUC) chargeOne(ctx context.Context, sub *model.Subscription, report *RenewalReport) {
	if sub.Recurring == nil || sub.Recurring.SavedMethodID == "" {
		report.Failed++
		report.FailedUsers = append(report.FailedUsers, uc.displayName(ctx, sub.UserID))
		uc.log.Warn().Str("subscription_id", sub.ID).Msg("no saved renewal token, cannot charge")
		return
	}
	// ChargeSubscription does the transaction splitting itself: short insert
	// tx, unlocked provider call, short terminal-guarded finalize tx.
	if _, err := uc.payments.ChargeSubscription(ctx, sub); err != nil {
		report.Failed++
		report.FailedUsers = append(report.FailedUsers, uc.displayName(ctx, sub.UserID))
		uc.log.Error().Err(err).Str("subscription_id", sub.ID).Msg("recurring charge failed")
		return
	}
	report.Charged++
}

func (uc *lifecycleUC) ExpireOutdated(ctx context.Context, now time.Time) (*ExpiryReport, error) {
	outdated, err := uc.subs.ListOutdated(ctx, repository.NoTX, now, batchLimit)
	if err != nil {
		return nil, fmt.Errorf("list outdated subscriptions: %w", err)
	}

	report := &ExpiryReport{}
	for _, sub := range outdated {
		// One short transaction per subscription; continue on error.
		err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, qx repository.Tx) error {
			sub.Status = model.SubscriptionStatusExpired
			if sub.CanceledAt == nil {
				t := now
				sub.CanceledAt = &t
			}
			sub.UpdatedAt = now
			return uc.subs.Save(ctx, qx, sub)
		})
		if err != nil {
			report.Failed++
			uc.log.Error().Err(err).Str("subscription_id", sub.ID).Msg("failed to expire subscription")
			continue
		}
		report.Expired++
		report.Lines = append(report.Lines, uc.expiryLine(ctx, sub))
	}

	metrics.ObserveExpiryRun(report.Expired, report.Failed)
	if counts, err := uc.subs.CountByStatus(ctx, repository.NoTX); err == nil {
		metrics.SetSubscriptionsTotal(counts)
	}
	uc.notifyExpiry(ctx, report)
	return report, nil
}

func (uc *lifecycleUC) expiryLine(ctx context.Context, sub *model.Subscription) string {
	name := sub.ProductID
	days := 0
	if entry, err := uc.catalog.Get(ctx, sub.ProductID); err == nil {
		name = entry.Product.Name
		days = entry.Product.DurationDays
	}
	return fmt.Sprintf("%s: %s (%dd)", uc.displayName(ctx, sub.UserID), name, days)
}

func (uc *lifecycleUC) displayName(ctx context.Context, userID string) string {
	u, err := uc.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil || u.Username == "" {
		return userID
	}
	return "@" + u.Username
}

func (uc *lifecycleUC) notifyRenewal(ctx context.Context, r *RenewalReport) {
	if r.Charged == 0 && r.Failed == 0 && r.Managed == 0 {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Renewal run: %d charged, %d failed, %d platform-managed", r.Charged, r.Failed, r.Managed)
	if len(r.FailedUsers) > 0 {
		fmt.Fprintf(&b, "\nFailed: %s", strings.Join(r.FailedUsers, ", "))
	}
	if err := uc.notifier.Notify(ctx, b.String()); err != nil {
		uc.log.Warn().Err(err).Msg("renewal notification not delivered")
	}
}

func (uc *lifecycleUC) notifyExpiry(ctx context.Context, r *ExpiryReport) {
	if r.Expired == 0 && r.Failed == 0 {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Expiry run: %d expired, %d failed", r.Expired, r.Failed)
	if len(r.Lines) > 0 {
		fmt.Fprintf(&b, "\n%s", strings.Join(r.Lines, "\n"))
	}
	if err := uc.notifier.Notify(ctx, b.String()); err != nil {
		uc.log.Warn().Err(err).Msg("expiry notification not delivered")
	}
}
