package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-subscription-billing/internal/usecase"
)

// RenewalWorker periodically charges subscriptions whose end date falls
// inside the renewal horizon.
type RenewalWorker struct {
	interval time.Duration
	horizon  time.Duration
	lifeUC   usecase.LifecycleUseCase
	log      *zerolog.Logger
}

func NewRenewalWorker(interval, horizon time.Duration, lifeUC usecase.LifecycleUseCase, logger *zerolog.Logger) *RenewalWorker {
	rnwLog := logger.With().Str("component", "RenewalWorker").Logger()
	return &RenewalWorker{
		interval: interval,
		horizon:  horizon,
		lifeUC:   lifeUC,
		log:      &rnwLog,
	}
}

func (w *RenewalWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("horizon", w.horizon).Msg("Starting renewal worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping renewal worker")
			return ctx.Err()
		case <-ticker.C:
			report, err := w.lifeUC.ChargeExpiring(ctx, w.horizon)
			if err != nil {
				w.log.Error().Err(err).Msg("renewal worker error")
				continue
			}
			if report.Charged+report.Failed+report.Managed > 0 {
				w.log.Info().
					Int("charged", report.Charged).
					Int("failed", report.Failed).
					Int("managed", report.Managed).
					Int("skipped", report.Skipped).
					Msg("renewal run finished")
			}
		}
	}
}
