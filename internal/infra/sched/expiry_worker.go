package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-subscription-billing/internal/usecase"
)

// ExpiryWorker periodically marks subscriptions past their end date expired.
type ExpiryWorker struct {
	interval time.Duration
	lifeUC   usecase.LifecycleUseCase
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, lifeUC usecase.LifecycleUseCase, logger *zerolog.Logger) *ExpiryWorker {
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		lifeUC:   lifeUC,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			report, err := w.lifeUC.ExpireOutdated(ctx, time.Now())
			if err != nil {
				w.log.Error().Err(err).Msg("expiry worker error")
				continue
			}
			if report.Expired > 0 || report.Failed > 0 {
				w.log.Info().
					Int("expired", report.Expired).
					Int("failed", report.Failed).
					Msg("expired subscriptions finished")
			}
		}
	}
}
