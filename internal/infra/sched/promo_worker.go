package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"telegram-lesson-market/internal/domain"
	"telegram-lesson-market/internal/infra/metrics"
	"telegram-lesson-market/internal/infra/redis"
	"telegram-lesson-market/internal/usecase"
)

const promoLockKey = "sweep_lock:promo_expiry"

// PromoSweepWorker deactivates promo codes past their expiry. Purely cosmetic
// for redemption correctness (the redeem statement re-checks expiry) but it
// keeps admin listings honest.
type PromoSweepWorker struct {
	interval time.Duration
	promoUC  usecase.PromoUseCase
	locker   redis.Locker
	log      *zerolog.Logger
}

func NewPromoSweepWorker(interval time.Duration, promoUC usecase.PromoUseCase, locker redis.Locker, logger *zerolog.Logger) *PromoSweepWorker {
	compLog := logger.With().Str("component", "PromoSweepWorker").Logger()
	return &PromoSweepWorker{
		interval: interval,
		promoUC:  promoUC,
		locker:   locker,
		log:      &compLog,
	}
}

func (w *PromoSweepWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting promo sweep worker")
	// Run once on startup, then on every tick
	w.runSweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping promo sweep worker")
			return ctx.Err()
		case <-ticker.C:
			w.runSweep(ctx)
		}
	}
}

func (w *PromoSweepWorker) runSweep(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, promoLockKey, w.interval)
	if err != nil {
		if errors.Is(err, domain.ErrLockNotAcquired) {
			metrics.IncSweepRun("promo_expiry", "skipped")
			return
		}
		w.log.Error().Err(err).Msg("sweep lock error")
		return
	}
	defer func() {
		if err := w.locker.Unlock(ctx, promoLockKey, token); err != nil {
			w.log.Error().Err(err).Msg("sweep unlock error")
		}
	}()

	n, err := w.promoUC.SweepExpired(ctx)
	if err != nil {
		metrics.IncSweepRun("promo_expiry", "error")
		w.log.Error().Err(err).Msg("promo sweep error")
		return
	}
	metrics.IncSweepRun("promo_expiry", "ok")
	if n > 0 {
		w.log.Info().Int("count", n).Msg("expired promo codes deactivated")
	}
}
