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

const expiryLockKey = "sweep_lock:purchase_expiry"

// ExpiryWorker periodically fails payment intents that have outlived the
// payment timeout. The redis lock keeps the sweep single-flight when more
// than one process instance runs.
type ExpiryWorker struct {
	interval time.Duration
	timeout  time.Duration
	payUC    usecase.PaymentUseCase
	locker   redis.Locker
	log      *zerolog.Logger
}

func NewExpiryWorker(interval, timeout time.Duration, payUC usecase.PaymentUseCase, locker redis.Locker, logger *zerolog.Logger) *ExpiryWorker {
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		timeout:  timeout,
		payUC:    payUC,
		locker:   locker,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.runSweep(ctx)
		}
	}
}

func (w *ExpiryWorker) runSweep(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, expiryLockKey, w.interval)
	if err != nil {
		if errors.Is(err, domain.ErrLockNotAcquired) {
			metrics.IncSweepRun("purchase_expiry", "skipped")
			return
		}
		w.log.Error().Err(err).Msg("sweep lock error")
		return
	}
	defer func() {
		if err := w.locker.Unlock(ctx, expiryLockKey, token); err != nil {
			w.log.Error().Err(err).Msg("sweep unlock error")
		}
	}()

	n, err := w.payUC.SweepExpired(ctx, w.timeout)
	if err != nil {
		metrics.IncSweepRun("purchase_expiry", "error")
		w.log.Error().Err(err).Msg("expiry sweep error")
		return
	}
	metrics.IncSweepRun("purchase_expiry", "ok")
	if n > 0 {
		w.log.Info().Int("count", n).Msg("expired payment intents failed")
	}
}
