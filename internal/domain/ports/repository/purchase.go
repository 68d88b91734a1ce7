package repository

import (
	"context"
	"time"

	"telegram-lesson-market/internal/domain/model"
)

type PurchaseRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Purchase) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Purchase, error)
	FindByPaymentID(ctx context.Context, tx Tx, paymentID string) (*model.Purchase, error)
	// HasCompleted reports whether the user already owns the item.
	HasCompleted(ctx context.Context, tx Tx, userID int64, item model.ItemRef) (bool, error)
	ListCompletedByUser(ctx context.Context, tx Tx, userID int64) ([]*model.Purchase, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Purchase, error)
	// UpdateStatusIfPending atomically transitions pending -> status and
	// reports whether a row was actually updated. Zero rows affected is the
	// benign no-op that makes retried webhooks and sweeps safe.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.PurchaseStatus) (bool, error)
	// SumCompleted is total completed-purchase revenue in Stars.
	SumCompleted(ctx context.Context, tx Tx) (int64, error)
	// SumCompletedByPeriod sums completed revenue since DATE_TRUNC(period, now).
	SumCompletedByPeriod(ctx context.Context, tx Tx, period string) (int64, error)
}
