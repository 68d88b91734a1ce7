package repository

import (
	"context"
	"time"

	"telegram-lesson-market/internal/domain/model"
)

type WithdrawRepository interface {
	Save(ctx context.Context, tx Tx, w *model.WithdrawRequest) error
	FindByID(ctx context.Context, tx Tx, id int64) (*model.WithdrawRequest, error)
	// List returns requests newest-first; status "" means all statuses.
	List(ctx context.Context, tx Tx, status model.WithdrawStatus, offset, limit int) ([]*model.WithdrawRequest, error)
	// UpdateStatusIf atomically transitions from -> to, stamping the
	// processing admin, notes and timestamp. Reports whether a row moved;
	// zero rows means the request was not in the expected source state.
	UpdateStatusIf(ctx context.Context, tx Tx, id int64, from, to model.WithdrawStatus, adminID *int64, notes *string, processedAt time.Time) (bool, error)
	// SumByStatuses is the total amount over requests in any of the statuses.
	SumByStatuses(ctx context.Context, tx Tx, statuses ...model.WithdrawStatus) (int64, error)
	CountByStatus(ctx context.Context, tx Tx, status model.WithdrawStatus) (int, error)
	// SumSince is the total requested amount since the given instant.
	SumSince(ctx context.Context, tx Tx, since time.Time) (int64, int, error)
}
