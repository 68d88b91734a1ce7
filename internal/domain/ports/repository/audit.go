package repository

import (
	"context"

	"telegram-lesson-market/internal/domain/model"
)

// AuditLogRepository is the append-only trail of financial state changes.
// Writes are best-effort and always outside the transaction boundary of the
// change they describe.
type AuditLogRepository interface {
	Append(ctx context.Context, tx Tx, e *model.AuditEntry) error
	ListRecent(ctx context.Context, tx Tx, limit int) ([]*model.AuditEntry, error)
}
