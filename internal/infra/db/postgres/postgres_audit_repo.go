package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-lesson-market/internal/domain"
	"telegram-lesson-market/internal/domain/model"
	"telegram-lesson-market/internal/domain/ports/repository"
)

var _ repository.AuditLogRepository = (*auditLogRepo)(nil)

// auditLogRepo is append-only: there is no update or delete path.
type auditLogRepo struct{ pool *pgxpool.Pool }

func NewAuditLogRepo(pool *pgxpool.Pool) *auditLogRepo {
	return &auditLogRepo{pool: pool}
}

func (r *auditLogRepo) Append(ctx context.Context, tx repository.Tx, e *model.AuditEntry) error {
	var details []byte
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return domain.ErrInvalidArgument
		}
		details = b
	}

	const q = `
INSERT INTO audit_log (id, action, payment_id, amount, actor_id, details, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`

	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.Action, e.PaymentID, e.Amount, e.ActorID, details, e.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *auditLogRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	// ULID ids sort lexicographically by creation time.
	const q = `SELECT id, action, payment_id, amount, actor_id, details, created_at FROM audit_log ORDER BY id DESC LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.AuditEntry
	for rows.Next() {
		e := new(model.AuditEntry)
		var details []byte
		if err := rows.Scan(&e.ID, &e.Action, &e.PaymentID, &e.Amount, &e.ActorID, &details, &e.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, domain.ErrReadDatabaseRow
			}
		}
		out = append(out, e)
	}
	return out, nil
}
