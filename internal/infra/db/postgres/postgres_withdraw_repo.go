package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-lesson-market/internal/domain"
	"telegram-lesson-market/internal/domain/model"
	"telegram-lesson-market/internal/domain/ports/repository"
)

var _ repository.WithdrawRepository = (*withdrawRepo)(nil)

type withdrawRepo struct{ pool *pgxpool.Pool }

func NewWithdrawRepo(pool *pgxpool.Pool) *withdrawRepo {
	return &withdrawRepo{pool: pool}
}

const withdrawColumns = `id, amount, status, wallet_address, requested_at, processed_at, admin_id, notes`

func scanWithdraw(row pgx.Row) (*model.WithdrawRequest, error) {
	w := &model.WithdrawRequest{}
	if err := row.Scan(&w.ID, &w.Amount, &w.Status, &w.WalletAddress, &w.RequestedAt, &w.ProcessedAt, &w.AdminID, &w.Notes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return w, nil
}

func (r *withdrawRepo) Save(ctx context.Context, tx repository.Tx, w *model.WithdrawRequest) error {
	const q = `
INSERT INTO withdraw_requests (amount, status, wallet_address, requested_at, processed_at, admin_id, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id;`

	row, err := pickRow(ctx, r.pool, tx, q, w.Amount, w.Status, w.WalletAddress, w.RequestedAt, w.ProcessedAt, w.AdminID, w.Notes)
	if err != nil {
		return err
	}
	if err := row.Scan(&w.ID); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *withdrawRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.WithdrawRequest, error) {
	q := `SELECT ` + withdrawColumns + ` FROM withdraw_requests WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanWithdraw(row)
}

func (r *withdrawRepo) List(ctx context.Context, tx repository.Tx, status model.WithdrawStatus, offset, limit int) ([]*model.WithdrawRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + withdrawColumns + ` FROM withdraw_requests`
	args := []interface{}{}
	if status != "" {
		q += ` WHERE status=$1 ORDER BY requested_at DESC OFFSET $2 LIMIT $3;`
		args = append(args, status, offset, limit)
	} else {
		q += ` ORDER BY requested_at DESC OFFSET $1 LIMIT $2;`
		args = append(args, offset, limit)
	}

	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.WithdrawRequest
	for rows.Next() {
		w := new(model.WithdrawRequest)
		if err := rows.Scan(&w.ID, &w.Amount, &w.Status, &w.WalletAddress, &w.RequestedAt, &w.ProcessedAt, &w.AdminID, &w.Notes); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, w)
	}
	return out, nil
}

// UpdateStatusIf transitions from -> to in one conditional UPDATE; zero rows
// means the request left the expected source state first.
func (r *withdrawRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id int64, from, to model.WithdrawStatus, adminID *int64, notes *string, processedAt time.Time) (bool, error) {
	const q = `
UPDATE withdraw_requests
   SET status = $3,
       admin_id = COALESCE($4, admin_id),
       notes = COALESCE($5, notes),
       processed_at = $6
 WHERE id = $1
   AND status = $2;`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(from), string(to), adminID, notes, processedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *withdrawRepo) SumByStatuses(ctx context.Context, tx repository.Tx, statuses ...model.WithdrawStatus) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	ss := make([]string, 0, len(statuses))
	for _, s := range statuses {
		ss = append(ss, string(s))
	}
	const q = `SELECT COALESCE(SUM(amount),0) FROM withdraw_requests WHERE status = ANY($1);`
	row, err := pickRow(ctx, r.pool, tx, q, ss)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func (r *withdrawRepo) CountByStatus(ctx context.Context, tx repository.Tx, status model.WithdrawStatus) (int, error) {
	const q = `SELECT COUNT(*) FROM withdraw_requests WHERE status=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, string(status))
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *withdrawRepo) SumSince(ctx context.Context, tx repository.Tx, since time.Time) (int64, int, error) {
	const q = `SELECT COALESCE(SUM(amount),0), COUNT(*) FROM withdraw_requests WHERE requested_at >= $1;`
	row, err := pickRow(ctx, r.pool, tx, q, since)
	if err != nil {
		return 0, 0, err
	}
	var sum int64
	var n int
	if err := row.Scan(&sum, &n); err != nil {
		return 0, 0, domain.ErrReadDatabaseRow
	}
	return sum, n, nil
}
