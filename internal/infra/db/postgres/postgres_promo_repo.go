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

var _ repository.PromoCodeRepository = (*promoCodeRepo)(nil)

type promoCodeRepo struct{ pool *pgxpool.Pool }

func NewPromoCodeRepo(pool *pgxpool.Pool) *promoCodeRepo {
	return &promoCodeRepo{pool: pool}
}

const promoColumns = `id, code, discount_percent, discount_amount, max_uses, current_uses, is_active, expires_at, created_at`

func scanPromo(row pgx.Row) (*model.PromoCode, error) {
	p := &model.PromoCode{}
	if err := row.Scan(&p.ID, &p.Code, &p.DiscountPercent, &p.DiscountAmount, &p.MaxUses, &p.CurrentUses, &p.IsActive, &p.ExpiresAt, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *promoCodeRepo) Save(ctx context.Context, tx repository.Tx, p *model.PromoCode) error {
	const q = `
INSERT INTO promo_codes (code, discount_percent, discount_amount, max_uses, current_uses, is_active, expires_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id;`

	row, err := pickRow(ctx, r.pool, tx, q, p.Code, p.DiscountPercent, p.DiscountAmount, p.MaxUses, p.CurrentUses, p.IsActive, p.ExpiresAt, p.CreatedAt)
	if err != nil {
		return err
	}
	if err := row.Scan(&p.ID); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *promoCodeRepo) SaveBatch(ctx context.Context, tx repository.Tx, ps []*model.PromoCode) error {
	for _, p := range ps {
		if err := r.Save(ctx, tx, p); err != nil {
			return err
		}
	}
	return nil
}

func (r *promoCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.PromoCode, error) {
	q := `SELECT ` + promoColumns + ` FROM promo_codes WHERE code=$1 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}
	return scanPromo(row)
}

func (r *promoCodeRepo) ListActive(ctx context.Context, tx repository.Tx, limit int) ([]*model.PromoCode, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + promoColumns + ` FROM promo_codes WHERE is_active ORDER BY created_at DESC LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.PromoCode
	for rows.Next() {
		p := new(model.PromoCode)
		if err := rows.Scan(&p.ID, &p.Code, &p.DiscountPercent, &p.DiscountAmount, &p.MaxUses, &p.CurrentUses, &p.IsActive, &p.ExpiresAt, &p.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *promoCodeRepo) ExistingCodes(ctx context.Context, tx repository.Tx, codes []string) (map[string]struct{}, error) {
	if len(codes) == 0 {
		return map[string]struct{}{}, nil
	}
	const q = `SELECT code FROM promo_codes WHERE code = ANY($1);`
	rows, err := queryRows(ctx, r.pool, tx, q, codes)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	taken := make(map[string]struct{}, len(codes))
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		taken[code] = struct{}{}
	}
	return taken, nil
}

// Redeem consumes one use in a single conditional UPDATE. The WHERE clause
// re-checks every validity condition at execution time and the same statement
// flips is_active off when the last use is taken, so two concurrent
// redemptions of the final use serialize on the row and only one succeeds.
func (r *promoCodeRepo) Redeem(ctx context.Context, tx repository.Tx, code string, now time.Time) (bool, error) {
	const q = `
UPDATE promo_codes
   SET current_uses = current_uses + 1,
       is_active = CASE WHEN max_uses IS NOT NULL AND current_uses + 1 >= max_uses THEN FALSE ELSE is_active END
 WHERE code = $1
   AND is_active
   AND (expires_at IS NULL OR expires_at > $2)
   AND (max_uses IS NULL OR current_uses < max_uses);`

	cmd, err := execSQL(ctx, r.pool, tx, q, code, now)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *promoCodeRepo) Deactivate(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	const q = `UPDATE promo_codes SET is_active=FALSE WHERE code=$1 AND is_active;`
	cmd, err := execSQL(ctx, r.pool, tx, q, code)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *promoCodeRepo) DeactivateExpired(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	const q = `UPDATE promo_codes SET is_active=FALSE WHERE is_active AND expires_at IS NOT NULL AND expires_at <= $1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, now)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return 0, err
		}
		return 0, domain.ErrOperationFailed
	}
	return int(cmd.RowsAffected()), nil
}
