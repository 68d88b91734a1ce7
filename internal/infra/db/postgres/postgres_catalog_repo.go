package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-lesson-market/internal/domain"
	"telegram-lesson-market/internal/domain/model"
	"telegram-lesson-market/internal/domain/ports/repository"
)

var _ repository.CatalogRepository = (*catalogRepo)(nil)

// catalogRepo reads the user and item tables the payment engine sells from.
// Courses carry an optional percentage discount applied to the listed price;
// ResolveItem returns the effective price so the rest of the engine never
// sees catalog pricing rules.
type catalogRepo struct{ pool *pgxpool.Pool }

func NewCatalogRepo(pool *pgxpool.Pool) *catalogRepo {
	return &catalogRepo{pool: pool}
}

func (r *catalogRepo) FindUser(ctx context.Context, tx repository.Tx, id int64) (*model.User, error) {
	const q = `SELECT id, telegram_id, COALESCE(username,''), is_active, created_at FROM users WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func (r *catalogRepo) FindUserByTelegramID(ctx context.Context, tx repository.Tx, telegramID int64) (*model.User, error) {
	const q = `SELECT id, telegram_id, COALESCE(username,''), is_active, created_at FROM users WHERE telegram_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, telegramID)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func (r *catalogRepo) EnsureUser(ctx context.Context, tx repository.Tx, telegramID int64, username string) (*model.User, error) {
	const q = `
INSERT INTO users (telegram_id, username)
VALUES ($1, $2)
ON CONFLICT (telegram_id) DO UPDATE SET username = EXCLUDED.username
RETURNING id, telegram_id, COALESCE(username,''), is_active, created_at;`
	row, err := pickRow(ctx, r.pool, tx, q, telegramID, username)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.IsActive, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return u, nil
}

func (r *catalogRepo) ResolveItem(ctx context.Context, tx repository.Tx, ref model.ItemRef) (*model.Item, error) {
	if ref.IsZero() {
		return nil, domain.ErrInvalidArgument
	}

	var q string
	switch ref.Type {
	case model.ItemTypeLesson:
		q = `SELECT title, price, is_active FROM lessons WHERE id=$1;`
	case model.ItemTypeCourse:
		// Course rows carry their own discount; the engine sells at the
		// effective price.
		q = `SELECT title, price - (price * COALESCE(discount_percent,0) / 100), is_active FROM courses WHERE id=$1;`
	default:
		return nil, domain.ErrInvalidArgument
	}

	row, err := pickRow(ctx, r.pool, tx, q, ref.ID)
	if err != nil {
		return nil, err
	}

	item := &model.Item{Ref: ref}
	if err := row.Scan(&item.Title, &item.Price, &item.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return item, nil
}
