package repository

import (
	"context"
	"time"

	"telegram-lesson-market/internal/domain/model"
)

type PromoCodeRepository interface {
	Save(ctx context.Context, tx Tx, p *model.PromoCode) error
	SaveBatch(ctx context.Context, tx Tx, ps []*model.PromoCode) error
	FindByCode(ctx context.Context, tx Tx, code string) (*model.PromoCode, error)
	ListActive(ctx context.Context, tx Tx, limit int) ([]*model.PromoCode, error)
	// ExistingCodes returns the subset of codes that are already taken.
	ExistingCodes(ctx context.Context, tx Tx, codes []string) (map[string]struct{}, error)
	// Redeem consumes one use in a single atomic statement: the counter is
	// incremented and, when the new count reaches max_uses, is_active is
	// flipped to false in the same statement. Returns false when the code was
	// not redeemable (missing, inactive, expired or exhausted) at execution
	// time; two concurrent redemptions of a code with one use left can never
	// both succeed.
	Redeem(ctx context.Context, tx Tx, code string, now time.Time) (bool, error)
	Deactivate(ctx context.Context, tx Tx, code string) (bool, error)
	// DeactivateExpired flips is_active off for every active code past its
	// expiry and returns how many were touched.
	DeactivateExpired(ctx context.Context, tx Tx, now time.Time) (int, error)
}
