// File: internal/usecase/promo_uc.go
package usecase

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-lesson-market/internal/config"
	"telegram-lesson-market/internal/domain"
	"telegram-lesson-market/internal/domain/model"
	"telegram-lesson-market/internal/domain/ports/repository"
	"telegram-lesson-market/internal/infra/metrics"
)

// Compile-time check
var _ PromoUseCase = (*promoUC)(nil)

// batchLimit bounds a single administrative generation call.
const batchLimit = 1000

type PromoStats struct {
	Code            string     `json:"code"`
	TotalUses       int        `json:"total_uses"`
	MaxUses         *int       `json:"max_uses"`
	RemainingUses   *int       `json:"remaining_uses"`
	IsActive        bool       `json:"is_active"`
	IsExpired       bool       `json:"is_expired"`
	DiscountPercent int        `json:"discount_percent"`
	DiscountAmount  *int64     `json:"discount_amount"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       *time.Time `json:"expires_at"`
}

type PromoUseCase interface {
	// Validate is read-only: it never mutates the use counter. On rejection
	// the error is a *model.PromoInvalidError carrying the reason.
	Validate(ctx context.Context, code string) (*model.PromoCode, error)
	// ApplyDiscount computes the discounted price. Fixed discounts are capped
	// so the final amount never drops below the configured minimum price;
	// percentage discounts use integer floor division.
	ApplyDiscount(promo *model.PromoCode, baseAmount int64) model.Discount
	// Redeem consumes one use atomically; see PromoCodeRepository.Redeem.
	// It participates in the caller's transaction when tx is non-nil.
	Redeem(ctx context.Context, tx repository.Tx, code string) (bool, error)
	Create(ctx context.Context, code string, discountPercent int, discountAmount *int64, maxUses *int, expiresAt *time.Time) (*model.PromoCode, error)
	GenerateBatch(ctx context.Context, count, discountPercent int, prefix string, maxUses *int, expiresAt *time.Time) ([]*model.PromoCode, error)
	Deactivate(ctx context.Context, code string) (bool, error)
	ListActive(ctx context.Context, limit int) ([]*model.PromoCode, error)
	Stats(ctx context.Context, code string) (*PromoStats, error)
	// SweepExpired deactivates every active code past its expiry.
	SweepExpired(ctx context.Context) (int, error)
}

type promoUC struct {
	promos  repository.PromoCodeRepository
	tm      repository.TransactionManager
	billing config.BillingConfig
	log     *zerolog.Logger
}

func NewPromoUseCase(promos repository.PromoCodeRepository, tm repository.TransactionManager, billing config.BillingConfig, logger *zerolog.Logger) *promoUC {
	promoLog := logger.With().Str("component", "PromoUseCase").Logger()
	return &promoUC{promos: promos, tm: tm, billing: billing, log: &promoLog}
}

func (u *promoUC) Validate(ctx context.Context, code string) (*model.PromoCode, error) {
	code = model.NormalizeCode(code)
	promo, err := u.promos.FindByCode(ctx, nil, code)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil, &model.PromoInvalidError{Code: code, Reason: model.PromoNotFound}
		}
		return nil, err
	}
	if reason := promo.InvalidReasonAt(time.Now().UTC()); reason != "" {
		return nil, &model.PromoInvalidError{Code: code, Reason: reason}
	}
	return promo, nil
}

func (u *promoUC) ApplyDiscount(promo *model.PromoCode, baseAmount int64) model.Discount {
	var discount int64
	if promo.DiscountAmount != nil {
		discount = *promo.DiscountAmount
	} else {
		discount = baseAmount * int64(promo.DiscountPercent) / 100
	}
	// The final amount may never go below the system minimum price.
	if cap := baseAmount - u.billing.MinPrice; discount > cap {
		discount = cap
	}
	if discount < 0 {
		discount = 0
	}
	final := baseAmount - discount
	if final < u.billing.MinPrice {
		final = u.billing.MinPrice
	}
	return model.Discount{
		OriginalAmount: baseAmount,
		DiscountAmount: discount,
		FinalAmount:    final,
	}
}

func (u *promoUC) Redeem(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	ok, err := u.promos.Redeem(ctx, tx, model.NormalizeCode(code), time.Now().UTC())
	if err != nil {
		return false, err
	}
	if ok {
		metrics.IncPromoRedemption("ok")
	} else {
		metrics.IncPromoRedemption("rejected")
	}
	return ok, nil
}

func (u *promoUC) Create(ctx context.Context, code string, discountPercent int, discountAmount *int64, maxUses *int, expiresAt *time.Time) (*model.PromoCode, error) {
	promo, err := model.NewPromoCode(code, discountPercent, discountAmount, maxUses, expiresAt)
	if err != nil {
		return nil, err
	}
	existing, err := u.promos.FindByCode(ctx, nil, promo.Code)
	if err != nil && err != domain.ErrNotFound {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrAlreadyExists
	}
	if err := u.promos.Save(ctx, nil, promo); err != nil {
		return nil, err
	}
	u.log.Info().Str("code", promo.Code).Int("percent", promo.DiscountPercent).Msg("promo code created")
	return promo, nil
}

func (u *promoUC) GenerateBatch(ctx context.Context, count, discountPercent int, prefix string, maxUses *int, expiresAt *time.Time) ([]*model.PromoCode, error) {
	if count <= 0 || count > batchLimit {
		return nil, domain.ErrInvalidArgument
	}
	if discountPercent <= 0 || discountPercent > 100 {
		return nil, domain.ErrInvalidArgument
	}
	if prefix == "" {
		prefix = "BULK"
	}
	prefix = model.NormalizeCode(prefix)

	codes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	for len(codes) < count {
		batch := make([]string, 0, count-len(codes))
		for len(batch)+len(codes) < count {
			c := prefix + randomCodeSuffix(8)
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			batch = append(batch, c)
		}
		// Collision check against codes already in the store; regenerate the
		// clashing ones on the next pass.
		taken, err := u.promos.ExistingCodes(ctx, nil, batch)
		if err != nil {
			return nil, err
		}
		for _, c := range batch {
			if _, clash := taken[c]; clash {
				delete(seen, c)
				continue
			}
			codes = append(codes, c)
		}
	}

	promos := make([]*model.PromoCode, 0, count)
	for _, c := range codes {
		promo, err := model.NewPromoCode(c, discountPercent, nil, maxUses, expiresAt)
		if err != nil {
			return nil, err
		}
		promos = append(promos, promo)
	}
	// All-or-nothing: a unique violation that slips past the collision check
	// must not leave a partially persisted batch behind.
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return u.promos.SaveBatch(ctx, tx, promos)
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Int("count", len(promos)).Str("prefix", prefix).Msg("promo batch generated")
	return promos, nil
}

func (u *promoUC) Deactivate(ctx context.Context, code string) (bool, error) {
	return u.promos.Deactivate(ctx, nil, model.NormalizeCode(code))
}

func (u *promoUC) ListActive(ctx context.Context, limit int) ([]*model.PromoCode, error) {
	if limit <= 0 {
		limit = 100
	}
	return u.promos.ListActive(ctx, nil, limit)
}

func (u *promoUC) Stats(ctx context.Context, code string) (*PromoStats, error) {
	promo, err := u.promos.FindByCode(ctx, nil, model.NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	stats := &PromoStats{
		Code:            promo.Code,
		TotalUses:       promo.CurrentUses,
		MaxUses:         promo.MaxUses,
		IsActive:        promo.IsActive,
		IsExpired:       promo.ExpiresAt != nil && promo.ExpiresAt.Before(time.Now().UTC()),
		DiscountPercent: promo.DiscountPercent,
		DiscountAmount:  promo.DiscountAmount,
		CreatedAt:       promo.CreatedAt,
		ExpiresAt:       promo.ExpiresAt,
	}
	if promo.MaxUses != nil {
		remaining := *promo.MaxUses - promo.CurrentUses
		if remaining < 0 {
			remaining = 0
		}
		stats.RemainingUses = &remaining
	}
	return stats, nil
}

func (u *promoUC) SweepExpired(ctx context.Context) (int, error) {
	n, err := u.promos.DeactivateExpired(ctx, nil, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.AddPromosDeactivated(n)
		u.log.Info().Int("count", n).Msg("expired promo codes deactivated")
	}
	return n, nil
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomCodeSuffix(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		panic(fmt.Sprintf("promo code generation: %v", err))
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b)
}
