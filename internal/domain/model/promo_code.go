package model

import (
	"strings"
	"time"

	"telegram-lesson-market/internal/domain"
)

// PromoInvalidReason classifies why a promo code cannot be applied.
// Callers branch on the reason instead of parsing error strings.
type PromoInvalidReason string

const (
	PromoNotFound  PromoInvalidReason = "not_found"
	PromoInactive  PromoInvalidReason = "inactive"
	PromoExpired   PromoInvalidReason = "expired"
	PromoExhausted PromoInvalidReason = "exhausted"
)

// PromoInvalidError carries the rejection reason for a promo code.
type PromoInvalidError struct {
	Code   string
	Reason PromoInvalidReason
}

func (e *PromoInvalidError) Error() string {
	return "promo code " + e.Code + " invalid: " + string(e.Reason)
}

// PromoCode is a reusable discount token. Exactly one of DiscountPercent /
// DiscountAmount is active: a fixed amount when DiscountAmount is set,
// a percentage otherwise.
type PromoCode struct {
	ID              int64
	Code            string // stored upper-case
	DiscountPercent int
	DiscountAmount  *int64
	MaxUses         *int
	CurrentUses     int
	IsActive        bool
	ExpiresAt       *time.Time
	CreatedAt       time.Time
}

// NewPromoCode validates and builds an active promo code.
func NewPromoCode(code string, discountPercent int, discountAmount *int64, maxUses *int, expiresAt *time.Time) (*PromoCode, error) {
	code = NormalizeCode(code)
	if len(code) < 3 {
		return nil, domain.ErrInvalidArgument
	}
	if discountPercent < 0 || discountPercent > 100 {
		return nil, domain.ErrInvalidArgument
	}
	if discountAmount != nil && *discountAmount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if discountAmount == nil && discountPercent == 0 {
		return nil, domain.ErrInvalidArgument
	}
	if discountAmount != nil && discountPercent != 0 {
		return nil, domain.ErrInvalidArgument
	}
	if maxUses != nil && *maxUses <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &PromoCode{
		Code:            code,
		DiscountPercent: discountPercent,
		DiscountAmount:  discountAmount,
		MaxUses:         maxUses,
		CurrentUses:     0,
		IsActive:        true,
		ExpiresAt:       expiresAt,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// NormalizeCode is the canonical form codes are stored and matched in.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// InvalidReasonAt returns the first reason the code is not redeemable at the
// given instant, or "" when it is valid. Read-only; redemption accounting
// happens at the store level.
func (p *PromoCode) InvalidReasonAt(now time.Time) PromoInvalidReason {
	if !p.IsActive {
		return PromoInactive
	}
	if p.ExpiresAt != nil && p.ExpiresAt.Before(now) {
		return PromoExpired
	}
	if p.MaxUses != nil && p.CurrentUses >= *p.MaxUses {
		return PromoExhausted
	}
	return ""
}

// ValidAt reports whether the code is redeemable at the given instant.
func (p *PromoCode) ValidAt(now time.Time) bool {
	return p.InvalidReasonAt(now) == ""
}

// Discount is the outcome of applying a promo code to a base amount.
// OriginalAmount - DiscountAmount == FinalAmount always holds.
type Discount struct {
	OriginalAmount int64
	DiscountAmount int64
	FinalAmount    int64
}
