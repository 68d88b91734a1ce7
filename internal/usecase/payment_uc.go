// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"errors"
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
var _ PaymentUseCase = (*paymentUC)(nil)

// CreateIntentResult is what callers need to hand the provider an invoice.
type CreateIntentResult struct {
	PaymentID       string `json:"payment_id"`
	Title           string `json:"title"`
	OriginalAmount  int64  `json:"original_amount"`
	FinalAmount     int64  `json:"final_amount"`
	DiscountApplied int64  `json:"discount_applied"`
	InvoicePayload  string `json:"invoice_payload"`
}

type PaymentUseCase interface {
	// CreateIntent persists a pending purchase for the item at its current
	// price minus any promo discount. When promoFallback is true an invalid
	// promo code degrades to "no discount" instead of failing the call; that
	// is the bot flow, the admin API passes false.
	CreateIntent(ctx context.Context, userID int64, item model.ItemRef, promoCode string, promoFallback bool) (*CreateIntentResult, error)
	// FinalizeIntent transitions pending -> completed. Idempotent: finalizing
	// an already-completed purchase is a no-op success because providers
	// retry webhook deliveries.
	FinalizeIntent(ctx context.Context, purchaseID string) (bool, error)
	// FailIntent transitions pending -> failed; a no-op on any terminal state.
	FailIntent(ctx context.Context, purchaseID, reason string) (bool, error)
	StatusByPaymentID(ctx context.Context, paymentID string) (model.PurchaseStatus, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*model.Purchase, error)
	ListUserPurchases(ctx context.Context, userID int64) ([]*model.Purchase, error)
	// SweepExpired fails every pending purchase older than the timeout and
	// returns how many were transitioned.
	SweepExpired(ctx context.Context, timeout time.Duration) (int, error)
}

type paymentUC struct {
	purchases repository.PurchaseRepository
	catalog   repository.CatalogRepository
	promoUC   PromoUseCase
	tm        repository.TransactionManager
	audit     *AuditRecorder
	billing   config.BillingConfig
	log       *zerolog.Logger
}

func NewPaymentUseCase(
	purchases repository.PurchaseRepository,
	catalog repository.CatalogRepository,
	promoUC PromoUseCase,
	tm repository.TransactionManager,
	audit *AuditRecorder,
	billing config.BillingConfig,
	logger *zerolog.Logger,
) *paymentUC {
	payLog := logger.With().Str("component", "PaymentUseCase").Logger()
	return &paymentUC{
		purchases: purchases,
		catalog:   catalog,
		promoUC:   promoUC,
		tm:        tm,
		audit:     audit,
		billing:   billing,
		log:       &payLog,
	}
}

func (u *paymentUC) CreateIntent(ctx context.Context, userID int64, item model.ItemRef, promoCode string, promoFallback bool) (*CreateIntentResult, error) {
	if item.IsZero() {
		return nil, domain.ErrInvalidArgument
	}

	user, err := u.catalog.FindUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	resolved, err := u.catalog.ResolveItem(ctx, nil, item)
	if err != nil {
		return nil, fmt.Errorf("resolve item: %w", err)
	}
	if !resolved.IsActive {
		return nil, domain.ErrItemInactive
	}

	owned, err := u.purchases.HasCompleted(ctx, nil, userID, item)
	if err != nil {
		return nil, err
	}
	if owned {
		return nil, domain.ErrAlreadyPurchased
	}

	var promo *model.PromoCode
	if promoCode != "" {
		promo, err = u.promoUC.Validate(ctx, promoCode)
		if err != nil {
			var invalid *model.PromoInvalidError
			if errors.As(err, &invalid) && promoFallback {
				u.log.Info().Str("code", invalid.Code).Str("reason", string(invalid.Reason)).
					Msg("promo rejected, falling back to full price")
				promo = nil
			} else {
				return nil, err
			}
		}
	}

	disc := model.Discount{OriginalAmount: resolved.Price, FinalAmount: resolved.Price}
	if promo != nil {
		disc = u.promoUC.ApplyDiscount(promo, resolved.Price)
	}

	purchase, err := model.NewPurchase(userID, item, disc.FinalAmount)
	if err != nil {
		return nil, err
	}

	// The redemption and the pending purchase are one transaction: a promo
	// use is consumed exactly when the discounted intent becomes durable.
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if promo != nil {
			ok, rerr := u.promoUC.Redeem(ctx, tx, promo.Code)
			if rerr != nil {
				return rerr
			}
			if !ok {
				// Lost the race for the last use.
				if !promoFallback {
					return &model.PromoInvalidError{Code: promo.Code, Reason: model.PromoExhausted}
				}
				disc = model.Discount{OriginalAmount: resolved.Price, FinalAmount: resolved.Price}
				purchase.Amount = resolved.Price
				promo = nil
			}
		}
		return u.purchases.Save(ctx, tx, purchase)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncPayment("pending")
	details := map[string]interface{}{
		"item_type":       string(item.Type),
		"item_id":         item.ID,
		"original_amount": disc.OriginalAmount,
	}
	if promo != nil {
		details["promo_code"] = promo.Code
		details["discount"] = disc.DiscountAmount
		u.audit.Record(ctx, model.NewAuditEntry(model.AuditPromoRedeemed, purchase.PaymentID, disc.DiscountAmount, 0, map[string]interface{}{"code": promo.Code}))
	}
	u.audit.Record(ctx, model.NewAuditEntry(model.AuditPaymentCreated, purchase.PaymentID, purchase.Amount, userID, details))

	return &CreateIntentResult{
		PaymentID:       purchase.PaymentID,
		Title:           resolved.Title,
		OriginalAmount:  disc.OriginalAmount,
		FinalAmount:     disc.FinalAmount,
		DiscountApplied: disc.DiscountAmount,
		InvoicePayload:  purchase.PayloadFor().Encode(),
	}, nil
}

func (u *paymentUC) FinalizeIntent(ctx context.Context, purchaseID string) (bool, error) {
	p, err := u.purchases.FindByID(ctx, nil, purchaseID)
	if err != nil {
		return false, err
	}

	moved, err := u.purchases.UpdateStatusIfPending(ctx, nil, purchaseID, model.PurchaseStatusCompleted)
	if err != nil {
		return false, err
	}
	if moved {
		metrics.IncPayment("completed")
		metrics.AddPaymentRevenue(u.billing.Currency, p.Amount)
		u.audit.Record(ctx, model.NewAuditEntry(model.AuditPaymentCompleted, p.PaymentID, p.Amount, p.UserID, nil))
		return true, nil
	}

	// Zero rows: the purchase was not pending anymore. Re-read to decide.
	p, err = u.purchases.FindByID(ctx, nil, purchaseID)
	if err != nil {
		return false, err
	}
	if p.Status == model.PurchaseStatusCompleted {
		// Retried webhook delivery; the money was counted exactly once.
		u.audit.Record(ctx, model.NewAuditEntry(model.AuditPaymentNoop, p.PaymentID, p.Amount, p.UserID, map[string]interface{}{"op": "finalize", "status": string(p.Status)}))
		return true, nil
	}
	return false, nil
}

func (u *paymentUC) FailIntent(ctx context.Context, purchaseID, reason string) (bool, error) {
	p, err := u.purchases.FindByID(ctx, nil, purchaseID)
	if err != nil {
		return false, err
	}
	if p.Status.IsTerminal() {
		return false, nil
	}

	moved, err := u.purchases.UpdateStatusIfPending(ctx, nil, purchaseID, model.PurchaseStatusFailed)
	if err != nil {
		return false, err
	}
	if !moved {
		// Finalized or failed concurrently between the read and the update.
		return false, nil
	}
	metrics.IncPayment("failed")
	u.audit.Record(ctx, model.NewAuditEntry(model.AuditPaymentFailed, p.PaymentID, p.Amount, p.UserID, map[string]interface{}{"reason": reason}))
	return true, nil
}

func (u *paymentUC) StatusByPaymentID(ctx context.Context, paymentID string) (model.PurchaseStatus, error) {
	p, err := u.purchases.FindByPaymentID(ctx, nil, paymentID)
	if err != nil {
		return "", err
	}
	return p.Status, nil
}

func (u *paymentUC) FindByPaymentID(ctx context.Context, paymentID string) (*model.Purchase, error) {
	return u.purchases.FindByPaymentID(ctx, nil, paymentID)
}

func (u *paymentUC) ListUserPurchases(ctx context.Context, userID int64) ([]*model.Purchase, error) {
	return u.purchases.ListCompletedByUser(ctx, nil, userID)
}

func (u *paymentUC) SweepExpired(ctx context.Context, timeout time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-timeout)
	pending, err := u.purchases.ListPendingOlderThan(ctx, nil, cutoff, 200)
	if err != nil {
		if err == domain.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	count := 0
	for _, p := range pending {
		moved, err := u.FailIntent(ctx, p.ID, "expired")
		if err != nil {
			u.log.Error().Err(err).Str("purchase_id", p.ID).Msg("sweep: fail intent")
			continue
		}
		if moved {
			count++
		}
	}
	if count > 0 {
		metrics.AddPurchasesExpired(count)
	}
	return count, nil
}
