// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-lesson-market/internal/config"
	"telegram-lesson-market/internal/domain"
	"telegram-lesson-market/internal/domain/model"
	"telegram-lesson-market/internal/domain/ports/repository"
	"telegram-lesson-market/internal/infra/metrics"
)

var _ ReconcileUseCase = (*reconcileUC)(nil)

// ChargeDeduper remembers provider charge ids that were already applied so a
// redelivered webhook cannot double-count revenue even across restarts.
type ChargeDeduper interface {
	// Seen reports whether the charge id was marked before.
	Seen(ctx context.Context, chargeID string) (bool, error)
	Mark(ctx context.Context, chargeID string) error
}

// SuccessfulPayment is the provider's confirmation event, already unpacked
// from the transport update.
type SuccessfulPayment struct {
	ChargeID       string
	TotalAmount    int64
	Currency       string
	InvoicePayload string
}

type ReconcileUseCase interface {
	// PreCheckout answers the provider's final pre-charge question. A nil
	// error means "ok to charge": the purchase exists, is still pending and
	// its item is still on sale. Any error must be relayed as a decline.
	PreCheckout(ctx context.Context, invoicePayload string) error
	// ConfirmPayment verifies the confirmation against the stored intent and
	// finalizes it. On any verification mismatch the purchase stays pending
	// for manual review and ErrVerificationFailed is returned.
	ConfirmPayment(ctx context.Context, sp SuccessfulPayment) error
}

type reconcileUC struct {
	payUC   PaymentUseCase
	catalog repository.CatalogRepository
	dedupe  ChargeDeduper
	billing config.BillingConfig
	log     *zerolog.Logger
}

func NewReconcileUseCase(payUC PaymentUseCase, catalog repository.CatalogRepository, dedupe ChargeDeduper, billing config.BillingConfig, logger *zerolog.Logger) *reconcileUC {
	rcLog := logger.With().Str("component", "ReconcileUseCase").Logger()
	return &reconcileUC{payUC: payUC, catalog: catalog, dedupe: dedupe, billing: billing, log: &rcLog}
}

func (u *reconcileUC) PreCheckout(ctx context.Context, invoicePayload string) error {
	payload, err := model.DecodeInvoicePayload(invoicePayload)
	if err != nil {
		metrics.IncWebhookEvent("pre_checkout", "bad_payload")
		return err
	}

	p, err := u.payUC.FindByPaymentID(ctx, payload.PaymentID)
	if err != nil {
		metrics.IncWebhookEvent("pre_checkout", "unknown_payment")
		return err
	}
	if p.Status != model.PurchaseStatusPending {
		// Expired by the sweeper or already settled; decline the charge.
		metrics.IncWebhookEvent("pre_checkout", "not_pending")
		u.log.Warn().Str("payment_id", p.PaymentID).Str("status", string(p.Status)).
			Msg("pre-checkout for non-pending purchase")
		return domain.ErrOperationFailed
	}

	// The item may have been taken off sale between intent creation and the
	// provider's final question; never charge for something undeliverable.
	item, err := u.catalog.ResolveItem(ctx, nil, p.Item)
	if err != nil {
		metrics.IncWebhookEvent("pre_checkout", "unknown_item")
		return err
	}
	if !item.IsActive {
		metrics.IncWebhookEvent("pre_checkout", "item_inactive")
		u.log.Warn().Str("payment_id", p.PaymentID).Int64("item_id", item.Ref.ID).
			Msg("pre-checkout for a deactivated item")
		return domain.ErrItemInactive
	}

	metrics.IncWebhookEvent("pre_checkout", "ok")
	return nil
}

func (u *reconcileUC) ConfirmPayment(ctx context.Context, sp SuccessfulPayment) error {
	if sp.ChargeID != "" {
		seen, err := u.dedupe.Seen(ctx, sp.ChargeID)
		if err != nil {
			u.log.Error().Err(err).Str("charge_id", sp.ChargeID).Msg("dedupe lookup failed")
		} else if seen {
			metrics.IncWebhookEvent("successful_payment", "duplicate")
			u.log.Info().Str("charge_id", sp.ChargeID).Msg("charge already applied")
			return nil
		}
	}

	payload, err := model.DecodeInvoicePayload(sp.InvoicePayload)
	if err != nil {
		metrics.IncWebhookEvent("successful_payment", "bad_payload")
		return err
	}

	p, err := u.payUC.FindByPaymentID(ctx, payload.PaymentID)
	if err != nil {
		metrics.IncWebhookEvent("successful_payment", "unknown_payment")
		return err
	}

	// Every field the provider echoes back must match the stored intent.
	// A mismatch means either corruption or tampering with the payload; the
	// purchase is left pending for manual review, never auto-failed.
	switch {
	case sp.TotalAmount != p.Amount:
		u.logMismatch(p, "amount", sp)
	case sp.Currency != u.billing.Currency:
		u.logMismatch(p, "currency", sp)
	case payload.UserID != p.UserID:
		u.logMismatch(p, "user", sp)
	case payload.ItemID != p.Item.ID || payload.ItemType != p.Item.Type:
		u.logMismatch(p, "item", sp)
	default:
		ok, err := u.payUC.FinalizeIntent(ctx, p.ID)
		if err != nil {
			metrics.IncWebhookEvent("successful_payment", "error")
			return err
		}
		if !ok {
			// Terminal non-completed state raced us.
			metrics.IncWebhookEvent("successful_payment", "not_pending")
			return domain.ErrOperationFailed
		}
		if sp.ChargeID != "" {
			if err := u.dedupe.Mark(ctx, sp.ChargeID); err != nil {
				u.log.Error().Err(err).Str("charge_id", sp.ChargeID).Msg("dedupe mark failed")
			}
		}
		metrics.IncWebhookEvent("successful_payment", "ok")
		return nil
	}

	metrics.IncWebhookEvent("successful_payment", "mismatch")
	return domain.ErrVerificationFailed
}

func (u *reconcileUC) logMismatch(p *model.Purchase, field string, sp SuccessfulPayment) {
	u.log.Error().
		Str("payment_id", p.PaymentID).
		Str("field", field).
		Int64("expected_amount", p.Amount).
		Int64("got_amount", sp.TotalAmount).
		Str("got_currency", sp.Currency).
		Msg("payment verification mismatch, purchase left pending")
}
