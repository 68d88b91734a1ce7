//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"telegram-lesson-market/internal/domain"
	"telegram-lesson-market/internal/domain/model"
	"telegram-lesson-market/internal/domain/ports/repository"
	"telegram-lesson-market/internal/usecase"
)

// paymentUCTestDeps holds all the mock dependencies for the payment use case tests.
type paymentUCTestDeps struct {
	purchases *MockPurchaseRepo
	catalog   *MockCatalogRepo
	promos    *MockPromoRepo
	tm        *MockTxManager
	auditRepo *MockAuditRepo
	promoUC   usecase.PromoUseCase
}

func newPaymentUCDeps() *paymentUCTestDeps {
	deps := &paymentUCTestDeps{
		purchases: NewMockPurchaseRepo(),
		catalog:   NewMockCatalogRepo(),
		promos:    NewMockPromoRepo(),
		tm:        NewMockTxManager(),
		auditRepo: NewMockAuditRepo(),
	}
	deps.promoUC = usecase.NewPromoUseCase(deps.promos, deps.tm, testBilling(), newTestLogger())
	return deps
}

func (d *paymentUCTestDeps) build() usecase.PaymentUseCase {
	audit := usecase.NewAuditRecorder(d.auditRepo, newTestLogger())
	return usecase.NewPaymentUseCase(d.purchases, d.catalog, d.promoUC, d.tm, audit, testBilling(), newTestLogger())
}

func seedBuyer(d *paymentUCTestDeps) (*model.User, *model.Item) {
	user := &model.User{ID: 1, TelegramID: 100, Username: "buyer", IsActive: true}
	item := &model.Item{
		Ref:      model.ItemRef{Type: model.ItemTypeLesson, ID: 10},
		Title:    "Go Basics",
		Price:    500,
		IsActive: true,
	}
	d.catalog.PutUser(user)
	d.catalog.PutItem(item)
	return user, item
}

func TestPaymentUseCase_CreateIntent(t *testing.T) {
	ctx := context.Background()

	t.Run("should create a pending purchase at the item price", func(t *testing.T) {
		deps := newPaymentUCDeps()
		user, item := seedBuyer(deps)
		uc := deps.build()

		res, err := uc.CreateIntent(ctx, user.ID, item.Ref, "", false)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if res.FinalAmount != 500 || res.OriginalAmount != 500 || res.DiscountApplied != 0 {
			t.Errorf("unexpected amounts: %+v", res)
		}
		if res.PaymentID == "" || res.InvoicePayload == "" {
			t.Error("expected payment id and invoice payload to be set")
		}

		saved, err := deps.purchases.FindByPaymentID(ctx, nil, res.PaymentID)
		if err != nil {
			t.Fatalf("purchase was not persisted: %v", err)
		}
		if saved.Status != model.PurchaseStatusPending {
			t.Errorf("expected status pending, got %q", saved.Status)
		}
		if deps.tm.Calls != 1 {
			t.Errorf("expected exactly one transaction, got %d", deps.tm.Calls)
		}

		payload, err := model.DecodeInvoicePayload(res.InvoicePayload)
		if err != nil {
			t.Fatalf("payload does not decode: %v", err)
		}
		if payload.PaymentID != res.PaymentID || payload.UserID != user.ID || payload.ItemID != item.Ref.ID {
			t.Errorf("payload does not match intent: %+v", payload)
		}
	})

	t.Run("should apply a valid promo code and redeem one use", func(t *testing.T) {
		deps := newPaymentUCDeps()
		user, item := seedBuyer(deps)
		promo, _ := model.NewPromoCode("SAVE20", 20, nil, nil, nil)
		deps.promos.Save(ctx, nil, promo)
		uc := deps.build()

		res, err := uc.CreateIntent(ctx, user.ID, item.Ref, "save20", false)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if res.FinalAmount != 400 || res.DiscountApplied != 100 {
			t.Errorf("expected 400 after 20%% off 500, got %+v", res)
		}

		stored, _ := deps.promos.FindByCode(ctx, nil, "SAVE20")
		if stored.CurrentUses != 1 {
			t.Errorf("expected one use consumed, got %d", stored.CurrentUses)
		}
	})

	t.Run("should reject an invalid promo code when fallback is off", func(t *testing.T) {
		deps := newPaymentUCDeps()
		user, item := seedBuyer(deps)
		uc := deps.build()

		_, err := uc.CreateIntent(ctx, user.ID, item.Ref, "NOPE", false)
		var invalid *model.PromoInvalidError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected PromoInvalidError, got: %v", err)
		}
		if invalid.Reason != model.PromoNotFound {
			t.Errorf("expected reason not_found, got %q", invalid.Reason)
		}
	})

	t.Run("should fall back to full price on an invalid promo when fallback is on", func(t *testing.T) {
		deps := newPaymentUCDeps()
		user, item := seedBuyer(deps)
		uc := deps.build()

		res, err := uc.CreateIntent(ctx, user.ID, item.Ref, "NOPE", true)
		if err != nil {
			t.Fatalf("expected fallback to succeed, got: %v", err)
		}
		if res.FinalAmount != 500 || res.DiscountApplied != 0 {
			t.Errorf("expected full price, got %+v", res)
		}
	})

	t.Run("should fall back to full price when the last use is lost in the transaction", func(t *testing.T) {
		deps := newPaymentUCDeps()
		user, item := seedBuyer(deps)
		promo, _ := model.NewPromoCode("LAST1", 50, nil, nil, nil)
		deps.promos.Save(ctx, nil, promo)
		// Validate passes, then the racing redemption loses.
		deps.promos.RedeemFunc = func(ctx context.Context, tx repository.Tx, code string, now time.Time) (bool, error) {
			return false, nil
		}
		uc := deps.build()

		res, err := uc.CreateIntent(ctx, user.ID, item.Ref, "LAST1", true)
		if err != nil {
			t.Fatalf("expected fallback to succeed, got: %v", err)
		}
		if res.FinalAmount != 500 {
			t.Errorf("expected reverted full price 500, got %d", res.FinalAmount)
		}
		saved, _ := deps.purchases.FindByPaymentID(ctx, nil, res.PaymentID)
		if saved.Amount != 500 {
			t.Errorf("persisted amount should be reverted, got %d", saved.Amount)
		}
	})

	t.Run("should error when the last use is lost and fallback is off", func(t *testing.T) {
		deps := newPaymentUCDeps()
		user, item := seedBuyer(deps)
		promo, _ := model.NewPromoCode("LAST1", 50, nil, nil, nil)
		deps.promos.Save(ctx, nil, promo)
		deps.promos.RedeemFunc = func(ctx context.Context, tx repository.Tx, code string, now time.Time) (bool, error) {
			return false, nil
		}
		uc := deps.build()

		_, err := uc.CreateIntent(ctx, user.ID, item.Ref, "LAST1", false)
		var invalid *model.PromoInvalidError
		if !errors.As(err, &invalid) || invalid.Reason != model.PromoExhausted {
			t.Fatalf("expected exhausted error, got: %v", err)
		}
	})

	t.Run("should reject a repeat purchase of an owned item", func(t *testing.T) {
		deps := newPaymentUCDeps()
		user, item := seedBuyer(deps)
		owned, _ := model.NewPurchase(user.ID, item.Ref, item.Price)
		owned.Status = model.PurchaseStatusCompleted
		deps.purchases.Save(ctx, nil, owned)
		uc := deps.build()

		_, err := uc.CreateIntent(ctx, user.ID, item.Ref, "", false)
		if !errors.Is(err, domain.ErrAlreadyPurchased) {
			t.Fatalf("expected ErrAlreadyPurchased, got: %v", err)
		}
	})

	t.Run("should reject inactive users and inactive items", func(t *testing.T) {
		deps := newPaymentUCDeps()
		user, item := seedBuyer(deps)
		deps.catalog.PutUser(&model.User{ID: 2, TelegramID: 200, IsActive: false})
		deps.catalog.PutItem(&model.Item{Ref: model.ItemRef{Type: model.ItemTypeCourse, ID: 7}, Title: "Old", Price: 100, IsActive: false})
		uc := deps.build()

		if _, err := uc.CreateIntent(ctx, 2, item.Ref, "", false); !errors.Is(err, domain.ErrUserInactive) {
			t.Errorf("expected ErrUserInactive, got: %v", err)
		}
		if _, err := uc.CreateIntent(ctx, user.ID, model.ItemRef{Type: model.ItemTypeCourse, ID: 7}, "", false); !errors.Is(err, domain.ErrItemInactive) {
			t.Errorf("expected ErrItemInactive, got: %v", err)
		}
	})
}

func TestPaymentUseCase_FinalizeIntent(t *testing.T) {
	ctx := context.Background()

	setup := func() (*paymentUCTestDeps, usecase.PaymentUseCase, *model.Purchase) {
		deps := newPaymentUCDeps()
		user, item := seedBuyer(deps)
		p, _ := model.NewPurchase(user.ID, item.Ref, item.Price)
		deps.purchases.Save(ctx, nil, p)
		return deps, deps.build(), p
	}

	t.Run("should move a pending purchase to completed once", func(t *testing.T) {
		deps, uc, p := setup()

		moved, err := uc.FinalizeIntent(ctx, p.ID)
		if err != nil || !moved {
			t.Fatalf("expected finalize to move, got moved=%v err=%v", moved, err)
		}
		stored, _ := deps.purchases.FindByID(ctx, nil, p.ID)
		if stored.Status != model.PurchaseStatusCompleted {
			t.Errorf("expected completed, got %q", stored.Status)
		}
	})

	t.Run("should treat a repeated finalize as a success no-op", func(t *testing.T) {
		deps, uc, p := setup()

		if _, err := uc.FinalizeIntent(ctx, p.ID); err != nil {
			t.Fatal(err)
		}
		before := len(deps.auditRepo.Entries)
		moved, err := uc.FinalizeIntent(ctx, p.ID)
		if err != nil {
			t.Fatalf("retried finalize must not error: %v", err)
		}
		if !moved {
			t.Error("retried finalize of a completed purchase should report success")
		}
		actions := deps.auditRepo.Actions()
		if len(actions) != before+1 || actions[len(actions)-1] != model.AuditPaymentNoop {
			t.Errorf("expected a single noop audit entry, got %v", actions)
		}
	})

	t.Run("should refuse to finalize a failed purchase", func(t *testing.T) {
		_, uc, p := setup()

		if _, err := uc.FailIntent(ctx, p.ID, "expired"); err != nil {
			t.Fatal(err)
		}
		moved, err := uc.FinalizeIntent(ctx, p.ID)
		if err != nil {
			t.Fatal(err)
		}
		if moved {
			t.Error("failed purchase must not finalize")
		}
	})
}

func TestPaymentUseCase_FailIntent(t *testing.T) {
	ctx := context.Background()
	deps := newPaymentUCDeps()
	user, item := seedBuyer(deps)
	uc := deps.build()

	p, _ := model.NewPurchase(user.ID, item.Ref, item.Price)
	deps.purchases.Save(ctx, nil, p)

	moved, err := uc.FailIntent(ctx, p.ID, "expired")
	if err != nil || !moved {
		t.Fatalf("expected fail to move, got moved=%v err=%v", moved, err)
	}
	stored, _ := deps.purchases.FindByID(ctx, nil, p.ID)
	if stored.Status != model.PurchaseStatusFailed {
		t.Errorf("expected failed, got %q", stored.Status)
	}

	// Terminal states are left alone.
	moved, err = uc.FailIntent(ctx, p.ID, "again")
	if err != nil || moved {
		t.Errorf("failing a terminal purchase must be a no-op, got moved=%v err=%v", moved, err)
	}
}

func TestPaymentUseCase_SweepExpired(t *testing.T) {
	ctx := context.Background()
	deps := newPaymentUCDeps()
	user, item := seedBuyer(deps)
	uc := deps.build()

	stale, _ := model.NewPurchase(user.ID, item.Ref, item.Price)
	stale.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	deps.purchases.Save(ctx, nil, stale)

	fresh, _ := model.NewPurchase(user.ID, model.ItemRef{Type: model.ItemTypeCourse, ID: 3}, 900)
	deps.purchases.Save(ctx, nil, fresh)

	done, _ := model.NewPurchase(user.ID, model.ItemRef{Type: model.ItemTypeLesson, ID: 4}, 300)
	done.CreatedAt = time.Now().UTC().Add(-3 * time.Hour)
	done.Status = model.PurchaseStatusCompleted
	deps.purchases.Save(ctx, nil, done)

	n, err := uc.SweepExpired(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one expired purchase, got %d", n)
	}

	got, _ := deps.purchases.FindByID(ctx, nil, stale.ID)
	if got.Status != model.PurchaseStatusFailed {
		t.Errorf("stale purchase should be failed, got %q", got.Status)
	}
	got, _ = deps.purchases.FindByID(ctx, nil, fresh.ID)
	if got.Status != model.PurchaseStatusPending {
		t.Errorf("fresh purchase must stay pending, got %q", got.Status)
	}
	got, _ = deps.purchases.FindByID(ctx, nil, done.ID)
	if got.Status != model.PurchaseStatusCompleted {
		t.Errorf("completed purchase must stay completed, got %q", got.Status)
	}
}
