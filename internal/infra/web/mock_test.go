//go:build !integration

package web

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-lesson-market/internal/domain"
	"telegram-lesson-market/internal/domain/model"
	"telegram-lesson-market/internal/domain/ports/repository"
	"telegram-lesson-market/internal/usecase"
)

// newTestLogger creates a silent logger for tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

// ---- payment usecase mock ----

type mockPayUC struct {
	CreateIntentFunc func(ctx context.Context, userID int64, item model.ItemRef, promoCode string, promoFallback bool) (*usecase.CreateIntentResult, error)
	purchase         *model.Purchase
}

var _ usecase.PaymentUseCase = (*mockPayUC)(nil)

func (m *mockPayUC) CreateIntent(ctx context.Context, userID int64, item model.ItemRef, promoCode string, promoFallback bool) (*usecase.CreateIntentResult, error) {
	if m.CreateIntentFunc != nil {
		return m.CreateIntentFunc(ctx, userID, item, promoCode, promoFallback)
	}
	return &usecase.CreateIntentResult{PaymentID: "pay_test", FinalAmount: 100, OriginalAmount: 100}, nil
}

func (m *mockPayUC) FinalizeIntent(ctx context.Context, purchaseID string) (bool, error) {
	return false, nil
}

func (m *mockPayUC) FailIntent(ctx context.Context, purchaseID, reason string) (bool, error) {
	return false, nil
}

func (m *mockPayUC) StatusByPaymentID(ctx context.Context, paymentID string) (model.PurchaseStatus, error) {
	if m.purchase == nil {
		return "", domain.ErrNotFound
	}
	return m.purchase.Status, nil
}

func (m *mockPayUC) FindByPaymentID(ctx context.Context, paymentID string) (*model.Purchase, error) {
	if m.purchase == nil || m.purchase.PaymentID != paymentID {
		return nil, domain.ErrNotFound
	}
	return m.purchase, nil
}

func (m *mockPayUC) ListUserPurchases(ctx context.Context, userID int64) ([]*model.Purchase, error) {
	return nil, nil
}

func (m *mockPayUC) SweepExpired(ctx context.Context, timeout time.Duration) (int, error) {
	return 0, nil
}

// ---- promo usecase mock ----

type mockPromoUC struct {
	CreateFunc func(ctx context.Context, code string, discountPercent int, discountAmount *int64, maxUses *int, expiresAt *time.Time) (*model.PromoCode, error)
}

var _ usecase.PromoUseCase = (*mockPromoUC)(nil)

func (m *mockPromoUC) Validate(ctx context.Context, code string) (*model.PromoCode, error) {
	return nil, domain.ErrNotFound
}

func (m *mockPromoUC) ApplyDiscount(promo *model.PromoCode, baseAmount int64) model.Discount {
	return model.Discount{OriginalAmount: baseAmount, FinalAmount: baseAmount}
}

func (m *mockPromoUC) Redeem(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	return false, nil
}

func (m *mockPromoUC) Create(ctx context.Context, code string, discountPercent int, discountAmount *int64, maxUses *int, expiresAt *time.Time) (*model.PromoCode, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, code, discountPercent, discountAmount, maxUses, expiresAt)
	}
	return &model.PromoCode{Code: model.NormalizeCode(code), DiscountPercent: discountPercent, IsActive: true}, nil
}

func (m *mockPromoUC) GenerateBatch(ctx context.Context, count, discountPercent int, prefix string, maxUses *int, expiresAt *time.Time) ([]*model.PromoCode, error) {
	return nil, nil
}

func (m *mockPromoUC) Deactivate(ctx context.Context, code string) (bool, error) {
	return false, nil
}

func (m *mockPromoUC) ListActive(ctx context.Context, limit int) ([]*model.PromoCode, error) {
	return []*model.PromoCode{}, nil
}

func (m *mockPromoUC) Stats(ctx context.Context, code string) (*usecase.PromoStats, error) {
	return nil, domain.ErrNotFound
}

func (m *mockPromoUC) SweepExpired(ctx context.Context) (int, error) {
	return 0, nil
}

// ---- withdraw usecase mock ----

type mockWithdrawUC struct {
	ApproveFunc func(ctx context.Context, id, adminID int64, notes *string) (*model.WithdrawRequest, error)
	balance     model.Balance
}

var _ usecase.WithdrawUseCase = (*mockWithdrawUC)(nil)

func (m *mockWithdrawUC) AvailableBalance(ctx context.Context) (*model.Balance, error) {
	bal := m.balance
	return &bal, nil
}

func (m *mockWithdrawUC) Request(ctx context.Context, amount int64, walletAddress, notes *string) (*model.WithdrawRequest, error) {
	if amount < 100 {
		return nil, domain.ErrInvalidArgument
	}
	if amount > m.balance.Available {
		return nil, domain.ErrInsufficientFunds
	}
	return &model.WithdrawRequest{ID: 1, Amount: amount, Status: model.WithdrawStatusPending}, nil
}

func (m *mockWithdrawUC) Approve(ctx context.Context, id, adminID int64, notes *string) (*model.WithdrawRequest, error) {
	if m.ApproveFunc != nil {
		return m.ApproveFunc(ctx, id, adminID, notes)
	}
	return nil, domain.ErrNotFound
}

func (m *mockWithdrawUC) Reject(ctx context.Context, id, adminID int64, reason string) (bool, error) {
	return false, nil
}

func (m *mockWithdrawUC) Complete(ctx context.Context, id, adminID int64) (bool, error) {
	return false, nil
}

func (m *mockWithdrawUC) List(ctx context.Context, status model.WithdrawStatus, offset, limit int) ([]*model.WithdrawRequest, error) {
	return nil, nil
}

func (m *mockWithdrawUC) Limits() usecase.WithdrawLimits {
	return usecase.WithdrawLimits{Min: 100, Max: 50000}
}

func (m *mockWithdrawUC) Statistics(ctx context.Context) (*usecase.WithdrawStatistics, error) {
	return &usecase.WithdrawStatistics{Balance: m.balance}, nil
}

// ---- stats usecase mock ----

type mockStatsUC struct{}

var _ usecase.StatsUseCase = (*mockStatsUC)(nil)

func (m *mockStatsUC) Revenue(ctx context.Context) (*usecase.RevenueReport, error) {
	return &usecase.RevenueReport{Week: 1, Month: 2, Year: 3}, nil
}

// ---- audit repo mock ----

type mockAuditRepo struct {
	entries []*model.AuditEntry
}

var _ repository.AuditLogRepository = (*mockAuditRepo)(nil)

func (m *mockAuditRepo) Append(ctx context.Context, tx repository.Tx, e *model.AuditEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockAuditRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.AuditEntry, error) {
	return m.entries, nil
}
