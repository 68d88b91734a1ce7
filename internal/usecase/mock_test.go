//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-lesson-market/internal/config"
	"telegram-lesson-market/internal/domain"
	"telegram-lesson-market/internal/domain/model"
	"telegram-lesson-market/internal/domain/ports/repository"
)

// =============================
// Catalog
// =============================

// MockCatalogRepo keeps users and items in memory. Its Func hooks let a test
// override single calls without re-implementing the whole repository.
type MockCatalogRepo struct {
	mu    sync.RWMutex
	users map[int64]*model.User
	items map[model.ItemRef]*model.Item

	ResolveItemFunc func(ctx context.Context, tx repository.Tx, ref model.ItemRef) (*model.Item, error)
}

func NewMockCatalogRepo() *MockCatalogRepo {
	return &MockCatalogRepo{
		users: make(map[int64]*model.User),
		items: make(map[model.ItemRef]*model.Item),
	}
}

var _ repository.CatalogRepository = (*MockCatalogRepo)(nil)

func (m *MockCatalogRepo) PutUser(u *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
}

func (m *MockCatalogRepo) PutItem(it *model.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *it
	m.items[it.Ref] = &cp
}

func (m *MockCatalogRepo) FindUser(ctx context.Context, tx repository.Tx, id int64) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockCatalogRepo) FindUserByTelegramID(ctx context.Context, tx repository.Tx, telegramID int64) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.TelegramID == telegramID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockCatalogRepo) EnsureUser(ctx context.Context, tx repository.Tx, telegramID int64, username string) (*model.User, error) {
	if u, err := m.FindUserByTelegramID(ctx, tx, telegramID); err == nil {
		u.Username = username
		return u, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &model.User{
		ID:         int64(len(m.users) + 1),
		TelegramID: telegramID,
		Username:   username,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *MockCatalogRepo) ResolveItem(ctx context.Context, tx repository.Tx, ref model.ItemRef) (*model.Item, error) {
	if m.ResolveItemFunc != nil {
		return m.ResolveItemFunc(ctx, tx, ref)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

// =============================
// Purchases
// =============================

type MockPurchaseRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Purchase // by ID

	SaveFunc         func(ctx context.Context, tx repository.Tx, p *model.Purchase) error
	SumCompletedFunc func(ctx context.Context, tx repository.Tx) (int64, error)
}

func NewMockPurchaseRepo() *MockPurchaseRepo {
	return &MockPurchaseRepo{store: make(map[string]*model.Purchase)}
}

var _ repository.PurchaseRepository = (*MockPurchaseRepo)(nil)

func (m *MockPurchaseRepo) Save(ctx context.Context, tx repository.Tx, p *model.Purchase) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockPurchaseRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPurchaseRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.PaymentID == paymentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPurchaseRepo) HasCompleted(ctx context.Context, tx repository.Tx, userID int64, item model.ItemRef) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.UserID == userID && p.Item == item && p.Status == model.PurchaseStatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockPurchaseRepo) ListCompletedByUser(ctx context.Context, tx repository.Tx, userID int64) ([]*model.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Purchase
	for _, p := range m.store {
		if p.UserID == userID && p.Status == model.PurchaseStatusCompleted {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockPurchaseRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Purchase
	for _, p := range m.store {
		if p.Status == model.PurchaseStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateStatusIfPending mirrors the production compare-and-swap: zero rows
// moved when the purchase is not pending anymore.
func (m *MockPurchaseRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.PurchaseStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok || p.Status != model.PurchaseStatusPending {
		return false, nil
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MockPurchaseRepo) SumCompleted(ctx context.Context, tx repository.Tx) (int64, error) {
	if m.SumCompletedFunc != nil {
		return m.SumCompletedFunc(ctx, tx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum int64
	for _, p := range m.store {
		if p.Status == model.PurchaseStatusCompleted {
			sum += p.Amount
		}
	}
	return sum, nil
}

func (m *MockPurchaseRepo) SumCompletedByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	// Unit tests only create recent rows, so every period sums everything.
	return m.SumCompleted(ctx, tx)
}

// =============================
// Promo codes
// =============================

type MockPromoRepo struct {
	mu    sync.Mutex
	store map[string]*model.PromoCode

	RedeemFunc func(ctx context.Context, tx repository.Tx, code string, now time.Time) (bool, error)
}

func NewMockPromoRepo() *MockPromoRepo {
	return &MockPromoRepo{store: make(map[string]*model.PromoCode)}
}

var _ repository.PromoCodeRepository = (*MockPromoRepo)(nil)

func (m *MockPromoRepo) Save(ctx context.Context, tx repository.Tx, p *model.PromoCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.store[p.Code]; exists {
		return domain.ErrAlreadyExists
	}
	if p.ID == 0 {
		p.ID = int64(len(m.store) + 1)
	}
	cp := *p
	m.store[p.Code] = &cp
	return nil
}

func (m *MockPromoRepo) SaveBatch(ctx context.Context, tx repository.Tx, ps []*model.PromoCode) error {
	for _, p := range ps {
		if err := m.Save(ctx, tx, p); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockPromoRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.PromoCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPromoRepo) ListActive(ctx context.Context, tx repository.Tx, limit int) ([]*model.PromoCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PromoCode
	for _, p := range m.store {
		if p.IsActive {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockPromoRepo) ExistingCodes(ctx context.Context, tx repository.Tx, codes []string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	taken := make(map[string]struct{})
	for _, c := range codes {
		if _, ok := m.store[c]; ok {
			taken[c] = struct{}{}
		}
	}
	return taken, nil
}

// Redeem applies the same single-statement semantics as the SQL version:
// the counter moves and the code deactivates in one step under the lock.
func (m *MockPromoRepo) Redeem(ctx context.Context, tx repository.Tx, code string, now time.Time) (bool, error) {
	if m.RedeemFunc != nil {
		return m.RedeemFunc(ctx, tx, code, now)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[code]
	if !ok || !p.IsActive {
		return false, nil
	}
	if p.ExpiresAt != nil && p.ExpiresAt.Before(now) {
		return false, nil
	}
	if p.MaxUses != nil && p.CurrentUses >= *p.MaxUses {
		return false, nil
	}
	p.CurrentUses++
	if p.MaxUses != nil && p.CurrentUses >= *p.MaxUses {
		p.IsActive = false
	}
	return true, nil
}

func (m *MockPromoRepo) Deactivate(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[code]
	if !ok || !p.IsActive {
		return false, nil
	}
	p.IsActive = false
	return true, nil
}

func (m *MockPromoRepo) DeactivateExpired(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.store {
		if p.IsActive && p.ExpiresAt != nil && p.ExpiresAt.Before(now) {
			p.IsActive = false
			n++
		}
	}
	return n, nil
}

// =============================
// Withdrawals
// =============================

type MockWithdrawRepo struct {
	mu     sync.Mutex
	store  map[int64]*model.WithdrawRequest
	nextID int64
}

func NewMockWithdrawRepo() *MockWithdrawRepo {
	return &MockWithdrawRepo{store: make(map[int64]*model.WithdrawRequest)}
}

var _ repository.WithdrawRepository = (*MockWithdrawRepo)(nil)

func (m *MockWithdrawRepo) Save(ctx context.Context, tx repository.Tx, w *model.WithdrawRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.ID == 0 {
		m.nextID++
		w.ID = m.nextID
	}
	cp := *w
	m.store[w.ID] = &cp
	return nil
}

func (m *MockWithdrawRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.WithdrawRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *MockWithdrawRepo) List(ctx context.Context, tx repository.Tx, status model.WithdrawStatus, offset, limit int) ([]*model.WithdrawRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.WithdrawRequest
	for _, w := range m.store {
		if status != "" && w.Status != status {
			continue
		}
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockWithdrawRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id int64, from, to model.WithdrawStatus, adminID *int64, notes *string, processedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.store[id]
	if !ok || w.Status != from {
		return false, nil
	}
	w.Status = to
	if adminID != nil {
		w.AdminID = adminID
	}
	if notes != nil {
		w.Notes = notes
	}
	pa := processedAt
	w.ProcessedAt = &pa
	return true, nil
}

func (m *MockWithdrawRepo) SumByStatuses(ctx context.Context, tx repository.Tx, statuses ...model.WithdrawStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, w := range m.store {
		for _, s := range statuses {
			if w.Status == s {
				sum += w.Amount
				break
			}
		}
	}
	return sum, nil
}

func (m *MockWithdrawRepo) CountByStatus(ctx context.Context, tx repository.Tx, status model.WithdrawStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, w := range m.store {
		if w.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *MockWithdrawRepo) SumSince(ctx context.Context, tx repository.Tx, since time.Time) (int64, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	n := 0
	for _, w := range m.store {
		if !w.RequestedAt.Before(since) {
			sum += w.Amount
			n++
		}
	}
	return sum, n, nil
}

// =============================
// Audit log
// =============================

type MockAuditRepo struct {
	mu      sync.Mutex
	Entries []*model.AuditEntry

	AppendErr error
}

func NewMockAuditRepo() *MockAuditRepo {
	return &MockAuditRepo{}
}

var _ repository.AuditLogRepository = (*MockAuditRepo)(nil)

func (m *MockAuditRepo) Append(ctx context.Context, tx repository.Tx, e *model.AuditEntry) error {
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.Entries = append(m.Entries, &cp)
	return nil
}

func (m *MockAuditRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.AuditEntry, 0, len(m.Entries))
	for i := len(m.Entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		cp := *m.Entries[i]
		out = append(out, &cp)
	}
	return out, nil
}

// Actions returns the recorded action names in append order.
func (m *MockAuditRepo) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		out[i] = e.Action
	}
	return out
}

// =============================
// Transactions
// =============================

// MockTxManager runs the callback directly with a nil tx. The in-memory
// repositories ignore the handle, so the transactional and plain paths are
// identical under test.
type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
	Calls      int
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.Calls++
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, nil)
}

// =============================
// Charge dedupe
// =============================

type MockChargeDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}

	SeenErr error
	MarkErr error
}

func NewMockChargeDeduper() *MockChargeDeduper {
	return &MockChargeDeduper{seen: make(map[string]struct{})}
}

func (m *MockChargeDeduper) Seen(ctx context.Context, chargeID string) (bool, error) {
	if m.SeenErr != nil {
		return false, m.SeenErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[chargeID]
	return ok, nil
}

func (m *MockChargeDeduper) Mark(ctx context.Context, chargeID string) error {
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[chargeID] = struct{}{}
	return nil
}

// =============================
// Helpers
// =============================

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// testBilling mirrors the default money policy.
func testBilling() config.BillingConfig {
	return config.BillingConfig{
		Currency:          "XTR",
		CommissionPercent: 5,
		MinPrice:          1,
		MaxPrice:          10000,
		MinWithdraw:       100,
		MaxWithdraw:       50000,
	}
}
