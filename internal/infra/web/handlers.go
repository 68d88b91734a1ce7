package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"telegram-lesson-market/internal/domain"
	"telegram-lesson-market/internal/domain/model"
)

// writeDomainError maps use-case errors onto HTTP statuses. Promo rejections
// carry their reason so dashboard operators see why a code was refused.
func writeDomainError(w http.ResponseWriter, err error) {
	var promoErr *model.PromoInvalidError
	switch {
	case errors.As(err, &promoErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  "promo code invalid",
			"code":   promoErr.Code,
			"reason": string(promoErr.Reason),
		})
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, "Invalid request", http.StatusBadRequest)
	case errors.Is(err, domain.ErrAlreadyExists):
		http.Error(w, "Already exists", http.StatusConflict)
	case errors.Is(err, domain.ErrAlreadyPurchased):
		http.Error(w, "Item already purchased", http.StatusConflict)
	case errors.Is(err, domain.ErrUserInactive), errors.Is(err, domain.ErrItemInactive):
		http.Error(w, "Inactive", http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrInsufficientFunds):
		http.Error(w, "Insufficient funds", http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrOperationFailed):
		http.Error(w, "Conflicting state", http.StatusConflict)
	default:
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

// ---- stats / ledger ----

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	revenue, err := s.statsUC.Revenue(ctx)
	if err != nil {
		http.Error(w, "Failed to get revenue", http.StatusInternalServerError)
		return
	}
	stats, err := s.withdrawUC.Statistics(ctx)
	if err != nil {
		http.Error(w, "Failed to get withdrawal statistics", http.StatusInternalServerError)
		return
	}

	response := struct {
		Revenue     interface{} `json:"revenue_stars"`
		Withdrawals interface{} `json:"withdrawals"`
	}{
		Revenue:     revenue,
		Withdrawals: stats,
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) balanceHandler(w http.ResponseWriter, r *http.Request) {
	bal, err := s.withdrawUC.AvailableBalance(r.Context())
	if err != nil {
		http.Error(w, "Failed to compute balance", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		TotalRevenue     int64 `json:"total_revenue"`
		Commission       int64 `json:"commission"`
		Withdrawn        int64 `json:"withdrawn"`
		PendingWithdraws int64 `json:"pending_withdraws"`
		Available        int64 `json:"available"`
	}{bal.TotalRevenue, bal.Commission, bal.Withdrawn, bal.PendingWithdraws, bal.Available})
}

func (s *Server) auditHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.audit.ListRecent(r.Context(), nil, limit)
	if err != nil {
		http.Error(w, "Failed to list audit entries", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Data []*model.AuditEntry `json:"data"`
	}{entries})
}

// ---- payments ----

type paymentCreateRequest struct {
	UserID    int64  `json:"user_id"`
	ItemType  string `json:"item_type"`
	ItemID    int64  `json:"item_id"`
	PromoCode string `json:"promo_code"`
}

func (s *Server) paymentCreateHandler(w http.ResponseWriter, r *http.Request) {
	var req paymentCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	itemType, err := model.ParseItemType(req.ItemType)
	if err != nil {
		http.Error(w, "item_type must be lesson or course", http.StatusBadRequest)
		return
	}

	// API callers get strict promo semantics: an invalid code is an error,
	// never a silent full-price fallback.
	result, err := s.payUC.CreateIntent(r.Context(), req.UserID, model.ItemRef{Type: itemType, ID: req.ItemID}, req.PromoCode, false)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) paymentGetHandler(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")
	p, err := s.payUC.FindByPaymentID(r.Context(), paymentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		PaymentID string `json:"payment_id"`
		UserID    int64  `json:"user_id"`
		ItemType  string `json:"item_type"`
		ItemID    int64  `json:"item_id"`
		Amount    int64  `json:"amount"`
		Status    string `json:"status"`
		CreatedAt string `json:"created_at"`
		UpdatedAt string `json:"updated_at"`
	}{
		PaymentID: p.PaymentID,
		UserID:    p.UserID,
		ItemType:  string(p.Item.Type),
		ItemID:    p.Item.ID,
		Amount:    p.Amount,
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
	})
}

// ---- promo codes ----

type promoCreateRequest struct {
	Code            string     `json:"code"`
	DiscountPercent int        `json:"discount_percent"`
	DiscountAmount  *int64     `json:"discount_amount"`
	MaxUses         *int       `json:"max_uses"`
	ExpiresAt       *time.Time `json:"expires_at"`
}

func (s *Server) promoCreateHandler(w http.ResponseWriter, r *http.Request) {
	var req promoCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	promo, err := s.promoUC.Create(r.Context(), req.Code, req.DiscountPercent, req.DiscountAmount, req.MaxUses, req.ExpiresAt)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, promo)
}

type promoBatchRequest struct {
	Count           int        `json:"count"`
	DiscountPercent int        `json:"discount_percent"`
	Prefix          string     `json:"prefix"`
	MaxUses         *int       `json:"max_uses"`
	ExpiresAt       *time.Time `json:"expires_at"`
}

func (s *Server) promoBatchHandler(w http.ResponseWriter, r *http.Request) {
	var req promoBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	promos, err := s.promoUC.GenerateBatch(r.Context(), req.Count, req.DiscountPercent, req.Prefix, req.MaxUses, req.ExpiresAt)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	codes := make([]string, 0, len(promos))
	for _, p := range promos {
		codes = append(codes, p.Code)
	}
	writeJSON(w, http.StatusCreated, struct {
		Count int      `json:"count"`
		Codes []string `json:"codes"`
	}{len(codes), codes})
}

func (s *Server) promoListHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	promos, err := s.promoUC.ListActive(r.Context(), limit)
	if err != nil {
		http.Error(w, "Failed to list promo codes", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Data []*model.PromoCode `json:"data"`
	}{promos})
}

func (s *Server) promoStatsHandler(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	stats, err := s.promoUC.Stats(r.Context(), code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) promoDeactivateHandler(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	ok, err := s.promoUC.Deactivate(r.Context(), code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !ok {
		http.Error(w, "Not found or already inactive", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- withdrawals ----

type withdrawCreateRequest struct {
	Amount        int64   `json:"amount"`
	WalletAddress *string `json:"wallet_address"`
	Notes         *string `json:"notes"`
}

func (s *Server) withdrawCreateHandler(w http.ResponseWriter, r *http.Request) {
	var req withdrawCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	created, err := s.withdrawUC.Request(r.Context(), req.Amount, req.WalletAddress, req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) withdrawListHandler(w http.ResponseWriter, r *http.Request) {
	status := model.WithdrawStatus(r.URL.Query().Get("status"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	reqs, err := s.withdrawUC.List(r.Context(), status, offset, limit)
	if err != nil {
		http.Error(w, "Failed to list withdrawals", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Data   []*model.WithdrawRequest `json:"data"`
		Offset int                      `json:"offset"`
		Limit  int                      `json:"limit"`
	}{reqs, offset, limit})
}

type withdrawActionRequest struct {
	AdminID int64   `json:"admin_id"`
	Reason  string  `json:"reason,omitempty"`
	Notes   *string `json:"notes,omitempty"`
}

func withdrawID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (s *Server) withdrawApproveHandler(w http.ResponseWriter, r *http.Request) {
	id, err := withdrawID(r)
	if err != nil {
		http.Error(w, "Invalid withdrawal id", http.StatusBadRequest)
		return
	}
	var req withdrawActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.withdrawUC.Approve(r.Context(), id, req.AdminID, req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	// A request the balance no longer covers comes back auto-rejected.
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) withdrawRejectHandler(w http.ResponseWriter, r *http.Request) {
	id, err := withdrawID(r)
	if err != nil {
		http.Error(w, "Invalid withdrawal id", http.StatusBadRequest)
		return
	}
	var req withdrawActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	moved, err := s.withdrawUC.Reject(r.Context(), id, req.AdminID, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !moved {
		http.Error(w, "Request is not pending", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) withdrawCompleteHandler(w http.ResponseWriter, r *http.Request) {
	id, err := withdrawID(r)
	if err != nil {
		http.Error(w, "Invalid withdrawal id", http.StatusBadRequest)
		return
	}
	var req withdrawActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	moved, err := s.withdrawUC.Complete(r.Context(), id, req.AdminID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !moved {
		http.Error(w, "Request is not approved", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
