package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"telegram-lesson-market/internal/domain"
)

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"   // intent created, awaiting provider confirmation
	PurchaseStatusCompleted PurchaseStatus = "completed" // provider confirmed the charge
	PurchaseStatusFailed    PurchaseStatus = "failed"    // reconciliation failure or expiry sweep
	PurchaseStatusRefunded  PurchaseStatus = "refunded"  // explicit administrative refund
)

// IsTerminal reports whether no further automatic transition is legal.
func (s PurchaseStatus) IsTerminal() bool {
	return s == PurchaseStatusCompleted || s == PurchaseStatusFailed || s == PurchaseStatusRefunded
}

// Purchase is one payment intent. Amount is the price after any promo
// discount applied at creation time and never changes afterwards.
type Purchase struct {
	ID        string // UUID
	PaymentID string // external correlation/idempotency key
	UserID    int64
	Item      ItemRef
	Amount    int64 // Stars
	Status    PurchaseStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPurchase builds a pending purchase with a fresh payment id.
func NewPurchase(userID int64, item ItemRef, amount int64) (*Purchase, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if item.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	if amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &Purchase{
		ID:        uuid.NewString(),
		PaymentID: NewPaymentID(),
		UserID:    userID,
		Item:      item,
		Amount:    amount,
		Status:    PurchaseStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NewPaymentID returns an opaque, non-sequential payment identifier.
// The random source makes ids unguessable; "pay_" keeps them recognizable
// in provider payloads and audit trails.
func NewPaymentID() string {
	return "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// InvoicePayload is the correlation payload embedded in the provider invoice
// and echoed back verbatim in webhook events.
type InvoicePayload struct {
	PaymentID string   `json:"payment_id"`
	UserID    int64    `json:"user_id"`
	ItemID    int64    `json:"item_id"`
	ItemType  ItemType `json:"item_type"`
}

func (p InvoicePayload) Encode() string {
	b, _ := json.Marshal(p)
	return string(b)
}

func DecodeInvoicePayload(s string) (InvoicePayload, error) {
	var p InvoicePayload
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return InvoicePayload{}, domain.ErrInvalidArgument
	}
	if p.PaymentID == "" {
		return InvoicePayload{}, domain.ErrInvalidArgument
	}
	return p, nil
}

// PayloadFor builds the invoice payload for this purchase.
func (p *Purchase) PayloadFor() InvoicePayload {
	return InvoicePayload{
		PaymentID: p.PaymentID,
		UserID:    p.UserID,
		ItemID:    p.Item.ID,
		ItemType:  p.Item.Type,
	}
}
