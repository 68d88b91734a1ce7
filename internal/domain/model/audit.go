package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Audit actions recorded for every financial state change.
const (
	AuditPaymentCreated    = "payment_created"
	AuditPaymentCompleted  = "payment_completed"
	AuditPaymentFailed     = "payment_failed"
	AuditPaymentNoop       = "payment_noop"
	AuditPromoRedeemed     = "promo_redeemed"
	AuditWithdrawRequested = "withdraw_requested"
	AuditWithdrawApproved  = "withdraw_approved"
	AuditWithdrawRejected  = "withdraw_rejected"
	AuditWithdrawCompleted = "withdraw_completed"
)

// AuditEntry is one append-only record of a financial state change.
// ULID ids keep the log naturally ordered by creation time.
type AuditEntry struct {
	ID        string
	Action    string
	PaymentID string // empty for withdrawal entries
	Amount    int64
	ActorID   int64 // admin id for administrative actions, 0 otherwise
	Details   map[string]interface{}
	CreatedAt time.Time
}

func NewAuditEntry(action string, paymentID string, amount int64, actorID int64, details map[string]interface{}) *AuditEntry {
	return &AuditEntry{
		ID:        ulid.Make().String(),
		Action:    action,
		PaymentID: paymentID,
		Amount:    amount,
		ActorID:   actorID,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
}
