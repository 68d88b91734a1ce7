package model

import (
	"time"

	"telegram-lesson-market/internal/domain"
)

type WithdrawStatus string

const (
	WithdrawStatusPending   WithdrawStatus = "pending"
	WithdrawStatusApproved  WithdrawStatus = "approved"
	WithdrawStatusRejected  WithdrawStatus = "rejected"
	WithdrawStatusCompleted WithdrawStatus = "completed"
)

// WithdrawRequest asks to pay platform revenue out to an external wallet.
// pending -> approved -> completed, or pending -> rejected. Nothing skips
// approved on the way to completed.
type WithdrawRequest struct {
	ID            int64
	Amount        int64 // Stars
	Status        WithdrawStatus
	WalletAddress *string
	RequestedAt   time.Time
	ProcessedAt   *time.Time
	AdminID       *int64
	Notes         *string
}

func NewWithdrawRequest(amount int64, walletAddress, notes *string) (*WithdrawRequest, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &WithdrawRequest{
		Amount:        amount,
		Status:        WithdrawStatusPending,
		WalletAddress: walletAddress,
		Notes:         notes,
		RequestedAt:   time.Now().UTC(),
	}, nil
}

// Balance is the derived ledger view: always recomputed from completed
// purchases and withdrawal history, never stored as a running total.
type Balance struct {
	TotalRevenue     int64 // sum of completed purchase amounts
	Commission       int64 // floor(TotalRevenue * commission% / 100)
	Withdrawn        int64 // approved + completed withdrawals
	PendingWithdraws int64
	Available        int64 // floored at zero
}
