// File: internal/usecase/withdraw_uc.go
package usecase

import (
	"context"
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

var _ WithdrawUseCase = (*withdrawUC)(nil)

// WithdrawLimits is the configured request window, exposed to bot and API.
type WithdrawLimits struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// WithdrawStatistics is the admin dashboard rollup.
type WithdrawStatistics struct {
	Balance       model.Balance `json:"balance"`
	PendingCount  int           `json:"pending_count"`
	MonthAmount   int64         `json:"month_amount"`
	MonthRequests int           `json:"month_requests"`
}

type WithdrawUseCase interface {
	// AvailableBalance recomputes the ledger from completed purchases and
	// withdrawal history. It is never cached or stored.
	AvailableBalance(ctx context.Context) (*model.Balance, error)
	// Request creates a pending withdrawal after checking the amount is
	// within limits and covered by the available balance.
	Request(ctx context.Context, amount int64, walletAddress, notes *string) (*model.WithdrawRequest, error)
	// Approve moves pending -> approved, re-checking the balance under a row
	// lock at decision time. A request the balance no longer covers is
	// auto-rejected and the rejection returned, not an error. Approving a
	// request that already left pending is a no-op returning the current row,
	// so a retried approval never fails.
	Approve(ctx context.Context, id, adminID int64, notes *string) (*model.WithdrawRequest, error)
	Reject(ctx context.Context, id, adminID int64, reason string) (bool, error)
	// Complete marks an approved payout as done. Only approved requests move.
	Complete(ctx context.Context, id, adminID int64) (bool, error)
	List(ctx context.Context, status model.WithdrawStatus, offset, limit int) ([]*model.WithdrawRequest, error)
	Limits() WithdrawLimits
	Statistics(ctx context.Context) (*WithdrawStatistics, error)
}

type withdrawUC struct {
	withdraws repository.WithdrawRepository
	purchases repository.PurchaseRepository
	tm        repository.TransactionManager
	audit     *AuditRecorder
	billing   config.BillingConfig
	log       *zerolog.Logger
}

func NewWithdrawUseCase(
	withdraws repository.WithdrawRepository,
	purchases repository.PurchaseRepository,
	tm repository.TransactionManager,
	audit *AuditRecorder,
	billing config.BillingConfig,
	logger *zerolog.Logger,
) *withdrawUC {
	wLog := logger.With().Str("component", "WithdrawUseCase").Logger()
	return &withdrawUC{
		withdraws: withdraws,
		purchases: purchases,
		tm:        tm,
		audit:     audit,
		billing:   billing,
		log:       &wLog,
	}
}

func (u *withdrawUC) AvailableBalance(ctx context.Context) (*model.Balance, error) {
	return u.balanceWithTx(ctx, nil)
}

// balanceWithTx derives the ledger inside the caller's transaction so that
// approval decisions see a consistent snapshot.
func (u *withdrawUC) balanceWithTx(ctx context.Context, tx repository.Tx) (*model.Balance, error) {
	revenue, err := u.purchases.SumCompleted(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("sum revenue: %w", err)
	}
	withdrawn, err := u.withdraws.SumByStatuses(ctx, tx, model.WithdrawStatusApproved, model.WithdrawStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("sum withdrawn: %w", err)
	}
	pending, err := u.withdraws.SumByStatuses(ctx, tx, model.WithdrawStatusPending)
	if err != nil {
		return nil, fmt.Errorf("sum pending: %w", err)
	}

	commission := revenue * int64(u.billing.CommissionPercent) / 100
	available := revenue - withdrawn - pending - commission
	if available < 0 {
		available = 0
	}
	return &model.Balance{
		TotalRevenue:     revenue,
		Commission:       commission,
		Withdrawn:        withdrawn,
		PendingWithdraws: pending,
		Available:        available,
	}, nil
}

func (u *withdrawUC) Request(ctx context.Context, amount int64, walletAddress, notes *string) (*model.WithdrawRequest, error) {
	if amount < u.billing.MinWithdraw || amount > u.billing.MaxWithdraw {
		return nil, domain.ErrInvalidArgument
	}

	var req *model.WithdrawRequest
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		bal, err := u.balanceWithTx(ctx, tx)
		if err != nil {
			return err
		}
		if amount > bal.Available {
			return domain.ErrInsufficientFunds
		}
		req, err = model.NewWithdrawRequest(amount, walletAddress, notes)
		if err != nil {
			return err
		}
		return u.withdraws.Save(ctx, tx, req)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncWithdrawal("requested")
	u.audit.Record(ctx, model.NewAuditEntry(model.AuditWithdrawRequested, "", req.Amount, 0, map[string]interface{}{"withdraw_id": req.ID}))
	u.log.Info().Int64("withdraw_id", req.ID).Int64("amount", req.Amount).Msg("withdrawal requested")
	return req, nil
}

func (u *withdrawUC) Approve(ctx context.Context, id, adminID int64, notes *string) (*model.WithdrawRequest, error) {
	var result *model.WithdrawRequest
	var transitioned bool
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		req, err := u.withdraws.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if req.Status != model.WithdrawStatusPending {
			// Already decided, likely a retried admin action. Report the
			// current state instead of failing.
			result = req
			return nil
		}

		bal, err := u.balanceWithTx(ctx, tx)
		if err != nil {
			return err
		}
		// The request reserved its amount as pending when it was created; add
		// that reservation back and re-check the raw ledger, unclamped, so a
		// revenue drop since then is caught at decision time.
		coverable := bal.TotalRevenue - bal.Withdrawn - (bal.PendingWithdraws - req.Amount) - bal.Commission
		now := time.Now().UTC()
		if req.Amount > coverable {
			note := fmt.Sprintf("insufficient funds; available: %d", coverable)
			moved, err := u.withdraws.UpdateStatusIf(ctx, tx, id, model.WithdrawStatusPending, model.WithdrawStatusRejected, &adminID, &note, now)
			if err != nil {
				return err
			}
			if !moved {
				return domain.ErrOperationFailed
			}
			req.Status = model.WithdrawStatusRejected
			req.AdminID = &adminID
			req.Notes = &note
			req.ProcessedAt = &now
			result = req
			transitioned = true
			return nil
		}

		moved, err := u.withdraws.UpdateStatusIf(ctx, tx, id, model.WithdrawStatusPending, model.WithdrawStatusApproved, &adminID, notes, now)
		if err != nil {
			return err
		}
		if !moved {
			return domain.ErrOperationFailed
		}
		req.Status = model.WithdrawStatusApproved
		req.AdminID = &adminID
		if notes != nil {
			req.Notes = notes
		}
		req.ProcessedAt = &now
		result = req
		transitioned = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !transitioned {
		return result, nil
	}

	switch result.Status {
	case model.WithdrawStatusApproved:
		metrics.IncWithdrawal("approved")
		u.audit.Record(ctx, model.NewAuditEntry(model.AuditWithdrawApproved, "", result.Amount, adminID, map[string]interface{}{"withdraw_id": result.ID}))
	case model.WithdrawStatusRejected:
		metrics.IncWithdrawal("rejected")
		u.audit.Record(ctx, model.NewAuditEntry(model.AuditWithdrawRejected, "", result.Amount, adminID, map[string]interface{}{"withdraw_id": result.ID, "auto": true}))
	}
	return result, nil
}

func (u *withdrawUC) Reject(ctx context.Context, id, adminID int64, reason string) (bool, error) {
	var notes *string
	if reason != "" {
		notes = &reason
	}
	moved, err := u.withdraws.UpdateStatusIf(ctx, nil, id, model.WithdrawStatusPending, model.WithdrawStatusRejected, &adminID, notes, time.Now().UTC())
	if err != nil {
		return false, err
	}
	if !moved {
		return false, nil
	}
	req, err := u.withdraws.FindByID(ctx, nil, id)
	if err == nil {
		metrics.IncWithdrawal("rejected")
		u.audit.Record(ctx, model.NewAuditEntry(model.AuditWithdrawRejected, "", req.Amount, adminID, map[string]interface{}{"withdraw_id": id, "reason": reason}))
	}
	return true, nil
}

func (u *withdrawUC) Complete(ctx context.Context, id, adminID int64) (bool, error) {
	moved, err := u.withdraws.UpdateStatusIf(ctx, nil, id, model.WithdrawStatusApproved, model.WithdrawStatusCompleted, &adminID, nil, time.Now().UTC())
	if err != nil {
		return false, err
	}
	if !moved {
		return false, nil
	}
	req, err := u.withdraws.FindByID(ctx, nil, id)
	if err == nil {
		metrics.IncWithdrawal("completed")
		u.audit.Record(ctx, model.NewAuditEntry(model.AuditWithdrawCompleted, "", req.Amount, adminID, map[string]interface{}{"withdraw_id": id}))
	}
	return true, nil
}

func (u *withdrawUC) List(ctx context.Context, status model.WithdrawStatus, offset, limit int) ([]*model.WithdrawRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return u.withdraws.List(ctx, nil, status, offset, limit)
}

func (u *withdrawUC) Limits() WithdrawLimits {
	return WithdrawLimits{Min: u.billing.MinWithdraw, Max: u.billing.MaxWithdraw}
}

func (u *withdrawUC) Statistics(ctx context.Context) (*WithdrawStatistics, error) {
	bal, err := u.AvailableBalance(ctx)
	if err != nil {
		return nil, err
	}
	pendingCount, err := u.withdraws.CountByStatus(ctx, nil, model.WithdrawStatusPending)
	if err != nil {
		return nil, err
	}
	monthStart := time.Now().UTC().AddDate(0, -1, 0)
	monthAmount, monthRequests, err := u.withdraws.SumSince(ctx, nil, monthStart)
	if err != nil {
		return nil, err
	}
	return &WithdrawStatistics{
		Balance:       *bal,
		PendingCount:  pendingCount,
		MonthAmount:   monthAmount,
		MonthRequests: monthRequests,
	}, nil
}
