package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"telegram-lesson-market/internal/domain"
	"telegram-lesson-market/internal/domain/model"
	"telegram-lesson-market/internal/domain/ports/repository"
	"telegram-lesson-market/internal/usecase"
)

// BotFacade composes usecases into high-level bot commands.
// Keep the facade methods returning strings so the Telegram adapter just
// forwards them to the chat; Buy is the exception because the adapter needs
// the structured result to build a provider invoice.
type BotFacade struct {
	Catalog    repository.CatalogRepository
	PayUC      usecase.PaymentUseCase
	PromoUC    usecase.PromoUseCase
	WithdrawUC usecase.WithdrawUseCase
	StatsUC    usecase.StatsUseCase
}

func NewBotFacade(
	catalog repository.CatalogRepository,
	payUC usecase.PaymentUseCase,
	promoUC usecase.PromoUseCase,
	withdrawUC usecase.WithdrawUseCase,
	statsUC usecase.StatsUseCase,
) *BotFacade {
	return &BotFacade{
		Catalog:    catalog,
		PayUC:      payUC,
		PromoUC:    promoUC,
		WithdrawUC: withdrawUC,
		StatsUC:    statsUC,
	}
}

// HandleStart registers or refreshes the user and returns a welcome string.
func (b *BotFacade) HandleStart(ctx context.Context, tgID int64, username string) (string, error) {
	user, err := b.Catalog.EnsureUser(ctx, nil, tgID, username)
	if err != nil {
		return "", fmt.Errorf("ensure user: %w", err)
	}
	if !user.IsActive {
		return "Your account is blocked. Contact support.", nil
	}
	return "Welcome to the lesson market!\nBuy with: /buy <lesson|course> <id> [promo]\nYour library: /mypurchases", nil
}

// HandleBuy creates a payment intent for the bot flow. An invalid promo code
// degrades to full price rather than aborting the purchase.
func (b *BotFacade) HandleBuy(ctx context.Context, tgID int64, itemType string, itemID int64, promoCode string) (*usecase.CreateIntentResult, error) {
	user, err := b.Catalog.FindUserByTelegramID(ctx, nil, tgID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	parsed, err := model.ParseItemType(itemType)
	if err != nil {
		return nil, err
	}

	return b.PayUC.CreateIntent(ctx, user.ID, model.ItemRef{Type: parsed, ID: itemID}, promoCode, true)
}

// HandleMyPurchases lists the user's completed purchases.
func (b *BotFacade) HandleMyPurchases(ctx context.Context, tgID int64) (string, error) {
	user, err := b.Catalog.FindUserByTelegramID(ctx, nil, tgID)
	if err != nil {
		return "", fmt.Errorf("find user: %w", err)
	}

	purchases, err := b.PayUC.ListUserPurchases(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("list purchases: %w", err)
	}
	if len(purchases) == 0 {
		return "You have no purchases yet. Use /buy to get your first lesson.", nil
	}

	sb := strings.Builder{}
	sb.WriteString("Your purchases:\n")
	for _, p := range purchases {
		sb.WriteString(fmt.Sprintf("- %s #%d, %d ⭐ (%s)\n", p.Item.Type, p.Item.ID, p.Amount, p.UpdatedAt.Format("2006-01-02")))
	}
	return sb.String(), nil
}

// HandleStatus reports the state of one payment by its public id.
func (b *BotFacade) HandleStatus(ctx context.Context, paymentID string) (string, error) {
	status, err := b.PayUC.StatusByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "No payment found with that id.", nil
		}
		return "", err
	}
	return fmt.Sprintf("Payment %s: %s", paymentID, status), nil
}

// HandleStats builds the admin-facing statistics message.
func (b *BotFacade) HandleStats(ctx context.Context) (string, error) {
	report, err := b.StatsUC.Revenue(ctx)
	if err != nil {
		return "", fmt.Errorf("revenue report: %w", err)
	}
	stats, err := b.WithdrawUC.Statistics(ctx)
	if err != nil {
		return "", fmt.Errorf("withdraw statistics: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("📊 Market Statistics:\n\n")
	sb.WriteString("💰 Revenue (stars):\n")
	sb.WriteString(fmt.Sprintf("  - This Week: %d\n", report.Week))
	sb.WriteString(fmt.Sprintf("  - This Month: %d\n", report.Month))
	sb.WriteString(fmt.Sprintf("  - This Year: %d\n\n", report.Year))
	sb.WriteString("🏦 Ledger:\n")
	sb.WriteString(fmt.Sprintf("  - Total Revenue: %d\n", stats.Balance.TotalRevenue))
	sb.WriteString(fmt.Sprintf("  - Commission: %d\n", stats.Balance.Commission))
	sb.WriteString(fmt.Sprintf("  - Withdrawn: %d\n", stats.Balance.Withdrawn))
	sb.WriteString(fmt.Sprintf("  - Pending Withdrawals: %d (%d requests)\n", stats.Balance.PendingWithdraws, stats.PendingCount))
	sb.WriteString(fmt.Sprintf("  - Available: %d\n", stats.Balance.Available))
	return sb.String(), nil
}

// HandleWithdraw creates a withdrawal request from the admin chat.
func (b *BotFacade) HandleWithdraw(ctx context.Context, amount int64, wallet string) (string, error) {
	var walletPtr *string
	if wallet != "" {
		walletPtr = &wallet
	}
	req, err := b.WithdrawUC.Request(ctx, amount, walletPtr, nil)
	if err != nil {
		limits := b.WithdrawUC.Limits()
		switch {
		case errors.Is(err, domain.ErrInvalidArgument):
			return fmt.Sprintf("Amount must be between %d and %d stars.", limits.Min, limits.Max), nil
		case errors.Is(err, domain.ErrInsufficientFunds):
			return "Not enough available balance for that amount.", nil
		}
		return "", err
	}
	return fmt.Sprintf("Withdrawal request #%d for %d ⭐ created (%s).", req.ID, req.Amount, req.RequestedAt.Format(time.RFC1123)), nil
}
