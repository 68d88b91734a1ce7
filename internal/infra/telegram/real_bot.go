package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-lesson-market/internal/application"
	"telegram-lesson-market/internal/config"
	"telegram-lesson-market/internal/domain"
	"telegram-lesson-market/internal/domain/model"
	red "telegram-lesson-market/internal/infra/redis"
	"telegram-lesson-market/internal/usecase"
)

// RealTelegramBotAdapter drives the bot with concurrent polling workers and
// routes payment updates (pre-checkout, successful payment) into the
// reconciler.
type RealTelegramBotAdapter struct {
	bot         *tgbotapi.BotAPI
	cfg         *config.BotConfig
	facade      *application.BotFacade
	reconcileUC usecase.ReconcileUseCase
	rateLimiter *red.RateLimiter
	adminIDsMap map[int64]struct{}
	log         *zerolog.Logger

	// updateWorkers is how many goroutines will concurrently process updates.
	updateWorkers int
	cancelPolling context.CancelFunc
}

func NewRealTelegramBotAdapter(cfg *config.BotConfig, facade *application.BotFacade, reconcileUC usecase.ReconcileUseCase, rateLimiter *red.RateLimiter, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if facade == nil {
		return nil, errors.New("bot facade is nil")
	}
	if reconcileUC == nil {
		return nil, errors.New("reconcile usecase is nil")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}

	adminMap := make(map[int64]struct{}, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		adminMap[id] = struct{}{}
	}

	botLog := logger.With().Str("component", "TelegramBot").Logger()
	return &RealTelegramBotAdapter{
		bot:           bot,
		cfg:           cfg,
		facade:        facade,
		reconcileUC:   reconcileUC,
		rateLimiter:   rateLimiter,
		adminIDsMap:   adminMap,
		log:           &botLog,
		updateWorkers: workers,
	}, nil
}

// StartPolling begins polling Telegram for updates concurrently.
// It runs until ctx is canceled.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < r.updateWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				select {
				case update, ok := <-updateChan:
					if !ok {
						return
					}
					if err := r.handleUpdate(ctx, update); err != nil {
						r.log.Error().Err(err).Int("worker", workerID).Msg("error handling update")
					}
				case <-ctx.Done():
					return
				}
			}
		}(i + 1)
	}

	go func() {
		defer close(updateChan)
		for {
			select {
			case update := <-updates:
				select {
				case updateChan <- update:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	<-ctx.Done()
	r.bot.StopReceivingUpdates()
	wg.Wait()
	return nil
}

// StopPolling stops the polling loop gracefully.
func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

func (r *RealTelegramBotAdapter) sendText(tgID int64, text string) error {
	msg := tgbotapi.NewMessage(tgID, text)
	_, err := r.bot.Send(msg)
	return err
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	// The provider's last question before charging. Answering OK here is a
	// commitment, so the stored intent is re-verified first.
	if update.PreCheckoutQuery != nil {
		return r.handlePreCheckout(ctx, update.PreCheckoutQuery)
	}

	if update.Message == nil {
		return nil
	}
	if update.Message.SuccessfulPayment != nil {
		return r.handleSuccessfulPayment(ctx, update.Message)
	}

	tgUser := update.Message.From
	if tgUser == nil {
		return nil
	}

	text := strings.TrimSpace(update.Message.Text)
	if len(text) > 0 && text[0] == '/' {
		return r.handleCommand(ctx, tgUser.ID, tgUser.UserName, text)
	}

	return r.sendText(tgUser.ID, "Sorry, I didn't understand that. Send /help for commands.")
}

func (r *RealTelegramBotAdapter) handlePreCheckout(ctx context.Context, q *tgbotapi.PreCheckoutQuery) error {
	answer := tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: q.ID,
		OK:                 true,
	}
	if err := r.reconcileUC.PreCheckout(ctx, q.InvoicePayload); err != nil {
		r.log.Warn().Err(err).Int64("tg_id", q.From.ID).Msg("pre-checkout declined")
		answer.OK = false
		if errors.Is(err, domain.ErrItemInactive) {
			answer.ErrorMessage = "This item is no longer available."
		} else {
			answer.ErrorMessage = "This payment can no longer be processed. Please start a new purchase."
		}
	}
	_, err := r.bot.Request(answer)
	return err
}

func (r *RealTelegramBotAdapter) handleSuccessfulPayment(ctx context.Context, msg *tgbotapi.Message) error {
	sp := msg.SuccessfulPayment
	err := r.reconcileUC.ConfirmPayment(ctx, usecase.SuccessfulPayment{
		ChargeID:       sp.TelegramPaymentChargeID,
		TotalAmount:    int64(sp.TotalAmount),
		Currency:       sp.Currency,
		InvoicePayload: sp.InvoicePayload,
	})
	if err != nil {
		r.log.Error().Err(err).Int64("tg_id", msg.From.ID).Msg("payment confirmation failed")
		return r.sendText(msg.From.ID, "We received your payment but could not confirm it automatically. Support has been notified.")
	}
	return r.sendText(msg.From.ID, "✅ Payment confirmed! The content is now in /mypurchases.")
}

func (r *RealTelegramBotAdapter) handleCommand(ctx context.Context, tgID int64, username, text string) error {
	fields := strings.Fields(text)
	cmd := fields[0]
	args := fields[1:]

	if r.rateLimiter != nil {
		allowed, err := r.rateLimiter.Allow(ctx, red.UserCommandKey(tgID, cmd), 20, time.Minute)
		if err != nil {
			r.log.Error().Err(err).Int64("tg_id", tgID).Msg("rate limiter check failed")
		} else if !allowed {
			return r.sendText(tgID, "Too many requests. Please slow down.")
		}
	}

	switch cmd {
	case "/start":
		reply, err := r.facade.HandleStart(ctx, tgID, username)
		if err != nil {
			r.log.Error().Err(err).Int64("tg_id", tgID).Msg("start failed")
			return r.sendText(tgID, "Something went wrong. Please try again later.")
		}
		return r.sendText(tgID, reply)

	case "/help":
		help := "Available commands:\n/start\n/help\n/buy <lesson|course> <id> [promo]\n/mypurchases\n/status <payment_id>"
		if r.isAdmin(tgID) {
			help += "\n/stats\n/withdraw <amount> [wallet]"
		}
		return r.sendText(tgID, help)

	case "/buy":
		return r.handleBuy(ctx, tgID, args)

	case "/mypurchases":
		reply, err := r.facade.HandleMyPurchases(ctx, tgID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return r.sendText(tgID, "Please /start first.")
			}
			return r.sendText(tgID, "Could not load your purchases. Try again later.")
		}
		return r.sendText(tgID, reply)

	case "/status":
		if len(args) != 1 {
			return r.sendText(tgID, "Usage: /status <payment_id>")
		}
		reply, err := r.facade.HandleStatus(ctx, args[0])
		if err != nil {
			return r.sendText(tgID, "Could not look up that payment. Try again later.")
		}
		return r.sendText(tgID, reply)

	case "/stats":
		if !r.isAdmin(tgID) {
			return r.sendText(tgID, "You are not authorized to use this command.")
		}
		reply, err := r.facade.HandleStats(ctx)
		if err != nil {
			r.log.Error().Err(err).Msg("stats failed")
			return r.sendText(tgID, "Failed to get stats. Please try again later.")
		}
		return r.sendText(tgID, reply)

	case "/withdraw":
		if !r.isAdmin(tgID) {
			return r.sendText(tgID, "You are not authorized to use this command.")
		}
		if len(args) < 1 {
			return r.sendText(tgID, "Usage: /withdraw <amount> [wallet]")
		}
		amount, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return r.sendText(tgID, "Amount must be a number of stars.")
		}
		wallet := ""
		if len(args) > 1 {
			wallet = args[1]
		}
		reply, err := r.facade.HandleWithdraw(ctx, amount, wallet)
		if err != nil {
			r.log.Error().Err(err).Msg("withdraw failed")
			return r.sendText(tgID, "Failed to create withdrawal request.")
		}
		return r.sendText(tgID, reply)

	default:
		return r.sendText(tgID, "Unknown command. Send /help for the list of commands.")
	}
}

// parseBuyArgs splits "/buy <lesson|course> <id> [promo]" arguments.
func parseBuyArgs(args []string) (model.ItemType, int64, string, error) {
	if len(args) < 2 {
		return "", 0, "", domain.ErrInvalidArgument
	}
	itemType, err := model.ParseItemType(args[0])
	if err != nil {
		return "", 0, "", err
	}
	itemID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || itemID <= 0 {
		return "", 0, "", domain.ErrInvalidArgument
	}
	promo := ""
	if len(args) > 2 {
		promo = args[2]
	}
	return itemType, itemID, promo, nil
}

func (r *RealTelegramBotAdapter) handleBuy(ctx context.Context, tgID int64, args []string) error {
	itemType, itemID, promo, err := parseBuyArgs(args)
	if err != nil {
		return r.sendText(tgID, "Usage: /buy <lesson|course> <id> [promo]")
	}

	result, err := r.facade.HandleBuy(ctx, tgID, string(itemType), itemID, promo)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return r.sendText(tgID, "Item not found. Check the id and try again.")
		case errors.Is(err, domain.ErrAlreadyPurchased):
			return r.sendText(tgID, "You already own this item. See /mypurchases.")
		case errors.Is(err, domain.ErrItemInactive):
			return r.sendText(tgID, "This item is not for sale right now.")
		case errors.Is(err, domain.ErrUserInactive):
			return r.sendText(tgID, "Your account is blocked. Contact support.")
		case errors.Is(err, domain.ErrInvalidArgument):
			return r.sendText(tgID, "Usage: /buy <lesson|course> <id> [promo]")
		}
		r.log.Error().Err(err).Int64("tg_id", tgID).Msg("buy failed")
		return r.sendText(tgID, "Could not create the payment. Try again later.")
	}

	return r.sendInvoice(tgID, result)
}

// sendInvoice builds a Telegram Stars invoice. Stars payments use currency
// XTR and an empty provider token.
func (r *RealTelegramBotAdapter) sendInvoice(tgID int64, res *usecase.CreateIntentResult) error {
	desc := fmt.Sprintf("Price: %d ⭐", res.FinalAmount)
	if res.DiscountApplied > 0 {
		desc = fmt.Sprintf("Price: %d ⭐ (%d ⭐ off)", res.FinalAmount, res.DiscountApplied)
	}

	invoice := tgbotapi.NewInvoice(
		tgID,
		res.Title,
		desc,
		res.InvoicePayload,
		"",    // provider token is empty for Stars
		"",    // start parameter
		"XTR", // Telegram Stars
		[]tgbotapi.LabeledPrice{{Label: res.Title, Amount: int(res.FinalAmount)}},
	)
	_, err := r.bot.Send(invoice)
	return err
}

func (r *RealTelegramBotAdapter) isAdmin(tgID int64) bool {
	_, ok := r.adminIDsMap[tgID]
	return ok
}
