package bot

import (
	"context"
	"database/sql"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"bloommarket/internal/config"
	"bloommarket/internal/media"
	"bloommarket/internal/subs"
)

// Bot is the chat-side worker. It shares the database with the HTTP API and
// owns the long-polling loop, command dispatch, wizard state and payment
// handling.
type Bot struct {
	api    *tgbotapi.BotAPI
	db     *sql.DB
	cfg    *config.Config
	media  *media.Store
	subs   *subs.Manager
	states *stateManager
}

// New builds a Bot over an authorized client.
func New(api *tgbotapi.BotAPI, db *sql.DB, cfg *config.Config, store *media.Store) *Bot {
	return &Bot{
		api:    api,
		db:     db,
		cfg:    cfg,
		media:  store,
		subs:   subs.New(db),
		states: newStateManager(),
	}
}

// Run consumes updates until the context is cancelled. Each update is
// handled synchronously; handlers are short and any slow work (file
// downloads) is rare enough not to need a worker pool.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	log.Printf("Bot started as @%s", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.dispatch(update)
		}
	}
}

func (b *Bot) dispatch(update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("update handler panic: %v", r)
		}
	}()

	switch {
	case update.PreCheckoutQuery != nil:
		b.handlePreCheckout(update.PreCheckoutQuery)
	case update.CallbackQuery != nil:
		b.handleCallback(update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(update.Message)
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if msg.SuccessfulPayment != nil {
		b.handleSuccessfulPayment(msg)
		return
	}

	// Commands and wizards live in private chats only. Group noise is
	// ignored entirely.
	if !msg.Chat.IsPrivate() {
		return
	}

	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}
	// Platform command entities cover latin names only, so the cyrillic
	// command arrives as plain text.
	if strings.HasPrefix(msg.Text, "/подписка") {
		b.cmdSubscription(msg)
		return
	}

	if conv := b.states.Get(msg.Chat.ID); conv != nil {
		b.handleWizardMessage(msg, conv)
		return
	}
}

// handleCallback routes inline button presses by payload prefix.
func (b *Bot) handleCallback(q *tgbotapi.CallbackQuery) {
	if q.Message == nil {
		b.answerCallback(q.ID, "")
		return
	}
	data := q.Data

	switch {
	case strings.HasPrefix(data, "approve_shop_"):
		b.handleModeration(q, strings.TrimPrefix(data, "approve_shop_"), true)
	case strings.HasPrefix(data, "reject_shop_"):
		b.handleModeration(q, strings.TrimPrefix(data, "reject_shop_"), false)
	case strings.HasPrefix(data, "pay_subscription_"):
		b.handlePaySubscription(q, strings.TrimPrefix(data, "pay_subscription_"))
	case strings.HasPrefix(data, "buy_plan_"):
		b.handleBuyPlan(q, strings.TrimPrefix(data, "buy_plan_"))
	case strings.HasPrefix(data, "review:"):
		b.handleReviewStart(q)
	case strings.HasPrefix(data, "rating:"):
		b.handleReviewRating(q, strings.TrimPrefix(data, "rating:"))
	case data == "skip_comment":
		b.handleReviewComment(q.Message.Chat.ID, q.From, nil)
		b.answerCallback(q.ID, "")
	case data == "cancel_review":
		b.states.Clear(q.Message.Chat.ID)
		b.answerCallback(q.ID, "Отменено")
		b.sendText(q.Message.Chat.ID, "Отзыв отменен.", nil)
	case data == "promo_new":
		b.handlePromoNew(q)
	case strings.HasPrefix(data, "promo_type:"):
		b.handlePromoType(q, strings.TrimPrefix(data, "promo_type:"))
	case strings.HasPrefix(data, "promo_use_once:"):
		b.handlePromoUseOnce(q, strings.TrimPrefix(data, "promo_use_once:"))
	case strings.HasPrefix(data, "promo_first_order:"):
		b.handlePromoFirstOrder(q, strings.TrimPrefix(data, "promo_first_order:"))
	case data == "promo_cancel":
		b.states.Clear(q.Message.Chat.ID)
		b.answerCallback(q.ID, "Отменено")
		b.sendText(q.Message.Chat.ID, "Создание промокода отменено.", nil)
	case data == "cancel_wizard":
		b.states.Clear(q.Message.Chat.ID)
		b.answerCallback(q.ID, "Отменено")
		b.sendText(q.Message.Chat.ID, "Действие отменено.", nil)
	default:
		b.answerCallback(q.ID, "")
	}
}

// isAdmin reports whether the platform user may use admin-only features.
func (b *Bot) isAdmin(telegramID int64) bool {
	return b.cfg.IsAdmin(telegramID)
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id > 0
}
