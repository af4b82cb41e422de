package bot

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"bloommarket/internal/models"
	"bloommarket/internal/subs"
)

// Invoice payload prefixes. The payload travels through the payment
// provider and comes back verbatim in the successful-payment update, so it
// carries everything needed to grant the subscription. The uuid nonce keeps
// payloads unique across re-issued invoices.
const (
	payloadPlanPrefix   = "subscription_plan_"
	payloadDirectPrefix = "subscription_direct_"
	payloadLegacyPrefix = "subscription_"
)

func payloadNonce() string {
	return uuid.NewString()[:8]
}

// cmdSubscription shows the shop owner their subscription state and the
// plan catalog.
func (b *Bot) cmdSubscription(msg *tgbotapi.Message) {
	var shopID int64
	var shopName string
	err := b.db.QueryRow(`
		SELECT s.id, s.name FROM shops s
		JOIN users u ON u.id = s.owner_id
		WHERE u.telegram_id = ?`, msg.From.ID).Scan(&shopID, &shopName)
	if err == sql.ErrNoRows {
		b.sendText(msg.Chat.ID, "У вас нет магазина. Подайте заявку командой /add_shop.", nil)
		return
	}
	if err != nil {
		log.Printf("subscription: shop lookup failed: %v", err)
		b.sendText(msg.Chat.ID, "Не удалось загрузить данные, попробуйте позже.", nil)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "💳 <b>Подписка магазина «%s»</b>\n\n", shopName)

	active, err := b.subs.Active(shopID)
	if err != nil {
		log.Printf("subscription: active lookup failed: %v", err)
	}
	if active != nil {
		fmt.Fprintf(&sb, "Активна до: <b>%s</b>", active.EndDate.Format("02.01.2006"))
		if active.PlanName != "" {
			fmt.Fprintf(&sb, "\nТариф: %s", active.PlanName)
		}
		sb.WriteString("\n\nПродлить можно заранее — срок сложится.")
	} else {
		sb.WriteString("Подписка не активна: товары скрыты из каталога.")
	}

	rows, err := b.db.Query(`
		SELECT id, name, price, duration_days FROM subscription_plans
		WHERE is_active = TRUE ORDER BY price`)
	if err != nil {
		log.Printf("subscription: plans query failed: %v", err)
		b.sendText(msg.Chat.ID, sb.String(), nil)
		return
	}
	defer rows.Close()

	var buttons [][]tgbotapi.InlineKeyboardButton
	for rows.Next() {
		var id int64
		var name string
		var price float64
		var days int
		if err := rows.Scan(&id, &name, &price, &days); err != nil {
			log.Printf("subscription: plan scan failed: %v", err)
			continue
		}
		label := fmt.Sprintf("%s — %.0f ₽ / %d дн.", name, price, days)
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("buy_plan_%d_%d", id, shopID)),
		))
	}

	var markup interface{}
	if len(buttons) > 0 {
		markup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	}
	b.sendText(msg.Chat.ID, sb.String(), markup)
}

// handlePaySubscription issues the default-plan invoice from the approval
// DM. The payload carries the application id (legacy format).
func (b *Bot) handlePaySubscription(q *tgbotapi.CallbackQuery, rawID string) {
	appID, ok := parseID(rawID)
	if !ok {
		b.answerCallback(q.ID, "Некорректная заявка")
		return
	}

	var shopID int64
	err := b.db.QueryRow(`
		SELECT shop_id FROM shop_applications
		WHERE id = ? AND status = 'approved' AND shop_id IS NOT NULL`, appID).Scan(&shopID)
	if err == sql.ErrNoRows {
		b.answerCallback(q.ID, "Заявка не одобрена")
		return
	}
	if err != nil {
		log.Printf("pay_subscription: application lookup failed: %v", err)
		b.answerCallback(q.ID, "Ошибка, попробуйте позже")
		return
	}

	plan, err := b.subs.DefaultPlan()
	if err != nil {
		log.Printf("pay_subscription: default plan failed: %v", err)
		b.answerCallback(q.ID, "Ошибка, попробуйте позже")
		return
	}

	b.answerCallback(q.ID, "")
	payload := fmt.Sprintf("%s%d_%s", payloadLegacyPrefix, appID, payloadNonce())
	b.issuePlanInvoice(q.Message.Chat.ID, plan, payload)
}

// handleBuyPlan issues an invoice for an explicitly chosen plan. Payload:
// buy_plan_{planID}_{shopID}.
func (b *Bot) handleBuyPlan(q *tgbotapi.CallbackQuery, raw string) {
	parts := strings.Split(raw, "_")
	if len(parts) != 2 {
		b.answerCallback(q.ID, "Некорректный тариф")
		return
	}
	planID, okPlan := parseID(parts[0])
	shopID, okShop := parseID(parts[1])
	if !okPlan || !okShop {
		b.answerCallback(q.ID, "Некорректный тариф")
		return
	}

	// Only the shop's owner may pay for it.
	var ownerTelegramID int64
	err := b.db.QueryRow(`
		SELECT u.telegram_id FROM shops s
		JOIN users u ON u.id = s.owner_id
		WHERE s.id = ?`, shopID).Scan(&ownerTelegramID)
	if err != nil || ownerTelegramID != q.From.ID {
		b.answerCallback(q.ID, "Недостаточно прав")
		return
	}

	plan, err := b.subs.PlanByID(planID)
	if errors.Is(err, subs.ErrPlanNotFound) {
		b.answerCallback(q.ID, "Тариф не найден")
		return
	}
	if err != nil {
		log.Printf("buy_plan: plan lookup failed: %v", err)
		b.answerCallback(q.ID, "Ошибка, попробуйте позже")
		return
	}

	b.answerCallback(q.ID, "")
	payload := fmt.Sprintf("%s%d_%d_%s", payloadPlanPrefix, planID, shopID, payloadNonce())
	b.issuePlanInvoice(q.Message.Chat.ID, plan, payload)
}

func (b *Bot) issuePlanInvoice(chatID int64, plan *models.SubscriptionPlan, payload string) {
	title := fmt.Sprintf("Подписка «%s»", plan.Name)
	description := fmt.Sprintf("Размещение до %d товаров на %d дней.", plan.MaxProducts, plan.DurationDays)
	amountMinor := int(plan.Price * 100)
	if err := b.sendInvoice(chatID, title, description, payload, amountMinor); err != nil {
		b.sendText(chatID, "Не удалось выставить счет, попробуйте позже.", nil)
	}
}

// handlePreCheckout must answer within 10 seconds or the payment fails
// client-side. Validation happened when the invoice was issued, so the
// answer is always yes.
func (b *Bot) handlePreCheckout(q *tgbotapi.PreCheckoutQuery) {
	b.answerPreCheckout(q.ID, true, "")
}

// handleSuccessfulPayment grants the purchased subscription. The grant is
// idempotent on the provider charge id, so a redelivered update cannot
// double-extend.
func (b *Bot) handleSuccessfulPayment(msg *tgbotapi.Message) {
	payment := msg.SuccessfulPayment
	payload := payment.InvoicePayload
	chargeID := payment.TelegramPaymentChargeID

	var (
		sub  *models.Subscription
		plan *models.SubscriptionPlan
		err  error
	)
	switch {
	case strings.HasPrefix(payload, payloadPlanPrefix):
		sub, plan, err = b.grantFromPlanPayload(strings.TrimPrefix(payload, payloadPlanPrefix), chargeID)
	case strings.HasPrefix(payload, payloadDirectPrefix):
		sub, plan, err = b.grantFromDirectPayload(strings.TrimPrefix(payload, payloadDirectPrefix), chargeID)
	case strings.HasPrefix(payload, payloadLegacyPrefix):
		sub, plan, err = b.grantFromLegacyPayload(strings.TrimPrefix(payload, payloadLegacyPrefix), chargeID)
	default:
		err = fmt.Errorf("unknown invoice payload %q", payload)
	}
	if err != nil {
		log.Printf("successful payment (charge %s): %v", chargeID, err)
		b.sendText(msg.Chat.ID,
			"Платеж получен, но активировать подписку не удалось. Обратитесь в поддержку.", nil)
		return
	}

	text := fmt.Sprintf(
		"✅ <b>Подписка активирована!</b>\n\nТариф: %s\nДействует до: %s\n\nТовары магазина снова видны в каталоге.",
		plan.Name, sub.EndDate.Format("02.01.2006"))
	b.sendText(msg.Chat.ID, text, nil)
}

// subscription_plan_{plan}_{shop}_{nonce}
func (b *Bot) grantFromPlanPayload(raw, chargeID string) (*models.Subscription, *models.SubscriptionPlan, error) {
	parts := strings.Split(raw, "_")
	if len(parts) != 3 {
		return nil, nil, fmt.Errorf("malformed plan payload %q", raw)
	}
	planID, okPlan := parseID(parts[0])
	shopID, okShop := parseID(parts[1])
	if !okPlan || !okShop {
		return nil, nil, fmt.Errorf("malformed plan payload %q", raw)
	}
	plan, err := b.subs.PlanByID(planID)
	if err != nil {
		return nil, nil, err
	}
	sub, err := b.subs.Grant(shopID, plan, chargeID)
	return sub, plan, err
}

// subscription_direct_{shop}_{nonce}
func (b *Bot) grantFromDirectPayload(raw, chargeID string) (*models.Subscription, *models.SubscriptionPlan, error) {
	parts := strings.Split(raw, "_")
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("malformed direct payload %q", raw)
	}
	shopID, ok := parseID(parts[0])
	if !ok {
		return nil, nil, fmt.Errorf("malformed direct payload %q", raw)
	}
	plan, err := b.subs.DefaultPlan()
	if err != nil {
		return nil, nil, err
	}
	sub, err := b.subs.Grant(shopID, plan, chargeID)
	return sub, plan, err
}

// subscription_{app}_{nonce}
func (b *Bot) grantFromLegacyPayload(raw, chargeID string) (*models.Subscription, *models.SubscriptionPlan, error) {
	parts := strings.Split(raw, "_")
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("malformed legacy payload %q", raw)
	}
	appID, ok := parseID(parts[0])
	if !ok {
		return nil, nil, fmt.Errorf("malformed legacy payload %q", raw)
	}

	var shopID int64
	if err := b.db.QueryRow(`
		SELECT shop_id FROM shop_applications
		WHERE id = ? AND shop_id IS NOT NULL`, appID).Scan(&shopID); err != nil {
		return nil, nil, fmt.Errorf("application %d has no shop: %w", appID, err)
	}
	plan, err := b.subs.DefaultPlan()
	if err != nil {
		return nil, nil, err
	}
	sub, err := b.subs.Grant(shopID, plan, chargeID)
	return sub, plan, err
}
