package notify

import (
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"bloommarket/internal/models"
)

// Telegram delivers order notifications through the chat platform. Every
// send is best-effort: transport errors are logged and swallowed so the
// originating business operation never fails because of them.
type Telegram struct {
	api       *tgbotapi.BotAPI
	webAppURL string
}

// NewTelegram wraps an authorized bot client.
func NewTelegram(api *tgbotapi.BotAPI, webAppURL string) *Telegram {
	return &Telegram{api: api, webAppURL: webAppURL}
}

func (n *Telegram) send(msg tgbotapi.MessageConfig) {
	if _, err := n.api.Send(msg); err != nil {
		log.Printf("Notification send failed (chat %d): %v", msg.ChatID, err)
	}
}

func statusLabel(status string) string {
	switch status {
	case models.OrderPending:
		return "⏳ Ожидает подтверждения"
	case models.OrderProcessing:
		return "🚚 В работе"
	case models.OrderDelivered:
		return "✅ Доставлен"
	case models.OrderCancelled:
		return "❌ Отменен"
	default:
		return status
	}
}

func formatItems(items []models.OrderItem) string {
	var b strings.Builder
	for _, it := range items {
		price := it.Price
		if it.DiscountPrice != nil {
			price = *it.DiscountPrice
		}
		fmt.Fprintf(&b, "• %s — %d × %.0f ₽\n", it.ProductName, it.Quantity, price)
	}
	return b.String()
}

// OrderPlaced tells the shop owner about a new order and confirms it to
// the buyer.
func (n *Telegram) OrderPlaced(order *models.Order, buyer *models.User, shop *models.Shop, ownerTelegramID int64) {
	if ownerTelegramID != 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "🛒 <b>Новый заказ %s</b>\n\n", order.OrderNumber)
		b.WriteString(formatItems(order.Items))
		fmt.Fprintf(&b, "\nСумма: %.2f ₽", order.Total)
		if order.PromoCode != nil {
			fmt.Fprintf(&b, " (промокод %s)", *order.PromoCode)
		}
		fmt.Fprintf(&b, "\nПолучатель: %s, %s", order.RecipientName, order.RecipientPhone)
		if order.DeliveryAddress != nil {
			fmt.Fprintf(&b, "\nАдрес: %s", *order.DeliveryAddress)
		}
		if buyer.Username != nil && *buyer.Username != "" {
			fmt.Fprintf(&b, "\nПокупатель: @%s", *buyer.Username)
		} else {
			fmt.Fprintf(&b, "\nПокупатель: <a href=\"tg://user?id=%d\">%s</a>", buyer.TelegramID, buyer.DisplayName())
		}

		msg := tgbotapi.NewMessage(ownerTelegramID, b.String())
		msg.ParseMode = tgbotapi.ModeHTML
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("👤 Профиль покупателя", fmt.Sprintf("tg://user?id=%d", buyer.TelegramID)),
			),
		)
		n.send(msg)
	}

	if buyer.TelegramID != 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "✅ <b>Заказ %s оформлен</b>\n\n", order.OrderNumber)
		b.WriteString(formatItems(order.Items))
		fmt.Fprintf(&b, "\nДоставка: %.2f ₽\nИтого: %.2f ₽", order.DeliveryFee, order.Total)

		msg := tgbotapi.NewMessage(buyer.TelegramID, b.String())
		msg.ParseMode = tgbotapi.ModeHTML
		n.send(msg)
	}
}

// OrderStatus tells the buyer about a status change. Terminal transitions
// attach the review invitation.
func (n *Telegram) OrderStatus(order *models.Order, buyerTelegramID int64) {
	if buyerTelegramID == 0 {
		return
	}

	text := fmt.Sprintf("Заказ <b>%s</b>: %s", order.OrderNumber, statusLabel(order.Status))
	msg := tgbotapi.NewMessage(buyerTelegramID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if order.Status == models.OrderDelivered || order.Status == models.OrderCancelled {
		payload := fmt.Sprintf("review:%d:%d", order.ShopID, order.ID)
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("⭐ Оставить отзыв", payload),
			),
		)
	}
	n.send(msg)
}

// Noop satisfies the notifier contracts without a bot token (tests,
// stripped-down deployments).
type Noop struct{}

func (Noop) OrderPlaced(*models.Order, *models.User, *models.Shop, int64) {}
func (Noop) OrderStatus(*models.Order, int64)                             {}
