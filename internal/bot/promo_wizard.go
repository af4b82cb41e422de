package bot

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"bloommarket/internal/models"
)

func promoCancelRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❌ Отмена", "promo_cancel"),
	)
}

// handlePromoNew starts the promo creation wizard from the admin panel.
func (b *Bot) handlePromoNew(q *tgbotapi.CallbackQuery) {
	if !b.isAdmin(q.From.ID) {
		b.answerCallback(q.ID, "Недостаточно прав")
		return
	}
	b.states.Begin(q.Message.Chat.ID, statePromoCode)
	b.answerCallback(q.ID, "")
	b.sendText(q.Message.Chat.ID,
		"🎟 <b>Новый промокод</b>\n\nВведите код (например SPRING25):",
		tgbotapi.NewInlineKeyboardMarkup(promoCancelRow()))
}

// handlePromoStep consumes text answers of the promo wizard.
func (b *Bot) handlePromoStep(msg *tgbotapi.Message, conv *conversation) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch conv.State {
	case statePromoCode:
		code := strings.ToUpper(text)
		if len(code) < 3 {
			b.sendText(chatID, "Код слишком короткий (минимум 3 символа). Введите код:", nil)
			return
		}
		var exists int
		if err := b.db.QueryRow(`SELECT COUNT(*) FROM promos WHERE code = ?`, code).Scan(&exists); err != nil {
			log.Printf("promo wizard: uniqueness check failed: %v", err)
		}
		if exists > 0 {
			b.sendText(chatID, "Такой код уже существует. Введите другой код:", nil)
			return
		}
		conv.Promo.Code = code
		conv.State = ""
		markup := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Процент", "promo_type:percent"),
				tgbotapi.NewInlineKeyboardButtonData("Фикс. сумма", "promo_type:fixed"),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Бесплатная доставка", "promo_type:free_delivery"),
			),
			promoCancelRow(),
		)
		b.sendText(chatID, "Выберите тип скидки:", markup)

	case statePromoValue:
		value, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", "."), 64)
		if err != nil || value <= 0 {
			b.sendText(chatID, "Нужно положительное число. Введите размер скидки:", nil)
			return
		}
		if conv.Promo.PromoType == models.PromoPercent && value > 100 {
			b.sendText(chatID, "Процент не может быть больше 100. Введите размер скидки:", nil)
			return
		}
		conv.Promo.Value = value
		conv.State = statePromoMinAmount
		b.sendText(chatID, "Минимальная сумма заказа в рублях (или «-», если без ограничения):", nil)

	case statePromoMinAmount:
		if text != "-" {
			min, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", "."), 64)
			if err != nil || min < 0 {
				b.sendText(chatID, "Нужно число или «-». Введите минимальную сумму заказа:", nil)
				return
			}
			conv.Promo.MinOrderAmount = min
		}
		conv.State = statePromoValidUntil
		b.sendText(chatID, "Действует до (ДД.ММ.ГГГГ, или «-» — бессрочно):", nil)

	case statePromoValidUntil:
		if text != "-" {
			until, err := time.Parse("02.01.2006", text)
			if err != nil {
				b.sendText(chatID, "Неверный формат даты. Введите дату как ДД.ММ.ГГГГ или «-»:", nil)
				return
			}
			// Inclusive through the end of the chosen day.
			until = until.Add(24*time.Hour - time.Second)
			conv.Promo.ValidUntil = &until
		}
		conv.State = ""
		markup := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Однократный", "promo_use_once:1"),
				tgbotapi.NewInlineKeyboardButtonData("Многоразовый", "promo_use_once:0"),
			),
			promoCancelRow(),
		)
		b.sendText(chatID, "Можно ли использовать код только один раз на пользователя?", markup)
	}
}

// handlePromoType picks the discount kind; percent and fixed kinds need a
// value, free delivery does not.
func (b *Bot) handlePromoType(q *tgbotapi.CallbackQuery, kind string) {
	conv := b.states.Get(q.Message.Chat.ID)
	if conv == nil || conv.Promo.Code == "" {
		b.answerCallback(q.ID, "Начните создание заново")
		return
	}
	switch kind {
	case models.PromoPercent, models.PromoFixed:
		conv.Promo.PromoType = kind
		conv.State = statePromoValue
		b.answerCallback(q.ID, "")
		if kind == models.PromoPercent {
			b.sendText(q.Message.Chat.ID, "Введите размер скидки в процентах (1–100):", nil)
		} else {
			b.sendText(q.Message.Chat.ID, "Введите размер скидки в рублях:", nil)
		}
	case models.PromoFreeDelivery:
		conv.Promo.PromoType = kind
		conv.State = statePromoMinAmount
		b.answerCallback(q.ID, "")
		b.sendText(q.Message.Chat.ID, "Минимальная сумма заказа в рублях (или «-», если без ограничения):", nil)
	default:
		b.answerCallback(q.ID, "Неизвестный тип")
	}
}

func (b *Bot) handlePromoUseOnce(q *tgbotapi.CallbackQuery, raw string) {
	conv := b.states.Get(q.Message.Chat.ID)
	if conv == nil || conv.Promo.PromoType == "" {
		b.answerCallback(q.ID, "Начните создание заново")
		return
	}
	conv.Promo.UseOnce = raw == "1"
	b.answerCallback(q.ID, "")

	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Только первый заказ", "promo_first_order:1"),
			tgbotapi.NewInlineKeyboardButtonData("Любой заказ", "promo_first_order:0"),
		),
		promoCancelRow(),
	)
	b.sendText(q.Message.Chat.ID, "Ограничить код первым заказом пользователя?", markup)
}

func (b *Bot) handlePromoFirstOrder(q *tgbotapi.CallbackQuery, raw string) {
	conv := b.states.Get(q.Message.Chat.ID)
	if conv == nil || conv.Promo.PromoType == "" {
		b.answerCallback(q.ID, "Начните создание заново")
		return
	}
	conv.Promo.FirstOrderOnly = raw == "1"
	b.answerCallback(q.ID, "")
	b.finishPromo(q.Message.Chat.ID, conv)
}

// finishPromo persists the draft. The legacy discount_type/discount_value
// columns are written alongside the modern ones so older readers keep
// working.
func (b *Bot) finishPromo(chatID int64, conv *conversation) {
	p := conv.Promo
	b.states.Clear(chatID)

	var minAmount *float64
	if p.MinOrderAmount > 0 {
		minAmount = &p.MinOrderAmount
	}

	if _, err := b.db.Exec(`
		INSERT INTO promos
			(code, promo_type, value, discount_type, discount_value,
			 min_order_amount, valid_until, use_once, first_order_only, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, TRUE)`,
		p.Code, p.PromoType, p.Value, p.PromoType, p.Value,
		minAmount, p.ValidUntil, p.UseOnce, p.FirstOrderOnly); err != nil {
		log.Printf("promo wizard: insert failed: %v", err)
		b.sendText(chatID, "Не удалось сохранить промокод, попробуйте позже.", nil)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ <b>Промокод %s создан</b>\n\n", p.Code)
	switch p.PromoType {
	case models.PromoPercent:
		fmt.Fprintf(&sb, "Скидка: %.0f%%\n", p.Value)
	case models.PromoFixed:
		fmt.Fprintf(&sb, "Скидка: %.0f ₽\n", p.Value)
	case models.PromoFreeDelivery:
		sb.WriteString("Скидка: бесплатная доставка\n")
	}
	if minAmount != nil {
		fmt.Fprintf(&sb, "Мин. сумма заказа: %.0f ₽\n", *minAmount)
	}
	if p.ValidUntil != nil {
		fmt.Fprintf(&sb, "Действует до: %s\n", p.ValidUntil.Format("02.01.2006"))
	}
	if p.UseOnce {
		sb.WriteString("Однократный на пользователя\n")
	}
	if p.FirstOrderOnly {
		sb.WriteString("Только для первого заказа\n")
	}
	b.sendText(chatID, sb.String(), nil)
}
