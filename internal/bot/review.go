package bot

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleReviewStart begins the review dialog from the "review:{shop}:{order}"
// button attached to terminal order notifications.
func (b *Bot) handleReviewStart(q *tgbotapi.CallbackQuery) {
	parts := strings.Split(q.Data, ":")
	if len(parts) != 3 {
		b.answerCallback(q.ID, "Некорректные данные")
		return
	}
	shopID, okShop := parseID(parts[1])
	orderID, okOrder := parseID(parts[2])
	if !okShop || !okOrder {
		b.answerCallback(q.ID, "Некорректные данные")
		return
	}

	userID, err := b.findOrCreateUser(q.From)
	if err != nil {
		log.Printf("review: user upsert failed: %v", err)
		b.answerCallback(q.ID, "Ошибка, попробуйте позже")
		return
	}

	var existing int
	if err := b.db.QueryRow(`
		SELECT COUNT(*) FROM shop_reviews WHERE shop_id = ? AND user_id = ?`,
		shopID, userID).Scan(&existing); err != nil {
		log.Printf("review: existing check failed: %v", err)
		b.answerCallback(q.ID, "Ошибка, попробуйте позже")
		return
	}
	if existing > 0 {
		b.answerCallback(q.ID, "Вы уже оставили отзыв этому магазину")
		return
	}

	conv := b.states.Begin(q.Message.Chat.ID, "")
	conv.Review.ShopID = shopID
	conv.Review.OrderID = orderID

	b.answerCallback(q.ID, "")
	b.sendText(q.Message.Chat.ID, "Оцените магазин:", ratingKeyboard())
}

func ratingKeyboard() tgbotapi.InlineKeyboardMarkup {
	var stars []tgbotapi.InlineKeyboardButton
	for i := 1; i <= 5; i++ {
		stars = append(stars, tgbotapi.NewInlineKeyboardButtonData(
			strings.Repeat("⭐", i), fmt.Sprintf("rating:%d", i)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		stars,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Отмена", "cancel_review"),
		),
	)
}

// handleReviewRating stores the chosen rating and asks for an optional
// comment.
func (b *Bot) handleReviewRating(q *tgbotapi.CallbackQuery, raw string) {
	rating, err := strconv.Atoi(raw)
	if err != nil || rating < 1 || rating > 5 {
		b.answerCallback(q.ID, "Некорректная оценка")
		return
	}

	conv := b.states.Get(q.Message.Chat.ID)
	if conv == nil || conv.Review.ShopID == 0 {
		b.answerCallback(q.ID, "Начните отзыв заново")
		return
	}
	conv.Review.Rating = rating
	conv.State = stateReviewComment

	b.answerCallback(q.ID, "")
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Пропустить", "skip_comment"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отмена", "cancel_review"),
		),
	)
	b.sendText(q.Message.Chat.ID, "Напишите комментарий к отзыву или пропустите этот шаг:", markup)
}

// handleReviewComment finalizes the review with an optional comment. The
// review is marked verified when the referenced order was actually
// delivered to this user.
func (b *Bot) handleReviewComment(chatID int64, from *tgbotapi.User, comment *string) {
	conv := b.states.Get(chatID)
	if conv == nil || conv.Review.Rating == 0 {
		return
	}
	draft := conv.Review
	b.states.Clear(chatID)

	userID, err := b.findOrCreateUser(from)
	if err != nil {
		log.Printf("review: user upsert failed: %v", err)
		b.sendText(chatID, "Не удалось сохранить отзыв, попробуйте позже.", nil)
		return
	}

	var verified bool
	if err := b.db.QueryRow(`
		SELECT COUNT(*) > 0 FROM orders
		WHERE id = ? AND user_id = ? AND shop_id = ? AND status = 'delivered'`,
		draft.OrderID, userID, draft.ShopID).Scan(&verified); err != nil {
		log.Printf("review: delivery check failed: %v", err)
	}

	if comment != nil && strings.TrimSpace(*comment) == "" {
		comment = nil
	}

	if _, err := b.db.Exec(`
		INSERT INTO shop_reviews (shop_id, user_id, order_id, rating, comment, is_verified)
		VALUES (?, ?, ?, ?, ?, ?)`,
		draft.ShopID, userID, draft.OrderID, draft.Rating, comment, verified); err != nil {
		log.Printf("review: insert failed: %v", err)
		b.sendText(chatID, "Не удалось сохранить отзыв, попробуйте позже.", nil)
		return
	}

	b.recomputeShopRating(draft.ShopID)
	b.sendText(chatID, "🙏 Спасибо за отзыв!", nil)
}

// recomputeShopRating refreshes the denormalized rating columns on the shop
// row from the review table.
func (b *Bot) recomputeShopRating(shopID int64) {
	if _, err := b.db.Exec(`
		UPDATE shops SET
			average_rating = COALESCE((SELECT AVG(rating) FROM shop_reviews WHERE shop_id = ?), 0),
			total_reviews = (SELECT COUNT(*) FROM shop_reviews WHERE shop_id = ?)
		WHERE id = ?`, shopID, shopID, shopID); err != nil {
		log.Printf("review: rating recompute failed for shop %d: %v", shopID, err)
	}
}
