package bot

import (
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// cmdRemind starts the date-reminder wizard: users store important dates
// (birthdays, anniversaries) and get a nudge on the morning of the day.
func (b *Bot) cmdRemind(msg *tgbotapi.Message) {
	b.states.Begin(msg.Chat.ID, stateRemindDate)
	b.sendText(msg.Chat.ID,
		"📅 <b>Напоминание о важной дате</b>\n\nВведите дату (ДД.ММ.ГГГГ):",
		cancelKeyboard())
}

func (b *Bot) handleRemindStep(msg *tgbotapi.Message, conv *conversation) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch conv.State {
	case stateRemindDate:
		date, err := time.Parse("02.01.2006", text)
		if err != nil {
			b.sendText(chatID, "Неверный формат. Введите дату как ДД.ММ.ГГГГ:", nil)
			return
		}
		conv.Remind.EventDate = date.Format("2006-01-02")
		conv.State = stateRemindDescription
		b.sendText(chatID, "О чем напомнить? (например «День рождения мамы»):", nil)

	case stateRemindDescription:
		if len([]rune(text)) < 3 {
			b.sendText(chatID, "Описание слишком короткое. О чем напомнить?", nil)
			return
		}
		b.states.Clear(chatID)

		userID, err := b.findOrCreateUser(msg.From)
		if err != nil {
			log.Printf("remind: user upsert failed: %v", err)
			b.sendText(chatID, "Не удалось сохранить напоминание, попробуйте позже.", nil)
			return
		}
		if _, err := b.db.Exec(`
			INSERT INTO reminders (user_id, event_date, event_description)
			VALUES (?, ?, ?)`, userID, conv.Remind.EventDate, text); err != nil {
			log.Printf("remind: insert failed: %v", err)
			b.sendText(chatID, "Не удалось сохранить напоминание, попробуйте позже.", nil)
			return
		}
		b.sendText(chatID, "✅ Напоминание сохранено. Мы напомним утром в этот день.", nil)
	}
}
