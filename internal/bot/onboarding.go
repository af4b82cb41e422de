package bot

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"bloommarket/internal/models"
)

func applicationStatusLabel(status string) string {
	switch status {
	case models.ApplicationPending:
		return "на рассмотрении"
	case models.ApplicationApproved:
		return "одобрена"
	case models.ApplicationRejected:
		return "отклонена"
	default:
		return status
	}
}

// cmdAddShop starts the shop application wizard. One application per
// account, ever: repeat submissions are refused with the existing
// application's status.
func (b *Bot) cmdAddShop(msg *tgbotapi.Message) {
	var (
		id        int64
		status    string
		createdAt string
	)
	err := b.db.QueryRow(`
		SELECT id, status, DATE_FORMAT(created_at, '%d.%m.%Y')
		FROM shop_applications WHERE telegram_id = ?
		ORDER BY id DESC LIMIT 1`, msg.From.ID).Scan(&id, &status, &createdAt)
	if err == nil {
		text := fmt.Sprintf(
			"Вы уже подавали заявку №%d от %s.\nСтатус: <b>%s</b>.",
			id, createdAt, applicationStatusLabel(status))
		b.sendText(msg.Chat.ID, text, nil)
		return
	}
	if err != sql.ErrNoRows {
		log.Printf("add_shop: application lookup failed: %v", err)
		b.sendText(msg.Chat.ID, "Не удалось проверить заявки, попробуйте позже.", nil)
		return
	}

	b.states.Begin(msg.Chat.ID, stateShopName)
	b.sendText(msg.Chat.ID,
		"🏪 <b>Заявка на открытие магазина</b>\n\nШаг 1 из 8. Введите название магазина:",
		cancelKeyboard())
}

// handleOnboardingStep advances the application wizard one step. Invalid
// input repeats the current step.
func (b *Bot) handleOnboardingStep(msg *tgbotapi.Message, conv *conversation) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch conv.State {
	case stateShopName:
		if len([]rune(text)) < 3 {
			b.sendText(chatID, "Название слишком короткое (минимум 3 символа). Введите название магазина:", nil)
			return
		}
		conv.App.ShopName = text
		conv.State = stateShopPhoto
		b.sendText(chatID, "Шаг 2 из 8. Отправьте фотографию магазина:", nil)

	case stateShopPhoto:
		if len(msg.Photo) == 0 {
			b.sendText(chatID, "Нужна именно фотография. Отправьте фото магазина:", nil)
			return
		}
		// Largest rendition is last.
		fileID := msg.Photo[len(msg.Photo)-1].FileID
		data, err := b.downloadFile(fileID)
		if err != nil {
			log.Printf("onboarding: photo download failed: %v", err)
			b.sendText(chatID, "Не удалось загрузить фото, отправьте его еще раз:", nil)
			return
		}
		filename, err := b.media.SaveRequestPhoto(data, "photo.jpg", "image/jpeg")
		if err != nil {
			log.Printf("onboarding: photo save failed: %v", err)
			b.sendText(chatID, "Не удалось сохранить фото, отправьте его еще раз:", nil)
			return
		}
		conv.App.PhotoFileID = fileID
		conv.App.PhotoPath = filename
		conv.State = stateShopDescription
		b.sendText(chatID, "Шаг 3 из 8. Введите описание магазина:", nil)

	case stateShopDescription:
		if len([]rune(text)) < 10 {
			b.sendText(chatID, "Описание слишком короткое (минимум 10 символов). Введите описание магазина:", nil)
			return
		}
		conv.App.ShopDescription = text
		conv.State = stateShopAddress
		b.sendText(chatID, "Шаг 4 из 8. Введите адрес магазина:", nil)

	case stateShopAddress:
		if len([]rune(text)) < 5 {
			b.sendText(chatID, "Адрес слишком короткий (минимум 5 символов). Введите адрес магазина:", nil)
			return
		}
		conv.App.ShopAddress = text
		conv.State = stateShopPhone
		b.sendText(chatID, "Шаг 5 из 8. Введите телефон магазина:", nil)

	case stateShopPhone:
		if len(text) < 10 {
			b.sendText(chatID, "Телефон слишком короткий (минимум 10 символов). Введите телефон магазина:", nil)
			return
		}
		conv.App.ShopPhone = text
		conv.State = stateOwnerName
		b.sendText(chatID, "Шаг 6 из 8. Введите ФИО владельца:", nil)

	case stateOwnerName:
		if len([]rune(text)) < 5 {
			b.sendText(chatID, "ФИО слишком короткое (минимум 5 символов). Введите ФИО владельца:", nil)
			return
		}
		conv.App.OwnerName = text
		conv.State = stateOwnerPhone
		b.sendText(chatID, "Шаг 7 из 8. Введите телефон владельца:", nil)

	case stateOwnerPhone:
		if len(text) < 10 {
			b.sendText(chatID, "Телефон слишком короткий (минимум 10 символов). Введите телефон владельца:", nil)
			return
		}
		conv.App.OwnerPhone = text
		conv.State = stateOwnerUsername
		b.sendText(chatID, "Шаг 8 из 8. Введите ник владельца в Telegram (например @username):", nil)

	case stateOwnerUsername:
		handle := strings.TrimPrefix(text, "@")
		if len([]rune(handle)) < 3 {
			b.sendText(chatID, "Ник слишком короткий (минимум 3 символа). Введите ник владельца:", nil)
			return
		}
		conv.App.OwnerUsername = handle
		b.finishApplication(msg, conv)
	}
}

// finishApplication persists the draft and posts it to the moderation
// channel with approve/reject buttons.
func (b *Bot) finishApplication(msg *tgbotapi.Message, conv *conversation) {
	app := conv.App
	res, err := b.db.Exec(`
		INSERT INTO shop_applications
			(telegram_id, shop_name, description, address, phone,
			 owner_name, owner_phone, owner_username, photo_file_id, photo_path, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending')`,
		msg.From.ID, app.ShopName, app.ShopDescription, app.ShopAddress, app.ShopPhone,
		app.OwnerName, app.OwnerPhone, app.OwnerUsername,
		nullIfEmpty(app.PhotoFileID), nullIfEmpty(app.PhotoPath))
	if err != nil {
		log.Printf("onboarding: application insert failed: %v", err)
		b.sendText(msg.Chat.ID, "Не удалось сохранить заявку, попробуйте позже.", nil)
		return
	}
	appID, _ := res.LastInsertId()
	b.states.Clear(msg.Chat.ID)

	b.sendText(msg.Chat.ID,
		fmt.Sprintf("✅ <b>Заявка №%d отправлена на модерацию.</b>\nМы сообщим вам о решении.", appID),
		nil)

	b.postToModeration(appID, msg.From.ID, app)
}

func (b *Bot) postToModeration(appID, telegramID int64, app applicationDraft) {
	if b.cfg.Bot.ModerationChatID == 0 {
		log.Printf("moderation chat is not configured, application %d left unposted", appID)
		return
	}

	caption := fmt.Sprintf(
		"🏪 <b>Заявка №%d</b>\n\n"+
			"Магазин: %s\nОписание: %s\nАдрес: %s\nТелефон: %s\n\n"+
			"Владелец: %s\nТелефон владельца: %s\nTelegram: @%s (id %d)",
		appID, app.ShopName, app.ShopDescription, app.ShopAddress, app.ShopPhone,
		app.OwnerName, app.OwnerPhone, app.OwnerUsername, telegramID)

	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Одобрить", fmt.Sprintf("approve_shop_%d", appID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отклонить", fmt.Sprintf("reject_shop_%d", appID)),
		),
	)

	var (
		sent tgbotapi.Message
		err  error
	)
	if app.PhotoFileID != "" {
		sent, err = b.sendPhotoFileID(b.cfg.Bot.ModerationChatID, app.PhotoFileID, caption, markup)
	} else {
		sent, err = b.sendText(b.cfg.Bot.ModerationChatID, caption, markup)
	}
	if err != nil {
		return
	}
	if _, err := b.db.Exec(`UPDATE shop_applications SET group_message_id = ? WHERE id = ?`,
		sent.MessageID, appID); err != nil {
		log.Printf("onboarding: group message id update failed: %v", err)
	}
}

// handleModeration processes an approve/reject button press from the
// moderation channel. Only pending applications may be decided; a second
// press on the same card is a no-op with a toast.
func (b *Bot) handleModeration(q *tgbotapi.CallbackQuery, rawID string, approve bool) {
	if !b.isAdmin(q.From.ID) {
		b.answerCallback(q.ID, "Недостаточно прав")
		return
	}
	appID, ok := parseID(rawID)
	if !ok {
		b.answerCallback(q.ID, "Некорректная заявка")
		return
	}

	var app models.ShopApplication
	err := b.db.QueryRow(`
		SELECT id, telegram_id, shop_name, description, address, phone,
		       owner_name, owner_phone, owner_username, photo_path, status, group_message_id
		FROM shop_applications WHERE id = ?`, appID).
		Scan(&app.ID, &app.TelegramID, &app.ShopName, &app.Description,
			&app.Address, &app.Phone, &app.OwnerName, &app.OwnerPhone,
			&app.OwnerUsername, &app.PhotoPath, &app.Status, &app.GroupMessageID)
	if err == sql.ErrNoRows {
		b.answerCallback(q.ID, "Заявка не найдена")
		return
	}
	if err != nil {
		log.Printf("moderation: application load failed: %v", err)
		b.answerCallback(q.ID, "Ошибка, попробуйте позже")
		return
	}
	if app.Status != models.ApplicationPending {
		b.answerCallback(q.ID, "Заявка уже обработана")
		return
	}

	if approve {
		b.approveApplication(q, &app)
	} else {
		b.rejectApplication(q, &app)
	}
}

func (b *Bot) approveApplication(q *tgbotapi.CallbackQuery, app *models.ShopApplication) {
	ownerID, err := b.findOrCreateApplicant(app)
	if err != nil {
		log.Printf("moderation: applicant upsert failed: %v", err)
		b.answerCallback(q.ID, "Ошибка, попробуйте позже")
		return
	}

	shopID, err := b.materializeShop(ownerID, app)
	if err != nil {
		log.Printf("moderation: shop materialization failed: %v", err)
		b.answerCallback(q.ID, "Ошибка, попробуйте позже")
		return
	}

	if _, err := b.db.Exec(`
		UPDATE shop_applications SET status = 'approved', shop_id = ? WHERE id = ?`,
		shopID, app.ID); err != nil {
		log.Printf("moderation: application status update failed: %v", err)
		b.answerCallback(q.ID, "Ошибка, попробуйте позже")
		return
	}

	b.answerCallback(q.ID, "Заявка одобрена")

	payMarkup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💳 Оплатить подписку",
				fmt.Sprintf("pay_subscription_%d", app.ID)),
		),
	)
	b.sendText(app.TelegramID,
		fmt.Sprintf("🎉 <b>Заявка одобрена!</b>\n\nМагазин «%s» создан. "+
			"Чтобы товары появились в каталоге, оплатите подписку.", app.ShopName),
		payMarkup)

	b.editModerationCard(q, app, "✅ ОДОБРЕНА")
}

func (b *Bot) rejectApplication(q *tgbotapi.CallbackQuery, app *models.ShopApplication) {
	if _, err := b.db.Exec(`
		UPDATE shop_applications SET status = 'rejected' WHERE id = ?`, app.ID); err != nil {
		log.Printf("moderation: application status update failed: %v", err)
		b.answerCallback(q.ID, "Ошибка, попробуйте позже")
		return
	}

	b.answerCallback(q.ID, "Заявка отклонена")
	b.sendText(app.TelegramID,
		fmt.Sprintf("К сожалению, заявка на магазин «%s» отклонена.", app.ShopName),
		nil)

	b.editModerationCard(q, app, "❌ ОТКЛОНЕНА")
}

// editModerationCard appends the verdict to the channel card and strips its
// buttons.
func (b *Bot) editModerationCard(q *tgbotapi.CallbackQuery, app *models.ShopApplication, verdict string) {
	if q.Message == nil {
		return
	}
	original := q.Message.Text
	if original == "" {
		original = q.Message.Caption
	}
	b.editMessageWithFallback(q.Message.Chat.ID, q.Message.MessageID,
		fmt.Sprintf("%s\n\n%s", original, verdict))
}

func (b *Bot) findOrCreateApplicant(app *models.ShopApplication) (int64, error) {
	var id int64
	err := b.db.QueryRow(`SELECT id FROM users WHERE telegram_id = ?`, app.TelegramID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	res, err := b.db.Exec(`
		INSERT INTO users (telegram_id, username, first_name, phone)
		VALUES (?, ?, ?, ?)`,
		app.TelegramID, nullIfEmpty(app.OwnerUsername), app.OwnerName,
		nullIfEmpty(app.OwnerPhone))
	if err != nil {
		if qerr := b.db.QueryRow(`SELECT id FROM users WHERE telegram_id = ?`, app.TelegramID).Scan(&id); qerr == nil {
			return id, nil
		}
		return 0, err
	}
	return res.LastInsertId()
}

// materializeShop turns an approved application into a shop row. An owner
// who already has a shop gets it updated in place instead of a duplicate.
func (b *Bot) materializeShop(ownerID int64, app *models.ShopApplication) (int64, error) {
	var shopID int64
	err := b.db.QueryRow(`SELECT id FROM shops WHERE owner_id = ?`, ownerID).Scan(&shopID)
	switch {
	case err == nil:
		if _, err := b.db.Exec(`
			UPDATE shops SET name = ?, description = ?, address = ?, phone = ?, is_active = TRUE
			WHERE id = ?`,
			app.ShopName, app.Description, app.Address, app.Phone, shopID); err != nil {
			return 0, err
		}
	case err == sql.ErrNoRows:
		res, err := b.db.Exec(`
			INSERT INTO shops (owner_id, name, description, address, phone, is_active)
			VALUES (?, ?, ?, ?, ?, TRUE)`,
			ownerID, app.ShopName, app.Description, app.Address, app.Phone)
		if err != nil {
			return 0, err
		}
		shopID, err = res.LastInsertId()
		if err != nil {
			return 0, err
		}
	default:
		return 0, err
	}

	// The application photo was staged under a temporary name; move it into
	// the shop's directory now that the shop id exists.
	if app.PhotoPath != nil && *app.PhotoPath != "" {
		publicURL, err := b.media.MigrateRequestPhoto(*app.PhotoPath, shopID)
		if err != nil {
			log.Printf("moderation: photo migration failed for shop %d: %v", shopID, err)
		} else if _, err := b.db.Exec(`UPDATE shops SET photo_url = ? WHERE id = ?`, publicURL, shopID); err != nil {
			log.Printf("moderation: photo url update failed for shop %d: %v", shopID, err)
		}
	}

	return shopID, nil
}
