package bot

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.cmdStart(msg)
	case "add_shop":
		b.cmdAddShop(msg)
	case "remind":
		b.cmdRemind(msg)
	case "admin":
		b.cmdAdmin(msg)
	case "post":
		b.cmdPost(msg)
	case "phone":
		b.cmdPhone(msg)
	case "orders":
		b.cmdOrders(msg)
	case "cancel":
		b.states.Clear(msg.Chat.ID)
		b.sendText(msg.Chat.ID, "Действие отменено.", nil)
	}
}

// handleWizardMessage feeds a plain message into the active wizard.
func (b *Bot) handleWizardMessage(msg *tgbotapi.Message, conv *conversation) {
	if strings.EqualFold(strings.TrimSpace(msg.Text), "отмена") {
		b.states.Clear(msg.Chat.ID)
		b.sendText(msg.Chat.ID, "Действие отменено.", nil)
		return
	}

	switch conv.State {
	case stateShopName, stateShopPhoto, stateShopDescription, stateShopAddress,
		stateShopPhone, stateOwnerName, stateOwnerPhone, stateOwnerUsername:
		b.handleOnboardingStep(msg, conv)
	case stateReviewComment:
		text := strings.TrimSpace(msg.Text)
		b.handleReviewComment(msg.Chat.ID, msg.From, &text)
	case statePromoCode, statePromoValue, statePromoMinAmount, statePromoValidUntil:
		b.handlePromoStep(msg, conv)
	case stateRemindDate, stateRemindDescription:
		b.handleRemindStep(msg, conv)
	case statePhone:
		b.handlePhoneStep(msg)
	}
}

func (b *Bot) cmdStart(msg *tgbotapi.Message) {
	if _, err := b.findOrCreateUser(msg.From); err != nil {
		log.Printf("start: user upsert failed: %v", err)
	}

	text := "🌸 <b>Добро пожаловать в маркетплейс цветов и подарков!</b>\n\n" +
		"Здесь вы можете заказать букеты и подарки от локальных магазинов.\n\n" +
		"Команды:\n" +
		"/add_shop — подать заявку на открытие магазина\n" +
		"/подписка — статус подписки магазина\n" +
		"/orders — ваши заказы\n" +
		"/remind — напоминание о важной дате\n" +
		"/phone — указать номер телефона"

	b.sendText(msg.Chat.ID, text, catalogKeyboard(b.cfg.Bot.WebAppURL))
}

func (b *Bot) cmdPhone(msg *tgbotapi.Message) {
	b.states.Begin(msg.Chat.ID, statePhone)
	b.sendText(msg.Chat.ID, "Отправьте ваш номер телефона (например +79001234567):", forceReply())
}

func (b *Bot) handlePhoneStep(msg *tgbotapi.Message) {
	phone := strings.TrimSpace(msg.Text)
	if msg.Contact != nil {
		phone = msg.Contact.PhoneNumber
	}
	if len(phone) < 10 {
		b.sendText(msg.Chat.ID, "Номер телефона слишком короткий, попробуйте еще раз:", forceReply())
		return
	}

	userID, err := b.findOrCreateUser(msg.From)
	if err != nil {
		log.Printf("phone: user upsert failed: %v", err)
		b.sendText(msg.Chat.ID, "Не удалось сохранить номер, попробуйте позже.", nil)
		return
	}
	if _, err := b.db.Exec(`UPDATE users SET phone = ? WHERE id = ?`, phone, userID); err != nil {
		log.Printf("phone: update failed: %v", err)
		b.sendText(msg.Chat.ID, "Не удалось сохранить номер, попробуйте позже.", nil)
		return
	}
	b.states.Clear(msg.Chat.ID)
	b.sendText(msg.Chat.ID, "✅ Номер телефона сохранен.", nil)
}

// cmdOrders shows the shop's recent orders to an owner, or the user's own
// orders otherwise.
func (b *Bot) cmdOrders(msg *tgbotapi.Message) {
	var shopID int64
	var shopName string
	err := b.db.QueryRow(`
		SELECT s.id, s.name FROM shops s
		JOIN users u ON u.id = s.owner_id
		WHERE u.telegram_id = ?`, msg.From.ID).Scan(&shopID, &shopName)
	if err == nil {
		b.sendShopOrders(msg.Chat.ID, shopID, shopName)
		return
	}
	if err != sql.ErrNoRows {
		log.Printf("orders: shop lookup failed: %v", err)
	}
	b.sendOwnOrders(msg.Chat.ID, msg.From.ID)
}

func (b *Bot) sendShopOrders(chatID, shopID int64, shopName string) {
	rows, err := b.db.Query(`
		SELECT order_number, status, total, recipient_name, created_at
		FROM orders WHERE shop_id = ?
		ORDER BY created_at DESC LIMIT 10`, shopID)
	if err != nil {
		log.Printf("orders: shop orders query failed: %v", err)
		b.sendText(chatID, "Не удалось загрузить заказы.", nil)
		return
	}
	defer rows.Close()

	var sb strings.Builder
	fmt.Fprintf(&sb, "📦 <b>Заказы магазина «%s»</b>\n", shopName)
	count := 0
	for rows.Next() {
		var number, status, recipient, createdAt string
		var total float64
		if err := rows.Scan(&number, &status, &total, &recipient, &createdAt); err != nil {
			log.Printf("orders: scan failed: %v", err)
			continue
		}
		fmt.Fprintf(&sb, "\n%s — %s\n%.2f ₽, получатель: %s\n", number, orderStatusLabel(status), total, recipient)
		count++
	}
	if count == 0 {
		sb.WriteString("\nЗаказов пока нет.")
	}
	b.sendText(chatID, sb.String(), nil)
}

func (b *Bot) sendOwnOrders(chatID, telegramID int64) {
	rows, err := b.db.Query(`
		SELECT o.order_number, o.status, o.total, s.name, o.created_at
		FROM orders o
		JOIN users u ON u.id = o.user_id
		JOIN shops s ON s.id = o.shop_id
		WHERE u.telegram_id = ?
		ORDER BY o.created_at DESC LIMIT 10`, telegramID)
	if err != nil {
		log.Printf("orders: own orders query failed: %v", err)
		b.sendText(chatID, "Не удалось загрузить заказы.", nil)
		return
	}
	defer rows.Close()

	var sb strings.Builder
	sb.WriteString("📦 <b>Ваши заказы</b>\n")
	count := 0
	for rows.Next() {
		var number, status, shop, createdAt string
		var total float64
		if err := rows.Scan(&number, &status, &total, &shop, &createdAt); err != nil {
			log.Printf("orders: scan failed: %v", err)
			continue
		}
		fmt.Fprintf(&sb, "\n%s — %s\n%s, %.2f ₽\n", number, orderStatusLabel(status), shop, total)
		count++
	}
	if count == 0 {
		sb.WriteString("\nУ вас пока нет заказов.")
	}
	b.sendText(chatID, sb.String(), nil)
}

func orderStatusLabel(status string) string {
	switch status {
	case "pending":
		return "⏳ ожидает"
	case "processing":
		return "🚚 в работе"
	case "delivered":
		return "✅ доставлен"
	case "cancelled":
		return "❌ отменен"
	default:
		return status
	}
}

// cmdPost republishes the owner's shop card into the shop's channel.
func (b *Bot) cmdPost(msg *tgbotapi.Message) {
	var shopID int64
	var name, description string
	var photoURL *string
	var channelID *int64
	err := b.db.QueryRow(`
		SELECT s.id, s.name, s.description, s.photo_url, sc.channel_id
		FROM shops s
		JOIN users u ON u.id = s.owner_id
		LEFT JOIN shop_channels sc ON sc.shop_id = s.id
		WHERE u.telegram_id = ?`, msg.From.ID).
		Scan(&shopID, &name, &description, &photoURL, &channelID)
	if err == sql.ErrNoRows {
		b.sendText(msg.Chat.ID, "У вас нет магазина. Подайте заявку командой /add_shop.", nil)
		return
	}
	if err != nil {
		log.Printf("post: shop lookup failed: %v", err)
		b.sendText(msg.Chat.ID, "Не удалось загрузить магазин.", nil)
		return
	}
	if channelID == nil {
		b.sendText(msg.Chat.ID, "К магазину не привязан канал. Добавьте бота администратором в канал и обратитесь в поддержку.", nil)
		return
	}

	text := fmt.Sprintf("🌸 <b>%s</b>\n\n%s", name, description)
	var markup interface{}
	if b.cfg.Bot.WebAppURL != "" {
		markup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("🛍 Каталог магазина",
					fmt.Sprintf("%s?startapp=shop_%d", b.cfg.Bot.WebAppURL, shopID)),
			),
		)
	}
	if _, err := b.sendText(*channelID, text, markup); err != nil {
		b.sendText(msg.Chat.ID, "Не удалось опубликовать пост в канал.", nil)
		return
	}
	b.sendText(msg.Chat.ID, "✅ Пост опубликован в канал магазина.", nil)
}

// cmdAdmin is the admin panel entry point.
func (b *Bot) cmdAdmin(msg *tgbotapi.Message) {
	if !b.isAdmin(msg.From.ID) {
		return
	}

	var pending int
	if err := b.db.QueryRow(`SELECT COUNT(*) FROM shop_applications WHERE status = 'pending'`).Scan(&pending); err != nil {
		log.Printf("admin: pending count failed: %v", err)
	}

	text := fmt.Sprintf("🛠 <b>Панель администратора</b>\n\nЗаявок на модерации: %d", pending)
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎟 Создать промокод", "promo_new"),
		),
	)
	b.sendText(msg.Chat.ID, text, markup)
}

// findOrCreateUser resolves the internal user id for a platform account,
// creating the row on first contact.
func (b *Bot) findOrCreateUser(from *tgbotapi.User) (int64, error) {
	var id int64
	err := b.db.QueryRow(`SELECT id FROM users WHERE telegram_id = ?`, from.ID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	res, err := b.db.Exec(`
		INSERT INTO users (telegram_id, username, first_name, last_name)
		VALUES (?, ?, ?, ?)`,
		from.ID, nullIfEmpty(from.UserName), from.FirstName, nullIfEmpty(from.LastName))
	if err != nil {
		// Concurrent first contact from the API side.
		if qerr := b.db.QueryRow(`SELECT id FROM users WHERE telegram_id = ?`, from.ID).Scan(&id); qerr == nil {
			return id, nil
		}
		return 0, err
	}
	return res.LastInsertId()
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
