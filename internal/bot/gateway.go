package bot

import (
	"fmt"
	"io"
	"log"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sendText delivers an HTML-formatted message, optionally with a reply
// markup (inline keyboard or force-reply). Send failures are logged.
func (b *Bot) sendText(chatID int64, text string, markup interface{}) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	sent, err := b.api.Send(msg)
	if err != nil {
		log.Printf("sendText to %d failed: %v", chatID, err)
	}
	return sent, err
}

// sendPhotoFileID re-sends an already-uploaded photo by its platform file
// id, which is cheaper than uploading the bytes again.
func (b *Bot) sendPhotoFileID(chatID int64, fileID, caption string, markup interface{}) (tgbotapi.Message, error) {
	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
	msg.Caption = caption
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	sent, err := b.api.Send(msg)
	if err != nil {
		log.Printf("sendPhoto to %d failed: %v", chatID, err)
	}
	return sent, err
}

// editMessageWithFallback rewrites a message in place. Moderation cards may
// be plain text or photo with caption, so it tries an edit of the text, then
// of the caption, then falls back to stripping the reply markup.
func (b *Bot) editMessageWithFallback(chatID int64, messageID int, newText string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, newText)
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(edit); err == nil {
		return
	} else {
		log.Printf("edit text of message %d failed: %v", messageID, err)
	}

	caption := tgbotapi.NewEditMessageCaption(chatID, messageID, newText)
	caption.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(caption); err == nil {
		return
	} else {
		log.Printf("edit caption of message %d failed: %v", messageID, err)
	}

	markup := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	if _, err := b.api.Send(markup); err != nil {
		log.Printf("clear reply markup of message %d failed: %v", messageID, err)
	}
}

// sendInvoice issues a payment invoice. amountMinor is in minor currency
// units (kopecks).
func (b *Bot) sendInvoice(chatID int64, title, description, payload string, amountMinor int) error {
	inv := tgbotapi.NewInvoice(
		chatID, title, description, payload,
		b.cfg.Bot.ProviderToken, "", b.cfg.Orders.Currency,
		[]tgbotapi.LabeledPrice{{Label: title, Amount: amountMinor}},
	)
	inv.SuggestedTipAmounts = []int{}
	if _, err := b.api.Request(inv); err != nil {
		log.Printf("sendInvoice to %d failed: %v", chatID, err)
		return err
	}
	return nil
}

// answerPreCheckout accepts or rejects a pre-checkout query. The platform
// gives 10 seconds; this system always accepts.
func (b *Bot) answerPreCheckout(queryID string, ok bool, errMessage string) {
	cfg := tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: queryID,
		OK:                 ok,
		ErrorMessage:       errMessage,
	}
	if _, err := b.api.Request(cfg); err != nil {
		log.Printf("answerPreCheckout failed: %v", err)
	}
}

// answerCallback closes the loading spinner on an inline button, with an
// optional toast text.
func (b *Bot) answerCallback(callbackID, text string) {
	cb := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(cb); err != nil {
		log.Printf("answerCallback failed: %v", err)
	}
}

// downloadFile fetches a platform file's bytes by file id.
func (b *Bot) downloadFile(fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// cancelKeyboard is the standard wizard-abort button.
func cancelKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Отмена", "cancel_wizard"),
		),
	)
}

// forceReply asks the client to reply directly to the prompt, which keeps
// wizard answers attached to their questions.
func forceReply() tgbotapi.ForceReply {
	return tgbotapi.ForceReply{ForceReply: true, Selective: true}
}

// catalogKeyboard is the "open catalog" button pointing at the mini-app
// link. Returns nil when no web app is configured so callers can pass the
// result straight to sendText.
func catalogKeyboard(webAppURL string) interface{} {
	if webAppURL == "" {
		return nil
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("🛍 Открыть каталог", webAppURL),
		),
	)
}
