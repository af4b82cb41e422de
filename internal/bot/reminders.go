package bot

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Reminders fire once per day inside a short morning window. The ticker
// runs more often than the window is wide, so exactly one tick lands in it;
// the is_sent flag makes a second landing harmless anyway.
const (
	reminderHour        = 10
	reminderWindowWidth = 5 // minutes
)

// inReminderWindow reports whether t falls in the daily delivery window
// [10:00, 10:05).
func inReminderWindow(t time.Time) bool {
	return t.Hour() == reminderHour && t.Minute() < reminderWindowWidth
}

// RunReminders ticks until the context is cancelled, delivering due
// reminders when the local time enters the morning window.
func (b *Bot) RunReminders(ctx context.Context) {
	loc, err := time.LoadLocation(b.cfg.Reminders.Zone)
	if err != nil {
		log.Printf("reminders: bad time zone %q, falling back to UTC: %v", b.cfg.Reminders.Zone, err)
		loc = time.UTC
	}

	interval := time.Duration(b.cfg.Reminders.IntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().In(loc)
			if !inReminderWindow(now) {
				continue
			}
			if err := b.deliverDueReminders(now); err != nil {
				log.Printf("reminders: delivery pass failed: %v", err)
			}
		}
	}
}

func (b *Bot) deliverDueReminders(now time.Time) error {
	rows, err := b.db.Query(`
		SELECT r.id, u.telegram_id, r.event_description
		FROM reminders r
		JOIN users u ON u.id = r.user_id
		WHERE r.event_date = ? AND r.is_sent = FALSE`,
		now.Format("2006-01-02"))
	if err != nil {
		return err
	}
	defer rows.Close()

	type due struct {
		id          int64
		telegramID  int64
		description string
	}
	var batch []due
	for rows.Next() {
		var d due
		if err := rows.Scan(&d.id, &d.telegramID, &d.description); err != nil {
			log.Printf("reminders: scan failed: %v", err)
			continue
		}
		batch = append(batch, d)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, d := range batch {
		text := fmt.Sprintf("📅 <b>Напоминание!</b>\n\nСегодня: %s\n\nУспейте заказать цветы и подарки 🌸", d.description)

		if _, err := b.sendText(d.telegramID, text, catalogKeyboard(b.cfg.Bot.WebAppURL)); err != nil {
			// Blocked bot or deleted account. Leave unsent; the flag flips
			// only on delivery.
			continue
		}
		if _, err := b.db.Exec(`
			UPDATE reminders SET is_sent = TRUE, sent_at = NOW() WHERE id = ?`, d.id); err != nil {
			log.Printf("reminders: sent flag update failed for %d: %v", d.id, err)
		}
	}
	return nil
}
