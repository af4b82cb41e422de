package models

import "time"

// Reminder is the model for the 'reminders' table. EventDate is a calendar
// date in the scheduler's configured time zone; is_sent guarantees at-most-
// once delivery.
type Reminder struct {
	ID               int64      `json:"id" db:"id"`
	UserID           int64      `json:"userId" db:"user_id"`
	EventDate        string     `json:"eventDate" db:"event_date"`
	EventDescription string     `json:"eventDescription" db:"event_description"`
	IsSent           bool       `json:"isSent" db:"is_sent"`
	SentAt           *time.Time `json:"sentAt,omitempty" db:"sent_at"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
