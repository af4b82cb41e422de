package models

import "time"

// User is the model for the 'users' table. Users are auto-created on their
// first authenticated API request or first chat interaction and never deleted.
type User struct {
	ID         int64   `json:"id" db:"id"`
	TelegramID int64   `json:"telegramId" db:"telegram_id"`
	FirstName  string  `json:"firstName" db:"first_name"`
	LastName   *string `json:"lastName,omitempty" db:"last_name"`
	Username   *string `json:"username,omitempty" db:"username"`
	Language   *string `json:"languageCode,omitempty" db:"language_code"`
	Phone      *string `json:"phone,omitempty" db:"phone"`
	IsPremium  bool    `json:"isPremium" db:"is_premium"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// DisplayName returns the best human-readable name we have for the user.
func (u *User) DisplayName() string {
	name := u.FirstName
	if u.LastName != nil && *u.LastName != "" {
		name += " " + *u.LastName
	}
	if name == "" && u.Username != nil {
		name = "@" + *u.Username
	}
	return name
}
