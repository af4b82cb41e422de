package models

import "time"

// Shop application statuses. Transitions are one-way: pending is the only
// non-terminal state.
const (
	ApplicationPending  = "pending"
	ApplicationApproved = "approved"
	ApplicationRejected = "rejected"
)

// ShopApplication is the model for the 'shop_applications' table: the
// onboarding wizard's output awaiting a moderation decision.
type ShopApplication struct {
	ID            int64   `json:"id" db:"id"`
	TelegramID    int64   `json:"telegramId" db:"telegram_id"`
	ShopName      string  `json:"shopName" db:"shop_name"`
	PhotoFileID   *string `json:"-" db:"photo_file_id"`
	PhotoPath     *string `json:"photoPath,omitempty" db:"photo_path"`
	Description   string  `json:"description" db:"description"`
	Address       string  `json:"address" db:"address"`
	Phone         string  `json:"phone" db:"phone"`
	OwnerName     string  `json:"ownerName" db:"owner_name"`
	OwnerPhone    string  `json:"ownerPhone" db:"owner_phone"`
	OwnerUsername string  `json:"ownerUsername" db:"owner_username"`

	Status         string `json:"status" db:"status"`
	GroupMessageID *int   `json:"-" db:"group_message_id"`
	ShopID         *int64 `json:"shopId,omitempty" db:"shop_id"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
