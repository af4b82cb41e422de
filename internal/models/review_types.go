package models

import "time"

// ShopReview is the model for the 'shop_reviews' table. One review per
// (shop, user); is_verified is set when the reviewer has a delivered order
// in that shop.
type ShopReview struct {
	ID         int64   `json:"id" db:"id"`
	ShopID     int64   `json:"shopId" db:"shop_id"`
	UserID     int64   `json:"userId" db:"user_id"`
	OrderID    *int64  `json:"orderId,omitempty" db:"order_id"`
	Rating     int     `json:"rating" db:"rating"`
	Comment    *string `json:"comment,omitempty" db:"comment"`
	IsVerified bool    `json:"isVerified" db:"is_verified"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// Joins (populated manually)
	UserName string `json:"userName,omitempty" db:"-"`
}
