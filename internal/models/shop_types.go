package models

import "time"

// Shop is the model for the 'shops' table. At most one shop per owner.
// Shops are born from approved applications and are never hard-deleted.
type Shop struct {
	ID          int64    `json:"id" db:"id"`
	OwnerID     int64    `json:"ownerId" db:"owner_id"`
	Name        string   `json:"name" db:"name"`
	Description string   `json:"description" db:"description"`
	Address     string   `json:"address" db:"address"`
	City        *string  `json:"city,omitempty" db:"city"`
	Phone       *string  `json:"phone,omitempty" db:"phone"`
	Email       *string  `json:"email,omitempty" db:"email"`
	PhotoURL    *string  `json:"photoUrl,omitempty" db:"photo_url"`
	Latitude    *float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude   *float64 `json:"longitude,omitempty" db:"longitude"`

	IsActive      bool    `json:"isActive" db:"is_active"`
	IsVerified    bool    `json:"isVerified" db:"is_verified"`
	AverageRating float64 `json:"averageRating" db:"average_rating"`
	TotalReviews  int     `json:"totalReviews" db:"total_reviews"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	// Joins (populated manually)
	HasActiveSubscription bool `json:"hasActiveSubscription" db:"-"`
	ProductsCount         int  `json:"productsCount,omitempty" db:"-"`
}

// ShopChannel maps a shop to its external chat channel for the
// post-to-channel feature.
type ShopChannel struct {
	ID            int64  `json:"id" db:"id"`
	ShopID        int64  `json:"shopId" db:"shop_id"`
	ChannelID     int64  `json:"channelId" db:"channel_id"`
	ChannelHandle string `json:"channelHandle" db:"channel_handle"`
}
