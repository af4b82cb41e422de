package models

import "time"

// Banner link types.
const (
	BannerLinkNone     = "none"
	BannerLinkCategory = "category"
	BannerLinkProduct  = "product"
	BannerLinkShop     = "shop"
	BannerLinkExternal = "external"
)

// Banner is the model for the 'banners' table (home-screen carousel).
type Banner struct {
	ID           int64   `json:"id" db:"id"`
	Title        string  `json:"title" db:"title"`
	Emoji        *string `json:"emoji,omitempty" db:"emoji"`
	Description  *string `json:"description,omitempty" db:"description"`
	ImageURL     *string `json:"imageUrl,omitempty" db:"image_url"`
	LinkType     string  `json:"linkType" db:"link_type"`
	LinkValue    *string `json:"linkValue,omitempty" db:"link_value"`
	DisplayOrder int     `json:"displayOrder" db:"display_order"`
	IsActive     bool    `json:"isActive" db:"is_active"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
