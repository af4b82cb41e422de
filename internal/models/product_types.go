package models

import "time"

// Media types accepted for product media.
const (
	MediaPhoto = "photo"
	MediaVideo = "video"
)

// Product is the model for the 'products' table.
// is_active is the intersection of owner intent and the subscription gate:
// the activation cascade flips it as subscriptions come and go.
type Product struct {
	ID          int64  `json:"id" db:"id"`
	ShopID      int64  `json:"shopId" db:"shop_id"`
	CategoryID  int64  `json:"categoryId" db:"category_id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`

	// --- Pricing & Stock ---
	Price           float64  `json:"price" db:"price"`
	DiscountPrice   *float64 `json:"discountPrice,omitempty" db:"discount_price"`
	DiscountPercent *int     `json:"discountPercent,omitempty" db:"discount_percent"`
	Quantity        int      `json:"quantity" db:"quantity"`

	IsActive   bool `json:"isActive" db:"is_active"`
	IsTrending bool `json:"isTrending" db:"is_trending"`
	ViewsCount int  `json:"viewsCount" db:"views_count"`
	SalesCount int  `json:"salesCount" db:"sales_count"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	// Joins (populated manually)
	ShopName     string         `json:"shopName,omitempty" db:"-"`
	ShopRating   float64        `json:"shopRating" db:"-"`
	CategoryName string         `json:"categoryName,omitempty" db:"-"`
	Media        []ProductMedia `json:"media" db:"-"`
	PrimaryImage *string        `json:"primaryImage,omitempty" db:"-"`
	IsFavorite   bool           `json:"isFavorite" db:"-"`
	InCart       bool           `json:"inCart" db:"-"`
}

// EffectivePrice is the discount price when set, else the list price.
func (p *Product) EffectivePrice() float64 {
	if p.DiscountPrice != nil {
		return *p.DiscountPrice
	}
	return p.Price
}

// ProductMedia is the model for the 'product_media' table.
// Exactly one row per product has is_primary=true when media exists.
// List order: videos first, then primary, then sort_order.
type ProductMedia struct {
	ID        int64  `json:"id" db:"id"`
	ProductID int64  `json:"productId" db:"product_id"`
	MediaType string `json:"mediaType" db:"media_type"`
	URL       string `json:"url" db:"url"`
	IsPrimary bool   `json:"isPrimary" db:"is_primary"`
	SortOrder int    `json:"sortOrder" db:"sort_order"`
}
