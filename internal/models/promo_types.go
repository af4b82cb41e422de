package models

import "time"

// Promo types.
const (
	PromoPercent      = "percent"
	PromoFixed        = "fixed"
	PromoFreeDelivery = "free_delivery"
)

// Promo is the model for the 'promos' table. Codes are stored upper-cased.
// The table also carries legacy discount_type/discount_value columns that
// mirror promo_type/value; migrations backfill them and writes keep both
// populated.
type Promo struct {
	ID        int64   `json:"id" db:"id"`
	Code      string  `json:"code" db:"code"`
	PromoType string  `json:"promoType" db:"promo_type"`
	Value     float64 `json:"value" db:"value"`

	MinOrderAmount *float64   `json:"minOrderAmount,omitempty" db:"min_order_amount"`
	ValidFrom      *time.Time `json:"validFrom,omitempty" db:"valid_from"`
	ValidUntil     *time.Time `json:"validUntil,omitempty" db:"valid_until"`
	ShopID         *int64     `json:"shopId,omitempty" db:"shop_id"`
	UseOnce        bool       `json:"useOnce" db:"use_once"`
	FirstOrderOnly bool       `json:"firstOrderOnly" db:"first_order_only"`
	MaxUses        *int       `json:"maxUses,omitempty" db:"max_uses"`

	UsageCount int  `json:"usageCount" db:"usage_count"`
	IsActive   bool `json:"isActive" db:"is_active"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
