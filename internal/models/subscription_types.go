package models

import "time"

// SubscriptionPlan is the model for the 'subscription_plans' table.
// Price is in major currency units; the invoice layer converts to minor.
type SubscriptionPlan struct {
	ID           int64   `json:"id" db:"id"`
	Name         string  `json:"name" db:"name"`
	Price        float64 `json:"price" db:"price"`
	DurationDays int     `json:"durationDays" db:"duration_days"`
	MaxProducts  int     `json:"maxProducts" db:"max_products"`
	Features     *string `json:"features,omitempty" db:"features"`
	IsActive     bool    `json:"isActive" db:"is_active"`
}

// Subscription is the model for the 'subscriptions' table.
// Invariant: per shop, at most one row has is_active=true AND end_date>now.
type Subscription struct {
	ID                int64     `json:"id" db:"id"`
	ShopID            int64     `json:"shopId" db:"shop_id"`
	PlanID            int64     `json:"planId" db:"plan_id"`
	StartDate         time.Time `json:"startDate" db:"start_date"`
	EndDate           time.Time `json:"endDate" db:"end_date"`
	IsActive          bool      `json:"isActive" db:"is_active"`
	ExternalPaymentID *string   `json:"-" db:"external_payment_id"`
	CreatedAt         time.Time `json:"createdAt" db:"created_at"`

	// Joins (populated manually)
	PlanName string `json:"planName,omitempty" db:"-"`
}
