package subs

import (
	"database/sql"
	"errors"
	"log"
	"time"

	"bloommarket/internal/models"
)

// ErrPlanNotFound is returned when a referenced plan does not exist or has
// been deactivated. Callers must decline the operation instead of granting.
var ErrPlanNotFound = errors.New("subscription plan not found or inactive")

// Manager owns subscription state and the product-activation cascade.
// All operations are idempotent so callers may re-run them freely.
type Manager struct {
	DB *sql.DB
}

// New returns a Manager over the shared pool.
func New(db *sql.DB) *Manager {
	return &Manager{DB: db}
}

// Active returns the shop's active subscription: the row with
// is_active=true AND end_date > now, preferring the latest end. Returns
// nil when the shop has none.
func (m *Manager) Active(shopID int64) (*models.Subscription, error) {
	var s models.Subscription
	err := m.DB.QueryRow(
		`SELECT s.id, s.shop_id, s.plan_id, s.start_date, s.end_date, s.is_active,
		        s.external_payment_id, s.created_at, p.name
		 FROM subscriptions s
		 JOIN subscription_plans p ON s.plan_id = p.id
		 WHERE s.shop_id = ? AND s.is_active = TRUE AND s.end_date > NOW()
		 ORDER BY s.end_date DESC
		 LIMIT 1`,
		shopID,
	).Scan(
		&s.ID, &s.ShopID, &s.PlanID, &s.StartDate, &s.EndDate, &s.IsActive,
		&s.ExternalPaymentID, &s.CreatedAt, &s.PlanName,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// HasActive reports whether the shop currently has an active subscription.
func (m *Manager) HasActive(shopID int64) (bool, error) {
	s, err := m.Active(shopID)
	return s != nil, err
}

// ActivateProducts flips on every product of the shop that is in stock.
// Out-of-stock items are never activated by the cascade.
func (m *Manager) ActivateProducts(shopID int64) error {
	_, err := m.DB.Exec(
		"UPDATE products SET is_active = TRUE WHERE shop_id = ? AND quantity > 0",
		shopID,
	)
	return err
}

// DeactivateProducts flips off every active product of the shop.
func (m *Manager) DeactivateProducts(shopID int64) error {
	_, err := m.DB.Exec(
		"UPDATE products SET is_active = FALSE WHERE shop_id = ? AND is_active = TRUE",
		shopID,
	)
	return err
}

// ByChargeID finds a subscription by the payment provider's charge id.
// Used to make successful-payment replays no-ops.
func (m *Manager) ByChargeID(chargeID string) (*models.Subscription, error) {
	var s models.Subscription
	err := m.DB.QueryRow(
		`SELECT id, shop_id, plan_id, start_date, end_date, is_active, external_payment_id, created_at
		 FROM subscriptions WHERE external_payment_id = ?`,
		chargeID,
	).Scan(&s.ID, &s.ShopID, &s.PlanID, &s.StartDate, &s.EndDate, &s.IsActive, &s.ExternalPaymentID, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Grant records a paid subscription for the shop and runs the activation
// cascade. When the shop already has an active subscription the new one
// stacks: it starts where the current one ends. Prior rows are always
// deactivated so the single-active-row invariant holds.
//
// Replaying the same chargeID returns the existing row without side
// effects.
func (m *Manager) Grant(shopID int64, plan *models.SubscriptionPlan, chargeID string) (*models.Subscription, error) {
	if chargeID != "" {
		if existing, err := m.ByChargeID(chargeID); err != nil {
			return nil, err
		} else if existing != nil {
			return existing, nil
		}
	}

	start := time.Now()
	if current, err := m.Active(shopID); err != nil {
		return nil, err
	} else if current != nil {
		start = current.EndDate
	}
	end := start.AddDate(0, 0, plan.DurationDays)

	return m.insertAndCascade(shopID, plan.ID, start, end, chargeID)
}

// GrantUntil inserts a subscription with an explicit end date, bypassing
// plan duration. The admin "infinite subscription" escape hatch calls it
// with 2099-12-31.
func (m *Manager) GrantUntil(shopID, planID int64, end time.Time) (*models.Subscription, error) {
	return m.insertAndCascade(shopID, planID, time.Now(), end, "")
}

func (m *Manager) insertAndCascade(shopID, planID int64, start, end time.Time, chargeID string) (*models.Subscription, error) {
	tx, err := m.DB.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"UPDATE subscriptions SET is_active = FALSE WHERE shop_id = ?",
		shopID,
	); err != nil {
		return nil, err
	}

	var external interface{}
	if chargeID != "" {
		external = chargeID
	}
	result, err := tx.Exec(
		`INSERT INTO subscriptions (shop_id, plan_id, start_date, end_date, is_active, external_payment_id)
		 VALUES (?, ?, ?, ?, TRUE, ?)`,
		shopID, planID, start, end, external,
	)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if err := m.ActivateProducts(shopID); err != nil {
		log.Printf("Product activation cascade failed for shop %d: %v", shopID, err)
	}

	sub := &models.Subscription{
		ID: id, ShopID: shopID, PlanID: planID,
		StartDate: start, EndDate: end, IsActive: true,
	}
	if chargeID != "" {
		sub.ExternalPaymentID = &chargeID
	}
	return sub, nil
}

// DefaultPlan returns the legacy single plan (30 days), creating it on
// first use. The legacy invoice payload has no plan id and resolves here.
func (m *Manager) DefaultPlan() (*models.SubscriptionPlan, error) {
	var p models.SubscriptionPlan
	err := m.DB.QueryRow(
		`SELECT id, name, price, duration_days, max_products, features, is_active
		 FROM subscription_plans WHERE duration_days = 30 AND is_active = TRUE
		 ORDER BY id LIMIT 1`,
	).Scan(&p.ID, &p.Name, &p.Price, &p.DurationDays, &p.MaxProducts, &p.Features, &p.IsActive)
	if err == nil {
		return &p, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	result, err := m.DB.Exec(
		`INSERT INTO subscription_plans (name, price, duration_days, max_products, is_active)
		 VALUES ('Базовый', 990, 30, 10, TRUE)`,
	)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.SubscriptionPlan{
		ID: id, Name: "Базовый", Price: 990, DurationDays: 30, MaxProducts: 10, IsActive: true,
	}, nil
}

// PlanByID fetches an active plan. A missing or deactivated plan is
// ErrPlanNotFound, never a nil plan with a nil error: Grant dereferences
// the plan unconditionally.
func (m *Manager) PlanByID(planID int64) (*models.SubscriptionPlan, error) {
	var p models.SubscriptionPlan
	err := m.DB.QueryRow(
		`SELECT id, name, price, duration_days, max_products, features, is_active
		 FROM subscription_plans WHERE id = ? AND is_active = TRUE`,
		planID,
	).Scan(&p.ID, &p.Name, &p.Price, &p.DurationDays, &p.MaxProducts, &p.Features, &p.IsActive)
	if err == sql.ErrNoRows {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ExpirySweep deactivates products of every shop that is still active but
// has no active subscription. The API process runs it once at boot, before
// accepting connections.
func (m *Manager) ExpirySweep() error {
	rows, err := m.DB.Query(
		`SELECT sh.id FROM shops sh
		 WHERE sh.is_active = TRUE
		   AND NOT EXISTS (
		     SELECT 1 FROM subscriptions s
		     WHERE s.shop_id = sh.id AND s.is_active = TRUE AND s.end_date > NOW()
		   )`,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	var shopIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		shopIDs = append(shopIDs, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range shopIDs {
		if err := m.DeactivateProducts(id); err != nil {
			log.Printf("Expiry sweep: failed to deactivate products for shop %d: %v", id, err)
		}
	}

	if len(shopIDs) > 0 {
		log.Printf("Expiry sweep: deactivated products for %d shop(s) without an active subscription", len(shopIDs))
	}
	return nil
}
