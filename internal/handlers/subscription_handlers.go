package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bloommarket/internal/middleware"
	"bloommarket/internal/models"
)

// GetSubscriptionPlans lists the purchasable plans.
func (h *Handlers) GetSubscriptionPlans(c *gin.Context) {
	rows, err := h.DB.Query(`
		SELECT id, name, price, duration_days, max_products, features, is_active
		FROM subscription_plans WHERE is_active = TRUE
		ORDER BY price`)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить тарифы"})
		return
	}
	defer rows.Close()

	plans := []models.SubscriptionPlan{}
	for rows.Next() {
		var p models.SubscriptionPlan
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.DurationDays,
			&p.MaxProducts, &p.Features, &p.IsActive); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить тарифы"})
			return
		}
		plans = append(plans, p)
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// GetMySubscription returns the caller's shop subscription state.
func (h *Handlers) GetMySubscription(c *gin.Context) {
	userID := middleware.UserID(c)

	var shopID int64
	err := h.DB.QueryRow(`SELECT id FROM shops WHERE owner_id = ?`, userID).Scan(&shopID)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "Магазин не найден"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить подписку"})
		return
	}

	active, err := h.Subs.Active(shopID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить подписку"})
		return
	}
	if active == nil {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": true, "subscription": active})
}

type GrantSubscriptionInput struct {
	ShopID   int64  `json:"shopId" binding:"required"`
	PlanID   *int64 `json:"planId"`
	Infinite bool   `json:"infinite"`
	// EndDate overrides the plan duration when set (YYYY-MM-DD).
	EndDate *string `json:"endDate"`
}

// AdminGrantSubscription grants a subscription out-of-band (support cases,
// partner deals). Infinite grants run to 2099-12-31.
func (h *Handlers) AdminGrantSubscription(c *gin.Context) {
	var input GrantSubscriptionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var shopExists int
	if err := h.DB.QueryRow(
		`SELECT COUNT(*) FROM shops WHERE id = ?`, input.ShopID).Scan(&shopExists); err != nil || shopExists == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Магазин не найден"})
		return
	}

	plan, err := h.resolvePlan(input.PlanID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Тариф не найден"})
		return
	}

	var end time.Time
	switch {
	case input.Infinite:
		end = time.Date(2099, 12, 31, 23, 59, 59, 0, time.UTC)
	case input.EndDate != nil:
		end, err = time.Parse("2006-01-02", *input.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректная дата окончания"})
			return
		}
	default:
		end = time.Now().AddDate(0, 0, plan.DurationDays)
	}

	sub, err := h.Subs.GrantUntil(input.ShopID, plan.ID, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось выдать подписку"})
		return
	}
	middleware.RecordOperation("subscription_grant", true)
	c.JSON(http.StatusCreated, sub)
}

func (h *Handlers) resolvePlan(planID *int64) (*models.SubscriptionPlan, error) {
	if planID != nil {
		return h.Subs.PlanByID(*planID)
	}
	return h.Subs.DefaultPlan()
}
