package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bloommarket/internal/middleware"
	"bloommarket/internal/models"
	"bloommarket/internal/promo"
)

type ValidatePromoInput struct {
	Code     string  `json:"code" binding:"required"`
	ShopID   int64   `json:"shopId" binding:"required"`
	Subtotal float64 `json:"subtotal" binding:"gte=0"`
}

// ValidatePromo dry-runs the promo rule chain for checkout previews.
// Usage count is untouched; only real placement burns a use.
func (h *Handlers) ValidatePromo(c *gin.Context) {
	userID := middleware.UserID(c)

	var input ValidatePromoInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var orderCount int
	if err := h.DB.QueryRow(
		`SELECT COUNT(*) FROM orders WHERE user_id = ?`, userID).Scan(&orderCount); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось проверить промокод"})
		return
	}

	result, err := promo.Validate(h.DB, promo.Input{
		Code:         input.Code,
		ShopID:       input.ShopID,
		Subtotal:     input.Subtotal,
		IsFirstOrder: orderCount == 0,
		UserID:       userID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось проверить промокод"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// AdminListPromos returns every promo, active or not.
func (h *Handlers) AdminListPromos(c *gin.Context) {
	rows, err := h.DB.Query(`
		SELECT id, code, promo_type, value, min_order_amount, valid_from, valid_until,
		       shop_id, use_once, first_order_only, max_uses, usage_count, is_active, created_at
		FROM promos ORDER BY created_at DESC`)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить промокоды"})
		return
	}
	defer rows.Close()

	promos := []models.Promo{}
	for rows.Next() {
		var p models.Promo
		if err := rows.Scan(&p.ID, &p.Code, &p.PromoType, &p.Value, &p.MinOrderAmount,
			&p.ValidFrom, &p.ValidUntil, &p.ShopID, &p.UseOnce, &p.FirstOrderOnly,
			&p.MaxUses, &p.UsageCount, &p.IsActive, &p.CreatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить промокоды"})
			return
		}
		promos = append(promos, p)
	}
	c.JSON(http.StatusOK, gin.H{"promos": promos})
}

type CreatePromoInput struct {
	Code           string   `json:"code" binding:"required,min=3"`
	PromoType      string   `json:"promoType" binding:"required,oneof=percent fixed free_delivery"`
	Value          float64  `json:"value" binding:"gte=0"`
	MinOrderAmount *float64 `json:"minOrderAmount" binding:"omitempty,gte=0"`
	ValidFrom      *string  `json:"validFrom"`
	ValidUntil     *string  `json:"validUntil"`
	ShopID         *int64   `json:"shopId"`
	UseOnce        bool     `json:"useOnce"`
	FirstOrderOnly bool     `json:"firstOrderOnly"`
	MaxUses        *int     `json:"maxUses" binding:"omitempty,gt=0"`
}

// AdminCreatePromo creates a promo over HTTP (the bot wizard is the other
// entry point). Codes are stored upper-cased; the legacy discount columns
// stay in sync.
func (h *Handlers) AdminCreatePromo(c *gin.Context) {
	var input CreatePromoInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.PromoType == models.PromoPercent && (input.Value <= 0 || input.Value > 100) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Процент скидки должен быть в диапазоне 1–100"})
		return
	}
	if input.PromoType == models.PromoFixed && input.Value <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Размер скидки должен быть больше нуля"})
		return
	}

	code := strings.ToUpper(strings.TrimSpace(input.Code))

	parseDate := func(raw *string) (*time.Time, bool) {
		if raw == nil {
			return nil, true
		}
		t, err := time.Parse("2006-01-02", *raw)
		if err != nil {
			return nil, false
		}
		return &t, true
	}
	validFrom, ok := parseDate(input.ValidFrom)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректная дата начала"})
		return
	}
	validUntil, ok := parseDate(input.ValidUntil)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректная дата окончания"})
		return
	}

	res, err := h.DB.Exec(`
		INSERT INTO promos
			(code, promo_type, value, discount_type, discount_value, min_order_amount,
			 valid_from, valid_until, shop_id, use_once, first_order_only, max_uses, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, TRUE)`,
		code, input.PromoType, input.Value, input.PromoType, input.Value,
		input.MinOrderAmount, validFrom, validUntil, input.ShopID,
		input.UseOnce, input.FirstOrderOnly, input.MaxUses)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Не удалось создать промокод (возможно, код уже существует)"})
		return
	}
	id, _ := res.LastInsertId()
	c.JSON(http.StatusCreated, gin.H{"id": id, "code": code})
}

// AdminDeactivatePromo soft-deactivates a promo; history referencing the
// code stays intact.
func (h *Handlers) AdminDeactivatePromo(c *gin.Context) {
	promoID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный id промокода"})
		return
	}

	res, err := h.DB.Exec(`UPDATE promos SET is_active = FALSE WHERE id = ?`, promoID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось деактивировать промокод"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Промокод не найден"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Промокод деактивирован"})
}
