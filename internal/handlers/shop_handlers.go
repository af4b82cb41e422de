package handlers

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bloommarket/internal/middleware"
	"bloommarket/internal/models"
)

func scanShop(row *sql.Row, s *models.Shop) error {
	return row.Scan(&s.ID, &s.OwnerID, &s.Name, &s.Description, &s.Address,
		&s.City, &s.Phone, &s.Email, &s.PhotoURL, &s.Latitude, &s.Longitude,
		&s.IsActive, &s.IsVerified, &s.AverageRating, &s.TotalReviews,
		&s.CreatedAt, &s.UpdatedAt)
}

const shopColumns = `id, owner_id, name, description, address, city, phone, email,
	photo_url, latitude, longitude, is_active, is_verified, average_rating,
	total_reviews, created_at, updated_at`

// GetMyShop returns the authenticated owner's shop with its subscription
// flag and product count.
func (h *Handlers) GetMyShop(c *gin.Context) {
	userID := middleware.UserID(c)

	var s models.Shop
	err := scanShop(h.DB.QueryRow(
		`SELECT `+shopColumns+` FROM shops WHERE owner_id = ?`, userID), &s)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "Магазин не найден"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить магазин"})
		return
	}

	if active, err := h.Subs.HasActive(s.ID); err == nil {
		s.HasActiveSubscription = active
	}
	if err := h.DB.QueryRow(
		`SELECT COUNT(*) FROM products WHERE shop_id = ?`, s.ID).Scan(&s.ProductsCount); err != nil {
		s.ProductsCount = 0
	}

	c.JSON(http.StatusOK, s)
}

// GetMyShopStatistics aggregates order, product and revenue counters for
// the owner dashboard.
func (h *Handlers) GetMyShopStatistics(c *gin.Context) {
	userID := middleware.UserID(c)

	var shopID int64
	err := h.DB.QueryRow(`SELECT id FROM shops WHERE owner_id = ?`, userID).Scan(&shopID)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "Магазин не найден"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить магазин"})
		return
	}

	stats := gin.H{}

	var totalOrders, pendingOrders, deliveredOrders int
	var revenue float64
	err = h.DB.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(status = 'pending'), 0),
		       COALESCE(SUM(status = 'delivered'), 0),
		       COALESCE(SUM(CASE WHEN status = 'delivered' THEN total ELSE 0 END), 0)
		FROM orders WHERE shop_id = ?`, shopID).
		Scan(&totalOrders, &pendingOrders, &deliveredOrders, &revenue)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось посчитать статистику"})
		return
	}
	stats["totalOrders"] = totalOrders
	stats["pendingOrders"] = pendingOrders
	stats["deliveredOrders"] = deliveredOrders
	stats["revenue"] = revenue

	var totalProducts, activeProducts int
	var totalViews, totalSales int
	err = h.DB.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(is_active), 0),
		       COALESCE(SUM(views_count), 0),
		       COALESCE(SUM(sales_count), 0)
		FROM products WHERE shop_id = ?`, shopID).
		Scan(&totalProducts, &activeProducts, &totalViews, &totalSales)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось посчитать статистику"})
		return
	}
	stats["totalProducts"] = totalProducts
	stats["activeProducts"] = activeProducts
	stats["totalViews"] = totalViews
	stats["totalSales"] = totalSales

	var rating float64
	var reviews int
	if err := h.DB.QueryRow(
		`SELECT average_rating, total_reviews FROM shops WHERE id = ?`, shopID).
		Scan(&rating, &reviews); err == nil {
		stats["averageRating"] = rating
		stats["totalReviews"] = reviews
	}

	c.JSON(http.StatusOK, stats)
}

// GetShop is the public shop page: the shop row plus its visible products.
func (h *Handlers) GetShop(c *gin.Context) {
	shopID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный id магазина"})
		return
	}

	var s models.Shop
	err = scanShop(h.DB.QueryRow(
		`SELECT `+shopColumns+` FROM shops WHERE id = ?`, shopID), &s)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "Магазин не найден"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить магазин"})
		return
	}

	if active, err := h.Subs.HasActive(s.ID); err == nil {
		s.HasActiveSubscription = active
	}

	products, err := h.listVisibleProducts(c, productFilters{ShopID: &shopID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить товары"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"shop": s, "products": products})
}

type UpdateMyShopInput struct {
	Description *string  `json:"description"`
	Address     *string  `json:"address"`
	City        *string  `json:"city"`
	Phone       *string  `json:"phone"`
	Email       *string  `json:"email"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// UpdateMyShop applies a partial update to the owner's shop profile. The
// name is fixed at moderation time and not editable here.
func (h *Handlers) UpdateMyShop(c *gin.Context) {
	userID := middleware.UserID(c)

	var input UpdateMyShopInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	set := []string{}
	args := []interface{}{}
	appendSet := func(col string, v interface{}) {
		set = append(set, col+" = ?")
		args = append(args, v)
	}
	if input.Description != nil {
		appendSet("description", *input.Description)
	}
	if input.Address != nil {
		appendSet("address", *input.Address)
	}
	if input.City != nil {
		appendSet("city", *input.City)
	}
	if input.Phone != nil {
		appendSet("phone", *input.Phone)
	}
	if input.Email != nil {
		appendSet("email", *input.Email)
	}
	if input.Latitude != nil {
		appendSet("latitude", *input.Latitude)
	}
	if input.Longitude != nil {
		appendSet("longitude", *input.Longitude)
	}
	if len(set) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Нет полей для обновления"})
		return
	}

	query := "UPDATE shops SET " + joinSet(set) + " WHERE owner_id = ?"
	args = append(args, userID)
	res, err := h.DB.Exec(query, args...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось обновить магазин"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Магазин не найден"})
		return
	}
	h.GetMyShop(c)
}

// UploadMyShopPhoto replaces the shop photo from a multipart upload.
func (h *Handlers) UploadMyShopPhoto(c *gin.Context) {
	userID := middleware.UserID(c)

	var shopID int64
	err := h.DB.QueryRow(`SELECT id FROM shops WHERE owner_id = ?`, userID).Scan(&shopID)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "Магазин не найден"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить магазин"})
		return
	}

	data, filename, contentType, ok := readUpload(c, "photo")
	if !ok {
		return
	}

	url, err := h.Media.SaveShopPhoto(shopID, data, filename, contentType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := h.DB.Exec(`UPDATE shops SET photo_url = ? WHERE id = ?`, url, shopID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось сохранить фото"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"photoUrl": url})
}
