package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"bloommarket/internal/middleware"
	"bloommarket/internal/models"
)

// GetFavorites lists the user's favorited products that are still visible
// in the catalog.
func (h *Handlers) GetFavorites(c *gin.Context) {
	userID := middleware.UserID(c)

	rows, err := h.DB.Query(`
		SELECT p.id, p.shop_id, p.category_id, p.name, p.description,
		       p.price, p.discount_price, p.discount_percent, p.quantity,
		       p.is_active, p.is_trending, p.views_count, p.sales_count,
		       p.created_at, p.updated_at,
		       s.name, s.average_rating, cat.name
		FROM favorites f
		JOIN products p ON p.id = f.product_id
		JOIN shops s ON s.id = p.shop_id
		JOIN categories cat ON cat.id = p.category_id
		WHERE f.user_id = ? AND `+strings.TrimSpace(visibleProductWhere)+`
		ORDER BY f.created_at DESC`, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить избранное"})
		return
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.ShopID, &p.CategoryID, &p.Name, &p.Description,
			&p.Price, &p.DiscountPrice, &p.DiscountPercent, &p.Quantity,
			&p.IsActive, &p.IsTrending, &p.ViewsCount, &p.SalesCount,
			&p.CreatedAt, &p.UpdatedAt,
			&p.ShopName, &p.ShopRating, &p.CategoryName); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить избранное"})
			return
		}
		p.IsFavorite = true
		products = append(products, p)
	}

	if err := h.attachMedia(products); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить избранное"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

// AddFavorite marks a product as favorited; repeats are no-ops.
func (h *Handlers) AddFavorite(c *gin.Context) {
	userID := middleware.UserID(c)

	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный id товара"})
		return
	}

	var exists int
	if err := h.DB.QueryRow(
		`SELECT COUNT(*) FROM products WHERE id = ?`, productID).Scan(&exists); err != nil || exists == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Товар не найден"})
		return
	}

	if _, err := h.DB.Exec(`
		INSERT IGNORE INTO favorites (user_id, product_id) VALUES (?, ?)`,
		userID, productID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось добавить в избранное"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Добавлено в избранное"})
}

// RemoveFavorite unmarks a product.
func (h *Handlers) RemoveFavorite(c *gin.Context) {
	userID := middleware.UserID(c)

	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный id товара"})
		return
	}

	if _, err := h.DB.Exec(
		`DELETE FROM favorites WHERE user_id = ? AND product_id = ?`,
		userID, productID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось удалить из избранного"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Удалено из избранного"})
}
