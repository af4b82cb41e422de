package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bloommarket/internal/middleware"
	"bloommarket/internal/models"
)

// GetShopReviews lists a shop's reviews, newest first.
func (h *Handlers) GetShopReviews(c *gin.Context) {
	shopID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный id магазина"})
		return
	}

	rows, err := h.DB.Query(`
		SELECT r.id, r.shop_id, r.user_id, r.order_id, r.rating, r.comment, r.is_verified, r.created_at,
		       u.first_name
		FROM shop_reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.shop_id = ?
		ORDER BY r.created_at DESC`, shopID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить отзывы"})
		return
	}
	defer rows.Close()

	reviews := []models.ShopReview{}
	for rows.Next() {
		var r models.ShopReview
		if err := rows.Scan(&r.ID, &r.ShopID, &r.UserID, &r.OrderID, &r.Rating,
			&r.Comment, &r.IsVerified, &r.CreatedAt, &r.UserName); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить отзывы"})
			return
		}
		reviews = append(reviews, r)
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews, "count": len(reviews)})
}

type CreateReviewInput struct {
	Rating  int     `json:"rating" binding:"required,min=1,max=5"`
	Comment *string `json:"comment"`
	OrderID *int64  `json:"orderId"`
}

// CreateReview posts a review for a shop: one per user, verified when a
// delivered order backs it.
func (h *Handlers) CreateReview(c *gin.Context) {
	userID := middleware.UserID(c)

	shopID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный id магазина"})
		return
	}

	var input CreateReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var shopExists int
	if err := h.DB.QueryRow(
		`SELECT COUNT(*) FROM shops WHERE id = ?`, shopID).Scan(&shopExists); err != nil || shopExists == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Магазин не найден"})
		return
	}

	var already int
	if err := h.DB.QueryRow(
		`SELECT COUNT(*) FROM shop_reviews WHERE shop_id = ? AND user_id = ?`,
		shopID, userID).Scan(&already); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось сохранить отзыв"})
		return
	}
	if already > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Вы уже оставили отзыв этому магазину"})
		return
	}

	var verified bool
	if input.OrderID != nil {
		if err := h.DB.QueryRow(`
			SELECT COUNT(*) > 0 FROM orders
			WHERE id = ? AND user_id = ? AND shop_id = ? AND status = 'delivered'`,
			*input.OrderID, userID, shopID).Scan(&verified); err != nil {
			verified = false
		}
	}

	res, err := h.DB.Exec(`
		INSERT INTO shop_reviews (shop_id, user_id, order_id, rating, comment, is_verified)
		VALUES (?, ?, ?, ?, ?, ?)`,
		shopID, userID, input.OrderID, input.Rating, input.Comment, verified)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось сохранить отзыв"})
		return
	}

	if _, err := h.DB.Exec(`
		UPDATE shops SET
			average_rating = COALESCE((SELECT AVG(rating) FROM shop_reviews WHERE shop_id = ?), 0),
			total_reviews = (SELECT COUNT(*) FROM shop_reviews WHERE shop_id = ?)
		WHERE id = ?`, shopID, shopID, shopID); err != nil {
		// Denormalized columns catch up on the next recompute.
		log.Printf("Shop rating recompute failed for shop %d: %v", shopID, err)
	}

	id, _ := res.LastInsertId()
	c.JSON(http.StatusCreated, gin.H{"id": id, "isVerified": verified})
}
