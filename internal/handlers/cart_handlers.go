package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bloommarket/internal/middleware"
)

type cartLine struct {
	ID        int64 `json:"id"`
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`

	Name          string   `json:"name"`
	Price         float64  `json:"price"`
	DiscountPrice *float64 `json:"discountPrice,omitempty"`
	Stock         int      `json:"stock"`
	Available     bool     `json:"available"`
	PrimaryImage  *string  `json:"primaryImage,omitempty"`

	ShopID   int64  `json:"shopId"`
	ShopName string `json:"shopName"`
}

func (l *cartLine) effectivePrice() float64 {
	if l.DiscountPrice != nil {
		return *l.DiscountPrice
	}
	return l.Price
}

func (h *Handlers) loadCart(userID int64) ([]cartLine, error) {
	rows, err := h.DB.Query(`
		SELECT ci.id, ci.product_id, ci.quantity,
		       p.name, p.price, p.discount_price, p.quantity,
		       (p.is_active AND p.quantity >= ci.quantity AND s.is_active) AS available,
		       (SELECT pm.url FROM product_media pm
		        WHERE pm.product_id = p.id AND pm.media_type = 'photo'
		        ORDER BY pm.is_primary DESC, pm.sort_order LIMIT 1),
		       s.id, s.name
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		JOIN shops s ON s.id = p.shop_id
		WHERE ci.user_id = ?
		ORDER BY s.id, ci.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []cartLine{}
	for rows.Next() {
		var l cartLine
		if err := rows.Scan(&l.ID, &l.ProductID, &l.Quantity,
			&l.Name, &l.Price, &l.DiscountPrice, &l.Stock, &l.Available,
			&l.PrimaryImage, &l.ShopID, &l.ShopName); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// GetCart lists the cart grouped by shop, with per-line availability.
func (h *Handlers) GetCart(c *gin.Context) {
	lines, err := h.loadCart(middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить корзину"})
		return
	}

	type shopGroup struct {
		ShopID   int64      `json:"shopId"`
		ShopName string     `json:"shopName"`
		Items    []cartLine `json:"items"`
	}
	groups := []shopGroup{}
	for _, l := range lines {
		if len(groups) == 0 || groups[len(groups)-1].ShopID != l.ShopID {
			groups = append(groups, shopGroup{ShopID: l.ShopID, ShopName: l.ShopName})
		}
		g := &groups[len(groups)-1]
		g.Items = append(g.Items, l)
	}

	c.JSON(http.StatusOK, gin.H{"shops": groups, "count": len(lines)})
}

// GetCartSummary returns the checkout preview totals over effective prices.
func (h *Handlers) GetCartSummary(c *gin.Context) {
	lines, err := h.loadCart(middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить корзину"})
		return
	}

	totalItems := 0
	totalAmount := 0.0
	discount := 0.0
	shops := map[int64]bool{}
	for _, l := range lines {
		totalItems += l.Quantity
		totalAmount += l.effectivePrice() * float64(l.Quantity)
		if l.DiscountPrice != nil {
			discount += (l.Price - *l.DiscountPrice) * float64(l.Quantity)
		}
		shops[l.ShopID] = true
	}

	c.JSON(http.StatusOK, gin.H{
		"total_items":  totalItems,
		"total_amount": totalAmount,
		"discount":     discount,
		"shops_count":  len(shops),
	})
}

type AddToCartInput struct {
	ProductID int64 `json:"productId" binding:"required"`
	Quantity  int   `json:"quantity" binding:"omitempty,gte=1"`
}

// AddToCart inserts or merges a cart line, capping the merged quantity at
// the available stock.
func (h *Handlers) AddToCart(c *gin.Context) {
	userID := middleware.UserID(c)

	var input AddToCartInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Quantity == 0 {
		input.Quantity = 1
	}

	var stock int
	var productActive, shopActive bool
	err := h.DB.QueryRow(`
		SELECT p.quantity, p.is_active, s.is_active
		FROM products p JOIN shops s ON s.id = p.shop_id
		WHERE p.id = ?`, input.ProductID).Scan(&stock, &productActive, &shopActive)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "Товар не найден"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось добавить в корзину"})
		return
	}
	if !productActive || !shopActive {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Товар недоступен для заказа"})
		return
	}
	if stock < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Товара нет в наличии"})
		return
	}

	var existingID int64
	var existingQty int
	err = h.DB.QueryRow(`
		SELECT id, quantity FROM cart_items WHERE user_id = ? AND product_id = ?`,
		userID, input.ProductID).Scan(&existingID, &existingQty)
	switch {
	case err == sql.ErrNoRows:
		qty := input.Quantity
		if qty > stock {
			qty = stock
		}
		if _, err := h.DB.Exec(`
			INSERT INTO cart_items (user_id, product_id, quantity)
			VALUES (?, ?, ?)`, userID, input.ProductID, qty); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось добавить в корзину"})
			return
		}
	case err == nil:
		qty := existingQty + input.Quantity
		if qty > stock {
			qty = stock
		}
		if _, err := h.DB.Exec(
			`UPDATE cart_items SET quantity = ? WHERE id = ?`, qty, existingID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось добавить в корзину"})
			return
		}
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось добавить в корзину"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Товар добавлен в корзину"})
}

type UpdateCartItemInput struct {
	Quantity int `json:"quantity" binding:"required,gte=1"`
}

// UpdateCartItem sets the exact quantity of a cart line, rejecting amounts
// the shop cannot fulfill.
func (h *Handlers) UpdateCartItem(c *gin.Context) {
	userID := middleware.UserID(c)

	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный id позиции"})
		return
	}

	var input UpdateCartItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var stock int
	var name string
	var productActive bool
	err = h.DB.QueryRow(`
		SELECT p.quantity, p.name, p.is_active
		FROM cart_items ci JOIN products p ON p.id = ci.product_id
		WHERE ci.id = ? AND ci.user_id = ?`, itemID, userID).
		Scan(&stock, &name, &productActive)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "Позиция не найдена"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось обновить корзину"})
		return
	}
	if !productActive {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Товар недоступен для заказа"})
		return
	}
	if input.Quantity > stock {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Недостаточно товара «%s». Доступно: %d, требуется: %d",
				name, stock, input.Quantity),
		})
		return
	}

	if _, err := h.DB.Exec(
		`UPDATE cart_items SET quantity = ? WHERE id = ? AND user_id = ?`,
		input.Quantity, itemID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось обновить корзину"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Корзина обновлена"})
}

// RemoveCartItem deletes one cart line.
func (h *Handlers) RemoveCartItem(c *gin.Context) {
	userID := middleware.UserID(c)

	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный id позиции"})
		return
	}

	res, err := h.DB.Exec(
		`DELETE FROM cart_items WHERE id = ? AND user_id = ?`, itemID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось удалить позицию"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Позиция не найдена"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Позиция удалена"})
}

// ClearCart empties the user's cart.
func (h *Handlers) ClearCart(c *gin.Context) {
	if _, err := h.DB.Exec(
		`DELETE FROM cart_items WHERE user_id = ?`, middleware.UserID(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось очистить корзину"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Корзина очищена"})
}
