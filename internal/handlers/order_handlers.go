package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bloommarket/internal/middleware"
	"bloommarket/internal/models"
	"bloommarket/internal/orders"
)

func orderErrorResponse(c *gin.Context, err error) {
	var rule *orders.RuleError
	switch {
	case errors.As(err, &rule):
		c.JSON(http.StatusBadRequest, gin.H{"error": rule.Message})
	case errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, orders.ErrShopNotFound),
		errors.Is(err, orders.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось обработать заказ"})
	}
}

// PlaceOrder creates an order from the request payload.
func (h *Handlers) PlaceOrder(c *gin.Context) {
	userID := middleware.UserID(c)

	var input orders.PlaceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.Orders.Place(c.Request.Context(), userID, input)
	if err != nil {
		middleware.RecordOperation("order_place", false)
		orderErrorResponse(c, err)
		return
	}
	middleware.RecordOperation("order_place", true)
	c.JSON(http.StatusCreated, order)
}

const orderColumns = `o.id, o.order_number, o.user_id, o.shop_id, o.status,
	o.subtotal, o.discount, o.promo_code, o.promo_discount, o.delivery_fee, o.total,
	o.delivery_address, o.delivery_type, o.delivery_date, o.delivery_time,
	o.recipient_name, o.recipient_phone, o.comment,
	o.payment_method, o.payment_status, o.created_at, o.updated_at`

func orderDests(o *models.Order) []interface{} {
	return []interface{}{
		&o.ID, &o.OrderNumber, &o.UserID, &o.ShopID, &o.Status,
		&o.Subtotal, &o.Discount, &o.PromoCode, &o.PromoDiscount, &o.DeliveryFee, &o.Total,
		&o.DeliveryAddress, &o.DeliveryType, &o.DeliveryDate, &o.DeliveryTime,
		&o.RecipientName, &o.RecipientPhone, &o.Comment,
		&o.PaymentMethod, &o.PaymentStatus, &o.CreatedAt, &o.UpdatedAt,
	}
}

func (h *Handlers) loadOrderItems(orderID int64) ([]models.OrderItem, error) {
	rows, err := h.DB.Query(`
		SELECT id, order_id, product_id, product_name, quantity, price, discount_price
		FROM order_items WHERE order_id = ?`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
			&it.Quantity, &it.Price, &it.DiscountPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetMyOrders lists the caller's orders, newest first.
func (h *Handlers) GetMyOrders(c *gin.Context) {
	userID := middleware.UserID(c)

	rows, err := h.DB.Query(`
		SELECT `+orderColumns+`, s.name
		FROM orders o JOIN shops s ON s.id = o.shop_id
		WHERE o.user_id = ?
		ORDER BY o.created_at DESC`, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить заказы"})
		return
	}
	defer rows.Close()

	list := []models.Order{}
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(append(orderDests(&o), &o.ShopName)...); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить заказы"})
			return
		}
		list = append(list, o)
	}
	c.JSON(http.StatusOK, gin.H{"orders": list, "count": len(list)})
}

// GetShopOrders lists orders of the caller's shop.
func (h *Handlers) GetShopOrders(c *gin.Context) {
	userID := middleware.UserID(c)

	var shopID int64
	err := h.DB.QueryRow(`SELECT id FROM shops WHERE owner_id = ?`, userID).Scan(&shopID)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "Магазин не найден"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить заказы"})
		return
	}

	rows, err := h.DB.Query(`
		SELECT `+orderColumns+`, s.name
		FROM orders o JOIN shops s ON s.id = o.shop_id
		WHERE o.shop_id = ?
		ORDER BY o.created_at DESC`, shopID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить заказы"})
		return
	}
	defer rows.Close()

	list := []models.Order{}
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(append(orderDests(&o), &o.ShopName)...); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить заказы"})
			return
		}
		list = append(list, o)
	}
	c.JSON(http.StatusOK, gin.H{"orders": list, "count": len(list)})
}

// GetOrder returns one order with its items. Visible to the buyer and the
// shop owner.
func (h *Handlers) GetOrder(c *gin.Context) {
	userID := middleware.UserID(c)

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный id заказа"})
		return
	}

	var o models.Order
	var ownerID int64
	row := h.DB.QueryRow(`
		SELECT `+orderColumns+`, s.name, s.owner_id
		FROM orders o JOIN shops s ON s.id = o.shop_id
		WHERE o.id = ?`, orderID)
	scanErr := row.Scan(append(orderDests(&o), &o.ShopName, &ownerID)...)
	if scanErr == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "Заказ не найден"})
		return
	}
	if scanErr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить заказ"})
		return
	}

	if o.UserID != userID && ownerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Это не ваш заказ"})
		return
	}

	items, err := h.loadOrderItems(o.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить заказ"})
		return
	}
	o.Items = items
	c.JSON(http.StatusOK, o)
}

type UpdateOrderStatusInput struct {
	Status string `json:"status" binding:"required,oneof=pending processing delivered cancelled"`
}

// UpdateOrderStatus advances the status machine. Only the shop owner (or
// an admin) may move an order.
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	userID := middleware.UserID(c)

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный id заказа"})
		return
	}

	var input UpdateOrderStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.Cfg.IsAdmin(middleware.TelegramID(c)) {
		var ownerID int64
		err := h.DB.QueryRow(`
			SELECT s.owner_id FROM orders o
			JOIN shops s ON s.id = o.shop_id
			WHERE o.id = ?`, orderID).Scan(&ownerID)
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Заказ не найден"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить заказ"})
			return
		}
		if ownerID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "Это не ваш заказ"})
			return
		}
	}

	order, err := h.Orders.UpdateStatus(orderID, input.Status)
	if err != nil {
		orderErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// CancelOrder lets the buyer cancel their own non-terminal order.
func (h *Handlers) CancelOrder(c *gin.Context) {
	userID := middleware.UserID(c)

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный id заказа"})
		return
	}

	order, err := h.Orders.Cancel(orderID, userID)
	if err != nil {
		orderErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
