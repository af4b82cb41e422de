package orders

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bloommarket/internal/models"
	"bloommarket/internal/promo"
)

// Notifier delivers best-effort chat notifications. Implementations must
// swallow and log transport errors: a failed send never fails the order.
type Notifier interface {
	OrderPlaced(order *models.Order, buyer *models.User, shop *models.Shop, ownerTelegramID int64)
	OrderStatus(order *models.Order, buyerTelegramID int64)
}

// Engine places orders and drives the status machine.
type Engine struct {
	DB          *sql.DB
	DeliveryFee float64
	Notifier    Notifier
}

// New returns an Engine. notifier may be a no-op in tests.
func New(db *sql.DB, deliveryFee float64, notifier Notifier) *Engine {
	return &Engine{DB: db, DeliveryFee: deliveryFee, Notifier: notifier}
}

// ItemInput is one requested order line.
type ItemInput struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,gt=0"`
}

// PlaceInput carries everything needed to place an order.
type PlaceInput struct {
	ShopID          int64       `json:"shop_id" binding:"required"`
	Items           []ItemInput `json:"items" binding:"required,min=1,dive"`
	DeliveryType    string      `json:"delivery_type"`
	DeliveryAddress *string     `json:"delivery_address"`
	DeliveryDate    *string     `json:"delivery_date"`
	DeliveryTime    *string     `json:"delivery_time"`
	RecipientName   string      `json:"recipient_name" binding:"required"`
	RecipientPhone  string      `json:"recipient_phone" binding:"required"`
	Comment         *string     `json:"comment"`
	PromoCode       string      `json:"promo_code"`
	PaymentMethod   string      `json:"payment_method"`
}

// GenerateOrderNumber produces a user-visible order number of the form
// ORD-YYYYMMDDHHmmss-XXXXXX with a 6-hex suffix derived from a random UUID.
func GenerateOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return fmt.Sprintf("ORD-%s-%s", time.Now().Format("20060102150405"), suffix)
}

// lockedProduct is a product row loaded FOR UPDATE during placement.
type lockedProduct struct {
	ID            int64
	Name          string
	Price         float64
	DiscountPrice *float64
	Quantity      int
	Requested     int
}

func (p *lockedProduct) effectivePrice() decimal.Decimal {
	if p.DiscountPrice != nil {
		return decimal.NewFromFloat(*p.DiscountPrice)
	}
	return decimal.NewFromFloat(p.Price)
}

// Place reserves stock and records the order atomically. If N buyers race
// for the last unit, exactly one placement succeeds; the rest fail with the
// insufficient-stock rule error.
func (e *Engine) Place(ctx context.Context, userID int64, in PlaceInput) (*models.Order, error) {
	if in.DeliveryType == "" {
		in.DeliveryType = "delivery"
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = "cash"
	}

	tx, err := e.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// 1. Resolve the shop; inactive shops cannot take orders.
	var shop models.Shop
	err = tx.QueryRow(
		"SELECT id, owner_id, name, is_active FROM shops WHERE id = ?",
		in.ShopID,
	).Scan(&shop.ID, &shop.OwnerID, &shop.Name, &shop.IsActive)
	if err == sql.ErrNoRows {
		return nil, ErrShopNotFound
	}
	if err != nil {
		return nil, err
	}
	if !shop.IsActive {
		return nil, &RuleError{Message: "Магазин временно не принимает заказы"}
	}

	// 2. Load and lock each product, validating stock.
	products := make([]lockedProduct, 0, len(in.Items))
	for _, item := range in.Items {
		var p lockedProduct
		err := tx.QueryRow(
			`SELECT id, name, price, discount_price, quantity
			 FROM products
			 WHERE id = ? AND shop_id = ? AND is_active = TRUE
			 FOR UPDATE`,
			item.ProductID, in.ShopID,
		).Scan(&p.ID, &p.Name, &p.Price, &p.DiscountPrice, &p.Quantity)
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		if err != nil {
			return nil, err
		}
		if p.Quantity < item.Quantity {
			return nil, ruleErrorf("Недостаточно товара «%s». Доступно: %d, требуется: %d",
				p.Name, p.Quantity, item.Quantity)
		}
		p.Requested = item.Quantity
		products = append(products, p)
	}

	// 3. Totals: subtotal on effective prices, discount = list-vs-discount
	// savings (legacy informational column).
	subtotal := decimal.Zero
	discount := decimal.Zero
	for _, p := range products {
		qty := decimal.NewFromInt(int64(p.Requested))
		subtotal = subtotal.Add(p.effectivePrice().Mul(qty))
		if p.DiscountPrice != nil {
			saving := decimal.NewFromFloat(p.Price).Sub(decimal.NewFromFloat(*p.DiscountPrice))
			discount = discount.Add(saving.Mul(qty))
		}
	}

	deliveryFee := decimal.NewFromFloat(e.DeliveryFee)
	if in.DeliveryType == "pickup" {
		deliveryFee = decimal.Zero
	}
	promoDiscount := decimal.Zero

	// 4. Promo application. Validation failures surface as rule errors.
	var appliedPromo *models.Promo
	var promoCode *string
	if code := strings.TrimSpace(in.PromoCode); code != "" {
		var orderCount int
		if err := tx.QueryRow("SELECT COUNT(*) FROM orders WHERE user_id = ?", userID).Scan(&orderCount); err != nil {
			return nil, err
		}
		subFloat, _ := subtotal.Float64()
		res, err := promo.Validate(e.DB, promo.Input{
			Code:         code,
			ShopID:       in.ShopID,
			Subtotal:     subFloat,
			IsFirstOrder: orderCount == 0,
			UserID:       userID,
		})
		if err != nil {
			return nil, err
		}
		if !res.Valid {
			return nil, &RuleError{Message: res.Message}
		}
		appliedPromo = res.Promo
		normalized := strings.ToUpper(code)
		promoCode = &normalized

		switch res.DiscountType {
		case models.PromoFreeDelivery:
			deliveryFee = decimal.Zero
		default:
			promoDiscount = decimal.NewFromFloat(res.DiscountAmount)
		}
	}

	// 5. total = subtotal − promo_discount + delivery_fee.
	total := subtotal.Sub(promoDiscount).Add(deliveryFee).Round(2)

	subF, _ := subtotal.Round(2).Float64()
	discF, _ := discount.Round(2).Float64()
	promoF, _ := promoDiscount.Round(2).Float64()
	feeF, _ := deliveryFee.Round(2).Float64()
	totalF, _ := total.Float64()

	order := &models.Order{
		OrderNumber:     GenerateOrderNumber(),
		UserID:          userID,
		ShopID:          in.ShopID,
		Status:          models.OrderPending,
		Subtotal:        subF,
		Discount:        discF,
		PromoCode:       promoCode,
		PromoDiscount:   promoF,
		DeliveryFee:     feeF,
		Total:           totalF,
		DeliveryAddress: in.DeliveryAddress,
		DeliveryType:    in.DeliveryType,
		DeliveryDate:    in.DeliveryDate,
		DeliveryTime:    in.DeliveryTime,
		RecipientName:   in.RecipientName,
		RecipientPhone:  in.RecipientPhone,
		Comment:         in.Comment,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   models.PaymentPending,
		ShopName:        shop.Name,
	}

	result, err := tx.Exec(
		`INSERT INTO orders (order_number, user_id, shop_id, status, subtotal, discount,
		                     promo_code, promo_discount, delivery_fee, total,
		                     delivery_address, delivery_type, delivery_date, delivery_time,
		                     recipient_name, recipient_phone, comment, payment_method, payment_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.OrderNumber, order.UserID, order.ShopID, order.Status, order.Subtotal, order.Discount,
		order.PromoCode, order.PromoDiscount, order.DeliveryFee, order.Total,
		order.DeliveryAddress, order.DeliveryType, order.DeliveryDate, order.DeliveryTime,
		order.RecipientName, order.RecipientPhone, order.Comment, order.PaymentMethod, order.PaymentStatus,
	)
	if err != nil {
		return nil, err
	}
	order.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}

	// 6. Snapshot lines and reserve stock.
	for _, p := range products {
		if _, err := tx.Exec(
			`INSERT INTO order_items (order_id, product_id, product_name, quantity, price, discount_price)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			order.ID, p.ID, p.Name, p.Requested, p.Price, p.DiscountPrice,
		); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(
			"UPDATE products SET quantity = quantity - ?, sales_count = sales_count + ? WHERE id = ?",
			p.Requested, p.Requested, p.ID,
		); err != nil {
			return nil, err
		}
		pid := p.ID
		order.Items = append(order.Items, models.OrderItem{
			OrderID:       order.ID,
			ProductID:     &pid,
			ProductName:   p.Name,
			Quantity:      p.Requested,
			Price:         p.Price,
			DiscountPrice: p.DiscountPrice,
		})
	}

	// 7. The code is consumed only by a real placement.
	if appliedPromo != nil {
		if err := promo.IncrementUsage(tx, appliedPromo.ID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	// 8. Remove ordered products from the cart. Failures here are logged:
	// the order is already committed.
	if err := e.clearCartLines(userID, products); err != nil {
		log.Printf("Failed to clear cart after order %s: %v", order.OrderNumber, err)
	}

	// 9. Fire-and-forget notifications.
	e.notifyPlaced(order, &shop)

	return order, nil
}

func (e *Engine) clearCartLines(userID int64, products []lockedProduct) error {
	if len(products) == 0 {
		return nil
	}
	placeholders := make([]string, len(products))
	args := make([]interface{}, 0, len(products)+1)
	args = append(args, userID)
	for i, p := range products {
		placeholders[i] = "?"
		args = append(args, p.ID)
	}
	query := fmt.Sprintf(
		"DELETE FROM cart_items WHERE user_id = ? AND product_id IN (%s)",
		strings.Join(placeholders, ", "),
	)
	_, err := e.DB.Exec(query, args...)
	return err
}

func (e *Engine) notifyPlaced(order *models.Order, shop *models.Shop) {
	if e.Notifier == nil {
		return
	}

	var buyer models.User
	err := e.DB.QueryRow(
		"SELECT id, telegram_id, first_name, last_name, username, phone FROM users WHERE id = ?",
		order.UserID,
	).Scan(&buyer.ID, &buyer.TelegramID, &buyer.FirstName, &buyer.LastName, &buyer.Username, &buyer.Phone)
	if err != nil {
		log.Printf("Order notification skipped, buyer lookup failed: %v", err)
		return
	}

	var ownerTelegramID int64
	if err := e.DB.QueryRow(
		"SELECT telegram_id FROM users WHERE id = ?", shop.OwnerID,
	).Scan(&ownerTelegramID); err != nil {
		log.Printf("Order notification: owner lookup failed: %v", err)
	}

	go e.Notifier.OrderPlaced(order, &buyer, shop, ownerTelegramID)
}

// validTransitions is the full status machine.
var validTransitions = map[string][]string{
	models.OrderPending:    {models.OrderProcessing, models.OrderCancelled},
	models.OrderProcessing: {models.OrderDelivered, models.OrderCancelled},
}

func transitionAllowed(from, to string) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// UpdateStatus moves an order through the state machine and notifies the
// buyer. delivered and cancelled are terminal; invalid transitions fail
// with a descriptive rule error. Cancellation returns items to stock.
func (e *Engine) UpdateStatus(orderID int64, newStatus string) (*models.Order, error) {
	switch newStatus {
	case models.OrderProcessing, models.OrderDelivered, models.OrderCancelled:
	default:
		return nil, ruleErrorf("Неизвестный статус заказа: %s", newStatus)
	}

	tx, err := e.DB.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := e.loadForUpdate(tx, orderID)
	if err != nil {
		return nil, err
	}

	if !transitionAllowed(order.Status, newStatus) {
		return nil, ruleErrorf("Невозможно изменить статус заказа с «%s» на «%s»", order.Status, newStatus)
	}

	if newStatus == models.OrderCancelled {
		if err := restoreStock(tx, orderID); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(
		"UPDATE orders SET status = ?, updated_at = NOW() WHERE id = ?",
		newStatus, orderID,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	order.Status = newStatus
	e.notifyStatus(order)
	return order, nil
}

// Cancel is the customer-facing cancellation: it verifies ownership before
// running the shared transition.
func (e *Engine) Cancel(orderID, userID int64) (*models.Order, error) {
	var ownerID int64
	err := e.DB.QueryRow("SELECT user_id FROM orders WHERE id = ?", orderID).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if ownerID != userID {
		return nil, ErrOrderNotFound
	}
	return e.UpdateStatus(orderID, models.OrderCancelled)
}

func (e *Engine) loadForUpdate(tx *sql.Tx, orderID int64) (*models.Order, error) {
	var o models.Order
	err := tx.QueryRow(
		`SELECT id, order_number, user_id, shop_id, status, total FROM orders WHERE id = ? FOR UPDATE`,
		orderID,
	).Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.ShopID, &o.Status, &o.Total)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// restoreStock undoes the placement-time inventory adjustments for every
// line that still references a live product.
func restoreStock(tx *sql.Tx, orderID int64) error {
	rows, err := tx.Query(
		"SELECT product_id, quantity FROM order_items WHERE order_id = ? AND product_id IS NOT NULL",
		orderID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	type line struct {
		productID int64
		quantity  int
	}
	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.productID, &l.quantity); err != nil {
			return err
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, l := range lines {
		if _, err := tx.Exec(
			"UPDATE products SET quantity = quantity + ?, sales_count = sales_count - ? WHERE id = ?",
			l.quantity, l.quantity, l.productID,
		); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) notifyStatus(order *models.Order) {
	if e.Notifier == nil {
		return
	}
	var buyerTelegramID int64
	if err := e.DB.QueryRow(
		"SELECT telegram_id FROM users WHERE id = ?", order.UserID,
	).Scan(&buyerTelegramID); err != nil {
		log.Printf("Status notification skipped, buyer lookup failed: %v", err)
		return
	}
	go e.Notifier.OrderStatus(order, buyerTelegramID)
}
