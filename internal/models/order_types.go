package models

import "time"

// Order statuses. An order goes pending, processing, delivered; cancelled
// is reachable from pending or processing only. delivered and cancelled are
// terminal.
const (
	OrderPending    = "pending"
	OrderProcessing = "processing"
	OrderDelivered  = "delivered"
	OrderCancelled  = "cancelled"
)

// Payment statuses.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
)

// Order is the model for the 'orders' table.
// Invariant: Total = Subtotal − PromoDiscount + DeliveryFee.
type Order struct {
	ID          int64  `json:"id" db:"id"`
	OrderNumber string `json:"orderNumber" db:"order_number"`
	UserID      int64  `json:"userId" db:"user_id"`
	ShopID      int64  `json:"shopId" db:"shop_id"`
	Status      string `json:"status" db:"status"`

	Subtotal      float64 `json:"subtotal" db:"subtotal"`
	Discount      float64 `json:"discount" db:"discount"`
	PromoCode     *string `json:"promoCode,omitempty" db:"promo_code"`
	PromoDiscount float64 `json:"promoDiscount" db:"promo_discount"`
	DeliveryFee   float64 `json:"deliveryFee" db:"delivery_fee"`
	Total         float64 `json:"total" db:"total"`

	DeliveryAddress *string `json:"deliveryAddress,omitempty" db:"delivery_address"`
	DeliveryType    string  `json:"deliveryType" db:"delivery_type"`
	DeliveryDate    *string `json:"deliveryDate,omitempty" db:"delivery_date"`
	DeliveryTime    *string `json:"deliveryTime,omitempty" db:"delivery_time"`
	RecipientName   string  `json:"recipientName" db:"recipient_name"`
	RecipientPhone  string  `json:"recipientPhone" db:"recipient_phone"`
	Comment         *string `json:"comment,omitempty" db:"comment"`

	PaymentMethod string `json:"paymentMethod" db:"payment_method"`
	PaymentStatus string `json:"paymentStatus" db:"payment_status"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	// Joins (populated manually)
	ShopName string      `json:"shopName,omitempty" db:"-"`
	Items    []OrderItem `json:"items,omitempty" db:"-"`
}

// OrderItem is the model for the 'order_items' table. Name and prices are
// captured at placement time so order history survives product deletion;
// ProductID goes NULL when the source product is removed.
type OrderItem struct {
	ID            int64    `json:"id" db:"id"`
	OrderID       int64    `json:"orderId" db:"order_id"`
	ProductID     *int64   `json:"productId,omitempty" db:"product_id"`
	ProductName   string   `json:"productName" db:"product_name"`
	Quantity      int      `json:"quantity" db:"quantity"`
	Price         float64  `json:"price" db:"price"`
	DiscountPrice *float64 `json:"discountPrice,omitempty" db:"discount_price"`
}

// LineTotal uses the captured discount price when present.
func (i *OrderItem) LineTotal() float64 {
	price := i.Price
	if i.DiscountPrice != nil {
		price = *i.DiscountPrice
	}
	return price * float64(i.Quantity)
}
