package orders

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloommarket/internal/models"
)

func newMock(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, 500, nil), mock
}

func TestGenerateOrderNumberFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^ORD-\d{14}-[0-9A-F]{6}$`)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n := GenerateOrderNumber()
		assert.Regexp(t, pattern, n)
		seen[n] = true
	}
	// Random suffixes keep numbers generated in the same second unique.
	assert.Greater(t, len(seen), 90)
}

func TestTransitionMatrix(t *testing.T) {
	allowed := []struct{ from, to string }{
		{models.OrderPending, models.OrderProcessing},
		{models.OrderPending, models.OrderCancelled},
		{models.OrderProcessing, models.OrderDelivered},
		{models.OrderProcessing, models.OrderCancelled},
	}
	for _, tt := range allowed {
		assert.True(t, transitionAllowed(tt.from, tt.to), "%s to %s", tt.from, tt.to)
	}

	forbidden := []struct{ from, to string }{
		{models.OrderPending, models.OrderDelivered},
		{models.OrderDelivered, models.OrderCancelled},
		{models.OrderDelivered, models.OrderProcessing},
		{models.OrderCancelled, models.OrderPending},
		{models.OrderCancelled, models.OrderProcessing},
	}
	for _, tt := range forbidden {
		assert.False(t, transitionAllowed(tt.from, tt.to), "%s to %s", tt.from, tt.to)
	}
}

func TestPlaceInsufficientStock(t *testing.T) {
	e, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, owner_id, name, is_active FROM shops WHERE id = \?`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "name", "is_active"}).
			AddRow(1, 10, "Цветы у Марины", true))
	mock.ExpectQuery(`SELECT id, name, price, discount_price, quantity FROM products`).
		WithArgs(int64(5), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "discount_price", "quantity"}).
			AddRow(5, "Роза", 150.0, nil, 1))
	mock.ExpectRollback()

	_, err := e.Place(context.Background(), 2, PlaceInput{
		ShopID:         1,
		Items:          []ItemInput{{ProductID: 5, Quantity: 2}},
		RecipientName:  "Иван",
		RecipientPhone: "+79990001122",
	})

	var ruleErr *RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, "Недостаточно товара «Роза». Доступно: 1, требуется: 2", ruleErr.Message)
}

func TestPlaceWithFreeDeliveryPromo(t *testing.T) {
	e, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, owner_id, name, is_active FROM shops WHERE id = \?`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "name", "is_active"}).
			AddRow(1, 10, "Цветы у Марины", true))
	mock.ExpectQuery(`SELECT id, name, price, discount_price, quantity FROM products`).
		WithArgs(int64(5), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "discount_price", "quantity"}).
			AddRow(5, "Букет «Весна»", 500.0, nil, 10))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM orders WHERE user_id = ?")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT id, code, promo_type, .* FROM promos WHERE code = \? AND is_active = TRUE`).
		WithArgs("FREEDEL").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "code", "promo_type", "value", "min_order_amount", "valid_from", "valid_until",
			"shop_id", "use_once", "first_order_only", "max_uses", "usage_count", "is_active",
		}).AddRow(3, "FREEDEL", models.PromoFreeDelivery, 0.0, nil, nil, nil, nil, false, false, nil, 0, true))
	mock.ExpectExec(`INSERT INTO orders`).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec(`INSERT INTO order_items`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET quantity = quantity - ?, sales_count = sales_count + ? WHERE id = ?")).
		WithArgs(2, 2, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE promos SET usage_count = usage_count + 1 WHERE id = ?")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec(`DELETE FROM cart_items WHERE user_id = \? AND product_id IN`).
		WithArgs(int64(2), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	order, err := e.Place(context.Background(), 2, PlaceInput{
		ShopID:         1,
		Items:          []ItemInput{{ProductID: 5, Quantity: 2}},
		PromoCode:      "FREEDEL",
		RecipientName:  "Иван",
		RecipientPhone: "+79990001122",
	})
	require.NoError(t, err)

	assert.Equal(t, 1000.0, order.Subtotal)
	assert.Equal(t, 0.0, order.PromoDiscount)
	assert.Equal(t, 0.0, order.DeliveryFee)
	assert.Equal(t, 1000.0, order.Total)
	assert.Equal(t, models.OrderPending, order.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceTotalAlgebraWithFixedPromo(t *testing.T) {
	e, mock := newMock(t)

	discounted := 400.0
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, owner_id, name, is_active FROM shops WHERE id = \?`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "name", "is_active"}).
			AddRow(1, 10, "Лавка", true))
	mock.ExpectQuery(`SELECT id, name, price, discount_price, quantity FROM products`).
		WithArgs(int64(5), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "discount_price", "quantity"}).
			AddRow(5, "Пионы", 500.0, discounted, 10))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM orders WHERE user_id = ?")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery(`SELECT id, code, promo_type, .* FROM promos WHERE code = \? AND is_active = TRUE`).
		WithArgs("SAVE500").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "code", "promo_type", "value", "min_order_amount", "valid_from", "valid_until",
			"shop_id", "use_once", "first_order_only", "max_uses", "usage_count", "is_active",
		}).AddRow(9, "SAVE500", models.PromoFixed, 500.0, 3000.0, nil, nil, nil, false, false, nil, 0, true))
	mock.ExpectExec(`INSERT INTO orders`).
		WillReturnResult(sqlmock.NewResult(43, 1))
	mock.ExpectExec(`INSERT INTO order_items`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET quantity = quantity - ?, sales_count = sales_count + ? WHERE id = ?")).
		WithArgs(10, 10, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE promos SET usage_count = usage_count + 1 WHERE id = ?")).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec(`DELETE FROM cart_items`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// 10 × 400 (effective) = 4000; −500 promo; +500 delivery = 4000.
	order, err := e.Place(context.Background(), 2, PlaceInput{
		ShopID:         1,
		Items:          []ItemInput{{ProductID: 5, Quantity: 10}},
		PromoCode:      "save500",
		RecipientName:  "Анна",
		RecipientPhone: "+79991112233",
	})
	require.NoError(t, err)

	assert.Equal(t, 4000.0, order.Subtotal)
	assert.Equal(t, 1000.0, order.Discount) // (500−400) × 10 list-price savings
	assert.Equal(t, 500.0, order.PromoDiscount)
	assert.Equal(t, 500.0, order.DeliveryFee)
	assert.Equal(t, order.Subtotal-order.PromoDiscount+order.DeliveryFee, order.Total)
}

func TestCancelRestoresStock(t *testing.T) {
	e, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM orders WHERE id = ?")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(2))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, order_number, user_id, shop_id, status, total FROM orders WHERE id = \? FOR UPDATE`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_number", "user_id", "shop_id", "status", "total"}).
			AddRow(42, "ORD-20260830120000-ABCDEF", 2, 1, models.OrderPending, 1000.0))
	mock.ExpectQuery(`SELECT product_id, quantity FROM order_items WHERE order_id = \? AND product_id IS NOT NULL`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity"}).AddRow(5, 2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET quantity = quantity + ?, sales_count = sales_count - ? WHERE id = ?")).
		WithArgs(2, 2, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = ?, updated_at = NOW() WHERE id = ?")).
		WithArgs(models.OrderCancelled, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	order, err := e.Cancel(42, 2)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, order.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelRejectsForeignOrder(t *testing.T) {
	e, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM orders WHERE id = ?")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(99))

	_, err := e.Cancel(42, 2)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestUpdateStatusRejectsTerminal(t *testing.T) {
	e, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, order_number, user_id, shop_id, status, total FROM orders WHERE id = \? FOR UPDATE`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_number", "user_id", "shop_id", "status", "total"}).
			AddRow(7, "ORD-20260830120000-AAAAAA", 2, 1, models.OrderDelivered, 500.0))
	mock.ExpectRollback()

	_, err := e.UpdateStatus(7, models.OrderCancelled)
	var ruleErr *RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Contains(t, ruleErr.Message, "Невозможно изменить статус")
}
