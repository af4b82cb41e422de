package promo

import (
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloommarket/internal/models"
)

var promoColumns = []string{
	"id", "code", "promo_type", "value", "min_order_amount", "valid_from", "valid_until",
	"shop_id", "use_once", "first_order_only", "max_uses", "usage_count", "is_active",
}

const promoQuery = `SELECT id, code, promo_type, .* FROM promos WHERE code = \? AND is_active = TRUE`

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func expectPromoRow(mock sqlmock.Sqlmock, code string, row []driver.Value) {
	mock.ExpectQuery(promoQuery).WithArgs(code).
		WillReturnRows(sqlmock.NewRows(promoColumns).AddRow(row...))
}

func TestValidateNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(promoQuery).WithArgs("NOPE").WillReturnError(sql.ErrNoRows)

	res, err := Validate(db, Input{Code: "nope", ShopID: 1, Subtotal: 100})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "Промокод не найден", res.Message)
}

func TestValidateCodeIsCaseNormalized(t *testing.T) {
	db, mock := newMock(t)
	expectPromoRow(mock, "SAVE500", []driver.Value{
		1, "SAVE500", models.PromoFixed, 500.0, nil, nil, nil, nil, false, false, nil, 0, true,
	})

	res, err := Validate(db, Input{Code: "  save500 ", ShopID: 1, Subtotal: 1000})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateMinOrderAmount(t *testing.T) {
	db, mock := newMock(t)
	min := 3000.0
	expectPromoRow(mock, "SAVE500", []driver.Value{
		1, "SAVE500", models.PromoFixed, 500.0, min, nil, nil, nil, false, false, nil, 0, true,
	})

	res, err := Validate(db, Input{Code: "SAVE500", ShopID: 1, Subtotal: 2500})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "Минимальная сумма заказа для промокода: 3000 ₽", res.Message)
}

func TestValidateMinOrderAmountMet(t *testing.T) {
	db, mock := newMock(t)
	min := 3000.0
	expectPromoRow(mock, "SAVE500", []driver.Value{
		1, "SAVE500", models.PromoFixed, 500.0, min, nil, nil, nil, false, false, nil, 0, true,
	})

	res, err := Validate(db, Input{Code: "SAVE500", ShopID: 1, Subtotal: 3500})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 500.0, res.DiscountAmount)
	assert.Equal(t, models.PromoFixed, res.DiscountType)
}

func TestValidateNotYetActive(t *testing.T) {
	db, mock := newMock(t)
	from := time.Now().AddDate(0, 0, 7)
	expectPromoRow(mock, "SOON", []driver.Value{
		1, "SOON", models.PromoPercent, 10.0, nil, from, nil, nil, false, false, nil, 0, true,
	})

	res, err := Validate(db, Input{Code: "SOON", ShopID: 1, Subtotal: 1000})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "Промокод еще не начал действовать", res.Message)
}

func TestValidateExpired(t *testing.T) {
	db, mock := newMock(t)
	until := time.Now().AddDate(0, 0, -1)
	expectPromoRow(mock, "OLD", []driver.Value{
		1, "OLD", models.PromoPercent, 10.0, nil, nil, until, nil, false, false, nil, 0, true,
	})

	res, err := Validate(db, Input{Code: "OLD", ShopID: 1, Subtotal: 1000})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "Промокод истек", res.Message)
}

func TestValidateShopScope(t *testing.T) {
	db, mock := newMock(t)
	shopID := int64(5)
	expectPromoRow(mock, "SHOPONLY", []driver.Value{
		1, "SHOPONLY", models.PromoPercent, 10.0, nil, nil, nil, shopID, false, false, nil, 0, true,
	})

	res, err := Validate(db, Input{Code: "SHOPONLY", ShopID: 9, Subtotal: 1000})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "Промокод не действует в этом магазине", res.Message)
}

func TestValidateFirstOrderOnly(t *testing.T) {
	db, mock := newMock(t)
	expectPromoRow(mock, "WELCOME", []driver.Value{
		1, "WELCOME", models.PromoPercent, 15.0, nil, nil, nil, nil, false, true, nil, 0, true,
	})

	res, err := Validate(db, Input{Code: "WELCOME", ShopID: 1, Subtotal: 1000, IsFirstOrder: false})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "Промокод действует только на первый заказ", res.Message)
}

func TestValidateUseOnceAlreadyUsed(t *testing.T) {
	db, mock := newMock(t)
	expectPromoRow(mock, "ONCE", []driver.Value{
		1, "ONCE", models.PromoFixed, 100.0, nil, nil, nil, nil, true, false, nil, 3, true,
	})
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM orders WHERE user_id = ? AND promo_code = ?")).
		WithArgs(int64(77), "ONCE").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	res, err := Validate(db, Input{Code: "ONCE", ShopID: 1, Subtotal: 1000, UserID: 77})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "Вы уже использовали этот промокод", res.Message)
}

func TestValidateFreeDelivery(t *testing.T) {
	db, mock := newMock(t)
	expectPromoRow(mock, "FREEDEL", []driver.Value{
		1, "FREEDEL", models.PromoFreeDelivery, 0.0, nil, nil, nil, nil, false, false, nil, 0, true,
	})

	res, err := Validate(db, Input{Code: "FREEDEL", ShopID: 1, Subtotal: 1000})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 0.0, res.DiscountAmount)
	assert.Equal(t, models.PromoFreeDelivery, res.DiscountType)
}

func TestDiscountBounds(t *testing.T) {
	percent := &models.Promo{PromoType: models.PromoPercent, Value: 25}
	assert.Equal(t, 250.0, Discount(percent, 1000))

	fixed := &models.Promo{PromoType: models.PromoFixed, Value: 500}
	assert.Equal(t, 500.0, Discount(fixed, 3500))

	// A fixed discount never exceeds the subtotal.
	assert.Equal(t, 200.0, Discount(fixed, 200))

	free := &models.Promo{PromoType: models.PromoFreeDelivery}
	assert.Equal(t, 0.0, Discount(free, 1000))
}

func TestDiscountRounding(t *testing.T) {
	percent := &models.Promo{PromoType: models.PromoPercent, Value: 33}
	// 999.99 × 33% = 329.9967, rounded to 330.00.
	assert.Equal(t, 330.0, Discount(percent, 999.99))
}
