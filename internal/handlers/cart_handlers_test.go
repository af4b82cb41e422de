package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloommarket/internal/config"
	"bloommarket/internal/middleware"
)

func testContext(t *testing.T, userID int64) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set(middleware.CtxUserID, userID)
	return c, w
}

const cartQueryPattern = `SELECT ci\.id, ci\.product_id, ci\.quantity, .* FROM cart_items ci .* WHERE ci\.user_id = \?`

func cartRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "product_id", "quantity",
		"name", "price", "discount_price", "stock", "available",
		"primary_image", "shop_id", "shop_name",
	})
}

func TestGetCartSummaryTotals(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	h := &Handlers{DB: db, Cfg: &config.Config{}}

	// Two shops; the second line has a discount price that wins.
	mock.ExpectQuery(cartQueryPattern).
		WithArgs(int64(7)).
		WillReturnRows(cartRows().
			AddRow(1, 10, 2, "Букет роз", 1500.0, nil, 5, true, nil, 1, "Цветы").
			AddRow(2, 11, 1, "Тюльпаны", 1000.0, 800.0, 3, true, nil, 1, "Цветы").
			AddRow(3, 12, 3, "Открытка", 100.0, nil, 9, true, nil, 2, "Подарки"))

	c, w := testContext(t, 7)
	h.GetCartSummary(c)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	// 2×1500 + 1×800 + 3×100 = 4100, discount 200, 6 items, 2 shops.
	assert.EqualValues(t, 6, body["total_items"])
	assert.EqualValues(t, 4100, body["total_amount"])
	assert.EqualValues(t, 200, body["discount"])
	assert.EqualValues(t, 2, body["shops_count"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCartGroupsByShop(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	h := &Handlers{DB: db, Cfg: &config.Config{}}

	mock.ExpectQuery(cartQueryPattern).
		WithArgs(int64(7)).
		WillReturnRows(cartRows().
			AddRow(1, 10, 1, "Букет роз", 1500.0, nil, 5, true, nil, 1, "Цветы").
			AddRow(2, 20, 1, "Мишка", 900.0, nil, 0, false, nil, 2, "Подарки").
			AddRow(3, 21, 2, "Шарик", 150.0, nil, 8, true, nil, 2, "Подарки"))

	c, w := testContext(t, 7)
	h.GetCart(c)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Count int `json:"count"`
		Shops []struct {
			ShopID int64 `json:"shopId"`
			Items  []struct {
				Available bool `json:"available"`
			} `json:"items"`
		} `json:"shops"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, 3, body.Count)
	require.Len(t, body.Shops, 2)
	assert.Len(t, body.Shops[0].Items, 1)
	assert.Len(t, body.Shops[1].Items, 2)
	assert.False(t, body.Shops[1].Items[0].Available, "out-of-stock line is flagged")

	assert.NoError(t, mock.ExpectationsWereMet())
}
