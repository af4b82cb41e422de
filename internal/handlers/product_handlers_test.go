package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloommarket/internal/config"
	"bloommarket/internal/media"
	"bloommarket/internal/middleware"
)

const ownedProductPattern = `SELECT s\.owner_id FROM products p\s+JOIN shops s ON s\.id = p\.shop_id\s+WHERE p\.id = \?`

func ownerContext(t *testing.T, userID int64, productID string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	c, w := testContext(t, userID)
	c.Params = gin.Params{{Key: "id", Value: productID}}
	return c, w
}

func TestUploadProductMediaSinglePrimary(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	h := &Handlers{
		DB:    db,
		Cfg:   &config.Config{},
		Media: media.NewStore(t.TempDir(), 1<<20),
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "rose.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("is_primary", "true"))
	require.NoError(t, mw.Close())

	c, w := ownerContext(t, 5, "7")
	c.Request = httptest.NewRequest(http.MethodPost, "/api/products/7/media", &body)
	c.Request.Header.Set("Content-Type", mw.FormDataContentType())
	c.Set(middleware.CtxUserID, int64(5))

	mock.ExpectQuery(ownedProductPattern).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow(5))
	mock.ExpectBegin()
	// A new primary demotes every existing row before the insert.
	mock.ExpectExec(`UPDATE product_media SET is_primary = FALSE WHERE product_id = \?`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(sort_order\), 0\) \+ 1 FROM product_media WHERE product_id = \?`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(3))
	mock.ExpectExec(`INSERT INTO product_media`).
		WithArgs(int64(7), "photo", sqlmock.AnyArg(), true, 3).
		WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectCommit()

	h.UploadProductMedia(c)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "photo", resp["mediaType"])
	assert.Equal(t, true, resp["isPrimary"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteProductKeepsOrderHistory(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	h := &Handlers{
		DB:    db,
		Cfg:   &config.Config{},
		Media: media.NewStore(t.TempDir(), 1<<20),
	}

	mock.ExpectQuery(ownedProductPattern).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow(5))
	mock.ExpectBegin()
	// Order items keep their snapshot and only drop the reference.
	mock.ExpectExec(`UPDATE order_items SET product_id = NULL WHERE product_id = \?`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM cart_items WHERE product_id = \?`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM favorites WHERE product_id = \?`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM product_media WHERE product_id = \?`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM products WHERE id = \?`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, w := ownerContext(t, 5, "7")
	h.DeleteProduct(c)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteProductRejectsForeignOwner(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	h := &Handlers{DB: db, Cfg: &config.Config{}}

	mock.ExpectQuery(ownedProductPattern).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow(99))

	c, w := ownerContext(t, 5, "7")
	h.DeleteProduct(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
