package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloommarket/internal/config"
)

const applicationLoadPattern = `SELECT id, telegram_id, shop_name, .* FROM shop_applications WHERE id = \?`

func decideContext(t *testing.T, appID, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	c, w := testContext(t, 1)
	c.Params = gin.Params{{Key: "id", Value: appID}}
	c.Request = httptest.NewRequest(http.MethodPost, "/api/admin/applications/"+appID+"/decide",
		bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func applicationRow(status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "telegram_id", "shop_name", "description", "address", "phone",
		"owner_name", "owner_phone", "owner_username", "photo_path", "status",
	}).AddRow(42, 555, "Цветы у Марины", "Свежие букеты", "Ленина 5", "+79990001122",
		"Марина Иванова", "+79990001122", "marina", nil, status)
}

func TestDecideApplicationSecondPressIsRefused(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	h := &Handlers{DB: db, Cfg: &config.Config{}}

	mock.ExpectQuery(applicationLoadPattern).
		WithArgs(int64(42)).
		WillReturnRows(applicationRow("approved"))

	c, w := decideContext(t, "42", `{"approve":true}`)
	h.AdminDecideApplication(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Заявка уже обработана")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecideApplicationReject(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	h := &Handlers{DB: db, Cfg: &config.Config{}}

	mock.ExpectQuery(applicationLoadPattern).
		WithArgs(int64(42)).
		WillReturnRows(applicationRow("pending"))
	mock.ExpectExec(`UPDATE shop_applications SET status = 'rejected' WHERE id = \?`).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, w := decideContext(t, "42", `{"approve":false}`)
	h.AdminDecideApplication(c)

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecideApplicationApproveCreatesShop(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	h := &Handlers{DB: db, Cfg: &config.Config{}}

	mock.ExpectQuery(applicationLoadPattern).
		WithArgs(int64(42)).
		WillReturnRows(applicationRow("pending"))
	// Applicant already has a user row but no shop yet.
	mock.ExpectQuery(`SELECT id FROM users WHERE telegram_id = \?`).
		WithArgs(int64(555)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectQuery(`SELECT id FROM shops WHERE owner_id = \?`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`INSERT INTO shops`).
		WithArgs(int64(9), "Цветы у Марины", "Свежие букеты", "Ленина 5", "+79990001122").
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectExec(`UPDATE shop_applications SET status = 'approved', shop_id = \? WHERE id = \?`).
		WithArgs(int64(3), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, w := decideContext(t, "42", `{"approve":true}`)
	h.AdminDecideApplication(c)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"shopId":3`)
	assert.NoError(t, mock.ExpectationsWereMet())
}
