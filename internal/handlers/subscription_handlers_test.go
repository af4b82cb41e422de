package handlers

import (
	"bytes"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloommarket/internal/config"
	"bloommarket/internal/subs"
)

func TestAdminGrantSubscriptionUnknownPlan(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	h := &Handlers{DB: db, Cfg: &config.Config{}, Subs: subs.New(db)}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM shops WHERE id = \?`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT id, name, price, duration_days, .* FROM subscription_plans WHERE id = \? AND is_active = TRUE`).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	c, w := testContext(t, 1)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/admin/subscriptions/grant",
		bytes.NewBufferString(`{"shopId":3,"planId":99}`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.AdminGrantSubscription(c)

	// The grant is declined outright; no subscription row is touched.
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Тариф не найден")
	assert.NoError(t, mock.ExpectationsWereMet())
}
