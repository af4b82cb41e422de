package subs

import (
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloommarket/internal/models"
)

func newMock(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestActiveReturnsNilWithoutRows(t *testing.T) {
	m, mock := newMock(t)
	mock.ExpectQuery(`SELECT s.id, .* FROM subscriptions s`).
		WithArgs(int64(5)).
		WillReturnError(sql.ErrNoRows)

	sub, err := m.Active(5)
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestActivateProductsSkipsOutOfStock(t *testing.T) {
	m, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET is_active = TRUE WHERE shop_id = ? AND quantity > 0")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, m.ActivateProducts(3))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantStacksOnExistingSubscription(t *testing.T) {
	m, mock := newMock(t)

	currentEnd := time.Now().AddDate(0, 0, 10).Truncate(time.Second)

	// No prior payment with this charge id.
	mock.ExpectQuery(`SELECT id, shop_id, .* FROM subscriptions WHERE external_payment_id = \?`).
		WithArgs("charge-1").
		WillReturnError(sql.ErrNoRows)

	// An active subscription exists: the grant must start at its end.
	mock.ExpectQuery(`SELECT s.id, .* FROM subscriptions s`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "shop_id", "plan_id", "start_date", "end_date", "is_active",
			"external_payment_id", "created_at", "name",
		}).AddRow(1, 7, 2, time.Now().AddDate(0, 0, -20), currentEnd, true, nil, time.Now(), "Базовый"))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE subscriptions SET is_active = FALSE WHERE shop_id = ?")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO subscriptions`).
		WithArgs(int64(7), int64(2), currentEnd, currentEnd.AddDate(0, 0, 30), "charge-1").
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectCommit()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET is_active = TRUE WHERE shop_id = ? AND quantity > 0")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	plan := &models.SubscriptionPlan{ID: 2, Name: "Базовый", DurationDays: 30}
	sub, err := m.Grant(7, plan, "charge-1")
	require.NoError(t, err)
	assert.Equal(t, currentEnd, sub.StartDate)
	assert.Equal(t, currentEnd.AddDate(0, 0, 30), sub.EndDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantIsIdempotentByChargeID(t *testing.T) {
	m, mock := newMock(t)

	mock.ExpectQuery(`SELECT id, shop_id, .* FROM subscriptions WHERE external_payment_id = \?`).
		WithArgs("charge-replay").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "shop_id", "plan_id", "start_date", "end_date", "is_active", "external_payment_id", "created_at",
		}).AddRow(4, 7, 2, time.Now(), time.Now().AddDate(0, 0, 30), true, "charge-replay", time.Now()))

	plan := &models.SubscriptionPlan{ID: 2, DurationDays: 30}
	sub, err := m.Grant(7, plan, "charge-replay")
	require.NoError(t, err)
	assert.Equal(t, int64(4), sub.ID)
	// No INSERT, no cascade.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanByIDRejectsMissingPlan(t *testing.T) {
	m, mock := newMock(t)

	// A plan deactivated mid-checkout matches no row; the lookup must fail
	// loudly so no caller hands a nil plan to Grant.
	mock.ExpectQuery(`SELECT id, name, price, duration_days, .* FROM subscription_plans WHERE id = \? AND is_active = TRUE`).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	plan, err := m.PlanByID(99)
	assert.Nil(t, plan)
	assert.ErrorIs(t, err, ErrPlanNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpirySweepDeactivatesLapsedShops(t *testing.T) {
	m, mock := newMock(t)

	mock.ExpectQuery(`SELECT sh.id FROM shops sh`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))

	for _, id := range []int64{1, 2} {
		mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET is_active = FALSE WHERE shop_id = ? AND is_active = TRUE")).
			WithArgs(id).
			WillReturnResult(sqlmock.NewResult(0, 3))
	}

	require.NoError(t, m.ExpirySweep())
	require.NoError(t, mock.ExpectationsWereMet())
}
