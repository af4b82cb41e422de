package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloommarket/internal/config"
)

func TestGetCategoryTreeNesting(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	h := &Handlers{DB: db, Cfg: &config.Config{}}

	rows := sqlmock.NewRows([]string{
		"id", "name", "slug", "icon", "parent_id", "sort_order", "is_active", "products_count",
	}).
		AddRow(1, "Цветы", "cvety", nil, nil, 1, true, 4).
		AddRow(2, "Букеты", "bukety", nil, 1, 1, true, 3).
		AddRow(3, "Подарки", "podarki", nil, nil, 2, true, 0).
		AddRow(4, "Орфан", "orfan", nil, 99, 3, true, 1)

	mock.ExpectQuery(`SELECT c\.id, c\.name, c\.slug, .* FROM categories c WHERE c\.is_active = TRUE`).
		WillReturnRows(rows)

	c, w := testContext(t, 0)
	h.GetCategoryTree(c)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Categories []struct {
			ID            int64 `json:"id"`
			ProductsCount int   `json:"productsCount"`
			Children      []struct {
				ID int64 `json:"id"`
			} `json:"children"`
		} `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	// Roots: Цветы, Подарки, and the orphan whose parent is unknown.
	require.Len(t, body.Categories, 3)
	assert.EqualValues(t, 1, body.Categories[0].ID)
	require.Len(t, body.Categories[0].Children, 1)
	assert.EqualValues(t, 2, body.Categories[0].Children[0].ID)
	assert.Equal(t, 4, body.Categories[0].ProductsCount)
	assert.Empty(t, body.Categories[1].Children)

	assert.NoError(t, mock.ExpectationsWereMet())
}
