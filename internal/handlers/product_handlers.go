package handlers

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"bloommarket/internal/media"
	"bloommarket/internal/middleware"
	"bloommarket/internal/models"
)

// Visibility gate: a product appears in public listings only while it is
// active, in stock, its shop is active and the shop holds an active
// subscription.
const visibleProductWhere = `
	p.is_active = TRUE AND p.quantity > 0 AND s.is_active = TRUE
	AND EXISTS (
		SELECT 1 FROM subscriptions sub
		WHERE sub.shop_id = s.id AND sub.is_active = TRUE AND sub.end_date > NOW()
	)`

type productFilters struct {
	ShopID *int64
}

// listVisibleProducts runs the filtered catalog query. Query-string filters
// are read straight off the request; the optional ShopID pin comes from the
// caller.
func (h *Handlers) listVisibleProducts(c *gin.Context, f productFilters) ([]models.Product, error) {
	where := []string{visibleProductWhere}
	args := []interface{}{}

	if f.ShopID != nil {
		where = append(where, "p.shop_id = ?")
		args = append(args, *f.ShopID)
	}
	if raw := c.Query("category_id"); raw != "" {
		if catID, err := strconv.ParseInt(raw, 10, 64); err == nil {
			// A parent category shows its own products plus one level of
			// descendants.
			where = append(where, "p.category_id IN (SELECT id FROM categories WHERE id = ? OR parent_id = ?)")
			args = append(args, catID, catID)
		}
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		needle := "%" + strings.ToLower(search) + "%"
		where = append(where, "(LOWER(p.name) LIKE ? OR LOWER(p.description) LIKE ?)")
		args = append(args, needle, needle)
	}
	if raw := c.Query("min_price"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			where = append(where, "COALESCE(p.discount_price, p.price) >= ?")
			args = append(args, v)
		}
	}
	if raw := c.Query("max_price"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			where = append(where, "COALESCE(p.discount_price, p.price) <= ?")
			args = append(args, v)
		}
	}
	if c.Query("trending") == "true" {
		where = append(where, "p.is_trending = TRUE")
	}
	if c.Query("discounted") == "true" {
		where = append(where, "p.discount_price IS NOT NULL")
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	query := `
		SELECT p.id, p.shop_id, p.category_id, p.name, p.description,
		       p.price, p.discount_price, p.discount_percent, p.quantity,
		       p.is_active, p.is_trending, p.views_count, p.sales_count,
		       p.created_at, p.updated_at,
		       s.name, s.average_rating, c.name
		FROM products p
		JOIN shops s ON s.id = p.shop_id
		JOIN categories c ON c.id = p.category_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY p.is_trending DESC, p.created_at DESC
		LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := h.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.ShopID, &p.CategoryID, &p.Name, &p.Description,
			&p.Price, &p.DiscountPrice, &p.DiscountPercent, &p.Quantity,
			&p.IsActive, &p.IsTrending, &p.ViewsCount, &p.SalesCount,
			&p.CreatedAt, &p.UpdatedAt,
			&p.ShopName, &p.ShopRating, &p.CategoryName); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := h.attachMedia(products); err != nil {
		return nil, err
	}
	h.personalize(products, middleware.UserID(c))
	return products, nil
}

// attachMedia loads media rows for a product batch, ordered video-first,
// then the primary image, then sort order. The first URL doubles as
// primary_image.
func (h *Handlers) attachMedia(products []models.Product) error {
	if len(products) == 0 {
		return nil
	}

	index := make(map[int64]*models.Product, len(products))
	placeholders := make([]string, 0, len(products))
	args := make([]interface{}, 0, len(products))
	for i := range products {
		index[products[i].ID] = &products[i]
		placeholders = append(placeholders, "?")
		args = append(args, products[i].ID)
	}

	rows, err := h.DB.Query(`
		SELECT id, product_id, media_type, url, is_primary, sort_order
		FROM product_media
		WHERE product_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY product_id, (media_type = 'video') DESC, is_primary DESC, sort_order`,
		args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var m models.ProductMedia
		if err := rows.Scan(&m.ID, &m.ProductID, &m.MediaType, &m.URL, &m.IsPrimary, &m.SortOrder); err != nil {
			return err
		}
		p := index[m.ProductID]
		if p == nil {
			continue
		}
		p.Media = append(p.Media, m)
		if p.PrimaryImage == nil {
			url := m.URL
			p.PrimaryImage = &url
		}
	}
	return rows.Err()
}

// personalize sets is_favorite / in_cart flags for an authenticated viewer.
func (h *Handlers) personalize(products []models.Product, userID int64) {
	if userID == 0 || len(products) == 0 {
		return
	}

	flag := func(table string, mark func(p *models.Product)) {
		placeholders := make([]string, 0, len(products))
		args := []interface{}{userID}
		index := make(map[int64]*models.Product, len(products))
		for i := range products {
			placeholders = append(placeholders, "?")
			args = append(args, products[i].ID)
			index[products[i].ID] = &products[i]
		}
		rows, err := h.DB.Query(
			`SELECT product_id FROM `+table+` WHERE user_id = ? AND product_id IN (`+
				strings.Join(placeholders, ",")+`)`, args...)
		if err != nil {
			return
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if rows.Scan(&id) == nil {
				if p := index[id]; p != nil {
					mark(p)
				}
			}
		}
	}

	flag("favorites", func(p *models.Product) { p.IsFavorite = true })
	flag("cart_items", func(p *models.Product) { p.InCart = true })
}

// GetAllProducts is the public catalog listing.
func (h *Handlers) GetAllProducts(c *gin.Context) {
	var filters productFilters
	if raw := c.Query("shop_id"); raw != "" {
		if shopID, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filters.ShopID = &shopID
		}
	}

	products, err := h.listVisibleProducts(c, filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить товары"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

// GetProduct is the public product card. Each view bumps views_count; the
// bump failing is not worth failing the read.
func (h *Handlers) GetProduct(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный id товара"})
		return
	}

	var p models.Product
	err = h.DB.QueryRow(`
		SELECT p.id, p.shop_id, p.category_id, p.name, p.description,
		       p.price, p.discount_price, p.discount_percent, p.quantity,
		       p.is_active, p.is_trending, p.views_count, p.sales_count,
		       p.created_at, p.updated_at,
		       s.name, s.average_rating, c.name
		FROM products p
		JOIN shops s ON s.id = p.shop_id
		JOIN categories c ON c.id = p.category_id
		WHERE p.id = ?`, productID).
		Scan(&p.ID, &p.ShopID, &p.CategoryID, &p.Name, &p.Description,
			&p.Price, &p.DiscountPrice, &p.DiscountPercent, &p.Quantity,
			&p.IsActive, &p.IsTrending, &p.ViewsCount, &p.SalesCount,
			&p.CreatedAt, &p.UpdatedAt,
			&p.ShopName, &p.ShopRating, &p.CategoryName)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "Товар не найден"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить товар"})
		return
	}

	if _, err := h.DB.Exec(`UPDATE products SET views_count = views_count + 1 WHERE id = ?`, productID); err == nil {
		p.ViewsCount++
	}

	batch := []models.Product{p}
	if err := h.attachMedia(batch); err == nil {
		h.personalize(batch, middleware.UserID(c))
		p = batch[0]
	}

	c.JSON(http.StatusOK, p)
}

type CreateProductInput struct {
	CategoryID    int64    `json:"categoryId" binding:"required"`
	Name          string   `json:"name" binding:"required,min=2"`
	Description   string   `json:"description"`
	Price         float64  `json:"price" binding:"required,gt=0"`
	DiscountPrice *float64 `json:"discountPrice" binding:"omitempty,gt=0"`
	Quantity      int      `json:"quantity" binding:"gte=0"`
}

// CreateProduct adds a product to the owner's shop, enforcing the active
// subscription and the plan's product limit.
func (h *Handlers) CreateProduct(c *gin.Context) {
	userID := middleware.UserID(c)

	var input CreateProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.DiscountPrice != nil && *input.DiscountPrice >= input.Price {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Цена со скидкой должна быть меньше обычной"})
		return
	}

	var shopID int64
	var shopActive bool
	err := h.DB.QueryRow(`SELECT id, is_active FROM shops WHERE owner_id = ?`, userID).
		Scan(&shopID, &shopActive)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusForbidden, gin.H{"error": "У вас нет магазина"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить магазин"})
		return
	}
	if !shopActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "Магазин деактивирован"})
		return
	}

	active, err := h.Subs.Active(shopID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось проверить подписку"})
		return
	}
	if active == nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Для добавления товаров нужна активная подписка"})
		return
	}

	plan, err := h.Subs.PlanByID(active.PlanID)
	if err == nil && plan.MaxProducts > 0 {
		var count int
		if err := h.DB.QueryRow(`SELECT COUNT(*) FROM products WHERE shop_id = ?`, shopID).Scan(&count); err == nil &&
			count >= plan.MaxProducts {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Достигнут лимит товаров по тарифу: " + strconv.Itoa(plan.MaxProducts),
			})
			return
		}
	}

	var discountPercent *int
	if input.DiscountPrice != nil {
		pct := int((input.Price - *input.DiscountPrice) / input.Price * 100)
		discountPercent = &pct
	}

	res, err := h.DB.Exec(`
		INSERT INTO products (shop_id, category_id, name, description, price, discount_price, discount_percent, quantity, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, TRUE)`,
		shopID, input.CategoryID, input.Name, input.Description,
		input.Price, input.DiscountPrice, discountPercent, input.Quantity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось создать товар"})
		return
	}
	id, _ := res.LastInsertId()
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type UpdateProductInput struct {
	CategoryID    *int64   `json:"categoryId"`
	Name          *string  `json:"name"`
	Description   *string  `json:"description"`
	Price         *float64 `json:"price" binding:"omitempty,gt=0"`
	DiscountPrice *float64 `json:"discountPrice"`
	Quantity      *int     `json:"quantity" binding:"omitempty,gte=0"`
	IsActive      *bool    `json:"isActive"`
}

// UpdateProduct applies a partial update to an owned product.
func (h *Handlers) UpdateProduct(c *gin.Context) {
	productID, shopOK := h.ownedProduct(c)
	if !shopOK {
		return
	}

	var input UpdateProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	set := []string{}
	args := []interface{}{}
	add := func(col string, v interface{}) {
		set = append(set, col+" = ?")
		args = append(args, v)
	}
	if input.CategoryID != nil {
		add("category_id", *input.CategoryID)
	}
	if input.Name != nil {
		add("name", *input.Name)
	}
	if input.Description != nil {
		add("description", *input.Description)
	}
	if input.Price != nil {
		add("price", *input.Price)
	}
	if input.DiscountPrice != nil {
		if *input.DiscountPrice <= 0 {
			add("discount_price", nil)
			add("discount_percent", nil)
		} else {
			add("discount_price", *input.DiscountPrice)
		}
	}
	if input.Quantity != nil {
		add("quantity", *input.Quantity)
	}
	if input.IsActive != nil {
		add("is_active", *input.IsActive)
	}
	if len(set) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Нет полей для обновления"})
		return
	}

	args = append(args, productID)
	if _, err := h.DB.Exec(
		"UPDATE products SET "+joinSet(set)+" WHERE id = ?", args...); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось обновить товар"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Товар обновлен"})
}

// DeleteProduct removes a product while preserving order history: item
// rows keep their captured name and lose only the product reference.
func (h *Handlers) DeleteProduct(c *gin.Context) {
	productID, ok := h.ownedProduct(c)
	if !ok {
		return
	}

	tx, err := h.DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось удалить товар"})
		return
	}
	defer tx.Rollback()

	steps := []string{
		`UPDATE order_items SET product_id = NULL WHERE product_id = ?`,
		`DELETE FROM cart_items WHERE product_id = ?`,
		`DELETE FROM favorites WHERE product_id = ?`,
		`DELETE FROM product_media WHERE product_id = ?`,
		`DELETE FROM products WHERE id = ?`,
	}
	for _, stmt := range steps {
		if _, err := tx.Exec(stmt, productID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось удалить товар"})
			return
		}
	}
	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось удалить товар"})
		return
	}

	// Files go after the commit; a leftover directory is only disk noise.
	if err := h.Media.DeleteProductDir(productID); err != nil {
		c.JSON(http.StatusOK, gin.H{"message": "Товар удален", "warning": "Не все файлы удалены"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Товар удален"})
}

// UploadProductMedia attaches a photo or video to an owned product. At most
// one media row is primary.
func (h *Handlers) UploadProductMedia(c *gin.Context) {
	productID, ok := h.ownedProduct(c)
	if !ok {
		return
	}

	data, filename, contentType, ok := readUpload(c, "file")
	if !ok {
		return
	}
	isPrimary := c.PostForm("is_primary") == "true"

	url, err := h.Media.SaveProductMedia(productID, isPrimary, data, filename, contentType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mediaType := models.MediaPhoto
	if media.IsVideoExt(media.ExtFor(filename, contentType)) {
		mediaType = models.MediaVideo
	}

	tx, err := h.DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось сохранить медиа"})
		return
	}
	defer tx.Rollback()

	if isPrimary {
		if _, err := tx.Exec(
			`UPDATE product_media SET is_primary = FALSE WHERE product_id = ?`, productID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось сохранить медиа"})
			return
		}
	}

	var sortOrder int
	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(sort_order), 0) + 1 FROM product_media WHERE product_id = ?`,
		productID).Scan(&sortOrder); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось сохранить медиа"})
		return
	}

	res, err := tx.Exec(`
		INSERT INTO product_media (product_id, media_type, url, is_primary, sort_order)
		VALUES (?, ?, ?, ?, ?)`, productID, mediaType, url, isPrimary, sortOrder)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось сохранить медиа"})
		return
	}
	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось сохранить медиа"})
		return
	}

	id, _ := res.LastInsertId()
	c.JSON(http.StatusCreated, gin.H{"id": id, "url": url, "mediaType": mediaType, "isPrimary": isPrimary})
}

// ownedProduct parses :id and verifies the product belongs to the caller's
// shop. Writes the error response itself on failure.
func (h *Handlers) ownedProduct(c *gin.Context) (int64, bool) {
	userID := middleware.UserID(c)

	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный id товара"})
		return 0, false
	}

	var ownerID int64
	err = h.DB.QueryRow(`
		SELECT s.owner_id FROM products p
		JOIN shops s ON s.id = p.shop_id
		WHERE p.id = ?`, productID).Scan(&ownerID)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "Товар не найден"})
		return 0, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить товар"})
		return 0, false
	}
	if ownerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Это не ваш товар"})
		return 0, false
	}
	return productID, true
}
