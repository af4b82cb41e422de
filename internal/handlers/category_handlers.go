package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"

	"bloommarket/internal/models"
)

// GetAllCategories returns the flat active category list.
func (h *Handlers) GetAllCategories(c *gin.Context) {
	rows, err := h.DB.Query(`
		SELECT id, name, slug, icon, parent_id, sort_order, is_active
		FROM categories WHERE is_active = TRUE
		ORDER BY sort_order, name`)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить категории"})
		return
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var cat models.Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Slug, &cat.Icon,
			&cat.ParentID, &cat.SortOrder, &cat.IsActive); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить категории"})
			return
		}
		categories = append(categories, cat)
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// GetCategoryTree assembles the category hierarchy in memory, annotating
// every node with the count of visible products directly in it.
func (h *Handlers) GetCategoryTree(c *gin.Context) {
	rows, err := h.DB.Query(`
		SELECT c.id, c.name, c.slug, c.icon, c.parent_id, c.sort_order, c.is_active,
		       (SELECT COUNT(*) FROM products p
		        JOIN shops s ON s.id = p.shop_id
		        WHERE p.category_id = c.id AND ` + visibleProductWhere + `) AS products_count
		FROM categories c WHERE c.is_active = TRUE
		ORDER BY c.sort_order, c.name`)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить категории"})
		return
	}
	defer rows.Close()

	nodes := map[int64]*models.CategoryNode{}
	ordered := []*models.CategoryNode{}
	for rows.Next() {
		node := &models.CategoryNode{}
		if err := rows.Scan(&node.ID, &node.Name, &node.Slug, &node.Icon,
			&node.ParentID, &node.SortOrder, &node.IsActive, &node.ProductsCount); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить категории"})
			return
		}
		node.Children = []*models.CategoryNode{}
		nodes[node.ID] = node
		ordered = append(ordered, node)
	}

	roots := []*models.CategoryNode{}
	for _, node := range ordered {
		if node.ParentID != nil {
			if parent, ok := nodes[*node.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}

	c.JSON(http.StatusOK, gin.H{"categories": roots})
}

type CreateCategoryInput struct {
	Name      string  `json:"name" binding:"required,min=2"`
	Icon      *string `json:"icon"`
	ParentID  *int64  `json:"parentId"`
	SortOrder int     `json:"sortOrder"`
}

// CreateCategory is admin-only. The slug derives from the name; collisions
// get the id appended.
func (h *Handlers) CreateCategory(c *gin.Context) {
	var input CreateCategoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if input.ParentID != nil {
		var exists int
		if err := h.DB.QueryRow(
			`SELECT COUNT(*) FROM categories WHERE id = ?`, *input.ParentID).Scan(&exists); err != nil || exists == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Родительская категория не найдена"})
			return
		}
	}

	categorySlug := slug.Make(input.Name)
	var taken int
	if err := h.DB.QueryRow(
		`SELECT COUNT(*) FROM categories WHERE slug = ?`, categorySlug).Scan(&taken); err == nil && taken > 0 {
		var next int64
		if err := h.DB.QueryRow(`SELECT COALESCE(MAX(id), 0) + 1 FROM categories`).Scan(&next); err == nil {
			categorySlug = categorySlug + "-" + strconv.FormatInt(next, 10)
		}
	}

	res, err := h.DB.Exec(`
		INSERT INTO categories (name, slug, icon, parent_id, sort_order, is_active)
		VALUES (?, ?, ?, ?, ?, TRUE)`,
		input.Name, categorySlug, input.Icon, input.ParentID, input.SortOrder)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось создать категорию"})
		return
	}
	id, _ := res.LastInsertId()
	c.JSON(http.StatusCreated, gin.H{"id": id, "slug": categorySlug})
}

// UploadCategoryIcon is admin-only: replaces the category icon with an
// uploaded image.
func (h *Handlers) UploadCategoryIcon(c *gin.Context) {
	categoryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный id категории"})
		return
	}

	data, filename, contentType, ok := readUpload(c, "icon")
	if !ok {
		return
	}

	url, err := h.Media.SaveCategoryIcon(data, filename, contentType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.DB.Exec(`UPDATE categories SET icon = ? WHERE id = ?`, url, categoryID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось сохранить иконку"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Категория не найдена"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"icon": url})
}

// DeleteCategory is admin-only: soft-deactivates a category so its
// products stay addressable.
func (h *Handlers) DeleteCategory(c *gin.Context) {
	categoryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный id категории"})
		return
	}

	res, err := h.DB.Exec(`UPDATE categories SET is_active = FALSE WHERE id = ?`, categoryID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось удалить категорию"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Категория не найдена"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Категория деактивирована"})
}
