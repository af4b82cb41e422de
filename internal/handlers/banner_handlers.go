package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bloommarket/internal/models"
)

// GetBanners lists the active home-screen banners in display order.
func (h *Handlers) GetBanners(c *gin.Context) {
	rows, err := h.DB.Query(`
		SELECT id, title, emoji, description, image_url, link_type, link_value, display_order, is_active, created_at
		FROM banners WHERE is_active = TRUE
		ORDER BY display_order, id`)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить баннеры"})
		return
	}
	defer rows.Close()

	banners := []models.Banner{}
	for rows.Next() {
		var b models.Banner
		if err := rows.Scan(&b.ID, &b.Title, &b.Emoji, &b.Description, &b.ImageURL,
			&b.LinkType, &b.LinkValue, &b.DisplayOrder, &b.IsActive, &b.CreatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить баннеры"})
			return
		}
		banners = append(banners, b)
	}
	c.JSON(http.StatusOK, gin.H{"banners": banners})
}

type CreateBannerInput struct {
	Title        string  `json:"title" binding:"required"`
	Emoji        *string `json:"emoji"`
	Description  *string `json:"description"`
	LinkType     string  `json:"linkType" binding:"omitempty,oneof=none category product shop external"`
	LinkValue    *string `json:"linkValue"`
	DisplayOrder int     `json:"displayOrder"`
}

// CreateBanner is admin-only.
func (h *Handlers) CreateBanner(c *gin.Context) {
	var input CreateBannerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.LinkType == "" {
		input.LinkType = models.BannerLinkNone
	}

	res, err := h.DB.Exec(`
		INSERT INTO banners (title, emoji, description, link_type, link_value, display_order, is_active)
		VALUES (?, ?, ?, ?, ?, ?, TRUE)`,
		input.Title, input.Emoji, input.Description, input.LinkType, input.LinkValue, input.DisplayOrder)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось создать баннер"})
		return
	}
	id, _ := res.LastInsertId()
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// UploadBannerImage is admin-only: attaches an image to a banner.
func (h *Handlers) UploadBannerImage(c *gin.Context) {
	bannerID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный id баннера"})
		return
	}

	data, filename, contentType, ok := readUpload(c, "image")
	if !ok {
		return
	}

	url, err := h.Media.SaveBanner(data, filename, contentType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.DB.Exec(`UPDATE banners SET image_url = ? WHERE id = ?`, url, bannerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось сохранить изображение"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Баннер не найден"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"imageUrl": url})
}

// DeleteBanner is admin-only: deactivates a banner and removes its image
// file.
func (h *Handlers) DeleteBanner(c *gin.Context) {
	bannerID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный id баннера"})
		return
	}

	var imageURL *string
	if err := h.DB.QueryRow(
		`SELECT image_url FROM banners WHERE id = ?`, bannerID).Scan(&imageURL); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Баннер не найден"})
		return
	}

	if _, err := h.DB.Exec(
		`UPDATE banners SET is_active = FALSE WHERE id = ?`, bannerID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось удалить баннер"})
		return
	}
	if imageURL != nil {
		if err := h.Media.Delete(*imageURL); err != nil {
			c.JSON(http.StatusOK, gin.H{"message": "Баннер удален", "warning": "Файл изображения не удален"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Баннер удален"})
}
