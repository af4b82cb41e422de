package handlers

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bloommarket/internal/middleware"
	"bloommarket/internal/models"
)

// GetMe returns the authenticated user's profile. The auth middleware has
// already auto-created the row, so not-found here is a real inconsistency.
func (h *Handlers) GetMe(c *gin.Context) {
	userID := middleware.UserID(c)

	var u models.User
	err := h.DB.QueryRow(`
		SELECT id, telegram_id, first_name, last_name, username, language_code, phone, is_premium, created_at, updated_at
		FROM users WHERE id = ?`, userID).
		Scan(&u.ID, &u.TelegramID, &u.FirstName, &u.LastName, &u.Username,
			&u.Language, &u.Phone, &u.IsPremium, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "Пользователь не найден"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить профиль"})
		return
	}
	c.JSON(http.StatusOK, u)
}

type UpdateMeInput struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Phone     *string `json:"phone"`
	Language  *string `json:"languageCode"`
}

// UpdateMe applies a partial profile update.
func (h *Handlers) UpdateMe(c *gin.Context) {
	userID := middleware.UserID(c)

	var input UpdateMeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	setParts := []string{}
	args := []interface{}{}
	if input.FirstName != nil {
		setParts = append(setParts, "first_name = ?")
		args = append(args, *input.FirstName)
	}
	if input.LastName != nil {
		setParts = append(setParts, "last_name = ?")
		args = append(args, *input.LastName)
	}
	if input.Phone != nil {
		setParts = append(setParts, "phone = ?")
		args = append(args, *input.Phone)
	}
	if input.Language != nil {
		setParts = append(setParts, "language_code = ?")
		args = append(args, *input.Language)
	}
	if len(setParts) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Нет полей для обновления"})
		return
	}

	query := "UPDATE users SET " + strings.Join(setParts, ", ") + " WHERE id = ?"
	args = append(args, userID)
	if _, err := h.DB.Exec(query, args...); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось обновить профиль"})
		return
	}
	h.GetMe(c)
}
