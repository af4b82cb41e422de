package middleware

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Context keys set by the auth middlewares.
const (
	CtxUserID     = "userID"
	CtxTelegramID = "telegramID"
)

// lookupOrCreateUser resolves a telegram id to an internal user id,
// creating the row on first contact (dev-mode auth; see config for the
// strict-mode reservation).
func lookupOrCreateUser(db *sql.DB, telegramID int64) (int64, error) {
	var userID int64
	err := db.QueryRow("SELECT id FROM users WHERE telegram_id = ?", telegramID).Scan(&userID)
	if err == nil {
		return userID, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	result, err := db.Exec(
		"INSERT INTO users (telegram_id, first_name) VALUES (?, '')",
		telegramID,
	)
	if err != nil {
		// Lost a race with a concurrent first request; re-read.
		if err2 := db.QueryRow("SELECT id FROM users WHERE telegram_id = ?", telegramID).Scan(&userID); err2 == nil {
			return userID, nil
		}
		return 0, err
	}
	return result.LastInsertId()
}

// TelegramAuth requires a numeric X-Telegram-ID header, auto-creating the
// user row. It sets userID and telegramID on the request context.
func TelegramAuth(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-Telegram-ID")
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Требуется заголовок X-Telegram-ID"})
			return
		}
		telegramID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Некорректный X-Telegram-ID"})
			return
		}

		userID, err := lookupOrCreateUser(db, telegramID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Не удалось определить пользователя"})
			return
		}

		c.Set(CtxUserID, userID)
		c.Set(CtxTelegramID, telegramID)
		c.Next()
	}
}

// OptionalTelegramAuth resolves the header when present and passes through
// anonymously otherwise. Public reads use it for personalized flags.
func OptionalTelegramAuth(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-Telegram-ID")
		if raw != "" {
			if telegramID, err := strconv.ParseInt(raw, 10, 64); err == nil {
				if userID, err := lookupOrCreateUser(db, telegramID); err == nil {
					c.Set(CtxUserID, userID)
					c.Set(CtxTelegramID, telegramID)
				}
			}
		}
		c.Next()
	}
}

// UserID returns the authenticated internal user id, or 0 for anonymous
// requests.
func UserID(c *gin.Context) int64 {
	if v, ok := c.Get(CtxUserID); ok {
		return v.(int64)
	}
	return 0
}

// TelegramID returns the authenticated telegram id, or 0.
func TelegramID(c *gin.Context) int64 {
	if v, ok := c.Get(CtxTelegramID); ok {
		return v.(int64)
	}
	return 0
}
