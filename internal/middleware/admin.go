package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminOnly rejects requests whose telegram id is not in the configured
// administrator list. Must run after TelegramAuth.
func AdminOnly(adminIDs []int64) gin.HandlerFunc {
	allowed := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		allowed[id] = true
	}

	return func(c *gin.Context) {
		if !allowed[TelegramID(c)] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Доступ только для администраторов"})
			return
		}
		c.Next()
	}
}
