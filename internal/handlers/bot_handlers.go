package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// GetBotInfo exposes the bot's public coordinates so the web app can build
// deep links without hardcoding them.
func (h *Handlers) GetBotInfo(c *gin.Context) {
	username := ""
	if u, err := url.Parse(h.Cfg.Bot.WebAppURL); err == nil {
		// first path segment of https://t.me/<bot>/<app>
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) > 0 {
			username = parts[0]
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"username":  username,
		"webAppUrl": h.Cfg.Bot.WebAppURL,
		"configured": h.Cfg.Bot.Token != "",
	})
}
