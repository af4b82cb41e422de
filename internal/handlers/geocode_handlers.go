package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// cityAliases parses the configured "alias=city" pairs once per call; the
// list is tiny.
func (h *Handlers) cityAliases() map[string]string {
	aliases := map[string]string{}
	for _, pair := range strings.Split(h.Cfg.Geo.CityAliases, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			aliases[strings.ToLower(parts[0])] = parts[1]
		}
	}
	return aliases
}

// expandCityAliases rewrites known short city names in a free-form query,
// turning "екб ленина 5" into "Екатеринбург ленина 5", before forwarding
// upstream.
func (h *Handlers) expandCityAliases(query string) string {
	aliases := h.cityAliases()
	words := strings.Fields(query)
	for i, w := range words {
		if full, ok := aliases[strings.ToLower(w)]; ok {
			words[i] = full
		}
	}
	return strings.Join(words, " ")
}

// proxyGeo forwards a request to the geocoding upstream and relays the
// JSON body. Timeouts surface as 504.
func (h *Handlers) proxyGeo(c *gin.Context, path string, params url.Values, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	params.Set("format", "json")
	upstream := strings.TrimRight(h.Cfg.Geo.BaseURL, "/") + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstream, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось обратиться к геокодеру"})
		return
	}
	req.Header.Set("User-Agent", "bloommarket/1.0")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Геокодер не ответил вовремя"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Геокодер недоступен"})
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Геокодер недоступен"})
		return
	}
	c.Data(resp.StatusCode, "application/json", body)
}

// GeocodeAutocomplete suggests addresses while the user types. Short
// timeout: a slow suggestion is a useless suggestion.
func (h *Handlers) GeocodeAutocomplete(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Параметр q обязателен"})
		return
	}

	params := url.Values{}
	params.Set("q", h.expandCityAliases(query))
	params.Set("limit", "5")
	params.Set("addressdetails", "1")
	h.proxyGeo(c, "/search", params, 5*time.Second)
}

// Geocode resolves a full address to coordinates.
func (h *Handlers) Geocode(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Параметр q обязателен"})
		return
	}

	params := url.Values{}
	params.Set("q", h.expandCityAliases(query))
	params.Set("limit", "1")
	params.Set("addressdetails", "1")
	h.proxyGeo(c, "/search", params, 10*time.Second)
}

// GeocodeReverse resolves coordinates to an address.
func (h *Handlers) GeocodeReverse(c *gin.Context) {
	lat := c.Query("lat")
	lon := c.Query("lon")
	if lat == "" || lon == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Параметры lat и lon обязательны"})
		return
	}

	params := url.Values{}
	params.Set("lat", lat)
	params.Set("lon", lon)
	h.proxyGeo(c, "/reverse", params, 10*time.Second)
}
