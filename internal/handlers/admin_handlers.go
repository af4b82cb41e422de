package handlers

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bloommarket/internal/models"
)

// AdminListApplications lists shop applications, optionally filtered by
// status.
func (h *Handlers) AdminListApplications(c *gin.Context) {
	query := `
		SELECT id, telegram_id, shop_name, description, address, phone,
		       owner_name, owner_phone, owner_username, photo_path, status, shop_id, created_at, updated_at
		FROM shop_applications`
	args := []interface{}{}
	if status := c.Query("status"); status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := h.DB.Query(query, args...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить заявки"})
		return
	}
	defer rows.Close()

	apps := []models.ShopApplication{}
	for rows.Next() {
		var a models.ShopApplication
		if err := rows.Scan(&a.ID, &a.TelegramID, &a.ShopName, &a.Description,
			&a.Address, &a.Phone, &a.OwnerName, &a.OwnerPhone, &a.OwnerUsername,
			&a.PhotoPath, &a.Status, &a.ShopID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить заявки"})
			return
		}
		apps = append(apps, a)
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps, "count": len(apps)})
}

type DecideApplicationInput struct {
	Approve bool `json:"approve"`
}

// AdminDecideApplication is the HTTP mirror of the chat moderation
// buttons. Chat notifications to the applicant go out only through the bot
// process; the HTTP path changes state only.
func (h *Handlers) AdminDecideApplication(c *gin.Context) {
	appID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный id заявки"})
		return
	}

	var input DecideApplicationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var a models.ShopApplication
	err = h.DB.QueryRow(`
		SELECT id, telegram_id, shop_name, description, address, phone,
		       owner_name, owner_phone, owner_username, photo_path, status
		FROM shop_applications WHERE id = ?`, appID).
		Scan(&a.ID, &a.TelegramID, &a.ShopName, &a.Description, &a.Address, &a.Phone,
			&a.OwnerName, &a.OwnerPhone, &a.OwnerUsername, &a.PhotoPath, &a.Status)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "Заявка не найдена"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить заявку"})
		return
	}
	if a.Status != models.ApplicationPending {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Заявка уже обработана"})
		return
	}

	if !input.Approve {
		if _, err := h.DB.Exec(
			`UPDATE shop_applications SET status = 'rejected' WHERE id = ?`, appID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось обновить заявку"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Заявка отклонена"})
		return
	}

	ownerID, err := h.findOrCreateApplicant(&a)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось создать пользователя"})
		return
	}
	shopID, err := h.materializeShop(ownerID, &a)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось создать магазин"})
		return
	}
	if _, err := h.DB.Exec(
		`UPDATE shop_applications SET status = 'approved', shop_id = ? WHERE id = ?`,
		shopID, appID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось обновить заявку"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Заявка одобрена", "shopId": shopID})
}

func (h *Handlers) findOrCreateApplicant(a *models.ShopApplication) (int64, error) {
	var id int64
	err := h.DB.QueryRow(`SELECT id FROM users WHERE telegram_id = ?`, a.TelegramID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	res, err := h.DB.Exec(`
		INSERT INTO users (telegram_id, username, first_name, phone)
		VALUES (?, ?, ?, ?)`,
		a.TelegramID, a.OwnerUsername, a.OwnerName, a.OwnerPhone)
	if err != nil {
		if qerr := h.DB.QueryRow(`SELECT id FROM users WHERE telegram_id = ?`, a.TelegramID).Scan(&id); qerr == nil {
			return id, nil
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (h *Handlers) materializeShop(ownerID int64, a *models.ShopApplication) (int64, error) {
	var shopID int64
	err := h.DB.QueryRow(`SELECT id FROM shops WHERE owner_id = ?`, ownerID).Scan(&shopID)
	switch {
	case err == nil:
		if _, err := h.DB.Exec(`
			UPDATE shops SET name = ?, description = ?, address = ?, phone = ?, is_active = TRUE
			WHERE id = ?`, a.ShopName, a.Description, a.Address, a.Phone, shopID); err != nil {
			return 0, err
		}
	case err == sql.ErrNoRows:
		res, err := h.DB.Exec(`
			INSERT INTO shops (owner_id, name, description, address, phone, is_active)
			VALUES (?, ?, ?, ?, ?, TRUE)`,
			ownerID, a.ShopName, a.Description, a.Address, a.Phone)
		if err != nil {
			return 0, err
		}
		shopID, err = res.LastInsertId()
		if err != nil {
			return 0, err
		}
	default:
		return 0, err
	}

	if a.PhotoPath != nil && *a.PhotoPath != "" {
		url, err := h.Media.MigrateRequestPhoto(*a.PhotoPath, shopID)
		if err != nil {
			log.Printf("Application photo migration failed for shop %d: %v", shopID, err)
		} else if _, err := h.DB.Exec(`UPDATE shops SET photo_url = ? WHERE id = ?`, url, shopID); err != nil {
			log.Printf("Shop photo url update failed for shop %d: %v", shopID, err)
		}
	}
	return shopID, nil
}

type SetShopActiveInput struct {
	IsActive bool `json:"isActive"`
}

// AdminSetShopActive flips a shop's active flag.
func (h *Handlers) AdminSetShopActive(c *gin.Context) {
	shopID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный id магазина"})
		return
	}

	var input SetShopActiveInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.DB.Exec(`UPDATE shops SET is_active = ? WHERE id = ?`, input.IsActive, shopID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось обновить магазин"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Магазин не найден"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Магазин обновлен"})
}

// AdminVerifyShop marks a shop verified.
func (h *Handlers) AdminVerifyShop(c *gin.Context) {
	shopID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный id магазина"})
		return
	}

	res, err := h.DB.Exec(`UPDATE shops SET is_verified = TRUE WHERE id = ?`, shopID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось обновить магазин"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Магазин не найден"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Магазин верифицирован"})
}

// AdminStats returns platform-wide counters.
func (h *Handlers) AdminStats(c *gin.Context) {
	stats := gin.H{}

	counters := []struct {
		key   string
		query string
	}{
		{"users", "SELECT COUNT(*) FROM users"},
		{"shops", "SELECT COUNT(*) FROM shops"},
		{"activeShops", "SELECT COUNT(*) FROM shops WHERE is_active = TRUE"},
		{"products", "SELECT COUNT(*) FROM products"},
		{"orders", "SELECT COUNT(*) FROM orders"},
		{"pendingApplications", "SELECT COUNT(*) FROM shop_applications WHERE status = 'pending'"},
		{"activeSubscriptions", "SELECT COUNT(*) FROM subscriptions WHERE is_active = TRUE AND end_date > NOW()"},
	}
	for _, counter := range counters {
		var n int
		if err := h.DB.QueryRow(counter.query).Scan(&n); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось посчитать статистику"})
			return
		}
		stats[counter.key] = n
	}

	var revenue float64
	if err := h.DB.QueryRow(
		`SELECT COALESCE(SUM(total), 0) FROM orders WHERE status = 'delivered'`).Scan(&revenue); err == nil {
		stats["deliveredRevenue"] = revenue
	}

	c.JSON(http.StatusOK, stats)
}
