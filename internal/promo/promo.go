package promo

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bloommarket/internal/models"
)

// Input is everything the validation chain needs to judge a code.
type Input struct {
	Code         string
	ShopID       int64
	Subtotal     float64
	IsFirstOrder bool
	UserID       int64
}

// Result is either a rejection with a user-facing message or an accepted
// promo with its computed discount.
type Result struct {
	Valid          bool           `json:"valid"`
	Message        string         `json:"message,omitempty"`
	Promo          *models.Promo  `json:"promo,omitempty"`
	DiscountAmount float64        `json:"discountAmount"`
	DiscountType   string         `json:"discountType,omitempty"`
}

func invalid(message string) Result {
	return Result{Valid: false, Message: message}
}

// formatAmount renders a money threshold without trailing zeros, so 3000.00
// prints as "3000".
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Validate runs the ordered rule chain. Order matters: the first failing
// rule produces the message. usage_count is NOT incremented here; the order
// engine does that only when a real order is placed with the code.
func Validate(db *sql.DB, in Input) (Result, error) {
	code := strings.ToUpper(strings.TrimSpace(in.Code))

	var p models.Promo
	err := db.QueryRow(
		`SELECT id, code, promo_type, value, min_order_amount, valid_from, valid_until,
		        shop_id, use_once, first_order_only, max_uses, usage_count, is_active
		 FROM promos WHERE code = ? AND is_active = TRUE`,
		code,
	).Scan(
		&p.ID, &p.Code, &p.PromoType, &p.Value, &p.MinOrderAmount, &p.ValidFrom, &p.ValidUntil,
		&p.ShopID, &p.UseOnce, &p.FirstOrderOnly, &p.MaxUses, &p.UsageCount, &p.IsActive,
	)
	if err == sql.ErrNoRows {
		return invalid("Промокод не найден"), nil
	}
	if err != nil {
		return Result{}, err
	}

	today := time.Now().Truncate(24 * time.Hour)
	if p.ValidFrom != nil && p.ValidFrom.After(today) {
		return invalid("Промокод еще не начал действовать"), nil
	}
	if p.ValidUntil != nil && p.ValidUntil.Before(today) {
		return invalid("Промокод истек"), nil
	}

	if p.MinOrderAmount != nil && in.Subtotal < *p.MinOrderAmount {
		return invalid(fmt.Sprintf("Минимальная сумма заказа для промокода: %s ₽", formatAmount(*p.MinOrderAmount))), nil
	}

	if p.ShopID != nil && *p.ShopID != in.ShopID {
		return invalid("Промокод не действует в этом магазине"), nil
	}

	if p.FirstOrderOnly && !in.IsFirstOrder {
		return invalid("Промокод действует только на первый заказ"), nil
	}

	if p.MaxUses != nil && p.UsageCount >= *p.MaxUses {
		return invalid("Промокод больше не действует"), nil
	}

	if p.UseOnce {
		var used int
		err := db.QueryRow(
			"SELECT COUNT(*) FROM orders WHERE user_id = ? AND promo_code = ?",
			in.UserID, code,
		).Scan(&used)
		if err != nil {
			return Result{}, err
		}
		if used > 0 {
			return invalid("Вы уже использовали этот промокод"), nil
		}
	}

	return Result{
		Valid:          true,
		Promo:          &p,
		DiscountAmount: Discount(&p, in.Subtotal),
		DiscountType:   p.PromoType,
	}, nil
}

// Discount computes the discount amount for an already-accepted promo.
// free_delivery yields 0: the caller zeroes the delivery fee instead.
func Discount(p *models.Promo, subtotal float64) float64 {
	sub := decimal.NewFromFloat(subtotal)
	value := decimal.NewFromFloat(p.Value)

	switch p.PromoType {
	case models.PromoPercent:
		d := sub.Mul(value).Div(decimal.NewFromInt(100)).Round(2)
		f, _ := d.Float64()
		return f
	case models.PromoFixed:
		if value.GreaterThan(sub) {
			f, _ := sub.Float64()
			return f
		}
		f, _ := value.Float64()
		return f
	case models.PromoFreeDelivery:
		return 0
	default:
		return 0
	}
}

// IncrementUsage bumps usage_count after a real order is placed with the
// code. Executes inside the caller's transaction.
func IncrementUsage(tx *sql.Tx, promoID int64) error {
	_, err := tx.Exec("UPDATE promos SET usage_count = usage_count + 1 WHERE id = ?", promoID)
	return err
}
