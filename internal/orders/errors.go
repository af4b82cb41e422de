package orders

import (
	"errors"
	"fmt"
)

// Not-found sentinels map to 404 at the HTTP boundary.
var (
	ErrOrderNotFound   = errors.New("Заказ не найден")
	ErrShopNotFound    = errors.New("Магазин не найден")
	ErrProductNotFound = errors.New("Товар не найден")
)

// RuleError is a business-rule violation with a user-facing message in the
// caller's language. Maps to 400 at the HTTP boundary.
type RuleError struct {
	Message string
}

func (e *RuleError) Error() string { return e.Message }

func ruleErrorf(format string, args ...interface{}) *RuleError {
	return &RuleError{Message: fmt.Sprintf(format, args...)}
}
