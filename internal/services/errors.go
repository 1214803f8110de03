package services

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the services. Handlers translate them to HTTP
// status codes; anything not in this taxonomy is treated as an internal error.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrExpired          = errors.New("payment deadline has expired")
	ErrAlreadyClaimed   = errors.New("coupon already claimed")
	ErrCouponInactive   = errors.New("coupon expired or unavailable")
	ErrInvalidCoupon    = errors.New("invalid coupon code")
	ErrSlipRequired     = errors.New("payment slip is required")
	ErrAlreadyFavorited = errors.New("product already in favorites")
)

// StateConflictError indicates an order transition was requested while the
// order is not in the required status.
type StateConflictError struct {
	Expected string
	Actual   string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("order status must be %q, but is %q", e.Expected, e.Actual)
}

// InsufficientStockError names the first cart line whose requested quantity
// exceeds the variant's available stock. Checkout aborts entirely on it.
type InsufficientStockError struct {
	ProductName string
	VariantID   string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (variant %s): requested %d, available %d",
		e.ProductName, e.VariantID, e.Requested, e.Available)
}
