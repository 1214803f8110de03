package handlers

import (
	"errors"
	"log"

	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// respondServiceError translates service-layer errors into HTTP responses.
// Anything outside the known taxonomy is a 500; those are the only errors not
// surfaced verbatim to the caller.
func respondServiceError(c *fiber.Ctx, err error) error {
	var stockErr *services.InsufficientStockError
	var stateErr *services.StateConflictError

	switch {
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Resource not found",
			"error":   err.Error(),
		})
	case errors.Is(err, services.ErrPermissionDenied):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "Permission denied",
			"error":   err.Error(),
		})
	case errors.As(err, &stockErr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "Insufficient stock",
			"error":   stockErr.Error(),
		})
	case errors.As(err, &stateErr):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "Order is not in the required state",
			"error":   stateErr.Error(),
		})
	case errors.Is(err, services.ErrExpired):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Payment deadline has expired",
			"error":   err.Error(),
		})
	case errors.Is(err, services.ErrAlreadyClaimed),
		errors.Is(err, services.ErrCouponInactive),
		errors.Is(err, services.ErrInvalidCoupon),
		errors.Is(err, services.ErrSlipRequired),
		errors.Is(err, services.ErrAlreadyFavorited),
		errors.Is(err, services.ErrNoItemsSelected):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Request could not be processed",
			"error":   err.Error(),
		})
	default:
		log.Printf("Internal error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
			"error":   err.Error(),
		})
	}
}
