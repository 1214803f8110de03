package handlers

import (
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// AdminOrderHandler handles the staff-only order transitions: approve,
// reject, ship, deliver, plus the review queue listing.
type AdminOrderHandler struct {
	checkout *services.CheckoutService
}

// NewAdminOrderHandler creates a new AdminOrderHandler.
func NewAdminOrderHandler(checkout *services.CheckoutService) *AdminOrderHandler {
	return &AdminOrderHandler{checkout: checkout}
}

// RegisterRoutes registers the staff routes. The router passed in must
// already carry AuthRequired and StaffRequired middleware.
func (h *AdminOrderHandler) RegisterRoutes(router fiber.Router) {
	adminRoutes := router.Group("/admin/orders")
	adminRoutes.Get("/", h.HandleList)
	adminRoutes.Post("/:id/approve", h.HandleApprove)
	adminRoutes.Post("/:id/reject", h.HandleReject)
	adminRoutes.Post("/:id/ship", h.HandleShip)
	adminRoutes.Post("/:id/deliver", h.HandleDeliver)
}

// HandleList lists orders, optionally filtered by ?status=<status>.
func (h *AdminOrderHandler) HandleList(c *fiber.Ctx) error {
	orders, err := h.checkout.ListByStatus(c.Query("status"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(orders)
}

// HandleApprove verifies the payment slip: the order moves to
// payment_verified and its stock decrement commits.
func (h *AdminOrderHandler) HandleApprove(c *fiber.Ctx) error {
	order, err := h.checkout.Approve(c.Params("id"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Payment approved",
		"order":   order,
	})
}

// HandleReject refuses the payment slip: the order is deleted and its lines
// restored to the customer's cart.
func (h *AdminOrderHandler) HandleReject(c *fiber.Ctx) error {
	if err := h.checkout.Reject(c.Params("id")); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Order rejected and deleted. Items restored to the customer's cart.",
	})
}

// HandleShip moves a payment_verified order to shipped.
func (h *AdminOrderHandler) HandleShip(c *fiber.Ctx) error {
	if err := h.checkout.MarkShipped(c.Params("id")); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Order marked as shipped",
	})
}

// HandleDeliver moves a shipped order to delivered.
func (h *AdminOrderHandler) HandleDeliver(c *fiber.Ctx) error {
	if err := h.checkout.MarkDelivered(c.Params("id")); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Order marked as delivered",
	})
}
