package handlers

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"storefront/internal/middleware"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// OrderHandler handles the customer-facing order routes: history, slip
// upload, cancellation, and the payment instructions endpoint.
type OrderHandler struct {
	checkout  *services.CheckoutService
	uploadDir string
}

// NewOrderHandler creates a new OrderHandler. uploadDir is where payment
// slips are stored.
func NewOrderHandler(checkout *services.CheckoutService, uploadDir string) *OrderHandler {
	return &OrderHandler{
		checkout:  checkout,
		uploadDir: uploadDir,
	}
}

// RegisterRoutes registers the order routes with the Fiber app. All routes
// require authentication.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/history", h.HandleHistory)
	orderRoutes.Get("/:id", h.HandleGetOrder)
	orderRoutes.Post("/:id/upload-payment", h.HandleUploadPayment)
	orderRoutes.Post("/:id/cancel", h.HandleCancel)

	router.Get("/payment-config", h.HandlePaymentConfig)
}

// HandleHistory lists the user's orders, excluding those awaiting payment.
func (h *OrderHandler) HandleHistory(c *fiber.Ctx) error {
	orders, err := h.checkout.History(middleware.UserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(orders)
}

// HandleGetOrder returns one of the user's orders.
func (h *OrderHandler) HandleGetOrder(c *fiber.Ctx) error {
	order, err := h.checkout.GetOrder(middleware.UserID(c), c.Params("id"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(order)
}

// HandleUploadPayment accepts a multipart payment-slip image and attaches it
// to the order. The file is saved under the upload directory with a generated
// name; only the stored path goes to the service.
func (h *OrderHandler) HandleUploadPayment(c *fiber.Ctx) error {
	file, err := c.FormFile("payment_slip")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Payment slip is required",
			"error":   err.Error(),
		})
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Payment slip must be an image (jpg, png or webp)",
		})
	}

	slipPath := filepath.Join(h.uploadDir, fmt.Sprintf("%s%s", uuid.New().String(), ext))
	if err := c.SaveFile(file, slipPath); err != nil {
		log.Printf("Error saving payment slip: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not store payment slip",
			"error":   err.Error(),
		})
	}

	if err := h.checkout.UploadPaymentSlip(middleware.UserID(c), c.Params("id"), slipPath); err != nil {
		// The order did not take the slip; don't leave the file behind.
		if rmErr := os.Remove(slipPath); rmErr != nil {
			log.Printf("Error removing rejected payment slip %s: %v", slipPath, rmErr)
		}
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Payment slip uploaded successfully. Awaiting staff verification.",
	})
}

// HandleCancel cancels the user's own pending_payment order, restoring its
// lines to the cart.
func (h *OrderHandler) HandleCancel(c *fiber.Ctx) error {
	if err := h.checkout.Cancel(middleware.UserID(c), c.Params("id")); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Order cancelled successfully. Items restored to cart.",
	})
}

// HandlePaymentConfig returns the active bank-transfer details.
func (h *OrderHandler) HandlePaymentConfig(c *fiber.Ctx) error {
	cfg, err := h.checkout.ActivePaymentConfig()
	if err != nil {
		return respondServiceError(c, err)
	}
	if cfg == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "No active payment configuration",
		})
	}
	return c.JSON(cfg)
}
