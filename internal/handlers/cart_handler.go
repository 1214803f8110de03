package handlers

import (
	"log"

	"storefront/internal/middleware"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// CartHandler handles HTTP requests for the cart and for checkout.
type CartHandler struct {
	carts    *services.CartService
	checkout *services.CheckoutService
	validate *validator.Validate
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(carts *services.CartService, checkout *services.CheckoutService) *CartHandler {
	return &CartHandler{
		carts:    carts,
		checkout: checkout,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the cart and checkout routes with the Fiber app.
// All routes require authentication.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cartRoutes := router.Group("/cart")
	cartRoutes.Get("/", h.HandleGetCart)
	cartRoutes.Post("/items", h.HandleAddItem)
	cartRoutes.Patch("/items/:id", h.HandleUpdateItem)
	cartRoutes.Delete("/items/:id", h.HandleRemoveItem)
	cartRoutes.Post("/apply-coupon", h.HandleApplyCoupon)
	cartRoutes.Post("/remove-coupon", h.HandleRemoveCoupon)

	router.Post("/checkout", h.HandleCheckout)
}

// HandleGetCart returns the cart contents plus the live price breakdown.
func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	view, err := h.carts.Get(middleware.UserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(view)
}

// AddItemRequest represents the request body for adding a cart line.
type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	VariantID string `json:"variant_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

// HandleAddItem adds a line to the cart, or increments an existing one.
func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	var req AddItemRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing add-item request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidationError(c, err)
	}

	item, err := h.carts.AddItem(middleware.UserID(c), req.ProductID, req.VariantID, req.Quantity)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// HandleUpdateItem sets a cart line's quantity.
func (h *CartHandler) HandleUpdateItem(c *fiber.Ctx) error {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	item, err := h.carts.UpdateItemQuantity(middleware.UserID(c), c.Params("id"), req.Quantity)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(item)
}

// HandleRemoveItem deletes a cart line.
func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	if err := h.carts.RemoveItem(middleware.UserID(c), c.Params("id")); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CouponRequest represents the request body for applying or removing coupons.
// A single code and a list are both accepted.
type CouponRequest struct {
	Code  string   `json:"code"`
	Codes []string `json:"codes"`
}

func (r *CouponRequest) allCodes() []string {
	codes := r.Codes
	if r.Code != "" {
		codes = append(codes, r.Code)
	}
	return codes
}

// HandleApplyCoupon attaches coupons to the cart's two slots (one percent,
// one free-shipping) and returns the updated breakdown.
func (h *CartHandler) HandleApplyCoupon(c *fiber.Ctx) error {
	var req CouponRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	codes := req.allCodes()
	if len(codes) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "A coupon code is required",
		})
	}

	view, err := h.carts.ApplyCoupons(middleware.UserID(c), codes)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(view)
}

// HandleRemoveCoupon detaches one coupon by code, or all coupons when the
// body names none.
func (h *CartHandler) HandleRemoveCoupon(c *fiber.Ctx) error {
	var req CouponRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	view, err := h.carts.RemoveCoupon(middleware.UserID(c), req.Code)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(view)
}

// CheckoutRequest represents the request body for creating an order.
type CheckoutRequest struct {
	AddressID   string   `json:"address_id" validate:"required"`
	CartItemIDs []string `json:"cart_item_ids" validate:"required,min=1"`
	Carrier     string   `json:"carrier"`
}

// HandleCheckout creates a pending_payment order from the selected cart
// lines and returns it together with the bank-transfer instructions.
func (h *CartHandler) HandleCheckout(c *fiber.Ctx) error {
	var req CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing checkout request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidationError(c, err)
	}

	order, err := h.checkout.Checkout(middleware.UserID(c), req.AddressID, req.CartItemIDs, req.Carrier)
	if err != nil {
		return respondServiceError(c, err)
	}

	payment, err := h.checkout.ActivePaymentConfig()
	if err != nil {
		log.Printf("Error loading payment config: %v", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"order":            order,
		"payment_config":   payment,
		"requires_payment": true,
	})
}
