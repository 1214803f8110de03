package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"storefront/internal/middleware"
	"storefront/internal/services"
)

// CouponHandler handles the coupon center, claiming, and price preview.
type CouponHandler struct {
	coupons *services.CouponService
}

// NewCouponHandler creates a new CouponHandler.
func NewCouponHandler(coupons *services.CouponService) *CouponHandler {
	return &CouponHandler{coupons: coupons}
}

// RegisterPublicRoutes registers the routes that need no authentication.
func (h *CouponHandler) RegisterPublicRoutes(router fiber.Router) {
	router.Get("/coupons/center", h.HandleCenter)
}

// RegisterRoutes registers the authenticated coupon routes.
func (h *CouponHandler) RegisterRoutes(router fiber.Router) {
	couponRoutes := router.Group("/coupons")
	couponRoutes.Post("/:id/claim", h.HandleClaim)
	couponRoutes.Get("/mine", h.HandleMine)
	couponRoutes.Post("/price-preview", h.HandlePricePreview)
}

// HandleCenter lists claimable coupons with their remaining quota.
func (h *CouponHandler) HandleCenter(c *fiber.Ctx) error {
	coupons, err := h.coupons.ActiveCoupons(middleware.UserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}

	rows := make([]fiber.Map, len(coupons))
	for i, cp := range coupons {
		rows[i] = fiber.Map{
			"id":            cp.ID,
			"code":          cp.Code,
			"discount_type": cp.Kind,
			"percent_off":   cp.PercentOff,
			"min_spend":     cp.MinSpend,
			"valid_to":      cp.ValidTo,
			"remaining":     cp.Remaining(),
			"claimed":       cp.Claimed,
		}
	}
	return c.JSON(rows)
}

// HandleClaim records the user's one-time claim of a coupon.
func (h *CouponHandler) HandleClaim(c *fiber.Ctx) error {
	if err := h.coupons.Claim(middleware.UserID(c), c.Params("id")); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Coupon claimed",
	})
}

// HandleMine lists the user's claimed, still-valid, unused coupons grouped
// by kind.
func (h *CouponHandler) HandleMine(c *fiber.Ctx) error {
	claims, err := h.coupons.MyCoupons(middleware.UserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}

	percent := make([]fiber.Map, 0)
	freeShipping := make([]fiber.Map, 0)
	for _, cl := range claims {
		row := fiber.Map{
			"code":          cl.Coupon.Code,
			"discount_type": cl.Coupon.Kind,
			"percent_off":   cl.Coupon.PercentOff,
			"min_spend":     cl.Coupon.MinSpend,
			"valid_to":      cl.Coupon.ValidTo,
		}
		if cl.Coupon.Kind == "percent" {
			percent = append(percent, row)
		} else {
			freeShipping = append(freeShipping, row)
		}
	}
	return c.JSON(fiber.Map{
		"percent":       percent,
		"free_shipping": freeShipping,
	})
}

// PricePreviewRequest represents the request body for a real-time price
// preview from arbitrary coupon codes, without touching the cart.
type PricePreviewRequest struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	CouponCodes []string        `json:"coupon_codes"`
}

// HandlePricePreview computes a price breakdown for the given subtotal and
// coupon codes. It has no side effects and is safe to call on every keystroke.
func (h *CouponHandler) HandlePricePreview(c *fiber.Ctx) error {
	var req PricePreviewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid subtotal/shipping_fee",
			"error":   err.Error(),
		})
	}

	breakdown, applied, err := h.coupons.Preview(middleware.UserID(c), req.Subtotal, req.ShippingFee, req.CouponCodes)
	if err != nil {
		return respondServiceError(c, err)
	}

	appliedRows := make([]fiber.Map, len(applied))
	for i, cp := range applied {
		row := fiber.Map{
			"code":          cp.Code,
			"discount_type": cp.Kind,
		}
		if cp.Kind == "percent" {
			row["percent_off"] = cp.PercentOff
		}
		appliedRows[i] = row
	}

	return c.JSON(fiber.Map{
		"applied_coupons":  appliedRows,
		"discount_percent": breakdown.DiscountPercent,
		"discount_amount":  breakdown.DiscountAmount,
		"free_shipping":    breakdown.FreeShipping,
		"shipping_fee":     breakdown.ShippingFee,
		"subtotal":         breakdown.Subtotal,
		"total":            breakdown.Total,
	})
}
