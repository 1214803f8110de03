package handlers

import (
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ReviewHandler handles product review routes.
type ReviewHandler struct {
	reviews  *services.ReviewService
	validate *validator.Validate
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(reviews *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{
		reviews:  reviews,
		validate: validator.New(),
	}
}

// RegisterPublicRoutes registers the read-only review routes.
func (h *ReviewHandler) RegisterPublicRoutes(router fiber.Router) {
	router.Get("/reviews", h.HandleList)
}

// RegisterRoutes registers the authenticated review routes.
func (h *ReviewHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/reviews", h.HandleCreate)
}

// HandleList returns reviews, optionally filtered by ?product=<id>.
func (h *ReviewHandler) HandleList(c *fiber.Ctx) error {
	reviews, err := h.reviews.ListByProduct(c.Query("product"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(reviews)
}

// ReviewRequest represents the request body for creating a review.
type ReviewRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Rating    int    `json:"rating" validate:"gte=1,lte=5"`
	Comment   string `json:"comment" validate:"omitempty,max=1000"`
}

// HandleCreate stores a review. Only buyers with a delivered order containing
// the product may review it.
func (h *ReviewHandler) HandleCreate(c *fiber.Ctx) error {
	var req ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidationError(c, err)
	}

	review := models.Review{
		UserID:    middleware.UserID(c),
		ProductID: req.ProductID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}
	if err := h.reviews.Create(&review); err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(review)
}
