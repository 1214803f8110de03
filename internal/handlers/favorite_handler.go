package handlers

import (
	"storefront/internal/middleware"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// FavoriteHandler handles the wishlist routes.
type FavoriteHandler struct {
	favorites *services.FavoriteService
	validate  *validator.Validate
}

// NewFavoriteHandler creates a new FavoriteHandler.
func NewFavoriteHandler(favorites *services.FavoriteService) *FavoriteHandler {
	return &FavoriteHandler{
		favorites: favorites,
		validate:  validator.New(),
	}
}

// RegisterRoutes registers the wishlist routes with the Fiber app. All routes
// require authentication.
func (h *FavoriteHandler) RegisterRoutes(router fiber.Router) {
	favoriteRoutes := router.Group("/favorites")
	favoriteRoutes.Get("/", h.HandleList)
	favoriteRoutes.Post("/", h.HandleAdd)
	favoriteRoutes.Delete("/:productID", h.HandleRemove)
}

// HandleList returns the user's wishlist, newest first.
func (h *FavoriteHandler) HandleList(c *fiber.Ctx) error {
	favorites, err := h.favorites.List(middleware.UserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(favorites)
}

// FavoriteRequest represents the request body for adding a favorite.
type FavoriteRequest struct {
	ProductID string `json:"product_id" validate:"required"`
}

// HandleAdd puts a product on the user's wishlist.
func (h *FavoriteHandler) HandleAdd(c *fiber.Ctx) error {
	var req FavoriteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidationError(c, err)
	}

	favorite, err := h.favorites.Add(middleware.UserID(c), req.ProductID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(favorite)
}

// HandleRemove takes a product off the user's wishlist.
func (h *FavoriteHandler) HandleRemove(c *fiber.Ctx) error {
	if err := h.favorites.Remove(middleware.UserID(c), c.Params("productID")); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
