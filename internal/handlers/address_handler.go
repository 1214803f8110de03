package handlers

import (
	"log"
	"strings"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AddressHandler handles HTTP requests for shipping addresses.
type AddressHandler struct {
	addresses repositories.AddressRepository
	validate  *validator.Validate
}

// NewAddressHandler creates a new AddressHandler.
func NewAddressHandler(addresses repositories.AddressRepository) *AddressHandler {
	return &AddressHandler{
		addresses: addresses,
		validate:  validator.New(),
	}
}

// RegisterRoutes registers the address routes with the Fiber app. All routes
// require authentication.
func (h *AddressHandler) RegisterRoutes(router fiber.Router) {
	addressRoutes := router.Group("/addresses")
	addressRoutes.Get("/", h.HandleList)
	addressRoutes.Post("/", h.HandleCreate)
	addressRoutes.Patch("/:id", h.HandleUpdate)
	addressRoutes.Delete("/:id", h.HandleDelete)
}

// HandleList returns the user's addresses, default first.
func (h *AddressHandler) HandleList(c *fiber.Ctx) error {
	addresses, err := h.addresses.ListByUser(middleware.UserID(c))
	if err != nil {
		log.Printf("Error listing addresses: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve addresses",
			"error":   err.Error(),
		})
	}
	return c.JSON(addresses)
}

// HandleCreate stores a new address for the user.
func (h *AddressHandler) HandleCreate(c *fiber.Ctx) error {
	var address models.Address
	if err := c.BodyParser(&address); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(address); err != nil {
		return respondValidationError(c, err)
	}

	address.ID = ""
	address.UserID = middleware.UserID(c)
	if err := h.addresses.Create(&address); err != nil {
		log.Printf("Error creating address: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not create address",
			"error":   err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(address)
}

// HandleUpdate patches one of the user's addresses.
func (h *AddressHandler) HandleUpdate(c *fiber.Ctx) error {
	address, err := h.addresses.GetOwned(c.Params("id"), middleware.UserID(c))
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Address not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve address",
			"error":   err.Error(),
		})
	}

	if err := c.BodyParser(address); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	// Ownership fields are not client-writable.
	address.ID = c.Params("id")
	address.UserID = middleware.UserID(c)

	if err := h.validate.Struct(*address); err != nil {
		return respondValidationError(c, err)
	}
	if err := h.addresses.Update(address); err != nil {
		log.Printf("Error updating address: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not update address",
			"error":   err.Error(),
		})
	}
	return c.JSON(address)
}

// HandleDelete removes one of the user's addresses.
func (h *AddressHandler) HandleDelete(c *fiber.Ctx) error {
	if err := h.addresses.DeleteOwned(c.Params("id"), middleware.UserID(c)); err != nil {
		if strings.Contains(err.Error(), "not found") {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Address not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not delete address",
			"error":   err.Error(),
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
