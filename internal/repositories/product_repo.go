package repositories

import (
	"storefront/internal/models"
)

// ProductRepository defines the interface for catalog data access. The
// catalog itself is maintained out of band; the checkout core only reads
// products and variants, plus Create for seeding.
type ProductRepository interface {
	GetAll() ([]models.Product, error)
	GetByID(id string) (*models.Product, error)
	GetVariant(id string) (*models.Variant, error)
	Create(product *models.Product) error
}
