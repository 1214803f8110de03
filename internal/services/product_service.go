package services

import (
	"storefront/internal/models"
	"storefront/internal/repositories"
)

// ProductService exposes the catalog reads the storefront needs.
type ProductService struct {
	repo repositories.ProductRepository
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository) *ProductService {
	return &ProductService{
		repo: repo,
	}
}

// GetAllProducts retrieves all active products with their variants.
func (s *ProductService) GetAllProducts() ([]models.Product, error) {
	return s.repo.GetAll()
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(id string) (*models.Product, error) {
	return s.repo.GetByID(id)
}

// CreateProduct creates a new product with its variants. Used for seeding;
// catalog management proper lives outside this service.
func (s *ProductService) CreateProduct(product *models.Product) error {
	return s.repo.Create(product)
}
