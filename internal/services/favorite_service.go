package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"storefront/internal/models"
)

// FavoriteService manages the user's wishlist.
type FavoriteService struct {
	db *gorm.DB
}

// NewFavoriteService creates a FavoriteService.
func NewFavoriteService(db *gorm.DB) *FavoriteService {
	return &FavoriteService{db: db}
}

// Add puts a product on the user's wishlist. The unique index on
// (user_id, product_id) makes a repeat surface as ErrAlreadyFavorited.
func (s *FavoriteService) Add(userID, productID string) (*models.Favorite, error) {
	var product models.Product
	if err := s.db.First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load product %s: %w", productID, err)
	}

	favorite := models.Favorite{
		ID:        uuid.New().String(),
		UserID:    userID,
		ProductID: productID,
	}
	if err := s.db.Create(&favorite).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyFavorited
		}
		return nil, fmt.Errorf("failed to create favorite: %w", err)
	}
	favorite.Product = product
	return &favorite, nil
}

// List returns the user's wishlist, newest first, with products preloaded.
func (s *FavoriteService) List(userID string) ([]models.Favorite, error) {
	var favorites []models.Favorite
	err := s.db.Preload("Product").Preload("Product.Variants").
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&favorites).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	return favorites, nil
}

// Remove takes a product off the user's wishlist.
func (s *FavoriteService) Remove(userID, productID string) error {
	res := s.db.Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.Favorite{})
	if res.Error != nil {
		return fmt.Errorf("failed to remove favorite: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
