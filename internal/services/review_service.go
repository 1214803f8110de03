package services

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"storefront/internal/models"
)

// ReviewService manages product reviews. Reviews are gated on delivery: a
// user may only review products that appear in one of their delivered orders.
type ReviewService struct {
	db *gorm.DB
}

// NewReviewService creates a ReviewService.
func NewReviewService(db *gorm.DB) *ReviewService {
	return &ReviewService{db: db}
}

// Create stores a review after verifying the user has a delivered order
// containing the product.
func (s *ReviewService) Create(review *models.Review) error {
	var n int64
	err := s.db.Model(&models.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.user_id = ? AND orders.status = ? AND order_items.product_id = ?",
			review.UserID, models.StatusDelivered, review.ProductID).
		Count(&n).Error
	if err != nil {
		return fmt.Errorf("failed to check purchase history: %w", err)
	}
	if n == 0 {
		return ErrPermissionDenied
	}

	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	if err := s.db.Create(review).Error; err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

// ListByProduct returns a product's reviews, newest first.
func (s *ReviewService) ListByProduct(productID string) ([]models.Review, error) {
	var reviews []models.Review
	q := s.db.Order("created_at desc")
	if productID != "" {
		q = q.Where("product_id = ?", productID)
	}
	if err := q.Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}
