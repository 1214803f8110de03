package models

import "time"

// Favorite is a wishlist entry. The (user, product) pair is unique, so
// favoriting the same product twice collapses to a single row.
type Favorite struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"user_id" gorm:"type:varchar(36);uniqueIndex:idx_favorite_user_product"`
	ProductID string    `json:"product_id" gorm:"type:varchar(36);uniqueIndex:idx_favorite_user_product"`
	CreatedAt time.Time `json:"created_at"`
	Product   Product   `json:"product,omitempty"`
}
