package models

import "time"

// Cart is the pre-checkout basket, owned 1:1 by a user and created lazily on
// first access. The two coupon slots are explicit cart state: at most one
// percent coupon and one free-shipping coupon may be attached at a time.
type Cart struct {
	ID                   string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID               string     `json:"user_id" gorm:"uniqueIndex;type:varchar(36)"`
	PercentCouponID      *string    `json:"percent_coupon_id" gorm:"type:varchar(36)"`
	FreeShippingCouponID *string    `json:"free_shipping_coupon_id" gorm:"type:varchar(36)"`
	PercentCoupon        *Coupon    `json:"percent_coupon,omitempty" gorm:"foreignKey:PercentCouponID"`
	FreeShippingCoupon   *Coupon    `json:"free_shipping_coupon,omitempty" gorm:"foreignKey:FreeShippingCouponID"`
	Items                []CartItem `json:"items" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// CartItem is a (product, variant, quantity) line in a cart. A variant appears
// at most once per cart; re-adding it increments the quantity instead.
type CartItem struct {
	ID        string  `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CartID    string  `json:"cart_id" gorm:"type:varchar(36);uniqueIndex:idx_cart_product_variant"`
	ProductID string  `json:"product_id" gorm:"type:varchar(36);uniqueIndex:idx_cart_product_variant"`
	VariantID string  `json:"variant_id" gorm:"type:varchar(36);uniqueIndex:idx_cart_product_variant"`
	Quantity  int     `json:"quantity" validate:"gte=1"`
	Product   Product `json:"product,omitempty"`
	Variant   Variant `json:"variant,omitempty"`
}
