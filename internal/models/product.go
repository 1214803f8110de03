package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product represents a product in the store catalog.
type Product struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name        string          `json:"name" validate:"required,min=3,max=100"`
	Description string          `json:"description" validate:"omitempty,max=500"`
	BasePrice   decimal.Decimal `json:"base_price" gorm:"type:decimal(10,2)"`
	SalePercent int             `json:"sale_percent" validate:"gte=0,lte=100"`
	ImageURL    string          `json:"image_url" gorm:"type:varchar(512)"`
	IsActive    bool            `json:"is_active" gorm:"default:true"`
	Variants    []Variant       `json:"variants,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	gorm.Model                  // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}

// SalePrice is the product's always-on discounted unit price, rounded to two
// decimal places. It is independent of any coupon.
func (p *Product) SalePrice() decimal.Decimal {
	if p.SalePercent <= 0 {
		return p.BasePrice.Round(2)
	}
	factor := decimal.NewFromInt(int64(100 - p.SalePercent)).Div(decimal.NewFromInt(100))
	return p.BasePrice.Mul(factor).Round(2)
}

// Variant is a sellable variation of a product (color/size) carrying the
// stock counter. Stock must never go negative; all writes go through the
// inventory service's conditional updates.
type Variant struct {
	ID        string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ProductID string `json:"product_id" gorm:"type:varchar(36);uniqueIndex:idx_variant_product_color_size"`
	Color     string `json:"color" gorm:"type:varchar(64);uniqueIndex:idx_variant_product_color_size"`
	Size      string `json:"size" gorm:"type:varchar(16);uniqueIndex:idx_variant_product_color_size"`
	Stock     int    `json:"stock" validate:"gte=0"`
}
