package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storefront/internal/models"
)

// CartService manages the pre-checkout basket: lines, the two coupon slots,
// and the live price preview.
type CartService struct {
	db          *gorm.DB
	coupons     *CouponService
	shippingFee decimal.Decimal
}

// NewCartService creates a CartService.
func NewCartService(db *gorm.DB, coupons *CouponService, shippingFee decimal.Decimal) *CartService {
	return &CartService{db: db, coupons: coupons, shippingFee: shippingFee}
}

// CartView is a cart with its live price breakdown computed by the same
// pricing function checkout uses.
type CartView struct {
	models.Cart
	Pricing PriceBreakdown `json:"pricing"`
}

// Get returns the user's cart (creating it lazily) with products, variants,
// coupons and the current price preview.
func (s *CartService) Get(userID string) (*CartView, error) {
	if _, err := ensureCart(s.db, userID); err != nil {
		return nil, err
	}

	var cart models.Cart
	err := s.db.Preload("Items").Preload("Items.Product").Preload("Items.Variant").
		Preload("PercentCoupon").Preload("FreeShippingCoupon").
		First(&cart, "user_id = ?", userID).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	lines := make([]PriceLine, len(cart.Items))
	for i, it := range cart.Items {
		lines[i] = PriceLine{UnitPrice: it.Product.SalePrice(), Quantity: it.Quantity}
	}
	return &CartView{
		Cart:    cart,
		Pricing: Price(lines, cart.PercentCoupon, cart.FreeShippingCoupon, s.shippingFee),
	}, nil
}

// AddItem adds a (product, variant, quantity) line to the user's cart.
// Re-adding an existing variant increments its quantity instead of creating a
// duplicate line.
func (s *CartService) AddItem(userID, productID, variantID string, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		quantity = 1
	}

	var variant models.Variant
	if err := s.db.First(&variant, "id = ? AND product_id = ?", variantID, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load variant %s: %w", variantID, err)
	}

	var item models.CartItem
	err := s.db.Transaction(func(tx *gorm.DB) error {
		cart, err := ensureCart(tx, userID)
		if err != nil {
			return err
		}

		res := tx.Model(&models.CartItem{}).
			Where("cart_id = ? AND product_id = ? AND variant_id = ?", cart.ID, productID, variantID).
			UpdateColumn("quantity", gorm.Expr("quantity + ?", quantity))
		if res.Error != nil {
			return fmt.Errorf("failed to increment cart item: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			item = models.CartItem{
				ID:        uuid.New().String(),
				CartID:    cart.ID,
				ProductID: productID,
				VariantID: variantID,
				Quantity:  quantity,
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("failed to create cart item: %w", err)
			}
			return nil
		}
		return tx.First(&item, "cart_id = ? AND product_id = ? AND variant_id = ?",
			cart.ID, productID, variantID).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItemQuantity sets a line's quantity (minimum 1).
func (s *CartService) UpdateItemQuantity(userID, itemID string, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		quantity = 1
	}
	item, err := s.ownedItem(userID, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(item).Update("quantity", quantity).Error; err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}
	return item, nil
}

// RemoveItem deletes a line from the user's cart.
func (s *CartService) RemoveItem(userID, itemID string) error {
	item, err := s.ownedItem(userID, itemID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(item).Error; err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return nil
}

// ApplyCoupons resolves the given codes with the tie-break rules and writes
// the winners into the cart's two slots. Applying a new percent coupon
// replaces the previous one; the free-shipping slot behaves the same, so the
// cart never holds more than one coupon of each kind.
func (s *CartService) ApplyCoupons(userID string, codes []string) (*CartView, error) {
	percent, freeShip, err := s.coupons.SelectBest(userID, codes)
	if err != nil {
		return nil, err
	}
	if percent == nil && freeShip == nil {
		return nil, ErrInvalidCoupon
	}

	cart, err := ensureCart(s.db, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if percent != nil {
		updates["percent_coupon_id"] = percent.ID
	}
	if freeShip != nil {
		updates["free_shipping_coupon_id"] = freeShip.ID
	}
	if err := s.db.Model(cart).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to apply coupons: %w", err)
	}
	return s.Get(userID)
}

// RemoveCoupon detaches the coupon with the given code from the cart, or all
// coupons when code is empty.
func (s *CartService) RemoveCoupon(userID, code string) (*CartView, error) {
	view, err := s.Get(userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if code == "" {
		updates["percent_coupon_id"] = nil
		updates["free_shipping_coupon_id"] = nil
	} else {
		if view.PercentCoupon != nil && equalCode(view.PercentCoupon.Code, code) {
			updates["percent_coupon_id"] = nil
		}
		if view.FreeShippingCoupon != nil && equalCode(view.FreeShippingCoupon.Code, code) {
			updates["free_shipping_coupon_id"] = nil
		}
		if len(updates) == 0 {
			return nil, ErrNotFound
		}
	}
	if err := s.db.Model(&models.Cart{}).Where("id = ?", view.Cart.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to remove coupon: %w", err)
	}
	return s.Get(userID)
}

// ownedItem loads a cart item and verifies it belongs to the user's cart.
func (s *CartService) ownedItem(userID, itemID string) (*models.CartItem, error) {
	cart, err := ensureCart(s.db, userID)
	if err != nil {
		return nil, err
	}
	var item models.CartItem
	if err := s.db.First(&item, "id = ? AND cart_id = ?", itemID, cart.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load cart item %s: %w", itemID, err)
	}
	return &item, nil
}

func equalCode(a, b string) bool {
	return strings.EqualFold(a, b)
}
