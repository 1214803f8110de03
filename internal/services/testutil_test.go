package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront/internal/models"
)

// newTestDB opens a fresh in-memory SQLite database with the full schema.
// Each call gets its own database so tests cannot see each other's rows.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Address{},
		&models.Product{},
		&models.Variant{},
		&models.Cart{},
		&models.CartItem{},
		&models.Coupon{},
		&models.CouponClaim{},
		&models.Order{},
		&models.OrderItem{},
		&models.PaymentConfig{},
		&models.Review{},
		&models.Favorite{},
	))
	return db
}

// fixedTime is the reference instant used by clock-injected tests.
var fixedTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()
	user := models.User{
		ID:       uuid.New().String(),
		Username: username,
		Email:    username + "@example.com",
		Password: "irrelevant",
		Role:     models.RoleCustomer,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedAddress(t *testing.T, db *gorm.DB, userID string) models.Address {
	t.Helper()
	address := models.Address{
		ID:         uuid.New().String(),
		UserID:     userID,
		FullName:   "Ada Example",
		Phone:      "0812345678",
		Line:       "1 Test Road",
		Province:   "Bangkok",
		PostalCode: "10110",
	}
	require.NoError(t, db.Create(&address).Error)
	return address
}

// seedProduct creates a product with one variant holding the given stock.
func seedProduct(t *testing.T, db *gorm.DB, name string, basePrice int64, salePercent, stock int) (models.Product, models.Variant) {
	t.Helper()
	product := models.Product{
		ID:          uuid.New().String(),
		Name:        name,
		Description: "test product",
		BasePrice:   decimal.NewFromInt(basePrice),
		SalePercent: salePercent,
		IsActive:    true,
	}
	require.NoError(t, db.Create(&product).Error)

	variant := models.Variant{
		ID:        uuid.New().String(),
		ProductID: product.ID,
		Color:     "black",
		Size:      "42",
		Stock:     stock,
	}
	require.NoError(t, db.Create(&variant).Error)
	return product, variant
}

func seedPercentCoupon(t *testing.T, db *gorm.DB, code string, percentOff int, minSpend int64) models.Coupon {
	t.Helper()
	validTo := fixedTime.Add(30 * 24 * time.Hour)
	coupon := models.Coupon{
		ID:         uuid.New().String(),
		Code:       code,
		Kind:       models.DiscountPercent,
		PercentOff: percentOff,
		MinSpend:   decimal.NewFromInt(minSpend),
		ValidFrom:  fixedTime.Add(-24 * time.Hour),
		ValidTo:    &validTo,
	}
	require.NoError(t, db.Create(&coupon).Error)
	return coupon
}

func seedFreeShippingCoupon(t *testing.T, db *gorm.DB, code string) models.Coupon {
	t.Helper()
	validTo := fixedTime.Add(30 * 24 * time.Hour)
	coupon := models.Coupon{
		ID:        uuid.New().String(),
		Code:      code,
		Kind:      models.DiscountFreeShipping,
		ValidFrom: fixedTime.Add(-24 * time.Hour),
		ValidTo:   &validTo,
	}
	require.NoError(t, db.Create(&coupon).Error)
	return coupon
}

func variantStock(t *testing.T, db *gorm.DB, variantID string) int {
	t.Helper()
	var variant models.Variant
	require.NoError(t, db.First(&variant, "id = ?", variantID).Error)
	return variant.Stock
}
