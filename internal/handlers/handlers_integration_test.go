package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"storefront/internal/handlers"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv bundles the app under test with the rows seeded for it.
type testEnv struct {
	app       *fiber.App
	db        *gorm.DB
	uploadDir string
	product   models.Product
	variant   models.Variant
	save10    models.Coupon
	ship      models.Coupon
}

// setupApp wires the full HTTP surface over a fresh in-memory SQLite database,
// mirroring the route groups of main.go.
func setupApp(t *testing.T) *testEnv {
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

	productRepo := repositories.NewGORMProductRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)
	addressRepo := repositories.NewGORMAddressRepository(db)

	shippingFee := decimal.NewFromInt(50)
	productService := services.NewProductService(productRepo)
	authService := services.NewAuthService(userRepo, "test_jwt_secret")
	couponService := services.NewCouponService(db)
	cartService := services.NewCartService(db, couponService, shippingFee)
	checkoutService := services.NewCheckoutService(db, services.NewInventoryService(), nil, services.CheckoutConfig{
		ShippingFee:    shippingFee,
		PaymentWindow:  30 * time.Minute,
		DefaultCarrier: "Kerry",
	})
	reviewService := services.NewReviewService(db)
	favoriteService := services.NewFavoriteService(db)

	uploadDir := t.TempDir()
	authHandler := handlers.NewAuthHandler(authService)
	productHandler := handlers.NewProductHandler(productService)
	cartHandler := handlers.NewCartHandler(cartService, checkoutService)
	couponHandler := handlers.NewCouponHandler(couponService)
	orderHandler := handlers.NewOrderHandler(checkoutService, uploadDir)
	addressHandler := handlers.NewAddressHandler(addressRepo)
	reviewHandler := handlers.NewReviewHandler(reviewService)
	favoriteHandler := handlers.NewFavoriteHandler(favoriteService)
	adminOrderHandler := handlers.NewAdminOrderHandler(checkoutService)

	app := fiber.New()
	apiV1 := app.Group("/api/v1")

	authHandler.RegisterRoutes(apiV1)
	productHandler.RegisterRoutes(apiV1)
	couponHandler.RegisterPublicRoutes(apiV1)
	reviewHandler.RegisterPublicRoutes(apiV1)

	protected := apiV1.Group("", middleware.AuthRequired(authService))
	cartHandler.RegisterRoutes(protected)
	couponHandler.RegisterRoutes(protected)
	orderHandler.RegisterRoutes(protected)
	addressHandler.RegisterRoutes(protected)
	reviewHandler.RegisterRoutes(protected)
	favoriteHandler.RegisterRoutes(protected)

	staff := apiV1.Group("", middleware.AuthRequired(authService), middleware.StaffRequired())
	adminOrderHandler.RegisterRoutes(staff)

	env := &testEnv{app: app, db: db, uploadDir: uploadDir}
	env.seed(t)
	return env
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()

	e.product = models.Product{
		ID:        uuid.New().String(),
		Name:      "Trail Runner",
		BasePrice: decimal.NewFromInt(100),
		IsActive:  true,
	}
	require.NoError(t, e.db.Create(&e.product).Error)
	e.variant = models.Variant{
		ID:        uuid.New().String(),
		ProductID: e.product.ID,
		Color:     "black",
		Size:      "42",
		Stock:     5,
	}
	require.NoError(t, e.db.Create(&e.variant).Error)

	validTo := time.Now().Add(24 * time.Hour)
	e.save10 = models.Coupon{
		ID:         uuid.New().String(),
		Code:       "SAVE10",
		Kind:       models.DiscountPercent,
		PercentOff: 10,
		ValidFrom:  time.Now().Add(-time.Hour),
		ValidTo:    &validTo,
	}
	e.ship = models.Coupon{
		ID:        uuid.New().String(),
		Code:      "FREESHIP",
		Kind:      models.DiscountFreeShipping,
		ValidFrom: time.Now().Add(-time.Hour),
		ValidTo:   &validTo,
	}
	require.NoError(t, e.db.Create(&e.save10).Error)
	require.NoError(t, e.db.Create(&e.ship).Error)

	require.NoError(t, e.db.Create(&models.PaymentConfig{
		ID:            uuid.New().String(),
		BankName:      "PromptPay",
		AccountName:   "Storefront Shop",
		AccountNumber: "0912345678",
		IsActive:      true,
	}).Error)

	// Staff accounts are provisioned directly; registration never grants the role.
	hash, err := bcrypt.GenerateFromPassword([]byte("staffpass"), bcrypt.DefaultCost)
	require.NoError(t, err)
	require.NoError(t, e.db.Create(&models.User{
		ID:       uuid.New().String(),
		Username: "staffer",
		Email:    "staffer@example.com",
		Password: string(hash),
		Role:     models.RoleStaff,
	}).Error)
}

// request performs a JSON request against the app, returning the response.
func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// registerAndLogin creates a customer account through the API and returns its token.
func (e *testEnv) registerAndLogin(t *testing.T, username string) string {
	t.Helper()
	resp := e.request(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
	return e.login(t, username, "password123")
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	resp := e.request(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var loginResp map[string]string
	decodeBody(t, resp, &loginResp)
	require.NotEmpty(t, loginResp["token"])
	return loginResp["token"]
}

func (e *testEnv) createAddress(t *testing.T, token string) string {
	t.Helper()
	resp := e.request(t, http.MethodPost, "/api/v1/addresses/", token, map[string]string{
		"full_name":   "Ada Example",
		"phone":       "0812345678",
		"address":     "1 Test Road",
		"province":    "Bangkok",
		"postal_code": "10110",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var address models.Address
	decodeBody(t, resp, &address)
	require.NotEmpty(t, address.ID)
	return address.ID
}

func (e *testEnv) addCartItem(t *testing.T, token string, quantity int) string {
	t.Helper()
	resp := e.request(t, http.MethodPost, "/api/v1/cart/items", token, map[string]interface{}{
		"product_id": e.product.ID,
		"variant_id": e.variant.ID,
		"quantity":   quantity,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var item models.CartItem
	decodeBody(t, resp, &item)
	require.NotEmpty(t, item.ID)
	return item.ID
}

func (e *testEnv) uploadSlip(t *testing.T, token, orderID string) *http.Response {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("payment_slip", "slip.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("not really a jpeg"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID+"/upload-payment", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestAuthRegisterAndLogin(t *testing.T) {
	env := setupApp(t)

	userToRegister := map[string]string{
		"username": "testuser",
		"email":    "test@example.com",
		"password": "password123",
	}
	resp := env.request(t, http.MethodPost, "/api/v1/auth/register", "", userToRegister)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var registerResp map[string]interface{}
	decodeBody(t, resp, &registerResp)
	assert.Equal(t, "User registered successfully", registerResp["message"])

	// Duplicate registration conflicts.
	resp = env.request(t, http.MethodPost, "/api/v1/auth/register", "", userToRegister)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	token := env.login(t, "testuser", "password123")
	assert.NotEmpty(t, token)

	// Protected routes reject missing tokens.
	resp = env.request(t, http.MethodGet, "/api/v1/cart/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

// TestFullPurchaseFlow walks the entire lifecycle: browse, claim coupons,
// fill the cart, check out, pay, get approved, shipped, delivered, review.
func TestFullPurchaseFlow(t *testing.T) {
	env := setupApp(t)
	token := env.registerAndLogin(t, "buyer")
	staffToken := env.login(t, "staffer", "staffpass")

	// Catalog is public.
	resp := env.request(t, http.MethodGet, "/api/v1/products/", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var products []models.Product
	decodeBody(t, resp, &products)
	require.NotEmpty(t, products)

	// Claim both coupons; claiming twice is a 400.
	resp = env.request(t, http.MethodPost, "/api/v1/coupons/"+env.save10.ID+"/claim", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = env.request(t, http.MethodPost, "/api/v1/coupons/"+env.ship.ID+"/claim", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = env.request(t, http.MethodPost, "/api/v1/coupons/"+env.save10.ID+"/claim", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	itemID := env.addCartItem(t, token, 2)

	// Apply both coupons and verify the live breakdown: 2x100 - 10% = 180,
	// shipping free.
	resp = env.request(t, http.MethodPost, "/api/v1/cart/apply-coupon", token, map[string]interface{}{
		"codes": []string{"SAVE10", "FREESHIP"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cartView struct {
		Pricing struct {
			Total        decimal.Decimal `json:"total"`
			FreeShipping bool            `json:"free_shipping"`
		} `json:"pricing"`
	}
	decodeBody(t, resp, &cartView)
	assert.True(t, cartView.Pricing.Total.Equal(decimal.NewFromInt(180)), "total = %s", cartView.Pricing.Total)
	assert.True(t, cartView.Pricing.FreeShipping)

	addressID := env.createAddress(t, token)

	resp = env.request(t, http.MethodPost, "/api/v1/checkout", token, map[string]interface{}{
		"address_id":    addressID,
		"cart_item_ids": []string{itemID},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var checkoutResp struct {
		Order           models.Order          `json:"order"`
		PaymentConfig   *models.PaymentConfig `json:"payment_config"`
		RequiresPayment bool                  `json:"requires_payment"`
	}
	decodeBody(t, resp, &checkoutResp)
	orderID := checkoutResp.Order.ID
	require.NotEmpty(t, orderID)
	assert.Equal(t, models.StatusPendingPayment, checkoutResp.Order.Status)
	assert.True(t, checkoutResp.Order.Total.Equal(decimal.NewFromInt(180)))
	assert.True(t, checkoutResp.RequiresPayment)
	require.NotNil(t, checkoutResp.PaymentConfig)
	assert.Equal(t, "PromptPay", checkoutResp.PaymentConfig.BankName)

	// Customers cannot reach staff routes.
	resp = env.request(t, http.MethodPost, "/api/v1/admin/orders/"+orderID+"/approve", token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// Approving before a slip exists is a 400.
	resp = env.request(t, http.MethodPost, "/api/v1/admin/orders/"+orderID+"/approve", staffToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = env.uploadSlip(t, token, orderID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.request(t, http.MethodPost, "/api/v1/admin/orders/"+orderID+"/approve", staffToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Approval committed the stock decrement.
	var variant models.Variant
	require.NoError(t, env.db.First(&variant, "id = ?", env.variant.ID).Error)
	assert.Equal(t, 3, variant.Stock)

	// A second approve conflicts.
	resp = env.request(t, http.MethodPost, "/api/v1/admin/orders/"+orderID+"/approve", staffToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = env.request(t, http.MethodPost, "/api/v1/admin/orders/"+orderID+"/ship", staffToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = env.request(t, http.MethodPost, "/api/v1/admin/orders/"+orderID+"/deliver", staffToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// The delivered order shows up in history.
	resp = env.request(t, http.MethodGet, "/api/v1/orders/history", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history []models.Order
	decodeBody(t, resp, &history)
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusDelivered, history[0].Status)

	// Delivery unlocks the review.
	resp = env.request(t, http.MethodPost, "/api/v1/reviews", token, map[string]interface{}{
		"product_id": env.product.ID,
		"rating":     5,
		"comment":    "fits well",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

func TestCancelRestoresCart(t *testing.T) {
	env := setupApp(t)
	token := env.registerAndLogin(t, "canceller")
	addressID := env.createAddress(t, token)
	itemID := env.addCartItem(t, token, 2)

	resp := env.request(t, http.MethodPost, "/api/v1/checkout", token, map[string]interface{}{
		"address_id":    addressID,
		"cart_item_ids": []string{itemID},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var checkoutResp struct {
		Order models.Order `json:"order"`
	}
	decodeBody(t, resp, &checkoutResp)

	// The cart is empty while the order is pending.
	resp = env.request(t, http.MethodGet, "/api/v1/cart/", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view struct {
		Items []models.CartItem `json:"items"`
	}
	decodeBody(t, resp, &view)
	assert.Empty(t, view.Items)

	resp = env.request(t, http.MethodPost, "/api/v1/orders/"+checkoutResp.Order.ID+"/cancel", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Cancelling put the line back.
	resp = env.request(t, http.MethodGet, "/api/v1/cart/", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &view)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Items[0].Quantity)

	// The cancelled order is gone entirely.
	resp = env.request(t, http.MethodGet, "/api/v1/orders/"+checkoutResp.Order.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestCheckoutInsufficientStock(t *testing.T) {
	env := setupApp(t)
	token := env.registerAndLogin(t, "hoarder")
	addressID := env.createAddress(t, token)
	itemID := env.addCartItem(t, token, 6) // only 5 in stock

	resp := env.request(t, http.MethodPost, "/api/v1/checkout", token, map[string]interface{}{
		"address_id":    addressID,
		"cart_item_ids": []string{itemID},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	// The cart line survives a failed checkout.
	resp = env.request(t, http.MethodGet, "/api/v1/cart/", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view struct {
		Items []models.CartItem `json:"items"`
	}
	decodeBody(t, resp, &view)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 6, view.Items[0].Quantity)
}

func TestFavorites(t *testing.T) {
	env := setupApp(t)
	token := env.registerAndLogin(t, "collector")

	resp := env.request(t, http.MethodPost, "/api/v1/favorites/", token, map[string]string{
		"product_id": env.product.ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var favorite models.Favorite
	decodeBody(t, resp, &favorite)
	assert.Equal(t, env.product.ID, favorite.ProductID)

	// Favoriting twice is a 400.
	resp = env.request(t, http.MethodPost, "/api/v1/favorites/", token, map[string]string{
		"product_id": env.product.ID,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = env.request(t, http.MethodGet, "/api/v1/favorites/", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []models.Favorite
	decodeBody(t, resp, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Trail Runner", list[0].Product.Name)

	resp = env.request(t, http.MethodDelete, "/api/v1/favorites/"+env.product.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = env.request(t, http.MethodGet, "/api/v1/favorites/", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &list)
	assert.Empty(t, list)

	// Deleting again: nothing left to remove.
	resp = env.request(t, http.MethodDelete, "/api/v1/favorites/"+env.product.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestUploadSlipConflictLeavesNoOrphanFile(t *testing.T) {
	env := setupApp(t)
	token := env.registerAndLogin(t, "payer")
	staffToken := env.login(t, "staffer", "staffpass")
	addressID := env.createAddress(t, token)
	itemID := env.addCartItem(t, token, 1)

	resp := env.request(t, http.MethodPost, "/api/v1/checkout", token, map[string]interface{}{
		"address_id":    addressID,
		"cart_item_ids": []string{itemID},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var checkoutResp struct {
		Order models.Order `json:"order"`
	}
	decodeBody(t, resp, &checkoutResp)
	orderID := checkoutResp.Order.ID

	resp = env.uploadSlip(t, token, orderID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = env.request(t, http.MethodPost, "/api/v1/admin/orders/"+orderID+"/approve", staffToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Uploading against the verified order conflicts; the rejected upload
	// must not leave a file next to the accepted one.
	resp = env.uploadSlip(t, token, orderID)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	entries, err := os.ReadDir(env.uploadDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the accepted slip is stored")
}

func TestCouponCenterAndPreview(t *testing.T) {
	env := setupApp(t)
	token := env.registerAndLogin(t, "couponer")

	// The coupon center is public.
	resp := env.request(t, http.MethodGet, "/api/v1/coupons/center", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var center []map[string]interface{}
	decodeBody(t, resp, &center)
	assert.Len(t, center, 2)

	resp = env.request(t, http.MethodPost, "/api/v1/coupons/"+env.save10.ID+"/claim", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.request(t, http.MethodGet, "/api/v1/coupons/mine", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var mine struct {
		Percent      []map[string]interface{} `json:"percent"`
		FreeShipping []map[string]interface{} `json:"free_shipping"`
	}
	decodeBody(t, resp, &mine)
	require.Len(t, mine.Percent, 1)
	assert.Equal(t, "SAVE10", mine.Percent[0]["code"])
	assert.Empty(t, mine.FreeShipping)

	resp = env.request(t, http.MethodPost, "/api/v1/coupons/price-preview", token, map[string]interface{}{
		"subtotal":     "200",
		"shipping_fee": "50",
		"coupon_codes": []string{"SAVE10"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var preview struct {
		Total          decimal.Decimal `json:"total"`
		DiscountAmount decimal.Decimal `json:"discount_amount"`
	}
	decodeBody(t, resp, &preview)
	assert.True(t, preview.DiscountAmount.Equal(decimal.NewFromInt(20)), "discount = %s", preview.DiscountAmount)
	assert.True(t, preview.Total.Equal(decimal.NewFromInt(230)), "total = %s", preview.Total)

	// Unknown codes are rejected.
	resp = env.request(t, http.MethodPost, "/api/v1/coupons/price-preview", token, map[string]interface{}{
		"subtotal":     "200",
		"shipping_fee": "50",
		"coupon_codes": []string{"BOGUS"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
