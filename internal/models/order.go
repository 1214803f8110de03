package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses. The lifecycle is
//
//	pending_payment -> payment_verified -> shipped -> delivered
//
// Rejection, cancellation and expiry hard-delete the order instead of moving
// it to a terminal status, so order history never shows them.
const (
	StatusPendingPayment  = "pending_payment"
	StatusPaymentVerified = "payment_verified"
	StatusShipped         = "shipped"
	StatusDelivered       = "delivered"
)

// Order is a checkout result awaiting manual bank-transfer verification.
// Address fields are copied from the chosen Address at creation time.
type Order struct {
	ID                   string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID               string          `json:"user_id" gorm:"index;type:varchar(36)"`
	Status               string          `json:"status" gorm:"index;type:varchar(20);default:pending_payment"`
	ShipName             string          `json:"ship_name" gorm:"type:varchar(120)"`
	ShipPhone            string          `json:"ship_phone" gorm:"type:varchar(32)"`
	ShipAddress          string          `json:"ship_address"`
	ShipProvince         string          `json:"ship_province" gorm:"type:varchar(120)"`
	ShipPostalCode       string          `json:"ship_postal_code" gorm:"type:varchar(16)"`
	ShippingCarrier      string          `json:"shipping_carrier" gorm:"type:varchar(32)"`
	ShippingCost         decimal.Decimal `json:"shipping_cost" gorm:"type:decimal(10,2)"`
	Subtotal             decimal.Decimal `json:"subtotal" gorm:"type:decimal(10,2)"`
	DiscountPercent      int             `json:"discount_percent"`
	DiscountAmount       decimal.Decimal `json:"discount_amount" gorm:"type:decimal(10,2)"`
	Total                decimal.Decimal `json:"total" gorm:"type:decimal(10,2)"`
	PercentCouponID      *string         `json:"percent_coupon_id" gorm:"type:varchar(36)"`
	FreeShippingCouponID *string         `json:"free_shipping_coupon_id" gorm:"type:varchar(36)"`
	PaymentDeadline      time.Time       `json:"payment_deadline"`
	PaymentSlip          string          `json:"payment_slip" gorm:"type:varchar(512)"`
	PaymentVerifiedAt    *time.Time      `json:"payment_verified_at"`
	StockCommitted       bool            `json:"-"` // set once Approve has decremented stock
	Items                []OrderItem     `json:"items" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// IsPaymentExpired reports whether the payment deadline has passed.
func (o *Order) IsPaymentExpired(now time.Time) bool {
	return now.After(o.PaymentDeadline)
}

// OrderItem is an immutable snapshot of a purchased line. Price is the unit
// sale price at checkout time and never changes afterwards.
type OrderItem struct {
	ID        string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID   string          `json:"order_id" gorm:"index;type:varchar(36)"`
	ProductID string          `json:"product_id" gorm:"type:varchar(36)"`
	VariantID string          `json:"variant_id" gorm:"type:varchar(36)"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(10,2)"`
	Quantity  int             `json:"quantity"`
	Product   Product         `json:"product,omitempty"`
	Variant   Variant         `json:"variant,omitempty"`
}

// PaymentConfig holds the bank-transfer details shown to the customer after
// checkout. Only the active row is served; the values are opaque to the
// checkout core.
type PaymentConfig struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	BankName      string    `json:"bank_name" gorm:"type:varchar(100)"`
	AccountName   string    `json:"account_name" gorm:"type:varchar(200)"`
	AccountNumber string    `json:"account_number" gorm:"type:varchar(50)"`
	QRCodeURL     string    `json:"qr_code_url" gorm:"type:varchar(512)"`
	IsActive      bool      `json:"is_active" gorm:"default:true"`
	CreatedAt     time.Time `json:"created_at"`
}

// Review is a product review. Customers may only review products from one of
// their delivered orders.
type Review struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"user_id" gorm:"index;type:varchar(36)"`
	ProductID string    `json:"product_id" gorm:"index;type:varchar(36)"`
	Rating    int       `json:"rating" validate:"gte=1,lte=5"`
	Comment   string    `json:"comment" validate:"omitempty,max=1000"`
	CreatedAt time.Time `json:"created_at"`
}
