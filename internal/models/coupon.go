package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Coupon discount kinds.
const (
	DiscountPercent      = "percent"
	DiscountFreeShipping = "free_shipping"
)

// Coupon is a discount voucher. Codes are stored upper-case and matched
// case-insensitively. MaxClaims limits how many users may claim the coupon
// (0 = unlimited); UsesCount counts successful checkouts that consumed it and
// is decremented again when such an order is rejected, cancelled or expires.
type Coupon struct {
	ID         string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Code       string          `json:"code" gorm:"uniqueIndex;type:varchar(32)" validate:"required,max=32"`
	Kind       string          `json:"discount_type" gorm:"type:varchar(20);default:percent" validate:"oneof=percent free_shipping"`
	PercentOff int             `json:"percent_off" validate:"gte=0,lte=100"`
	MinSpend   decimal.Decimal `json:"min_spend" gorm:"type:decimal(10,2)"`
	MaxClaims  int             `json:"max_claims"` // 0 = unlimited
	UsesCount  int             `json:"uses_count"`
	ValidFrom  time.Time       `json:"valid_from"`
	ValidTo    *time.Time      `json:"valid_to"`
	CreatedAt  time.Time       `json:"created_at"`
}

// IsActive reports whether the coupon can still be claimed or applied at the
// given instant: now must fall inside [ValidFrom, ValidTo] and the claim quota
// must not be exhausted. claimedCount is the number of existing CouponClaim
// rows for this coupon.
func (c *Coupon) IsActive(now time.Time, claimedCount int64) bool {
	if now.Before(c.ValidFrom) {
		return false
	}
	if c.ValidTo != nil && now.After(*c.ValidTo) {
		return false
	}
	if c.MaxClaims > 0 && claimedCount >= int64(c.MaxClaims) {
		return false
	}
	return true
}

// CouponClaim records that a user has claimed a coupon. The (user, coupon)
// pair is unique, which is what makes concurrent claims collapse to a single
// row. Used is set when a checkout consumes the coupon and cleared again if
// that order is restored.
type CouponClaim struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"user_id" gorm:"type:varchar(36);uniqueIndex:idx_claim_user_coupon"`
	CouponID  string    `json:"coupon_id" gorm:"type:varchar(36);uniqueIndex:idx_claim_user_coupon"`
	Used      bool      `json:"used"`
	ClaimedAt time.Time `json:"claimed_at" gorm:"autoCreateTime"`
	Coupon    Coupon    `json:"coupon,omitempty"`
}
