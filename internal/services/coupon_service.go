package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storefront/internal/models"
)

// CouponService evaluates coupon eligibility and owns the claim workflow.
// Claiming gates distribution; usage counting happens at checkout and lives
// in the checkout service.
type CouponService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewCouponService creates a CouponService.
func NewCouponService(db *gorm.DB) *CouponService {
	return &CouponService{db: db, now: time.Now}
}

// CouponWithClaims pairs a coupon with its current claim count, as needed by
// IsActive and the coupon-center listing.
type CouponWithClaims struct {
	models.Coupon
	ClaimedCount int64 `json:"claimed_count"`
	Claimed      bool  `json:"claimed"`
}

// Remaining returns how many claims are left, or nil for unlimited coupons.
func (c *CouponWithClaims) Remaining() *int64 {
	if c.MaxClaims == 0 {
		return nil
	}
	left := int64(c.MaxClaims) - c.ClaimedCount
	if left < 0 {
		left = 0
	}
	return &left
}

// ActiveCoupons lists coupons that can still be claimed, for the coupon
// center. When userID is non-empty each row is flagged with whether that user
// has already claimed it.
func (s *CouponService) ActiveCoupons(userID string) ([]CouponWithClaims, error) {
	var coupons []models.Coupon
	if err := s.db.Order("created_at desc").Find(&coupons).Error; err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}

	now := s.now()
	out := make([]CouponWithClaims, 0, len(coupons))
	for _, c := range coupons {
		claimed, err := s.claimCount(c.ID)
		if err != nil {
			return nil, err
		}
		if !c.IsActive(now, claimed) {
			continue
		}
		row := CouponWithClaims{Coupon: c, ClaimedCount: claimed}
		if userID != "" {
			var n int64
			if err := s.db.Model(&models.CouponClaim{}).
				Where("user_id = ? AND coupon_id = ?", userID, c.ID).
				Count(&n).Error; err != nil {
				return nil, fmt.Errorf("failed to check claim: %w", err)
			}
			row.Claimed = n > 0
		}
		out = append(out, row)
	}
	return out, nil
}

// Claim records that the user wants to use the coupon. The unique index on
// (user_id, coupon_id) makes concurrent claims collapse to exactly one row;
// a duplicate surfaces as ErrAlreadyClaimed.
func (s *CouponService) Claim(userID, couponID string) error {
	var coupon models.Coupon
	if err := s.db.First(&coupon, "id = ?", couponID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load coupon %s: %w", couponID, err)
	}

	claimed, err := s.claimCount(coupon.ID)
	if err != nil {
		return err
	}
	if !coupon.IsActive(s.now(), claimed) {
		return ErrCouponInactive
	}

	claim := models.CouponClaim{
		ID:       uuid.New().String(),
		UserID:   userID,
		CouponID: coupon.ID,
	}
	if err := s.db.Create(&claim).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyClaimed
		}
		return fmt.Errorf("failed to create claim: %w", err)
	}
	return nil
}

// MyCoupons lists the user's claimed, not-yet-used coupons that are still
// inside their validity window, percent coupons first by highest percent_off.
func (s *CouponService) MyCoupons(userID string) ([]models.CouponClaim, error) {
	var claims []models.CouponClaim
	if err := s.db.Preload("Coupon").
		Where("user_id = ? AND used = ?", userID, false).
		Find(&claims).Error; err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}

	now := s.now()
	out := claims[:0]
	for _, cl := range claims {
		if now.Before(cl.Coupon.ValidFrom) {
			continue
		}
		if cl.Coupon.ValidTo != nil && now.After(*cl.Coupon.ValidTo) {
			continue
		}
		out = append(out, cl)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Coupon, out[j].Coupon
		if a.Kind != b.Kind {
			return a.Kind == models.DiscountPercent
		}
		if a.PercentOff != b.PercentOff {
			return a.PercentOff > b.PercentOff
		}
		return a.ID < b.ID
	})
	return out, nil
}

// SelectBest resolves coupon codes to at most one percent coupon and one
// free-shipping coupon for the user. Each code must reference a coupon the
// user has claimed (and not yet used) and that is still active. Among several
// percent coupons the highest percent_off wins; ties and multiple free-shipping
// candidates are broken by lowest coupon ID so the result is deterministic.
func (s *CouponService) SelectBest(userID string, codes []string) (percent, freeShip *models.Coupon, err error) {
	now := s.now()
	seen := make(map[string]bool, len(codes))
	for _, raw := range codes {
		code := strings.ToUpper(strings.TrimSpace(raw))
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true

		var coupon models.Coupon
		if err := s.db.First(&coupon, "upper(code) = ?", code).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, fmt.Errorf("%w: %s", ErrInvalidCoupon, code)
			}
			return nil, nil, fmt.Errorf("failed to load coupon %s: %w", code, err)
		}

		claimed, err := s.claimCount(coupon.ID)
		if err != nil {
			return nil, nil, err
		}
		if !coupon.IsActive(now, claimed) {
			return nil, nil, fmt.Errorf("%w: %s", ErrCouponInactive, coupon.Code)
		}

		var n int64
		if err := s.db.Model(&models.CouponClaim{}).
			Where("user_id = ? AND coupon_id = ? AND used = ?", userID, coupon.ID, false).
			Count(&n).Error; err != nil {
			return nil, nil, fmt.Errorf("failed to check claim: %w", err)
		}
		if n == 0 {
			return nil, nil, fmt.Errorf("%w: %s", ErrInvalidCoupon, coupon.Code)
		}

		c := coupon
		switch c.Kind {
		case models.DiscountPercent:
			if percent == nil ||
				c.PercentOff > percent.PercentOff ||
				(c.PercentOff == percent.PercentOff && c.ID < percent.ID) {
				percent = &c
			}
		case models.DiscountFreeShipping:
			if freeShip == nil || c.ID < freeShip.ID {
				freeShip = &c
			}
		}
	}
	return percent, freeShip, nil
}

// Preview computes a price breakdown for an arbitrary subtotal and coupon
// codes without touching the cart or any counters.
func (s *CouponService) Preview(userID string, subtotal, shippingFee decimal.Decimal, codes []string) (PriceBreakdown, []models.Coupon, error) {
	percent, freeShip, err := s.SelectBest(userID, codes)
	if err != nil {
		return PriceBreakdown{}, nil, err
	}

	lines := []PriceLine{{UnitPrice: subtotal, Quantity: 1}}
	breakdown := Price(lines, percent, freeShip, shippingFee)

	var applied []models.Coupon
	if percent != nil && breakdown.DiscountPercent > 0 {
		applied = append(applied, *percent)
	}
	if freeShip != nil {
		applied = append(applied, *freeShip)
	}
	return breakdown, applied, nil
}

func (s *CouponService) claimCount(couponID string) (int64, error) {
	var n int64
	if err := s.db.Model(&models.CouponClaim{}).
		Where("coupon_id = ?", couponID).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count claims: %w", err)
	}
	return n, nil
}

// isUniqueViolation matches unique-constraint failures from both the Postgres
// and SQLite drivers without importing either.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "unique failed") ||
		strings.Contains(msg, "duplicate key")
}
