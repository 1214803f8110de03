package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storefront/internal/models"
)

// ErrNoItemsSelected is returned when a checkout request selects no cart lines.
var ErrNoItemsSelected = errors.New("no cart items selected")

// EventPublisher publishes order lifecycle events for out-of-band consumers
// (mailers, admin notifications). Implemented by pkg/rabbitmq.Client.
type EventPublisher interface {
	Publish(routingKey string, body []byte) error
}

// CheckoutConfig holds the tunables of the checkout workflow.
type CheckoutConfig struct {
	// ShippingFee is the flat base shipping fee before coupons.
	ShippingFee decimal.Decimal
	// PaymentWindow is how long a pending_payment order may await a slip.
	PaymentWindow time.Duration
	// DefaultCarrier is used when the checkout request names none.
	DefaultCarrier string
}

// CheckoutService owns the order lifecycle:
//
//	pending_payment -> payment_verified -> shipped -> delivered
//
// with reject/cancel/expire hard-deleting the order and restoring its lines
// to the cart. Every multi-entity transition runs in a single transaction;
// racing transitions are serialized by conditional status updates, so exactly
// one of two concurrent approve/expire calls wins and the loser reports a
// state conflict.
type CheckoutService struct {
	db        *gorm.DB
	inventory *InventoryService
	events    EventPublisher
	cfg       CheckoutConfig
	now       func() time.Time
}

// NewCheckoutService creates a CheckoutService. events may be nil, in which
// case lifecycle events are skipped.
func NewCheckoutService(db *gorm.DB, inventory *InventoryService, events EventPublisher, cfg CheckoutConfig) *CheckoutService {
	return &CheckoutService{
		db:        db,
		inventory: inventory,
		events:    events,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Checkout creates an order in pending_payment from the user's selected cart
// lines. Stock is checked but not decremented (the decrement happens at
// Approve); coupon usage counters increment now and are rolled back if the
// order is later rejected, cancelled or expired. The consumed cart lines and
// the cart's coupon slots are cleared in the same transaction.
func (s *CheckoutService) Checkout(userID, addressID string, cartItemIDs []string, carrier string) (*models.Order, error) {
	if len(cartItemIDs) == 0 {
		return nil, ErrNoItemsSelected
	}
	if carrier == "" {
		carrier = s.cfg.DefaultCarrier
	}

	var order *models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var address models.Address
		if err := tx.First(&address, "id = ? AND user_id = ?", addressID, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("address: %w", ErrNotFound)
			}
			return fmt.Errorf("failed to load address %s: %w", addressID, err)
		}

		var cart models.Cart
		if err := tx.Preload("PercentCoupon").Preload("FreeShippingCoupon").
			First(&cart, "user_id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoItemsSelected
			}
			return fmt.Errorf("failed to load cart: %w", err)
		}

		var items []models.CartItem
		if err := tx.Preload("Product").Preload("Variant").
			Where("cart_id = ? AND id IN ?", cart.ID, cartItemIDs).
			Find(&items).Error; err != nil {
			return fmt.Errorf("failed to load cart items: %w", err)
		}
		if len(items) != len(cartItemIDs) {
			return fmt.Errorf("cart item: %w", ErrNotFound)
		}

		stockLines := make([]StockLine, len(items))
		priceLines := make([]PriceLine, len(items))
		for i, it := range items {
			stockLines[i] = StockLine{
				ProductName: it.Product.Name,
				VariantID:   it.VariantID,
				Quantity:    it.Quantity,
			}
			priceLines[i] = PriceLine{UnitPrice: it.Product.SalePrice(), Quantity: it.Quantity}
		}
		if err := s.inventory.CheckAvailable(tx, stockLines); err != nil {
			return err
		}

		breakdown := Price(priceLines, cart.PercentCoupon, cart.FreeShippingCoupon, s.cfg.ShippingFee)

		now := s.now()
		order = &models.Order{
			ID:              uuid.New().String(),
			UserID:          userID,
			Status:          models.StatusPendingPayment,
			ShipName:        address.FullName,
			ShipPhone:       address.Phone,
			ShipAddress:     address.Line,
			ShipProvince:    address.Province,
			ShipPostalCode:  address.PostalCode,
			ShippingCarrier: carrier,
			ShippingCost:    breakdown.ShippingFee,
			Subtotal:        breakdown.Subtotal,
			DiscountPercent: breakdown.DiscountPercent,
			DiscountAmount:  breakdown.DiscountAmount,
			Total:           breakdown.Total,
			PaymentDeadline: now.Add(s.cfg.PaymentWindow),
			CreatedAt:       now,
		}

		// Only coupons that had an effect are consumed. A percent coupon
		// below its minimum spend stays in the user's pocket.
		if cart.PercentCoupon != nil && breakdown.DiscountPercent > 0 {
			order.PercentCouponID = &cart.PercentCoupon.ID
			if err := s.consumeCoupon(tx, userID, cart.PercentCoupon.ID); err != nil {
				return err
			}
		}
		if cart.FreeShippingCoupon != nil {
			order.FreeShippingCouponID = &cart.FreeShippingCoupon.ID
			if err := s.consumeCoupon(tx, userID, cart.FreeShippingCoupon.ID); err != nil {
				return err
			}
		}

		order.Items = make([]models.OrderItem, len(items))
		for i, it := range items {
			order.Items[i] = models.OrderItem{
				ID:        uuid.New().String(),
				ProductID: it.ProductID,
				VariantID: it.VariantID,
				Price:     it.Product.SalePrice(),
				Quantity:  it.Quantity,
			}
		}
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		if err := tx.Where("cart_id = ? AND id IN ?", cart.ID, cartItemIDs).
			Delete(&models.CartItem{}).Error; err != nil {
			return fmt.Errorf("failed to clear cart items: %w", err)
		}
		if err := tx.Model(&cart).Updates(map[string]interface{}{
			"percent_coupon_id":       nil,
			"free_shipping_coupon_id": nil,
		}).Error; err != nil {
			return fmt.Errorf("failed to clear cart coupons: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish("order.created", order)
	return order, nil
}

// GetOrder returns one of the user's orders.
func (s *CheckoutService) GetOrder(userID, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.Preload("Items").Preload("Items.Product").Preload("Items.Variant").
		First(&order, "id = ? AND user_id = ?", orderID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	return &order, nil
}

// History lists the user's orders, newest first, excluding those still
// awaiting payment. Rejected/cancelled/expired orders were hard-deleted and
// never show up.
func (s *CheckoutService) History(userID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.Preload("Items").Preload("Items.Product").Preload("Items.Variant").
		Where("user_id = ? AND status <> ?", userID, models.StatusPendingPayment).
		Order("created_at desc").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// ListByStatus lists orders for staff review, optionally filtered by status.
func (s *CheckoutService) ListByStatus(status string) ([]models.Order, error) {
	q := s.db.Preload("Items").Order("created_at desc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// ActivePaymentConfig returns the bank-transfer details to show after
// checkout, or nil when none is configured.
func (s *CheckoutService) ActivePaymentConfig() (*models.PaymentConfig, error) {
	var cfg models.PaymentConfig
	err := s.db.Where("is_active = ?", true).Order("created_at desc").First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load payment config: %w", err)
	}
	return &cfg, nil
}

// UploadPaymentSlip attaches a payment slip image to the owner's
// pending_payment order. An order past its deadline is expired on the spot
// and the upload rejected with ErrExpired.
func (s *CheckoutService) UploadPaymentSlip(userID, orderID, slipPath string) error {
	if slipPath == "" {
		return ErrSlipRequired
	}

	order, err := s.GetOrder(userID, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.StatusPendingPayment {
		return &StateConflictError{Expected: models.StatusPendingPayment, Actual: order.Status}
	}
	if order.IsPaymentExpired(s.now()) {
		if err := s.expireOrder(order.ID); err != nil {
			return err
		}
		return ErrExpired
	}

	res := s.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, models.StatusPendingPayment).
		Update("payment_slip", slipPath)
	if res.Error != nil {
		return fmt.Errorf("failed to attach payment slip: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.stateConflict(orderID, models.StatusPendingPayment)
	}

	order.PaymentSlip = slipPath
	s.publish("order.slip_uploaded", order)
	return nil
}

// Approve verifies the payment of a pending order with a slip attached: the
// status moves to payment_verified and the stock decrement commits, all in
// one transaction. Exactly one of two racing Approve calls (or an Approve
// racing the expiry sweep) succeeds; the loser gets a StateConflictError.
func (s *CheckoutService) Approve(orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").Preload("Items.Product").
			First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load order %s: %w", orderID, err)
		}
		if order.PaymentSlip == "" {
			return ErrSlipRequired
		}

		now := s.now()
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, models.StatusPendingPayment).
			Updates(map[string]interface{}{
				"status":              models.StatusPaymentVerified,
				"payment_verified_at": now,
				"stock_committed":     true,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to verify order %s: %w", orderID, res.Error)
		}
		if res.RowsAffected == 0 {
			return &StateConflictError{Expected: models.StatusPendingPayment, Actual: order.Status}
		}

		// Stock commits exactly once, here. Insufficient stock aborts the
		// whole transaction, leaving the order pending.
		if err := s.inventory.Commit(tx, stockLinesOf(order.Items)); err != nil {
			return err
		}

		order.Status = models.StatusPaymentVerified
		order.PaymentVerifiedAt = &now
		order.StockCommitted = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish("order.approved", &order)
	return &order, nil
}

// MarkShipped moves a payment_verified order to shipped.
func (s *CheckoutService) MarkShipped(orderID string) error {
	return s.transition(orderID, models.StatusPaymentVerified, models.StatusShipped, "order.shipped")
}

// MarkDelivered moves a shipped order to delivered, the terminal state that
// unlocks product reviews for the buyer.
func (s *CheckoutService) MarkDelivered(orderID string) error {
	return s.transition(orderID, models.StatusShipped, models.StatusDelivered, "order.delivered")
}

// Reject is the staff path for refusing a payment slip: the order is deleted
// and its lines restored to the customer's cart.
func (s *CheckoutService) Reject(orderID string) error {
	order, err := s.loadForRestore(orderID)
	if err != nil {
		return err
	}
	if err := s.restoreAndDelete(order); err != nil {
		return err
	}
	s.publish("order.rejected", order)
	return nil
}

// Cancel is the customer path: only the order's owner may cancel, and only
// while it is still pending payment. Effects match Reject.
func (s *CheckoutService) Cancel(userID, orderID string) error {
	order, err := s.loadForRestore(orderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return ErrNotFound
	}
	if err := s.restoreAndDelete(order); err != nil {
		return err
	}
	s.publish("order.cancelled", order)
	return nil
}

// ExpireOverdue deletes every pending_payment order past its deadline,
// restoring carts, coupons and any committed stock. It is safe to run
// concurrently with staff approvals: the conditional delete inside
// restoreAndDelete makes the sweep a no-op for an order approved in between.
// Returns the number of orders expired.
func (s *CheckoutService) ExpireOverdue() (int, error) {
	var overdue []models.Order
	err := s.db.Where("status = ? AND payment_deadline < ?", models.StatusPendingPayment, s.now()).
		Find(&overdue).Error
	if err != nil {
		return 0, fmt.Errorf("failed to scan overdue orders: %w", err)
	}

	expired := 0
	for _, o := range overdue {
		if err := s.expireOrder(o.ID); err != nil {
			var conflict *StateConflictError
			if errors.As(err, &conflict) || errors.Is(err, ErrNotFound) {
				continue // lost the race to an approve, nothing to do
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func (s *CheckoutService) expireOrder(orderID string) error {
	order, err := s.loadForRestore(orderID)
	if err != nil {
		return err
	}
	if err := s.restoreAndDelete(order); err != nil {
		return err
	}
	s.publish("order.expired", order)
	return nil
}

func (s *CheckoutService) loadForRestore(orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.Preload("Items").First(&order, "id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	if order.Status != models.StatusPendingPayment {
		return nil, &StateConflictError{Expected: models.StatusPendingPayment, Actual: order.Status}
	}
	return &order, nil
}

// restoreAndDelete applies the shared reject/cancel/expire effect in a single
// transaction: release committed stock, hand back coupon uses and claims,
// merge the order's lines into the owner's cart, and hard-delete the order.
// The conditional delete is the commit point that decides races against
// Approve; losing it leaves everything untouched.
func (s *CheckoutService) restoreAndDelete(order *models.Order) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND status = ?", order.ID, models.StatusPendingPayment).
			Delete(&models.Order{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete order %s: %w", order.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return s.stateConflictTx(tx, order.ID, models.StatusPendingPayment)
		}
		if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderItem{}).Error; err != nil {
			return fmt.Errorf("failed to delete order items: %w", err)
		}

		// StockCommitted is set together with the move out of pending_payment,
		// and loadForRestore only admits pending orders, so this branch only
		// fires if the commit point ever moves earlier in the lifecycle.
		if order.StockCommitted {
			if err := s.inventory.Release(tx, stockLinesOf(order.Items)); err != nil {
				return err
			}
		}

		for _, couponID := range []*string{order.PercentCouponID, order.FreeShippingCouponID} {
			if couponID == nil {
				continue
			}
			if err := s.restoreCoupon(tx, order.UserID, *couponID); err != nil {
				return err
			}
		}

		cart, err := ensureCart(tx, order.UserID)
		if err != nil {
			return err
		}
		for _, item := range order.Items {
			res := tx.Model(&models.CartItem{}).
				Where("cart_id = ? AND product_id = ? AND variant_id = ?",
					cart.ID, item.ProductID, item.VariantID).
				UpdateColumn("quantity", gorm.Expr("quantity + ?", item.Quantity))
			if res.Error != nil {
				return fmt.Errorf("failed to merge cart item: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				restored := models.CartItem{
					ID:        uuid.New().String(),
					CartID:    cart.ID,
					ProductID: item.ProductID,
					VariantID: item.VariantID,
					Quantity:  item.Quantity,
				}
				if err := tx.Create(&restored).Error; err != nil {
					return fmt.Errorf("failed to restore cart item: %w", err)
				}
			}
		}
		return nil
	})
}

// consumeCoupon increments the coupon's usage counter and marks the user's
// claim as used.
func (s *CheckoutService) consumeCoupon(tx *gorm.DB, userID, couponID string) error {
	if err := tx.Model(&models.Coupon{}).
		Where("id = ?", couponID).
		UpdateColumn("uses_count", gorm.Expr("uses_count + 1")).Error; err != nil {
		return fmt.Errorf("failed to increment coupon uses: %w", err)
	}
	if err := tx.Model(&models.CouponClaim{}).
		Where("user_id = ? AND coupon_id = ?", userID, couponID).
		Update("used", true).Error; err != nil {
		return fmt.Errorf("failed to mark claim used: %w", err)
	}
	return nil
}

// restoreCoupon is the inverse of consumeCoupon.
func (s *CheckoutService) restoreCoupon(tx *gorm.DB, userID, couponID string) error {
	if err := tx.Model(&models.Coupon{}).
		Where("id = ? AND uses_count > 0", couponID).
		UpdateColumn("uses_count", gorm.Expr("uses_count - 1")).Error; err != nil {
		return fmt.Errorf("failed to decrement coupon uses: %w", err)
	}
	if err := tx.Model(&models.CouponClaim{}).
		Where("user_id = ? AND coupon_id = ?", userID, couponID).
		Update("used", false).Error; err != nil {
		return fmt.Errorf("failed to restore claim: %w", err)
	}
	return nil
}

// transition performs a guarded single-status move and publishes an event.
// The order is loaded first so the event payload carries the owner and total
// like every other lifecycle event.
func (s *CheckoutService) transition(orderID, from, to, event string) error {
	var order models.Order
	if err := s.db.First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load order %s: %w", orderID, err)
	}

	res := s.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Update("status", to)
	if res.Error != nil {
		return fmt.Errorf("failed to move order %s to %s: %w", orderID, to, res.Error)
	}
	if res.RowsAffected == 0 {
		return s.stateConflict(orderID, from)
	}
	order.Status = to
	s.publish(event, &order)
	return nil
}

// stateConflict reloads the order to report expected-vs-actual status, or
// ErrNotFound if the order was deleted in the meantime.
func (s *CheckoutService) stateConflict(orderID, expected string) error {
	return s.stateConflictTx(s.db, orderID, expected)
}

func (s *CheckoutService) stateConflictTx(tx *gorm.DB, orderID, expected string) error {
	var current models.Order
	if err := tx.Select("status").First(&current, "id = ?", orderID).Error; err != nil {
		return ErrNotFound
	}
	return &StateConflictError{Expected: expected, Actual: current.Status}
}

func (s *CheckoutService) publish(routingKey string, order *models.Order) {
	if s.events == nil {
		return
	}
	body, err := json.Marshal(map[string]interface{}{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"status":   order.Status,
		"total":    order.Total,
	})
	if err != nil {
		log.Printf("Failed to marshal %s event for order %s: %v", routingKey, order.ID, err)
		return
	}
	if err := s.events.Publish(routingKey, body); err != nil {
		log.Printf("Warning: failed to publish %s event for order %s: %v", routingKey, order.ID, err)
	}
}

func stockLinesOf(items []models.OrderItem) []StockLine {
	lines := make([]StockLine, len(items))
	for i, it := range items {
		lines[i] = StockLine{
			ProductName: it.Product.Name,
			VariantID:   it.VariantID,
			Quantity:    it.Quantity,
		}
	}
	return lines
}

// ensureCart loads the user's cart, creating it on first access.
func ensureCart(tx *gorm.DB, userID string) (*models.Cart, error) {
	var cart models.Cart
	err := tx.First(&cart, "user_id = ?", userID).Error
	if err == nil {
		return &cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	cart = models.Cart{ID: uuid.New().String(), UserID: userID}
	if err := tx.Create(&cart).Error; err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return &cart, nil
}
