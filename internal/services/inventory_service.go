package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"storefront/internal/models"
)

// StockLine is a (variant, quantity) demand against inventory.
type StockLine struct {
	ProductName string
	VariantID   string
	Quantity    int
}

// InventoryService guards the per-variant stock counters. All writes are
// conditional single-statement updates so a counter can never go negative,
// regardless of how many checkouts race on the same variant.
type InventoryService struct{}

// NewInventoryService creates an InventoryService.
func NewInventoryService() *InventoryService {
	return &InventoryService{}
}

// CheckAvailable verifies every line has sufficient stock at this instant.
// It fails fast with an InsufficientStockError for the first short line. The
// check is advisory: stock is only decremented later by Commit.
func (s *InventoryService) CheckAvailable(tx *gorm.DB, lines []StockLine) error {
	for _, line := range lines {
		var variant models.Variant
		if err := tx.First(&variant, "id = ?", line.VariantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load variant %s: %w", line.VariantID, err)
		}
		if variant.Stock < line.Quantity {
			return &InsufficientStockError{
				ProductName: line.ProductName,
				VariantID:   line.VariantID,
				Requested:   line.Quantity,
				Available:   variant.Stock,
			}
		}
	}
	return nil
}

// Commit decrements stock for every line, or none of them. Each decrement is
// a compare-and-swap (`stock = stock - n WHERE stock >= n`); a line that no
// longer has enough stock returns InsufficientStockError and, because Commit
// runs inside the caller's transaction, rolls back the decrements already made.
func (s *InventoryService) Commit(tx *gorm.DB, lines []StockLine) error {
	for _, line := range lines {
		res := tx.Model(&models.Variant{}).
			Where("id = ? AND stock >= ?", line.VariantID, line.Quantity).
			UpdateColumn("stock", gorm.Expr("stock - ?", line.Quantity))
		if res.Error != nil {
			return fmt.Errorf("failed to decrement stock for variant %s: %w", line.VariantID, res.Error)
		}
		if res.RowsAffected == 0 {
			var variant models.Variant
			available := 0
			if err := tx.First(&variant, "id = ?", line.VariantID).Error; err == nil {
				available = variant.Stock
			}
			return &InsufficientStockError{
				ProductName: line.ProductName,
				VariantID:   line.VariantID,
				Requested:   line.Quantity,
				Available:   available,
			}
		}
	}
	return nil
}

// Release is the compensating action for Commit: it adds the quantities back.
// Callers must only invoke it for orders whose stock was actually committed.
func (s *InventoryService) Release(tx *gorm.DB, lines []StockLine) error {
	for _, line := range lines {
		res := tx.Model(&models.Variant{}).
			Where("id = ?", line.VariantID).
			UpdateColumn("stock", gorm.Expr("stock + ?", line.Quantity))
		if res.Error != nil {
			return fmt.Errorf("failed to restore stock for variant %s: %w", line.VariantID, res.Error)
		}
	}
	return nil
}
