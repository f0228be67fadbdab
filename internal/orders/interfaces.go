package orders

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/bistro-backend/internal/inventory"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StockMutator is the slice of the inventory engine used by order processing.
type StockMutator interface {
	DeductStockForOrder(ctx context.Context, tx *gorm.DB, input inventory.OrderStockInput) (*inventory.MenuItemDTO, error)
	RevertStockForOrder(ctx context.Context, tx *gorm.DB, input inventory.OrderStockInput) (*inventory.MenuItemDTO, error)
}
