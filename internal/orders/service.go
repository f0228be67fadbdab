package orders

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/bistro-backend/internal/inventory"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bistro-backend/pkg/errors"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
)

// StockHooks moves stock when the order subsystem confirms or cancels an order.
// Passing a non-nil tx makes the stock changes commit or roll back with the
// caller's order writes.
type StockHooks interface {
	ConfirmOrder(ctx context.Context, tx *gorm.DB, orderID string, lines []Line) (*StockResult, error)
	CancelOrder(ctx context.Context, tx *gorm.DB, orderID string, lines []Line) (*StockResult, error)
}

type stockHooks struct {
	tx    txRunner
	stock StockMutator
	logg  *logger.Logger
}

// NewStockHooks wires order hooks to the inventory engine.
func NewStockHooks(tx txRunner, stock StockMutator, logg *logger.Logger) (StockHooks, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock mutator required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &stockHooks{tx: tx, stock: stock, logg: logg}, nil
}

type lineFunc func(ctx context.Context, tx *gorm.DB, input inventory.OrderStockInput) (*inventory.MenuItemDTO, error)

// ConfirmOrder deducts every line. The first failure aborts the whole order.
func (h *stockHooks) ConfirmOrder(ctx context.Context, tx *gorm.DB, orderID string, lines []Line) (*StockResult, error) {
	return h.apply(ctx, tx, orderID, lines, "orders.stock_deducted", h.stock.DeductStockForOrder)
}

// CancelOrder returns the stock of every line.
func (h *stockHooks) CancelOrder(ctx context.Context, tx *gorm.DB, orderID string, lines []Line) (*StockResult, error) {
	return h.apply(ctx, tx, orderID, lines, "orders.stock_reverted", h.stock.RevertStockForOrder)
}

func (h *stockHooks) apply(ctx context.Context, tx *gorm.DB, orderID string, lines []Line, msg string, fn lineFunc) (*StockResult, error) {
	orderID = strings.TrimSpace(orderID)
	if err := validateOrder(orderID, lines); err != nil {
		return nil, err
	}
	ctx = h.logg.WithOrderID(ctx, orderID)
	merged := aggregateLines(lines)

	var result *StockResult
	run := func(tx *gorm.DB) error {
		// rebuilt on every attempt so a rolled back pass leaves nothing behind
		result = &StockResult{OrderID: orderID, Items: make([]inventory.MenuItemDTO, 0, len(merged))}
		for _, line := range merged {
			item, err := fn(ctx, tx, inventory.OrderStockInput{
				ItemID:   line.ItemID,
				Quantity: line.Quantity,
				OrderID:  orderID,
			})
			if err != nil {
				return err
			}
			// missing and UNLIMITED items carry no stock bookkeeping
			if item == nil || item.InventoryType != string(enums.InventoryTypeTracked) {
				result.Skipped = append(result.Skipped, line.ItemID)
				continue
			}
			result.Items = append(result.Items, *item)
		}
		return nil
	}

	var err error
	if tx != nil {
		err = run(tx)
	} else {
		err = h.tx.WithTx(ctx, run)
	}
	if err != nil {
		return nil, err
	}
	h.logg.Info(h.logg.WithFields(ctx, map[string]any{
		"lines":   len(merged),
		"skipped": len(result.Skipped),
	}), msg)
	return result, nil
}

func validateOrder(orderID string, lines []Line) error {
	if orderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order has no lines")
	}
	for i, line := range lines {
		if line.ItemID == 0 || line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line %d needs an item id and a positive quantity", i)).
				WithDetails(map[string]any{"line": i})
		}
	}
	return nil
}
