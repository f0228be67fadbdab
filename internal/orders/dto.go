package orders

import (
	"slices"

	"github.com/angelmondragon/bistro-backend/internal/inventory"
)

// Line is one menu item entry of an order.
type Line struct {
	ItemID   uint `json:"item_id" validate:"required,gt=0"`
	Quantity int  `json:"quantity" validate:"required,gt=0"`
}

// StockResult reports how an order touched stock.
type StockResult struct {
	OrderID string                  `json:"order_id"`
	Items   []inventory.MenuItemDTO `json:"items"`
	// Skipped holds item ids that are missing from the menu or UNLIMITED.
	Skipped []uint `json:"skipped,omitempty"`
}

// aggregateLines sums quantities per item and returns them by ascending item id.
func aggregateLines(lines []Line) []Line {
	totals := make(map[uint]int, len(lines))
	ids := make([]uint, 0, len(lines))
	for _, line := range lines {
		if _, ok := totals[line.ItemID]; !ok {
			ids = append(ids, line.ItemID)
		}
		totals[line.ItemID] += line.Quantity
	}
	slices.Sort(ids)
	out := make([]Line, 0, len(ids))
	for _, id := range ids {
		out = append(out, Line{ItemID: id, Quantity: totals[id]})
	}
	return out
}
