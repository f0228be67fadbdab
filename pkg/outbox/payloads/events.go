package payloads

import "github.com/angelmondragon/bistro-backend/pkg/enums"

// MenuItemStockEvent describes a stock-driven change to a menu item.
// It backs menu_item_blocked, menu_item_available and menu_item_low_stock.
type MenuItemStockEvent struct {
	MenuItemID     uint                      `json:"menu_item_id"`
	Name           string                    `json:"name"`
	AdjustmentType enums.StockAdjustmentType `json:"adjustment_type"`
	PreviousStock  int                       `json:"previous_stock"`
	NewStock       int                       `json:"new_stock"`
	LowStockAlert  *int                      `json:"low_stock_alert,omitempty"`
	IsAvailable    bool                      `json:"is_available"`
	OrderID        *string                   `json:"order_id,omitempty"`
}
