package inventory

import (
	"time"

	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/angelmondragon/bistro-backend/pkg/pagination"
)

// MenuItemDTO represents the stock view of a menu item returned to clients.
type MenuItemDTO struct {
	ID                  uint      `json:"id"`
	Name                string    `json:"name"`
	CategoryID          *uint     `json:"category_id,omitempty"`
	IsAvailable         bool      `json:"is_available"`
	InventoryType       string    `json:"inventory_type"`
	StockQuantity       *int      `json:"stock_quantity"`
	InitialStock        *int      `json:"initial_stock"`
	LowStockAlert       *int      `json:"low_stock_alert"`
	AutoMarkUnavailable bool      `json:"auto_mark_unavailable"`
	IsLowStock          bool      `json:"is_low_stock"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// StockAdjustmentDTO is one ledger row.
type StockAdjustmentDTO struct {
	ID             uint      `json:"id"`
	MenuItemID     uint      `json:"menu_item_id"`
	AdjustmentType string    `json:"adjustment_type"`
	PreviousStock  int       `json:"previous_stock"`
	NewStock       int       `json:"new_stock"`
	Quantity       int       `json:"quantity"`
	Reason         *string   `json:"reason,omitempty"`
	UserID         *uint     `json:"user_id,omitempty"`
	OrderID        *string   `json:"order_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// StockHistoryResult is a page of ledger rows for one item.
type StockHistoryResult struct {
	Items      []StockAdjustmentDTO `json:"items"`
	Pagination pagination.Meta      `json:"pagination"`
}

func newMenuItemDTO(item *models.MenuItem) *MenuItemDTO {
	if item == nil {
		return nil
	}
	return &MenuItemDTO{
		ID:                  item.ID,
		Name:                item.Name,
		CategoryID:          item.CategoryID,
		IsAvailable:         item.IsAvailable,
		InventoryType:       string(item.InventoryType),
		StockQuantity:       item.StockQuantity,
		InitialStock:        item.InitialStock,
		LowStockAlert:       item.LowStockAlert,
		AutoMarkUnavailable: item.AutoMarkUnavailable,
		IsLowStock:          item.IsLowStock(),
		UpdatedAt:           item.UpdatedAt,
	}
}

func newMenuItemDTOs(items []models.MenuItem) []MenuItemDTO {
	out := make([]MenuItemDTO, 0, len(items))
	for i := range items {
		out = append(out, *newMenuItemDTO(&items[i]))
	}
	return out
}

func newStockAdjustmentDTO(row models.StockAdjustment) StockAdjustmentDTO {
	return StockAdjustmentDTO{
		ID:             row.ID,
		MenuItemID:     row.MenuItemID,
		AdjustmentType: string(row.AdjustmentType),
		PreviousStock:  row.PreviousStock,
		NewStock:       row.NewStock,
		Quantity:       row.Quantity,
		Reason:         row.Reason,
		UserID:         row.UserID,
		OrderID:        row.OrderID,
		CreatedAt:      row.CreatedAt,
	}
}
