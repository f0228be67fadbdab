package models

import (
	"time"

	"github.com/angelmondragon/bistro-backend/pkg/enums"
)

// MenuItem is a sellable dish together with its stock bookkeeping.
// StockQuantity, InitialStock and LowStockAlert are nil for UNLIMITED items.
type MenuItem struct {
	ID                  uint                `gorm:"column:id;primaryKey;autoIncrement"`
	Name                string              `gorm:"column:name;not null"`
	CategoryID          *uint               `gorm:"column:category_id"`
	IsAvailable         bool                `gorm:"column:is_available;not null"`
	InventoryType       enums.InventoryType `gorm:"column:inventory_type;type:inventory_type;not null"`
	StockQuantity       *int                `gorm:"column:stock_quantity;check:chk_menu_items_stock_non_negative,stock_quantity >= 0"`
	InitialStock        *int                `gorm:"column:initial_stock"`
	LowStockAlert       *int                `gorm:"column:low_stock_alert"`
	AutoMarkUnavailable bool                `gorm:"column:auto_mark_unavailable;not null"`
	Deleted             bool                `gorm:"column:deleted;not null"`
	CreatedAt           time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (MenuItem) TableName() string { return "menu_items" }

// IsTracked reports whether the item participates in stock bookkeeping.
func (m MenuItem) IsTracked() bool {
	return m.InventoryType == enums.InventoryTypeTracked
}

// CurrentStock returns the stock level, treating an absent value as zero.
func (m MenuItem) CurrentStock() int {
	if m.StockQuantity == nil {
		return 0
	}
	return *m.StockQuantity
}

// IsLowStock reports whether a tracked item sits at or below its alert threshold.
func (m MenuItem) IsLowStock() bool {
	if !m.IsTracked() || m.StockQuantity == nil || m.LowStockAlert == nil {
		return false
	}
	return *m.StockQuantity <= *m.LowStockAlert
}
