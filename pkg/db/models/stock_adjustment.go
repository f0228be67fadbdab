package models

import (
	"time"

	"github.com/angelmondragon/bistro-backend/pkg/enums"
)

// StockAdjustment is an append-only ledger row describing one stock change.
type StockAdjustment struct {
	ID             uint                      `gorm:"column:id;primaryKey;autoIncrement"`
	MenuItemID     uint                      `gorm:"column:menu_item_id;not null;index:idx_stock_adjustments_item_created,priority:1"`
	AdjustmentType enums.StockAdjustmentType `gorm:"column:adjustment_type;type:stock_adjustment_type;not null"`
	PreviousStock  int                       `gorm:"column:previous_stock;not null"`
	NewStock       int                       `gorm:"column:new_stock;not null"`
	Quantity       int                       `gorm:"column:quantity;not null"`
	Reason         *string                   `gorm:"column:reason"`
	UserID         *uint                     `gorm:"column:user_id"`
	OrderID        *string                   `gorm:"column:order_id"`
	CreatedAt      time.Time                 `gorm:"column:created_at;autoCreateTime;index:idx_stock_adjustments_item_created,priority:2,sort:desc"`
}

func (StockAdjustment) TableName() string { return "stock_adjustments" }
