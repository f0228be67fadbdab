package enums

import (
	"fmt"
	"strings"
)

// InventoryType maps to the inventory_type enum in Postgres.
type InventoryType string

const (
	InventoryTypeTracked   InventoryType = "TRACKED"
	InventoryTypeUnlimited InventoryType = "UNLIMITED"
)

var validInventoryTypes = []InventoryType{
	InventoryTypeTracked,
	InventoryTypeUnlimited,
}

// IsValid reports whether the value matches the canonical inventory_type enum.
func (t InventoryType) IsValid() bool {
	for _, candidate := range validInventoryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseInventoryType converts raw input into InventoryType. Matching is case-insensitive.
func ParseInventoryType(value string) (InventoryType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validInventoryTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory type %q", value)
}

// StockAdjustmentType maps to the stock_adjustment_type enum in Postgres.
type StockAdjustmentType string

const (
	AdjustmentDailyReset     StockAdjustmentType = "DAILY_RESET"
	AdjustmentManualAdd      StockAdjustmentType = "MANUAL_ADD"
	AdjustmentManualRemove   StockAdjustmentType = "MANUAL_REMOVE"
	AdjustmentOrderDeduct    StockAdjustmentType = "ORDER_DEDUCT"
	AdjustmentOrderCancelled StockAdjustmentType = "ORDER_CANCELLED"
	AdjustmentAutoBlocked    StockAdjustmentType = "AUTO_BLOCKED"
)

var validStockAdjustmentTypes = []StockAdjustmentType{
	AdjustmentDailyReset,
	AdjustmentManualAdd,
	AdjustmentManualRemove,
	AdjustmentOrderDeduct,
	AdjustmentOrderCancelled,
	AdjustmentAutoBlocked,
}

// IsValid reports whether the value matches the canonical stock_adjustment_type enum.
func (t StockAdjustmentType) IsValid() bool {
	for _, candidate := range validStockAdjustmentTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseStockAdjustmentType converts raw input into StockAdjustmentType.
func ParseStockAdjustmentType(value string) (StockAdjustmentType, error) {
	for _, candidate := range validStockAdjustmentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock adjustment type %q", value)
}
