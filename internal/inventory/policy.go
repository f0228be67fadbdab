package inventory

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bistro-backend/pkg/errors"
)

const (
	minReasonLength = 3
	maxReasonLength = 255
)

// applyDelta is the single stock formula: an absent previous level counts as zero.
func applyDelta(previous *int, delta int) (prev, next int) {
	if previous != nil {
		prev = *previous
	}
	return prev, prev + delta
}

// shouldAutoBlock reports whether an order deduction must take the item off sale.
func shouldAutoBlock(item *models.MenuItem, newStock int) bool {
	return item.AutoMarkUnavailable && newStock <= 0
}

// crossedLowStock reports whether stock moved from above the alert to at or below it.
func crossedLowStock(alert *int, previous, next int) bool {
	if alert == nil {
		return false
	}
	return previous > *alert && next <= *alert
}

func requireTracked(item *models.MenuItem) error {
	if item.IsTracked() {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeInvalidInventoryType, "menu item is not tracked").
		WithDetails(map[string]any{
			"menu_item_id":   item.ID,
			"inventory_type": item.InventoryType,
		})
}

func insufficientStock(itemID uint, requested, available int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("only %d in stock", available)).
		WithDetails(map[string]any{
			"menu_item_id": itemID,
			"requested":    requested,
			"available":    available,
		})
}

func itemNotFound(itemID uint) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "menu item not found").
		WithDetails(map[string]any{"menu_item_id": itemID})
}

func validationError(field, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, message).
		WithDetails(map[string]any{"field": field})
}

func validateItemID(itemID uint) error {
	if itemID == 0 {
		return validationError("item_id", "item_id is required")
	}
	return nil
}

func validatePositiveQuantity(quantity int) error {
	if quantity <= 0 {
		return validationError("quantity", "quantity must be greater than zero")
	}
	return nil
}

func validateAlert(alert *int) error {
	if alert != nil && *alert < 0 {
		return validationError("low_stock_alert", "low_stock_alert cannot be negative")
	}
	return nil
}

// normalizeReason trims the reason and enforces its length. A blank optional
// reason is stored as NULL.
func normalizeReason(reason string, required bool) (*string, error) {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		if required {
			return nil, validationError("reason", "reason is required")
		}
		return nil, nil
	}
	if len([]rune(trimmed)) < minReasonLength {
		return nil, validationError("reason", fmt.Sprintf("reason must be at least %d characters", minReasonLength))
	}
	if len([]rune(trimmed)) > maxReasonLength {
		return nil, validationError("reason", fmt.Sprintf("reason must be at most %d characters", maxReasonLength))
	}
	return &trimmed, nil
}
