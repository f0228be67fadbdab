package inventory

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
)

// Column names touched by stock mutations.
const (
	colInventoryType       = "inventory_type"
	colStockQuantity       = "stock_quantity"
	colInitialStock        = "initial_stock"
	colLowStockAlert       = "low_stock_alert"
	colIsAvailable         = "is_available"
	colAutoMarkUnavailable = "auto_mark_unavailable"
)

// ErrItemNotFound is returned when a menu item is missing or soft-deleted.
var ErrItemNotFound = errors.New("menu item not found")

// Repository is the ledger store: row-locked item reads, item mutations and
// append-only adjustment rows, all scoped to a caller supplied transaction.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// LockItemForUpdate reads the item with SELECT ... FOR UPDATE. The lock is held
// until tx commits or rolls back.
func (r *Repository) LockItemForUpdate(ctx context.Context, tx *gorm.DB, itemID uint) (*models.MenuItem, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var item models.MenuItem
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND deleted = ?", itemID, false).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

// ApplyItemMutation writes the partial field update and returns the stored row.
// A nil value in updates clears the column.
func (r *Repository) ApplyItemMutation(ctx context.Context, tx *gorm.DB, itemID uint, updates map[string]any) (*models.MenuItem, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if len(updates) > 0 {
		res := tx.WithContext(ctx).
			Model(&models.MenuItem{}).
			Where("id = ?", itemID).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrItemNotFound
		}
	}
	var item models.MenuItem
	if err := tx.WithContext(ctx).Where("id = ?", itemID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

// AppendAdjustment inserts one ledger row. Ledger rows are never updated.
func (r *Repository) AppendAdjustment(ctx context.Context, tx *gorm.DB, adjustment *models.StockAdjustment) (*models.StockAdjustment, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if adjustment == nil {
		return nil, errors.New("adjustment required")
	}
	if err := tx.WithContext(ctx).Create(adjustment).Error; err != nil {
		return nil, err
	}
	return adjustment, nil
}

// FindItem loads a live item without locking.
func (r *Repository) FindItem(ctx context.Context, itemID uint) (*models.MenuItem, error) {
	var item models.MenuItem
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted = ?", itemID, false).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *Repository) trackedItems(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.MenuItem{}).
		Where("deleted = ?", false).
		Where("inventory_type = ?", enums.InventoryTypeTracked).
		Where("stock_quantity IS NOT NULL")
}

// ListLowStock returns tracked items at or below their alert threshold.
func (r *Repository) ListLowStock(ctx context.Context) ([]models.MenuItem, error) {
	var items []models.MenuItem
	err := r.trackedItems(ctx).
		Where("low_stock_alert IS NOT NULL").
		Where("stock_quantity <= low_stock_alert").
		Order("stock_quantity ASC").
		Order("id ASC").
		Find(&items).Error
	return items, err
}

// ListOutOfStock returns tracked items whose stock reached zero.
func (r *Repository) ListOutOfStock(ctx context.Context) ([]models.MenuItem, error) {
	var items []models.MenuItem
	err := r.trackedItems(ctx).
		Where("stock_quantity = ?", 0).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

// ListAdjustments pages through an item's ledger, newest first.
func (r *Repository) ListAdjustments(ctx context.Context, itemID uint, offset, limit int) ([]models.StockAdjustment, int64, error) {
	base := r.db.WithContext(ctx).
		Model(&models.StockAdjustment{}).
		Where("menu_item_id = ?", itemID)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.StockAdjustment
	err := base.Session(&gorm.Session{}).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
