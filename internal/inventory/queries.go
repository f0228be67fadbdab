package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/bistro-backend/pkg/config"
	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bistro-backend/pkg/errors"
	"github.com/angelmondragon/bistro-backend/pkg/pagination"
)

// QueryService exposes read-only stock views.
type QueryService interface {
	GetItem(ctx context.Context, itemID uint) (*MenuItemDTO, error)
	GetLowStock(ctx context.Context) ([]MenuItemDTO, error)
	GetOutOfStock(ctx context.Context) ([]MenuItemDTO, error)
	GetStockHistory(ctx context.Context, input StockHistoryInput) (*StockHistoryResult, error)
}

// StockHistoryInput selects one page of an item's ledger. Zero values fall back to defaults.
type StockHistoryInput struct {
	ItemID uint
	Page   int
	Limit  int
}

type stockReader interface {
	FindItem(ctx context.Context, itemID uint) (*models.MenuItem, error)
	ListLowStock(ctx context.Context) ([]models.MenuItem, error)
	ListOutOfStock(ctx context.Context) ([]models.MenuItem, error)
	ListAdjustments(ctx context.Context, itemID uint, offset, limit int) ([]models.StockAdjustment, int64, error)
}

type queryService struct {
	repo   stockReader
	bounds pagination.Bounds
}

// NewQueryService builds the read side over the ledger store.
func NewQueryService(repo stockReader, cfg config.InventoryConfig) (QueryService, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock reader required")
	}
	return &queryService{
		repo: repo,
		bounds: pagination.Bounds{
			DefaultLimit: cfg.HistoryDefaultLimit,
			MaxLimit:     cfg.HistoryMaxLimit,
		},
	}, nil
}

func (q *queryService) GetItem(ctx context.Context, itemID uint) (*MenuItemDTO, error) {
	if err := validateItemID(itemID); err != nil {
		return nil, err
	}
	item, err := q.repo.FindItem(ctx, itemID)
	if err != nil {
		return nil, readError(itemID, err)
	}
	return newMenuItemDTO(item), nil
}

func (q *queryService) GetLowStock(ctx context.Context) ([]MenuItemDTO, error) {
	items, err := q.repo.ListLowStock(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list low stock items")
	}
	return newMenuItemDTOs(items), nil
}

func (q *queryService) GetOutOfStock(ctx context.Context) ([]MenuItemDTO, error) {
	items, err := q.repo.ListOutOfStock(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list out of stock items")
	}
	return newMenuItemDTOs(items), nil
}

func (q *queryService) GetStockHistory(ctx context.Context, input StockHistoryInput) (*StockHistoryResult, error) {
	if err := validateItemID(input.ItemID); err != nil {
		return nil, err
	}
	params, err := pagination.Normalize(pagination.Params{Page: input.Page, Limit: input.Limit}, q.bounds)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}
	if _, err := q.repo.FindItem(ctx, input.ItemID); err != nil {
		return nil, readError(input.ItemID, err)
	}
	rows, total, err := q.repo.ListAdjustments(ctx, input.ItemID, params.Offset(), params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list stock adjustments")
	}
	items := make([]StockAdjustmentDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, newStockAdjustmentDTO(row))
	}
	return &StockHistoryResult{
		Items:      items,
		Pagination: pagination.NewMeta(params, total),
	}, nil
}

func readError(itemID uint, err error) error {
	if errors.Is(err, ErrItemNotFound) {
		return itemNotFound(itemID)
	}
	return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load menu item")
}
