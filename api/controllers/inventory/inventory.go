package inventory

import (
	"net/http"

	"github.com/angelmondragon/bistro-backend/api/middleware"
	"github.com/angelmondragon/bistro-backend/api/responses"
	"github.com/angelmondragon/bistro-backend/api/validators"
	internalinventory "github.com/angelmondragon/bistro-backend/internal/inventory"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bistro-backend/pkg/errors"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
)

const itemIDParam = "itemId"

type dailyResetItem struct {
	ItemID        uint `json:"item_id" validate:"required,gt=0"`
	Quantity      *int `json:"quantity" validate:"required,gte=0"`
	LowStockAlert *int `json:"low_stock_alert" validate:"omitempty,gte=1"`
}

type dailyResetRequest struct {
	Items []dailyResetItem `json:"items" validate:"required,min=1,dive"`
}

type addStockRequest struct {
	Quantity int    `json:"quantity" validate:"required,gt=0"`
	Reason   string `json:"reason" validate:"required,min=3,max=255"`
}

type removeStockRequest struct {
	Quantity int    `json:"quantity" validate:"required,gt=0"`
	Reason   string `json:"reason" validate:"omitempty,min=3,max=255"`
}

type setTypeRequest struct {
	InventoryType string `json:"inventory_type" validate:"required"`
	LowStockAlert *int   `json:"low_stock_alert" validate:"omitempty,gte=1"`
}

// DailyReset sets the opening stock for a batch of tracked items.
func DailyReset(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dailyResetRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries := make([]internalinventory.DailyResetEntry, 0, len(req.Items))
		for _, item := range req.Items {
			entries = append(entries, internalinventory.DailyResetEntry{
				ItemID:        item.ItemID,
				Quantity:      *item.Quantity,
				LowStockAlert: item.LowStockAlert,
			})
		}
		items, err := svc.DailyReset(r.Context(), nil, internalinventory.DailyResetInput{
			Items:  entries,
			UserID: middleware.UserIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

// AddStock replenishes a tracked item.
func AddStock(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.ParseIDParam(r, itemIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req addStockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.AddStock(r.Context(), nil, internalinventory.AddStockInput{
			ItemID:   itemID,
			Quantity: req.Quantity,
			Reason:   req.Reason,
			UserID:   middleware.UserIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// RemoveStock takes waste or spoilage out of a tracked item.
func RemoveStock(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.ParseIDParam(r, itemIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req removeStockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.RemoveStock(r.Context(), nil, internalinventory.RemoveStockInput{
			ItemID:   itemID,
			Quantity: req.Quantity,
			Reason:   req.Reason,
			UserID:   middleware.UserIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// SetInventoryType switches an item between TRACKED and UNLIMITED.
func SetInventoryType(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.ParseIDParam(r, itemIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req setTypeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		inventoryType, err := enums.ParseInventoryType(req.InventoryType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "inventory_type must be TRACKED or UNLIMITED").
				WithDetails(map[string]any{"field": "inventory_type"}))
			return
		}
		item, err := svc.SetInventoryType(r.Context(), nil, internalinventory.SetInventoryTypeInput{
			ItemID:        itemID,
			InventoryType: inventoryType,
			LowStockAlert: req.LowStockAlert,
			UserID:        middleware.UserIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func GetItem(queries internalinventory.QueryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.ParseIDParam(r, itemIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := queries.GetItem(r.Context(), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// History pages through an item's stock ledger, newest first.
func History(queries internalinventory.QueryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.ParseIDParam(r, itemIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParseQueryInt(r, "page", 1, 1, 1<<20)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		// 0 lets the query service apply the configured default
		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 1<<20)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := queries.GetStockHistory(r.Context(), internalinventory.StockHistoryInput{
			ItemID: itemID,
			Page:   page,
			Limit:  limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, result.Items, result.Pagination)
	}
}

func LowStock(queries internalinventory.QueryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := queries.GetLowStock(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func OutOfStock(queries internalinventory.QueryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := queries.GetOutOfStock(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}
