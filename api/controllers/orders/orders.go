package orders

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/bistro-backend/api/responses"
	"github.com/angelmondragon/bistro-backend/api/validators"
	internalorders "github.com/angelmondragon/bistro-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/bistro-backend/pkg/errors"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
)

const (
	orderIDParam = "orderId"
	maxOrderID   = 64
)

type stockLinesRequest struct {
	Lines []internalorders.Line `json:"lines" validate:"required,min=1,dive"`
}

// ConfirmOrder deducts stock for every line of a confirmed order. It is called
// by the order subsystem, not by staff.
func ConfirmOrder(hooks internalorders.StockHooks, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, req, err := parseStockRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := hooks.ConfirmOrder(r.Context(), nil, orderID, req.Lines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// CancelOrder returns the stock taken by a cancelled order.
func CancelOrder(hooks internalorders.StockHooks, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, req, err := parseStockRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := hooks.CancelOrder(r.Context(), nil, orderID, req.Lines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func parseStockRequest(r *http.Request) (string, stockLinesRequest, error) {
	var req stockLinesRequest
	orderID := strings.TrimSpace(chi.URLParam(r, orderIDParam))
	if orderID == "" || len(orderID) > maxOrderID {
		return "", req, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id").
			WithDetails(map[string]any{"field": orderIDParam})
	}
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		return "", req, err
	}
	return orderID, req, nil
}
