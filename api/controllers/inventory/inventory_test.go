package inventory

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/angelmondragon/bistro-backend/api/middleware"
	internalinventory "github.com/angelmondragon/bistro-backend/internal/inventory"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bistro-backend/pkg/errors"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
	"github.com/angelmondragon/bistro-backend/pkg/pagination"
)

type stubStockService struct {
	dailyReset func(ctx context.Context, input internalinventory.DailyResetInput) ([]internalinventory.MenuItemDTO, error)
	addStock   func(ctx context.Context, input internalinventory.AddStockInput) (*internalinventory.MenuItemDTO, error)
	remove     func(ctx context.Context, input internalinventory.RemoveStockInput) (*internalinventory.MenuItemDTO, error)
	setType    func(ctx context.Context, input internalinventory.SetInventoryTypeInput) (*internalinventory.MenuItemDTO, error)
}

func (s *stubStockService) DailyReset(ctx context.Context, tx *gorm.DB, input internalinventory.DailyResetInput) ([]internalinventory.MenuItemDTO, error) {
	return s.dailyReset(ctx, input)
}

func (s *stubStockService) AddStock(ctx context.Context, tx *gorm.DB, input internalinventory.AddStockInput) (*internalinventory.MenuItemDTO, error) {
	return s.addStock(ctx, input)
}

func (s *stubStockService) RemoveStock(ctx context.Context, tx *gorm.DB, input internalinventory.RemoveStockInput) (*internalinventory.MenuItemDTO, error) {
	return s.remove(ctx, input)
}

func (s *stubStockService) DeductStockForOrder(ctx context.Context, tx *gorm.DB, input internalinventory.OrderStockInput) (*internalinventory.MenuItemDTO, error) {
	panic("not implemented")
}

func (s *stubStockService) RevertStockForOrder(ctx context.Context, tx *gorm.DB, input internalinventory.OrderStockInput) (*internalinventory.MenuItemDTO, error) {
	panic("not implemented")
}

func (s *stubStockService) SetInventoryType(ctx context.Context, tx *gorm.DB, input internalinventory.SetInventoryTypeInput) (*internalinventory.MenuItemDTO, error) {
	return s.setType(ctx, input)
}

type stubQueries struct {
	item    func(ctx context.Context, itemID uint) (*internalinventory.MenuItemDTO, error)
	history func(ctx context.Context, input internalinventory.StockHistoryInput) (*internalinventory.StockHistoryResult, error)
	low     []internalinventory.MenuItemDTO
	out     []internalinventory.MenuItemDTO
}

func (s *stubQueries) GetItem(ctx context.Context, itemID uint) (*internalinventory.MenuItemDTO, error) {
	return s.item(ctx, itemID)
}

func (s *stubQueries) GetLowStock(ctx context.Context) ([]internalinventory.MenuItemDTO, error) {
	return s.low, nil
}

func (s *stubQueries) GetOutOfStock(ctx context.Context) ([]internalinventory.MenuItemDTO, error) {
	return s.out, nil
}

func (s *stubQueries) GetStockHistory(ctx context.Context, input internalinventory.StockHistoryInput) (*internalinventory.StockHistoryResult, error) {
	return s.history(ctx, input)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "inventory-controller-test", Output: io.Discard})
}

func intPtr(v int) *int { return &v }

func serve(method, pattern, target, body string, handler http.HandlerFunc, userID *uint) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Method(method, pattern, handler)
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if userID != nil {
		req = req.WithContext(middleware.WithUserID(req.Context(), *userID))
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  json.RawMessage `json:"meta"`
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) envelope {
	t.Helper()
	var body envelope
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v (%s)", err, resp.Body.String())
	}
	return body
}

func TestAddStockPassesActorAndPathItem(t *testing.T) {
	var got internalinventory.AddStockInput
	svc := &stubStockService{
		addStock: func(ctx context.Context, input internalinventory.AddStockInput) (*internalinventory.MenuItemDTO, error) {
			got = input
			return &internalinventory.MenuItemDTO{ID: input.ItemID, StockQuantity: intPtr(13)}, nil
		},
	}
	actor := uint(42)
	resp := serve(http.MethodPost, "/items/{itemId}/add", "/items/7/add",
		`{"quantity":3,"reason":"Delivery from supplier"}`, AddStock(svc, testLogger()), &actor)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if got.ItemID != 7 || got.Quantity != 3 || got.Reason != "Delivery from supplier" {
		t.Fatalf("unexpected input %+v", got)
	}
	if got.UserID == nil || *got.UserID != 42 {
		t.Fatalf("expected actor 42, got %v", got.UserID)
	}
	var item internalinventory.MenuItemDTO
	if err := json.Unmarshal(decode(t, resp).Data, &item); err != nil {
		t.Fatalf("decode item: %v", err)
	}
	if item.StockQuantity == nil || *item.StockQuantity != 13 {
		t.Fatalf("unexpected stock %v", item.StockQuantity)
	}
}

func TestAddStockRejectsMissingReason(t *testing.T) {
	svc := &stubStockService{
		addStock: func(ctx context.Context, input internalinventory.AddStockInput) (*internalinventory.MenuItemDTO, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	}
	resp := serve(http.MethodPost, "/items/{itemId}/add", "/items/7/add",
		`{"quantity":3}`, AddStock(svc, testLogger()), nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if code := decode(t, resp).Error.Code; code != string(pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %s", code)
	}
}

func TestAddStockRejectsBadItemID(t *testing.T) {
	svc := &stubStockService{}
	resp := serve(http.MethodPost, "/items/{itemId}/add", "/items/abc/add",
		`{"quantity":3,"reason":"Delivery"}`, AddStock(svc, testLogger()), nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestRemoveStockMapsInsufficientStock(t *testing.T) {
	svc := &stubStockService{
		remove: func(ctx context.Context, input internalinventory.RemoveStockInput) (*internalinventory.MenuItemDTO, error) {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock").
				WithDetails(map[string]any{"requested": input.Quantity, "available": 3})
		},
	}
	resp := serve(http.MethodPost, "/items/{itemId}/remove", "/items/9/remove",
		`{"quantity":5}`, RemoveStock(svc, testLogger()), nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	body := decode(t, resp)
	if body.Error.Code != string(pkgerrors.CodeInsufficientStock) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if body.Error.Details["requested"] != float64(5) || body.Error.Details["available"] != float64(3) {
		t.Fatalf("unexpected details %v", body.Error.Details)
	}
}

func TestRemoveStockAllowsBlankReason(t *testing.T) {
	called := false
	svc := &stubStockService{
		remove: func(ctx context.Context, input internalinventory.RemoveStockInput) (*internalinventory.MenuItemDTO, error) {
			called = true
			if input.Reason != "" {
				t.Fatalf("expected blank reason, got %q", input.Reason)
			}
			return &internalinventory.MenuItemDTO{ID: input.ItemID}, nil
		},
	}
	resp := serve(http.MethodPost, "/items/{itemId}/remove", "/items/9/remove",
		`{"quantity":1}`, RemoveStock(svc, testLogger()), nil)
	if resp.Code != http.StatusOK || !called {
		t.Fatalf("expected success, code=%d called=%v", resp.Code, called)
	}
}

func TestDailyResetBuildsEntries(t *testing.T) {
	var got internalinventory.DailyResetInput
	svc := &stubStockService{
		dailyReset: func(ctx context.Context, input internalinventory.DailyResetInput) ([]internalinventory.MenuItemDTO, error) {
			got = input
			return []internalinventory.MenuItemDTO{{ID: 1}, {ID: 2}}, nil
		},
	}
	resp := serve(http.MethodPost, "/daily-reset", "/daily-reset",
		`{"items":[{"item_id":1,"quantity":0},{"item_id":2,"quantity":30,"low_stock_alert":4}]}`,
		DailyReset(svc, testLogger()), nil)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if len(got.Items) != 2 {
		t.Fatalf("expected 2 entries got %d", len(got.Items))
	}
	if got.Items[0].Quantity != 0 || got.Items[0].LowStockAlert != nil {
		t.Fatalf("unexpected first entry %+v", got.Items[0])
	}
	if got.Items[1].Quantity != 30 || got.Items[1].LowStockAlert == nil || *got.Items[1].LowStockAlert != 4 {
		t.Fatalf("unexpected second entry %+v", got.Items[1])
	}
}

func TestDailyResetRequiresQuantity(t *testing.T) {
	svc := &stubStockService{}
	resp := serve(http.MethodPost, "/daily-reset", "/daily-reset",
		`{"items":[{"item_id":1}]}`, DailyReset(svc, testLogger()), nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	body := decode(t, resp)
	if body.Error.Details["items[0].quantity"] == nil {
		t.Fatalf("expected field detail for quantity, got %v", body.Error.Details)
	}
}

func TestDailyResetRejectsEmptyBatch(t *testing.T) {
	svc := &stubStockService{}
	resp := serve(http.MethodPost, "/daily-reset", "/daily-reset",
		`{"items":[]}`, DailyReset(svc, testLogger()), nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestSetInventoryTypeParsesEnum(t *testing.T) {
	var got internalinventory.SetInventoryTypeInput
	svc := &stubStockService{
		setType: func(ctx context.Context, input internalinventory.SetInventoryTypeInput) (*internalinventory.MenuItemDTO, error) {
			got = input
			return &internalinventory.MenuItemDTO{ID: input.ItemID, InventoryType: string(input.InventoryType)}, nil
		},
	}
	resp := serve(http.MethodPatch, "/items/{itemId}/type", "/items/3/type",
		`{"inventory_type":"unlimited"}`, SetInventoryType(svc, testLogger()), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if got.InventoryType != enums.InventoryTypeUnlimited {
		t.Fatalf("expected UNLIMITED got %s", got.InventoryType)
	}
}

func TestSetInventoryTypeRejectsUnknownType(t *testing.T) {
	svc := &stubStockService{}
	resp := serve(http.MethodPatch, "/items/{itemId}/type", "/items/3/type",
		`{"inventory_type":"SOMETIMES"}`, SetInventoryType(svc, testLogger()), nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if field := decode(t, resp).Error.Details["field"]; field != "inventory_type" {
		t.Fatalf("expected inventory_type field, got %v", field)
	}
}

func TestGetItemNotFound(t *testing.T) {
	queries := &stubQueries{
		item: func(ctx context.Context, itemID uint) (*internalinventory.MenuItemDTO, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "menu item not found")
		},
	}
	resp := serve(http.MethodGet, "/items/{itemId}", "/items/99", "", GetItem(queries, testLogger()), nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestHistoryForwardsPagingAndMeta(t *testing.T) {
	var got internalinventory.StockHistoryInput
	queries := &stubQueries{
		history: func(ctx context.Context, input internalinventory.StockHistoryInput) (*internalinventory.StockHistoryResult, error) {
			got = input
			return &internalinventory.StockHistoryResult{
				Items:      []internalinventory.StockAdjustmentDTO{{ID: 5, AdjustmentType: "MANUAL_ADD"}},
				Pagination: pagination.NewMeta(pagination.Params{Page: 2, Limit: 2}, 5),
			}, nil
		},
	}
	resp := serve(http.MethodGet, "/items/{itemId}/history", "/items/4/history?page=2&limit=2", "",
		History(queries, testLogger()), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if got.ItemID != 4 || got.Page != 2 || got.Limit != 2 {
		t.Fatalf("unexpected input %+v", got)
	}
	body := decode(t, resp)
	var rows []internalinventory.StockAdjustmentDTO
	if err := json.Unmarshal(body.Data, &rows); err != nil {
		t.Fatalf("decode rows: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != 5 {
		t.Fatalf("unexpected rows %+v", rows)
	}
	var meta pagination.Meta
	if err := json.Unmarshal(body.Meta, &meta); err != nil {
		t.Fatalf("decode meta: %v", err)
	}
	if meta.Total != 5 {
		t.Fatalf("unexpected meta %+v", meta)
	}
}

func TestHistoryDefaultsPaging(t *testing.T) {
	var got internalinventory.StockHistoryInput
	queries := &stubQueries{
		history: func(ctx context.Context, input internalinventory.StockHistoryInput) (*internalinventory.StockHistoryResult, error) {
			got = input
			return &internalinventory.StockHistoryResult{Items: []internalinventory.StockAdjustmentDTO{}}, nil
		},
	}
	resp := serve(http.MethodGet, "/items/{itemId}/history", "/items/4/history", "", History(queries, testLogger()), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got.Page != 1 || got.Limit != 0 {
		t.Fatalf("expected page 1 and service default limit, got %+v", got)
	}
}

func TestHistoryRejectsNonNumericPage(t *testing.T) {
	queries := &stubQueries{}
	resp := serve(http.MethodGet, "/items/{itemId}/history", "/items/4/history?page=two", "", History(queries, testLogger()), nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestLowAndOutOfStockLists(t *testing.T) {
	queries := &stubQueries{
		low: []internalinventory.MenuItemDTO{{ID: 1, IsLowStock: true}},
		out: []internalinventory.MenuItemDTO{{ID: 2}, {ID: 3}},
	}
	low := serve(http.MethodGet, "/low-stock", "/low-stock", "", LowStock(queries, testLogger()), nil)
	out := serve(http.MethodGet, "/out-of-stock", "/out-of-stock", "", OutOfStock(queries, testLogger()), nil)

	var lowItems, outItems []internalinventory.MenuItemDTO
	if err := json.Unmarshal(decode(t, low).Data, &lowItems); err != nil {
		t.Fatalf("decode low: %v", err)
	}
	if err := json.Unmarshal(decode(t, out).Data, &outItems); err != nil {
		t.Fatalf("decode out: %v", err)
	}
	if len(lowItems) != 1 || len(outItems) != 2 {
		t.Fatalf("unexpected lists low=%d out=%d", len(lowItems), len(outItems))
	}
}
