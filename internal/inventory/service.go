package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/bistro-backend/pkg/config"
	dbpkg "github.com/angelmondragon/bistro-backend/pkg/db"
	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bistro-backend/pkg/errors"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
	"github.com/angelmondragon/bistro-backend/pkg/metrics"
	"github.com/angelmondragon/bistro-backend/pkg/outbox"
	"github.com/angelmondragon/bistro-backend/pkg/outbox/payloads"
)

// Service applies stock rules to menu items. Every mutation takes an optional
// transaction: when tx is non-nil the work joins it, otherwise a new one is opened.
type Service interface {
	DailyReset(ctx context.Context, tx *gorm.DB, input DailyResetInput) ([]MenuItemDTO, error)
	AddStock(ctx context.Context, tx *gorm.DB, input AddStockInput) (*MenuItemDTO, error)
	RemoveStock(ctx context.Context, tx *gorm.DB, input RemoveStockInput) (*MenuItemDTO, error)
	DeductStockForOrder(ctx context.Context, tx *gorm.DB, input OrderStockInput) (*MenuItemDTO, error)
	RevertStockForOrder(ctx context.Context, tx *gorm.DB, input OrderStockInput) (*MenuItemDTO, error)
	SetInventoryType(ctx context.Context, tx *gorm.DB, input SetInventoryTypeInput) (*MenuItemDTO, error)
}

// DailyResetEntry sets one item's opening stock.
type DailyResetEntry struct {
	ItemID        uint
	Quantity      int
	LowStockAlert *int
}

// DailyResetInput is an all-or-nothing batch of opening stock levels.
type DailyResetInput struct {
	Items  []DailyResetEntry
	UserID *uint
}

// AddStockInput restocks a tracked item.
type AddStockInput struct {
	ItemID   uint
	Quantity int
	Reason   string
	UserID   *uint
}

// RemoveStockInput removes stock for waste or spoilage.
type RemoveStockInput struct {
	ItemID   uint
	Quantity int
	Reason   string
	UserID   *uint
}

// OrderStockInput ties a stock change to an order line.
type OrderStockInput struct {
	ItemID   uint
	Quantity int
	OrderID  string
}

// SetInventoryTypeInput switches an item between TRACKED and UNLIMITED.
type SetInventoryTypeInput struct {
	ItemID        uint
	InventoryType enums.InventoryType
	LowStockAlert *int
	UserID        *uint
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ledgerStore interface {
	LockItemForUpdate(ctx context.Context, tx *gorm.DB, itemID uint) (*models.MenuItem, error)
	ApplyItemMutation(ctx context.Context, tx *gorm.DB, itemID uint, updates map[string]any) (*models.MenuItem, error)
	AppendAdjustment(ctx context.Context, tx *gorm.DB, adjustment *models.StockAdjustment) (*models.StockAdjustment, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams wires the policy engine.
type ServiceParams struct {
	DB      txRunner
	Store   ledgerStore
	Outbox  eventEmitter
	Logger  *logger.Logger
	Metrics *metrics.StockMetrics
	Config  config.InventoryConfig
}

type service struct {
	db      txRunner
	store   ledgerStore
	outbox  eventEmitter
	logg    *logger.Logger
	metrics *metrics.StockMetrics

	defaultAlert int
	resetReason  string
}

// NewService constructs the stock policy engine.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("ledger store required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	defaultAlert := params.Config.DefaultLowStockAlert
	if defaultAlert < 0 {
		return nil, fmt.Errorf("default low stock alert cannot be negative")
	}
	resetReason := strings.TrimSpace(params.Config.DailyResetReason)
	if resetReason == "" {
		resetReason = "Begin of the day"
	}
	return &service{
		db:           params.DB,
		store:        params.Store,
		outbox:       params.Outbox,
		logg:         params.Logger,
		metrics:      params.Metrics,
		defaultAlert: defaultAlert,
		resetReason:  resetReason,
	}, nil
}

type availabilityRule int

const (
	keepAvailability availabilityRule = iota
	// restoreAvailability puts the item back on sale.
	restoreAvailability
	// blockWhenEmpty takes the item off sale at exactly zero, regardless of settings.
	blockWhenEmpty
	// autoBlock takes the item off sale at zero only when auto-marking is enabled.
	autoBlock
)

type stockChange struct {
	adjustmentType enums.StockAdjustmentType
	// previous is the level written to the ledger row.
	previous     int
	next         int
	extra        map[string]any
	availability availabilityRule
	reason       *string
	userID       *uint
	orderID      *string
}

func (s *service) DailyReset(ctx context.Context, tx *gorm.DB, input DailyResetInput) ([]MenuItemDTO, error) {
	if len(input.Items) == 0 {
		return nil, validationError("items", "at least one item is required")
	}
	seen := make(map[uint]struct{}, len(input.Items))
	for i, entry := range input.Items {
		if err := validateItemID(entry.ItemID); err != nil {
			return nil, err
		}
		if entry.Quantity < 0 {
			return nil, validationError(fmt.Sprintf("items[%d].quantity", i), "quantity cannot be negative")
		}
		if err := validateAlert(entry.LowStockAlert); err != nil {
			return nil, err
		}
		if _, dup := seen[entry.ItemID]; dup {
			return nil, validationError(fmt.Sprintf("items[%d].item_id", i), "item appears more than once in the batch")
		}
		seen[entry.ItemID] = struct{}{}
	}
	reason := s.resetReason

	results := make([]MenuItemDTO, 0, len(input.Items))
	err := s.inTx(ctx, tx, func(tx *gorm.DB) error {
		for _, entry := range input.Items {
			item, err := s.lockItem(ctx, tx, entry.ItemID)
			if err != nil {
				return err
			}
			if err := requireTracked(item); err != nil {
				return err
			}
			// the ledger records the reset against a zero baseline
			prev, next := applyDelta(nil, entry.Quantity)
			extra := map[string]any{colInitialStock: entry.Quantity}
			if entry.LowStockAlert != nil {
				extra[colLowStockAlert] = *entry.LowStockAlert
			}
			updated, err := s.commitChange(ctx, tx, item, stockChange{
				adjustmentType: enums.AdjustmentDailyReset,
				previous:       prev,
				next:           next,
				extra:          extra,
				availability:   restoreAvailability,
				reason:         &reason,
				userID:         input.UserID,
			})
			if err != nil {
				return err
			}
			results = append(results, *newMenuItemDTO(updated))
		}
		return nil
	})
	if err != nil {
		return nil, s.classify(ctx, "daily reset", err)
	}
	s.logg.Info(s.logg.WithField(ctx, "items", len(results)), "inventory.daily_reset_applied")
	return results, nil
}

func (s *service) AddStock(ctx context.Context, tx *gorm.DB, input AddStockInput) (*MenuItemDTO, error) {
	if err := validateItemID(input.ItemID); err != nil {
		return nil, err
	}
	if err := validatePositiveQuantity(input.Quantity); err != nil {
		return nil, err
	}
	reason, err := normalizeReason(input.Reason, true)
	if err != nil {
		return nil, err
	}

	var updated *models.MenuItem
	err = s.inTx(ctx, tx, func(tx *gorm.DB) error {
		item, err := s.lockItem(ctx, tx, input.ItemID)
		if err != nil {
			return err
		}
		if err := requireTracked(item); err != nil {
			return err
		}
		prev, next := applyDelta(item.StockQuantity, input.Quantity)
		updated, err = s.commitChange(ctx, tx, item, stockChange{
			adjustmentType: enums.AdjustmentManualAdd,
			previous:       prev,
			next:           next,
			availability:   restoreAvailability,
			reason:         reason,
			userID:         input.UserID,
		})
		return err
	})
	if err != nil {
		return nil, s.classify(ctx, "add stock", err)
	}
	return newMenuItemDTO(updated), nil
}

func (s *service) RemoveStock(ctx context.Context, tx *gorm.DB, input RemoveStockInput) (*MenuItemDTO, error) {
	if err := validateItemID(input.ItemID); err != nil {
		return nil, err
	}
	if err := validatePositiveQuantity(input.Quantity); err != nil {
		return nil, err
	}
	reason, err := normalizeReason(input.Reason, false)
	if err != nil {
		return nil, err
	}

	var updated *models.MenuItem
	err = s.inTx(ctx, tx, func(tx *gorm.DB) error {
		item, err := s.lockItem(ctx, tx, input.ItemID)
		if err != nil {
			return err
		}
		if err := requireTracked(item); err != nil {
			return err
		}
		if input.Quantity > item.CurrentStock() {
			return insufficientStock(item.ID, input.Quantity, item.CurrentStock())
		}
		prev, next := applyDelta(item.StockQuantity, -input.Quantity)
		updated, err = s.commitChange(ctx, tx, item, stockChange{
			adjustmentType: enums.AdjustmentManualRemove,
			previous:       prev,
			next:           next,
			availability:   blockWhenEmpty,
			reason:         reason,
			userID:         input.UserID,
		})
		return err
	})
	if err != nil {
		return nil, s.classify(ctx, "remove stock", err)
	}
	return newMenuItemDTO(updated), nil
}

// DeductStockForOrder consumes stock for a confirmed order line. Missing and
// UNLIMITED items are skipped without error; the result is nil for missing items.
func (s *service) DeductStockForOrder(ctx context.Context, tx *gorm.DB, input OrderStockInput) (*MenuItemDTO, error) {
	if err := validateOrderInput(input); err != nil {
		return nil, err
	}
	orderID := strings.TrimSpace(input.OrderID)
	ctx = s.logg.WithOrderID(ctx, orderID)

	var result *models.MenuItem
	err := s.inTx(ctx, tx, func(tx *gorm.DB) error {
		item, err := s.store.LockItemForUpdate(ctx, tx, input.ItemID)
		if err != nil {
			if errors.Is(err, ErrItemNotFound) {
				s.logg.Warn(s.logg.WithItemID(ctx, input.ItemID), "inventory.deduct_skipped_missing_item")
				return nil
			}
			return err
		}
		if !item.IsTracked() {
			result = item
			return nil
		}
		if input.Quantity > item.CurrentStock() {
			return insufficientStock(item.ID, input.Quantity, item.CurrentStock())
		}
		prev, next := applyDelta(item.StockQuantity, -input.Quantity)
		reason := fmt.Sprintf("Order %s", orderID)
		result, err = s.commitChange(ctx, tx, item, stockChange{
			adjustmentType: enums.AdjustmentOrderDeduct,
			previous:       prev,
			next:           next,
			availability:   autoBlock,
			reason:         &reason,
			orderID:        &orderID,
		})
		return err
	})
	if err != nil {
		return nil, s.classify(ctx, "deduct stock for order", err)
	}
	return newMenuItemDTO(result), nil
}

// RevertStockForOrder returns stock for a cancelled order line. Availability is
// left untouched; only a manual restock puts an auto-blocked item back on sale.
func (s *service) RevertStockForOrder(ctx context.Context, tx *gorm.DB, input OrderStockInput) (*MenuItemDTO, error) {
	if err := validateOrderInput(input); err != nil {
		return nil, err
	}
	orderID := strings.TrimSpace(input.OrderID)
	ctx = s.logg.WithOrderID(ctx, orderID)

	var result *models.MenuItem
	err := s.inTx(ctx, tx, func(tx *gorm.DB) error {
		item, err := s.store.LockItemForUpdate(ctx, tx, input.ItemID)
		if err != nil {
			if errors.Is(err, ErrItemNotFound) {
				s.logg.Warn(s.logg.WithItemID(ctx, input.ItemID), "inventory.revert_skipped_missing_item")
				return nil
			}
			return err
		}
		if !item.IsTracked() {
			result = item
			return nil
		}
		prev, next := applyDelta(item.StockQuantity, input.Quantity)
		reason := fmt.Sprintf("Order %s cancelled", orderID)
		result, err = s.commitChange(ctx, tx, item, stockChange{
			adjustmentType: enums.AdjustmentOrderCancelled,
			previous:       prev,
			next:           next,
			availability:   keepAvailability,
			reason:         &reason,
			orderID:        &orderID,
		})
		return err
	})
	if err != nil {
		return nil, s.classify(ctx, "revert stock for order", err)
	}
	return newMenuItemDTO(result), nil
}

// SetInventoryType changes how an item is stocked. It never writes a ledger row.
func (s *service) SetInventoryType(ctx context.Context, tx *gorm.DB, input SetInventoryTypeInput) (*MenuItemDTO, error) {
	if err := validateItemID(input.ItemID); err != nil {
		return nil, err
	}
	if !input.InventoryType.IsValid() {
		return nil, validationError("inventory_type", "inventory_type must be TRACKED or UNLIMITED")
	}
	if err := validateAlert(input.LowStockAlert); err != nil {
		return nil, err
	}

	var updated *models.MenuItem
	err := s.inTx(ctx, tx, func(tx *gorm.DB) error {
		item, err := s.lockItem(ctx, tx, input.ItemID)
		if err != nil {
			return err
		}
		updates := s.typeTransition(item, input)
		if len(updates) == 0 {
			updated = item
			return nil
		}
		updated, err = s.store.ApplyItemMutation(ctx, tx, item.ID, updates)
		if err != nil {
			return err
		}
		logCtx := s.logg.WithFields(s.logg.WithItemID(ctx, item.ID), map[string]any{
			"from": item.InventoryType,
			"to":   updated.InventoryType,
		})
		s.logg.Info(logCtx, "inventory.type_changed")
		return nil
	})
	if err != nil {
		return nil, s.classify(ctx, "set inventory type", err)
	}
	return newMenuItemDTO(updated), nil
}

func (s *service) typeTransition(item *models.MenuItem, input SetInventoryTypeInput) map[string]any {
	switch {
	case input.InventoryType == enums.InventoryTypeUnlimited && !item.IsTracked():
		return nil
	case input.InventoryType == enums.InventoryTypeUnlimited:
		return map[string]any{
			colInventoryType: enums.InventoryTypeUnlimited,
			colStockQuantity: nil,
			colInitialStock:  nil,
			colLowStockAlert: nil,
		}
	case item.IsTracked():
		if input.LowStockAlert == nil {
			return nil
		}
		return map[string]any{colLowStockAlert: *input.LowStockAlert}
	default:
		alert := s.defaultAlert
		if input.LowStockAlert != nil {
			alert = *input.LowStockAlert
		}
		return map[string]any{
			colInventoryType:       enums.InventoryTypeTracked,
			colStockQuantity:       0,
			colInitialStock:        0,
			colLowStockAlert:       alert,
			colAutoMarkUnavailable: true,
		}
	}
}

// commitChange writes the item mutation, its ledger row and any outbox events.
func (s *service) commitChange(ctx context.Context, tx *gorm.DB, item *models.MenuItem, change stockChange) (*models.MenuItem, error) {
	if change.next < 0 {
		return nil, insufficientStock(item.ID, change.previous-change.next, item.CurrentStock())
	}
	updates := map[string]any{colStockQuantity: change.next}
	for column, value := range change.extra {
		updates[column] = value
	}
	switch change.availability {
	case restoreAvailability:
		updates[colIsAvailable] = true
	case blockWhenEmpty:
		if change.next == 0 {
			updates[colIsAvailable] = false
		}
	case autoBlock:
		if shouldAutoBlock(item, change.next) {
			updates[colIsAvailable] = false
		}
	}

	updated, err := s.store.ApplyItemMutation(ctx, tx, item.ID, updates)
	if err != nil {
		return nil, err
	}
	adjustment := &models.StockAdjustment{
		MenuItemID:     item.ID,
		AdjustmentType: change.adjustmentType,
		PreviousStock:  change.previous,
		NewStock:       change.next,
		Quantity:       change.next - change.previous,
		Reason:         change.reason,
		UserID:         change.userID,
		OrderID:        change.orderID,
	}
	if _, err := s.store.AppendAdjustment(ctx, tx, adjustment); err != nil {
		return nil, err
	}
	if err := s.emitTransitions(ctx, tx, item, updated, change); err != nil {
		return nil, err
	}

	s.metrics.IncAdjustment(string(change.adjustmentType))
	logCtx := s.logg.WithFields(s.logg.WithItemID(ctx, item.ID), map[string]any{
		"adjustment_type": change.adjustmentType,
		"previous_stock":  change.previous,
		"new_stock":       change.next,
		"quantity":        adjustment.Quantity,
	})
	s.logg.Info(logCtx, "inventory.stock_adjusted")
	return updated, nil
}

func (s *service) emitTransitions(ctx context.Context, tx *gorm.DB, before, after *models.MenuItem, change stockChange) error {
	var events []enums.OutboxEventType
	switch {
	case before.IsAvailable && !after.IsAvailable:
		events = append(events, enums.EventMenuItemBlocked)
		if change.availability == autoBlock {
			s.metrics.IncAutoBlocked()
			s.logg.Warn(s.logg.WithItemID(ctx, after.ID), "inventory.item_auto_blocked")
		} else {
			s.logg.Info(s.logg.WithItemID(ctx, after.ID), "inventory.item_blocked")
		}
	case !before.IsAvailable && after.IsAvailable:
		events = append(events, enums.EventMenuItemAvailable)
	}
	if change.adjustmentType != enums.AdjustmentDailyReset &&
		crossedLowStock(after.LowStockAlert, before.CurrentStock(), change.next) {
		events = append(events, enums.EventMenuItemLowStock)
	}

	for _, eventType := range events {
		var actor *outbox.ActorRef
		if change.userID != nil {
			actor = &outbox.ActorRef{UserID: change.userID, Source: "staff"}
		} else if change.orderID != nil {
			actor = &outbox.ActorRef{Source: "order"}
		}
		err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateMenuItem,
			AggregateID:   strconv.FormatUint(uint64(after.ID), 10),
			Actor:         actor,
			Data: payloads.MenuItemStockEvent{
				MenuItemID:     after.ID,
				Name:           after.Name,
				AdjustmentType: change.adjustmentType,
				PreviousStock:  change.previous,
				NewStock:       change.next,
				LowStockAlert:  after.LowStockAlert,
				IsAvailable:    after.IsAvailable,
				OrderID:        change.orderID,
			},
		})
		if err != nil {
			return fmt.Errorf("emit %s: %w", eventType, err)
		}
	}
	return nil
}

func (s *service) lockItem(ctx context.Context, tx *gorm.DB, itemID uint) (*models.MenuItem, error) {
	item, err := s.store.LockItemForUpdate(ctx, tx, itemID)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil, itemNotFound(itemID)
		}
		return nil, err
	}
	return item, nil
}

func (s *service) inTx(ctx context.Context, tx *gorm.DB, fn func(tx *gorm.DB) error) error {
	if tx != nil {
		return fn(tx)
	}
	return s.db.WithTx(ctx, fn)
}

// classify keeps typed rule violations and maps store failures to PERSISTENCE_FAILURE.
func (s *service) classify(ctx context.Context, op string, err error) error {
	if typed := pkgerrors.As(err); typed != nil {
		s.metrics.IncRejection(string(typed.Code()))
		return err
	}
	s.metrics.IncRejection(string(pkgerrors.CodePersistence))
	if dbpkg.IsLockConflict(err) {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "inventory.lock_conflict")
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, op+": concurrent update, retry")
	}
	s.logg.Error(ctx, op+" failed", err)
	return pkgerrors.Wrap(pkgerrors.CodePersistence, err, op+" failed")
}

func validateOrderInput(input OrderStockInput) error {
	if err := validateItemID(input.ItemID); err != nil {
		return err
	}
	if err := validatePositiveQuantity(input.Quantity); err != nil {
		return err
	}
	if strings.TrimSpace(input.OrderID) == "" {
		return validationError("order_id", "order_id is required")
	}
	return nil
}
