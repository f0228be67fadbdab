package cron

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/bistro-backend/internal/inventory"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
	"github.com/angelmondragon/bistro-backend/pkg/metrics"
)

const defaultAlertWindow = 12 * time.Hour

type stockHealthReader interface {
	GetLowStock(ctx context.Context) ([]inventory.MenuItemDTO, error)
	GetOutOfStock(ctx context.Context) ([]inventory.MenuItemDTO, error)
}

type alertStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	AlertKey(parts ...string) string
}

// StockAlertJobParams configure the stock alert job.
type StockAlertJobParams struct {
	Logger  *logger.Logger
	Reader  stockHealthReader
	Alerts  alertStore
	Metrics *metrics.StockMetrics
	// Window suppresses repeat alerts for an item at the same stock level.
	Window time.Duration
}

type stockAlertJob struct {
	logg    *logger.Logger
	reader  stockHealthReader
	alerts  alertStore
	metrics *metrics.StockMetrics
	window  time.Duration
}

// NewStockAlertJob builds the job that publishes stock health gauges and
// warns once per item and stock level.
func NewStockAlertJob(params StockAlertJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("stock reader required")
	}
	if params.Alerts == nil {
		return nil, fmt.Errorf("alert store required")
	}
	window := params.Window
	if window <= 0 {
		window = defaultAlertWindow
	}
	return &stockAlertJob{
		logg:    params.Logger,
		reader:  params.Reader,
		alerts:  params.Alerts,
		metrics: params.Metrics,
		window:  window,
	}, nil
}

func (j *stockAlertJob) Name() string { return "stock-alert" }

func (j *stockAlertJob) Run(ctx context.Context) error {
	low, err := j.reader.GetLowStock(ctx)
	if err != nil {
		return fmt.Errorf("load low stock: %w", err)
	}
	out, err := j.reader.GetOutOfStock(ctx)
	if err != nil {
		return fmt.Errorf("load out of stock: %w", err)
	}
	j.metrics.SetStockHealth(len(low), len(out))

	var errs error
	alerted := 0
	for _, item := range low {
		kind := "low_stock"
		if item.StockQuantity != nil && *item.StockQuantity == 0 {
			kind = "out_of_stock"
		}
		sent, err := j.alert(ctx, kind, item)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("item %d: %w", item.ID, err))
			continue
		}
		if sent {
			alerted++
		}
	}
	// out of stock items without an alert threshold never show up as low
	for _, item := range out {
		if item.LowStockAlert != nil {
			continue
		}
		sent, err := j.alert(ctx, "out_of_stock", item)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("item %d: %w", item.ID, err))
			continue
		}
		if sent {
			alerted++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"low_stock":    len(low),
		"out_of_stock": len(out),
		"alerted":      alerted,
	})
	j.logg.Info(logCtx, "inventory.stock_health")
	return errs
}

func (j *stockAlertJob) alert(ctx context.Context, kind string, item inventory.MenuItemDTO) (bool, error) {
	level := "none"
	if item.StockQuantity != nil {
		level = strconv.Itoa(*item.StockQuantity)
	}
	key := j.alerts.AlertKey(kind, strconv.FormatUint(uint64(item.ID), 10), level)
	fresh, err := j.alerts.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), j.window)
	if err != nil {
		return false, err
	}
	if !fresh {
		return false, nil
	}
	fields := map[string]any{
		"alert": kind,
		"name":  item.Name,
		"stock": item.StockQuantity,
	}
	if item.LowStockAlert != nil {
		fields["low_stock_alert"] = *item.LowStockAlert
	}
	j.logg.Warn(j.logg.WithFields(j.logg.WithItemID(ctx, item.ID), fields), "inventory.stock_alert")
	return true, nil
}
