package inventory

import (
	"context"
	"io"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/bistro-backend/pkg/config"
	"github.com/angelmondragon/bistro-backend/pkg/db"
	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
	"github.com/angelmondragon/bistro-backend/pkg/metrics"
	"github.com/angelmondragon/bistro-backend/pkg/outbox"
)

type fixture struct {
	conn    *gorm.DB
	repo    *Repository
	svc     Service
	queries QueryService
}

func testInventoryConfig() config.InventoryConfig {
	return config.InventoryConfig{
		DefaultLowStockAlert: 5,
		HistoryDefaultLimit:  20,
		HistoryMaxLimit:      100,
		DailyResetReason:     "Begin of the day",
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:inventory_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// sqlite drops FOR UPDATE; a single connection keeps writers serialized
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(models.All()...))
	return newFixtureOn(t, conn)
}

// newFixtureOn wires the engine and queries over an already migrated store.
func newFixtureOn(t *testing.T, conn *gorm.DB) *fixture {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "inventory-test", Output: io.Discard})
	repo := NewRepository(conn)
	svc, err := NewService(ServiceParams{
		DB:      db.NewFromConn(conn),
		Store:   repo,
		Outbox:  outbox.NewService(outbox.NewRepository(conn), logg),
		Logger:  logg,
		Metrics: metrics.NewStockMetrics(prometheus.NewRegistry()),
		Config:  testInventoryConfig(),
	})
	require.NoError(t, err)
	queries, err := NewQueryService(repo, testInventoryConfig())
	require.NoError(t, err)
	return &fixture{conn: conn, repo: repo, svc: svc, queries: queries}
}

type trackedOpts struct {
	stock       int
	alert       *int
	autoMark    bool
	unavailable bool
}

func intPtr(v int) *int { return &v }

func uintPtr(v uint) *uint { return &v }

func (f *fixture) seedTracked(t *testing.T, name string, opts trackedOpts) *models.MenuItem {
	t.Helper()
	item := &models.MenuItem{
		Name:                name,
		IsAvailable:         !opts.unavailable,
		InventoryType:       enums.InventoryTypeTracked,
		StockQuantity:       intPtr(opts.stock),
		InitialStock:        intPtr(opts.stock),
		LowStockAlert:       opts.alert,
		AutoMarkUnavailable: opts.autoMark,
	}
	require.NoError(t, f.conn.Create(item).Error)
	return item
}

func (f *fixture) seedUnlimited(t *testing.T, name string) *models.MenuItem {
	t.Helper()
	item := &models.MenuItem{
		Name:                name,
		IsAvailable:         true,
		InventoryType:       enums.InventoryTypeUnlimited,
		AutoMarkUnavailable: true,
	}
	require.NoError(t, f.conn.Create(item).Error)
	return item
}

func (f *fixture) reload(t *testing.T, id uint) models.MenuItem {
	t.Helper()
	var item models.MenuItem
	require.NoError(t, f.conn.First(&item, id).Error)
	return item
}

func (f *fixture) ledger(t *testing.T, id uint) []models.StockAdjustment {
	t.Helper()
	var rows []models.StockAdjustment
	require.NoError(t, f.conn.Where("menu_item_id = ?", id).Order("id ASC").Find(&rows).Error)
	return rows
}

func (f *fixture) events(t *testing.T, id uint) []enums.OutboxEventType {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.conn.Where("aggregate_id = ?", strconv.FormatUint(uint64(id), 10)).Find(&rows).Error)
	out := make([]enums.OutboxEventType, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.EventType)
	}
	return out
}

func (f *fixture) withTx(t *testing.T, fn func(tx *gorm.DB) error) error {
	t.Helper()
	return db.NewFromConn(f.conn).WithTx(context.Background(), fn)
}
