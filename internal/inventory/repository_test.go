package inventory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
)

func TestRepositoryLockAndMutate(t *testing.T) {
	f := newFixture(t)
	item := f.seedTracked(t, "Ravioli", trackedOpts{stock: 4, alert: intPtr(1)})

	err := f.withTx(t, func(tx *gorm.DB) error {
		locked, err := f.repo.LockItemForUpdate(context.Background(), tx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, *locked.StockQuantity)

		updated, err := f.repo.ApplyItemMutation(context.Background(), tx, item.ID, map[string]any{
			colStockQuantity: 9,
			colIsAvailable:   false,
		})
		require.NoError(t, err)
		assert.Equal(t, 9, *updated.StockQuantity)
		assert.False(t, updated.IsAvailable)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 9, *f.reload(t, item.ID).StockQuantity)
}

func TestLockItemForUpdateRendersRowLockOnPostgres(t *testing.T) {
	// DryRun builds the statement without touching a server
	conn, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=127.0.0.1 user=bistro dbname=bistro sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	var statements []string
	require.NoError(t, conn.Callback().Query().After("gorm:query").Register("bistro:capture_sql", func(tx *gorm.DB) {
		statements = append(statements, tx.Statement.SQL.String())
	}))

	_, err = NewRepository(conn).LockItemForUpdate(context.Background(), conn, 42)
	require.NoError(t, err)
	require.Len(t, statements, 1)
	sql := statements[0]
	assert.Contains(t, sql, `FROM "menu_items"`)
	assert.Contains(t, sql, "deleted = ")
	assert.True(t, strings.HasSuffix(sql, "FOR UPDATE"), "row lock must close the statement: %s", sql)
}

func TestRepositoryMissingItem(t *testing.T) {
	f := newFixture(t)

	err := f.withTx(t, func(tx *gorm.DB) error {
		_, err := f.repo.LockItemForUpdate(context.Background(), tx, 404)
		return err
	})
	require.ErrorIs(t, err, ErrItemNotFound)

	_, err = f.repo.FindItem(context.Background(), 404)
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestRepositoryRejectsNegativeStock(t *testing.T) {
	f := newFixture(t)
	item := f.seedTracked(t, "Ravioli", trackedOpts{stock: 1})

	err := f.withTx(t, func(tx *gorm.DB) error {
		_, err := f.repo.ApplyItemMutation(context.Background(), tx, item.ID, map[string]any{colStockQuantity: -1})
		return err
	})
	require.Error(t, err)
	assert.Equal(t, 1, *f.reload(t, item.ID).StockQuantity)
}

func TestRepositoryAppendAdjustment(t *testing.T) {
	f := newFixture(t)
	item := f.seedTracked(t, "Ravioli", trackedOpts{stock: 1})
	reason := "count correction"

	row, err := f.repo.AppendAdjustment(context.Background(), f.conn, &models.StockAdjustment{
		MenuItemID:     item.ID,
		AdjustmentType: enums.AdjustmentManualAdd,
		PreviousStock:  1,
		NewStock:       3,
		Quantity:       2,
		Reason:         &reason,
	})
	require.NoError(t, err)
	assert.NotZero(t, row.ID)

	rows, total, err := f.repo.ListAdjustments(context.Background(), item.ID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	assert.Equal(t, reason, *rows[0].Reason)
}
