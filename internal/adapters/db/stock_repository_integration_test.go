// internal/adapters/db/stock_repository_integration_test.go
package db_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockops/stock-api/internal/adapters/db"
	"github.com/stockops/stock-api/internal/core/domain"
	"github.com/stockops/stock-api/internal/core/ports"
	"github.com/stockops/stock-api/test/helpers"
)

func setupRepo(t *testing.T) (ports.StockRepository, *helpers.TestDB) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := helpers.SetupTestDB(t)
	repo := db.NewStockRepository(testDB.Database, helpers.TestLogger().Logger)
	return repo, testDB
}

func TestStockRepository_InsertAndFind(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	record := helpers.CreateTestStockRecord()
	require.NoError(t, repo.Insert(ctx, record))

	found, err := repo.FindByProductID(ctx, record.ProductID)
	require.NoError(t, err)
	require.NotNil(t, found)

	assert.Equal(t, record.ID, found.ID)
	assert.Equal(t, record.ProductID, found.ProductID)
	assert.Equal(t, record.Name, found.Name)
	assert.Equal(t, record.Category, found.Category)
	assert.Equal(t, record.Supplier, found.Supplier)
	assert.Equal(t, record.SKU, found.SKU)
	assert.Equal(t, record.Quantity, found.Quantity)
	assert.True(t, record.Price.Equal(found.Price))
	assert.Equal(t, record.MinStock, found.MinStock)
	assert.Equal(t, record.MaxStock, found.MaxStock)
}

func TestStockRepository_FindByProductID_MissingReturnsNil(t *testing.T) {
	repo, _ := setupRepo(t)

	found, err := repo.FindByProductID(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestStockRepository_Insert_DuplicateProductID(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	record := helpers.CreateTestStockRecord()
	require.NoError(t, repo.Insert(ctx, record))

	duplicate := helpers.CreateTestStockRecord(func(r *domain.StockRecord) {
		r.ID = uuid.New()
		r.Name = "Same Product, Different Row"
	})

	err := repo.Insert(ctx, duplicate)
	assert.ErrorIs(t, err, domain.ErrDuplicateProduct)
}

func TestStockRepository_Update(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	record := helpers.CreateTestStockRecord()
	require.NoError(t, repo.Insert(ctx, record))

	record.Name = "Updated Widget"
	record.Quantity = 75
	record.Price = decimal.NewFromFloat(29.99)
	require.NoError(t, repo.Update(ctx, record))

	found, err := repo.FindByProductID(ctx, record.ProductID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Updated Widget", found.Name)
	assert.Equal(t, 75, found.Quantity)
	assert.True(t, decimal.NewFromFloat(29.99).Equal(found.Price))
}

func TestStockRepository_Update_MissingRecord(t *testing.T) {
	repo, _ := setupRepo(t)

	record := helpers.CreateTestStockRecord(func(r *domain.StockRecord) {
		r.ProductID = "never-inserted"
	})

	err := repo.Update(context.Background(), record)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStockRepository_Delete(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	record := helpers.CreateTestStockRecord()
	require.NoError(t, repo.Insert(ctx, record))
	require.NoError(t, repo.Delete(ctx, record.ProductID))

	found, err := repo.FindByProductID(ctx, record.ProductID)
	require.NoError(t, err)
	assert.Nil(t, found)

	err = repo.Delete(ctx, record.ProductID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStockRepository_FindAll(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	records := helpers.CreateTestStockRecords(8)
	for _, record := range records {
		require.NoError(t, repo.Insert(ctx, record))
	}

	t.Run("pagination", func(t *testing.T) {
		page1, total, err := repo.FindAll(ctx, ports.ListParams{
			Page: 1, PageSize: 3, SortBy: "name", SortOrder: "asc",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(8), total)
		require.Len(t, page1, 3)

		page2, _, err := repo.FindAll(ctx, ports.ListParams{
			Page: 2, PageSize: 3, SortBy: "name", SortOrder: "asc",
		})
		require.NoError(t, err)
		require.Len(t, page2, 3)
		assert.NotEqual(t, page1[0].ProductID, page2[0].ProductID)
	})

	t.Run("category_filter", func(t *testing.T) {
		results, total, err := repo.FindAll(ctx, ports.ListParams{
			Page: 1, PageSize: 50, Category: "electronics",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		for _, record := range results {
			assert.Equal(t, "electronics", record.Category)
		}
	})

	t.Run("search_filter", func(t *testing.T) {
		_, total, err := repo.FindAll(ctx, ports.ListParams{
			Page: 1, PageSize: 50, Search: "widget 3",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("low_stock_filter", func(t *testing.T) {
		lowOnly := true
		results, _, err := repo.FindAll(ctx, ports.ListParams{
			Page: 1, PageSize: 50, LowStock: &lowOnly,
		})
		require.NoError(t, err)
		// Seeded quantities start at 10 with min_stock 10, so only the
		// first record is at or below its threshold.
		require.Len(t, results, 1)
		assert.LessOrEqual(t, results[0].Quantity, results[0].MinStock)
	})

	t.Run("sort_by_quantity_desc", func(t *testing.T) {
		results, _, err := repo.FindAll(ctx, ports.ListParams{
			Page: 1, PageSize: 50, SortBy: "quantity", SortOrder: "desc",
		})
		require.NoError(t, err)
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Quantity, results[i].Quantity)
		}
	})

	t.Run("no_matches", func(t *testing.T) {
		results, total, err := repo.FindAll(ctx, ports.ListParams{
			Page: 1, PageSize: 50, Category: "nonexistent",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
		assert.Empty(t, results)
	})
}

func TestStockRepository_History(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	record := helpers.CreateTestStockRecord()
	require.NoError(t, repo.Insert(ctx, record))

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	quantities := []int{0, 10, 25, 20}
	for i := 1; i < len(quantities); i++ {
		event := domain.NewChangeEvent(record.ProductID, domain.ActionAdd,
			quantities[i-1], quantities[i], "tester", fmt.Sprintf("step %d", i))
		event.OccurredAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.AppendHistory(ctx, event))
	}

	events, total, err := repo.FindHistory(ctx, record.ProductID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, events, 3)

	// Newest first.
	assert.Equal(t, "step 3", events[0].Notes)
	assert.Equal(t, "step 1", events[2].Notes)
	assert.Equal(t, 20, events[0].NewQuantity)

	// Pagination.
	page2, total, err := repo.FindHistory(ctx, record.ProductID, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page2, 1)
	assert.Equal(t, "step 1", page2[0].Notes)
}

func TestStockRepository_History_EmptyTrail(t *testing.T) {
	repo, _ := setupRepo(t)

	events, total, err := repo.FindHistory(context.Background(), "no-history", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, events)
}

func TestStockRepository_Ping(t *testing.T) {
	repo, _ := setupRepo(t)
	require.NoError(t, repo.Ping(context.Background()))
}

func TestDatabase_Transaction(t *testing.T) {
	repo, testDB := setupRepo(t)
	ctx := context.Background()

	record := helpers.CreateTestStockRecord()
	require.NoError(t, repo.Insert(ctx, record))

	t.Run("rollback_on_error", func(t *testing.T) {
		err := testDB.Database.Transaction(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx,
				`UPDATE stock_records SET quantity = 0 WHERE product_id = $1`,
				record.ProductID); err != nil {
				return err
			}
			return fmt.Errorf("force rollback")
		})
		require.Error(t, err)

		found, err := repo.FindByProductID(ctx, record.ProductID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, record.Quantity, found.Quantity)
	})

	t.Run("commit_on_success", func(t *testing.T) {
		err := testDB.Database.Transaction(ctx, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx,
				`UPDATE stock_records SET quantity = 7 WHERE product_id = $1`,
				record.ProductID)
			return err
		})
		require.NoError(t, err)

		found, err := repo.FindByProductID(ctx, record.ProductID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, 7, found.Quantity)
	})
}

func TestDatabase_Health(t *testing.T) {
	_, testDB := setupRepo(t)

	health := testDB.Database.Health(context.Background())
	assert.Equal(t, "healthy", health["status"])
	assert.Contains(t, health, "total_connections")
}
