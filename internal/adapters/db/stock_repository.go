// internal/adapters/db/stock_repository.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stockops/stock-api/internal/core/domain"
	"github.com/stockops/stock-api/internal/core/ports"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

// stockRepository implements ports.StockRepository
type stockRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewStockRepository creates a new stock repository
func NewStockRepository(db *Database, logger *slog.Logger) ports.StockRepository {
	return &stockRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "stock")),
	}
}

// Insert creates a new stock record. A product_id collision surfaces as
// domain.ErrDuplicateProduct; the unique index is the sole guard against
// concurrent creates of the same product.
func (r *stockRepository) Insert(ctx context.Context, record *domain.StockRecord) error {
	query := `
		INSERT INTO stock_records (
			id, product_id, name, description, category, supplier, sku,
			quantity, price, min_stock, max_stock, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		) RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		record.ID, record.ProductID, record.Name, record.Description,
		record.Category, record.Supplier, record.SKU,
		record.Quantity, record.Price, record.MinStock, record.MaxStock,
		record.CreatedAt, record.UpdatedAt,
	).Scan(&record.CreatedAt, &record.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("product %s: %w", record.ProductID, domain.ErrDuplicateProduct)
		}
		return storeErr("failed to insert stock record", err)
	}

	r.logger.DebugContext(ctx, "stock record inserted",
		slog.String("product_id", record.ProductID),
		slog.String("name", record.Name))

	return nil
}

// FindByProductID retrieves a stock record by its external identifier.
// Returns (nil, nil) when no record exists.
func (r *stockRepository) FindByProductID(ctx context.Context, productID string) (*domain.StockRecord, error) {
	query := `
		SELECT id, product_id, name, description, category, supplier, sku,
			quantity, price, min_stock, max_stock, created_at, updated_at
		FROM stock_records
		WHERE product_id = $1`

	record, err := scanRecord(r.db.QueryRow(ctx, query, productID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, storeErr("failed to find stock record", err)
	}

	return record, nil
}

// FindAll retrieves stock records with filtering, sorting and pagination.
// The total count is computed over the filtered set before pagination.
func (r *stockRepository) FindAll(ctx context.Context, params ports.ListParams) ([]*domain.StockRecord, int64, error) {
	filter := func(qb squirrel.SelectBuilder) squirrel.SelectBuilder {
		if params.Category != "" {
			qb = qb.Where(squirrel.Eq{"category": params.Category})
		}
		if params.Supplier != "" {
			qb = qb.Where(squirrel.Eq{"supplier": params.Supplier})
		}
		if params.Search != "" {
			qb = qb.Where("name ILIKE ?", "%"+params.Search+"%")
		}
		if params.LowStock != nil {
			if *params.LowStock {
				qb = qb.Where("quantity <= min_stock")
			} else {
				qb = qb.Where("quantity > min_stock")
			}
		}
		return qb
	}

	countSQL, countArgs, err := filter(
		squirrel.Select("COUNT(*)").From("stock_records").PlaceholderFormat(squirrel.Dollar),
	).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var totalCount int64
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&totalCount); err != nil {
		return nil, 0, storeErr("failed to count stock records", err)
	}

	qb := filter(squirrel.Select(
		"id", "product_id", "name", "description", "category", "supplier", "sku",
		"quantity", "price", "min_stock", "max_stock", "created_at", "updated_at",
	).From("stock_records").
		PlaceholderFormat(squirrel.Dollar))

	qb = qb.OrderBy(orderClause(params.SortBy, params.SortOrder))

	if params.PageSize > 0 {
		qb = qb.Limit(uint64(params.PageSize))
		if params.Page > 1 {
			qb = qb.Offset(uint64((params.Page - 1) * params.PageSize))
		}
	}

	listSQL, args, err := qb.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, storeErr("failed to query stock records", err)
	}
	defer rows.Close()

	var records []*domain.StockRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan stock record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, storeErr("error iterating rows", err)
	}

	return records, totalCount, nil
}

// Update persists the full mutable state of an existing record.
func (r *stockRepository) Update(ctx context.Context, record *domain.StockRecord) error {
	query := `
		UPDATE stock_records SET
			name = $2, description = $3, category = $4, supplier = $5, sku = $6,
			quantity = $7, price = $8, min_stock = $9, max_stock = $10,
			updated_at = $11
		WHERE product_id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		record.ProductID, record.Name, record.Description, record.Category,
		record.Supplier, record.SKU, record.Quantity, record.Price,
		record.MinStock, record.MaxStock, record.UpdatedAt,
	).Scan(&record.UpdatedAt)

	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("product %s: %w", record.ProductID, domain.ErrNotFound)
		}
		return storeErr("failed to update stock record", err)
	}

	r.logger.DebugContext(ctx, "stock record updated",
		slog.String("product_id", record.ProductID))

	return nil
}

// Delete removes a stock record permanently.
func (r *stockRepository) Delete(ctx context.Context, productID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM stock_records WHERE product_id = $1`, productID)
	if err != nil {
		return storeErr("failed to delete stock record", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}

	r.logger.InfoContext(ctx, "stock record deleted",
		slog.String("product_id", productID))

	return nil
}

// AppendHistory records one change event in the append-only audit log.
func (r *stockRepository) AppendHistory(ctx context.Context, event *domain.ChangeEvent) error {
	query := `
		INSERT INTO stock_history (
			id, product_id, action, quantity_change,
			previous_quantity, new_quantity, actor, notes, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		event.ID, event.ProductID, event.Action, event.QuantityChange,
		event.PreviousQuantity, event.NewQuantity, event.Actor, event.Notes,
		event.OccurredAt,
	)
	if err != nil {
		return storeErr("failed to append history event", err)
	}

	return nil
}

// FindHistory returns a record's change events newest-first.
func (r *stockRepository) FindHistory(ctx context.Context, productID string, page, pageSize int) ([]*domain.ChangeEvent, int64, error) {
	var totalCount int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM stock_history WHERE product_id = $1`, productID,
	).Scan(&totalCount)
	if err != nil {
		return nil, 0, storeErr("failed to count history events", err)
	}

	query := `
		SELECT id, product_id, action, quantity_change,
			previous_quantity, new_quantity, actor, notes, occurred_at
		FROM stock_history
		WHERE product_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, productID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, storeErr("failed to query history events", err)
	}
	defer rows.Close()

	var events []*domain.ChangeEvent
	for rows.Next() {
		event := &domain.ChangeEvent{}
		var notes sql.NullString

		err := rows.Scan(
			&event.ID, &event.ProductID, &event.Action, &event.QuantityChange,
			&event.PreviousQuantity, &event.NewQuantity, &event.Actor, &notes,
			&event.OccurredAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan history event: %w", err)
		}
		event.Notes = notes.String

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, storeErr("error iterating rows", err)
	}

	return events, totalCount, nil
}

// Ping verifies store connectivity for health checks.
func (r *stockRepository) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// scanRecord scans one stock record row.
func scanRecord(row pgx.Row) (*domain.StockRecord, error) {
	record := &domain.StockRecord{}
	var description, supplier, sku sql.NullString

	err := row.Scan(
		&record.ID, &record.ProductID, &record.Name, &description,
		&record.Category, &supplier, &sku,
		&record.Quantity, &record.Price, &record.MinStock, &record.MaxStock,
		&record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Description = description.String
	record.Supplier = supplier.String
	record.SKU = sku.String

	return record, nil
}

// orderClause maps a sort field through an allow-list so caller input never
// reaches the ORDER BY clause verbatim.
func orderClause(sortBy, sortOrder string) string {
	direction := "ASC"
	if sortOrder == "desc" {
		direction = "DESC"
	}

	column := "created_at"
	switch sortBy {
	case "name":
		column = "name"
	case "quantity":
		column = "quantity"
	case "price":
		column = "price"
	case "updated":
		column = "updated_at"
	}

	return fmt.Sprintf("%s %s", column, direction)
}

// storeErr wraps adapter errors, tagging connectivity failures with
// domain.ErrStoreUnavailable so callers can distinguish a dead backend
// from a bad request.
func storeErr(msg string, err error) error {
	var netErr net.Error
	var connErr *pgconn.ConnectError
	if errors.As(err, &netErr) || errors.As(err, &connErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", msg, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
