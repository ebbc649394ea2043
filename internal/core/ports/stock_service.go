// internal/core/ports/stock_service.go
package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/stockops/stock-api/internal/core/domain"
)

// StockService defines the application service port for stock records.
// This interface is implemented by the cache-coherent service and is what
// the HTTP layer depends on.
type StockService interface {
	GetRecord(ctx context.Context, productID string) (*domain.StockRecord, error)
	ListRecords(ctx context.Context, params ListParams) (*ListResult, error)
	CreateRecord(ctx context.Context, record *domain.StockRecord) error
	AddStock(ctx context.Context, productID string, quantity int, actor, notes string) (*domain.StockRecord, error)
	RemoveStock(ctx context.Context, productID string, quantity int, actor, notes string) (*domain.StockRecord, error)
	UpdateFields(ctx context.Context, productID string, patch UpdatePatch) (*domain.StockRecord, error)
	DeleteRecord(ctx context.Context, productID string) error
	GetHistory(ctx context.Context, productID string, page, pageSize int) (*HistoryResult, error)
	CacheStats(ctx context.Context) *CacheStats
}

// ListParams holds filter, sort and pagination parameters for listing
// stock records. The zero value of a filter field means "not filtered".
type ListParams struct {
	Category string `json:"category,omitempty"`
	Search   string `json:"search,omitempty"`
	Supplier string `json:"supplier,omitempty"`
	LowStock *bool  `json:"low_stock,omitempty"`

	SortBy    string `json:"sort_by"`
	SortOrder string `json:"sort_order"`
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
}

// ListResult represents paginated list results
type ListResult struct {
	Records    []*domain.StockRecord `json:"records"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalCount int64                 `json:"total_count"`
	TotalPages int                   `json:"total_pages"`
}

// HistoryResult represents a paginated slice of a record's audit trail
type HistoryResult struct {
	Events     []*domain.ChangeEvent `json:"events"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalCount int64                 `json:"total_count"`
	TotalPages int                   `json:"total_pages"`
}

// UpdatePatch carries the mutable descriptive fields of a record. Nil
// pointers leave the corresponding field untouched.
type UpdatePatch struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Supplier    *string          `json:"supplier,omitempty"`
	SKU         *string          `json:"sku,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	MinStock    *int             `json:"min_stock,omitempty"`
	MaxStock    *int             `json:"max_stock,omitempty"`
}
