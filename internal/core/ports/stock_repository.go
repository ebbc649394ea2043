// internal/core/ports/stock_repository.go
package ports

import (
	"context"

	"github.com/stockops/stock-api/internal/core/domain"
)

// StockRepository defines the persistence port for stock records.
// This interface is implemented by the database adapter.
type StockRepository interface {
	Insert(ctx context.Context, record *domain.StockRecord) error
	FindByProductID(ctx context.Context, productID string) (*domain.StockRecord, error)
	FindAll(ctx context.Context, params ListParams) ([]*domain.StockRecord, int64, error)
	Update(ctx context.Context, record *domain.StockRecord) error
	Delete(ctx context.Context, productID string) error
	AppendHistory(ctx context.Context, event *domain.ChangeEvent) error
	FindHistory(ctx context.Context, productID string, page, pageSize int) ([]*domain.ChangeEvent, int64, error)
	Ping(ctx context.Context) error
}
