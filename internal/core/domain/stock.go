// internal/core/domain/stock.go
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Default thresholds applied when a record is created without them.
const (
	DefaultMinStock = 10
	DefaultMaxStock = 1000
	DefaultCategory = "general"
)

// StockRecord represents a single inventory record
type StockRecord struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   string          `json:"product_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category"`
	Supplier    string          `json:"supplier,omitempty"`
	SKU         string          `json:"sku,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	MinStock    int             `json:"min_stock"`
	MaxStock    int             `json:"max_stock"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// StockValue returns quantity x price. Derived, never stored.
func (s *StockRecord) StockValue() decimal.Decimal {
	return s.Price.Mul(decimal.NewFromInt(int64(s.Quantity)))
}

// LowStockAlert reports whether the quantity has reached the minimum threshold.
func (s *StockRecord) LowStockAlert() bool {
	return s.Quantity <= s.MinStock
}

// OverStockAlert reports whether the quantity has reached the maximum threshold.
func (s *StockRecord) OverStockAlert() bool {
	return s.Quantity >= s.MaxStock
}

// Validate performs domain validation on the stock record
func (s *StockRecord) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Quantity < 0 {
		return fmt.Errorf("quantity cannot be negative")
	}
	if s.Price.IsNegative() {
		return fmt.Errorf("price cannot be negative")
	}
	if s.MinStock < 0 {
		return fmt.Errorf("min_stock cannot be negative")
	}
	if s.MinStock > 0 && s.MaxStock > 0 && s.MaxStock <= s.MinStock {
		return fmt.Errorf("max_stock must be greater than min_stock")
	}
	if s.Category == "" {
		s.Category = DefaultCategory
	}
	return nil
}

// PrepareForStorage fills generated identity, defaults and timestamps
// before the record is first persisted.
func (s *StockRecord) PrepareForStorage() {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.ProductID == "" {
		s.ProductID = s.ID.String()
	}
	if s.Category == "" {
		s.Category = DefaultCategory
	}
	if s.MinStock == 0 {
		s.MinStock = DefaultMinStock
	}
	if s.MaxStock == 0 {
		s.MaxStock = DefaultMaxStock
	}

	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
}

// ApplyQuantity sets a new quantity and advances the update timestamp.
// Callers are responsible for the non-negativity check.
func (s *StockRecord) ApplyQuantity(quantity int) {
	s.Quantity = quantity
	s.UpdatedAt = time.Now().UTC()
}

// ChangeAction identifies the kind of mutation recorded in a ChangeEvent.
type ChangeAction string

const (
	ActionCreate ChangeAction = "create"
	ActionAdd    ChangeAction = "add"
	ActionRemove ChangeAction = "remove"
	ActionUpdate ChangeAction = "update"
	ActionDelete ChangeAction = "delete"
)

// ChangeEvent is an immutable audit entry for one mutation to a record.
// Events are append-only and ordered per product newest-first.
type ChangeEvent struct {
	ID               uuid.UUID    `json:"id"`
	ProductID        string       `json:"product_id"`
	Action           ChangeAction `json:"action"`
	QuantityChange   int          `json:"quantity_change"`
	PreviousQuantity int          `json:"previous_quantity"`
	NewQuantity      int          `json:"new_quantity"`
	Actor            string       `json:"actor"`
	Notes            string       `json:"notes,omitempty"`
	OccurredAt       time.Time    `json:"occurred_at"`
}

// NewChangeEvent builds an audit event for a quantity transition.
func NewChangeEvent(productID string, action ChangeAction, previous, next int, actor, notes string) *ChangeEvent {
	if actor == "" {
		actor = "system"
	}
	return &ChangeEvent{
		ID:               uuid.New(),
		ProductID:        productID,
		Action:           action,
		QuantityChange:   next - previous,
		PreviousQuantity: previous,
		NewQuantity:      next,
		Actor:            actor,
		Notes:            notes,
		OccurredAt:       time.Now().UTC(),
	}
}
