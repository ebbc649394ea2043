// internal/core/domain/errors.go
package domain

import "errors"

// Sentinel errors surfaced by the service layer. Callers match them with
// errors.Is; cache failures are never represented here because they are
// absorbed before reaching the service's error channel.
var (
	// ErrNotFound indicates the requested product does not exist in the store.
	ErrNotFound = errors.New("stock record not found")

	// ErrDuplicateProduct indicates a create collided with an existing product_id.
	ErrDuplicateProduct = errors.New("product_id already exists")

	// ErrInsufficientStock indicates a removal would drive quantity below zero.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrStoreUnavailable indicates the durable store is unreachable or timed out.
	ErrStoreUnavailable = errors.New("record store unavailable")
)
