// internal/core/services/stock.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stockops/stock-api/internal/core/domain"
	"github.com/stockops/stock-api/internal/core/ports"
)

// CacheSettings controls the read-through cache behavior of the service.
// When Enabled is false the service permanently behaves as in the degraded
// bypass path and never touches the cache adapter.
type CacheSettings struct {
	Enabled bool

	// RecordTTL bounds staleness of single-record entries.
	RecordTTL time.Duration

	// QueryTTL bounds staleness of cached list results. Listing pages
	// change more often than single records, so this should not exceed
	// RecordTTL.
	QueryTTL time.Duration
}

// StockService composes the record store and the cache into a single
// cache-coherent read/write facade. Reads probe the cache and fall back to
// the store; writes go to the store first and then invalidate every cache
// key that could now be stale. Cache failures of any kind degrade to a miss
// or no-op and never surface to callers.
type StockService struct {
	store    ports.StockRepository
	cache    ports.CacheRepository
	settings CacheSettings
	logger   *slog.Logger
}

// Statically assert that *StockService implements the StockService port.
var _ ports.StockService = (*StockService)(nil)

// NewStockService creates a new stock service
func NewStockService(store ports.StockRepository, cache ports.CacheRepository, settings CacheSettings, logger *slog.Logger) *StockService {
	if settings.RecordTTL <= 0 {
		settings.RecordTTL = time.Hour
	}
	if settings.QueryTTL <= 0 || settings.QueryTTL > settings.RecordTTL {
		settings.QueryTTL = 5 * time.Minute
	}
	return &StockService{
		store:    store,
		cache:    cache,
		settings: settings,
		logger:   logger.With(slog.String("service", "stock")),
	}
}

// cacheUsable re-evaluates cache availability on every call so recovery is
// automatic once the backend comes back.
func (s *StockService) cacheUsable(ctx context.Context) bool {
	return s.settings.Enabled && s.cache != nil && s.cache.Available(ctx)
}

// GetRecord retrieves one record, serving from cache when a valid entry
// exists and repopulating the cache after a store read.
func (s *StockService) GetRecord(ctx context.Context, productID string) (*domain.StockRecord, error) {
	key := recordKey(productID)
	usable := s.cacheUsable(ctx)

	if usable {
		var cached domain.StockRecord
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			cacheHits.WithLabelValues("record").Inc()
			return &cached, nil
		}
		if !errors.Is(err, ports.ErrCacheMiss) {
			s.logger.WarnContext(ctx, "cache read failed, falling back to store",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
		cacheMisses.WithLabelValues("record").Inc()
	}

	record, err := s.store.FindByProductID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stock record: %w", err)
	}
	if record == nil {
		// Not cached: a negative entry would mask a subsequent create.
		return nil, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}

	if usable {
		if err := s.cache.SetWithTTL(ctx, key, record, s.settings.RecordTTL); err != nil {
			s.logger.WarnContext(ctx, "failed to populate cache after read",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}

	return record, nil
}

// ListRecords retrieves records matching the query, caching each distinct
// query signature under its own key.
func (s *StockService) ListRecords(ctx context.Context, params ports.ListParams) (*ports.ListResult, error) {
	normalizeListParams(&params)
	key := queryKey(params)
	usable := s.cacheUsable(ctx)

	if usable {
		var cached ports.ListResult
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			cacheHits.WithLabelValues("query").Inc()
			return &cached, nil
		}
		if !errors.Is(err, ports.ErrCacheMiss) {
			s.logger.WarnContext(ctx, "cache read failed, falling back to store",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
		cacheMisses.WithLabelValues("query").Inc()
	}

	records, totalCount, err := s.store.FindAll(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock records: %w", err)
	}

	result := &ports.ListResult{
		Records:    records,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalCount: totalCount,
		TotalPages: totalPages(totalCount, params.PageSize),
	}

	if usable {
		if err := s.cache.SetWithTTL(ctx, key, result, s.settings.QueryTTL); err != nil {
			s.logger.WarnContext(ctx, "failed to populate cache after list",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}

	return result, nil
}

// CreateRecord validates and persists a new record, appends the create
// event to the audit trail and invalidates cached listings.
func (s *StockService) CreateRecord(ctx context.Context, record *domain.StockRecord) error {
	record.PrepareForStorage()
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if err := s.store.Insert(ctx, record); err != nil {
		return fmt.Errorf("failed to create stock record: %w", err)
	}

	s.appendHistory(ctx, domain.NewChangeEvent(
		record.ProductID, domain.ActionCreate, 0, record.Quantity, "", "initial stock"))
	s.invalidate(ctx, record.ProductID)

	s.logger.InfoContext(ctx, "stock record created",
		slog.String("product_id", record.ProductID),
		slog.String("name", record.Name),
		slog.Int("quantity", record.Quantity))

	return nil
}

// AddStock increases a record's quantity.
func (s *StockService) AddStock(ctx context.Context, productID string, quantity int, actor, notes string) (*domain.StockRecord, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}
	return s.updateQuantity(ctx, productID, quantity, domain.ActionAdd, actor, notes)
}

// RemoveStock decreases a record's quantity, rejecting removals that would
// drive it below zero.
func (s *StockService) RemoveStock(ctx context.Context, productID string, quantity int, actor, notes string) (*domain.StockRecord, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}
	return s.updateQuantity(ctx, productID, -quantity, domain.ActionRemove, actor, notes)
}

// updateQuantity applies a quantity delta through the store and keeps the
// cache coherent. The store write happens first: if it fails, no cache
// mutation occurs.
func (s *StockService) updateQuantity(ctx context.Context, productID string, delta int, action domain.ChangeAction, actor, notes string) (*domain.StockRecord, error) {
	record, err := s.loadForWrite(ctx, productID)
	if err != nil {
		return nil, err
	}

	previous := record.Quantity
	next := previous + delta
	if next < 0 {
		return nil, fmt.Errorf("product %s has %d units, cannot remove %d: %w",
			productID, previous, -delta, domain.ErrInsufficientStock)
	}

	record.ApplyQuantity(next)
	if err := s.store.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update quantity: %w", err)
	}

	s.appendHistory(ctx, domain.NewChangeEvent(productID, action, previous, next, actor, notes))
	s.invalidate(ctx, productID)

	s.logger.InfoContext(ctx, "stock quantity updated",
		slog.String("product_id", productID),
		slog.String("action", string(action)),
		slog.Int("previous", previous),
		slog.Int("quantity", next))

	return record, nil
}

// UpdateFields applies a partial update to a record's descriptive fields.
func (s *StockService) UpdateFields(ctx context.Context, productID string, patch ports.UpdatePatch) (*domain.StockRecord, error) {
	record, err := s.loadForWrite(ctx, productID)
	if err != nil {
		return nil, err
	}

	applyPatch(record, patch)
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	record.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update stock record: %w", err)
	}

	s.appendHistory(ctx, domain.NewChangeEvent(
		productID, domain.ActionUpdate, record.Quantity, record.Quantity, "", "fields updated"))
	s.invalidate(ctx, productID)

	s.logger.InfoContext(ctx, "stock record updated",
		slog.String("product_id", productID))

	return record, nil
}

// DeleteRecord removes a record from the store and purges its cache entries.
func (s *StockService) DeleteRecord(ctx context.Context, productID string) error {
	record, err := s.loadForWrite(ctx, productID)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, productID); err != nil {
		return fmt.Errorf("failed to delete stock record: %w", err)
	}

	s.appendHistory(ctx, domain.NewChangeEvent(
		productID, domain.ActionDelete, record.Quantity, 0, "", "record deleted"))
	s.invalidate(ctx, productID)

	s.logger.InfoContext(ctx, "stock record deleted",
		slog.String("product_id", productID))

	return nil
}

// GetHistory returns a record's audit trail newest-first. History reads are
// never cached: the trail is an operator surface, not a hot path.
func (s *StockService) GetHistory(ctx context.Context, productID string, page, pageSize int) (*ports.HistoryResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	events, totalCount, err := s.store.FindHistory(ctx, productID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}

	return &ports.HistoryResult{
		Events:     events,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: totalCount,
		TotalPages: totalPages(totalCount, pageSize),
	}, nil
}

// CacheStats reports cache backend statistics. Observability only.
func (s *StockService) CacheStats(ctx context.Context) *ports.CacheStats {
	if !s.settings.Enabled || s.cache == nil {
		return &ports.CacheStats{}
	}
	return s.cache.Stats(ctx)
}

// loadForWrite fetches the authoritative record from the store, never from
// cache, so write preconditions are evaluated against committed state.
func (s *StockService) loadForWrite(ctx context.Context, productID string) (*domain.StockRecord, error) {
	record, err := s.store.FindByProductID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock record: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}
	return record, nil
}

// appendHistory writes an audit event best-effort. The trail is not a
// correctness dependency, so failures are logged and swallowed.
func (s *StockService) appendHistory(ctx context.Context, event *domain.ChangeEvent) {
	if err := s.store.AppendHistory(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to append history event",
			slog.String("product_id", event.ProductID),
			slog.String("action", string(event.Action)),
			slog.String("error", err.Error()))
	}
}

// invalidate purges the record's own key and the whole query namespace.
// Any listing could include the mutated record, so the coarse pattern
// delete trades precision for correctness: over-invalidation is always
// safe, under-invalidation never is.
func (s *StockService) invalidate(ctx context.Context, productID string) {
	if !s.cacheUsable(ctx) {
		return
	}

	cacheInvalidations.Inc()

	if err := s.cache.Delete(ctx, recordKey(productID)); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate record key",
			slog.String("product_id", productID),
			slog.String("error", err.Error()))
	}
	if err := s.cache.DeletePattern(ctx, queryKeyPattern()); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate query namespace",
			slog.String("error", err.Error()))
	}
}

// normalizeListParams fills pagination and sort defaults so equivalent
// queries produce identical cache signatures.
func normalizeListParams(params *ports.ListParams) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 50
	}
	if params.SortBy == "" {
		params.SortBy = "created_at"
	}
	if params.SortOrder != "asc" {
		params.SortOrder = "desc"
	}
}

// applyPatch copies the non-nil patch fields onto the record.
func applyPatch(record *domain.StockRecord, patch ports.UpdatePatch) {
	if patch.Name != nil {
		record.Name = *patch.Name
	}
	if patch.Description != nil {
		record.Description = *patch.Description
	}
	if patch.Category != nil {
		record.Category = *patch.Category
	}
	if patch.Supplier != nil {
		record.Supplier = *patch.Supplier
	}
	if patch.SKU != nil {
		record.SKU = *patch.SKU
	}
	if patch.Price != nil {
		record.Price = *patch.Price
	}
	if patch.MinStock != nil {
		record.MinStock = *patch.MinStock
	}
	if patch.MaxStock != nil {
		record.MaxStock = *patch.MaxStock
	}
}

func totalPages(totalCount int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	pages := int(totalCount) / pageSize
	if int(totalCount)%pageSize > 0 {
		pages++
	}
	return pages
}
