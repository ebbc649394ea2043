// internal/handlers/stock.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockops/stock-api/internal/core/domain"
	"github.com/stockops/stock-api/internal/core/ports"
)

// StockHandler handles stock-related HTTP requests
type StockHandler struct {
	service ports.StockService
	logger  *slog.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(service ports.StockService, logger *slog.Logger) *StockHandler {
	return &StockHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "stock")),
	}
}

// GetStock handles GET /api/v1/stocks/{product_id}
func (h *StockHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := r.PathValue("product_id")

	record, err := h.service.GetRecord(ctx, productID)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to retrieve stock record")
		return
	}

	h.respondJSON(w, http.StatusOK, toStockResponse(record))
}

// ListStocks handles GET /api/v1/stocks
func (h *StockHandler) ListStocks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params := h.parseListParams(r)

	result, err := h.service.ListRecords(ctx, params)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to list stock records")
		return
	}

	h.respondJSON(w, http.StatusOK, toListResponse(result))
}

// CreateStock handles POST /api/v1/stocks
func (h *StockHandler) CreateStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	record := req.ToDomain()

	if err := h.service.CreateRecord(ctx, record); err != nil {
		h.respondServiceError(w, r, err, "Failed to create stock record")
		return
	}

	h.respondJSON(w, http.StatusCreated, toStockResponse(record))
}

// UpdateStock handles PUT /api/v1/stocks/{product_id}
func (h *StockHandler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := r.PathValue("product_id")

	var req UpdateStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	record, err := h.service.UpdateFields(ctx, productID, req.ToPatch())
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to update stock record")
		return
	}

	h.respondJSON(w, http.StatusOK, toStockResponse(record))
}

// DeleteStock handles DELETE /api/v1/stocks/{product_id}
func (h *StockHandler) DeleteStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := r.PathValue("product_id")

	if err := h.service.DeleteRecord(ctx, productID); err != nil {
		h.respondServiceError(w, r, err, "Failed to delete stock record")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{
		"message":    "Stock record deleted successfully",
		"product_id": productID,
	})
}

// AddStock handles POST /api/v1/stocks/{product_id}/add
func (h *StockHandler) AddStock(w http.ResponseWriter, r *http.Request) {
	h.adjustQuantity(w, r, h.service.AddStock)
}

// RemoveStock handles POST /api/v1/stocks/{product_id}/remove
func (h *StockHandler) RemoveStock(w http.ResponseWriter, r *http.Request) {
	h.adjustQuantity(w, r, h.service.RemoveStock)
}

// GetHistory handles GET /api/v1/stocks/{product_id}/history
func (h *StockHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := r.PathValue("product_id")

	page := parsePositiveInt(r.URL.Query().Get("page"), 1)
	pageSize := parsePositiveInt(r.URL.Query().Get("limit"), 20)

	result, err := h.service.GetHistory(ctx, productID, page, pageSize)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to retrieve stock history")
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// CacheStats handles GET /api/v1/cache/stats
func (h *StockHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	stats := h.service.CacheStats(r.Context())
	h.respondJSON(w, http.StatusOK, stats)
}

func (h *StockHandler) adjustQuantity(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, productID string, quantity int, actor, notes string) (*domain.StockRecord, error),
) {
	ctx := r.Context()
	productID := r.PathValue("product_id")

	var req QuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Quantity <= 0 {
		h.respondError(w, http.StatusUnprocessableEntity, "quantity must be positive")
		return
	}

	record, err := op(ctx, productID, req.Quantity, req.Actor, req.Notes)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to adjust stock quantity")
		return
	}

	h.respondJSON(w, http.StatusOK, toStockResponse(record))
}

// parseListParams parses query parameters for listing stock records
func (h *StockHandler) parseListParams(r *http.Request) ports.ListParams {
	params := ports.ListParams{
		Page:      1,
		PageSize:  50,
		SortBy:    "created_at",
		SortOrder: "desc",
	}

	// Parse pagination
	if page := r.URL.Query().Get("page"); page != "" {
		if p, err := strconv.Atoi(page); err == nil && p > 0 {
			params.Page = p
		}
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			if l > 100 {
				params.PageSize = 100
			} else {
				params.PageSize = l
			}
		}
	}

	// Parse filters
	params.Search = r.URL.Query().Get("search")
	params.Category = r.URL.Query().Get("category")
	params.Supplier = r.URL.Query().Get("supplier")

	if lowStock := r.URL.Query().Get("low_stock"); lowStock != "" {
		if val, err := strconv.ParseBool(lowStock); err == nil {
			params.LowStock = &val
		}
	}

	// Parse sorting
	if sortBy := r.URL.Query().Get("sort"); sortBy != "" {
		params.SortBy = sortBy
	}

	if order := r.URL.Query().Get("order"); order == "asc" || order == "desc" {
		params.SortOrder = order
	}

	return params
}

// respondServiceError maps domain errors onto HTTP status codes
func (h *StockHandler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	ctx := r.Context()

	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "Stock record not found")
	case errors.Is(err, domain.ErrDuplicateProduct):
		h.respondError(w, http.StatusConflict, "Product already exists")
	case errors.Is(err, domain.ErrInsufficientStock):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		h.logger.ErrorContext(ctx, "store unavailable",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusServiceUnavailable, "Storage backend unavailable")
	default:
		h.logger.ErrorContext(ctx, fallback,
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, fallback)
	}
}

// Helper methods

func (h *StockHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response",
			slog.String("error", err.Error()))
	}
}

func (h *StockHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

func parsePositiveInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return fallback
}

// Request/Response DTOs

// CreateStockRequest represents the request body for creating a stock record
type CreateStockRequest struct {
	ProductID   string          `json:"product_id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	Supplier    string          `json:"supplier,omitempty"`
	SKU         string          `json:"sku,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	MinStock    *int            `json:"min_stock,omitempty"`
	MaxStock    *int            `json:"max_stock,omitempty"`
}

// Validate validates the create stock request
func (r *CreateStockRequest) Validate() error {
	if len(r.Name) < 2 || len(r.Name) > 100 {
		return fmt.Errorf("name must be between 2 and 100 characters")
	}
	if r.Category != "" && (len(r.Category) < 2 || len(r.Category) > 50) {
		return fmt.Errorf("category must be between 2 and 50 characters")
	}
	if r.Quantity < 0 {
		return fmt.Errorf("quantity cannot be negative")
	}
	if r.Price.IsNegative() {
		return fmt.Errorf("price cannot be negative")
	}
	if r.MinStock != nil && *r.MinStock < 0 {
		return fmt.Errorf("min_stock cannot be negative")
	}
	if r.MinStock != nil && r.MaxStock != nil && *r.MaxStock <= *r.MinStock {
		return fmt.Errorf("max_stock must be greater than min_stock")
	}
	return nil
}

// ToDomain converts the request to a domain model
func (r *CreateStockRequest) ToDomain() *domain.StockRecord {
	record := &domain.StockRecord{
		ProductID:   r.ProductID,
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Supplier:    r.Supplier,
		SKU:         r.SKU,
		Quantity:    r.Quantity,
		Price:       r.Price,
	}

	if r.MinStock != nil {
		record.MinStock = *r.MinStock
	}
	if r.MaxStock != nil {
		record.MaxStock = *r.MaxStock
	}

	return record
}

// UpdateStockRequest represents the request body for a partial update
type UpdateStockRequest struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Supplier    *string          `json:"supplier,omitempty"`
	SKU         *string          `json:"sku,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	MinStock    *int             `json:"min_stock,omitempty"`
	MaxStock    *int             `json:"max_stock,omitempty"`
}

// Validate validates the update stock request
func (r *UpdateStockRequest) Validate() error {
	if r.Name != nil && (len(*r.Name) < 2 || len(*r.Name) > 100) {
		return fmt.Errorf("name must be between 2 and 100 characters")
	}
	if r.Category != nil && (len(*r.Category) < 2 || len(*r.Category) > 50) {
		return fmt.Errorf("category must be between 2 and 50 characters")
	}
	if r.Price != nil && r.Price.IsNegative() {
		return fmt.Errorf("price cannot be negative")
	}
	if r.MinStock != nil && *r.MinStock < 0 {
		return fmt.Errorf("min_stock cannot be negative")
	}
	if r.MinStock != nil && r.MaxStock != nil && *r.MaxStock <= *r.MinStock {
		return fmt.Errorf("max_stock must be greater than min_stock")
	}
	return nil
}

// ToPatch converts the request into an update patch
func (r *UpdateStockRequest) ToPatch() ports.UpdatePatch {
	return ports.UpdatePatch{
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Supplier:    r.Supplier,
		SKU:         r.SKU,
		Price:       r.Price,
		MinStock:    r.MinStock,
		MaxStock:    r.MaxStock,
	}
}

// QuantityRequest represents the request body for quantity adjustments
type QuantityRequest struct {
	Quantity int    `json:"quantity"`
	Actor    string `json:"actor,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// StockResponse is the wire representation of a stock record
type StockResponse struct {
	ID             string          `json:"id"`
	ProductID      string          `json:"product_id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Category       string          `json:"category"`
	Supplier       string          `json:"supplier,omitempty"`
	SKU            string          `json:"sku,omitempty"`
	Quantity       int             `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	MinStock       int             `json:"min_stock"`
	MaxStock       int             `json:"max_stock"`
	StockValue     decimal.Decimal `json:"stock_value"`
	LowStockAlert  bool            `json:"low_stock_alert"`
	OverStockAlert bool            `json:"over_stock_alert"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ListStocksResponse is the wire representation of a listing page
type ListStocksResponse struct {
	Records    []StockResponse `json:"records"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalCount int64           `json:"total_count"`
	TotalPages int             `json:"total_pages"`
}

func toStockResponse(record *domain.StockRecord) StockResponse {
	return StockResponse{
		ID:             record.ID.String(),
		ProductID:      record.ProductID,
		Name:           record.Name,
		Description:    record.Description,
		Category:       record.Category,
		Supplier:       record.Supplier,
		SKU:            record.SKU,
		Quantity:       record.Quantity,
		Price:          record.Price,
		MinStock:       record.MinStock,
		MaxStock:       record.MaxStock,
		StockValue:     record.StockValue(),
		LowStockAlert:  record.LowStockAlert(),
		OverStockAlert: record.OverStockAlert(),
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
}

func toListResponse(result *ports.ListResult) ListStocksResponse {
	records := make([]StockResponse, 0, len(result.Records))
	for _, record := range result.Records {
		records = append(records, toStockResponse(record))
	}
	return ListStocksResponse{
		Records:    records,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalCount: result.TotalCount,
		TotalPages: result.TotalPages,
	}
}
