// internal/handlers/stock_handler_test.go
package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stockops/stock-api/internal/core/domain"
	"github.com/stockops/stock-api/internal/core/ports"
	"github.com/stockops/stock-api/internal/handlers"
	"github.com/stockops/stock-api/test/helpers"
	"github.com/stockops/stock-api/test/mocks"
)

func newTestRouter(service ports.StockService) http.Handler {
	handler := handlers.NewStockHandler(service, helpers.TestLogger().Logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/stocks", handler.ListStocks)
	mux.HandleFunc("POST /api/v1/stocks", handler.CreateStock)
	mux.HandleFunc("GET /api/v1/stocks/{product_id}", handler.GetStock)
	mux.HandleFunc("PUT /api/v1/stocks/{product_id}", handler.UpdateStock)
	mux.HandleFunc("DELETE /api/v1/stocks/{product_id}", handler.DeleteStock)
	mux.HandleFunc("POST /api/v1/stocks/{product_id}/add", handler.AddStock)
	mux.HandleFunc("POST /api/v1/stocks/{product_id}/remove", handler.RemoveStock)
	mux.HandleFunc("GET /api/v1/stocks/{product_id}/history", handler.GetHistory)
	mux.HandleFunc("GET /api/v1/cache/stats", handler.CacheStats)
	return mux
}

func TestStockHandler_GetStock(t *testing.T) {
	tests := []struct {
		name           string
		productID      string
		setupMocks     func(*mocks.MockStockService)
		expectedStatus int
		expectedError  string
	}{
		{
			name:      "found",
			productID: "test-widget-001",
			setupMocks: func(m *mocks.MockStockService) {
				m.EXPECT().
					GetRecord(gomock.Any(), "test-widget-001").
					Return(helpers.CreateTestStockRecord(), nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:      "not_found",
			productID: "ghost",
			setupMocks: func(m *mocks.MockStockService) {
				m.EXPECT().
					GetRecord(gomock.Any(), "ghost").
					Return(nil, fmt.Errorf("product ghost: %w", domain.ErrNotFound))
			},
			expectedStatus: http.StatusNotFound,
			expectedError:  "Stock record not found",
		},
		{
			name:      "store_down",
			productID: "test-widget-001",
			setupMocks: func(m *mocks.MockStockService) {
				m.EXPECT().
					GetRecord(gomock.Any(), "test-widget-001").
					Return(nil, fmt.Errorf("query: %w", domain.ErrStoreUnavailable))
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedError:  "Storage backend unavailable",
		},
		{
			name:      "unexpected_error",
			productID: "test-widget-001",
			setupMocks: func(m *mocks.MockStockService) {
				m.EXPECT().
					GetRecord(gomock.Any(), "test-widget-001").
					Return(nil, errors.New("boom"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockService := mocks.NewMockStockService(ctrl)
			tt.setupMocks(mockService)

			req := httptest.NewRequest("GET", "/api/v1/stocks/"+tt.productID, nil)
			w := httptest.NewRecorder()
			newTestRouter(mockService).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedError != "" {
				var body map[string]string
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, tt.expectedError, body["error"])
			}
		})
	}
}

func TestStockHandler_GetStock_DerivedFields(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	record := helpers.CreateTestStockRecord(func(r *domain.StockRecord) {
		r.Quantity = 4
		r.MinStock = 5
	})

	mockService := mocks.NewMockStockService(ctrl)
	mockService.EXPECT().
		GetRecord(gomock.Any(), record.ProductID).
		Return(record, nil)

	req := httptest.NewRequest("GET", "/api/v1/stocks/"+record.ProductID, nil)
	w := httptest.NewRecorder()
	newTestRouter(mockService).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body handlers.StockResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.LowStockAlert)
	assert.False(t, body.OverStockAlert)
	assert.True(t, record.Price.Mul(decimal.NewFromInt(4)).Equal(body.StockValue))
}

func TestStockHandler_ListStocks(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	records := helpers.CreateTestStockRecords(2)

	mockService := mocks.NewMockStockService(ctrl)
	mockService.EXPECT().
		ListRecords(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params ports.ListParams) (*ports.ListResult, error) {
			assert.Equal(t, 2, params.Page)
			assert.Equal(t, 10, params.PageSize)
			assert.Equal(t, "electronics", params.Category)
			require.NotNil(t, params.LowStock)
			assert.True(t, *params.LowStock)
			return &ports.ListResult{
				Records:    records,
				Page:       params.Page,
				PageSize:   params.PageSize,
				TotalCount: 12,
				TotalPages: 2,
			}, nil
		})

	req := httptest.NewRequest("GET",
		"/api/v1/stocks?page=2&limit=10&category=electronics&low_stock=true", nil)
	w := httptest.NewRecorder()
	newTestRouter(mockService).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body handlers.ListStocksResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Records, 2)
	assert.Equal(t, int64(12), body.TotalCount)
	assert.Equal(t, 2, body.TotalPages)
}

func TestStockHandler_ListStocks_CapsPageSize(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := mocks.NewMockStockService(ctrl)
	mockService.EXPECT().
		ListRecords(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params ports.ListParams) (*ports.ListResult, error) {
			assert.Equal(t, 100, params.PageSize)
			return &ports.ListResult{Page: 1, PageSize: 100}, nil
		})

	req := httptest.NewRequest("GET", "/api/v1/stocks?limit=5000", nil)
	w := httptest.NewRecorder()
	newTestRouter(mockService).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStockHandler_CreateStock(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMocks     func(*mocks.MockStockService)
		expectedStatus int
	}{
		{
			name: "created",
			body: `{"name":"New Widget","quantity":10,"price":"4.50"}`,
			setupMocks: func(m *mocks.MockStockService) {
				m.EXPECT().
					CreateRecord(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, r *domain.StockRecord) error {
						assert.Equal(t, "New Widget", r.Name)
						assert.Equal(t, 10, r.Quantity)
						r.PrepareForStorage()
						return nil
					})
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "invalid_json",
			body:           `{"name":`,
			setupMocks:     func(m *mocks.MockStockService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "name_too_short",
			body:           `{"name":"x","quantity":1,"price":"1"}`,
			setupMocks:     func(m *mocks.MockStockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "negative_quantity",
			body:           `{"name":"Widget","quantity":-1,"price":"1"}`,
			setupMocks:     func(m *mocks.MockStockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "duplicate_product",
			body: `{"name":"New Widget","quantity":10,"price":"4.50"}`,
			setupMocks: func(m *mocks.MockStockService) {
				m.EXPECT().
					CreateRecord(gomock.Any(), gomock.Any()).
					Return(fmt.Errorf("insert: %w", domain.ErrDuplicateProduct))
			},
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockService := mocks.NewMockStockService(ctrl)
			tt.setupMocks(mockService)

			req := httptest.NewRequest("POST", "/api/v1/stocks", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			newTestRouter(mockService).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestStockHandler_UpdateStock(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	record := helpers.CreateTestStockRecord(func(r *domain.StockRecord) {
		r.Name = "Renamed Widget"
	})

	mockService := mocks.NewMockStockService(ctrl)
	mockService.EXPECT().
		UpdateFields(gomock.Any(), record.ProductID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, patch ports.UpdatePatch) (*domain.StockRecord, error) {
			require.NotNil(t, patch.Name)
			assert.Equal(t, "Renamed Widget", *patch.Name)
			assert.Nil(t, patch.Price)
			return record, nil
		})

	body := `{"name":"Renamed Widget"}`
	req := httptest.NewRequest("PUT", "/api/v1/stocks/"+record.ProductID, strings.NewReader(body))
	w := httptest.NewRecorder()
	newTestRouter(mockService).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var got handlers.StockResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Renamed Widget", got.Name)
}

func TestStockHandler_UpdateStock_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := mocks.NewMockStockService(ctrl)

	body := `{"price":"-1"}`
	req := httptest.NewRequest("PUT", "/api/v1/stocks/p1", strings.NewReader(body))
	w := httptest.NewRecorder()
	newTestRouter(mockService).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestStockHandler_DeleteStock(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := mocks.NewMockStockService(ctrl)
	mockService.EXPECT().
		DeleteRecord(gomock.Any(), "test-widget-001").
		Return(nil)

	req := httptest.NewRequest("DELETE", "/api/v1/stocks/test-widget-001", nil)
	w := httptest.NewRecorder()
	newTestRouter(mockService).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "test-widget-001", body["product_id"])
}

func TestStockHandler_AddStock(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	record := helpers.CreateTestStockRecord(func(r *domain.StockRecord) {
		r.Quantity = 80
	})

	mockService := mocks.NewMockStockService(ctrl)
	mockService.EXPECT().
		AddStock(gomock.Any(), record.ProductID, 30, "ops", "restock").
		Return(record, nil)

	body := `{"quantity":30,"actor":"ops","notes":"restock"}`
	req := httptest.NewRequest("POST", "/api/v1/stocks/"+record.ProductID+"/add", strings.NewReader(body))
	w := httptest.NewRecorder()
	newTestRouter(mockService).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var got handlers.StockResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 80, got.Quantity)
}

func TestStockHandler_RemoveStock(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMocks     func(*mocks.MockStockService)
		expectedStatus int
	}{
		{
			name: "removed",
			body: `{"quantity":5}`,
			setupMocks: func(m *mocks.MockStockService) {
				m.EXPECT().
					RemoveStock(gomock.Any(), "test-widget-001", 5, "", "").
					Return(helpers.CreateTestStockRecord(), nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "zero_quantity_rejected",
			body:           `{"quantity":0}`,
			setupMocks:     func(m *mocks.MockStockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "insufficient_stock",
			body: `{"quantity":500}`,
			setupMocks: func(m *mocks.MockStockService) {
				m.EXPECT().
					RemoveStock(gomock.Any(), "test-widget-001", 500, "", "").
					Return(nil, fmt.Errorf("product test-widget-001 has 50 units, cannot remove 500: %w",
						domain.ErrInsufficientStock))
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockService := mocks.NewMockStockService(ctrl)
			tt.setupMocks(mockService)

			req := httptest.NewRequest("POST", "/api/v1/stocks/test-widget-001/remove",
				strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			newTestRouter(mockService).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestStockHandler_GetHistory(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	events := []*domain.ChangeEvent{
		domain.NewChangeEvent("p1", domain.ActionAdd, 10, 15, "ops", ""),
	}

	mockService := mocks.NewMockStockService(ctrl)
	mockService.EXPECT().
		GetHistory(gomock.Any(), "p1", 3, 5).
		Return(&ports.HistoryResult{
			Events:     events,
			Page:       3,
			PageSize:   5,
			TotalCount: 11,
			TotalPages: 3,
		}, nil)

	req := httptest.NewRequest("GET", "/api/v1/stocks/p1/history?page=3&limit=5", nil)
	w := httptest.NewRecorder()
	newTestRouter(mockService).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body ports.HistoryResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Events, 1)
	assert.Equal(t, int64(11), body.TotalCount)
}

func TestStockHandler_CacheStats(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := mocks.NewMockStockService(ctrl)
	mockService.EXPECT().
		CacheStats(gomock.Any()).
		Return(&ports.CacheStats{Connected: true, KeyspaceHits: 42, HitRate: 84.0})

	req := httptest.NewRequest("GET", "/api/v1/cache/stats", nil)
	w := httptest.NewRecorder()
	newTestRouter(mockService).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body ports.CacheStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Connected)
	assert.Equal(t, int64(42), body.KeyspaceHits)
}
