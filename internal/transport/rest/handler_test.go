package rest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
	"github.com/abgdnv/gocatalog/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockCatalogService struct {
	mock.Mock
}

func (m *mockCatalogService) GetAll(ctx context.Context) ([]service.ProductDto, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]service.ProductDto)
	return list, args.Error(1)
}

func (m *mockCatalogService) GetByID(ctx context.Context, id int64) (*service.ProductDto, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*service.ProductDto)
	return p, args.Error(1)
}

func (m *mockCatalogService) GetByCategory(ctx context.Context, category string) ([]service.ProductDto, error) {
	args := m.Called(ctx, category)
	list, _ := args.Get(0).([]service.ProductDto)
	return list, args.Error(1)
}

func (m *mockCatalogService) AddProduct(ctx context.Context, product service.ProductCreateDto) (*service.ProductDto, error) {
	args := m.Called(ctx, product)
	p, _ := args.Get(0).(*service.ProductDto)
	return p, args.Error(1)
}

func (m *mockCatalogService) UpdateProduct(ctx context.Context, product service.ProductUpdateDto) (*service.ProductDto, error) {
	args := m.Called(ctx, product)
	p, _ := args.Get(0).(*service.ProductDto)
	return p, args.Error(1)
}

func (m *mockCatalogService) DeleteProduct(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCatalogService) ApplyDiscountToCategory(ctx context.Context, category string, pct decimal.Decimal) ([]service.ProductDto, error) {
	args := m.Called(ctx, category, pct)
	list, _ := args.Get(0).([]service.ProductDto)
	return list, args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func laptop() service.ProductDto {
	return service.ProductDto{ID: 1, Name: "Laptop", Price: decimal.RequireFromString("900"), Category: "Electronics", Version: 2}
}

const laptopJSON = `{"id":1,"name":"Laptop","price":900.00,"price_formatted":"900,00 €","category":"Electronics","version":2}`

func passThrough(next http.Handler) http.Handler { return next }

// newRouter mounts the handler without authentication.
func newRouter(svc service.CatalogService) http.Handler {
	r := chi.NewRouter()
	NewHandler(svc, discardLogger()).RegisterRoutes(r, passThrough)
	return r
}

func Test_Handler_Routes(t *testing.T) {
	testCases := []struct {
		name         string
		method       string
		path         string
		body         string
		setup        func(m *mockCatalogService)
		expectedCode int
		expectedBody string
	}{
		{
			name:   "GetAll - success",
			method: http.MethodGet,
			path:   "/api/v1/products",
			setup: func(m *mockCatalogService) {
				m.On("GetAll", mock.Anything).Return([]service.ProductDto{laptop()}, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"success":true,"message":"Products retrieved successfully.","data":[` + laptopJSON + `]}`,
		},
		{
			name:   "GetAll - empty list",
			method: http.MethodGet,
			path:   "/api/v1/products",
			setup: func(m *mockCatalogService) {
				m.On("GetAll", mock.Anything).Return([]service.ProductDto{}, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"success":true,"message":"Products retrieved successfully.","data":[]}`,
		},
		{
			name:   "GetAll - infrastructure failure is hidden",
			method: http.MethodGet,
			path:   "/api/v1/products",
			setup: func(m *mockCatalogService) {
				m.On("GetAll", mock.Anything).Return(nil, errors.New("connection refused"))
			},
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"success":false,"message":"Failed to fetch products","data":null}`,
		},
		{
			name:   "GetByID - found",
			method: http.MethodGet,
			path:   "/api/v1/products/1",
			setup: func(m *mockCatalogService) {
				p := laptop()
				m.On("GetByID", mock.Anything, int64(1)).Return(&p, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"success":true,"message":"Product retrieved successfully.","data":` + laptopJSON + `}`,
		},
		{
			name:   "GetByID - not found",
			method: http.MethodGet,
			path:   "/api/v1/products/42",
			setup: func(m *mockCatalogService) {
				m.On("GetByID", mock.Anything, int64(42)).Return(nil, catalogerrors.ErrProductNotFound)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"success":false,"message":"Product with id '42' not found.","data":null}`,
		},
		{
			name:         "GetByID - invalid id",
			method:       http.MethodGet,
			path:         "/api/v1/products/abc",
			setup:        func(m *mockCatalogService) {},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"success":false,"message":"Invalid id: abc","data":null}`,
		},
		{
			name:   "GetByCategory - success",
			method: http.MethodGet,
			path:   "/api/v1/products/category/Electronics",
			setup: func(m *mockCatalogService) {
				m.On("GetByCategory", mock.Anything, "Electronics").Return([]service.ProductDto{laptop()}, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"success":true,"message":"Products retrieved successfully.","data":[` + laptopJSON + `]}`,
		},
		{
			name:   "Add - success",
			method: http.MethodPost,
			path:   "/api/v1/products",
			body:   `{"name":"Laptop","price":"900","category":"Electronics"}`,
			setup: func(m *mockCatalogService) {
				p := laptop()
				m.On("AddProduct", mock.Anything, mock.MatchedBy(func(dto service.ProductCreateDto) bool {
					return dto.Name == "Laptop" && dto.Price.Equal(decimal.NewFromInt(900))
				})).Return(&p, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"success":true,"message":"Product added successfully.","data":` + laptopJSON + `}`,
		},
		{
			name:   "Add - duplicate name passes message through",
			method: http.MethodPost,
			path:   "/api/v1/products",
			body:   `{"name":"Laptop","price":10}`,
			setup: func(m *mockCatalogService) {
				m.On("AddProduct", mock.Anything, mock.Anything).Return(nil, catalogerrors.DuplicateName("Laptop"))
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"success":false,"message":"A product with the name 'Laptop' already exists.","data":null}`,
		},
		{
			name:         "Add - malformed body",
			method:       http.MethodPost,
			path:         "/api/v1/products",
			body:         `{"name":`,
			setup:        func(m *mockCatalogService) {},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"success":false,"message":"Invalid request body","data":null}`,
		},
		{
			name:         "Add - missing name",
			method:       http.MethodPost,
			path:         "/api/v1/products",
			body:         `{"price":10}`,
			setup:        func(m *mockCatalogService) {},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"success":false,"message":"Validation failed","data":{"validation_errors":{"Name":"failed on rule: required"}}}`,
		},
		{
			name:   "Update - stale version is an infrastructure failure",
			method: http.MethodPut,
			path:   "/api/v1/products/1",
			body:   `{"name":"Laptop","price":10,"version":1}`,
			setup: func(m *mockCatalogService) {
				m.On("UpdateProduct", mock.Anything, mock.MatchedBy(func(dto service.ProductUpdateDto) bool {
					return dto.ID == 1 && dto.Version == 1
				})).Return(nil, catalogerrors.ErrOptimisticLock)
			},
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"success":false,"message":"Failed to update product","data":null}`,
		},
		{
			name:   "Delete - success",
			method: http.MethodDelete,
			path:   "/api/v1/products/7",
			setup: func(m *mockCatalogService) {
				m.On("DeleteProduct", mock.Anything, int64(7)).Return(nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"success":true,"message":"Product deleted successfully.","data":null}`,
		},
		{
			name:   "ApplyDiscount - success",
			method: http.MethodPost,
			path:   "/api/v1/products/discount",
			body:   `{"category":"Electronics","discount_percentage":10}`,
			setup: func(m *mockCatalogService) {
				m.On("ApplyDiscountToCategory", mock.Anything, "Electronics", mock.MatchedBy(func(pct decimal.Decimal) bool {
					return pct.Equal(decimal.NewFromInt(10))
				})).Return([]service.ProductDto{laptop()}, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"success":true,"message":"Discount of 10% applied to category 'Electronics'.","data":[` + laptopJSON + `]}`,
		},
		{
			name:   "ApplyDiscount - below minimum",
			method: http.MethodPost,
			path:   "/api/v1/products/discount",
			body:   `{"category":"Electronics","discount_percentage":95}`,
			setup: func(m *mockCatalogService) {
				m.On("ApplyDiscountToCategory", mock.Anything, "Electronics", mock.Anything).
					Return(nil, catalogerrors.DiscountBelowMinimum("Smartphone", "1,00 €"))
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"success":false,"message":"Discounting 'Smartphone' would reduce the price below the minimum allowed (1,00 €).","data":null}`,
		},
		{
			name:   "ApplyDiscount - unknown category",
			method: http.MethodPost,
			path:   "/api/v1/products/discount",
			body:   `{"category":"Toys","discount_percentage":10}`,
			setup: func(m *mockCatalogService) {
				m.On("ApplyDiscountToCategory", mock.Anything, "Toys", mock.Anything).
					Return(nil, catalogerrors.CategoryNotFound("Toys"))
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"success":false,"message":"No products found in category 'Toys'.","data":null}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			svc := &mockCatalogService{}
			tc.setup(svc)
			var body io.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			}
			req := httptest.NewRequest(tc.method, tc.path, body)
			rr := httptest.NewRecorder()

			// when
			newRouter(svc).ServeHTTP(rr, req)

			// then
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.Equal(t, tc.expectedCode, rr.Code, "status code should match")
			assert.JSONEq(t, tc.expectedBody, rr.Body.String(), "response body should match")
			svc.AssertExpectations(t)
		})
	}
}

func Test_Handler_RoutesRequireAuthentication(t *testing.T) {
	// given
	svc := &mockCatalogService{}
	r := chi.NewRouter()
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	NewHandler(svc, discardLogger()).RegisterRoutes(r, deny)
	rr := httptest.NewRecorder()

	// when
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))

	// then
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	svc.AssertNotCalled(t, "GetAll", mock.Anything)
}
