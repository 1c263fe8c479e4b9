// Package e2e provides end-to-end tests for the catalog service.
// The suite starts a real PostgreSQL instance with testcontainers-go, applies the embedded migrations
// and runs the application handler in an httptest.Server. Every test starts from empty tables.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/abgdnv/gocatalog/internal/app"
	"github.com/abgdnv/gocatalog/internal/store"
	pkgconfig "github.com/abgdnv/gocatalog/pkg/config"
	"github.com/abgdnv/gocatalog/pkg/messaging"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"
)

// skipE2ETests is the environment variable that can be set to skip E2E tests.
const skipE2ETests = "CATALOG_SVC_SKIP_E2E_TESTS"

const (
	productURL  = "/api/v1/products"
	discountURL = "/api/v1/products/discount"
	registerURL = "/api/v1/auth/register"
	loginURL    = "/api/v1/auth/login"
)

type CatalogServiceE2ESuite struct {
	suite.Suite
	pgContainer *postgres.PostgresContainer
	dbPool      *pgxpool.Pool
	server      *httptest.Server
	httpClient  *http.Client
	logger      *slog.Logger
	ctx         context.Context
	token       string
}

func testAuthConfig() pkgconfig.AuthConfig {
	return pkgconfig.AuthConfig{
		Secret:     "e2e-secret-0123456789abcdef012345",
		Issuer:     "catalog-service",
		Audience:   "catalog-api",
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
	}
}

func (s *CatalogServiceE2ESuite) SetupSuite() {
	s.ctx = context.Background()
	var err error
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:17.5-alpine",
		postgres.WithDatabase("catalog"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(s.T(), err, "Failed to run PostgreSQL container")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get connection string from container")

	s.dbPool, err = pgxpool.New(s.ctx, connStr)
	require.NoError(s.T(), err, "Failed to create pgx pool")

	for i := range 10 {
		s.logger.Info("Pinging E2E PostgreSQL database", "attempt", i+1)
		err = s.dbPool.Ping(s.ctx)
		if err == nil {
			break
		}
		time.Sleep(time.Second * 2)
	}
	require.NoError(s.T(), err, "Failed to connect to PostgreSQL after retries")

	require.NoError(s.T(), store.Migrate(s.ctx, s.dbPool), "Failed to apply migrations")
	s.logger.Info("Migrations applied for E2E tests")

	deps, err := app.SetupDependencies(app.NewPgStores(s.dbPool), messaging.NoopPublisher{Logger: s.logger}, testAuthConfig(), s.logger)
	require.NoError(s.T(), err, "Failed to setup application for E2E")

	s.server = httptest.NewServer(app.SetupHttpHandler(deps))
	s.httpClient = s.server.Client()
	s.logger.Info("E2E test server started", "url", s.server.URL)
}

func (s *CatalogServiceE2ESuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Warn("Failed to terminate E2E PostgreSQL container", "error", err)
		}
	}
}

// SetupTest empties the tables and logs in a fresh user.
func (s *CatalogServiceE2ESuite) SetupTest() {
	_, err := s.dbPool.Exec(s.ctx, "TRUNCATE TABLE products, users RESTART IDENTITY CASCADE")
	require.NoError(s.T(), err, "Failed to truncate tables")
	s.token = s.registerAndLogin("alice", "secret1")
}

func TestCatalogServiceE2E(t *testing.T) {
	if os.Getenv(skipE2ETests) == "1" {
		t.Skip("Skipping E2E tests based on " + skipE2ETests + " env var")
	}
	suite.Run(t, new(CatalogServiceE2ESuite))
}

func (s *CatalogServiceE2ESuite) TestAddProduct() {
	testCases := []struct {
		name            string
		payload         map[string]any
		expectedStatus  int
		expectedSuccess bool
		expectedMessage string
	}{
		{
			name:            "success",
			payload:         map[string]any{"name": "Laptop", "price": "1000.00", "category": "Electronics"},
			expectedStatus:  http.StatusOK,
			expectedSuccess: true,
			expectedMessage: "Product added successfully.",
		},
		{
			name:            "price below minimum",
			payload:         map[string]any{"name": "Sticker", "price": "0.99", "category": "Office"},
			expectedStatus:  http.StatusOK,
			expectedMessage: "Price must be at least 1,00 €.",
		},
		{
			name:            "duplicate name",
			payload:         map[string]any{"name": "Mouse", "price": "20.00", "category": "Electronics"},
			expectedStatus:  http.StatusOK,
			expectedMessage: "A product with the name 'Mouse' already exists.",
		},
		{
			name:            "missing name",
			payload:         map[string]any{"price": "20.00"},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Validation failed",
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			// given
			s.addProduct("Mouse", "25.00", "Electronics")

			// when
			status, env := s.doRequest(http.MethodPost, productURL, s.token, tc.payload)

			// then
			s.Equal(tc.expectedStatus, status)
			s.Equal(tc.expectedSuccess, env.Success)
			s.Equal(tc.expectedMessage, env.Message)
			_, err := s.dbPool.Exec(s.ctx, "TRUNCATE TABLE products RESTART IDENTITY CASCADE")
			s.Require().NoError(err)
		})
	}
}

func (s *CatalogServiceE2ESuite) TestApplyDiscount() {
	// given
	s.addProduct("Laptop", "1000.00", "Electronics")
	s.addProduct("Smartphone", "500.00", "Electronics")

	// when
	status, env := s.doRequest(http.MethodPost, discountURL, s.token, map[string]any{"category": "Electronics", "discount_percentage": 10})

	// then
	s.Require().Equal(http.StatusOK, status)
	s.Require().True(env.Success, env.Message)
	s.Equal("Discount of 10% applied to category 'Electronics'.", env.Message)
	products := s.decodeProducts(env.Data)
	s.Require().Len(products, 2)
	s.Equal(json.Number("900.00"), products[0].Price)
	s.Equal("900,00 €", products[0].PriceFormatted)
	s.Equal(json.Number("450.00"), products[1].Price)
	s.Equal(int32(2), products[1].Version)

	stored := s.getProduct(products[0].ID)
	s.Equal(json.Number("900.00"), stored.Price)
	s.Equal(int32(2), stored.Version)
}

func (s *CatalogServiceE2ESuite) TestApplyDiscount_Rejections() {
	testCases := []struct {
		name            string
		payload         map[string]any
		expectedMessage string
	}{
		{
			name:            "below minimum keeps every price",
			payload:         map[string]any{"category": "Electronics", "discount_percentage": 95},
			expectedMessage: "Discounting 'Smartphone' would reduce the price below the minimum allowed (1,00 €).",
		},
		{
			name:            "percentage of 100",
			payload:         map[string]any{"category": "Electronics", "discount_percentage": 100},
			expectedMessage: "Discount percentage must be greater than 0 and less than 100.",
		},
		{
			name:            "unknown category",
			payload:         map[string]any{"category": "Toys", "discount_percentage": 10},
			expectedMessage: "No products found in category 'Toys'.",
		},
	}

	laptop := s.addProduct("Laptop", "1000.00", "Electronics")
	phone := s.addProduct("Smartphone", "5.00", "Electronics")

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			// when
			status, env := s.doRequest(http.MethodPost, discountURL, s.token, tc.payload)

			// then
			s.Equal(http.StatusOK, status)
			s.False(env.Success)
			s.Equal(tc.expectedMessage, env.Message)

			storedLaptop := s.getProduct(laptop.ID)
			s.Equal(json.Number("1000.00"), storedLaptop.Price)
			s.Equal(int32(1), storedLaptop.Version)
			storedPhone := s.getProduct(phone.ID)
			s.Equal(json.Number("5.00"), storedPhone.Price)
			s.Equal(int32(1), storedPhone.Version)
		})
	}
}

// TestApplyDiscount_Concurrent discounts the same category in parallel. Every request either applies fully or reports
// the conflict, and the stored version counts exactly the successful ones.
func (s *CatalogServiceE2ESuite) TestApplyDiscount_Concurrent() {
	// given
	first := s.addProduct("Laptop", "1000.00", "Electronics")
	s.addProduct("Smartphone", "500.00", "Electronics")
	const workers = 5

	// when
	var wg sync.WaitGroup
	results := make(chan int, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _ := s.doRequest(http.MethodPost, discountURL, s.token, map[string]any{"category": "Electronics", "discount_percentage": 10})
			results <- status
		}()
	}
	wg.Wait()
	close(results)

	// then
	succeeded := 0
	for status := range results {
		s.Contains([]int{http.StatusOK, http.StatusInternalServerError}, status)
		if status == http.StatusOK {
			succeeded++
		}
	}
	s.GreaterOrEqual(succeeded, 1)
	stored := s.getProduct(first.ID)
	s.Equal(int32(1+succeeded), stored.Version)
}

func (s *CatalogServiceE2ESuite) TestUpdateAndDelete() {
	// given
	created := s.addProduct("Laptop", "1000.00", "Electronics")

	// when
	status, env := s.doRequest(http.MethodPut, productURL+"/"+itoa(created.ID), s.token,
		map[string]any{"name": "Laptop Pro", "price": "1200.00", "category": "Electronics", "version": 1})

	// then
	s.Require().Equal(http.StatusOK, status)
	s.Require().True(env.Success, env.Message)

	// when
	status, env = s.doRequest(http.MethodPut, productURL+"/"+itoa(created.ID), s.token,
		map[string]any{"name": "Laptop Max", "price": "1300.00", "category": "Electronics", "version": 1})

	// then
	s.Equal(http.StatusInternalServerError, status)
	s.Equal("Failed to update product", env.Message)

	// when
	status, env = s.doRequest(http.MethodDelete, productURL+"/"+itoa(created.ID), s.token, nil)

	// then
	s.Equal(http.StatusOK, status)
	s.True(env.Success)
	status, env = s.doRequest(http.MethodGet, productURL+"/"+itoa(created.ID), s.token, nil)
	s.Equal(http.StatusOK, status)
	s.False(env.Success)
	s.Equal("Product with id '1' not found.", env.Message)

	// deleting again is not an error
	status, env = s.doRequest(http.MethodDelete, productURL+"/"+itoa(created.ID), s.token, nil)
	s.Equal(http.StatusOK, status)
	s.True(env.Success)
}

func (s *CatalogServiceE2ESuite) TestAuth() {
	// duplicate registration
	status, env := s.doRequest(http.MethodPost, registerURL, "", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "secret1", "confirm_password": "secret1",
	})
	s.Equal(http.StatusConflict, status)
	s.Equal("User already exists!", env.Message)

	// wrong password
	status, env = s.doRequest(http.MethodPost, loginURL, "", map[string]string{"username": "alice", "password": "wrong!!"})
	s.Equal(http.StatusUnauthorized, status)
	s.Equal("Invalid credentials!", env.Message)

	// catalog requires a token
	status, _ = s.doRequest(http.MethodGet, productURL, "", nil)
	s.Equal(http.StatusUnauthorized, status)
}

// --------------------------------------------------------------------------
// ------------------------------- helpers ----------------------------------
// --------------------------------------------------------------------------

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type productView struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	Price          json.Number `json:"price"`
	PriceFormatted string      `json:"price_formatted"`
	Category       string      `json:"category"`
	Version        int32       `json:"version"`
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (s *CatalogServiceE2ESuite) registerAndLogin(username, password string) string {
	s.T().Helper()
	status, env := s.doRequest(http.MethodPost, registerURL, "", map[string]string{
		"username": username, "email": username + "@example.com", "password": password, "confirm_password": password,
	})
	s.Require().Equal(http.StatusCreated, status, env.Message)

	status, env = s.doRequest(http.MethodPost, loginURL, "", map[string]string{"username": username, "password": password})
	s.Require().Equal(http.StatusOK, status, env.Message)
	var token struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &token))
	return token.Token
}

func (s *CatalogServiceE2ESuite) addProduct(name, price, category string) productView {
	s.T().Helper()
	status, env := s.doRequest(http.MethodPost, productURL, s.token, map[string]any{"name": name, "price": price, "category": category})
	s.Require().Equal(http.StatusOK, status)
	s.Require().True(env.Success, env.Message)
	var p productView
	s.Require().NoError(json.Unmarshal(env.Data, &p))
	return p
}

func (s *CatalogServiceE2ESuite) getProduct(id int64) productView {
	s.T().Helper()
	status, env := s.doRequest(http.MethodGet, productURL+"/"+itoa(id), s.token, nil)
	s.Require().Equal(http.StatusOK, status)
	s.Require().True(env.Success, env.Message)
	var p productView
	s.Require().NoError(json.Unmarshal(env.Data, &p))
	return p
}

func (s *CatalogServiceE2ESuite) decodeProducts(data json.RawMessage) []productView {
	s.T().Helper()
	var list []productView
	s.Require().NoError(json.Unmarshal(data, &list))
	return list
}

// doRequest sends payload as JSON and decodes the response envelope.
func (s *CatalogServiceE2ESuite) doRequest(method, path, token string, payload any) (int, envelope) {
	var body io.Reader
	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		if err != nil {
			s.T().Errorf("marshal payload: %v", err)
			return 0, envelope{}
		}
		body = bytes.NewBuffer(payloadBytes)
	}

	req, err := http.NewRequestWithContext(s.ctx, method, s.server.URL+path, body)
	if err != nil {
		s.T().Errorf("create request: %v", err)
		return 0, envelope{}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.T().Errorf("request failed: %v", err)
		return 0, envelope{}
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		s.T().Errorf("decode envelope: %v", err)
	}
	return resp.StatusCode, env
}
