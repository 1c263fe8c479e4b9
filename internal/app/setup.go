// Package app contains the application setup for the catalog service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/gocatalog/internal/config"
	"github.com/abgdnv/gocatalog/internal/service"
	"github.com/abgdnv/gocatalog/internal/store"
	grpcImpl "github.com/abgdnv/gocatalog/internal/transport/grpc"
	"github.com/abgdnv/gocatalog/internal/transport/rest"
	"github.com/abgdnv/gocatalog/pkg/auth"
	pkgconfig "github.com/abgdnv/gocatalog/pkg/config"
	"github.com/abgdnv/gocatalog/pkg/messaging"
	natsclient "github.com/abgdnv/gocatalog/pkg/nats"
	"github.com/abgdnv/gocatalog/pkg/server"
	"github.com/abgdnv/gocatalog/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"google.golang.org/grpc"
)

const serviceName = "catalog-service"

type Stores struct {
	Products store.ProductStore
	Users    store.UserStore
}

// NewPgStores creates the Postgres backed stores.
func NewPgStores(dbPool *pgxpool.Pool) Stores {
	return Stores{Products: store.NewPgStore(dbPool), Users: store.NewPgUserStore(dbPool)}
}

// NewMemoryStores creates in-memory stores holding the seed products.
func NewMemoryStores() Stores {
	return Stores{Products: store.NewMemoryStore(store.SeedProducts()...), Users: store.NewMemoryUserStore()}
}

type Dependencies struct {
	CatalogService service.CatalogService
	AuthService    service.AuthService
	Verifier       auth.Verifier
	Logger         *slog.Logger
}

func SetupDependencies(stores Stores, publisher messaging.Publisher, authCfg pkgconfig.AuthConfig, logger *slog.Logger) (*Dependencies, error) {
	tokens, err := auth.NewHMAC(auth.HMACSettings{
		Secret:   authCfg.Secret,
		Issuer:   authCfg.Issuer,
		Audience: authCfg.Audience,
		TTL:      authCfg.TokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token signer: %w", err)
	}

	return &Dependencies{
		CatalogService: service.NewService(stores.Products, publisher, logger),
		AuthService:    service.NewAuthService(stores.Users, tokens, authCfg.BcryptCost, logger),
		Verifier:       tokens,
		Logger:         logger,
	}, nil
}

// SetupPublisher connects to NATS JetStream and makes sure the catalog stream exists.
// When NATS is disabled events are dropped. The returned close function is never nil.
func SetupPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (messaging.Publisher, func(), error) {
	if !cfg.NATS.Enabled {
		logger.Info("NATS disabled, catalog events will not be published")
		return messaging.NoopPublisher{Logger: logger}, func() {}, nil
	}

	nc, err := natsclient.NewClient(cfg.NATS.Url, cfg.NATS.Timeout)
	if err != nil {
		return nil, nil, err
	}
	js, err := natsclient.NewJetStreamContext(nc)
	if err != nil {
		return nil, nil, err
	}
	if err := natsclient.EnsureStream(ctx, js, cfg.NATS.Stream, messaging.CatalogSubjects); err != nil {
		nc.Close()
		return nil, nil, err
	}
	logger.Info("Connected to NATS", slog.String("url", nc.ConnectedUrlRedacted()))

	publisher := messaging.NewBreakerPublisher("nats-publisher", natsclient.NewNatsPublisher(js), cfg.Resilience.CircuitBreaker)
	return publisher, func() { drain(nc, logger) }, nil
}

func drain(nc *nats.Conn, logger *slog.Logger) {
	if err := nc.Drain(); err != nil {
		logger.Warn("Failed to drain NATS connection", "error", err)
	}
}

// SetupHttpHandler builds the router with public auth routes and authenticated catalog routes.
// Used by E2E tests to set up the HTTP server with the necessary routes and middleware.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return mux
}

func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	rest.NewAuthHandler(deps.AuthService, deps.Logger).RegisterRoutes(mux)
	rest.NewHandler(deps.CatalogService, deps.Logger).RegisterRoutes(mux, web.Authenticator(deps.Verifier, deps.Logger))
}

// SetupHttpServer creates and configures the HTTP server for the catalog service.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	mux := SetupHttpHandler(deps)

	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}

	return server.NewHTTPServer(httpCfg, serviceName, mux)
}

// SetupGrpcServer initializes the authenticated gRPC server for the catalog service.
func SetupGrpcServer(deps *Dependencies, reflectionEnabled bool) *grpc.Server {
	catalogRegisterFunc := func(s *grpc.Server) {
		grpcImpl.Register(s, grpcImpl.NewServer(deps.CatalogService, deps.Logger))
	}
	return server.NewGRPCServer(server.GRPCOptions{
		EnableReflection: reflectionEnabled,
		Logger:           deps.Logger,
		AuthFunc:         grpcImpl.NewAuthFunc(deps.Verifier),
	}, catalogRegisterFunc)
}
