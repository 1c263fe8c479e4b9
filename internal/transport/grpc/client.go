package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/abgdnv/gocatalog/pkg/client/grpc/interceptors"
	"github.com/abgdnv/gocatalog/pkg/config"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Product is a catalog product as seen by gRPC clients.
type Product struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	PriceFormatted string          `json:"price_formatted"`
	Category       string          `json:"category"`
	Version        int32           `json:"version"`
}

// ClientOptions configures Dial.
type ClientOptions struct {
	Token          string
	Timeout        time.Duration
	Retry          config.RetryConfig
	CircuitBreaker config.CircuitBreakerConfig
}

// Client calls catalog.v1.CatalogService.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps an existing connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Dial connects to target without transport security. Calls carry the bearer token,
// are retried on transient codes and are guarded by a circuit breaker. Each attempt is bounded by opts.Timeout.
func Dial(target string, opts ClientOptions, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	chain := []grpc.UnaryClientInterceptor{
		interceptors.UnaryClientBearerInterceptor(opts.Token),
		interceptors.NewRetryInterceptor(opts.Retry),
		interceptors.NewCircuitBreaker("catalog-client", opts.CircuitBreaker),
	}
	if opts.Timeout > 0 {
		chain = append(chain, interceptors.UnaryClientTimeoutInterceptor(opts.Timeout))
	}
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(chain...),
	}, extra...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog client for %s: %w", target, err)
	}
	return conn, nil
}

func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	out := new(structpb.ListValue)
	if err := c.conn.Invoke(ctx, fullMethod("ListProducts"), &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return fromList(out)
}

func (c *Client) ListProductsByCategory(ctx context.Context, category string) ([]Product, error) {
	out := new(structpb.ListValue)
	if err := c.conn.Invoke(ctx, fullMethod("ListProductsByCategory"), wrapperspb.String(category), out); err != nil {
		return nil, err
	}
	return fromList(out)
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*Product, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod("GetProduct"), wrapperspb.Int64(id), out); err != nil {
		return nil, err
	}
	return fromStruct(out)
}

func (c *Client) AddProduct(ctx context.Context, name string, amount decimal.Decimal, category string) (*Product, error) {
	in, err := structpb.NewStruct(map[string]any{
		"name":     name,
		"price":    amount.String(),
		"category": category,
	})
	if err != nil {
		return nil, fmt.Errorf("encode product: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod("AddProduct"), in, out); err != nil {
		return nil, err
	}
	return fromStruct(out)
}

// ApplyDiscount returns the products of category after the discount.
func (c *Client) ApplyDiscount(ctx context.Context, category string, pct decimal.Decimal) ([]Product, error) {
	in, err := structpb.NewStruct(map[string]any{
		"category":            category,
		"discount_percentage": pct.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode discount: %w", err)
	}
	out := new(structpb.ListValue)
	if err := c.conn.Invoke(ctx, fullMethod("ApplyDiscount"), in, out); err != nil {
		return nil, err
	}
	return fromList(out)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func fromList(lv *structpb.ListValue) ([]Product, error) {
	products := make([]Product, 0, len(lv.GetValues()))
	for _, v := range lv.GetValues() {
		p, err := fromStruct(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, nil
}

func fromStruct(st *structpb.Struct) (*Product, error) {
	amount, err := decimalField(st, "price")
	if err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}
	fields := st.GetFields()
	return &Product{
		ID:             int64(fields["id"].GetNumberValue()),
		Name:           fields["name"].GetStringValue(),
		Price:          amount,
		PriceFormatted: fields["price_formatted"].GetStringValue(),
		Category:       fields["category"].GetStringValue(),
		Version:        int32(fields["version"].GetNumberValue()),
	}, nil
}
