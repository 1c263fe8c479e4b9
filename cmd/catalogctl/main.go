// Package main is a command line client for the catalog gRPC API.
//
//	catalogctl [-addr host:port] [-token jwt] list
//	catalogctl category <name>
//	catalogctl get <id>
//	catalogctl add <name> <price> [category]
//	catalogctl discount <category> <percentage>
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	grpcImpl "github.com/abgdnv/gocatalog/internal/transport/grpc"
	"github.com/abgdnv/gocatalog/pkg/config"
	"github.com/shopspring/decimal"
)

var errUsage = errors.New("usage: catalogctl [-addr host:port] [-token jwt] list | category <name> | get <id> | add <name> <price> [category] | discount <category> <percentage>")

func main() {
	addr := flag.String("addr", envOr("CATALOG_GRPC_ADDR", "localhost:9090"), "catalog gRPC address")
	token := flag.String("token", os.Getenv("CATALOG_TOKEN"), "bearer token from /api/v1/auth/login")
	timeout := flag.Duration("timeout", 5*time.Second, "timeout of a single attempt")
	attempts := flag.Uint("attempts", 3, "attempts per call, the first one included")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := grpcImpl.ClientOptions{
		Token:   *token,
		Timeout: *timeout,
		Retry:   config.RetryConfig{MaxAttempts: *attempts, InitialBackoff: 100 * time.Millisecond},
		CircuitBreaker: config.CircuitBreakerConfig{
			ConsecutiveFailures: 5,
			ErrorRatePercent:    50,
			OpenTimeout:         30 * time.Second,
		},
	}
	if err := run(ctx, *addr, opts, flag.Args(), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr string, opts grpcImpl.ClientOptions, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	conn, err := grpcImpl.Dial(addr, opts)
	if err != nil {
		return err
	}
	defer conn.Close()

	result, err := execute(ctx, grpcImpl.NewClient(conn), args)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// execute runs one subcommand against client and returns what should be printed.
func execute(ctx context.Context, client *grpcImpl.Client, args []string) (any, error) {
	switch cmd, rest := args[0], args[1:]; {
	case cmd == "list" && len(rest) == 0:
		return client.ListProducts(ctx)
	case cmd == "category" && len(rest) == 1:
		return client.ListProductsByCategory(ctx, rest[0])
	case cmd == "get" && len(rest) == 1:
		id, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", rest[0], err)
		}
		return client.GetProduct(ctx, id)
	case cmd == "add" && (len(rest) == 2 || len(rest) == 3):
		amount, err := decimal.NewFromString(rest[1])
		if err != nil {
			return nil, fmt.Errorf("invalid price %q: %w", rest[1], err)
		}
		category := ""
		if len(rest) == 3 {
			category = rest[2]
		}
		return client.AddProduct(ctx, rest[0], amount, category)
	case cmd == "discount" && len(rest) == 2:
		pct, err := decimal.NewFromString(rest[1])
		if err != nil {
			return nil, fmt.Errorf("invalid percentage %q: %w", rest[1], err)
		}
		return client.ApplyDiscount(ctx, rest[0], pct)
	default:
		return nil, errUsage
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
