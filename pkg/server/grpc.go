package server

import (
	"context"
	"log/slog"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// RegistrationFunc registers a grpc service with the server.
type RegistrationFunc func(*grpc.Server)

// GRPCOptions configures NewGRPCServer.
type GRPCOptions struct {
	EnableReflection bool
	Logger           *slog.Logger
	// AuthFunc authenticates every unary call. Nil disables authentication.
	AuthFunc auth.AuthFunc
}

// NewGRPCServer creates a gRPC server with otel stats, recovery, logging and optional auth interceptors.
func NewGRPCServer(opts GRPCOptions, registerFunc ...RegistrationFunc) *grpc.Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interceptors := []grpc.UnaryServerInterceptor{
		recovery.UnaryServerInterceptor(recovery.WithRecoveryHandlerContext(func(ctx context.Context, p any) error {
			logger.ErrorContext(ctx, "Panic recovered in gRPC handler", "panic", p)
			return status.Error(codes.Internal, "internal error")
		})),
		logging.UnaryServerInterceptor(interceptorLogger(logger), logging.WithLogOnEvents(logging.FinishCall)),
	}
	if opts.AuthFunc != nil {
		interceptors = append(interceptors, auth.UnaryServerInterceptor(opts.AuthFunc))
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors...),
	)

	if opts.EnableReflection {
		reflection.Register(grpcServer)
	}

	for _, regFunc := range registerFunc {
		regFunc(grpcServer)
	}

	return grpcServer
}

// interceptorLogger adapts slog to the go-grpc-middleware logging interface.
func interceptorLogger(l *slog.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}
