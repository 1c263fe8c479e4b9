package grpc

import (
	"context"

	"github.com/abgdnv/gocatalog/pkg/auth"
	"github.com/abgdnv/gocatalog/pkg/logger"
	grpcauth "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// NewAuthFunc authenticates calls by the bearer token in the authorization metadata.
func NewAuthFunc(verifier auth.Verifier) grpcauth.AuthFunc {
	return func(ctx context.Context) (context.Context, error) {
		raw, err := grpcauth.AuthFromMD(ctx, "bearer")
		if err != nil {
			return nil, err
		}
		token, err := verifier.Verify(ctx, raw)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		subject, ok := token.Subject()
		if !ok || subject == "" {
			return nil, status.Error(codes.Unauthenticated, "token has no subject")
		}
		return logger.WithSubject(ctx, subject), nil
	}
}
