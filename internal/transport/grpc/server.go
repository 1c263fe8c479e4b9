// Package grpc exposes the catalog over gRPC using protobuf well-known types as messages.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
	"github.com/abgdnv/gocatalog/internal/price"
	"github.com/abgdnv/gocatalog/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "catalog.v1.CatalogService"

// CatalogServer is the server API of catalog.v1.CatalogService.
type CatalogServer interface {
	ListProducts(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	ListProductsByCategory(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)
	GetProduct(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	AddProduct(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApplyDiscount(context.Context, *structpb.Struct) (*structpb.ListValue, error)
}

// ServiceDesc describes catalog.v1.CatalogService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListProducts", Handler: unary("ListProducts", CatalogServer.ListProducts)},
		{MethodName: "ListProductsByCategory", Handler: unary("ListProductsByCategory", CatalogServer.ListProductsByCategory)},
		{MethodName: "GetProduct", Handler: unary("GetProduct", CatalogServer.GetProduct)},
		{MethodName: "AddProduct", Handler: unary("AddProduct", CatalogServer.AddProduct)},
		{MethodName: "ApplyDiscount", Handler: unary("ApplyDiscount", CatalogServer.ApplyDiscount)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "catalog/v1/catalog.proto",
}

// Register adds the catalog service to s.
func Register(s grpc.ServiceRegistrar, srv CatalogServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unary builds the method handler that decodes Req, runs interceptors and calls the server method.
func unary[Req any, Resp any](method string, call func(CatalogServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CatalogServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CatalogServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type Server struct {
	service  service.CatalogService
	validate *validator.Validate
	logger   *slog.Logger
}

var _ CatalogServer = (*Server)(nil)

func NewServer(service service.CatalogService, logger *slog.Logger) *Server {
	return &Server{
		service:  service,
		validate: validator.New(),
		logger:   logger.With("component", "grpc"),
	}
}

func (s *Server) ListProducts(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	list, err := s.service.GetAll(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return toList(list)
}

func (s *Server) ListProductsByCategory(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	list, err := s.service.GetByCategory(ctx, req.GetValue())
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return toList(list)
}

func (s *Server) GetProduct(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	if req.GetValue() <= 0 {
		return nil, status.Errorf(codes.InvalidArgument, "invalid product id: %d", req.GetValue())
	}
	found, err := s.service.GetByID(ctx, req.GetValue())
	if errors.Is(err, catalogerrors.ErrProductNotFound) {
		return nil, status.Errorf(codes.NotFound, "Product with id '%d' not found.", req.GetValue())
	}
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return toStruct(*found)
}

// AddProduct expects the fields name, price and optionally category.
func (s *Server) AddProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	amount, err := decimalField(req, "price")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	dto := service.ProductCreateDto{
		Name:     stringField(req, "name"),
		Price:    amount,
		Category: stringField(req, "category"),
	}
	if err := s.validate.Struct(dto); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid product: %v", err)
	}

	created, err := s.service.AddProduct(ctx, dto)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return toStruct(*created)
}

// ApplyDiscount expects the fields category and discount_percentage.
func (s *Server) ApplyDiscount(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	pct, err := decimalField(req, "discount_percentage")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	discounted, err := s.service.ApplyDiscountToCategory(ctx, stringField(req, "category"), pct)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return toList(discounted)
}

// toStatus maps service errors to gRPC codes. Messages of unexpected errors are not exposed.
func (s *Server) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, catalogerrors.ErrInvalidPrice), errors.Is(err, catalogerrors.ErrInvalidDiscount):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, catalogerrors.ErrDuplicateName), errors.Is(err, catalogerrors.ErrDiscountBelowMinimum):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, catalogerrors.ErrCategoryNotFound), errors.Is(err, catalogerrors.ErrProductNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, catalogerrors.ErrOptimisticLock):
		return status.Error(codes.Aborted, "products were modified concurrently, retry the request")
	default:
		s.logger.ErrorContext(ctx, "Catalog call failed", "error", err)
		return status.Error(codes.Internal, "internal server error")
	}
}

func toStruct(p service.ProductDto) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(productFields(p))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode product: %v", err)
	}
	return st, nil
}

func toList(list []service.ProductDto) (*structpb.ListValue, error) {
	values := make([]any, len(list))
	for i, p := range list {
		values[i] = productFields(p)
	}
	lv, err := structpb.NewList(values)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode products: %v", err)
	}
	return lv, nil
}

// productFields keeps the price as a string so no precision is lost in the float encoding of structpb.
func productFields(p service.ProductDto) map[string]any {
	return map[string]any{
		"id":              p.ID,
		"name":            p.Name,
		"price":           p.Price.StringFixed(2),
		"price_formatted": price.Format(p.Price),
		"category":        p.Category,
		"version":         p.Version,
	}
}

func stringField(st *structpb.Struct, key string) string {
	return st.GetFields()[key].GetStringValue()
}

// decimalField accepts the value as a decimal string or a number.
func decimalField(st *structpb.Struct, key string) (decimal.Decimal, error) {
	v, ok := st.GetFields()[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s is required", key)
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(kind.StringValue)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s is not a decimal: %q", key, kind.StringValue)
		}
		return d, nil
	case *structpb.Value_NumberValue:
		return decimal.NewFromFloat(kind.NumberValue), nil
	default:
		return decimal.Zero, fmt.Errorf("%s must be a string or a number", key)
	}
}
