// Package service provides the implementation of the catalog business rules.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
	"github.com/abgdnv/gocatalog/internal/price"
	"github.com/abgdnv/gocatalog/internal/store"
	"github.com/abgdnv/gocatalog/pkg/messaging"
	"github.com/abgdnv/gocatalog/pkg/messaging/events"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
)

// CatalogService defines the methods for managing the product catalog.
// Rule violations are returned as *errors.CatalogError; persistence errors are returned unchanged.
type CatalogService interface {
	// GetAll returns all products. Returns an empty slice if no products exist.
	GetAll(ctx context.Context) ([]ProductDto, error)

	// GetByID returns ErrProductNotFound if no product exists with the given id.
	GetByID(ctx context.Context, id int64) (*ProductDto, error)

	// GetByCategory returns the products of a category, possibly none.
	GetByCategory(ctx context.Context, category string) ([]ProductDto, error)

	// AddProduct persists a new product after checking name uniqueness and the price floor.
	AddProduct(ctx context.Context, product ProductCreateDto) (*ProductDto, error)

	// UpdateProduct applies the same rules as AddProduct to an existing product.
	UpdateProduct(ctx context.Context, product ProductUpdateDto) (*ProductDto, error)

	// DeleteProduct removes a product. Deleting a missing id succeeds.
	DeleteProduct(ctx context.Context, id int64) error

	// ApplyDiscountToCategory reduces the price of every product in the category by pct percent.
	// Either all products are repriced or none.
	ApplyDiscountToCategory(ctx context.Context, category string, pct decimal.Decimal) ([]ProductDto, error)
}

// ProductDto represents the data transfer object for a product.
// Version is read-only and used for optimistic concurrency control.
type ProductDto struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	Version  int32           `json:"version"`
}

// ProductCreateDto represents the data transfer object for creating a new product.
type ProductCreateDto struct {
	Name     string          `json:"name" validate:"required,max=100"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category" validate:"max=50"`
}

// ProductUpdateDto represents the data transfer object for updating an existing product.
type ProductUpdateDto struct {
	ID       int64           `json:"id" validate:"required,gt=0"`
	Name     string          `json:"name" validate:"required,max=100"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category" validate:"max=50"`
	Version  int32           `json:"version" validate:"required,min=1"`
}

// Service implements CatalogService.
type Service struct {
	store     store.ProductStore
	publisher messaging.Publisher
	logger    *slog.Logger

	productsCreated   metric.Int64Counter
	discountsApplied  metric.Int64Counter
	discountsRejected metric.Int64Counter
}

var _ CatalogService = (*Service)(nil)

// NewService creates a new CatalogService on top of the given store.
func NewService(productStore store.ProductStore, publisher messaging.Publisher, logger *slog.Logger) *Service {
	meter := otel.Meter("catalog-service")
	return &Service{
		store:             productStore,
		publisher:         publisher,
		logger:            logger.With("component", "catalog_service"),
		productsCreated:   mustCounter(meter, "catalog_products_created", "Total number of created products"),
		discountsApplied:  mustCounter(meter, "catalog_discounts_applied", "Total number of committed category discounts"),
		discountsRejected: mustCounter(meter, "catalog_discounts_rejected", "Total number of category discounts rejected by a business rule"),
	}
}

func mustCounter(meter metric.Meter, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		panic(fmt.Sprintf("failed to create %s counter: %v", name, err))
	}
	return counter
}

func (s *Service) GetAll(ctx context.Context) ([]ProductDto, error) {
	products, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return toDtos(products), nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*ProductDto, error) {
	product, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toDto(product), nil
}

func (s *Service) GetByCategory(ctx context.Context, category string) ([]ProductDto, error) {
	products, err := s.store.GetByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	return toDtos(products), nil
}

// AddProduct checks the name before the price, so a duplicate with a low price reports the duplicate.
func (s *Service) AddProduct(ctx context.Context, product ProductCreateDto) (*ProductDto, error) {
	if err := s.checkNameFree(ctx, product.Name, 0); err != nil {
		return nil, err
	}
	if price.BelowMinimum(product.Price) {
		return nil, catalogerrors.InvalidPrice(price.Format(price.Minimum))
	}

	created, err := s.store.Add(ctx, store.Product{
		Name:     product.Name,
		Price:    product.Price,
		Category: product.Category,
	})
	if err != nil {
		return nil, err
	}
	s.productsCreated.Add(ctx, 1)

	s.publish(ctx, events.ProductCreatedEvent{
		EventID:   uuid.New(),
		Carrier:   carrier(ctx),
		ProductID: created.ID,
		Name:      created.Name,
		Price:     created.Price,
		Category:  created.Category,
		CreatedAt: time.Now().UTC(),
	})
	return toDto(created), nil
}

func (s *Service) UpdateProduct(ctx context.Context, product ProductUpdateDto) (*ProductDto, error) {
	if err := s.checkNameFree(ctx, product.Name, product.ID); err != nil {
		return nil, err
	}
	if price.BelowMinimum(product.Price) {
		return nil, catalogerrors.InvalidPrice(price.Format(price.Minimum))
	}

	updated, err := s.store.Update(ctx, store.Product{
		ID:       product.ID,
		Name:     product.Name,
		Price:    product.Price,
		Category: product.Category,
		Version:  product.Version,
	})
	if err != nil {
		return nil, err
	}
	return toDto(updated), nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	return s.store.Delete(ctx, id)
}

// ApplyDiscountToCategory computes every new price before writing any of them.
// The first product whose rounded price would fall below the minimum aborts the whole discount.
func (s *Service) ApplyDiscountToCategory(ctx context.Context, category string, pct decimal.Decimal) ([]ProductDto, error) {
	if !price.ValidDiscount(pct) {
		s.reject(ctx, category, "invalid_discount")
		return nil, catalogerrors.InvalidDiscount()
	}

	products, err := s.store.GetByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		s.reject(ctx, category, "category_not_found")
		return nil, catalogerrors.CategoryNotFound(category)
	}

	discounted := make([]store.Product, len(products))
	for i, p := range products {
		newPrice := price.Discount(p.Price, pct)
		if price.BelowMinimum(newPrice) {
			s.reject(ctx, category, "below_minimum")
			s.logger.InfoContext(ctx, "Discount rejected",
				"category", category, "discount", pct.String(), "product_id", p.ID, "new_price", newPrice.StringFixed(2))
			return nil, catalogerrors.DiscountBelowMinimum(p.Name, price.Format(price.Minimum))
		}
		p.Price = newPrice
		discounted[i] = p
	}

	if err := s.store.UpdateMany(ctx, discounted); err != nil {
		return nil, err
	}
	s.discountsApplied.Add(ctx, 1, metric.WithAttributes(attribute.String("category", category)))

	ids := make([]int64, len(discounted))
	for i, p := range discounted {
		ids[i] = p.ID
		// the store bumped the version on commit
		discounted[i].Version++
	}
	s.publish(ctx, events.CategoryDiscountedEvent{
		EventID:            uuid.New(),
		Carrier:            carrier(ctx),
		Category:           category,
		DiscountPercentage: pct,
		ProductIDs:         ids,
		AppliedAt:          time.Now().UTC(),
	})
	return toDtos(discounted), nil
}

// checkNameFree fails with a duplicate-name error if another product than selfID already uses name.
func (s *Service) checkNameFree(ctx context.Context, name string, selfID int64) error {
	existing, err := s.store.GetByName(ctx, name)
	switch {
	case errors.Is(err, catalogerrors.ErrProductNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID == selfID:
		return nil
	default:
		return catalogerrors.DuplicateName(name)
	}
}

func (s *Service) reject(ctx context.Context, category, reason string) {
	s.discountsRejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
		attribute.String("reason", reason),
	))
}

// publish runs after the store commit. A failed publish is logged and never fails the operation.
func (s *Service) publish(ctx context.Context, event messaging.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event", "subject", event.Subject(), "error", err)
	}
}

func carrier(ctx context.Context) propagation.MapCarrier {
	c := make(propagation.MapCarrier)
	otel.GetTextMapPropagator().Inject(ctx, c)
	return c
}

func toDto(product *store.Product) *ProductDto {
	return &ProductDto{
		ID:       product.ID,
		Name:     product.Name,
		Price:    product.Price,
		Category: product.Category,
		Version:  product.Version,
	}
}

func toDtos(products []store.Product) []ProductDto {
	dtos := make([]ProductDto, len(products))
	for i := range products {
		dtos[i] = *toDto(&products[i])
	}
	return dtos
}
