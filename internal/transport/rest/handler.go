// Package rest provides HTTP handlers for catalog operations.
package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
	"github.com/abgdnv/gocatalog/internal/price"
	"github.com/abgdnv/gocatalog/internal/service"
	"github.com/abgdnv/gocatalog/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type Handler struct {
	service  service.CatalogService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a new catalog Handler with the provided service.
func NewHandler(service service.CatalogService, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger.With("component", "rest"),
	}
}

// DiscountRequest is the body of the discount endpoint.
type DiscountRequest struct {
	Category           string          `json:"category" validate:"required,max=50"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
}

// ProductView is the JSON shape of a product in responses.
type ProductView struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	Price          json.Number `json:"price"`
	PriceFormatted string      `json:"price_formatted"`
	Category       string      `json:"category"`
	Version        int32       `json:"version"`
}

func toView(p service.ProductDto) ProductView {
	return ProductView{
		ID:             p.ID,
		Name:           p.Name,
		Price:          json.Number(p.Price.StringFixed(2)),
		PriceFormatted: price.Format(p.Price),
		Category:       p.Category,
		Version:        p.Version,
	}
}

func toViews(list []service.ProductDto) []ProductView {
	views := make([]ProductView, len(list))
	for i, p := range list {
		views[i] = toView(p)
	}
	return views
}

// RegisterRoutes registers the catalog routes behind the given authentication middleware.
func (h *Handler) RegisterRoutes(r chi.Router, authenticate func(http.Handler) http.Handler) {
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/", h.GetAll)
		r.Post("/", h.Add)
		r.Get("/category/{category}", h.GetByCategory)
		r.Post("/discount", h.ApplyDiscount)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetByID)
			r.Put("/", h.Update)
			r.Delete("/", h.Delete)
		})
	})
}

// GetAll lists every product.
func (h *Handler) GetAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.GetAll(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to fetch products")
		return
	}
	h.logger.DebugContext(r.Context(), "Successfully retrieved product list", "count", len(list))
	web.RespondOK(w, h.logger, http.StatusOK, "Products retrieved successfully.", toViews(list))
}

// GetByID retrieves a product by its ID.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}

	found, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalogerrors.ErrProductNotFound) {
			h.logger.WarnContext(r.Context(), "Product not found", "ID", id)
			web.RespondError(w, h.logger, http.StatusOK, fmt.Sprintf("Product with id '%d' not found.", id))
			return
		}
		h.respondServiceError(w, r, err, "Failed to retrieve product")
		return
	}
	web.RespondOK(w, h.logger, http.StatusOK, "Product retrieved successfully.", toView(*found))
}

// GetByCategory lists the products of one category, possibly none.
func (h *Handler) GetByCategory(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")

	list, err := h.service.GetByCategory(r.Context(), category)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to fetch products")
		return
	}
	web.RespondOK(w, h.logger, http.StatusOK, "Products retrieved successfully.", toViews(list))
}

// Add handles the creation of a new product.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	var dto service.ProductCreateDto
	if !h.bind(w, r, &dto) {
		return
	}

	created, err := h.service.AddProduct(r.Context(), dto)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to create product")
		return
	}
	h.logger.InfoContext(r.Context(), "Product created successfully", "ID", created.ID, "Name", created.Name)
	web.RespondOK(w, h.logger, http.StatusOK, "Product added successfully.", toView(*created))
}

// Update replaces name, price and category of a product. The body carries the version that was read.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	var dto service.ProductUpdateDto
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.logger.ErrorContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	dto.ID = id
	if !h.valid(w, r, dto) {
		return
	}

	updated, err := h.service.UpdateProduct(r.Context(), dto)
	if err != nil {
		if errors.Is(err, catalogerrors.ErrProductNotFound) {
			web.RespondError(w, h.logger, http.StatusOK, fmt.Sprintf("Product with id '%d' not found.", id))
			return
		}
		h.respondServiceError(w, r, err, "Failed to update product")
		return
	}
	h.logger.InfoContext(r.Context(), "Product updated successfully", "ID", updated.ID)
	web.RespondOK(w, h.logger, http.StatusOK, "Product updated successfully.", toView(*updated))
}

// Delete removes a product. Deleting a missing product succeeds.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		h.respondServiceError(w, r, err, "Failed to delete product")
		return
	}
	h.logger.InfoContext(r.Context(), "Product deleted", "ID", id)
	web.RespondOK(w, h.logger, http.StatusOK, "Product deleted successfully.", nil)
}

// ApplyDiscount reduces every price of a category by a percentage.
func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req DiscountRequest
	if !h.bind(w, r, &req) {
		return
	}

	discounted, err := h.service.ApplyDiscountToCategory(r.Context(), req.Category, req.DiscountPercentage)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to apply discount")
		return
	}
	h.logger.InfoContext(r.Context(), "Discount applied",
		"category", req.Category, "discount", req.DiscountPercentage.String(), "count", len(discounted))
	web.RespondOK(w, h.logger, http.StatusOK,
		fmt.Sprintf("Discount of %s%% applied to category '%s'.", req.DiscountPercentage.String(), req.Category),
		toViews(discounted))
}

// respondServiceError passes business rule messages through and hides everything else behind fallback.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	if catalogerrors.IsBusinessRule(err) {
		h.logger.InfoContext(r.Context(), "Business rule rejected request", "reason", err.Error())
		web.RespondError(w, h.logger, http.StatusOK, err.Error())
		return
	}
	h.logger.ErrorContext(r.Context(), fallback, "error", err)
	web.RespondError(w, h.logger, http.StatusInternalServerError, fallback)
}

// bind decodes the JSON body into dst and validates it. On failure it writes a 400 envelope and returns false.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.ErrorContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return h.valid(w, r, dst)
}

func (h *Handler) valid(w http.ResponseWriter, r *http.Request, dto any) bool {
	err := h.validate.Struct(dto)
	if err == nil {
		return true
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		errorResponse := make(map[string]string)
		for _, fieldErr := range validationErrors {
			errorResponse[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
		}
		h.logger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
		web.RespondFail(w, h.logger, http.StatusBadRequest, "Validation failed", map[string]any{"validation_errors": errorResponse})
		return false
	}
	h.logger.ErrorContext(r.Context(), "Error validating request body", "error", err)
	web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
	return false
}
