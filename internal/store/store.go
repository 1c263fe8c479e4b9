// Package store provides the persistence contracts of the catalog and their implementations.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog record as persisted.
type Product struct {
	ID       int64
	Name     string
	Price    decimal.Decimal
	Category string
	// Version is incremented on every write and checked by Update and UpdateMany.
	Version int32
}

// User is a registered API user.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// ProductStore is an interface for product storage operations.
// It performs no validation; business rules live in the service layer.
type ProductStore interface {
	// GetAll returns all products ordered by id.
	GetAll(ctx context.Context) ([]Product, error)

	// GetByID returns ErrProductNotFound if no product exists with the given id.
	GetByID(ctx context.Context, id int64) (*Product, error)

	// GetByName performs an exact, case-sensitive lookup.
	// Returns ErrProductNotFound if no product has that name.
	GetByName(ctx context.Context, name string) (*Product, error)

	// GetByCategory returns the products of the category ordered by id, or an empty slice.
	GetByCategory(ctx context.Context, category string) ([]Product, error)

	// Add persists a new product and returns it with its id and version assigned.
	Add(ctx context.Context, product Product) (*Product, error)

	// Update writes name, price and category of an existing product.
	// Returns ErrProductNotFound or ErrOptimisticLock when the stored version differs.
	Update(ctx context.Context, product Product) (*Product, error)

	// Delete removes a product. Deleting a missing id is a no-op.
	Delete(ctx context.Context, id int64) error

	// UpdateMany persists the prices of all given products atomically.
	// If any product was modified since it was read, nothing is written and ErrOptimisticLock is returned.
	UpdateMany(ctx context.Context, products []Product) error
}

// UserStore is an interface for user storage operations.
type UserStore interface {
	// GetByUsername returns ErrUserNotFound if no user has that name.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// Create persists a new user. Returns ErrUserExists if the username is taken.
	Create(ctx context.Context, user User) (*User, error)
}
