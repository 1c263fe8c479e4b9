// Package errors provides the error values of the catalog service.
package errors

import (
	"errors"
	"fmt"
)

var ErrProductNotFound = errors.New("product not found")
var ErrOptimisticLock = errors.New("optimistic lock error: the record has been modified by another transaction")

var ErrUserExists = errors.New("user already exists")
var ErrUserNotFound = errors.New("user not found")
var ErrInvalidCredentials = errors.New("invalid credentials")

var ErrTransactionBegin = errors.New("failed to begin transaction")
var ErrTransactionCommit = errors.New("failed to commit transaction")
var ErrTransactionRollback = errors.New("failed to rollback transaction")

// Business rule kinds. Match with errors.Is; the caller-facing text lives in CatalogError.
var (
	ErrDuplicateName        = errors.New("duplicate product name")
	ErrInvalidPrice         = errors.New("invalid price")
	ErrInvalidDiscount      = errors.New("invalid discount percentage")
	ErrCategoryNotFound     = errors.New("category not found")
	ErrDiscountBelowMinimum = errors.New("discount below minimum price")
)

// CatalogError is a rejected business rule. Message is safe to show to API callers.
type CatalogError struct {
	Kind    error
	Message string
}

func (e *CatalogError) Error() string {
	return e.Message
}

func (e *CatalogError) Unwrap() error {
	return e.Kind
}

// IsBusinessRule reports whether err is a CatalogError.
func IsBusinessRule(err error) bool {
	var ce *CatalogError
	return errors.As(err, &ce)
}

func DuplicateName(name string) error {
	return &CatalogError{Kind: ErrDuplicateName, Message: fmt.Sprintf("A product with the name '%s' already exists.", name)}
}

// InvalidPrice takes the already formatted minimum price.
func InvalidPrice(minimum string) error {
	return &CatalogError{Kind: ErrInvalidPrice, Message: fmt.Sprintf("Price must be at least %s.", minimum)}
}

func InvalidDiscount() error {
	return &CatalogError{Kind: ErrInvalidDiscount, Message: "Discount percentage must be greater than 0 and less than 100."}
}

func CategoryNotFound(category string) error {
	return &CatalogError{Kind: ErrCategoryNotFound, Message: fmt.Sprintf("No products found in category '%s'.", category)}
}

// DiscountBelowMinimum takes the name of the first product that would drop under the formatted minimum.
func DiscountBelowMinimum(name, minimum string) error {
	return &CatalogError{
		Kind:    ErrDiscountBelowMinimum,
		Message: fmt.Sprintf("Discounting '%s' would reduce the price below the minimum allowed (%s).", name, minimum),
	}
}
