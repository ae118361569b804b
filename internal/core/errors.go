package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                 = errors.New("not found")
	ErrValidation               = errors.New("validation failed")
	ErrInsufficientStock        = errors.New("insufficient stock")
	ErrConcurrentStockConflict  = errors.New("concurrent stock conflict")
	ErrEmptyCart                = errors.New("cart is empty")
	ErrMissingCustomerForCredit = errors.New("customer name and phone are required for credit sales")
)

// ValidationError reports a missing or malformed input field.
// Cause, when set, is a more specific sentinel the error also matches.
type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) Is(target error) bool {
	return e.Cause != nil && target == e.Cause
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InsufficientStockError is returned when a request exceeds available base-unit stock.
type InsufficientStockError struct {
	ProductID string
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// ConcurrentStockConflictError means validation passed but another movement consumed
// the stock before the commit acquired the product lock.
type ConcurrentStockConflictError struct {
	ProductID string
	Available int64
}

func (e *ConcurrentStockConflictError) Error() string {
	return fmt.Sprintf("stock for product %s changed during checkout: %d now available",
		e.ProductID, e.Available)
}

func (e *ConcurrentStockConflictError) Unwrap() error { return ErrConcurrentStockConflict }

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
