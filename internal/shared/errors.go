package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrConflict indicates a concurrent-write serialization failure; safe to retry.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrStorage indicates a durable-write failure.
	ErrStorage = errors.New("storage failure")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// InsufficientStockError reports an outbound quantity exceeding the projection.
type InsufficientStockError struct {
	ProductID   int64
	WarehouseID int64
	Requested   float64
	Available   float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: product %d at warehouse %d: requested %.2f, available %.2f",
		e.ProductID, e.WarehouseID, e.Requested, e.Available)
}

// InvalidOperationError reports an operation that can never commit as stated.
type InvalidOperationError struct {
	Reason string
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("invalid operation: %s", e.Reason)
}

// ReferentialError reports an unknown product or warehouse reference.
type ReferentialError struct {
	Entity string
	ID     int64
}

func (e *ReferentialError) Error() string {
	return fmt.Sprintf("unknown %s: %d", e.Entity, e.ID)
}

// UserSafeMessage returns an error message suitable for API clients.
func UserSafeMessage(err error) string {
	var (
		ve  *ValidationError
		ise *InsufficientStockError
		ioe *InvalidOperationError
		re  *ReferentialError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &ise):
		return ise.Error()
	case errors.As(err, &ioe):
		return ioe.Error()
	case errors.As(err, &re):
		return re.Error()
	case errors.Is(err, ErrNotFound):
		return "resource not found"
	case errors.Is(err, ErrConflict):
		return "conflicting update in progress, retry the request"
	case errors.Is(err, ErrStorage):
		return "storage failure, the operation was not committed"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid credentials"
	default:
		return "internal error"
	}
}
